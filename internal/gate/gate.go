// Package gate holds the pure access decision: which class a path falls
// into and whether a claim qualifies for it. It never touches the store;
// everything it needs is already in the verified claim.
package gate

import (
	"strings"

	"github.com/geocoder89/taskhub/internal/auth"
	"github.com/geocoder89/taskhub/internal/domain/user"
)

type Area int

const (
	Public Area = iota
	UserArea
	AdminArea
)

type Decision int

const (
	Allow Decision = iota
	DenyAnonymous // no claim on a protected path
	DenyForbidden // claim present but not approved / wrong role
)

// protected prefixes, matched longest first. Anything not listed is public.
var areas = []struct {
	prefix string
	area   Area
}{
	{"/admin", AdminArea},
	{"/todos", UserArea},
}

func AreaOf(path string) Area {
	best := Public
	bestLen := -1

	for _, a := range areas {
		if !hasPathPrefix(path, a.prefix) {
			continue
		}
		if len(a.prefix) > bestLen {
			best = a.area
			bestLen = len(a.prefix)
		}
	}

	return best
}

// hasPathPrefix matches on path segment boundaries so /todosx stays public.
func hasPathPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}

	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// Evaluate is the whole gate. An admin area wants an approved admin, a user
// area wants any approved identity, public wants nothing.
func Evaluate(area Area, claims *auth.Claims) Decision {
	switch area {
	case Public:
		return Allow

	case UserArea:
		if claims == nil {
			return DenyAnonymous
		}
		if !claims.Approved {
			return DenyForbidden
		}
		return Allow

	case AdminArea:
		if claims == nil {
			return DenyAnonymous
		}
		if claims.Role != user.RoleAdmin || !claims.Approved {
			return DenyForbidden
		}
		return Allow

	default:
		// unknown area never happens; fail closed if it does
		if claims == nil {
			return DenyAnonymous
		}
		return DenyForbidden
	}
}

func Check(path string, claims *auth.Claims) Decision {
	return Evaluate(AreaOf(path), claims)
}
