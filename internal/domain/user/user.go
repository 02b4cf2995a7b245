package user

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// Decision is what an admin hands down for a pending user. Reject is not
// terminal: it puts the account back to unapproved and a later approve
// flips it again.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

func (d Decision) IsValid() bool {
	switch d {
	case DecisionApproved, DecisionRejected:
		return true
	default:
		return false
	}
}

// Approved maps the decision onto the stored flag.
func (d Decision) Approved() bool {
	return d == DecisionApproved
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	Approved     bool      `json:"approved"`
	CreatedAt    time.Time `json:"createdAt"`
}
