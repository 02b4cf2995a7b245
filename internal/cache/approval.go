package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// ApprovalStatus is what GET /check-approval answers. Cached briefly in
// redis because the login page polls it while a user waits for an admin.
type ApprovalStatus struct {
	Approved bool   `json:"approved"`
	Role     string `json:"role"`
}

type ApprovalCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewApprovalCache(rdb *redis.Client, ttl time.Duration) *ApprovalCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &ApprovalCache{rdb: rdb, ttl: ttl}
}

func key(email string) string {
	return "approval:" + email
}

func (c *ApprovalCache) Get(ctx context.Context, email string) (ApprovalStatus, bool) {
	if c == nil || c.rdb == nil {
		return ApprovalStatus{}, false
	}

	raw, err := c.rdb.Get(ctx, key(email)).Bytes()

	if err != nil {
		// redis.Nil or connectivity trouble, either way it's a miss
		return ApprovalStatus{}, false
	}

	var st ApprovalStatus

	if err := json.Unmarshal(raw, &st); err != nil {
		return ApprovalStatus{}, false
	}

	return st, true
}

func (c *ApprovalCache) Set(ctx context.Context, email string, st ApprovalStatus) {
	if c == nil || c.rdb == nil {
		return
	}

	raw, err := json.Marshal(st)

	if err != nil {
		return
	}

	// best effort, a failed set just means a DB read next time
	_ = c.rdb.Set(ctx, key(email), raw, c.ttl).Err()
}

// Invalidate drops the cached status after an admin decision so the
// polling login page sees the flip within one round trip.
func (c *ApprovalCache) Invalidate(ctx context.Context, email string) {
	if c == nil || c.rdb == nil {
		return
	}

	_ = c.rdb.Del(ctx, key(email)).Err()
}
