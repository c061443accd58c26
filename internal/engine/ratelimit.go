package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/CryptoRabble/glanker/pkg/kv"
)

// RateLimitPolicy selects how generation quota is enforced.
type RateLimitPolicy string

const (
	// PolicySingleSlot allows one generation per rolling 24 hours.
	PolicySingleSlot RateLimitPolicy = "single"
	// PolicyDailyQuota allows N generations per local calendar day.
	PolicyDailyQuota RateLimitPolicy = "daily"
)

const rateLimitKeyPrefix = "token:"

const dayFormat = "2006-01-02"

type rateLimitRecord struct {
	LastGenerated int64  `json:"lastGenerated"`
	LastDate      string `json:"lastDate,omitempty"`
	TokensToday   int    `json:"tokensToday,omitempty"`
}

// RateLimiter enforces a per-actor generation quota. Check and Commit are
// separate store operations, so two concurrent requests for the same
// actor can both pass the check. The quota is approximate by design.
type RateLimiter struct {
	store  kv.Store
	policy RateLimitPolicy
	quota  int
	now    func() time.Time
}

func NewRateLimiter(store kv.Store, policy RateLimitPolicy, quota int) *RateLimiter {
	if quota <= 0 {
		quota = 1
	}
	return &RateLimiter{
		store:  store,
		policy: policy,
		quota:  quota,
		now:    time.Now,
	}
}

// SetClock overrides the limiter's clock.
func (l *RateLimiter) SetClock(now func() time.Time) {
	l.now = now
}

func (l *RateLimiter) key(fid int64) string {
	return fmt.Sprintf("%s%d", rateLimitKeyPrefix, fid)
}

func (l *RateLimiter) load(ctx context.Context, fid int64) (*rateLimitRecord, error) {
	raw, found, err := l.store.Get(ctx, l.key(fid))
	if err != nil {
		return nil, fmt.Errorf("loading rate limit record for %d: %w", fid, err)
	}
	if !found {
		return nil, nil
	}
	var record rateLimitRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decoding rate limit record for %d: %w", fid, err)
	}
	return &record, nil
}

// Allow reports whether the actor has quota left. It does not consume
// any, callers commit usage separately once generation succeeds.
func (l *RateLimiter) Allow(ctx context.Context, fid int64) (bool, error) {
	record, err := l.load(ctx, fid)
	if err != nil {
		return false, err
	}
	if record == nil {
		return true, nil
	}

	now := l.now()
	switch l.policy {
	case PolicyDailyQuota:
		if record.LastDate != now.Format(dayFormat) {
			return true, nil
		}
		return record.TokensToday < l.quota, nil
	default:
		last := time.UnixMilli(record.LastGenerated)
		return now.Sub(last) >= 24*time.Hour, nil
	}
}

// Commit stamps the actor's usage. Under the daily policy the counter
// restarts at 1 on the first generation of a new calendar day.
func (l *RateLimiter) Commit(ctx context.Context, fid int64) error {
	now := l.now()
	record := rateLimitRecord{LastGenerated: now.UnixMilli()}

	if l.policy == PolicyDailyQuota {
		today := now.Format(dayFormat)
		previous, err := l.load(ctx, fid)
		if err != nil {
			return err
		}
		record.LastDate = today
		record.TokensToday = 1
		if previous != nil && previous.LastDate == today {
			record.TokensToday = previous.TokensToday + 1
		}
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return l.store.Set(ctx, l.key(fid), string(raw), kv.NoExpiry)
}
