// Package budget persists annotation token counters, one counter per provider and period bucket.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/rendezvous/internal/db"
	"github.com/kailas-cloud/rendezvous/internal/domain"
	"github.com/kailas-cloud/rendezvous/internal/domain/usage"
)

// store is the consumer interface for budget counters (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Retention is how long a bucket counter lives after its first write.
type Retention struct {
	Day   time.Duration
	Month time.Duration
}

// DefaultRetention keeps the previous day and month readable after rollover.
var DefaultRetention = Retention{Day: 48 * time.Hour, Month: 62 * 24 * time.Hour}

// Store implements usecase/annotation.BudgetStore.
type Store struct {
	store     store
	retention Retention
}

// New creates a budget store. Zero retention fields fall back to DefaultRetention.
func New(s store, r Retention) *Store {
	if r.Day <= 0 {
		r.Day = DefaultRetention.Day
	}
	if r.Month <= 0 {
		r.Month = DefaultRetention.Month
	}
	return &Store{store: s, retention: r}
}

// Add records tokens in the bucket of period that contains at.
func (s *Store) Add(ctx context.Context, provider string, period usage.Period, at time.Time, tokens int64) error {
	b, err := s.bucket(provider, period, at)
	if err != nil {
		return err
	}
	if err := s.store.IncrBy(ctx, b.key, tokens); err != nil {
		return fmt.Errorf("budget INCRBY %s: %w", b.key, err)
	}
	// NX keeps the first expiry so later writes don't stretch the bucket.
	if err := s.store.Expire(ctx, b.key, b.ttl, true); err != nil {
		return fmt.Errorf("budget EXPIRE %s: %w", b.key, err)
	}
	return nil
}

// Used returns the tokens recorded in the bucket of period that contains at, 0 when none.
func (s *Store) Used(ctx context.Context, provider string, period usage.Period, at time.Time) (int64, error) {
	b, err := s.bucket(provider, period, at)
	if err != nil {
		return 0, err
	}
	data, err := s.store.Get(ctx, b.key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("budget GET %s: %w", b.key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget %s holds %q: %w", b.key, data, err)
	}
	return val, nil
}

type bucket struct {
	key string
	ttl time.Duration
}

func (s *Store) bucket(provider string, period usage.Period, at time.Time) (bucket, error) {
	if provider == "" {
		return bucket{}, errors.New("budget provider is required")
	}
	at = at.UTC()
	switch period {
	case usage.PeriodDay:
		return bucket{key: Key(provider, period, at.Format(time.DateOnly)), ttl: s.retention.Day}, nil
	case usage.PeriodMonth:
		return bucket{key: Key(provider, period, at.Format("2006-01")), ttl: s.retention.Month}, nil
	default:
		return bucket{}, fmt.Errorf("unknown budget period %q", period)
	}
}

// Key is the counter key of one provider bucket, e.g. rendezvous:budget:openai:day:2026-10-16.
func Key(provider string, period usage.Period, label string) string {
	return domain.KeyPrefix + "budget:" + provider + ":" + string(period) + ":" + label
}
