package annotation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rendezvous/internal/domain"
	"github.com/kailas-cloud/rendezvous/internal/domain/usage"
)

// BudgetAction defines behavior when the token budget is exhausted.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning and lets the request through.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request; the caller falls back to the default text.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetStore persists token counters per provider and period bucket.
// Add may be called repeatedly for one bucket.
type BudgetStore interface {
	Add(ctx context.Context, provider string, period usage.Period, at time.Time, tokens int64) error
	Used(ctx context.Context, provider string, period usage.Period, at time.Time) (int64, error)
}

// BudgetTracker keeps daily and monthly token counters in memory and writes them behind to a store.
// Check never touches the store.
type BudgetTracker struct {
	mu             sync.Mutex
	dailyUsed      int64
	monthlyUsed    int64
	dailyLimit     int64
	monthlyLimit   int64
	action         BudgetAction
	provider       string
	lastDayReset   time.Time
	lastMonthReset time.Time
	store          BudgetStore
	now            func() time.Time
	logger         *zap.Logger
}

// NewBudgetTracker creates a tracker. A zero limit means unlimited.
func NewBudgetTracker(
	provider string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	b := &BudgetTracker{
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		action:       action,
		provider:     provider,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}
	b.lastDayReset = truncateToDay(b.now())
	b.lastMonthReset = truncateToMonth(b.now())
	return b
}

// WithStore attaches a persistence store and loads the current period counters.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.store = store
	b.load(ctx)
	return b
}

// WithClock replaces the time source.
func (b *BudgetTracker) WithClock(now func() time.Time) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = func() time.Time { return now().UTC() }
	b.lastDayReset = truncateToDay(b.now())
	b.lastMonthReset = truncateToMonth(b.now())
	return b
}

func (b *BudgetTracker) load(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if val, err := b.store.Used(ctx, b.provider, usage.PeriodDay, now); err == nil {
		b.dailyUsed = val
	} else {
		b.logger.Warn("Failed to load daily annotation budget", zap.Error(err))
	}
	if val, err := b.store.Used(ctx, b.provider, usage.PeriodMonth, now); err == nil {
		b.monthlyUsed = val
	} else {
		b.logger.Warn("Failed to load monthly annotation budget", zap.Error(err))
	}

	b.logger.Info("Annotation budget loaded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("monthly_used", b.monthlyUsed),
	)
}

// Check reports whether a new provider call is allowed.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()

	dailyExceeded := b.dailyLimit > 0 && b.dailyUsed >= b.dailyLimit
	monthlyExceeded := b.monthlyLimit > 0 && b.monthlyUsed >= b.monthlyLimit
	if !dailyExceeded && !monthlyExceeded {
		return nil
	}

	if b.action == BudgetActionReject {
		return domain.ErrAnnotationQuotaExceeded
	}

	b.logger.Warn("Annotation token budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("daily_limit", b.dailyLimit),
		zap.Int64("monthly_used", b.monthlyUsed),
		zap.Int64("monthly_limit", b.monthlyLimit),
	)
	return nil
}

// Record adds consumed tokens and writes them behind to the store.
func (b *BudgetTracker) Record(tokens int64) {
	b.mu.Lock()
	b.resetIfNeeded()
	b.dailyUsed += tokens
	b.monthlyUsed += tokens
	store := b.store
	now := b.now()
	b.mu.Unlock()

	if store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := store.Add(ctx, b.provider, usage.PeriodDay, now, tokens); err != nil {
		b.logger.Warn("Failed to persist daily annotation budget", zap.Error(err))
	}
	if err := store.Add(ctx, b.provider, usage.PeriodMonth, now, tokens); err != nil {
		b.logger.Warn("Failed to persist monthly annotation budget", zap.Error(err))
	}
}

// RemainingDaily returns tokens left today, -1 when unlimited.
func (b *BudgetTracker) RemainingDaily() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return remaining(b.dailyLimit, b.dailyUsed)
}

// RemainingMonthly returns tokens left this month, -1 when unlimited.
func (b *BudgetTracker) RemainingMonthly() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return remaining(b.monthlyLimit, b.monthlyUsed)
}

// Snapshot returns the budget state of the current day or month.
func (b *BudgetTracker) Snapshot(period usage.Period) usage.Budget {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()

	if period == usage.PeriodMonth {
		return usage.Budget{
			TokensLimit:     b.monthlyLimit,
			TokensUsed:      b.monthlyUsed,
			TokensRemaining: remaining(b.monthlyLimit, b.monthlyUsed),
			ResetsAt:        b.lastMonthReset.AddDate(0, 1, 0).UnixMilli(),
		}
	}
	return usage.Budget{
		TokensLimit:     b.dailyLimit,
		TokensUsed:      b.dailyUsed,
		TokensRemaining: remaining(b.dailyLimit, b.dailyUsed),
		ResetsAt:        b.lastDayReset.AddDate(0, 0, 1).UnixMilli(),
	}
}

// Provider returns the provider label the counters are kept under.
func (b *BudgetTracker) Provider() string { return b.provider }

func (b *BudgetTracker) resetIfNeeded() {
	now := b.now()
	today := truncateToDay(now)
	thisMonth := truncateToMonth(now)

	if today.After(b.lastDayReset) {
		b.dailyUsed = 0
		b.lastDayReset = today
	}
	if thisMonth.After(b.lastMonthReset) {
		b.monthlyUsed = 0
		b.lastMonthReset = thisMonth
	}
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
