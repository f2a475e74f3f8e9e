package rendezvous

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/rendezvous/internal/domain/usage"
)

// UsagePeriod is the aggregation granularity for usage reports.
type UsagePeriod string

// UsagePeriod constants.
const (
	PeriodDay   UsagePeriod = "day"
	PeriodMonth UsagePeriod = "month"
)

// UsageReport contains annotation token usage for a time period.
type UsageReport struct {
	Period      UsagePeriod
	Provider    string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Budget      BudgetStatus
}

// BudgetStatus tracks token quota state.
type BudgetStatus struct {
	TokensLimit     int64
	TokensUsed      int64
	TokensRemaining int64
	IsExhausted     bool
	ResetsAt        time.Time
}

// Usage returns an annotation usage report for the given period.
// The embedded client keeps no budget, so limits read as unlimited.
func (c *Client) Usage(ctx context.Context, period UsagePeriod) UsageReport {
	start := time.Now()
	defer func() { c.obs.observe("usage", start, nil) }()

	report := c.usageSvc.GetReport(ctx, domusage.Period(period))
	b := report.Budget()

	out := UsageReport{
		Period:   UsagePeriod(report.Period()),
		Provider: report.Provider(),
		Budget: BudgetStatus{
			TokensLimit:     b.TokensLimit,
			TokensUsed:      b.TokensUsed,
			TokensRemaining: b.TokensRemaining,
			IsExhausted:     b.IsExhausted(),
		},
	}
	if ms := report.PeriodStart(); ms > 0 {
		out.PeriodStart = time.UnixMilli(ms).UTC()
	}
	if ms := report.PeriodEnd(); ms > 0 {
		out.PeriodEnd = time.UnixMilli(ms).UTC()
	}
	if b.ResetsAt > 0 {
		out.Budget.ResetsAt = time.UnixMilli(b.ResetsAt).UTC()
	}
	return out
}

// usageUseCase is the internal interface for usage reports.
type usageUseCase interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}
