// Package usage describes annotation token consumption against its budget.
package usage

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod maps a request value to a Period, defaulting to the current day.
func ParsePeriod(s string) (Period, bool) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, true
	case PeriodMonth:
		return PeriodMonth, true
	default:
		return "", false
	}
}

// Budget is a token budget snapshot. A zero limit means unlimited.
type Budget struct {
	TokensLimit     int64
	TokensUsed      int64
	TokensRemaining int64
	ResetsAt        int64 // unix millis
}

// IsExhausted reports whether a limited budget has no tokens left.
func (b Budget) IsExhausted() bool {
	return b.TokensLimit > 0 && b.TokensRemaining <= 0
}

// Report is an annotation usage report for a period.
type Report struct {
	period      Period
	periodStart int64
	periodEnd   int64
	provider    string
	budget      Budget
}

// NewReport creates a usage report.
func NewReport(period Period, start, end int64, provider string, b Budget) Report {
	return Report{period: period, periodStart: start, periodEnd: end, provider: provider, budget: b}
}

// Period returns the aggregation granularity.
func (r Report) Period() Period { return r.period }

// PeriodStart returns the period start (unix millis).
func (r Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end (unix millis).
func (r Report) PeriodEnd() int64 { return r.periodEnd }

// Provider returns the annotation provider name.
func (r Report) Provider() string { return r.provider }

// Budget returns the budget snapshot.
func (r Report) Budget() Budget { return r.budget }
