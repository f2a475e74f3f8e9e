package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/rendezvous/internal/domain/usage"
)

// Service handles annotation usage reporting.
type Service struct {
	br  BudgetReader
	now func() time.Time
}

// New creates a Service. br can be nil (annotation disabled or unlimited).
func New(br BudgetReader) *Service {
	return &Service{br: br, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetReport builds a usage report for the current day or month.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	now := s.now().UTC()

	var startT, endT time.Time
	if period == domusage.PeriodMonth {
		startT = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		endT = startT.AddDate(0, 1, 0)
	} else {
		period = domusage.PeriodDay
		startT = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		endT = startT.AddDate(0, 0, 1)
	}

	b := domusage.Budget{TokensRemaining: -1, ResetsAt: endT.UnixMilli()}
	provider := ""
	if s.br != nil {
		b = s.br.Snapshot(period)
		provider = s.br.Provider()
	}

	return domusage.NewReport(period, startT.UnixMilli(), endT.UnixMilli(), provider, b)
}
