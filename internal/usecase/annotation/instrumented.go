package annotation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rendezvous/internal/domain"
	"github.com/kailas-cloud/rendezvous/internal/metrics"
)

// BudgetChecker is the budget surface the instrumented annotator needs.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// InstrumentedAnnotator enforces the token budget around a provider call.
// Request, duration and token metrics live in transport/openai.
type InstrumentedAnnotator struct {
	inner    domain.Annotator
	provider string
	model    string
	budget   BudgetChecker
	logger   *zap.Logger
}

// NewInstrumented wraps an annotator with budget enforcement. budget may be nil.
func NewInstrumented(
	inner domain.Annotator, provider, model string,
	budget BudgetChecker, logger *zap.Logger,
) *InstrumentedAnnotator {
	return &InstrumentedAnnotator{
		inner:    inner,
		provider: provider,
		model:    model,
		budget:   budget,
		logger:   logger,
	}
}

// Annotate checks the budget, calls the provider and records token usage.
func (a *InstrumentedAnnotator) Annotate(
	ctx context.Context, req domain.AnnotationRequest,
) (domain.AnnotationResult, error) {
	if a.budget != nil {
		if err := a.budget.Check(ctx); err != nil {
			a.logger.Warn("Annotation budget exhausted",
				zap.String("provider", a.provider),
				zap.String("model", a.model),
				zap.Error(err),
			)
			return domain.AnnotationResult{}, fmt.Errorf("budget check: %w", err)
		}
	}

	start := time.Now()
	result, err := a.inner.Annotate(ctx, req)
	duration := time.Since(start)
	if err != nil {
		a.logger.Error("Annotation request failed",
			zap.String("provider", a.provider),
			zap.String("model", a.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.AnnotationResult{}, fmt.Errorf("annotate: %w", err)
	}

	if a.budget != nil && result.TotalTokens > 0 {
		a.budget.Record(int64(result.TotalTokens))
		gauge := metrics.AnnotationBudgetTokensRemaining
		gauge.WithLabelValues(a.provider, "daily").Set(float64(a.budget.RemainingDaily()))
		gauge.WithLabelValues(a.provider, "monthly").Set(float64(a.budget.RemainingMonthly()))
	}

	a.logger.Debug("Annotation request completed",
		zap.String("provider", a.provider),
		zap.String("model", a.model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}
