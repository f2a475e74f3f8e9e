// Package annotation produces the best-effort "why you match" text attached to
// discovery results and new sessions. Failures never propagate: the caller always
// gets text, the configured default when the collaborator cannot help.
package annotation

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rendezvous/internal/domain"
	"github.com/kailas-cloud/rendezvous/internal/domain/session"
	"github.com/kailas-cloud/rendezvous/internal/metrics"
)

// Config tunes the Blurber.
type Config struct {
	Timeout       time.Duration
	MaxCharacters int
	DefaultText   string
}

// Blurber turns an Annotator into a function that cannot fail.
type Blurber struct {
	inner  domain.Annotator
	cfg    Config
	logger *zap.Logger
}

// NewBlurber creates a Blurber. inner may be nil, in which case every call returns the default text.
func NewBlurber(inner domain.Annotator, cfg Config, logger *zap.Logger) *Blurber {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxCharacters <= 0 || cfg.MaxCharacters > session.MaxAnnotationLength {
		cfg.MaxCharacters = session.MaxAnnotationLength
	}
	if cfg.DefaultText == "" {
		cfg.DefaultText = domain.DefaultAnnotation
	}
	return &Blurber{inner: inner, cfg: cfg, logger: logger}
}

// Blurb returns annotation text for two summaries, never more than MaxCharacters runes.
func (b *Blurber) Blurb(ctx context.Context, contextName, summaryA, summaryB string) string {
	if b.inner == nil {
		return b.cfg.DefaultText
	}

	actx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	res, err := b.inner.Annotate(actx, domain.AnnotationRequest{
		Context:       contextName,
		SummaryA:      summaryA,
		SummaryB:      summaryB,
		MaxCharacters: b.cfg.MaxCharacters,
	})
	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		metrics.AnnotationFallbackTotal.WithLabelValues(reason).Inc()
		b.logger.Warn("Annotation unavailable, using default text",
			zap.String("context", contextName),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return b.cfg.DefaultText
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		metrics.AnnotationFallbackTotal.WithLabelValues("empty").Inc()
		return b.cfg.DefaultText
	}
	return truncate(text, b.cfg.MaxCharacters)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
