package rendezvous

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/rendezvous/internal/domain"
)

// Annotator writes a short "why you match" line for two profile summaries.
// Errors never reach callers of the client: the default text is used instead.
type Annotator interface {
	Annotate(ctx context.Context, req AnnotationRequest) (string, error)
}

// AnnotationRequest carries the inputs of one annotation.
type AnnotationRequest struct {
	Context       string
	SummaryA      string
	SummaryB      string
	MaxCharacters int
}

// AnnotatorFunc adapts a function to the Annotator interface.
type AnnotatorFunc func(ctx context.Context, req AnnotationRequest) (string, error)

// Annotate calls f.
func (f AnnotatorFunc) Annotate(ctx context.Context, req AnnotationRequest) (string, error) {
	return f(ctx, req)
}

// annotatorAdapter wraps public Annotator to satisfy internal domain.Annotator.
type annotatorAdapter struct {
	inner Annotator
}

func (a *annotatorAdapter) Annotate(
	ctx context.Context, req domain.AnnotationRequest,
) (domain.AnnotationResult, error) {
	text, err := a.inner.Annotate(ctx, AnnotationRequest{
		Context:       req.Context,
		SummaryA:      req.SummaryA,
		SummaryB:      req.SummaryB,
		MaxCharacters: req.MaxCharacters,
	})
	if err != nil {
		return domain.AnnotationResult{}, fmt.Errorf("annotate: %w", err)
	}
	return domain.AnnotationResult{Text: text}, nil
}
