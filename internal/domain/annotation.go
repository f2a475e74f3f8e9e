package domain

import "context"

// DefaultAnnotation is attached when the annotation collaborator cannot produce text.
const DefaultAnnotation = "You two should connect."

// AnnotationRequest carries the two profile summaries an annotation is written for.
type AnnotationRequest struct {
	Context       string
	SummaryA      string
	SummaryB      string
	MaxCharacters int
}

// AnnotationResult carries generated text and token usage through the decorator chain.
type AnnotationResult struct {
	Text         string
	PromptTokens int
	TotalTokens  int
	Cached       bool
}

// Annotator writes a short "why you match" line for two profiles.
type Annotator interface {
	Annotate(ctx context.Context, req AnnotationRequest) (AnnotationResult, error)
}

// HealthChecker verifies collaborator availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
