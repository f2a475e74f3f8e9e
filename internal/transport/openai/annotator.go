package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rendezvous/internal/domain"
	"github.com/kailas-cloud/rendezvous/internal/metrics"
)

const (
	defaultMaxTokens   = 150
	defaultTemperature = 0.8
	missingSummary     = "No summary yet."
)

// Annotator writes "why you match" lines through an OpenAI-compatible chat completions API.
type Annotator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	provider    string
	logger      *zap.Logger
}

// Config holds the annotation provider settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Provider    string
	Logger      *zap.Logger
}

// NewAnnotator creates an OpenAI-compatible annotation provider.
func NewAnnotator(cfg *Config) *Annotator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}

	return &Annotator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: temperature,
		provider:    cfg.Provider,
		logger:      cfg.Logger,
	}
}

// Annotate implements domain.Annotator with transport-level metrics.
func (a *Annotator) Annotate(ctx context.Context, req domain.AnnotationRequest) (domain.AnnotationResult, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req)},
		},
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, chatReq)
	duration := time.Since(start)

	if err != nil {
		metrics.AnnotationRequestsTotal.WithLabelValues(a.provider, a.model, "error").Inc()
		metrics.AnnotationErrorsTotal.WithLabelValues(a.provider, a.model, "api_error").Inc()
		return domain.AnnotationResult{}, parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		metrics.AnnotationRequestsTotal.WithLabelValues(a.provider, a.model, "error").Inc()
		metrics.AnnotationErrorsTotal.WithLabelValues(a.provider, a.model, "empty_response").Inc()
		return domain.AnnotationResult{}, fmt.Errorf("empty completion response: %w", domain.ErrAnnotationProviderError)
	}

	metrics.AnnotationRequestsTotal.WithLabelValues(a.provider, a.model, "success").Inc()
	metrics.AnnotationRequestDuration.WithLabelValues(a.provider, a.model).Observe(duration.Seconds())

	promptTokens := resp.Usage.PromptTokens
	totalTokens := resp.Usage.TotalTokens
	if totalTokens > 0 {
		metrics.AnnotationTokensTotal.WithLabelValues(a.provider, a.model, "prompt").Add(float64(promptTokens))
		metrics.AnnotationTokensTotal.WithLabelValues(a.provider, a.model, "total").Add(float64(totalTokens))
	}

	return domain.AnnotationResult{
		Text:         cleanText(resp.Choices[0].Message.Content),
		PromptTokens: promptTokens,
		TotalTokens:  totalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (a *Annotator) HealthCheck(ctx context.Context) error {
	if _, err := a.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func buildPrompt(req domain.AnnotationRequest) string {
	contextName := req.Context
	if contextName == "" {
		contextName = "collaboration"
	}
	maxChars := req.MaxCharacters
	if maxChars <= 0 {
		maxChars = 200
	}
	return fmt.Sprintf(
		"Write a single short sentence (under %d characters) explaining why these two people should connect. "+
			"Be specific and warm. Context: %s.\n\n"+
			"Person A: %s\nPerson B: %s\n\n"+
			"Return only the sentence, no quotes or prefix.",
		maxChars, contextName, orMissing(req.SummaryA), orMissing(req.SummaryB),
	)
}

func orMissing(s string) string {
	if strings.TrimSpace(s) == "" {
		return missingSummary
	}
	return s
}

// cleanText strips whitespace and wrapping quotes models like to add.
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'")
	return strings.TrimSpace(s)
}

// parseAPIError wraps every provider failure with domain.ErrAnnotationProviderError.
func parseAPIError(err error) error {
	wrap := domain.ErrAnnotationProviderError

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("annotation request: %w: %w", wrap, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("annotation API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("annotation API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("annotation API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("annotation request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
