package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rendezvous/internal/domain"
	"github.com/kailas-cloud/rendezvous/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterAnnotationMetrics()
	os.Exit(m.Run())
}

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatServer(t *testing.T, content string, check func(chatRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if check != nil {
			check(req)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			}},
			"usage": map[string]int{"prompt_tokens": 60, "completion_tokens": 12, "total_tokens": 72},
		})
	}))
}

func newTestAnnotator(url string) *Annotator {
	return NewAnnotator(&Config{
		APIKey:   "test-key",
		BaseURL:  url,
		Model:    "test-model",
		Provider: "test",
		Logger:   zap.NewNop(),
	})
}

func TestAnnotator_Annotate(t *testing.T) {
	server := chatServer(t, "\"You both build climbing apps.\"\n", func(req chatRequest) {
		if req.Model != "test-model" {
			t.Errorf("unexpected model %q", req.Model)
		}
		if len(req.Messages) != 1 {
			t.Fatalf("expected 1 message, got %d", len(req.Messages))
		}
		prompt := req.Messages[0].Content
		for _, want := range []string{"Context: climbers", "Person A: likes bouldering", "Person B: No summary yet."} {
			if !strings.Contains(prompt, want) {
				t.Errorf("prompt missing %q: %s", want, prompt)
			}
		}
	})
	defer server.Close()

	res, err := newTestAnnotator(server.URL).Annotate(context.Background(), domain.AnnotationRequest{
		Context: "climbers", SummaryA: "likes bouldering", MaxCharacters: 200,
	})
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	if res.Text != "You both build climbing apps." {
		t.Errorf("unexpected text %q", res.Text)
	}
	if res.PromptTokens != 60 || res.TotalTokens != 72 {
		t.Errorf("unexpected usage: %+v", res)
	}
}

func TestAnnotator_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer server.Close()

	_, err := newTestAnnotator(server.URL).Annotate(context.Background(), domain.AnnotationRequest{})
	if !errors.Is(err, domain.ErrAnnotationProviderError) {
		t.Fatalf("expected ErrAnnotationProviderError, got %v", err)
	}
}

func TestAnnotator_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer server.Close()

	_, err := newTestAnnotator(server.URL).Annotate(context.Background(), domain.AnnotationRequest{})
	if !errors.Is(err, domain.ErrAnnotationProviderError) {
		t.Fatalf("expected ErrAnnotationProviderError, got %v", err)
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status code in error, got %v", err)
	}
}

func TestAnnotator_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer server.Close()

	if err := newTestAnnotator(server.URL).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
}

func TestExtractDetail(t *testing.T) {
	if got := extractDetail([]byte(`{"detail":"model not found"}`)); got != "model not found" {
		t.Errorf("expected detail, got %q", got)
	}
	if got := extractDetail([]byte(`not json`)); got != "" {
		t.Errorf("expected empty detail, got %q", got)
	}
}
