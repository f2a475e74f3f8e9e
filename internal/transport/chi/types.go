package chi

import "time"

// ErrorResponseCode is a machine-readable error code.
type ErrorResponseCode string

// Error codes returned in ErrorResponse.
const (
	ErrorResponseCodeBadRequest          ErrorResponseCode = "bad_request"
	ErrorResponseCodeValidationFailed    ErrorResponseCode = "validation_failed"
	ErrorResponseCodeVectorDimMismatch   ErrorResponseCode = "vector_dim_mismatch"
	ErrorResponseCodeNoProfileVector     ErrorResponseCode = "no_profile_vector"
	ErrorResponseCodeInvalidCursor       ErrorResponseCode = "invalid_cursor"
	ErrorResponseCodeUnauthenticated     ErrorResponseCode = "unauthenticated"
	ErrorResponseCodeForbidden           ErrorResponseCode = "forbidden"
	ErrorResponseCodeNotFound            ErrorResponseCode = "not_found"
	ErrorResponseCodeContextNotFound     ErrorResponseCode = "context_not_found"
	ErrorResponseCodeSessionNotFound     ErrorResponseCode = "session_not_found"
	ErrorResponseCodeAlreadyExists       ErrorResponseCode = "already_exists"
	ErrorResponseCodeDuplicateRequest    ErrorResponseCode = "duplicate_request"
	ErrorResponseCodeSessionEnded        ErrorResponseCode = "session_ended"
	ErrorResponseCodeMatchingUnavailable ErrorResponseCode = "matching_unavailable"
	ErrorResponseCodeInternalError       ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// CreateContextRequest is the body of POST /v1/contexts.
type CreateContextRequest struct {
	Name             string `json:"name"`
	VectorDimensions *int   `json:"vector_dimensions,omitempty"`
}

// MatchContext describes a matching context.
type MatchContext struct {
	Name             string    `json:"name"`
	VectorDimensions int       `json:"vector_dimensions"`
	CreatedAt        time.Time `json:"created_at"`
}

// MatchContextListResponse lists contexts.
type MatchContextListResponse struct {
	Items []MatchContext `json:"items"`
}

// UpsertProfileRequest is the body of PUT /v1/profiles/{user_id}.
type UpsertProfileRequest struct {
	Summary     string `json:"summary"`
	DisplayName string `json:"display_name,omitempty"`
	Flagged     bool   `json:"flagged,omitempty"`
}

// Profile is a stored profile.
type Profile struct {
	UserID      string `json:"user_id"`
	Summary     string `json:"summary"`
	DisplayName string `json:"display_name,omitempty"`
	Flagged     bool   `json:"flagged"`
}

// UpsertEmbeddingRequest is the body of PUT /v1/contexts/{context}/embeddings/{user_id}.
type UpsertEmbeddingRequest struct {
	Vector []float32 `json:"vector"`
	Labels []string  `json:"labels,omitempty"`
}

// BatchEmbeddingItem is one vector of a batch upsert.
type BatchEmbeddingItem struct {
	UserID string    `json:"user_id"`
	Vector []float32 `json:"vector"`
	Labels []string  `json:"labels,omitempty"`
}

// BatchUpsertEmbeddingsRequest is the body of POST /v1/contexts/{context}/embeddings/batch.
type BatchUpsertEmbeddingsRequest struct {
	Items []BatchEmbeddingItem `json:"items"`
}

// BatchResultItem reports the outcome of one batch item.
type BatchResultItem struct {
	UserID string         `json:"user_id"`
	Status string         `json:"status"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// BatchUpsertResponse is the body of a batch upsert response.
type BatchUpsertResponse struct {
	Items     []BatchResultItem `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// MatchCandidate is one discover result.
type MatchCandidate struct {
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"display_name,omitempty"`
	Summary     string  `json:"summary"`
	Annotation  string  `json:"annotation"`
	Score       float64 `json:"score"`
}

// DiscoverResponse is the body of GET /v1/discover.
type DiscoverResponse struct {
	Context string           `json:"context"`
	Items   []MatchCandidate `json:"items"`
}

// ConnectRequest is the body of POST /v1/sessions.
type ConnectRequest struct {
	CandidateID string  `json:"candidate_id"`
	Context     string  `json:"context,omitempty"`
	Annotation  *string `json:"annotation,omitempty"`
}

// Session is a match session as seen by the caller.
type Session struct {
	ID            string    `json:"id"`
	Counterpart   string    `json:"counterpart"`
	Status        string    `json:"status"`
	Annotation    string    `json:"annotation,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	ClosedByMe    bool      `json:"closed_by_me"`
	ClosedByOther bool      `json:"closed_by_other"`
	IsExpired     bool      `json:"is_expired"`
	IsEnded       bool      `json:"is_ended"`
}

// SessionListResponse lists the caller's sessions.
type SessionListResponse struct {
	Items []Session `json:"items"`
}

// CloseSessionResponse is the body of a close response.
type CloseSessionResponse struct {
	Closed bool `json:"closed"`
	Ended  bool `json:"ended"`
}

// SendMessageRequest is the body of POST /v1/sessions/{id}/messages.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// Message is a stored chat message.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MessagePageResponse is one page of a session log.
type MessagePageResponse struct {
	Items      []Message `json:"items"`
	NextCursor string    `json:"next_cursor,omitempty"`
	HasMore    bool      `json:"has_more"`
}

// StreamEvent is one websocket frame.
type StreamEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Message   *Message  `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// BudgetStatus reports the annotation token budget.
type BudgetStatus struct {
	TokensLimit     int64      `json:"tokens_limit"`
	TokensUsed      int64      `json:"tokens_used"`
	TokensRemaining int64      `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

// UsageResponse is the body of GET /v1/usage.
type UsageResponse struct {
	Period        string       `json:"period"`
	Provider      string       `json:"provider,omitempty"`
	PeriodStartAt *time.Time   `json:"period_start_at,omitempty"`
	PeriodEndAt   *time.Time   `json:"period_end_at,omitempty"`
	Budget        BudgetStatus `json:"budget"`
}
