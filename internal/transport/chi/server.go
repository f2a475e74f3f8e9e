package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rendezvous/internal/domain"
	dombatch "github.com/kailas-cloud/rendezvous/internal/domain/batch"
	dommc "github.com/kailas-cloud/rendezvous/internal/domain/matchctx"
	dommsg "github.com/kailas-cloud/rendezvous/internal/domain/message"
	domsession "github.com/kailas-cloud/rendezvous/internal/domain/session"
	domusage "github.com/kailas-cloud/rendezvous/internal/domain/usage"
	"github.com/kailas-cloud/rendezvous/internal/logger"
	discoveryuc "github.com/kailas-cloud/rendezvous/internal/usecase/discovery"
	healthuc "github.com/kailas-cloud/rendezvous/internal/usecase/health"
	messageuc "github.com/kailas-cloud/rendezvous/internal/usecase/message"
	profileuc "github.com/kailas-cloud/rendezvous/internal/usecase/profile"
	sessionuc "github.com/kailas-cloud/rendezvous/internal/usecase/session"
)

const maxBatchSize = 100

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server implements ServerInterface on top of the usecases.
type Server struct {
	svc           Services
	stream        StreamConfig
	now           func() time.Time
	logger        *zap.Logger
	errorHandlers []errorHandler
}

var _ ServerInterface = (*Server)(nil)

// NewServer creates an HTTP API server.
func NewServer(svc Services, stream StreamConfig, logger *zap.Logger) *Server {
	stream.applyDefaults()
	s := &Server{
		svc:    svc,
		stream: stream,
		now:    time.Now,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		dimMismatchHandler,
		verbatimHandler(domain.ErrInvalidSchema, http.StatusBadRequest, ErrorResponseCodeValidationFailed),
		verbatimHandler(domain.ErrEmptyContent, http.StatusBadRequest, ErrorResponseCodeValidationFailed),
		verbatimHandler(domain.ErrSelfMatch, http.StatusBadRequest, ErrorResponseCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidCursor, http.StatusBadRequest, ErrorResponseCodeInvalidCursor),
		sentinelHandler(domain.ErrNoProfileVector, http.StatusBadRequest, ErrorResponseCodeNoProfileVector),
		sentinelHandler(domain.ErrUnauthenticated, http.StatusUnauthorized, ErrorResponseCodeUnauthenticated),
		sentinelHandler(domain.ErrForbidden, http.StatusForbidden, ErrorResponseCodeForbidden),
		sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, ErrorResponseCodeSessionNotFound),
		sentinelHandler(domain.ErrContextNotFound, http.StatusNotFound, ErrorResponseCodeContextNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorResponseCodeNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, ErrorResponseCodeAlreadyExists),
		sentinelHandler(domain.ErrDuplicateRequest, http.StatusConflict, ErrorResponseCodeDuplicateRequest),
		sentinelHandler(domain.ErrSessionEnded, http.StatusGone, ErrorResponseCodeSessionEnded),
		sentinelHandler(domain.ErrMatchingUnavailable,
			http.StatusServiceUnavailable, ErrorResponseCodeMatchingUnavailable),
	}
	return s
}

// WithClock overrides the clock used for session views.
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.svc.Health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// CreateContext handles POST /v1/contexts.
func (s *Server) CreateContext(w http.ResponseWriter, r *http.Request) {
	var req CreateContextRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, "Context name is required")
		return
	}

	mc, err := s.svc.Contexts.Create(r.Context(), req.Name, derefInt(req.VectorDimensions))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/contexts/"+mc.Name())
	writeJSON(w, http.StatusCreated, contextToDTO(mc))
}

// ListContexts handles GET /v1/contexts.
func (s *Server) ListContexts(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Contexts.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]MatchContext, len(list))
	for i, mc := range list {
		items[i] = contextToDTO(mc)
	}
	writeJSON(w, http.StatusOK, MatchContextListResponse{Items: items})
}

// GetContext handles GET /v1/contexts/{context}.
func (s *Server) GetContext(w http.ResponseWriter, r *http.Request, contextName ContextName) {
	mc, err := s.svc.Contexts.Get(r.Context(), contextName)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contextToDTO(mc))
}

// DeleteContext handles DELETE /v1/contexts/{context}.
func (s *Server) DeleteContext(w http.ResponseWriter, r *http.Request, contextName ContextName) {
	if err := s.svc.Contexts.Delete(r.Context(), contextName); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpsertProfile handles PUT /v1/profiles/{user_id}.
func (s *Server) UpsertProfile(w http.ResponseWriter, r *http.Request, userID UserID) {
	var req UpsertProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := s.svc.Profiles.UpsertProfile(r.Context(), userID, req.Summary, req.DisplayName, req.Flagged)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, Profile{
		UserID:      p.ID(),
		Summary:     p.Summary(),
		DisplayName: p.DisplayName(),
		Flagged:     p.Flagged(),
	})
}

// UpsertEmbedding handles PUT /v1/contexts/{context}/embeddings/{user_id}.
func (s *Server) UpsertEmbedding(w http.ResponseWriter, r *http.Request, contextName ContextName, userID UserID) {
	var req UpsertEmbeddingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	in := profileuc.EmbeddingInput{UserID: userID, Vector: req.Vector, Labels: req.Labels}
	if err := s.svc.Profiles.UpsertEmbedding(r.Context(), contextName, in); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BatchUpsertEmbeddings handles POST /v1/contexts/{context}/embeddings/batch.
func (s *Server) BatchUpsertEmbeddings(w http.ResponseWriter, r *http.Request, contextName ContextName) {
	var req BatchUpsertEmbeddingsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if len(req.Items) == 0 || len(req.Items) > maxBatchSize {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed,
			fmt.Sprintf("items count must be between 1 and %d", maxBatchSize))
		return
	}

	items := make([]profileuc.EmbeddingInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = profileuc.EmbeddingInput{UserID: it.UserID, Vector: it.Vector, Labels: it.Labels}
	}

	results := s.svc.Profiles.UpsertEmbeddings(r.Context(), contextName, items)

	out := make([]BatchResultItem, len(results))
	for i, res := range results {
		out[i] = batchResultToDTO(res)
	}
	succeeded, failed := dombatch.Summarize(results)

	writeJSON(w, http.StatusOK, BatchUpsertResponse{Items: out, Succeeded: succeeded, Failed: failed})
}

// Discover handles GET /v1/discover.
func (s *Server) Discover(w http.ResponseWriter, r *http.Request, params DiscoverParams) {
	req := discoveryuc.Request{
		CallerID: params.CallerID,
		Context:  params.Context,
		Count:    derefInt(params.Count),
	}
	if params.Labels != nil {
		req.Labels = *params.Labels
	}

	matches, err := s.svc.Discovery.Discover(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]MatchCandidate, len(matches))
	for i, m := range matches {
		items[i] = MatchCandidate{
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			Summary:     m.Summary,
			Annotation:  m.Annotation,
			Score:       m.Score,
		}
	}
	writeJSON(w, http.StatusOK, DiscoverResponse{Context: params.Context, Items: items})
}

// ListSessions handles GET /v1/sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request, params ListSessionsParams) {
	views, err := s.svc.Sessions.List(r.Context(), params.CallerID, derefInt(params.Limit))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]Session, len(views))
	for i, v := range views {
		items[i] = viewToDTO(v)
	}
	writeJSON(w, http.StatusOK, SessionListResponse{Items: items})
}

// Connect handles POST /v1/sessions.
func (s *Server) Connect(w http.ResponseWriter, r *http.Request, params CallerParams) {
	var req ConnectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CandidateID == "" {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, "candidate_id is required")
		return
	}

	res, err := s.svc.Sessions.Connect(r.Context(), sessionuc.ConnectRequest{
		CallerID:    params.CallerID,
		CandidateID: req.CandidateID,
		Context:     req.Context,
		Annotation:  derefString(req.Annotation),
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
		w.Header().Set("Location", "/v1/sessions/"+res.Session.ID())
	}
	writeJSON(w, status, viewToDTO(res.Session.ViewFor(params.CallerID, s.now())))
}

// GetSession handles GET /v1/sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request, id SessionID, params CallerParams) {
	view, err := s.svc.Sessions.Describe(r.Context(), id, params.CallerID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewToDTO(view))
}

// CloseSession handles POST and PATCH /v1/sessions/{id}/close.
func (s *Server) CloseSession(w http.ResponseWriter, r *http.Request, id SessionID, params CallerParams) {
	res, err := s.svc.Sessions.Close(r.Context(), id, params.CallerID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CloseSessionResponse{Closed: res.Closed, Ended: res.Ended})
}

// ListMessages handles GET /v1/sessions/{id}/messages.
func (s *Server) ListMessages(w http.ResponseWriter, r *http.Request, id SessionID, params ListMessagesParams) {
	page, err := s.svc.Messages.Pull(r.Context(), messageuc.PullRequest{
		SessionID: id,
		CallerID:  params.CallerID,
		Cursor:    derefString(params.Cursor),
		Limit:     derefInt(params.Limit),
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]Message, len(page.Messages))
	for i, m := range page.Messages {
		items[i] = messageToDTO(m)
	}
	writeJSON(w, http.StatusOK, MessagePageResponse{
		Items:      items,
		NextCursor: page.Next.String(),
		HasMore:    page.HasMore,
	})
}

// SendMessage handles POST /v1/sessions/{id}/messages.
func (s *Server) SendMessage(w http.ResponseWriter, r *http.Request, id SessionID, params SendMessageParams) {
	var req SendMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	msg, err := s.svc.Messages.Append(r.Context(), messageuc.AppendRequest{
		SessionID:      id,
		SenderID:       params.CallerID,
		Content:        req.Content,
		IdempotencyKey: derefString(params.IdempotencyKey),
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageToDTO(msg))
}

// GetUsage handles GET /v1/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request, params GetUsageParams) {
	period, ok := domusage.ParsePeriod(derefString(params.Period))
	if !ok {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, "period must be day or month")
		return
	}

	report := s.svc.Usage.GetReport(r.Context(), period)
	b := report.Budget()

	resp := UsageResponse{
		Period:   string(report.Period()),
		Provider: report.Provider(),
		Budget: BudgetStatus{
			TokensLimit:     b.TokensLimit,
			TokensUsed:      b.TokensUsed,
			TokensRemaining: b.TokensRemaining,
			IsExhausted:     b.IsExhausted(),
		},
	}
	if report.PeriodStart() > 0 {
		start := time.UnixMilli(report.PeriodStart()).UTC()
		end := time.UnixMilli(report.PeriodEnd()).UTC()
		resp.PeriodStartAt = &start
		resp.PeriodEndAt = &end
	}
	if b.ResetsAt > 0 {
		resetsAt := time.UnixMilli(b.ResetsAt).UTC()
		resp.Budget.ResetsAt = &resetsAt
	}

	writeJSON(w, http.StatusOK, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidSchema,
		domain.ErrVectorDimMismatch,
		domain.ErrEmptyContent,
		domain.ErrSelfMatch,
		domain.ErrNoProfileVector,
		domain.ErrInvalidCursor,
		domain.ErrUnauthenticated,
		domain.ErrForbidden,
		domain.ErrSessionNotFound,
		domain.ErrContextNotFound,
		domain.ErrNotFound,
		domain.ErrAlreadyExists,
		domain.ErrDuplicateRequest,
		domain.ErrSessionEnded,
		domain.ErrMatchingUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// verbatimHandler is a sentinelHandler that returns the full validation message.
func verbatimHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

// dimMismatchHandler reports expected and actual dimensions.
func dimMismatchHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		return false
	}
	var dme *domain.DimMismatchError
	if errors.As(err, &dme) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code":     ErrorResponseCodeVectorDimMismatch,
			"message":  dme.Error(),
			"expected": dme.Expected,
			"actual":   dme.Actual,
		})
		return true
	}
	writeError(w, http.StatusBadRequest, ErrorResponseCodeVectorDimMismatch, domain.ErrVectorDimMismatch.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, safeDomainMessage(err))
}

func contextToDTO(mc dommc.Context) MatchContext {
	return MatchContext{
		Name:             mc.Name(),
		VectorDimensions: mc.VectorDim(),
		CreatedAt:        time.UnixMilli(mc.CreatedAt()).UTC(),
	}
}

func viewToDTO(v domsession.View) Session {
	return Session{
		ID:            v.ID,
		Counterpart:   v.Counterpart,
		Status:        string(v.Status),
		Annotation:    v.Annotation,
		CreatedAt:     v.CreatedAt.UTC(),
		ExpiresAt:     v.ExpiresAt.UTC(),
		ClosedByMe:    v.ClosedByMe,
		ClosedByOther: v.ClosedByOther,
		IsExpired:     v.IsExpired,
		IsEnded:       v.IsEnded,
	}
}

func messageToDTO(m dommsg.Message) Message {
	return Message{
		ID:        m.ID,
		SessionID: m.SessionID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func batchResultToDTO(r dombatch.Result) BatchResultItem {
	item := BatchResultItem{UserID: r.UserID(), Status: string(r.Status())}
	if r.Err() != nil {
		code := batchErrorCode(r.Err())
		msg := r.Err().Error()
		if code == ErrorResponseCodeInternalError {
			msg = safeDomainMessage(r.Err())
		}
		item.Error = &ErrorResponse{Code: code, Message: msg}
	}
	return item
}

func batchErrorCode(err error) ErrorResponseCode {
	switch {
	case errors.Is(err, domain.ErrVectorDimMismatch):
		return ErrorResponseCodeVectorDimMismatch
	case errors.Is(err, domain.ErrInvalidSchema):
		return ErrorResponseCodeValidationFailed
	case errors.Is(err, domain.ErrContextNotFound):
		return ErrorResponseCodeContextNotFound
	default:
		return ErrorResponseCodeInternalError
	}
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
