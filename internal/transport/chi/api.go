package chi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// DefaultCallerHeader carries the authenticated end-user id set by the trusted gateway.
const DefaultCallerHeader = "X-User-ID"

// ContextName is a matching context path parameter.
type ContextName = string

// UserID is a profile path parameter.
type UserID = string

// SessionID is a match session path parameter.
type SessionID = string

// CallerParams carries the trusted caller identity of participant routes.
type CallerParams struct {
	CallerID string
}

// DiscoverParams defines parameters for Discover.
type DiscoverParams struct {
	CallerID string
	Context  string
	Count    *int
	Labels   *[]string
}

// ListSessionsParams defines parameters for ListSessions.
type ListSessionsParams struct {
	CallerID string
	Limit    *int
}

// ListMessagesParams defines parameters for ListMessages.
type ListMessagesParams struct {
	CallerID string
	Cursor   *string
	Limit    *int
}

// SendMessageParams defines parameters for SendMessage.
type SendMessageParams struct {
	CallerID       string
	IdempotencyKey *string
}

// GetUsageParams defines parameters for GetUsage.
type GetUsageParams struct {
	Period *string
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (GET /health)
	HealthCheck(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	Metrics(w http.ResponseWriter, r *http.Request)
	// (POST /v1/contexts)
	CreateContext(w http.ResponseWriter, r *http.Request)
	// (GET /v1/contexts)
	ListContexts(w http.ResponseWriter, r *http.Request)
	// (GET /v1/contexts/{context})
	GetContext(w http.ResponseWriter, r *http.Request, contextName ContextName)
	// (DELETE /v1/contexts/{context})
	DeleteContext(w http.ResponseWriter, r *http.Request, contextName ContextName)
	// (PUT /v1/contexts/{context}/embeddings/{user_id})
	UpsertEmbedding(w http.ResponseWriter, r *http.Request, contextName ContextName, userID UserID)
	// (POST /v1/contexts/{context}/embeddings/batch)
	BatchUpsertEmbeddings(w http.ResponseWriter, r *http.Request, contextName ContextName)
	// (PUT /v1/profiles/{user_id})
	UpsertProfile(w http.ResponseWriter, r *http.Request, userID UserID)
	// (GET /v1/discover)
	Discover(w http.ResponseWriter, r *http.Request, params DiscoverParams)
	// (GET /v1/sessions)
	ListSessions(w http.ResponseWriter, r *http.Request, params ListSessionsParams)
	// (POST /v1/sessions)
	Connect(w http.ResponseWriter, r *http.Request, params CallerParams)
	// (GET /v1/sessions/{id})
	GetSession(w http.ResponseWriter, r *http.Request, id SessionID, params CallerParams)
	// (POST|PATCH /v1/sessions/{id}/close)
	CloseSession(w http.ResponseWriter, r *http.Request, id SessionID, params CallerParams)
	// (GET /v1/sessions/{id}/messages)
	ListMessages(w http.ResponseWriter, r *http.Request, id SessionID, params ListMessagesParams)
	// (POST /v1/sessions/{id}/messages)
	SendMessage(w http.ResponseWriter, r *http.Request, id SessionID, params SendMessageParams)
	// (GET /v1/sessions/{id}/stream)
	StreamSession(w http.ResponseWriter, r *http.Request, id SessionID, params CallerParams)
	// (GET /v1/usage)
	GetUsage(w http.ResponseWriter, r *http.Request, params GetUsageParams)
}

// MiddlewareFunc wraps a single operation handler.
type MiddlewareFunc func(http.Handler) http.Handler

// ServerInterfaceWrapper binds path, query and header parameters before dispatching.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
	CallerHeader       string
}

// InvalidParamFormatError is returned when a parameter cannot be bound.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// RequiredHeaderError is returned when a required header is absent.
type RequiredHeaderError struct {
	ParamName string
}

func (e *RequiredHeaderError) Error() string {
	return fmt.Sprintf("Header parameter %s is required, but not found", e.ParamName)
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, h http.HandlerFunc) {
	var handler http.Handler = h
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

func (siw *ServerInterfaceWrapper) pathParam(r *http.Request, name string, dest *string) error {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return &InvalidParamFormatError{ParamName: name, Err: err}
	}
	return nil
}

func (siw *ServerInterfaceWrapper) callerParam(r *http.Request, dest *string) error {
	header := siw.CallerHeader
	if header == "" {
		header = DefaultCallerHeader
	}
	valueList, found := r.Header[http.CanonicalHeaderKey(header)]
	if !found || len(valueList) == 0 || valueList[0] == "" {
		return &RequiredHeaderError{ParamName: header}
	}
	if len(valueList) != 1 {
		return &InvalidParamFormatError{
			ParamName: header,
			Err:       fmt.Errorf("expected one value for %s, got %d", header, len(valueList)),
		}
	}
	err := runtime.BindStyledParameterWithOptions("simple", header, valueList[0], dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationHeader, Explode: false, Required: true})
	if err != nil {
		return &InvalidParamFormatError{ParamName: header, Err: err}
	}
	return nil
}

func queryParam(r *http.Request, name string, required bool, explode bool, dest any) error {
	if err := runtime.BindQueryParameter("form", explode, required, name, r.URL.Query(), dest); err != nil {
		return &InvalidParamFormatError{ParamName: name, Err: err}
	}
	return nil
}

// HealthCheck operation middleware
func (siw *ServerInterfaceWrapper) HealthCheck(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.HealthCheck)
}

// Metrics operation middleware
func (siw *ServerInterfaceWrapper) Metrics(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.Metrics)
}

// CreateContext operation middleware
func (siw *ServerInterfaceWrapper) CreateContext(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.CreateContext)
}

// ListContexts operation middleware
func (siw *ServerInterfaceWrapper) ListContexts(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.ListContexts)
}

// GetContext operation middleware
func (siw *ServerInterfaceWrapper) GetContext(w http.ResponseWriter, r *http.Request) {
	var contextName ContextName
	if err := siw.pathParam(r, "context", &contextName); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetContext(w, r, contextName)
	})
}

// DeleteContext operation middleware
func (siw *ServerInterfaceWrapper) DeleteContext(w http.ResponseWriter, r *http.Request) {
	var contextName ContextName
	if err := siw.pathParam(r, "context", &contextName); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DeleteContext(w, r, contextName)
	})
}

// UpsertEmbedding operation middleware
func (siw *ServerInterfaceWrapper) UpsertEmbedding(w http.ResponseWriter, r *http.Request) {
	var contextName ContextName
	if err := siw.pathParam(r, "context", &contextName); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	var userID UserID
	if err := siw.pathParam(r, "user_id", &userID); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.UpsertEmbedding(w, r, contextName, userID)
	})
}

// BatchUpsertEmbeddings operation middleware
func (siw *ServerInterfaceWrapper) BatchUpsertEmbeddings(w http.ResponseWriter, r *http.Request) {
	var contextName ContextName
	if err := siw.pathParam(r, "context", &contextName); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.BatchUpsertEmbeddings(w, r, contextName)
	})
}

// UpsertProfile operation middleware
func (siw *ServerInterfaceWrapper) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	var userID UserID
	if err := siw.pathParam(r, "user_id", &userID); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.UpsertProfile(w, r, userID)
	})
}

// Discover operation middleware
func (siw *ServerInterfaceWrapper) Discover(w http.ResponseWriter, r *http.Request) {
	var params DiscoverParams
	if err := siw.callerParam(r, &params.CallerID); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	if err := queryParam(r, "context", true, true, &params.Context); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	if err := queryParam(r, "count", false, true, &params.Count); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	if err := queryParam(r, "labels", false, false, &params.Labels); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.Discover(w, r, params)
	})
}

// ListSessions operation middleware
func (siw *ServerInterfaceWrapper) ListSessions(w http.ResponseWriter, r *http.Request) {
	var params ListSessionsParams
	if err := siw.callerParam(r, &params.CallerID); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	if err := queryParam(r, "limit", false, true, &params.Limit); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListSessions(w, r, params)
	})
}

// Connect operation middleware
func (siw *ServerInterfaceWrapper) Connect(w http.ResponseWriter, r *http.Request) {
	var params CallerParams
	if err := siw.callerParam(r, &params.CallerID); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.Connect(w, r, params)
	})
}

func (siw *ServerInterfaceWrapper) sessionOp(
	w http.ResponseWriter, r *http.Request,
	op func(w http.ResponseWriter, r *http.Request, id SessionID, params CallerParams),
) {
	var id SessionID
	if err := siw.pathParam(r, "id", &id); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	var params CallerParams
	if err := siw.callerParam(r, &params.CallerID); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		op(w, r, id, params)
	})
}

// GetSession operation middleware
func (siw *ServerInterfaceWrapper) GetSession(w http.ResponseWriter, r *http.Request) {
	siw.sessionOp(w, r, siw.Handler.GetSession)
}

// CloseSession operation middleware
func (siw *ServerInterfaceWrapper) CloseSession(w http.ResponseWriter, r *http.Request) {
	siw.sessionOp(w, r, siw.Handler.CloseSession)
}

// StreamSession operation middleware
func (siw *ServerInterfaceWrapper) StreamSession(w http.ResponseWriter, r *http.Request) {
	siw.sessionOp(w, r, siw.Handler.StreamSession)
}

// ListMessages operation middleware
func (siw *ServerInterfaceWrapper) ListMessages(w http.ResponseWriter, r *http.Request) {
	var id SessionID
	if err := siw.pathParam(r, "id", &id); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	var params ListMessagesParams
	if err := siw.callerParam(r, &params.CallerID); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	if err := queryParam(r, "cursor", false, true, &params.Cursor); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	if err := queryParam(r, "limit", false, true, &params.Limit); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListMessages(w, r, id, params)
	})
}

// SendMessage operation middleware
func (siw *ServerInterfaceWrapper) SendMessage(w http.ResponseWriter, r *http.Request) {
	var id SessionID
	if err := siw.pathParam(r, "id", &id); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	var params SendMessageParams
	if err := siw.callerParam(r, &params.CallerID); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		params.IdempotencyKey = &key
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.SendMessage(w, r, id, params)
	})
}

// GetUsage operation middleware
func (siw *ServerInterfaceWrapper) GetUsage(w http.ResponseWriter, r *http.Request) {
	var params GetUsageParams
	if err := queryParam(r, "period", false, true, &params.Period); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetUsage(w, r, params)
	})
}

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	CallerHeader     string
}

// Handler creates an http.Handler with routing matching the API.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerWithOptions creates an http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = DefaultParamErrorHandler
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
		CallerHeader:       options.CallerHeader,
	}
	base := options.BaseURL

	r.Get(base+"/health", wrapper.HealthCheck)
	r.Get(base+"/metrics", wrapper.Metrics)

	v1 := base + "/v1"
	r.Post(v1+"/contexts", wrapper.CreateContext)
	r.Get(v1+"/contexts", wrapper.ListContexts)
	r.Get(v1+"/contexts/{context}", wrapper.GetContext)
	r.Delete(v1+"/contexts/{context}", wrapper.DeleteContext)
	r.Put(v1+"/contexts/{context}/embeddings/{user_id}", wrapper.UpsertEmbedding)
	r.Post(v1+"/contexts/{context}/embeddings/batch", wrapper.BatchUpsertEmbeddings)
	r.Put(v1+"/profiles/{user_id}", wrapper.UpsertProfile)
	r.Get(v1+"/discover", wrapper.Discover)
	r.Get(v1+"/sessions", wrapper.ListSessions)
	r.Post(v1+"/sessions", wrapper.Connect)
	r.Get(v1+"/sessions/{id}", wrapper.GetSession)
	r.Post(v1+"/sessions/{id}/close", wrapper.CloseSession)
	r.Patch(v1+"/sessions/{id}/close", wrapper.CloseSession)
	r.Get(v1+"/sessions/{id}/messages", wrapper.ListMessages)
	r.Post(v1+"/sessions/{id}/messages", wrapper.SendMessage)
	r.Get(v1+"/sessions/{id}/stream", wrapper.StreamSession)
	r.Get(v1+"/usage", wrapper.GetUsage)

	return r
}

// DefaultParamErrorHandler maps a missing caller header to 401 and any other binding failure to 400.
func DefaultParamErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	var reqHeader *RequiredHeaderError
	if errors.As(err, &reqHeader) {
		writeError(w, http.StatusUnauthorized, ErrorResponseCodeUnauthenticated, reqHeader.Error())
		return
	}
	writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, err.Error())
}
