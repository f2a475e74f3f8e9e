package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	dombatch "github.com/kailas-cloud/rendezvous/internal/domain/batch"
	dommc "github.com/kailas-cloud/rendezvous/internal/domain/matchctx"
	dommsg "github.com/kailas-cloud/rendezvous/internal/domain/message"
	domprofile "github.com/kailas-cloud/rendezvous/internal/domain/profile"
	domsession "github.com/kailas-cloud/rendezvous/internal/domain/session"
	domusage "github.com/kailas-cloud/rendezvous/internal/domain/usage"
	discoveryuc "github.com/kailas-cloud/rendezvous/internal/usecase/discovery"
	healthuc "github.com/kailas-cloud/rendezvous/internal/usecase/health"
	messageuc "github.com/kailas-cloud/rendezvous/internal/usecase/message"
	profileuc "github.com/kailas-cloud/rendezvous/internal/usecase/profile"
	sessionuc "github.com/kailas-cloud/rendezvous/internal/usecase/session"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeContexts struct {
	created  []string
	getErr   error
	contexts []dommc.Context
}

func (f *fakeContexts) Create(_ context.Context, name string, dim int) (dommc.Context, error) {
	f.created = append(f.created, name)
	return dommc.Reconstruct(name, dim, testNow.UnixMilli()), nil
}

func (f *fakeContexts) Get(_ context.Context, name string) (dommc.Context, error) {
	if f.getErr != nil {
		return dommc.Context{}, f.getErr
	}
	return dommc.Reconstruct(name, 4, testNow.UnixMilli()), nil
}

func (f *fakeContexts) List(context.Context) ([]dommc.Context, error) { return f.contexts, nil }

func (f *fakeContexts) Delete(context.Context, string) error { return nil }

type fakeProfiles struct {
	embedErr    error
	batchResult []dombatch.Result
	lastBatch   []profileuc.EmbeddingInput
}

func (f *fakeProfiles) UpsertProfile(
	_ context.Context, userID, summary, displayName string, flagged bool,
) (domprofile.Profile, error) {
	return domprofile.Reconstruct(userID, summary, displayName, flagged), nil
}

func (f *fakeProfiles) UpsertEmbedding(context.Context, string, profileuc.EmbeddingInput) error {
	return f.embedErr
}

func (f *fakeProfiles) UpsertEmbeddings(
	_ context.Context, _ string, items []profileuc.EmbeddingInput,
) []dombatch.Result {
	f.lastBatch = items
	return f.batchResult
}

type fakeDiscovery struct {
	lastReq discoveryuc.Request
	matches []discoveryuc.Match
	err     error
}

func (f *fakeDiscovery) Discover(_ context.Context, req discoveryuc.Request) ([]discoveryuc.Match, error) {
	f.lastReq = req
	return f.matches, f.err
}

type fakeSessions struct {
	connectReq sessionuc.ConnectRequest
	created    bool
	err        error
	view       domsession.View
	closeRes   domsession.CloseResult
	views      []domsession.View
}

func (f *fakeSessions) Connect(_ context.Context, req sessionuc.ConnectRequest) (sessionuc.ConnectResult, error) {
	f.connectReq = req
	if f.err != nil {
		return sessionuc.ConnectResult{}, f.err
	}
	sess, err := domsession.New("s-1", req.CallerID, req.CandidateID, testNow, 10*time.Minute, req.Annotation)
	if err != nil {
		return sessionuc.ConnectResult{}, err
	}
	return sessionuc.ConnectResult{Session: sess, Created: f.created}, nil
}

func (f *fakeSessions) Describe(context.Context, string, string) (domsession.View, error) {
	return f.view, f.err
}

func (f *fakeSessions) Close(context.Context, string, string) (domsession.CloseResult, error) {
	return f.closeRes, f.err
}

func (f *fakeSessions) List(context.Context, string, int) ([]domsession.View, error) {
	return f.views, f.err
}

type fakeMessages struct {
	appendReq messageuc.AppendRequest
	pullReq   messageuc.PullRequest
	page      dommsg.Page
	err       error
	events    chan dommsg.Event
}

func (f *fakeMessages) Append(_ context.Context, req messageuc.AppendRequest) (dommsg.Message, error) {
	f.appendReq = req
	if f.err != nil {
		return dommsg.Message{}, f.err
	}
	return dommsg.Message{
		ID: "1772366400000-0", SessionID: req.SessionID, SenderID: req.SenderID,
		Content: req.Content, CreatedAt: testNow,
	}, nil
}

func (f *fakeMessages) Pull(_ context.Context, req messageuc.PullRequest) (dommsg.Page, error) {
	f.pullReq = req
	return f.page, f.err
}

func (f *fakeMessages) Subscribe(context.Context, string, string) (<-chan dommsg.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

type fakeUsage struct{}

func (fakeUsage) GetReport(_ context.Context, p domusage.Period) domusage.Report {
	return domusage.NewReport(p, 0, 0, "openai", domusage.Budget{TokensLimit: 100, TokensUsed: 100})
}

type fakeHealth struct{ report healthuc.Report }

func (f *fakeHealth) Check(context.Context) healthuc.Report { return f.report }

type fixture struct {
	contexts  *fakeContexts
	profiles  *fakeProfiles
	discovery *fakeDiscovery
	sessions  *fakeSessions
	messages  *fakeMessages
	health    *fakeHealth
	handler   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		contexts:  &fakeContexts{},
		profiles:  &fakeProfiles{},
		discovery: &fakeDiscovery{},
		sessions:  &fakeSessions{},
		messages:  &fakeMessages{events: make(chan dommsg.Event, 4)},
		health: &fakeHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
		}},
	}
	server := NewServer(Services{
		Contexts:  f.contexts,
		Profiles:  f.profiles,
		Discovery: f.discovery,
		Sessions:  f.sessions,
		Messages:  f.messages,
		Usage:     fakeUsage{},
		Health:    f.health,
	}, StreamConfig{PingInterval: time.Second}, zap.NewNop()).WithClock(func() time.Time { return testNow })

	f.handler = HandlerWithOptions(server, ChiServerOptions{BaseRouter: chi.NewRouter()})
	return f
}

func (f *fixture) do(method, path, caller, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != "" {
		req.Header.Set(DefaultCallerHeader, caller)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}
