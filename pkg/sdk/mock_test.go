package rendezvous

import (
	"context"
	"fmt"
	"sync"
	"time"

	dombatch "github.com/kailas-cloud/rendezvous/internal/domain/batch"
	dommc "github.com/kailas-cloud/rendezvous/internal/domain/matchctx"
	dommsg "github.com/kailas-cloud/rendezvous/internal/domain/message"
	domprofile "github.com/kailas-cloud/rendezvous/internal/domain/profile"
	domsession "github.com/kailas-cloud/rendezvous/internal/domain/session"
	discoveryuc "github.com/kailas-cloud/rendezvous/internal/usecase/discovery"
	messageuc "github.com/kailas-cloud/rendezvous/internal/usecase/message"
	profileuc "github.com/kailas-cloud/rendezvous/internal/usecase/profile"
	sessionuc "github.com/kailas-cloud/rendezvous/internal/usecase/session"
)

// --- contextUseCase mock ---

type mockContextUC struct {
	createFn func(ctx context.Context, name string, vectorDim int) (dommc.Context, error)
	getFn    func(ctx context.Context, name string) (dommc.Context, error)
	listFn   func(ctx context.Context) ([]dommc.Context, error)
	deleteFn func(ctx context.Context, name string) error
}

func (m *mockContextUC) Create(ctx context.Context, name string, vectorDim int) (dommc.Context, error) {
	return m.createFn(ctx, name, vectorDim)
}

func (m *mockContextUC) Get(ctx context.Context, name string) (dommc.Context, error) {
	return m.getFn(ctx, name)
}

func (m *mockContextUC) List(ctx context.Context) ([]dommc.Context, error) {
	return m.listFn(ctx)
}

func (m *mockContextUC) Delete(ctx context.Context, name string) error {
	return m.deleteFn(ctx, name)
}

// --- profileUseCase mock ---

type mockProfileUC struct {
	upsertFn     func(ctx context.Context, userID, summary, displayName string, flagged bool) (domprofile.Profile, error)
	getFn        func(ctx context.Context, userID string) (domprofile.Profile, error)
	embeddingFn  func(ctx context.Context, contextName string, in profileuc.EmbeddingInput) error
	embeddingsFn func(ctx context.Context, contextName string, items []profileuc.EmbeddingInput) []dombatch.Result
}

func (m *mockProfileUC) UpsertProfile(
	ctx context.Context, userID, summary, displayName string, flagged bool,
) (domprofile.Profile, error) {
	return m.upsertFn(ctx, userID, summary, displayName, flagged)
}

func (m *mockProfileUC) GetProfile(ctx context.Context, userID string) (domprofile.Profile, error) {
	return m.getFn(ctx, userID)
}

func (m *mockProfileUC) UpsertEmbedding(ctx context.Context, contextName string, in profileuc.EmbeddingInput) error {
	return m.embeddingFn(ctx, contextName, in)
}

func (m *mockProfileUC) UpsertEmbeddings(
	ctx context.Context, contextName string, items []profileuc.EmbeddingInput,
) []dombatch.Result {
	return m.embeddingsFn(ctx, contextName, items)
}

// --- discoveryUseCase mock ---

type mockDiscoveryUC struct {
	discoverFn func(ctx context.Context, req discoveryuc.Request) ([]discoveryuc.Match, error)
}

func (m *mockDiscoveryUC) Discover(ctx context.Context, req discoveryuc.Request) ([]discoveryuc.Match, error) {
	return m.discoverFn(ctx, req)
}

// --- sessionUseCase mock ---

type mockSessionUC struct {
	connectFn  func(ctx context.Context, req sessionuc.ConnectRequest) (sessionuc.ConnectResult, error)
	describeFn func(ctx context.Context, sessionID, callerID string) (domsession.View, error)
	closeFn    func(ctx context.Context, sessionID, callerID string) (domsession.CloseResult, error)
	listFn     func(ctx context.Context, callerID string, limit int) ([]domsession.View, error)
}

func (m *mockSessionUC) Connect(ctx context.Context, req sessionuc.ConnectRequest) (sessionuc.ConnectResult, error) {
	return m.connectFn(ctx, req)
}

func (m *mockSessionUC) Describe(ctx context.Context, sessionID, callerID string) (domsession.View, error) {
	return m.describeFn(ctx, sessionID, callerID)
}

func (m *mockSessionUC) Close(ctx context.Context, sessionID, callerID string) (domsession.CloseResult, error) {
	return m.closeFn(ctx, sessionID, callerID)
}

func (m *mockSessionUC) List(ctx context.Context, callerID string, limit int) ([]domsession.View, error) {
	return m.listFn(ctx, callerID, limit)
}

// --- in-memory message log ---

// memLog is a session log that serves pull from a slice and push from a channel.
// Push only sees what tests send on events, so gaps between the paths are explicit.
type memLog struct {
	mu       sync.Mutex
	msgs     []dommsg.Message
	seq      int
	pageSize int
	pulls    int
	events   chan dommsg.Event
	appendFn func(req messageuc.AppendRequest) error
}

func newMemLog() *memLog {
	return &memLog{pageSize: 2, events: make(chan dommsg.Event, 16)}
}

// add writes a message to the log without pushing it.
func (l *memLog) add(sender, content string) dommsg.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	m := dommsg.Message{
		ID:        fmt.Sprintf("%d-0", 1000+l.seq),
		SessionID: "s-1",
		SenderID:  sender,
		Content:   content,
		CreatedAt: time.UnixMilli(int64(1000 + l.seq)).UTC(),
	}
	l.msgs = append(l.msgs, m)
	return m
}

func (l *memLog) Append(_ context.Context, req messageuc.AppendRequest) (dommsg.Message, error) {
	if l.appendFn != nil {
		if err := l.appendFn(req); err != nil {
			return dommsg.Message{}, err
		}
	}
	return l.add(req.SenderID, req.Content), nil
}

func (l *memLog) Pull(_ context.Context, req messageuc.PullRequest) (dommsg.Page, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pulls++

	cursor, err := dommsg.ParseCursor(req.Cursor)
	if err != nil {
		return dommsg.Page{}, err
	}
	var after []dommsg.Message
	for _, m := range l.msgs {
		if req.Cursor == "" || dommsg.CompareIDs(m.ID, req.Cursor) > 0 {
			after = append(after, m)
		}
	}
	page := dommsg.Page{Next: cursor}
	if len(after) > l.pageSize {
		after = after[:l.pageSize]
		page.HasMore = true
	}
	page.Messages = after
	if n := len(after); n > 0 {
		page.Next = dommsg.AfterID(after[n-1].ID)
	}
	return page, nil
}

func (l *memLog) Subscribe(context.Context, string, string) (<-chan dommsg.Event, error) {
	return l.events, nil
}

func (l *memLog) push(m dommsg.Message) {
	l.events <- dommsg.Event{Type: dommsg.EventMessage, SessionID: m.SessionID, Message: &m, At: m.CreatedAt}
}

func (l *memLog) pullCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pulls
}
