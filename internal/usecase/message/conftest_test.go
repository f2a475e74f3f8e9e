package message

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kailas-cloud/rendezvous/internal/domain"
	dommsg "github.com/kailas-cloud/rendezvous/internal/domain/message"
	domsession "github.com/kailas-cloud/rendezvous/internal/domain/session"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

// fakeRepo is an in-memory log. IDs follow the stream format "<ms>-<seq>".
type fakeRepo struct {
	mu       sync.Mutex
	clock    func() time.Time
	logs     map[string][]dommsg.Message
	lastMs   int64
	seq      int64
	nonces   map[string]string
	subs     map[string][]func(dommsg.Event)
	events   []dommsg.Event
	appendFn func() error
	pubErr   error
	released []string

	// subscribeGate holds new subscriptions back until it is closed.
	subscribeGate chan struct{}
	subscribeErr  error
}

func newFakeRepo(clock func() time.Time) *fakeRepo {
	return &fakeRepo{
		clock:  clock,
		logs:   map[string][]dommsg.Message{},
		nonces: map[string]string{},
		subs:   map[string][]func(dommsg.Event){},
	}
}

func (f *fakeRepo) Append(_ context.Context, sessionID, senderID, content string) (dommsg.Message, error) {
	if f.appendFn != nil {
		if err := f.appendFn(); err != nil {
			return dommsg.Message{}, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ms := f.clock().UnixMilli()
	if ms <= f.lastMs {
		ms = f.lastMs
		f.seq++
	} else {
		f.lastMs = ms
		f.seq = 0
	}
	id := fmt.Sprintf("%d-%d", ms, f.seq)
	createdAt, err := dommsg.IDTime(id)
	if err != nil {
		return dommsg.Message{}, err
	}
	msg := dommsg.Message{
		ID:        id,
		SessionID: sessionID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: createdAt,
	}
	f.logs[sessionID] = append(f.logs[sessionID], msg)
	return msg, nil
}

func (f *fakeRepo) Range(
	_ context.Context, sessionID string, cursor dommsg.Cursor, limit int,
) ([]dommsg.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	start := cursor.Start()
	var out []dommsg.Message
	for _, m := range f.logs[sessionID] {
		if !afterStart(m.ID, start) {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// afterStart mirrors XRANGE start semantics for "-", "(id" and "ms-seq".
func afterStart(id, start string) bool {
	switch {
	case start == "-":
		return true
	case start[0] == '(':
		return compareIDs(id, start[1:]) > 0
	default:
		return compareIDs(id, start) >= 0
	}
}

func compareIDs(a, b string) int {
	var ams, aseq, bms, bseq int64
	_, _ = fmt.Sscanf(a, "%d-%d", &ams, &aseq)
	_, _ = fmt.Sscanf(b, "%d-%d", &bms, &bseq)
	switch {
	case ams != bms:
		return sign(ams - bms)
	default:
		return sign(aseq - bseq)
	}
}

func sign(v int64) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

func (f *fakeRepo) GetByID(_ context.Context, sessionID, id string) (dommsg.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.logs[sessionID] {
		if m.ID == id {
			return m, nil
		}
	}
	return dommsg.Message{}, domain.ErrNotFound
}

func (f *fakeRepo) Publish(_ context.Context, e dommsg.Event) error {
	f.mu.Lock()
	f.events = append(f.events, e)
	subs := append([]func(dommsg.Event){}, f.subs[e.SessionID]...)
	err := f.pubErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	for _, fn := range subs {
		fn(e)
	}
	return nil
}

func (f *fakeRepo) Subscribe(ctx context.Context, sessionID string, ready func(), fn func(dommsg.Event)) error {
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	if f.subscribeGate != nil {
		select {
		case <-f.subscribeGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	f.subs[sessionID] = append(f.subs[sessionID], fn)
	f.mu.Unlock()
	ready()
	<-ctx.Done()
	f.mu.Lock()
	f.subs[sessionID] = nil
	f.mu.Unlock()
	return nil
}

func (f *fakeRepo) subscriberCount(sessionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[sessionID])
}

func (f *fakeRepo) publishedEvents() []dommsg.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]dommsg.Event{}, f.events...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

func (f *fakeRepo) ReserveNonce(
	_ context.Context, sessionID, senderID, nonce string, _ time.Duration,
) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := sessionID + "/" + senderID + "/" + nonce
	v, ok := f.nonces[key]
	switch {
	case !ok:
		f.nonces[key] = "pending"
		return "", true, nil
	case v == "pending":
		return "", false, domain.ErrDuplicateRequest
	default:
		return v, false, nil
	}
}

func (f *fakeRepo) CompleteNonce(
	_ context.Context, sessionID, senderID, nonce, messageID string, _ time.Duration,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonces[sessionID+"/"+senderID+"/"+nonce] = messageID
	return nil
}

func (f *fakeRepo) ReleaseNonce(_ context.Context, sessionID, senderID, nonce string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := sessionID + "/" + senderID + "/" + nonce
	delete(f.nonces, key)
	f.released = append(f.released, key)
	return nil
}

// fakeGuard authorizes participants of the sessions it holds.
type fakeGuard struct {
	sessions map[string]domsession.Session
}

func (g *fakeGuard) Authorize(_ context.Context, sessionID, userID string) (domsession.Session, error) {
	s, ok := g.sessions[sessionID]
	if !ok || !s.HasParticipant(userID) {
		return domsession.Session{}, domain.ErrForbidden
	}
	return s, nil
}
