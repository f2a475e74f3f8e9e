package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kailas-cloud/rendezvous/internal/domain"
	dommsg "github.com/kailas-cloud/rendezvous/internal/domain/message"
	domprofile "github.com/kailas-cloud/rendezvous/internal/domain/profile"
	domsession "github.com/kailas-cloud/rendezvous/internal/domain/session"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

// fakeRepo keeps sessions in memory with the same pair semantics as the Redis repository.
type fakeRepo struct {
	mu          sync.Mutex
	sessions    map[string]domsession.Session
	pairs       map[string]string
	markCalls   int
	released    []string
	annotations map[string]string
	getErr      error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		sessions:    map[string]domsession.Session{},
		pairs:       map[string]string{},
		annotations: map[string]string{},
	}
}

func (f *fakeRepo) CreateOrGet(
	_ context.Context, candidate domsession.Session, now time.Time,
) (domsession.Session, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk := domsession.PairKey(candidate.UserA(), candidate.UserB())
	if id, ok := f.pairs[pk]; ok {
		if s := f.sessions[id]; !s.IsEnded(now) {
			return s, false, nil
		}
	}
	f.sessions[candidate.ID()] = candidate
	f.pairs[pk] = candidate.ID()
	return candidate, true, nil
}

func (f *fakeRepo) Get(_ context.Context, id string) (domsession.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domsession.Session{}, f.getErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return domsession.Session{}, domain.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeRepo) MarkClosed(_ context.Context, s domsession.Session, userID string) (domsession.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls++
	updated, err := f.sessions[s.ID()].CloseFor(userID)
	if err != nil {
		return domsession.Session{}, err
	}
	f.sessions[s.ID()] = updated
	return updated, nil
}

func (f *fakeRepo) SetAnnotation(_ context.Context, id, annotation string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.annotations[id] = annotation
	f.sessions[id] = f.sessions[id].WithAnnotation(annotation)
	return nil
}

func (f *fakeRepo) ReleasePair(_ context.Context, s domsession.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk := domsession.PairKey(s.UserA(), s.UserB())
	if f.pairs[pk] == s.ID() {
		delete(f.pairs, pk)
	}
	f.released = append(f.released, s.ID())
	return nil
}

func (f *fakeRepo) ListForUser(_ context.Context, userID string, _ int) ([]domsession.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domsession.Session
	for _, s := range f.sessions {
		if s.HasParticipant(userID) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().After(out[j].CreatedAt()) })
	return out, nil
}

type fakeProfiles map[string]domprofile.Profile

func (f fakeProfiles) GetProfiles(_ context.Context, ids []string) (map[string]domprofile.Profile, error) {
	out := map[string]domprofile.Profile{}
	for _, id := range ids {
		if p, ok := f[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeBlurber struct {
	calls int
	last  [2]string
}

func (f *fakeBlurber) Blurb(_ context.Context, _ string, a, b string) string {
	f.calls++
	f.last = [2]string{a, b}
	return "Both like " + a
}

type fakePublisher struct {
	mu     sync.Mutex
	events []dommsg.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, e dommsg.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.err
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type fixture struct {
	repo    *fakeRepo
	blurber *fakeBlurber
	pub     *fakePublisher
	clock   *clock
	svc     *Service
}
