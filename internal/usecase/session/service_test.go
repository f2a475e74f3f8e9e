package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rendezvous/internal/domain"
	dommsg "github.com/kailas-cloud/rendezvous/internal/domain/message"
	domprofile "github.com/kailas-cloud/rendezvous/internal/domain/profile"
	domsession "github.com/kailas-cloud/rendezvous/internal/domain/session"
)

func newFixture() *fixture {
	f := &fixture{
		repo:    newFakeRepo(),
		blurber: &fakeBlurber{},
		pub:     &fakePublisher{},
		clock:   &clock{now: t0},
	}
	profiles := fakeProfiles{
		"P1": domprofile.Reconstruct("P1", "hiking", "Pat", false),
		"P2": domprofile.Reconstruct("P2", "trail running", "Sam", false),
	}
	f.svc = New(f.repo, profiles, f.blurber, f.pub, 10*time.Minute, zap.NewNop()).WithClock(f.clock.Now)
	return f
}

func (f *fixture) connect(t *testing.T, caller, candidate string) ConnectResult {
	t.Helper()
	res, err := f.svc.Connect(context.Background(), ConnectRequest{CallerID: caller, CandidateID: candidate})
	require.NoError(t, err)
	return res
}

// --- Connect ---

func TestConnect_IdempotentInEitherOrder(t *testing.T) {
	f := newFixture()

	first := f.connect(t, "P1", "P2")
	require.True(t, first.Created)

	again := f.connect(t, "P1", "P2")
	reversed := f.connect(t, "P2", "P1")

	assert.False(t, again.Created)
	assert.False(t, reversed.Created)
	assert.Equal(t, first.Session.ID(), again.Session.ID())
	assert.Equal(t, first.Session.ID(), reversed.Session.ID())
}

func TestConnect_NewSessionState(t *testing.T) {
	f := newFixture()

	s := f.connect(t, "P1", "P2").Session
	assert.Equal(t, domsession.StatusActive, s.Status())
	assert.Equal(t, t0.Add(10*time.Minute), s.ExpiresAt())
	assert.False(t, s.ClosedByA())
	assert.False(t, s.ClosedByB())
	assert.NotEmpty(t, s.ID())
}

func TestConnect_GeneratesAnnotationOnCreate(t *testing.T) {
	f := newFixture()

	s := f.connect(t, "P1", "P2").Session
	assert.Equal(t, "Both like hiking", s.Annotation())
	assert.Equal(t, [2]string{"hiking", "trail running"}, f.blurber.last)
	assert.Equal(t, "Both like hiking", f.repo.annotations[s.ID()])

	f.connect(t, "P2", "P1")
	assert.Equal(t, 1, f.blurber.calls, "reused sessions are returned unchanged")
}

func TestConnect_KeepsSuppliedAnnotation(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Connect(context.Background(), ConnectRequest{
		CallerID: "P1", CandidateID: "P2", Annotation: "from discovery",
	})
	require.NoError(t, err)
	assert.Equal(t, "from discovery", res.Session.Annotation())
	assert.Zero(t, f.blurber.calls)
}

func TestConnect_Validation(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Connect(context.Background(), ConnectRequest{CallerID: "P1"})
	require.ErrorIs(t, err, domain.ErrInvalidSchema)

	_, err = f.svc.Connect(context.Background(), ConnectRequest{CallerID: "P1", CandidateID: "P1"})
	require.ErrorIs(t, err, domain.ErrSelfMatch)

	_, err = f.svc.Connect(context.Background(), ConnectRequest{CallerID: "bad id", CandidateID: "P2"})
	require.ErrorIs(t, err, domain.ErrInvalidSchema)
}

func TestConnect_AfterExpiryCreatesNewSession(t *testing.T) {
	f := newFixture()

	first := f.connect(t, "P1", "P2")
	f.clock.now = t0.Add(11 * time.Minute)
	second := f.connect(t, "P2", "P1")

	assert.True(t, second.Created)
	assert.NotEqual(t, first.Session.ID(), second.Session.ID())
}

// --- Close / Describe ---

func TestClose_OneSideThenDescribeForOther(t *testing.T) {
	f := newFixture()
	s := f.connect(t, "P1", "P2").Session
	ctx := context.Background()

	res, err := f.svc.Close(ctx, s.ID(), "P1")
	require.NoError(t, err)
	assert.Equal(t, domsession.CloseResult{Closed: true, Ended: false}, res)

	f.clock.now = t0.Add(5 * time.Minute)
	view, err := f.svc.Describe(ctx, s.ID(), "P2")
	require.NoError(t, err)
	assert.True(t, view.ClosedByOther)
	assert.False(t, view.ClosedByMe)
	assert.False(t, view.IsEnded)
	assert.Equal(t, "P1", view.Counterpart)
	assert.Empty(t, f.pub.events)
}

func TestClose_BothSidesEndsSession(t *testing.T) {
	f := newFixture()
	s := f.connect(t, "P1", "P2").Session
	ctx := context.Background()

	_, err := f.svc.Close(ctx, s.ID(), "P1")
	require.NoError(t, err)
	res, err := f.svc.Close(ctx, s.ID(), "P2")
	require.NoError(t, err)
	assert.True(t, res.Ended)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, dommsg.EventSessionEnded, f.pub.events[0].Type)
	assert.Equal(t, s.ID(), f.pub.events[0].SessionID)
	assert.Equal(t, []string{s.ID()}, f.repo.released)

	view, err := f.svc.Describe(ctx, s.ID(), "P1")
	require.NoError(t, err)
	assert.Equal(t, domsession.StatusClosed, view.Status)
	assert.True(t, view.IsEnded)

	// The pair can start over once the session ended.
	next := f.connect(t, "P1", "P2")
	assert.True(t, next.Created)
}

func TestClose_Idempotent(t *testing.T) {
	f := newFixture()
	s := f.connect(t, "P1", "P2").Session
	ctx := context.Background()

	for range 3 {
		res, err := f.svc.Close(ctx, s.ID(), "P1")
		require.NoError(t, err)
		assert.True(t, res.Closed)
		assert.False(t, res.Ended)
	}
	assert.Equal(t, 1, f.repo.markCalls)

	view, err := f.svc.Describe(ctx, s.ID(), "P1")
	require.NoError(t, err)
	assert.True(t, view.ClosedByMe)
	assert.Equal(t, domsession.StatusActive, view.Status)
}

func TestClose_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.pub.err = errors.New("pubsub down")
	s := f.connect(t, "P1", "P2").Session
	ctx := context.Background()

	_, err := f.svc.Close(ctx, s.ID(), "P1")
	require.NoError(t, err)
	res, err := f.svc.Close(ctx, s.ID(), "P2")
	require.NoError(t, err)
	assert.True(t, res.Ended)
}

func TestDescribe_ExpiredWithoutClose(t *testing.T) {
	f := newFixture()
	s := f.connect(t, "P1", "P2").Session

	f.clock.now = t0.Add(10 * time.Minute)
	view, err := f.svc.Describe(context.Background(), s.ID(), "P1")
	require.NoError(t, err)
	assert.True(t, view.IsExpired)
	assert.True(t, view.IsEnded)
	assert.Equal(t, domsession.StatusActive, view.Status)
}

func TestDescribe_EndedIsMonotonic(t *testing.T) {
	f := newFixture()
	s := f.connect(t, "P1", "P2").Session
	ctx := context.Background()

	f.clock.now = t0.Add(10 * time.Minute)
	for _, step := range []time.Duration{0, time.Second, time.Hour} {
		f.clock.now = f.clock.now.Add(step)
		view, err := f.svc.Describe(ctx, s.ID(), "P2")
		require.NoError(t, err)
		assert.True(t, view.IsEnded)
	}
	_, err := f.svc.Close(ctx, s.ID(), "P1")
	require.NoError(t, err)
	view, err := f.svc.Describe(ctx, s.ID(), "P2")
	require.NoError(t, err)
	assert.True(t, view.IsEnded)
}

func TestAccessErrors(t *testing.T) {
	f := newFixture()
	s := f.connect(t, "P1", "P2").Session
	ctx := context.Background()

	_, err := f.svc.Describe(ctx, "missing", "P1")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = f.svc.Describe(ctx, s.ID(), "P3")
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Close(ctx, s.ID(), "P3")
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Close(ctx, "missing", "P1")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

// --- List ---

func TestList_NewestFirstWithDerivedState(t *testing.T) {
	f := newFixture()
	older := f.connect(t, "P1", "P2").Session
	f.clock.now = t0.Add(time.Minute)
	newer := f.connect(t, "P3", "P1").Session

	f.clock.now = t0.Add(10*time.Minute + time.Second)
	views, err := f.svc.List(context.Background(), "P1", 0)
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, newer.ID(), views[0].ID)
	assert.Equal(t, "P3", views[0].Counterpart)
	assert.False(t, views[0].IsEnded)
	assert.Equal(t, older.ID(), views[1].ID)
	assert.True(t, views[1].IsEnded)
}

// --- Guard ---

func TestGuard(t *testing.T) {
	f := newFixture()
	s := f.connect(t, "P1", "P2").Session
	g := NewGuard(f.repo)
	ctx := context.Background()

	ok, err := g.IsParticipant(ctx, s.ID(), "P2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.IsParticipant(ctx, s.ID(), "P3")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.IsParticipant(ctx, "missing", "P1")
	require.NoError(t, err, "unknown sessions are not an error")
	assert.False(t, ok)

	_, err = g.Authorize(ctx, "missing", "P1")
	require.ErrorIs(t, err, domain.ErrForbidden)
	_, err = g.Authorize(ctx, s.ID(), "P3")
	require.ErrorIs(t, err, domain.ErrForbidden)

	got, err := g.Authorize(ctx, s.ID(), "P1")
	require.NoError(t, err)
	assert.Equal(t, s.ID(), got.ID())
}

func TestGuard_StoreError(t *testing.T) {
	repo := newFakeRepo()
	repo.getErr = errors.New("conn refused")
	g := NewGuard(repo)

	_, err := g.IsParticipant(context.Background(), "s1", "P1")
	require.Error(t, err)
	_, err = g.Authorize(context.Background(), "s1", "P1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrForbidden)
}
