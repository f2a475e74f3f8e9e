package rendezvous

import (
	"context"
	"fmt"
	"time"

	domsession "github.com/kailas-cloud/rendezvous/internal/domain/session"
	sessionuc "github.com/kailas-cloud/rendezvous/internal/usecase/session"
)

// SessionService runs the match session lifecycle.
type SessionService struct {
	svc sessionUseCase
	obs *observer
}

// Connect opens a session between the caller and a candidate, or returns the live one
// the pair already has. created reports which of the two happened.
func (s *SessionService) Connect(
	ctx context.Context, callerID, candidateID, contextName string,
) (_ Session, created bool, err error) {
	start := time.Now()
	defer func() { s.obs.observe("session.connect", start, err) }()

	res, err := s.svc.Connect(ctx, sessionuc.ConnectRequest{
		CallerID:    callerID,
		CandidateID: candidateID,
		Context:     contextName,
	})
	if err != nil {
		return Session{}, false, fmt.Errorf("connect: %w", err)
	}
	return fromInternalView(res.Session.ViewFor(callerID, time.Now())), res.Created, nil
}

// Get describes a session from the caller's side.
func (s *SessionService) Get(ctx context.Context, sessionID, callerID string) (_ Session, err error) {
	start := time.Now()
	defer func() { s.obs.observe("session.get", start, err) }()

	v, err := s.svc.Describe(ctx, sessionID, callerID)
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return fromInternalView(v), nil
}

// Close records the caller's close. Closing twice is a no-op.
func (s *SessionService) Close(ctx context.Context, sessionID, callerID string) (_ CloseResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe("session.close", start, err) }()

	res, err := s.svc.Close(ctx, sessionID, callerID)
	if err != nil {
		return CloseResult{}, fmt.Errorf("close session: %w", err)
	}
	return CloseResult(res), nil
}

// List returns the caller's most recent sessions, newest first.
func (s *SessionService) List(ctx context.Context, callerID string, limit int) (_ []Session, err error) {
	start := time.Now()
	defer func() { s.obs.observe("session.list", start, err) }()

	views, err := s.svc.List(ctx, callerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]Session, len(views))
	for i, v := range views {
		out[i] = fromInternalView(v)
	}
	return out, nil
}

func fromInternalView(v domsession.View) Session {
	return Session{
		ID:            v.ID,
		Counterpart:   v.Counterpart,
		Status:        SessionStatus(v.Status),
		Annotation:    v.Annotation,
		CreatedAt:     v.CreatedAt,
		ExpiresAt:     v.ExpiresAt,
		ClosedByMe:    v.ClosedByMe,
		ClosedByOther: v.ClosedByOther,
		IsExpired:     v.IsExpired,
		IsEnded:       v.IsEnded,
	}
}
