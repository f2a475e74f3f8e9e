// Package session implements connect, close, describe and listing of match sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rendezvous/internal/domain"
	dommsg "github.com/kailas-cloud/rendezvous/internal/domain/message"
	domprofile "github.com/kailas-cloud/rendezvous/internal/domain/profile"
	domsession "github.com/kailas-cloud/rendezvous/internal/domain/session"
	"github.com/kailas-cloud/rendezvous/internal/metrics"
)

// ConnectRequest asks for a session between the caller and a chosen candidate.
type ConnectRequest struct {
	CallerID    string
	CandidateID string
	Context     string // used only to write the annotation
	Annotation  string
}

// ConnectResult is the session returned by Connect.
type ConnectResult struct {
	Session domsession.Session
	Created bool
}

// Service is the match session manager.
type Service struct {
	repo      Repository
	profiles  Profiles
	blurber   Blurber
	publisher Publisher
	ttl       time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a session service. profiles, blurber and publisher may be nil.
func New(
	repo Repository, profiles Profiles, blurber Blurber, publisher Publisher,
	ttl time.Duration, logger *zap.Logger,
) *Service {
	if ttl <= 0 {
		ttl = domsession.DefaultTTL
	}
	return &Service{
		repo:      repo,
		profiles:  profiles,
		blurber:   blurber,
		publisher: publisher,
		ttl:       ttl,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Connect returns the live session of the pair, creating it when there is none.
// Repeated calls in either order return the same session until it ends.
func (s *Service) Connect(ctx context.Context, req ConnectRequest) (ConnectResult, error) {
	if req.CandidateID == "" {
		return ConnectResult{}, fmt.Errorf("validate connect: %w: candidate id is required", domain.ErrInvalidSchema)
	}
	now := s.now()
	candidate, err := domsession.New(uuid.NewString(), req.CallerID, req.CandidateID, now, s.ttl, req.Annotation)
	if err != nil {
		return ConnectResult{}, fmt.Errorf("validate connect: %w", err)
	}

	// Accepted connects run to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	sess, created, err := s.repo.CreateOrGet(ctx, candidate, now)
	if err != nil {
		return ConnectResult{}, fmt.Errorf("connect %s/%s: %w", req.CallerID, req.CandidateID, err)
	}
	if !created {
		metrics.SessionsCreatedTotal.WithLabelValues("reused").Inc()
		return ConnectResult{Session: sess}, nil
	}
	metrics.SessionsCreatedTotal.WithLabelValues("created").Inc()

	if sess.Annotation() == "" && s.blurber != nil {
		sess = s.annotate(ctx, sess, req.Context)
	}

	s.logger.Info("Session created",
		zap.String("session_id", sess.ID()),
		zap.String("user_a", sess.UserA()),
		zap.String("user_b", sess.UserB()),
		zap.Time("expires_at", sess.ExpiresAt()),
	)
	return ConnectResult{Session: sess, Created: true}, nil
}

func (s *Service) annotate(ctx context.Context, sess domsession.Session, contextName string) domsession.Session {
	var summaryA, summaryB string
	if s.profiles != nil {
		profiles, err := s.profiles.GetProfiles(ctx, []string{sess.UserA(), sess.UserB()})
		if err != nil {
			s.logger.Warn("Failed to load profiles for annotation", zap.String("session_id", sess.ID()), zap.Error(err))
			profiles = map[string]domprofile.Profile{}
		}
		summaryA = profiles[sess.UserA()].Summary()
		summaryB = profiles[sess.UserB()].Summary()
	}

	sess = sess.WithAnnotation(s.blurber.Blurb(ctx, contextName, summaryA, summaryB))
	if err := s.repo.SetAnnotation(ctx, sess.ID(), sess.Annotation()); err != nil {
		s.logger.Warn("Failed to store annotation", zap.String("session_id", sess.ID()), zap.Error(err))
	}
	return sess
}

// Close records the caller's close. Closing twice is a no-op.
// When both participants have closed, the pair lock is released and session_ended is pushed.
func (s *Service) Close(ctx context.Context, sessionID, callerID string) (domsession.CloseResult, error) {
	sess, err := s.load(ctx, sessionID, callerID)
	if err != nil {
		return domsession.CloseResult{}, err
	}

	if me, _ := sess.ClosedBy(callerID); me {
		return domsession.CloseResult{Closed: true, Ended: sess.IsEnded(s.now())}, nil
	}

	ctx = context.WithoutCancel(ctx)
	updated, err := s.repo.MarkClosed(ctx, sess, callerID)
	if err != nil {
		return domsession.CloseResult{}, fmt.Errorf("close %s: %w", sessionID, err)
	}

	now := s.now()
	if updated.Status() == domsession.StatusClosed {
		s.finish(ctx, updated, now)
	}

	s.logger.Info("Session close recorded",
		zap.String("session_id", sessionID),
		zap.String("caller", callerID),
		zap.String("status", string(updated.Status())),
	)
	return domsession.CloseResult{Closed: true, Ended: updated.IsEnded(now)}, nil
}

func (s *Service) finish(ctx context.Context, sess domsession.Session, now time.Time) {
	if err := s.repo.ReleasePair(ctx, sess); err != nil {
		s.logger.Warn("Failed to release pair lock", zap.String("session_id", sess.ID()), zap.Error(err))
	}
	if s.publisher == nil {
		return
	}
	event := dommsg.Event{Type: dommsg.EventSessionEnded, SessionID: sess.ID(), At: now}
	if err := s.publisher.Publish(ctx, event); err != nil {
		metrics.PushDroppedTotal.WithLabelValues("publish_error").Inc()
		s.logger.Warn("Failed to publish session end", zap.String("session_id", sess.ID()), zap.Error(err))
	}
}

// Describe returns the caller's view of a session, computed at call time.
func (s *Service) Describe(ctx context.Context, sessionID, callerID string) (domsession.View, error) {
	sess, err := s.load(ctx, sessionID, callerID)
	if err != nil {
		return domsession.View{}, err
	}
	return sess.ViewFor(callerID, s.now()), nil
}

// List returns the caller's sessions, newest first.
func (s *Service) List(ctx context.Context, callerID string, limit int) ([]domsession.View, error) {
	if err := domprofile.ValidateID(callerID); err != nil {
		return nil, fmt.Errorf("validate caller: %w: %w", domain.ErrInvalidSchema, err)
	}
	sessions, err := s.repo.ListForUser(ctx, callerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions of %s: %w", callerID, err)
	}
	now := s.now()
	views := make([]domsession.View, len(sessions))
	for i, sess := range sessions {
		views[i] = sess.ViewFor(callerID, now)
	}
	return views, nil
}

// load returns ErrSessionNotFound for unknown ids and ErrForbidden for strangers.
func (s *Service) load(ctx context.Context, sessionID, callerID string) (domsession.Session, error) {
	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domsession.Session{}, err
		}
		return domsession.Session{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if !sess.HasParticipant(callerID) {
		return domsession.Session{}, domain.ErrForbidden
	}
	return sess, nil
}
