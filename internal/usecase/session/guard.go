package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/rendezvous/internal/domain"
	domsession "github.com/kailas-cloud/rendezvous/internal/domain/session"
)

// Guard checks session membership for every session-scoped operation.
type Guard struct {
	sessions Reader
}

// NewGuard creates a Guard.
func NewGuard(sessions Reader) *Guard {
	return &Guard{sessions: sessions}
}

// IsParticipant reports whether userID is one of the session's two participants.
// Unknown sessions yield false; only store failures return an error.
func (g *Guard) IsParticipant(ctx context.Context, sessionID, userID string) (bool, error) {
	s, err := g.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return s.HasParticipant(userID), nil
}

// Authorize returns the session when userID participates in it.
// Unknown sessions and strangers both get ErrForbidden.
func (g *Guard) Authorize(ctx context.Context, sessionID, userID string) (domsession.Session, error) {
	s, err := g.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domsession.Session{}, domain.ErrForbidden
		}
		return domsession.Session{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if !s.HasParticipant(userID) {
		return domsession.Session{}, domain.ErrForbidden
	}
	return s, nil
}
