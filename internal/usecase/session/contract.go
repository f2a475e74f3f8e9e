package session

import (
	"context"
	"time"

	dommsg "github.com/kailas-cloud/rendezvous/internal/domain/message"
	domprofile "github.com/kailas-cloud/rendezvous/internal/domain/profile"
	domsession "github.com/kailas-cloud/rendezvous/internal/domain/session"
)

// Reader loads sessions by id.
type Reader interface {
	Get(ctx context.Context, id string) (domsession.Session, error)
}

// Repository defines the storage contract for sessions.
type Repository interface {
	Reader
	CreateOrGet(ctx context.Context, candidate domsession.Session, now time.Time) (domsession.Session, bool, error)
	MarkClosed(ctx context.Context, s domsession.Session, userID string) (domsession.Session, error)
	SetAnnotation(ctx context.Context, id, annotation string) error
	ReleasePair(ctx context.Context, s domsession.Session) error
	ListForUser(ctx context.Context, userID string, limit int) ([]domsession.Session, error)
}

// Profiles supplies the summaries an annotation is written from.
type Profiles interface {
	GetProfiles(ctx context.Context, userIDs []string) (map[string]domprofile.Profile, error)
}

// Blurber writes the never-failing annotation text.
type Blurber interface {
	Blurb(ctx context.Context, contextName, summaryA, summaryB string) string
}

// Publisher broadcasts push events.
type Publisher interface {
	Publish(ctx context.Context, event dommsg.Event) error
}
