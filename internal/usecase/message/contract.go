package message

import (
	"context"
	"time"

	dommsg "github.com/kailas-cloud/rendezvous/internal/domain/message"
	domsession "github.com/kailas-cloud/rendezvous/internal/domain/session"
)

// Repository defines the storage contract for session logs, push and idempotency keys.
//
//nolint:interfacebloat // one log spans stream, pub/sub and nonce records
type Repository interface {
	Append(ctx context.Context, sessionID, senderID, content string) (dommsg.Message, error)
	Range(ctx context.Context, sessionID string, cursor dommsg.Cursor, limit int) ([]dommsg.Message, error)
	GetByID(ctx context.Context, sessionID, id string) (dommsg.Message, error)

	Publish(ctx context.Context, event dommsg.Event) error
	// Subscribe blocks until ctx is done; ready is called once the subscription is live.
	Subscribe(ctx context.Context, sessionID string, ready func(), fn func(dommsg.Event)) error

	ReserveNonce(ctx context.Context, sessionID, senderID, nonce string, ttl time.Duration) (string, bool, error)
	CompleteNonce(ctx context.Context, sessionID, senderID, nonce, messageID string, ttl time.Duration) error
	ReleaseNonce(ctx context.Context, sessionID, senderID, nonce string) error
}

// Guard resolves a session for one of its participants.
type Guard interface {
	Authorize(ctx context.Context, sessionID, userID string) (domsession.Session, error)
}
