package message

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/rendezvous/internal/db"
	"github.com/kailas-cloud/rendezvous/internal/domain"
	dommsg "github.com/kailas-cloud/rendezvous/internal/domain/message"
)

// noncePending marks an idempotency key whose append has not finished.
const noncePending = "pending"

// store is the consumer interface for the message log (ISP).
//
//nolint:interfacebloat // stream, pub/sub and idempotency records live together
type store interface {
	XAdd(ctx context.Context, key string, fields map[string]string) (string, error)
	XRange(ctx context.Context, key, start, end string, count int64) ([]db.StreamEntry, error)
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string, ready func(), fn func(payload []byte)) error
	Get(ctx context.Context, key string) ([]byte, error)
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Repo implements usecase/message.Repository on a per-session stream.
type Repo struct {
	store store
}

// New creates a message repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Append adds a message to the session log. The stream id is the message id; its
// millisecond part is the creation time.
func (r *Repo) Append(ctx context.Context, sessionID, senderID, content string) (dommsg.Message, error) {
	key := domain.MessageLogKey(sessionID)
	id, err := r.store.XAdd(ctx, key, map[string]string{
		"sender_id": senderID,
		"content":   content,
	})
	if err != nil {
		return dommsg.Message{}, fmt.Errorf("xadd %s: %w", key, err)
	}

	createdAt, err := dommsg.IDTime(id)
	if err != nil {
		return dommsg.Message{}, fmt.Errorf("xadd %s returned id %q: %w", key, id, err)
	}
	return dommsg.Message{
		ID:        id,
		SessionID: sessionID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: createdAt,
	}, nil
}

// Range returns up to limit messages strictly after cursor, oldest first.
func (r *Repo) Range(
	ctx context.Context, sessionID string, cursor dommsg.Cursor, limit int,
) ([]dommsg.Message, error) {
	key := domain.MessageLogKey(sessionID)
	entries, err := r.store.XRange(ctx, key, cursor.Start(), "+", int64(limit))
	if err != nil {
		return nil, fmt.Errorf("xrange %s: %w", key, err)
	}
	return entriesToMessages(sessionID, entries), nil
}

// GetByID returns one message of the session log.
func (r *Repo) GetByID(ctx context.Context, sessionID, id string) (dommsg.Message, error) {
	key := domain.MessageLogKey(sessionID)
	entries, err := r.store.XRange(ctx, key, id, id, 1)
	if err != nil {
		return dommsg.Message{}, fmt.Errorf("xrange %s: %w", key, err)
	}
	msgs := entriesToMessages(sessionID, entries)
	if len(msgs) == 0 {
		return dommsg.Message{}, domain.ErrNotFound
	}
	return msgs[0], nil
}

// Publish fans an event out to current subscribers of the session.
func (r *Repo) Publish(ctx context.Context, event dommsg.Event) error {
	payload, err := json.Marshal(eventToDTO(event))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	channel := domain.EventsChannel(event.SessionID)
	if err := r.store.Publish(ctx, channel, payload); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe delivers the session's events to fn until ctx is done.
// ready is called once the subscription is live. Payloads that do not decode are dropped.
func (r *Repo) Subscribe(ctx context.Context, sessionID string, ready func(), fn func(dommsg.Event)) error {
	channel := domain.EventsChannel(sessionID)
	err := r.store.Subscribe(ctx, channel, ready, func(payload []byte) {
		var dto eventDTO
		if err := json.Unmarshal(payload, &dto); err != nil {
			return
		}
		fn(dto.toEvent())
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	return nil
}

// ReserveNonce claims an idempotency key. When the key is already claimed it returns the
// recorded message id, or domain.ErrDuplicateRequest while the first append is in flight.
func (r *Repo) ReserveNonce(
	ctx context.Context, sessionID, senderID, nonce string, ttl time.Duration,
) (existingID string, reserved bool, err error) {
	key := domain.NonceKey(sessionID, senderID, nonce)
	ok, err := r.store.SetNX(ctx, key, []byte(noncePending), ttl)
	if err != nil {
		return "", false, fmt.Errorf("setnx %s: %w", key, err)
	}
	if ok {
		return "", true, nil
	}

	raw, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			// Expired between SETNX and GET.
			return "", false, domain.ErrDuplicateRequest
		}
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	if string(raw) == noncePending {
		return "", false, domain.ErrDuplicateRequest
	}
	return string(raw), false, nil
}

// CompleteNonce records the message created for an idempotency key.
func (r *Repo) CompleteNonce(
	ctx context.Context, sessionID, senderID, nonce, messageID string, ttl time.Duration,
) error {
	key := domain.NonceKey(sessionID, senderID, nonce)
	if err := r.store.SetWithTTL(ctx, key, []byte(messageID), ttl); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// ReleaseNonce frees an idempotency key whose append failed so the client can retry.
func (r *Repo) ReleaseNonce(ctx context.Context, sessionID, senderID, nonce string) error {
	key := domain.NonceKey(sessionID, senderID, nonce)
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

func entriesToMessages(sessionID string, entries []db.StreamEntry) []dommsg.Message {
	out := make([]dommsg.Message, 0, len(entries))
	for _, e := range entries {
		createdAt, err := dommsg.IDTime(e.ID)
		if err != nil {
			continue
		}
		out = append(out, dommsg.Message{
			ID:        e.ID,
			SessionID: sessionID,
			SenderID:  e.Fields["sender_id"],
			Content:   e.Fields["content"],
			CreatedAt: createdAt,
		})
	}
	return out
}
