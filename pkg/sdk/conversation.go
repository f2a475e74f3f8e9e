package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kailas-cloud/rendezvous/internal/domain"
	dommsg "github.com/kailas-cloud/rendezvous/internal/domain/message"
	messageuc "github.com/kailas-cloud/rendezvous/internal/usecase/message"
)

// ErrStreamClosed is returned by Listen when the push stream ends before the session does.
// The view is already reconciled by a pull; Listen can be called again.
var ErrStreamClosed = errors.New("rendezvous: push stream closed")

// Conversation is one participant's view of a session log.
//
// Messages arrive by two paths: pull (Sync) and push (Listen). Both feed the same
// view, deduplicated by message id and kept in log order. Only pull advances the
// read position, so a message missed by push is picked up by the next Sync.
// Safe for concurrent use.
type Conversation struct {
	sessionID string
	userID    string
	svc       messageUseCase
	obs       *observer

	mu     sync.Mutex
	seen   map[string]struct{}
	msgs   []Message
	cursor string
	ended  bool
}

func newConversation(sessionID, userID string, svc messageUseCase, obs *observer) *Conversation {
	return &Conversation{
		sessionID: sessionID,
		userID:    userID,
		svc:       svc,
		obs:       obs,
		seen:      make(map[string]struct{}),
	}
}

// SessionID returns the session this conversation reads.
func (c *Conversation) SessionID() string { return c.sessionID }

// Send appends a message. A non-empty idempotency key makes retries return the first message.
func (c *Conversation) Send(ctx context.Context, content, idempotencyKey string) (_ Message, err error) {
	start := time.Now()
	defer func() { c.obs.observe("message.send", start, err) }()

	m, err := c.svc.Append(ctx, messageuc.AppendRequest{
		SessionID:      c.sessionID,
		SenderID:       c.userID,
		Content:        content,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		if errors.Is(err, domain.ErrSessionEnded) {
			c.markEnded()
		}
		return Message{}, fmt.Errorf("send: %w", err)
	}
	msg := fromInternalMessage(m)
	c.merge([]Message{msg})
	return msg, nil
}

// Sync pulls every message after the last pulled position and merges it into the view.
// It returns the messages the view did not hold yet, in log order.
func (c *Conversation) Sync(ctx context.Context) (_ []Message, err error) {
	start := time.Now()
	defer func() { c.obs.observe("message.sync", start, err) }()

	var fresh []Message
	for {
		c.mu.Lock()
		cursor := c.cursor
		c.mu.Unlock()

		page, err := c.svc.Pull(ctx, messageuc.PullRequest{
			SessionID: c.sessionID,
			CallerID:  c.userID,
			Cursor:    cursor,
		})
		if err != nil {
			return fresh, fmt.Errorf("sync: %w", err)
		}

		batch := make([]Message, len(page.Messages))
		for i, m := range page.Messages {
			batch[i] = fromInternalMessage(m)
		}
		fresh = append(fresh, c.merge(batch)...)
		c.advance(page.Next.String())

		if !page.HasMore || len(page.Messages) == 0 {
			return fresh, nil
		}
	}
}

// Listen subscribes to push events and calls fn for every message new to the view.
// Subscribe returns only once the subscription is live, so the pull that follows
// covers everything sent before it and push covers the rest. It pulls again whenever
// the stream ends, and fn sees every message exactly once. Listen returns nil when
// the session ends, ctx.Err() when ctx is done, and ErrStreamClosed when the stream
// drops on its own.
func (c *Conversation) Listen(ctx context.Context, fn func(Message)) error {
	events, err := c.svc.Subscribe(ctx, c.sessionID, c.userID)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	if err := c.syncAndDeliver(ctx, fn); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if err := c.syncAndDeliver(ctx, fn); err != nil {
					return err
				}
				return ErrStreamClosed
			}

			switch ev.Type {
			case dommsg.EventMessage:
				if ev.Message == nil {
					continue
				}
				fresh := c.merge([]Message{fromInternalMessage(*ev.Message)})
				c.obs.pushed(string(ev.Type), len(fresh) > 0)
				for _, m := range fresh {
					fn(m)
				}
			case dommsg.EventSessionEnded:
				c.obs.pushed(string(ev.Type), true)
				err := c.syncAndDeliver(ctx, fn)
				c.markEnded()
				return err
			}
		}
	}
}

func (c *Conversation) syncAndDeliver(ctx context.Context, fn func(Message)) error {
	fresh, err := c.Sync(ctx)
	for _, m := range fresh {
		fn(m)
	}
	return err
}

// Messages returns a copy of the view in log order.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.msgs)
}

// Ended reports whether the conversation has observed the session ending.
func (c *Conversation) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

// merge inserts unseen messages in id order and returns them.
func (c *Conversation) merge(batch []Message) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	var fresh []Message
	for _, m := range batch {
		if _, ok := c.seen[m.ID]; ok {
			continue
		}
		c.seen[m.ID] = struct{}{}
		i, _ := slices.BinarySearchFunc(c.msgs, m.ID, func(e Message, id string) int {
			return dommsg.CompareIDs(e.ID, id)
		})
		c.msgs = slices.Insert(c.msgs, i, m)
		fresh = append(fresh, m)
	}
	return fresh
}

// advance moves the pull position forward, never back.
func (c *Conversation) advance(next string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if next == "" {
		return
	}
	if c.cursor == "" || dommsg.CompareIDs(next, c.cursor) > 0 {
		c.cursor = next
	}
}

func (c *Conversation) markEnded() {
	c.mu.Lock()
	c.ended = true
	c.mu.Unlock()
}

func fromInternalMessage(m dommsg.Message) Message {
	return Message(m)
}
