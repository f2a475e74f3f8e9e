// Package message implements the session message log: append, cursor pull and push subscribe.
// Pull is the source of truth; push is best effort and may skip events.
package message

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rendezvous/internal/domain"
	dommsg "github.com/kailas-cloud/rendezvous/internal/domain/message"
	"github.com/kailas-cloud/rendezvous/internal/metrics"
)

// Defaults for Config.
const (
	DefaultPageSize       = 500
	DefaultMaxPageSize    = 1000
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultPushBuffer     = 64
	DefaultSubscribeWait  = 5 * time.Second
	publishTimeout        = 2 * time.Second
)

// MaxIdempotencyKeyLength bounds client-supplied idempotency keys.
const MaxIdempotencyKeyLength = 128

// Config tunes the message log.
type Config struct {
	PageSize       int
	MaxPageSize    int
	IdempotencyTTL time.Duration
	PushBuffer     int
	SubscribeWait  time.Duration
}

func (c *Config) applyDefaults() {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = DefaultMaxPageSize
	}
	if c.PageSize > c.MaxPageSize {
		c.PageSize = c.MaxPageSize
	}
	if c.IdempotencyTTL <= 0 {
		c.IdempotencyTTL = DefaultIdempotencyTTL
	}
	if c.PushBuffer <= 0 {
		c.PushBuffer = DefaultPushBuffer
	}
	if c.SubscribeWait <= 0 {
		c.SubscribeWait = DefaultSubscribeWait
	}
}

// AppendRequest is one send.
type AppendRequest struct {
	SessionID      string
	SenderID       string
	Content        string
	IdempotencyKey string
}

// PullRequest reads messages after a cursor.
type PullRequest struct {
	SessionID string
	CallerID  string
	Cursor    string
	Limit     int
}

// Service is the message log.
type Service struct {
	repo   Repository
	guard  Guard
	cfg    Config
	now    func() time.Time
	logger *zap.Logger
}

// New creates a message log service.
func New(repo Repository, guard Guard, cfg Config, logger *zap.Logger) *Service {
	cfg.applyDefaults()
	return &Service{repo: repo, guard: guard, cfg: cfg, now: time.Now, logger: logger}
}

// WithClock replaces the time source used for the ended check.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Append adds a message to the session log and hands it to push subscribers.
// An idempotency key already used by the sender returns the originally created message.
// An ended session rejects every send, before the content is looked at.
func (s *Service) Append(ctx context.Context, req AppendRequest) (dommsg.Message, error) {
	sess, err := s.guard.Authorize(ctx, req.SessionID, req.SenderID)
	if err != nil {
		return dommsg.Message{}, err
	}
	if sess.IsEnded(s.now()) {
		return dommsg.Message{}, domain.ErrSessionEnded
	}
	content, err := dommsg.NormalizeContent(req.Content)
	if err != nil {
		return dommsg.Message{}, err
	}
	if len(req.IdempotencyKey) > MaxIdempotencyKeyLength {
		return dommsg.Message{}, fmt.Errorf("%w: idempotency key too long (max %d)",
			domain.ErrInvalidSchema, MaxIdempotencyKeyLength)
	}

	// Accepted sends run to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	if req.IdempotencyKey != "" {
		existingID, reserved, err := s.repo.ReserveNonce(
			ctx, req.SessionID, req.SenderID, req.IdempotencyKey, s.cfg.IdempotencyTTL)
		if err != nil {
			return dommsg.Message{}, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if !reserved {
			msg, err := s.repo.GetByID(ctx, req.SessionID, existingID)
			if err != nil {
				return dommsg.Message{}, fmt.Errorf("load replayed message %s: %w", existingID, err)
			}
			return msg, nil
		}
	}

	msg, err := s.repo.Append(ctx, req.SessionID, req.SenderID, content)
	if err != nil {
		s.releaseNonce(ctx, req)
		return dommsg.Message{}, fmt.Errorf("append to %s: %w", req.SessionID, err)
	}
	metrics.MessagesAppendedTotal.Inc()

	if req.IdempotencyKey != "" {
		err := s.repo.CompleteNonce(ctx, req.SessionID, req.SenderID, req.IdempotencyKey, msg.ID, s.cfg.IdempotencyTTL)
		if err != nil {
			s.logger.Warn("Failed to record idempotency key",
				zap.String("session_id", req.SessionID),
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}

	go s.publish(msg)
	return msg, nil
}

func (s *Service) releaseNonce(ctx context.Context, req AppendRequest) {
	if req.IdempotencyKey == "" {
		return
	}
	if err := s.repo.ReleaseNonce(ctx, req.SessionID, req.SenderID, req.IdempotencyKey); err != nil {
		s.logger.Warn("Failed to release idempotency key", zap.String("session_id", req.SessionID), zap.Error(err))
	}
}

// publish runs detached from Append; pull still serves the message if it fails.
func (s *Service) publish(msg dommsg.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	event := dommsg.Event{Type: dommsg.EventMessage, SessionID: msg.SessionID, Message: &msg, At: msg.CreatedAt}
	if err := s.repo.Publish(ctx, event); err != nil {
		metrics.PushDroppedTotal.WithLabelValues("publish_error").Inc()
		s.logger.Warn("Failed to publish message",
			zap.String("session_id", msg.SessionID),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
}

// Pull returns messages strictly after the cursor, oldest first.
// Calling it again with Page.Next never repeats or skips a message.
func (s *Service) Pull(ctx context.Context, req PullRequest) (dommsg.Page, error) {
	if _, err := s.guard.Authorize(ctx, req.SessionID, req.CallerID); err != nil {
		return dommsg.Page{}, err
	}
	cursor, err := dommsg.ParseCursor(req.Cursor)
	if err != nil {
		return dommsg.Page{}, err
	}

	limit := req.Limit
	switch {
	case limit <= 0:
		limit = s.cfg.PageSize
	case limit > s.cfg.MaxPageSize:
		limit = s.cfg.MaxPageSize
	}

	msgs, err := s.repo.Range(ctx, req.SessionID, cursor, limit+1)
	if err != nil {
		return dommsg.Page{}, fmt.Errorf("pull %s: %w", req.SessionID, err)
	}

	page := dommsg.Page{Messages: msgs, Next: cursor}
	if len(msgs) > limit {
		page.Messages = msgs[:limit]
		page.HasMore = true
	}
	if n := len(page.Messages); n > 0 {
		page.Next = dommsg.AfterID(page.Messages[n-1].ID)
	}
	return page, nil
}

// Subscribe streams push events of the session until ctx is done.
// It returns once the subscription is live, so every event published after the
// return reaches the channel. Events that do not fit the buffer are dropped; the
// channel closes when the subscription ends.
func (s *Service) Subscribe(ctx context.Context, sessionID, callerID string) (<-chan dommsg.Event, error) {
	if _, err := s.guard.Authorize(ctx, sessionID, callerID); err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	out := make(chan dommsg.Event, s.cfg.PushBuffer)
	ready := make(chan struct{})
	done := make(chan struct{})
	var subErr error

	metrics.PushSubscribers.Inc()
	go func() {
		defer metrics.PushSubscribers.Dec()
		defer close(done)
		defer close(out)
		defer cancel()

		var once sync.Once
		subErr = s.repo.Subscribe(subCtx, sessionID,
			func() { once.Do(func() { close(ready) }) },
			func(e dommsg.Event) {
				select {
				case out <- e:
				default:
					metrics.PushDroppedTotal.WithLabelValues("buffer_full").Inc()
				}
			},
		)
		if subErr != nil && !errors.Is(subErr, context.Canceled) {
			s.logger.Warn("Subscription ended with error",
				zap.String("session_id", sessionID),
				zap.String("caller", callerID),
				zap.Error(subErr),
			)
		}
	}()

	timer := time.NewTimer(s.cfg.SubscribeWait)
	defer timer.Stop()

	select {
	case <-ready:
		return out, nil
	case <-done:
		select {
		case <-ready:
			// Live, then ended: the caller sees the closed channel.
			return out, nil
		default:
		}
		if subErr != nil {
			return nil, fmt.Errorf("subscribe %s: %w", sessionID, subErr)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("subscribe %s: ended before it was live", sessionID)
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	case <-timer.C:
		cancel()
		return nil, fmt.Errorf("subscribe %s: not live after %s", sessionID, s.cfg.SubscribeWait)
	}
}
