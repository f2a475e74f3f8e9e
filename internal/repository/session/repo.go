package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rendezvous/internal/db"
	"github.com/kailas-cloud/rendezvous/internal/domain"
	domsession "github.com/kailas-cloud/rendezvous/internal/domain/session"
)

// maxCreateAttempts bounds re-reads after losing the pair lock race.
const maxCreateAttempts = 3

// store is the consumer interface for sessions (ISP).
//
//nolint:interfacebloat // sessions span hash, pair lock and per-user index
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Get(ctx context.Context, key string) ([]byte, error)
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	DelIfEquals(ctx context.Context, key string, value []byte) (bool, error)
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

// Repo implements usecase/session.Repository.
type Repo struct {
	store  store
	logger *zap.Logger
}

// New creates a session repository.
func New(s store) *Repo {
	return &Repo{store: s, logger: zap.NewNop()}
}

// WithLogger sets the logger for index write failures.
func (r *Repo) WithLogger(l *zap.Logger) *Repo {
	r.logger = l
	return r
}

// CreateOrGet returns the live session of the candidate's pair, or stores candidate when there is none.
// Uniqueness rests on the pair lock (SET NX PX ttl). A lost race deletes the orphan hash and
// re-reads the winner. created reports whether candidate was stored.
// The per-user index is written after the lock and rewritten whenever the session is
// returned again, so an index write failure never fails the call.
func (r *Repo) CreateOrGet(
	ctx context.Context, candidate domsession.Session, now time.Time,
) (s domsession.Session, created bool, err error) {
	pairKey := domain.PairLockKey(domsession.PairKey(candidate.UserA(), candidate.UserB()))

	for range maxCreateAttempts {
		existing, found, err := r.livePairSession(ctx, pairKey, now)
		if err != nil {
			return domsession.Session{}, false, err
		}
		if found {
			r.repairIndex(ctx, existing)
			return existing, false, nil
		}

		key := domain.SessionKey(candidate.ID())
		if err := r.store.HSet(ctx, key, sessionToHash(candidate)); err != nil {
			return domsession.Session{}, false, fmt.Errorf("hset %s: %w", key, err)
		}

		ttl := candidate.ExpiresAt().Sub(now)
		if ttl <= 0 {
			ttl = time.Millisecond
		}
		ok, err := r.store.SetNX(ctx, pairKey, []byte(candidate.ID()), ttl)
		if err != nil {
			cleanupErr := r.store.Del(ctx, key)
			return domsession.Session{}, false, errors.Join(fmt.Errorf("acquire pair lock: %w", err), cleanupErr)
		}
		if !ok {
			if err := r.store.Del(ctx, key); err != nil {
				return domsession.Session{}, false, fmt.Errorf("del orphan %s: %w", key, err)
			}
			continue
		}

		r.repairIndex(ctx, candidate)
		return candidate, true, nil
	}

	return domsession.Session{}, false, fmt.Errorf("pair lock contended after %d attempts: %w",
		maxCreateAttempts, domain.ErrAlreadyExists)
}

// livePairSession resolves the pair lock. A lock pointing at a missing or ended session is released.
func (r *Repo) livePairSession(
	ctx context.Context, pairKey string, now time.Time,
) (domsession.Session, bool, error) {
	raw, err := r.store.Get(ctx, pairKey)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domsession.Session{}, false, nil
		}
		return domsession.Session{}, false, fmt.Errorf("get %s: %w", pairKey, err)
	}

	id := string(raw)
	s, err := r.Get(ctx, id)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
	case err != nil:
		return domsession.Session{}, false, err
	case !s.IsEnded(now):
		return s, true, nil
	}

	if _, err := r.store.DelIfEquals(ctx, pairKey, raw); err != nil {
		return domsession.Session{}, false, fmt.Errorf("release %s: %w", pairKey, err)
	}
	return domsession.Session{}, false, nil
}

// repairIndex writes the per-user index. ZADD of an existing member only refreshes its score.
func (r *Repo) repairIndex(ctx context.Context, s domsession.Session) {
	if err := r.index(ctx, s); err != nil {
		r.logger.Warn("Failed to index session",
			zap.String("session_id", s.ID()),
			zap.Error(err),
		)
	}
}

func (r *Repo) index(ctx context.Context, s domsession.Session) error {
	score := float64(s.CreatedAt().UnixMilli())
	for _, user := range []string{s.UserA(), s.UserB()} {
		key := domain.UserSessionsKey(user)
		if err := r.store.ZAdd(ctx, key, score, s.ID()); err != nil {
			return fmt.Errorf("zadd %s: %w", key, err)
		}
	}
	return nil
}

// Get returns a session by id.
func (r *Repo) Get(ctx context.Context, id string) (domsession.Session, error) {
	key := domain.SessionKey(id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domsession.Session{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return domsession.Session{}, domain.ErrSessionNotFound
	}
	return sessionFromHash(m)
}

// MarkClosed sets one participant's flag and returns the re-read session.
// Only the caller's own field is written, so concurrent closes by both sides do not lose a flag.
// The status field follows once both flags are set.
func (r *Repo) MarkClosed(ctx context.Context, s domsession.Session, userID string) (domsession.Session, error) {
	field, err := closedField(s, userID)
	if err != nil {
		return domsession.Session{}, err
	}

	key := domain.SessionKey(s.ID())
	if err := r.store.HSet(ctx, key, map[string]string{field: "1"}); err != nil {
		return domsession.Session{}, fmt.Errorf("hset %s: %w", key, err)
	}

	updated, err := r.Get(ctx, s.ID())
	if err != nil {
		return domsession.Session{}, err
	}
	if updated.ClosedByA() && updated.ClosedByB() {
		if err := r.store.HSet(ctx, key, map[string]string{"status": string(domsession.StatusClosed)}); err != nil {
			return domsession.Session{}, fmt.Errorf("hset %s status: %w", key, err)
		}
	}
	return updated, nil
}

// SetAnnotation stores the annotation of a session.
func (r *Repo) SetAnnotation(ctx context.Context, id, annotation string) error {
	key := domain.SessionKey(id)
	if err := r.store.HSet(ctx, key, map[string]string{"annotation": annotation}); err != nil {
		return fmt.Errorf("hset %s annotation: %w", key, err)
	}
	return nil
}

// ReleasePair drops the pair lock if it still points at s.
func (r *Repo) ReleasePair(ctx context.Context, s domsession.Session) error {
	pairKey := domain.PairLockKey(domsession.PairKey(s.UserA(), s.UserB()))
	if _, err := r.store.DelIfEquals(ctx, pairKey, []byte(s.ID())); err != nil {
		return fmt.Errorf("release %s: %w", pairKey, err)
	}
	return nil
}

// ListForUser returns up to limit sessions of a user, newest first.
func (r *Repo) ListForUser(ctx context.Context, userID string, limit int) ([]domsession.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	key := domain.UserSessionsKey(userID)
	ids, err := r.store.ZRevRange(ctx, key, 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("zrevrange %s: %w", key, err)
	}
	if len(ids) == 0 {
		return []domsession.Session{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = domain.SessionKey(id)
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi sessions: %w", err)
	}

	out := make([]domsession.Session, 0, len(hashes))
	for i, m := range hashes {
		if len(m) == 0 {
			continue
		}
		s, err := sessionFromHash(m)
		if err != nil {
			return nil, fmt.Errorf("parse session %s: %w", keys[i], err)
		}
		out = append(out, s)
	}
	return out, nil
}

func closedField(s domsession.Session, userID string) (string, error) {
	switch userID {
	case s.UserA():
		return "closed_by_a", nil
	case s.UserB():
		return "closed_by_b", nil
	default:
		return "", domain.ErrForbidden
	}
}
