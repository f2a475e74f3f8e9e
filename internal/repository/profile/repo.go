package profile

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/rendezvous/internal/db"
	"github.com/kailas-cloud/rendezvous/internal/domain"
	domprofile "github.com/kailas-cloud/rendezvous/internal/domain/profile"
)

// store is the consumer interface for profiles and embeddings (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// Repo implements usecase/profile.Repository and the profile reads of discovery.
type Repo struct {
	store store
}

// New creates a profile repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// UpsertProfile writes the profile hash and keeps the flagged set in step with it.
func (r *Repo) UpsertProfile(ctx context.Context, p domprofile.Profile) error {
	key := domain.ProfileKey(p.ID())
	if err := r.store.HSet(ctx, key, profileToHash(p)); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}

	if p.Flagged() {
		if err := r.store.SAdd(ctx, domain.FlaggedKey, p.ID()); err != nil {
			return fmt.Errorf("sadd flagged %s: %w", p.ID(), err)
		}
		return nil
	}
	if err := r.store.SRem(ctx, domain.FlaggedKey, p.ID()); err != nil {
		return fmt.Errorf("srem flagged %s: %w", p.ID(), err)
	}
	return nil
}

// GetProfile returns a profile by user id.
func (r *Repo) GetProfile(ctx context.Context, userID string) (domprofile.Profile, error) {
	key := domain.ProfileKey(userID)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domprofile.Profile{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return domprofile.Profile{}, domain.ErrNotFound
	}
	return profileFromHash(userID, m), nil
}

// GetProfiles loads several profiles in one round trip. Missing ids are absent from the map.
func (r *Repo) GetProfiles(ctx context.Context, userIDs []string) (map[string]domprofile.Profile, error) {
	if len(userIDs) == 0 {
		return map[string]domprofile.Profile{}, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = domain.ProfileKey(id)
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi profiles: %w", err)
	}

	out := make(map[string]domprofile.Profile, len(results))
	for i, m := range results {
		if i >= len(userIDs) || len(m) == 0 {
			continue
		}
		out[userIDs[i]] = profileFromHash(userIDs[i], m)
	}
	return out, nil
}

// FlaggedIDs returns the ids excluded from ranking.
func (r *Repo) FlaggedIDs(ctx context.Context) ([]string, error) {
	ids, err := r.store.SMembers(ctx, domain.FlaggedKey)
	if err != nil {
		return nil, fmt.Errorf("smembers flagged: %w", err)
	}
	return ids, nil
}

// UpsertEmbedding writes one embedding hash into the context's indexed prefix.
func (r *Repo) UpsertEmbedding(ctx context.Context, e domprofile.Embedding) error {
	key := domain.EmbeddingKey(e.Context(), e.UserID())
	if err := r.store.HSet(ctx, key, embeddingToHash(e)); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// UpsertEmbeddings writes embeddings in one pipeline.
func (r *Repo) UpsertEmbeddings(ctx context.Context, embeddings []domprofile.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, len(embeddings))
	for i, e := range embeddings {
		items[i] = db.HashSetItem{
			Key:    domain.EmbeddingKey(e.Context(), e.UserID()),
			Fields: embeddingToHash(e),
		}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset multi embeddings: %w", err)
	}
	return nil
}

// GetEmbedding returns the vector of a user in a context.
func (r *Repo) GetEmbedding(ctx context.Context, contextName, userID string) (domprofile.Embedding, error) {
	key := domain.EmbeddingKey(contextName, userID)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domprofile.Embedding{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return domprofile.Embedding{}, domain.ErrNotFound
	}
	e := embeddingFromHash(contextName, strings.TrimPrefix(key, domain.EmbeddingPrefix(contextName)), m)
	if e.Dim() == 0 {
		return domprofile.Embedding{}, fmt.Errorf("embedding %s: corrupt vector", key)
	}
	return e, nil
}
