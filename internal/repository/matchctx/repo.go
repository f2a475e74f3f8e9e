package matchctx

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kailas-cloud/rendezvous/internal/db"
	"github.com/kailas-cloud/rendezvous/internal/domain"
	dommc "github.com/kailas-cloud/rendezvous/internal/domain/matchctx"
)

// store is the consumer interface for matching contexts (ISP).
//
//nolint:interfacebloat // context repo needs hash + index management operations
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, ix db.EmbeddingIndex) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements usecase/profile.ContextRepository.
type Repo struct {
	store store
	hnsw  HNSWConfig
}

// New creates a matching context repository.
func New(s store) *Repo {
	return &Repo{store: s, hnsw: HNSWConfig{M: 16, EFConstruct: 200}}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// Create stores a context: HSET metadata then FT.CREATE index.
// On FT.CREATE failure, rolls back the HSET via DEL.
func (r *Repo) Create(ctx context.Context, mc dommc.Context) error {
	name := mc.Name()

	key := domain.ContextKey(name)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return domain.ErrAlreadyExists
	}

	ix := r.embeddingIndex(mc)
	if err := ix.Validate(); err != nil {
		return fmt.Errorf("embedding index: %w", err)
	}

	if err := r.store.HSet(ctx, key, contextToHash(mc)); err != nil {
		return fmt.Errorf("hset context %s: %w", name, err)
	}

	if err := r.store.CreateIndex(ctx, ix); err != nil {
		cleanupErr := r.store.Del(ctx, key)
		return errors.Join(err, cleanupErr)
	}

	return nil
}

// Get retrieves a context by name.
func (r *Repo) Get(ctx context.Context, name string) (dommc.Context, error) {
	m, err := r.store.HGetAll(ctx, domain.ContextKey(name))
	if err != nil {
		return dommc.Context{}, fmt.Errorf("hgetall context %s: %w", name, err)
	}
	if len(m) == 0 {
		return dommc.Context{}, domain.ErrContextNotFound
	}

	return contextFromHash(m)
}

// List returns all contexts sorted by CreatedAt.
func (r *Repo) List(ctx context.Context) ([]dommc.Context, error) {
	keys, err := r.store.Scan(ctx, domain.ContextKey("*"))
	if err != nil {
		return nil, fmt.Errorf("scan contexts: %w", err)
	}
	if len(keys) == 0 {
		return []dommc.Context{}, nil
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi contexts: %w", err)
	}

	contexts := make([]dommc.Context, 0, len(results))
	for i, m := range results {
		if len(m) == 0 {
			continue
		}
		mc, err := contextFromHash(m)
		if err != nil {
			return nil, fmt.Errorf("parse context %s: %w", keys[i], err)
		}
		contexts = append(contexts, mc)
	}

	sort.Slice(contexts, func(i, j int) bool {
		if contexts[i].CreatedAt() == contexts[j].CreatedAt() {
			return contexts[i].Name() < contexts[j].Name()
		}
		return contexts[i].CreatedAt() < contexts[j].CreatedAt()
	})

	return contexts, nil
}

// Delete removes a context: backup metadata, DEL hash, FT.DROPINDEX (rollback HSET on error),
// then drops the embeddings of the context.
func (r *Repo) Delete(ctx context.Context, name string) error {
	key := domain.ContextKey(name)

	metaBackup, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return fmt.Errorf("hgetall context %s: %w", name, err)
	}
	if len(metaBackup) == 0 {
		return domain.ErrContextNotFound
	}

	idxName := domain.EmbeddingIndex(name)
	idxExists, err := r.store.IndexExists(ctx, idxName)
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}

	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del context %s: %w", name, err)
	}

	if idxExists {
		if err := r.store.DropIndex(ctx, idxName); err != nil {
			cleanupErr := r.store.HSet(ctx, key, metaBackup)
			return errors.Join(err, cleanupErr)
		}
	}

	embKeys, err := r.store.Scan(ctx, domain.EmbeddingPrefix(name)+"*")
	if err != nil {
		return fmt.Errorf("scan embeddings %s: %w", name, err)
	}
	for _, k := range embKeys {
		if err := r.store.Del(ctx, k); err != nil {
			return fmt.Errorf("del embedding %s: %w", k, err)
		}
	}

	return nil
}
