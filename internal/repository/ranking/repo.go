package ranking

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/rendezvous/internal/db"
	"github.com/kailas-cloud/rendezvous/internal/domain"
	domprofile "github.com/kailas-cloud/rendezvous/internal/domain/profile"
	"github.com/kailas-cloud/rendezvous/internal/domain/search"
	"github.com/kailas-cloud/rendezvous/internal/domain/search/filter"
)

// store is the consumer interface for ranking reads (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
}

// Repo implements usecase/ranking.Repository.
type Repo struct {
	store store
}

// New creates a ranking repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// SearchKNN performs a KNN search over a context's embeddings with filter pre-filtering.
// Candidates keep the engine's order.
func (r *Repo) SearchKNN(
	ctx context.Context, contextName string,
	vector []float32, filters filter.Expression, k int,
) ([]search.Candidate, error) {
	q := &db.KNNQuery{
		IndexName:    domain.EmbeddingIndex(contextName),
		Filters:      filters,
		Vector:       vector,
		K:            k,
		ReturnFields: []string{"user_id", "labels", "__vector_score"},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", contextName, err)
	}

	return parseKNNResults(sr, contextName), nil
}

// ScanEmbeddings reads every embedding of a context. Entries whose vector does not decode are skipped.
func (r *Repo) ScanEmbeddings(ctx context.Context, contextName string) ([]domprofile.Embedding, error) {
	prefix := domain.EmbeddingPrefix(contextName)
	keys, err := r.store.Scan(ctx, prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan embeddings %s: %w", contextName, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi embeddings %s: %w", contextName, err)
	}

	out := make([]domprofile.Embedding, 0, len(hashes))
	for i, m := range hashes {
		if i >= len(keys) || len(m) == 0 {
			continue
		}
		vec := bytesToVector(m["vector"])
		if len(vec) == 0 {
			continue
		}
		userID := m["user_id"]
		if userID == "" {
			userID = strings.TrimPrefix(keys[i], prefix)
		}
		out = append(out, domprofile.ReconstructEmbedding(userID, contextName, vec, splitLabels(m["labels"])))
	}
	return out, nil
}

// parseKNNResults converts db.SearchResult into candidates.
func parseKNNResults(sr *db.SearchResult, contextName string) []search.Candidate {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	prefix := domain.EmbeddingPrefix(contextName)
	out := make([]search.Candidate, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		userID := entry.Fields["user_id"]
		if userID == "" {
			userID = strings.TrimPrefix(entry.Key, prefix)
		}
		out = append(out, search.Candidate{
			UserID: userID,
			Score:  entry.Score,
			Labels: splitLabels(entry.Fields["labels"]),
		})
	}
	return out
}

func splitLabels(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// bytesToVector deserializes a binary string to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
