// Package ranking orders candidate users by cosine similarity to a query vector.
// The primary path is the store's KNN index; on failure a brute-force scan of the
// context serves the same request.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rendezvous/internal/domain"
	domprofile "github.com/kailas-cloud/rendezvous/internal/domain/profile"
	"github.com/kailas-cloud/rendezvous/internal/domain/search"
	"github.com/kailas-cloud/rendezvous/internal/domain/search/filter"
	"github.com/kailas-cloud/rendezvous/internal/metrics"
)

const (
	// DefaultTopN is used when the request leaves the count unset.
	DefaultTopN = 5
	// MaxTopN caps the candidate count.
	MaxTopN = 20
	// DefaultPrimaryTimeout bounds the KNN path before falling back.
	DefaultPrimaryTimeout = 2 * time.Second

	fieldUserID = "user_id"
	fieldLabels = "labels"
)

// Request is one ranking query.
type Request struct {
	Context  string
	Vector   []float32
	Excluded []string
	Labels   []string
	TopN     int
}

// Ranker implements the two-path ranking policy.
type Ranker struct {
	repo           Repository
	contexts       ContextReader
	primaryTimeout time.Duration
	logger         *zap.Logger
}

// New creates a Ranker. primaryTimeout <= 0 uses DefaultPrimaryTimeout.
func New(repo Repository, contexts ContextReader, primaryTimeout time.Duration, logger *zap.Logger) *Ranker {
	if primaryTimeout <= 0 {
		primaryTimeout = DefaultPrimaryTimeout
	}
	return &Ranker{repo: repo, contexts: contexts, primaryTimeout: primaryTimeout, logger: logger}
}

// ClampTopN maps a requested count into [1, MaxTopN]; zero means DefaultTopN.
func ClampTopN(n int) int {
	switch {
	case n == 0:
		return DefaultTopN
	case n < 1:
		return 1
	case n > MaxTopN:
		return MaxTopN
	default:
		return n
	}
}

// Rank returns up to TopN candidates, most similar first, never containing an excluded id.
// An empty result is not an error.
func (r *Ranker) Rank(ctx context.Context, req Request) ([]search.Candidate, error) {
	topN := ClampTopN(req.TopN)

	mc, err := r.contexts.Get(ctx, req.Context)
	if err != nil {
		if errors.Is(err, domain.ErrContextNotFound) {
			return nil, fmt.Errorf("rank %s: %w", req.Context, err)
		}
		return nil, fmt.Errorf("rank %s: load context: %w: %w", req.Context, domain.ErrMatchingUnavailable, err)
	}
	if len(req.Vector) != mc.VectorDim() {
		return nil, domain.NewDimMismatch(req.Context, mc.VectorDim(), len(req.Vector))
	}

	excluded := make(map[string]struct{}, len(req.Excluded))
	ids := make([]string, 0, len(req.Excluded))
	for _, id := range req.Excluded {
		if _, dup := excluded[id]; dup || id == "" {
			continue
		}
		excluded[id] = struct{}{}
		ids = append(ids, id)
	}

	expr, k, err := buildFilter(ids, req.Labels, topN)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSchema, err)
	}

	candidates, err := r.rankPrimary(ctx, req.Context, req.Vector, expr, k)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn("Primary ranking failed, using fallback",
			zap.String("context", req.Context),
			zap.Error(err),
		)
		candidates, err = r.rankFallback(ctx, req.Context, mc.VectorDim(), req.Vector, expr)
		if err != nil {
			return nil, err
		}
	}

	return trim(candidates, excluded, topN), nil
}

// buildFilter pre-filters excluded ids in the index when they fit one condition.
// Larger exclusion sets are filtered afterwards, so K grows to cover them.
func buildFilter(excluded, labels []string, topN int) (filter.Expression, int, error) {
	var mustNot, should []filter.Condition
	k := topN + 1

	if len(excluded) > 0 {
		if len(excluded) <= filter.MaxValuesPerCondition {
			cond, err := filter.NewMatch(fieldUserID, excluded...)
			if err != nil {
				return filter.Expression{}, 0, err
			}
			mustNot = append(mustNot, cond)
		} else {
			k += len(excluded)
		}
	}

	if len(labels) > 0 {
		cond, err := filter.NewMatch(fieldLabels, labels...)
		if err != nil {
			return filter.Expression{}, 0, err
		}
		should = append(should, cond)
	}

	expr, err := filter.NewExpression(nil, should, mustNot)
	if err != nil {
		return filter.Expression{}, 0, err
	}
	return expr, k, nil
}

func (r *Ranker) rankPrimary(
	ctx context.Context, contextName string, vector []float32, expr filter.Expression, k int,
) ([]search.Candidate, error) {
	pctx, cancel := context.WithTimeout(ctx, r.primaryTimeout)
	defer cancel()

	start := time.Now()
	candidates, err := r.repo.SearchKNN(pctx, contextName, vector, expr, k)
	metrics.RankingDuration.WithLabelValues("primary").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RankingRequestsTotal.WithLabelValues("primary", "error").Inc()
		return nil, fmt.Errorf("knn search: %w", err)
	}
	metrics.RankingRequestsTotal.WithLabelValues("primary", "ok").Inc()
	return candidates, nil
}

// rankFallback scores every stored vector of the context with cosine similarity.
// Stored vectors of a different dimension are skipped. Ties keep ascending user id order.
func (r *Ranker) rankFallback(
	ctx context.Context, contextName string, dim int, vector []float32, expr filter.Expression,
) ([]search.Candidate, error) {
	start := time.Now()
	embeddings, err := r.repo.ScanEmbeddings(ctx, contextName)
	if err != nil {
		metrics.RankingRequestsTotal.WithLabelValues("fallback", "error").Inc()
		return nil, fmt.Errorf("fallback scan %s: %w: %w", contextName, domain.ErrMatchingUnavailable, err)
	}

	candidates := scoreAll(embeddings, dim, vector, expr)
	metrics.RankingDuration.WithLabelValues("fallback").Observe(time.Since(start).Seconds())
	metrics.RankingRequestsTotal.WithLabelValues("fallback", "ok").Inc()
	return candidates, nil
}

func scoreAll(
	embeddings []domprofile.Embedding, dim int, vector []float32, expr filter.Expression,
) []search.Candidate {
	sort.Slice(embeddings, func(i, j int) bool { return embeddings[i].UserID() < embeddings[j].UserID() })

	queryNorm := norm(vector)
	out := make([]search.Candidate, 0, len(embeddings))
	for _, e := range embeddings {
		if e.Dim() != dim {
			continue
		}
		fields := map[string][]string{
			fieldUserID: {e.UserID()},
			fieldLabels: e.Labels(),
		}
		if !expr.Eval(fields) {
			continue
		}
		out = append(out, search.Candidate{
			UserID: e.UserID(),
			Score:  cosine(vector, queryNorm, e.Vector()),
			Labels: e.Labels(),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// trim drops excluded ids that slipped through and cuts the list to topN.
func trim(candidates []search.Candidate, excluded map[string]struct{}, topN int) []search.Candidate {
	out := make([]search.Candidate, 0, min(len(candidates), topN))
	for _, c := range candidates {
		if _, skip := excluded[c.UserID]; skip {
			continue
		}
		out = append(out, c)
		if len(out) == topN {
			break
		}
	}
	return out
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine returns 0 for zero vectors.
func cosine(q []float32, qNorm float64, v []float32) float64 {
	vNorm := norm(v)
	if qNorm == 0 || vNorm == 0 {
		return 0
	}
	var dot float64
	for i := range q {
		dot += float64(q[i]) * float64(v[i])
	}
	return dot / (qNorm * vNorm)
}
