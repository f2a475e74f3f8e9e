package blurbcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rendezvous/internal/db"
	"github.com/kailas-cloud/rendezvous/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "blurb:"

// store is the consumer interface for the annotation cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedAnnotator caches annotations per unordered pair of summaries.
type CachedAnnotator struct {
	inner      domain.Annotator
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Annotator,
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedAnnotator {
	return &CachedAnnotator{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Annotate returns a cached annotation or calls the inner annotator.
// Cache hit: no tokens reported. Cache miss: full result from inner.
func (c *CachedAnnotator) Annotate(
	ctx context.Context, req domain.AnnotationRequest,
) (domain.AnnotationResult, error) {
	key := cacheKey(req)

	if text, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return domain.AnnotationResult{Text: text, Cached: true}, nil
	}

	c.incCache("miss")

	result, err := c.inner.Annotate(ctx, req)
	if err != nil {
		return domain.AnnotationResult{}, fmt.Errorf("annotate: %w", err)
	}

	if result.Text != "" {
		c.putToCache(ctx, key, result.Text)
	}
	return result, nil
}

func (c *CachedAnnotator) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// cacheKey ignores summary order so A-B and B-A share an entry.
func cacheKey(req domain.AnnotationRequest) string {
	a, b := req.SummaryA, req.SummaryB
	if b < a {
		a, b = b, a
	}
	h := sha256.New()
	for _, part := range []string{req.Context, a, b, strconv.Itoa(req.MaxCharacters)} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedAnnotator) getFromCache(ctx context.Context, key string) (string, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached annotation", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	if len(data) == 0 {
		return "", false
	}
	return string(data), true
}

func (c *CachedAnnotator) putToCache(ctx context.Context, key, text string) {
	if err := c.store.SetWithTTL(ctx, key, []byte(text), c.ttl); err != nil {
		c.logger.Warn("Failed to cache annotation", zap.String("key", key), zap.Error(err))
	}
}
