// Package profile ingests profiles and their per-context embeddings.
package profile

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/rendezvous/internal/domain"
	dombatch "github.com/kailas-cloud/rendezvous/internal/domain/batch"
	dommc "github.com/kailas-cloud/rendezvous/internal/domain/matchctx"
	domprofile "github.com/kailas-cloud/rendezvous/internal/domain/profile"
)

// MaxBatchSize is the maximum number of embeddings per batch request.
const MaxBatchSize = 100

// EmbeddingInput is one embedding to ingest.
type EmbeddingInput struct {
	UserID string
	Vector []float32
	Labels []string
}

// Service handles profile and embedding ingest.
type Service struct {
	repo         Repository
	contexts     Contexts
	maxBatchSize int
}

// New creates a profile service.
func New(repo Repository, contexts Contexts) *Service {
	return &Service{repo: repo, contexts: contexts, maxBatchSize: MaxBatchSize}
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// UpsertProfile creates or replaces a profile. Flagging also maintains the flagged set.
func (s *Service) UpsertProfile(
	ctx context.Context, userID, summary, displayName string, flagged bool,
) (domprofile.Profile, error) {
	p, err := domprofile.New(userID, summary, displayName, flagged)
	if err != nil {
		return domprofile.Profile{}, fmt.Errorf("validate profile: %w: %w", domain.ErrInvalidSchema, err)
	}
	if err := s.repo.UpsertProfile(ctx, p); err != nil {
		return domprofile.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return p, nil
}

// GetProfile returns a profile by user id.
func (s *Service) GetProfile(ctx context.Context, userID string) (domprofile.Profile, error) {
	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return domprofile.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// UpsertEmbedding stores a user's vector in a context. An unknown context is created
// with the vector's dimension; otherwise the dimension must match.
func (s *Service) UpsertEmbedding(ctx context.Context, contextName string, in EmbeddingInput) error {
	e, err := newEmbedding(contextName, in)
	if err != nil {
		return err
	}
	mc, err := s.contexts.Ensure(ctx, contextName, e.Dim())
	if err != nil {
		return fmt.Errorf("resolve context: %w", err)
	}
	if err := checkDim(mc, e); err != nil {
		return err
	}
	if err := s.repo.UpsertEmbedding(ctx, e); err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

// UpsertEmbeddings ingests a batch with per-item results.
// Valid items are written in one pipeline; a store failure fails all of them.
func (s *Service) UpsertEmbeddings(ctx context.Context, contextName string, items []EmbeddingInput) []dombatch.Result {
	results := make([]dombatch.Result, len(items))

	if len(items) > s.maxBatchSize {
		for i, item := range items {
			results[i] = dombatch.NewError(
				item.UserID,
				fmt.Errorf("batch size exceeds %d: %w", s.maxBatchSize, domain.ErrInvalidSchema),
			)
		}
		return results
	}
	if len(items) == 0 {
		return results
	}

	embeddings := make([]domprofile.Embedding, len(items))
	parsed := make([]bool, len(items))
	firstDim := 0
	for i, item := range items {
		e, err := newEmbedding(contextName, item)
		if err != nil {
			results[i] = dombatch.NewError(item.UserID, err)
			continue
		}
		embeddings[i] = e
		parsed[i] = true
		if firstDim == 0 {
			firstDim = e.Dim()
		}
	}
	if firstDim == 0 {
		return results
	}

	mc, err := s.contexts.Ensure(ctx, contextName, firstDim)
	if err != nil {
		for i, item := range items {
			if parsed[i] {
				results[i] = dombatch.NewError(item.UserID, fmt.Errorf("resolve context: %w", err))
			}
		}
		return results
	}

	valid := make([]domprofile.Embedding, 0, len(items))
	validIdx := make([]int, 0, len(items))
	for i := range items {
		if !parsed[i] {
			continue
		}
		if err := checkDim(mc, embeddings[i]); err != nil {
			results[i] = dombatch.NewError(items[i].UserID, err)
			continue
		}
		valid = append(valid, embeddings[i])
		validIdx = append(validIdx, i)
	}
	if len(valid) == 0 {
		return results
	}

	if err := s.repo.UpsertEmbeddings(ctx, valid); err != nil {
		for _, i := range validIdx {
			results[i] = dombatch.NewError(items[i].UserID, fmt.Errorf("batch upsert: %w", err))
		}
		return results
	}
	for _, i := range validIdx {
		results[i] = dombatch.NewOK(items[i].UserID)
	}
	return results
}

func newEmbedding(contextName string, in EmbeddingInput) (domprofile.Embedding, error) {
	if err := dommc.ValidateName(contextName); err != nil {
		return domprofile.Embedding{}, fmt.Errorf("validate context: %w: %w", domain.ErrInvalidSchema, err)
	}
	if len(in.Vector) > dommc.MaxVectorDim {
		return domprofile.Embedding{}, fmt.Errorf("validate embedding: %w: vector dimension exceeds %d",
			domain.ErrInvalidSchema, dommc.MaxVectorDim)
	}
	e, err := domprofile.NewEmbedding(in.UserID, contextName, in.Vector, in.Labels)
	if err != nil {
		return domprofile.Embedding{}, fmt.Errorf("validate embedding: %w: %w", domain.ErrInvalidSchema, err)
	}
	return e, nil
}

func checkDim(mc dommc.Context, e domprofile.Embedding) error {
	if e.Dim() != mc.VectorDim() {
		return domain.NewDimMismatch(mc.Name(), mc.VectorDim(), e.Dim())
	}
	return nil
}
