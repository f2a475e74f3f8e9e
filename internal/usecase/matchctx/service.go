// Package matchctx manages matching contexts, the partitions of the candidate pool.
package matchctx

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/rendezvous/internal/domain"
	dommc "github.com/kailas-cloud/rendezvous/internal/domain/matchctx"
)

// Service handles context CRUD operations.
type Service struct {
	repo       Repository
	defaultDim int
}

// New creates a context service. defaultDim is used when Create gets no dimension.
func New(repo Repository, defaultDim int) *Service {
	return &Service{repo: repo, defaultDim: defaultDim}
}

// Create validates and stores a new context with its vector index.
func (s *Service) Create(ctx context.Context, name string, vectorDim int) (dommc.Context, error) {
	if vectorDim == 0 {
		vectorDim = s.defaultDim
	}
	mc, err := dommc.New(name, vectorDim)
	if err != nil {
		return dommc.Context{}, fmt.Errorf("validate context: %w: %w", domain.ErrInvalidSchema, err)
	}

	if err := s.repo.Create(ctx, mc); err != nil {
		return dommc.Context{}, fmt.Errorf("create context: %w", err)
	}
	return mc, nil
}

// Ensure returns the named context, creating it with vectorDim when it does not exist.
// A concurrent create of the same name is resolved by reading the winner.
func (s *Service) Ensure(ctx context.Context, name string, vectorDim int) (dommc.Context, error) {
	mc, err := s.repo.Get(ctx, name)
	if err == nil {
		return mc, nil
	}
	if !errors.Is(err, domain.ErrContextNotFound) {
		return dommc.Context{}, fmt.Errorf("get context: %w", err)
	}

	mc, err = s.Create(ctx, name, vectorDim)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return s.Get(ctx, name)
	}
	return mc, err
}

// Get retrieves a context by name.
func (s *Service) Get(ctx context.Context, name string) (dommc.Context, error) {
	mc, err := s.repo.Get(ctx, name)
	if err != nil {
		return dommc.Context{}, fmt.Errorf("get context: %w", err)
	}
	return mc, nil
}

// List returns all contexts.
func (s *Service) List(ctx context.Context) ([]dommc.Context, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contexts: %w", err)
	}
	return list, nil
}

// Delete removes a context with its index and embeddings.
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := s.repo.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete context: %w", err)
	}
	return nil
}
