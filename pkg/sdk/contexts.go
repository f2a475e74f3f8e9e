package rendezvous

import (
	"context"
	"fmt"
	"time"

	dommc "github.com/kailas-cloud/rendezvous/internal/domain/matchctx"
)

// ContextService manages matching contexts.
type ContextService struct {
	svc contextUseCase
	obs *observer
}

// Create creates a context. A zero dimension uses the client default.
func (s *ContextService) Create(ctx context.Context, name string, vectorDim int) (_ ContextInfo, err error) {
	start := time.Now()
	defer func() { s.obs.observe("context.create", start, err) }()

	mc, err := s.svc.Create(ctx, name, vectorDim)
	if err != nil {
		return ContextInfo{}, fmt.Errorf("create context: %w", err)
	}
	return fromInternalContext(mc), nil
}

// Get returns a context by name.
func (s *ContextService) Get(ctx context.Context, name string) (_ ContextInfo, err error) {
	start := time.Now()
	defer func() { s.obs.observe("context.get", start, err) }()

	mc, err := s.svc.Get(ctx, name)
	if err != nil {
		return ContextInfo{}, fmt.Errorf("get context: %w", err)
	}
	return fromInternalContext(mc), nil
}

// List returns all contexts.
func (s *ContextService) List(ctx context.Context) (_ []ContextInfo, err error) {
	start := time.Now()
	defer func() { s.obs.observe("context.list", start, err) }()

	list, err := s.svc.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contexts: %w", err)
	}
	out := make([]ContextInfo, len(list))
	for i, mc := range list {
		out[i] = fromInternalContext(mc)
	}
	return out, nil
}

// Delete drops a context and its index.
func (s *ContextService) Delete(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("context.delete", start, err) }()

	if err = s.svc.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete context: %w", err)
	}
	return nil
}

func fromInternalContext(mc dommc.Context) ContextInfo {
	return ContextInfo{
		Name:             mc.Name(),
		VectorDimensions: mc.VectorDim(),
		CreatedAt:        time.UnixMilli(mc.CreatedAt()).UTC(),
	}
}
