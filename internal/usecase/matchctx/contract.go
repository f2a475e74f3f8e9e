package matchctx

import (
	"context"

	dommc "github.com/kailas-cloud/rendezvous/internal/domain/matchctx"
)

// Repository defines the storage contract for matching contexts.
type Repository interface {
	Create(ctx context.Context, mc dommc.Context) error
	Get(ctx context.Context, name string) (dommc.Context, error)
	List(ctx context.Context) ([]dommc.Context, error)
	Delete(ctx context.Context, name string) error
}
