package ranking

import (
	"context"

	dommc "github.com/kailas-cloud/rendezvous/internal/domain/matchctx"
	domprofile "github.com/kailas-cloud/rendezvous/internal/domain/profile"
	"github.com/kailas-cloud/rendezvous/internal/domain/search"
	"github.com/kailas-cloud/rendezvous/internal/domain/search/filter"
)

// Repository defines the storage contract for both ranking paths.
type Repository interface {
	SearchKNN(
		ctx context.Context, contextName string,
		vector []float32, filters filter.Expression, k int,
	) ([]search.Candidate, error)

	ScanEmbeddings(ctx context.Context, contextName string) ([]domprofile.Embedding, error)
}

// ContextReader resolves the vector dimension of a context.
type ContextReader interface {
	Get(ctx context.Context, name string) (dommc.Context, error)
}
