package profile

import (
	"context"

	dommc "github.com/kailas-cloud/rendezvous/internal/domain/matchctx"
	domprofile "github.com/kailas-cloud/rendezvous/internal/domain/profile"
)

// Repository stores profiles and per-context embeddings.
type Repository interface {
	UpsertProfile(ctx context.Context, p domprofile.Profile) error
	GetProfile(ctx context.Context, userID string) (domprofile.Profile, error)
	UpsertEmbedding(ctx context.Context, e domprofile.Embedding) error
	UpsertEmbeddings(ctx context.Context, embeddings []domprofile.Embedding) error
}

// Contexts resolves a context, creating it on first ingest.
type Contexts interface {
	Ensure(ctx context.Context, name string, vectorDim int) (dommc.Context, error)
}
