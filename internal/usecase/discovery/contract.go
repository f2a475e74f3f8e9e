package discovery

import (
	"context"

	domprofile "github.com/kailas-cloud/rendezvous/internal/domain/profile"
	"github.com/kailas-cloud/rendezvous/internal/domain/search"
	"github.com/kailas-cloud/rendezvous/internal/usecase/ranking"
)

// Profiles reads caller vectors, flags and display fields.
type Profiles interface {
	GetEmbedding(ctx context.Context, contextName, userID string) (domprofile.Embedding, error)
	GetProfiles(ctx context.Context, userIDs []string) (map[string]domprofile.Profile, error)
	FlaggedIDs(ctx context.Context) ([]string, error)
}

// Ranker orders candidates for a query vector.
type Ranker interface {
	Rank(ctx context.Context, req ranking.Request) ([]search.Candidate, error)
}

// Blurber writes the never-failing annotation text.
type Blurber interface {
	Blurb(ctx context.Context, contextName, summaryA, summaryB string) string
}
