package matchctx

import (
	"github.com/kailas-cloud/rendezvous/internal/db"
	"github.com/kailas-cloud/rendezvous/internal/domain"
	dommc "github.com/kailas-cloud/rendezvous/internal/domain/matchctx"
)

// embeddingIndex describes the FT index over mc's embedding hashes.
func (r *Repo) embeddingIndex(mc dommc.Context) db.EmbeddingIndex {
	return db.EmbeddingIndex{
		Name:           domain.EmbeddingIndex(mc.Name()),
		Prefix:         domain.EmbeddingPrefix(mc.Name()),
		Dim:            mc.VectorDim(),
		M:              r.hnsw.M,
		EFConstruction: r.hnsw.EFConstruct,
	}
}
