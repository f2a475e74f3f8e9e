package matchctx

import (
	"fmt"
	"strconv"

	dommc "github.com/kailas-cloud/rendezvous/internal/domain/matchctx"
)

// contextToHash converts a domain Context to a map for HSET.
func contextToHash(mc dommc.Context) map[string]string {
	return map[string]string{
		"name":       mc.Name(),
		"vector_dim": strconv.Itoa(mc.VectorDim()),
		"created_at": strconv.FormatInt(mc.CreatedAt(), 10),
	}
}

// contextFromHash hydrates a domain Context from an HGETALL result map.
func contextFromHash(m map[string]string) (dommc.Context, error) {
	createdAt, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return dommc.Context{}, fmt.Errorf("invalid created_at: %w", err)
	}
	dim, err := strconv.Atoi(m["vector_dim"])
	if err != nil {
		return dommc.Context{}, fmt.Errorf("invalid vector_dim: %w", err)
	}
	return dommc.Reconstruct(m["name"], dim, createdAt), nil
}
