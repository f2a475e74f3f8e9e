// Package matchctx models a matching context: a partition of the candidate pool
// (a community, a server, an audience segment) with its own embedding dimension.
package matchctx

import (
	"fmt"
	"regexp"
	"time"
)

// MaxVectorDim bounds the embedding dimension a context may declare.
const MaxVectorDim = 4096

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Context is the matching context aggregate (immutable value object).
type Context struct {
	name      string
	vectorDim int
	createdAt int64
}

// ValidateName checks a context name: ^[a-zA-Z0-9_-]+$, 1-64 chars.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("context name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("context name too long (max 64)")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("context name must be alphanumeric with underscores and hyphens")
	}
	return nil
}

// New validates and creates a Context.
func New(name string, vectorDim int) (Context, error) {
	if err := ValidateName(name); err != nil {
		return Context{}, err
	}
	if vectorDim <= 0 || vectorDim > MaxVectorDim {
		return Context{}, fmt.Errorf("vector dimension must be between 1 and %d", MaxVectorDim)
	}
	return Context{name: name, vectorDim: vectorDim, createdAt: time.Now().UnixMilli()}, nil
}

// Reconstruct creates a Context without validation (storage hydration).
func Reconstruct(name string, vectorDim int, createdAt int64) Context {
	return Context{name: name, vectorDim: vectorDim, createdAt: createdAt}
}

// Name returns the partition key.
func (c Context) Name() string { return c.name }

// VectorDim returns the embedding dimension every vector in this context must have.
func (c Context) VectorDim() int { return c.vectorDim }

// CreatedAt returns the creation timestamp (unix millis).
func (c Context) CreatedAt() int64 { return c.createdAt }
