package db

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Embedding hash fields covered by an EmbeddingIndex.
const (
	FieldUserID = "user_id"
	FieldLabels = "labels"
	FieldVector = "vector"
)

// EmbeddingIndex is the FT index over one matching context's embedding hashes.
//
// The schema is fixed: user_id is an exact, case sensitive tag so exclusions
// match ids verbatim; labels is a comma separated tag; vector is FLOAT32 under
// HNSW with cosine distance, the metric the ranker converts to similarity.
type EmbeddingIndex struct {
	Name   string
	Prefix string
	Dim    int

	// Zero keeps the server default.
	M              int
	EFConstruction int
}

// Validate checks the index can be created.
func (ix EmbeddingIndex) Validate() error {
	if !IsValidIdentifier(ix.Name) {
		return fmt.Errorf("index name %q must match [a-zA-Z0-9_:-]+", ix.Name)
	}
	if ix.Prefix == "" {
		return errors.New("index prefix is required")
	}
	if ix.Dim <= 0 {
		return fmt.Errorf("vector DIM must be positive, got %d", ix.Dim)
	}
	if ix.M < 0 || ix.EFConstruction < 0 {
		return errors.New("HNSW parameters must not be negative")
	}
	return nil
}

// Args returns the FT.CREATE arguments after the command name.
func (ix EmbeddingIndex) Args() []string {
	hnsw := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(ix.Dim),
		"DISTANCE_METRIC", "COSINE",
	}
	if ix.M > 0 {
		hnsw = append(hnsw, "M", strconv.Itoa(ix.M))
	}
	if ix.EFConstruction > 0 {
		hnsw = append(hnsw, "EF_CONSTRUCTION", strconv.Itoa(ix.EFConstruction))
	}

	args := []string{
		ix.Name, "ON", "HASH", "PREFIX", "1", ix.Prefix,
		"SCHEMA",
		FieldUserID, "TAG", "CASESENSITIVE",
		FieldLabels, "TAG", "SEPARATOR", ",",
		FieldVector, "VECTOR", "HNSW", strconv.Itoa(len(hnsw)),
	}
	return append(args, hnsw...)
}

// String renders the FT.CREATE command.
func (ix EmbeddingIndex) String() string {
	return "FT.CREATE " + strings.Join(ix.Args(), " ")
}

// IsValidIdentifier reports whether s is non-empty and matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	return s != "" && strings.IndexFunc(s, func(r rune) bool {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
			return false
		case r == '_' || r == ':' || r == '-':
			return false
		}
		return true
	}) < 0
}
