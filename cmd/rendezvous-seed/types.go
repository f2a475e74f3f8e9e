package main

import (
	"errors"
	"slices"
	"strings"

	rendezvous "github.com/kailas-cloud/rendezvous/pkg/sdk"
)

// profileRow is one row of a seed parquet file.
type profileRow struct {
	UserID      string    `parquet:"user_id"`
	Summary     string    `parquet:"summary,optional"`
	DisplayName string    `parquet:"display_name,optional"`
	Flagged     bool      `parquet:"flagged,optional"`
	Labels      []string  `parquet:"labels,list"`
	Embedding   []float32 `parquet:"embedding,list"`
}

// valid reports whether the row carries enough to be loaded.
func (r *profileRow) valid() bool {
	return strings.TrimSpace(r.UserID) != "" && len(r.Embedding) > 0
}

// detach copies the slices the reader may reuse on its next read.
func (r *profileRow) detach() profileRow {
	out := *r
	out.Labels = slices.Clone(r.Labels)
	out.Embedding = slices.Clone(r.Embedding)
	return out
}

func (r *profileRow) profileOptions() []rendezvous.ProfileOption {
	var opts []rendezvous.ProfileOption
	if r.DisplayName != "" {
		opts = append(opts, rendezvous.WithDisplayName(r.DisplayName))
	}
	if r.Flagged {
		opts = append(opts, rendezvous.Flagged())
	}
	return opts
}

func (r *profileRow) embeddingItem() rendezvous.EmbeddingItem {
	return rendezvous.EmbeddingItem{UserID: r.UserID, Vector: r.Embedding, Labels: r.Labels}
}

func isAlreadyExists(err error) bool {
	return errors.Is(err, rendezvous.ErrAlreadyExists)
}
