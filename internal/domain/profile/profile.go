// Package profile holds the read model of user profiles and their per-context embeddings.
package profile

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	// MaxIDLength bounds externally issued user ids.
	MaxIDLength = 128
	// MaxSummaryLength bounds the free-text summary used for annotations.
	MaxSummaryLength = 2000
	// MaxLabels bounds the labels attached to one embedding.
	MaxLabels = 32
)

// ValidateID checks that id is a syntactically valid user id:
// non-empty, at most MaxIDLength bytes, no whitespace or control characters.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("user id is required")
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("user id too long (max %d)", MaxIDLength)
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("user id contains whitespace or control characters")
		}
	}
	return nil
}

// Profile is a user record owned by the identity subsystem; the engine only reads it.
type Profile struct {
	id          string
	summary     string
	displayName string
	flagged     bool
}

// New validates and creates a Profile.
func New(id, summary, displayName string, flagged bool) (Profile, error) {
	if err := ValidateID(id); err != nil {
		return Profile{}, err
	}
	summary = strings.TrimSpace(summary)
	if len(summary) > MaxSummaryLength {
		return Profile{}, fmt.Errorf("summary too long (max %d)", MaxSummaryLength)
	}
	return Profile{id: id, summary: summary, displayName: strings.TrimSpace(displayName), flagged: flagged}, nil
}

// Reconstruct creates a Profile without validation (storage hydration).
func Reconstruct(id, summary, displayName string, flagged bool) Profile {
	return Profile{id: id, summary: summary, displayName: displayName, flagged: flagged}
}

// ID returns the user id.
func (p Profile) ID() string { return p.id }

// Summary returns the free-text interest summary.
func (p Profile) Summary() string { return p.summary }

// DisplayName returns the display name.
func (p Profile) DisplayName() string { return p.displayName }

// Flagged reports whether the profile is excluded from ranking.
func (p Profile) Flagged() bool { return p.flagged }

// Embedding is a user's vector within one matching context.
type Embedding struct {
	userID  string
	context string
	vector  []float32
	labels  []string
}

// NewEmbedding validates and creates an Embedding. Dimension is checked against the context elsewhere.
func NewEmbedding(userID, context string, vector []float32, labels []string) (Embedding, error) {
	if err := ValidateID(userID); err != nil {
		return Embedding{}, err
	}
	if len(vector) == 0 {
		return Embedding{}, fmt.Errorf("vector is required")
	}
	if len(labels) > MaxLabels {
		return Embedding{}, fmt.Errorf("too many labels (max %d)", MaxLabels)
	}
	clean := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if strings.Contains(l, ",") {
			return Embedding{}, fmt.Errorf("label %q must not contain commas", l)
		}
		clean = append(clean, l)
	}
	return Embedding{userID: userID, context: context, vector: vector, labels: clean}, nil
}

// ReconstructEmbedding creates an Embedding without validation (storage hydration).
func ReconstructEmbedding(userID, context string, vector []float32, labels []string) Embedding {
	return Embedding{userID: userID, context: context, vector: vector, labels: labels}
}

// UserID returns the owning user id.
func (e Embedding) UserID() string { return e.userID }

// Context returns the matching context name.
func (e Embedding) Context() string { return e.context }

// Vector returns the embedding vector.
func (e Embedding) Vector() []float32 { return e.vector }

// Labels returns the labels usable as ranking filters.
func (e Embedding) Labels() []string { return e.labels }

// Dim returns the vector length.
func (e Embedding) Dim() int { return len(e.vector) }
