package rendezvous

import (
	"context"
	"fmt"
	"time"

	dombatch "github.com/kailas-cloud/rendezvous/internal/domain/batch"
	domprofile "github.com/kailas-cloud/rendezvous/internal/domain/profile"
	profileuc "github.com/kailas-cloud/rendezvous/internal/usecase/profile"
)

// ProfileOption configures a profile upsert.
type ProfileOption func(*profileConfig)

type profileConfig struct {
	displayName string
	flagged     bool
}

// WithDisplayName sets the name shown next to discovered candidates.
func WithDisplayName(name string) ProfileOption {
	return func(c *profileConfig) { c.displayName = name }
}

// Flagged excludes the profile from every discovery result.
func Flagged() ProfileOption {
	return func(c *profileConfig) { c.flagged = true }
}

// ProfileService ingests profiles and their per-context vectors.
type ProfileService struct {
	svc profileUseCase
	obs *observer
}

// Upsert creates or replaces a profile.
func (s *ProfileService) Upsert(
	ctx context.Context, userID, summary string, opts ...ProfileOption,
) (_ Profile, err error) {
	start := time.Now()
	defer func() { s.obs.observe("profile.upsert", start, err) }()

	var cfg profileConfig
	for _, o := range opts {
		o(&cfg)
	}
	p, err := s.svc.UpsertProfile(ctx, userID, summary, cfg.displayName, cfg.flagged)
	if err != nil {
		return Profile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return fromInternalProfile(p), nil
}

// Get returns a profile by user id.
func (s *ProfileService) Get(ctx context.Context, userID string) (_ Profile, err error) {
	start := time.Now()
	defer func() { s.obs.observe("profile.get", start, err) }()

	p, err := s.svc.GetProfile(ctx, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return fromInternalProfile(p), nil
}

// UpsertEmbedding stores the user's vector in a context, creating the context on first use.
func (s *ProfileService) UpsertEmbedding(
	ctx context.Context, contextName, userID string, vector []float32, labels ...string,
) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("embedding.upsert", start, err) }()

	err = s.svc.UpsertEmbedding(ctx, contextName, profileuc.EmbeddingInput{
		UserID: userID,
		Vector: vector,
		Labels: labels,
	})
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

// UpsertEmbeddings stores several vectors; each item reports its own outcome.
func (s *ProfileService) UpsertEmbeddings(ctx context.Context, contextName string, items []EmbeddingItem) []ItemResult {
	start := time.Now()

	in := make([]profileuc.EmbeddingInput, len(items))
	for i, it := range items {
		in[i] = profileuc.EmbeddingInput{UserID: it.UserID, Vector: it.Vector, Labels: it.Labels}
	}
	results := s.svc.UpsertEmbeddings(ctx, contextName, in)

	out := make([]ItemResult, len(results))
	var firstErr error
	for i, r := range results {
		out[i] = ItemResult{UserID: r.UserID(), OK: r.Status() == dombatch.StatusOK, Err: r.Err()}
		if firstErr == nil && r.Err() != nil {
			firstErr = r.Err()
		}
	}
	s.obs.observe("embedding.batch_upsert", start, firstErr)
	return out
}

func fromInternalProfile(p domprofile.Profile) Profile {
	return Profile{
		UserID:      p.ID(),
		Summary:     p.Summary(),
		DisplayName: p.DisplayName(),
		Flagged:     p.Flagged(),
	}
}
