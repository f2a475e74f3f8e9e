// Package discovery answers "who should I talk to" for a caller in a context.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rendezvous/internal/domain"
	dommc "github.com/kailas-cloud/rendezvous/internal/domain/matchctx"
	domprofile "github.com/kailas-cloud/rendezvous/internal/domain/profile"
	"github.com/kailas-cloud/rendezvous/internal/usecase/ranking"
)

// Request is one discovery call.
type Request struct {
	CallerID string
	Context  string
	Count    int
	Labels   []string
}

// Match is one ranked candidate with its display fields and annotation.
type Match struct {
	UserID      string
	DisplayName string
	Summary     string
	Annotation  string
	Score       float64
}

// Service implements discovery.
type Service struct {
	profiles Profiles
	ranker   Ranker
	blurber  Blurber
	logger   *zap.Logger
}

// New creates a discovery service.
func New(profiles Profiles, ranker Ranker, blurber Blurber, logger *zap.Logger) *Service {
	return &Service{profiles: profiles, ranker: ranker, blurber: blurber, logger: logger}
}

// Discover ranks candidates for the caller, excluding the caller and every flagged profile.
// An empty slice means nobody matched.
func (s *Service) Discover(ctx context.Context, req Request) ([]Match, error) {
	if err := domprofile.ValidateID(req.CallerID); err != nil {
		return nil, fmt.Errorf("validate caller: %w: %w", domain.ErrInvalidSchema, err)
	}
	if err := dommc.ValidateName(req.Context); err != nil {
		return nil, fmt.Errorf("validate context: %w: %w", domain.ErrInvalidSchema, err)
	}

	emb, err := s.profiles.GetEmbedding(ctx, req.Context, req.CallerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("discover %s in %s: %w", req.CallerID, req.Context, domain.ErrNoProfileVector)
		}
		return nil, fmt.Errorf("load caller vector: %w: %w", domain.ErrMatchingUnavailable, err)
	}

	flagged, err := s.profiles.FlaggedIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load flagged ids: %w: %w", domain.ErrMatchingUnavailable, err)
	}

	excluded := make([]string, 0, len(flagged)+1)
	excluded = append(excluded, flagged...)
	excluded = append(excluded, req.CallerID)

	candidates, err := s.ranker.Rank(ctx, ranking.Request{
		Context:  req.Context,
		Vector:   emb.Vector(),
		Excluded: excluded,
		Labels:   req.Labels,
		TopN:     req.Count,
	})
	if err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}
	if len(candidates) == 0 {
		return []Match{}, nil
	}

	ids := make([]string, 0, len(candidates)+1)
	ids = append(ids, req.CallerID)
	for _, c := range candidates {
		ids = append(ids, c.UserID)
	}
	profiles, err := s.profiles.GetProfiles(ctx, ids)
	if err != nil {
		// Display fields are optional; ranking already succeeded.
		s.logger.Warn("Failed to load candidate profiles", zap.Error(err))
		profiles = map[string]domprofile.Profile{}
	}
	callerSummary := profiles[req.CallerID].Summary()

	matches := make([]Match, len(candidates))
	var wg sync.WaitGroup
	for i, c := range candidates {
		p := profiles[c.UserID]
		matches[i] = Match{
			UserID:      c.UserID,
			DisplayName: p.DisplayName(),
			Summary:     p.Summary(),
			Score:       c.Score,
		}
		wg.Add(1)
		go func(i int, summary string) {
			defer wg.Done()
			matches[i].Annotation = s.blurber.Blurb(ctx, req.Context, callerSummary, summary)
		}(i, p.Summary())
	}
	wg.Wait()

	s.logger.Debug("Discovery completed",
		zap.String("caller", req.CallerID),
		zap.String("context", req.Context),
		zap.Int("matches", len(matches)),
	)
	return matches, nil
}
