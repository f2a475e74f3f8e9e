package rendezvous

import (
	"context"
	"fmt"
	"time"

	discoveryuc "github.com/kailas-cloud/rendezvous/internal/usecase/discovery"
)

// DiscoverOption configures a discovery request.
type DiscoverOption func(*discoveryuc.Request)

// WithCount sets how many candidates to return (default 5, max 20).
func WithCount(n int) DiscoverOption {
	return func(r *discoveryuc.Request) { r.Count = n }
}

// WithLabels restricts candidates to those carrying any of the labels.
func WithLabels(labels ...string) DiscoverOption {
	return func(r *discoveryuc.Request) { r.Labels = append(r.Labels, labels...) }
}

// Discover ranks candidates for the caller in a context, most similar first.
// Flagged users and the caller are never returned.
func (c *Client) Discover(
	ctx context.Context, callerID, contextName string, opts ...DiscoverOption,
) (_ []Match, err error) {
	start := time.Now()
	defer func() { c.obs.observe("discover", start, err) }()

	req := discoveryuc.Request{CallerID: callerID, Context: contextName}
	for _, o := range opts {
		o(&req)
	}

	matches, err := c.discoverySvc.Discover(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	out := make([]Match, len(matches))
	for i, m := range matches {
		out[i] = Match(m)
	}
	return out, nil
}
