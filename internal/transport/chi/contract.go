package chi

import (
	"context"

	dombatch "github.com/kailas-cloud/rendezvous/internal/domain/batch"
	dommc "github.com/kailas-cloud/rendezvous/internal/domain/matchctx"
	dommsg "github.com/kailas-cloud/rendezvous/internal/domain/message"
	domprofile "github.com/kailas-cloud/rendezvous/internal/domain/profile"
	domsession "github.com/kailas-cloud/rendezvous/internal/domain/session"
	domusage "github.com/kailas-cloud/rendezvous/internal/domain/usage"
	discoveryuc "github.com/kailas-cloud/rendezvous/internal/usecase/discovery"
	healthuc "github.com/kailas-cloud/rendezvous/internal/usecase/health"
	messageuc "github.com/kailas-cloud/rendezvous/internal/usecase/message"
	profileuc "github.com/kailas-cloud/rendezvous/internal/usecase/profile"
	sessionuc "github.com/kailas-cloud/rendezvous/internal/usecase/session"
)

// Contexts manages matching contexts.
type Contexts interface {
	Create(ctx context.Context, name string, vectorDim int) (dommc.Context, error)
	Get(ctx context.Context, name string) (dommc.Context, error)
	List(ctx context.Context) ([]dommc.Context, error)
	Delete(ctx context.Context, name string) error
}

// Profiles ingests profiles and embeddings.
type Profiles interface {
	UpsertProfile(ctx context.Context, userID, summary, displayName string, flagged bool) (domprofile.Profile, error)
	UpsertEmbedding(ctx context.Context, contextName string, in profileuc.EmbeddingInput) error
	UpsertEmbeddings(ctx context.Context, contextName string, items []profileuc.EmbeddingInput) []dombatch.Result
}

// Discovery ranks and annotates candidates.
type Discovery interface {
	Discover(ctx context.Context, req discoveryuc.Request) ([]discoveryuc.Match, error)
}

// Sessions runs the match session lifecycle.
type Sessions interface {
	Connect(ctx context.Context, req sessionuc.ConnectRequest) (sessionuc.ConnectResult, error)
	Describe(ctx context.Context, sessionID, callerID string) (domsession.View, error)
	Close(ctx context.Context, sessionID, callerID string) (domsession.CloseResult, error)
	List(ctx context.Context, callerID string, limit int) ([]domsession.View, error)
}

// Messages appends to and reads session logs.
type Messages interface {
	Append(ctx context.Context, req messageuc.AppendRequest) (dommsg.Message, error)
	Pull(ctx context.Context, req messageuc.PullRequest) (dommsg.Page, error)
	Subscribe(ctx context.Context, sessionID, callerID string) (<-chan dommsg.Event, error)
}

// Usage reports annotation token usage.
type Usage interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// Health aggregates dependency checks.
type Health interface {
	Check(ctx context.Context) healthuc.Report
}

// Services groups the usecases served over HTTP.
type Services struct {
	Contexts  Contexts
	Profiles  Profiles
	Discovery Discovery
	Sessions  Sessions
	Messages  Messages
	Usage     Usage
	Health    Health
}
