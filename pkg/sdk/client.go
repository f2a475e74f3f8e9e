package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rendezvous/internal/db"
	dbRedis "github.com/kailas-cloud/rendezvous/internal/db/redis"
	"github.com/kailas-cloud/rendezvous/internal/domain"
	dombatch "github.com/kailas-cloud/rendezvous/internal/domain/batch"
	dommc "github.com/kailas-cloud/rendezvous/internal/domain/matchctx"
	dommsg "github.com/kailas-cloud/rendezvous/internal/domain/message"
	domprofile "github.com/kailas-cloud/rendezvous/internal/domain/profile"
	domsession "github.com/kailas-cloud/rendezvous/internal/domain/session"
	matchctxrepo "github.com/kailas-cloud/rendezvous/internal/repository/matchctx"
	messagerepo "github.com/kailas-cloud/rendezvous/internal/repository/message"
	profilerepo "github.com/kailas-cloud/rendezvous/internal/repository/profile"
	rankingrepo "github.com/kailas-cloud/rendezvous/internal/repository/ranking"
	sessionrepo "github.com/kailas-cloud/rendezvous/internal/repository/session"
	annotationuc "github.com/kailas-cloud/rendezvous/internal/usecase/annotation"
	discoveryuc "github.com/kailas-cloud/rendezvous/internal/usecase/discovery"
	healthuc "github.com/kailas-cloud/rendezvous/internal/usecase/health"
	matchctxuc "github.com/kailas-cloud/rendezvous/internal/usecase/matchctx"
	messageuc "github.com/kailas-cloud/rendezvous/internal/usecase/message"
	profileuc "github.com/kailas-cloud/rendezvous/internal/usecase/profile"
	rankinguc "github.com/kailas-cloud/rendezvous/internal/usecase/ranking"
	sessionuc "github.com/kailas-cloud/rendezvous/internal/usecase/session"
	usageuc "github.com/kailas-cloud/rendezvous/internal/usecase/usage"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultVectorDimensions = 768
	defaultPrimaryTimeout   = 2 * time.Second
)

// Internal interfaces, replaced by fakes in tests.
type contextUseCase interface {
	Create(ctx context.Context, name string, vectorDim int) (dommc.Context, error)
	Get(ctx context.Context, name string) (dommc.Context, error)
	List(ctx context.Context) ([]dommc.Context, error)
	Delete(ctx context.Context, name string) error
}

type profileUseCase interface {
	UpsertProfile(ctx context.Context, userID, summary, displayName string, flagged bool) (domprofile.Profile, error)
	GetProfile(ctx context.Context, userID string) (domprofile.Profile, error)
	UpsertEmbedding(ctx context.Context, contextName string, in profileuc.EmbeddingInput) error
	UpsertEmbeddings(ctx context.Context, contextName string, items []profileuc.EmbeddingInput) []dombatch.Result
}

type discoveryUseCase interface {
	Discover(ctx context.Context, req discoveryuc.Request) ([]discoveryuc.Match, error)
}

type sessionUseCase interface {
	Connect(ctx context.Context, req sessionuc.ConnectRequest) (sessionuc.ConnectResult, error)
	Describe(ctx context.Context, sessionID, callerID string) (domsession.View, error)
	Close(ctx context.Context, sessionID, callerID string) (domsession.CloseResult, error)
	List(ctx context.Context, callerID string, limit int) ([]domsession.View, error)
}

type messageUseCase interface {
	Append(ctx context.Context, req messageuc.AppendRequest) (dommsg.Message, error)
	Pull(ctx context.Context, req messageuc.PullRequest) (dommsg.Page, error)
	Subscribe(ctx context.Context, sessionID, callerID string) (<-chan dommsg.Event, error)
}

// Client is the rendezvous SDK entry point.
type Client struct {
	store        db.Store
	ctxSvc       contextUseCase
	profileSvc   profileUseCase
	discoverySvc discoveryUseCase
	sessionSvc   sessionUseCase
	messageSvc   messageUseCase
	healthSvc    healthUseCase
	usageSvc     usageUseCase
	obs          *observer
}

// New creates a rendezvous Client and connects to the database.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		vectorDimensions: defaultVectorDimensions,
		primaryTimeout:   defaultPrimaryTimeout,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("rendezvous: database address required (use WithValkey or WithRedis)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Username: cfg.username,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("rendezvous: create store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("rendezvous: database not ready: %w", err)
	}

	return wireClient(store, cfg, obs), nil
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) *Client {
	// Internal services log through zap; SDK operations are observed via slog.
	log := zap.NewNop()

	ctxRepo := matchctxrepo.New(store)
	if cfg.hnswM > 0 || cfg.hnswEFConstruct > 0 {
		ctxRepo = ctxRepo.WithHNSW(matchctxrepo.HNSWConfig{
			M:           cfg.hnswM,
			EFConstruct: cfg.hnswEFConstruct,
		})
	}
	profRepo := profilerepo.New(store)
	sessRepo := sessionrepo.New(store).WithLogger(log)
	msgRepo := messagerepo.New(store)

	var ann domain.Annotator
	if cfg.annotator != nil {
		ann = &annotatorAdapter{inner: cfg.annotator}
	}
	blurber := annotationuc.NewBlurber(ann, annotationuc.Config{}, log)

	ctxSvc := matchctxuc.New(ctxRepo, cfg.vectorDimensions)
	profSvc := profileuc.New(profRepo, ctxSvc)
	if cfg.maxBatchSize > 0 {
		profSvc = profSvc.WithMaxBatchSize(cfg.maxBatchSize)
	}
	ranker := rankinguc.New(rankingrepo.New(store), ctxSvc, cfg.primaryTimeout, log)

	return &Client{
		store:        store,
		ctxSvc:       ctxSvc,
		profileSvc:   profSvc,
		discoverySvc: discoveryuc.New(profRepo, ranker, blurber, log),
		sessionSvc:   sessionuc.New(sessRepo, profRepo, blurber, msgRepo, cfg.sessionTTL, log),
		messageSvc:   messageuc.New(msgRepo, sessionuc.NewGuard(sessRepo), messageuc.Config{}, log),
		healthSvc:    healthuc.New(store, nil),
		usageSvc:     usageuc.New(nil), // nil = unlimited mode (no budget tracking in SDK)
		obs:          obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Contexts returns the matching context service.
func (c *Client) Contexts() *ContextService {
	return &ContextService{svc: c.ctxSvc, obs: c.obs}
}

// Profiles returns the profile and embedding service.
func (c *Client) Profiles() *ProfileService {
	return &ProfileService{svc: c.profileSvc, obs: c.obs}
}

// Sessions returns the match session service.
func (c *Client) Sessions() *SessionService {
	return &SessionService{svc: c.sessionSvc, obs: c.obs}
}

// Conversation opens a merged view of a session log for one participant.
func (c *Client) Conversation(sessionID, userID string) *Conversation {
	return newConversation(sessionID, userID, c.messageSvc, c.obs)
}
