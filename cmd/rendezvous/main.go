package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rendezvous/internal/config"
	dbRedis "github.com/kailas-cloud/rendezvous/internal/db/redis"
	"github.com/kailas-cloud/rendezvous/internal/domain"
	logpkg "github.com/kailas-cloud/rendezvous/internal/logger"
	"github.com/kailas-cloud/rendezvous/internal/metrics"
	"github.com/kailas-cloud/rendezvous/internal/repository/blurbcache"
	budgetrepo "github.com/kailas-cloud/rendezvous/internal/repository/budget"
	matchctxrepo "github.com/kailas-cloud/rendezvous/internal/repository/matchctx"
	messagerepo "github.com/kailas-cloud/rendezvous/internal/repository/message"
	profilerepo "github.com/kailas-cloud/rendezvous/internal/repository/profile"
	rankingrepo "github.com/kailas-cloud/rendezvous/internal/repository/ranking"
	sessionrepo "github.com/kailas-cloud/rendezvous/internal/repository/session"
	chiTransport "github.com/kailas-cloud/rendezvous/internal/transport/chi"
	openaiAnn "github.com/kailas-cloud/rendezvous/internal/transport/openai"
	annotationuc "github.com/kailas-cloud/rendezvous/internal/usecase/annotation"
	discoveryuc "github.com/kailas-cloud/rendezvous/internal/usecase/discovery"
	healthuc "github.com/kailas-cloud/rendezvous/internal/usecase/health"
	matchctxuc "github.com/kailas-cloud/rendezvous/internal/usecase/matchctx"
	messageuc "github.com/kailas-cloud/rendezvous/internal/usecase/message"
	profileuc "github.com/kailas-cloud/rendezvous/internal/usecase/profile"
	rankinguc "github.com/kailas-cloud/rendezvous/internal/usecase/ranking"
	sessionuc "github.com/kailas-cloud/rendezvous/internal/usecase/session"
	usageuc "github.com/kailas-cloud/rendezvous/internal/usecase/usage"
	"github.com/kailas-cloud/rendezvous/internal/version"
)

func main() {
	envFlag := pflag.String("env", "", "config environment (overrides ENV)")
	dotenv := pflag.StringSlice("dotenv", []string{".env"}, ".env files loaded before config expansion")
	pflag.Parse()

	if err := config.LoadDotEnv(*dotenv...); err != nil {
		panic("failed to load dotenv: " + err.Error())
	}

	env := *envFlag
	if env == "" {
		env = config.GetEnv()
	}

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting rendezvous API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Redis 8 and Valkey with the search module speak the same commands.
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	metrics.RegisterEngineMetrics()
	metrics.RegisterAnnotationMetrics()

	// Single BudgetTracker shared by the annotator chain and the usage service.
	var budget *annotationuc.BudgetTracker
	annCfg := cfg.Annotation
	if annCfg.Enabled() && (annCfg.Budget.DailyTokenLimit > 0 || annCfg.Budget.MonthlyTokenLimit > 0) {
		action := annotationuc.BudgetActionWarn
		if annCfg.Budget.Action == "reject" {
			action = annotationuc.BudgetActionReject
		}
		budget = annotationuc.NewBudgetTracker(
			annCfg.Provider, annCfg.Budget.DailyTokenLimit, annCfg.Budget.MonthlyTokenLimit, action, logger,
		)
		budget.WithStore(ctx, budgetrepo.New(store, budgetrepo.DefaultRetention))
	}

	// Nil interface, not a typed nil pointer.
	var budgetChecker annotationuc.BudgetChecker
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetChecker = budget
		budgetReader = budget
	}

	var annotator domain.Annotator
	var annotationHealth healthuc.AnnotationChecker
	if annCfg.Enabled() {
		base := openaiAnn.NewAnnotator(&openaiAnn.Config{
			APIKey:    annCfg.APIKey,
			BaseURL:   annCfg.BaseURL,
			Model:     annCfg.Model,
			MaxTokens: annCfg.MaxTokens,
			Provider:  annCfg.Provider,
			Logger:    logger,
		})
		annotator = buildAnnotator(base, annCfg, store, budgetChecker, logger)
		annotationHealth = base
		logger.Info("Annotator created",
			zap.String("provider", annCfg.Provider),
			zap.String("model", annCfg.Model),
		)
	} else {
		logger.Info("Annotation provider not configured, default text only")
	}

	blurber := annotationuc.NewBlurber(annotator, annotationuc.Config{
		Timeout:       time.Duration(annCfg.TimeoutMs) * time.Millisecond,
		MaxCharacters: annCfg.MaxCharacters,
		DefaultText:   annCfg.DefaultText,
	}, logger)

	// Repositories
	ctxRepo := matchctxrepo.New(store).WithHNSW(matchctxrepo.HNSWConfig{
		M:           cfg.Matching.HNSWM,
		EFConstruct: cfg.Matching.HNSWEFConstruct,
	})
	profRepo := profilerepo.New(store)
	rankRepo := rankingrepo.New(store)
	sessRepo := sessionrepo.New(store).WithLogger(logger)
	msgRepo := messagerepo.New(store)

	// Use cases
	ctxSvc := matchctxuc.New(ctxRepo, cfg.Matching.DefaultDimension)
	profSvc := profileuc.New(profRepo, ctxSvc).WithMaxBatchSize(cfg.Matching.MaxBatchSize)
	ranker := rankinguc.New(rankRepo, ctxSvc,
		time.Duration(cfg.Matching.PrimaryTimeoutMs)*time.Millisecond, logger)
	discoverySvc := discoveryuc.New(profRepo, ranker, blurber, logger)
	sessSvc := sessionuc.New(sessRepo, profRepo, blurber, msgRepo,
		time.Duration(cfg.Sessions.TTLSec)*time.Second, logger)
	msgSvc := messageuc.New(msgRepo, sessionuc.NewGuard(sessRepo), messageuc.Config{
		PageSize:       cfg.Messages.PageSize,
		MaxPageSize:    cfg.Messages.MaxPageSize,
		IdempotencyTTL: time.Duration(cfg.Messages.IdempotencyTTLSec) * time.Second,
		PushBuffer:     cfg.Messages.PushBuffer,
		SubscribeWait:  time.Duration(cfg.Messages.SubscribeWaitMs) * time.Millisecond,
	}, logger)
	usageSvc := usageuc.New(budgetReader)
	healthSvc := healthuc.New(store, annotationHealth)

	server := chiTransport.NewServer(chiTransport.Services{
		Contexts:  ctxSvc,
		Profiles:  profSvc,
		Discovery: &discoveryCounts{inner: discoverySvc, def: cfg.Matching.DefaultCount, max: cfg.Matching.MaxCount},
		Sessions:  sessSvc,
		Messages:  msgSvc,
		Usage:     usageSvc,
		Health:    healthSvc,
	}, chiTransport.StreamConfig{
		PingInterval: time.Duration(cfg.HTTP.PingIntervalSec) * time.Second,
	}, logger)

	callerHeader := cfg.Auth.CallerHeader
	if callerHeader == "" {
		callerHeader = chiTransport.DefaultCallerHeader
	}

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger, callerHeader))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	chiTransport.HandlerWithOptions(server, chiTransport.ChiServerOptions{
		BaseRouter:   r,
		CallerHeader: callerHeader,
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildAnnotator assembles the decorator chain: OpenAI -> Cached -> Instrumented.
// Cache hits skip the budget.
func buildAnnotator(
	base domain.Annotator,
	annCfg config.AnnotationConfig,
	store *dbRedis.Store,
	budget annotationuc.BudgetChecker,
	logger *zap.Logger,
) domain.Annotator {
	var ann domain.Annotator = annotationuc.NewInstrumented(
		base, annCfg.Provider, annCfg.Model, budget, logger,
	)
	if annCfg.CacheTTLSec > 0 {
		ann = blurbcache.New(ann, store, time.Duration(annCfg.CacheTTLSec)*time.Second,
			metrics.AnnotationCacheTotal, logger)
	}
	return ann
}

// discoveryCounts applies the configured default and ceiling to the requested count.
type discoveryCounts struct {
	inner    chiTransport.Discovery
	def, max int
}

func (d *discoveryCounts) Discover(ctx context.Context, req discoveryuc.Request) ([]discoveryuc.Match, error) {
	switch {
	case req.Count <= 0:
		req.Count = d.def
	case d.max > 0 && req.Count > d.max:
		req.Count = d.max
	}
	return d.inner.Discover(ctx, req)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorResponseCodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger, callerHeader string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			fields := []zap.Field{zap.String("request_id", requestID)}
			if caller := r.Header.Get(callerHeader); caller != "" {
				fields = append(fields, zap.String("caller", caller))
			}
			reqLogger := logger.With(fields...)
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
