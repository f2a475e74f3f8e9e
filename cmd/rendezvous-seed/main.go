// Command rendezvous-seed bulk-loads profiles and their embeddings from parquet
// files into one matching context through the embedded client.
// It resumes from a cursor file, uploads with a worker pool and exposes
// Prometheus metrics while it runs.
//
// Usage:
//
//	rendezvous-seed --data-dir /data --context founders --dim 768 --workers 8
//
// Env vars:
//
//	REDIS_ADDR     store address (default: localhost:6379)
//	REDIS_PASSWORD store password
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/rueidis"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rendezvous/internal/config"
	"github.com/kailas-cloud/rendezvous/internal/domain"
	logpkg "github.com/kailas-cloud/rendezvous/internal/logger"
	rendezvous "github.com/kailas-cloud/rendezvous/pkg/sdk"
)

func main() {
	cfg := parseFlags()

	logger, err := logpkg.NewLogger(config.GetEnv())
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGTERM, syscall.SIGINT,
	)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		cancel()
		logger.Fatal("seed failed", zap.Error(err))
	}
}

type seedConfig struct {
	dataDir        string
	contextName    string
	dim            int
	maxRows        int
	workers        int
	batchSize      int
	metricsPort    string
	cursorInterval int
	reset          bool
}

func parseFlags() seedConfig {
	cfg := seedConfig{}
	pflag.StringVar(&cfg.dataDir, "data-dir", "/data", "directory with parquet files and the cursor")
	pflag.StringVar(&cfg.contextName, "context", "", "matching context to load into (required)")
	pflag.IntVar(&cfg.dim, "dim", 768, "vector dimension of the context")
	pflag.IntVar(&cfg.maxRows, "max-rows", 0, "max rows to load (0=unlimited)")
	pflag.IntVar(&cfg.workers, "workers", 8, "number of parallel upsert workers")
	pflag.IntVar(&cfg.batchSize, "batch-size", 100, "rows per batch upsert")
	pflag.StringVar(&cfg.metricsPort, "metrics-port", "9090", "Prometheus metrics port")
	pflag.IntVar(&cfg.cursorInterval, "cursor-interval", 10000, "save cursor every N rows")
	pflag.BoolVar(&cfg.reset, "reset", false, "reset cursor and start from scratch")
	pflag.Parse()
	return cfg
}

func run(ctx context.Context, cfg seedConfig, logger *zap.Logger) error {
	if cfg.contextName == "" {
		return fmt.Errorf("--context is required")
	}
	start := time.Now()

	reg := prometheus.NewRegistry()
	metrics := newSeedMetrics(reg)
	metricsSrv := serveMetrics(cfg.metricsPort, reg, logger)
	defer func() {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		_ = metricsSrv.Shutdown(shutCtx)
	}()

	cursor, err := newCursorTracker(cfg.dataDir, cfg.cursorInterval, logger)
	if err != nil {
		return fmt.Errorf("cursor: %w", err)
	}
	if cfg.reset {
		cursor.Reset()
		logger.Info("cursor reset, starting from scratch")
	}

	reader, err := newParquetReader(cfg.dataDir)
	if err != nil {
		return fmt.Errorf("init parquet reader: %w", err)
	}
	logger.Info("parquet files found", zap.Int("files", len(reader.files)), zap.String("dir", cfg.dataDir))

	addr := env("REDIS_ADDR", "localhost:6379")
	password := env("REDIS_PASSWORD", "")

	client, err := rendezvous.New(ctx,
		rendezvous.WithRedis(addr, password),
		rendezvous.WithVectorDimensions(cfg.dim),
		rendezvous.WithMaxBatchSize(cfg.batchSize),
	)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	if err := ensureContext(ctx, client, cfg); err != nil {
		return err
	}

	startStorePoller(ctx, addr, password, cfg.contextName, metrics, logger)

	ing := &ingester{
		profiles:    client.Profiles(),
		contextName: cfg.contextName,
		workers:     cfg.workers,
		batchSize:   cfg.batchSize,
		metrics:     metrics,
		cursor:      cursor,
		logger:      logger,
	}
	result, err := ing.Run(ctx, reader, cfg.maxRows)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	elapsed := time.Since(start)
	logger.Info("seed done",
		zap.Duration("elapsed", elapsed.Round(time.Second)),
		zap.Int64("processed", result.Processed),
		zap.Int64("failed", result.Failed),
		zap.Float64("rows_per_sec", float64(result.Processed)/elapsed.Seconds()),
	)
	cursor.Done()
	return nil
}

// ensureContext creates the context on first run and checks the dimension on resume.
func ensureContext(ctx context.Context, client *rendezvous.Client, cfg seedConfig) error {
	info, err := client.Contexts().Create(ctx, cfg.contextName, cfg.dim)
	if err == nil {
		return nil
	}
	if !isAlreadyExists(err) {
		return fmt.Errorf("create context: %w", err)
	}
	info, err = client.Contexts().Get(ctx, cfg.contextName)
	if err != nil {
		return fmt.Errorf("get context: %w", err)
	}
	if info.VectorDimensions != cfg.dim {
		return domain.NewDimMismatch(cfg.contextName, info.VectorDimensions, cfg.dim)
	}
	return nil
}

func startStorePoller(
	ctx context.Context, addr, password, contextName string,
	metrics *seedMetrics, logger *zap.Logger,
) {
	rc, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{addr},
		Password:    password,
	})
	if err != nil {
		logger.Warn("cannot connect rueidis for metrics", zap.Error(err))
		return
	}
	go func() {
		<-ctx.Done()
		rc.Close()
	}()

	poller := &storePoller{
		client:   rc,
		metrics:  metrics,
		index:    domain.EmbeddingIndex(contextName),
		context:  contextName,
		interval: 30 * time.Second,
	}
	poller.Start(ctx)
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
