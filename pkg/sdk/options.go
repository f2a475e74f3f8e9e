package rendezvous

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	username string
	password string

	annotator Annotator

	vectorDimensions int
	hnswM            int
	hnswEFConstruct  int
	maxBatchSize     int
	primaryTimeout   time.Duration
	sessionTTL       time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey configures the client to connect to a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis configures the client to connect to a Redis instance.
// Redis and Valkey share one driver; the two options differ only by name.
func WithRedis(addr, password string) Option {
	return WithValkey(addr, password)
}

// WithACLUser sets the ACL username used with the password.
func WithACLUser(username string) Option {
	return optionFunc(func(c *clientConfig) {
		c.username = username
	})
}

// WithAnnotator sets the "why you match" text writer.
// Without it every match and session carries the default annotation.
func WithAnnotator(a Annotator) Option {
	return optionFunc(func(c *clientConfig) {
		c.annotator = a
	})
}

// WithVectorDimensions sets the dimension of contexts created implicitly by embedding upserts.
// Defaults to 768.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithMaxBatchSize sets the maximum number of vectors per batch upsert.
// Default: 100.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxBatchSize = size
	})
}

// WithPrimaryTimeout bounds the index search before discovery falls back to a full scan.
func WithPrimaryTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.primaryTimeout = d
	})
}

// WithSessionTTL sets the lifetime of new match sessions. Default: 10 minutes.
func WithSessionTTL(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.sessionTTL = d
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
