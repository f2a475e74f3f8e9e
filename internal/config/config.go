package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the rendezvous API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Matching   MatchingConfig   `yaml:"matching"`
	Sessions   SessionsConfig   `yaml:"sessions"`
	Messages   MessagesConfig   `yaml:"messages"`
	Annotation AnnotationConfig `yaml:"annotation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys      []string `yaml:"api_keys"`
	CallerHeader string   `yaml:"caller_header"` // trusted end-user id header set by the gateway
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	PingIntervalSec int `yaml:"ws_ping_interval_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// MatchingConfig holds ranking and index settings.
type MatchingConfig struct {
	DefaultCount     int `yaml:"default_count"`
	MaxCount         int `yaml:"max_count"`
	PrimaryTimeoutMs int `yaml:"primary_timeout_ms"`
	DefaultDimension int `yaml:"default_dimension"`
	HNSWM            int `yaml:"hnsw_m"`
	HNSWEFConstruct  int `yaml:"hnsw_ef_construction"`
	MaxBatchSize     int `yaml:"max_batch_size"`
}

// SessionsConfig holds match session settings.
type SessionsConfig struct {
	TTLSec int `yaml:"ttl_sec"`
}

// MessagesConfig holds message log settings.
type MessagesConfig struct {
	PageSize          int `yaml:"page_size"`
	MaxPageSize       int `yaml:"max_page_size"`
	IdempotencyTTLSec int `yaml:"idempotency_ttl_sec"`
	PushBuffer        int `yaml:"push_buffer"`
	SubscribeWaitMs   int `yaml:"subscribe_wait_ms"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// AnnotationConfig holds "why you match" generator settings.
type AnnotationConfig struct {
	Provider      string       `yaml:"provider"`
	APIKey        string       `yaml:"api_key"`
	BaseURL       string       `yaml:"base_url"`
	Model         string       `yaml:"model"`
	TimeoutMs     int          `yaml:"timeout_ms"`
	MaxTokens     int          `yaml:"max_tokens"`
	MaxCharacters int          `yaml:"max_characters"`
	DefaultText   string       `yaml:"default_text"`
	CacheTTLSec   int          `yaml:"cache_ttl_sec"`
	Budget        BudgetConfig `yaml:"budget"`
}

// Enabled reports whether a generator is configured. Without one every annotation is the default text.
func (a AnnotationConfig) Enabled() bool {
	return a.APIKey != "" && a.Model != ""
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables in raw YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadDotEnv loads variables from .env files without overriding the real environment.
// Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 15
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.PingIntervalSec <= 0 {
		c.HTTP.PingIntervalSec = 25
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Auth.CallerHeader == "" {
		c.Auth.CallerHeader = "X-User-ID"
	}
	c.Matching.applyDefaults()
	if c.Sessions.TTLSec <= 0 {
		c.Sessions.TTLSec = 600
	}
	c.Messages.applyDefaults()
	c.Annotation.applyDefaults()
}

func (m *MatchingConfig) applyDefaults() {
	if m.DefaultCount <= 0 {
		m.DefaultCount = 5
	}
	if m.MaxCount <= 0 {
		m.MaxCount = 20
	}
	if m.PrimaryTimeoutMs <= 0 {
		m.PrimaryTimeoutMs = 2000
	}
	if m.DefaultDimension <= 0 {
		m.DefaultDimension = 768
	}
	if m.HNSWM <= 0 {
		m.HNSWM = 16
	}
	if m.HNSWEFConstruct <= 0 {
		m.HNSWEFConstruct = 200
	}
	if m.MaxBatchSize <= 0 {
		m.MaxBatchSize = 100
	}
}

func (m *MessagesConfig) applyDefaults() {
	if m.PageSize <= 0 {
		m.PageSize = 500
	}
	if m.MaxPageSize <= 0 {
		m.MaxPageSize = 1000
	}
	if m.IdempotencyTTLSec <= 0 {
		m.IdempotencyTTLSec = 86400
	}
	if m.PushBuffer <= 0 {
		m.PushBuffer = 64
	}
	if m.SubscribeWaitMs <= 0 {
		m.SubscribeWaitMs = 5000
	}
}

func (a *AnnotationConfig) applyDefaults() {
	if a.Provider == "" {
		a.Provider = "openai"
	}
	if a.TimeoutMs <= 0 {
		a.TimeoutMs = 5000
	}
	if a.MaxTokens <= 0 {
		a.MaxTokens = 150
	}
	if a.MaxCharacters <= 0 {
		a.MaxCharacters = 200
	}
	if a.DefaultText == "" {
		a.DefaultText = "You two should connect."
	}
	if a.CacheTTLSec <= 0 {
		a.CacheTTLSec = 7 * 24 * 3600
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "valkey", "redis":
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Matching.DefaultCount > c.Matching.MaxCount {
		return fmt.Errorf("matching.default_count (%d) must not exceed matching.max_count (%d)",
			c.Matching.DefaultCount, c.Matching.MaxCount)
	}
	if c.Messages.PageSize > c.Messages.MaxPageSize {
		return fmt.Errorf("messages.page_size (%d) must not exceed messages.max_page_size (%d)",
			c.Messages.PageSize, c.Messages.MaxPageSize)
	}
	switch c.Annotation.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"annotation.budget.action must be \"warn\" or \"reject\", got %q", c.Annotation.Budget.Action,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
