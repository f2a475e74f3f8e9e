package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_InvalidBudgetAction(t *testing.T) {
	cfg := validConfig()
	cfg.Annotation.Budget = BudgetConfig{DailyTokenLimit: 1000000, Action: "invalid_action"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid budget action")
	}

	expected := `annotation.budget.action must be "warn" or "reject", got "invalid_action"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidBudgetActions(t *testing.T) {
	for _, action := range []string{"", "warn", "reject"} {
		t.Run("action="+action, func(t *testing.T) {
			cfg := validConfig()
			cfg.Annotation.Budget.Action = action
			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid action %q: %v", action, err)
			}
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"addrs", func(c *Config) { c.Database.Addrs = nil }, "database.addrs"},
		{"driver", func(c *Config) { c.Database.Driver = "postgres" }, "database.driver"},
		{"count", func(c *Config) { c.Matching.DefaultCount = 50 }, "matching.default_count"},
		{"page size", func(c *Config) { c.Messages.PageSize = 5000 }, "messages.page_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Database.Driver != "valkey" {
		t.Errorf("driver: got %q", cfg.Database.Driver)
	}
	if cfg.Auth.CallerHeader != "X-User-ID" {
		t.Errorf("caller header: got %q", cfg.Auth.CallerHeader)
	}
	if cfg.Matching.DefaultCount != 5 || cfg.Matching.MaxCount != 20 {
		t.Errorf("counts: got %d/%d", cfg.Matching.DefaultCount, cfg.Matching.MaxCount)
	}
	if cfg.Matching.DefaultDimension != 768 {
		t.Errorf("dimension: got %d", cfg.Matching.DefaultDimension)
	}
	if cfg.Sessions.TTLSec != 600 {
		t.Errorf("session ttl: got %d", cfg.Sessions.TTLSec)
	}
	if cfg.Messages.PageSize != 500 || cfg.Messages.MaxPageSize != 1000 {
		t.Errorf("page sizes: got %d/%d", cfg.Messages.PageSize, cfg.Messages.MaxPageSize)
	}
	if cfg.Messages.SubscribeWaitMs != 5000 {
		t.Errorf("subscribe wait: got %d", cfg.Messages.SubscribeWaitMs)
	}
	if cfg.Annotation.DefaultText != "You two should connect." || cfg.Annotation.MaxCharacters != 200 {
		t.Errorf("annotation defaults: %+v", cfg.Annotation)
	}
	if cfg.Annotation.Enabled() {
		t.Error("annotation must be disabled without api key")
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("RDV_TEST_PORT", "9090")
	t.Setenv("RDV_TEST_KEY", "")

	raw := []byte(`
http:
  port: ${RDV_TEST_PORT}
database:
  driver: redis
  addrs: ["${RDV_TEST_ADDR:-localhost:6379}"]
annotation:
  api_key: ${RDV_TEST_KEY:-sk-default}
  model: gpt-4o-mini
`)
	cfg, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port: got %d", cfg.HTTP.Port)
	}
	if cfg.Database.Addrs[0] != "localhost:6379" {
		t.Errorf("addr default: got %q", cfg.Database.Addrs[0])
	}
	if cfg.Annotation.APIKey != "sk-default" {
		t.Errorf("empty env must fall back to default, got %q", cfg.Annotation.APIKey)
	}
	if !cfg.Annotation.Enabled() {
		t.Error("annotation should be enabled")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("RDV_DOTENV_VAR=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RDV_DOTENV_VAR", "")
	_ = os.Unsetenv("RDV_DOTENV_VAR")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("RDV_DOTENV_VAR"); got != "from-file" {
		t.Errorf("got %q", got)
	}
}

func TestLoad_LocalConfig(t *testing.T) {
	cfg, err := Load("local")
	if err != nil {
		t.Fatalf("Load(local): %v", err)
	}
	if cfg.HTTP.Port == 0 {
		t.Error("port not set")
	}
}
