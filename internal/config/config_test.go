package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func TestLoadAppliesDefaultsAndEnvOverrides(t *testing.T) {
	t.Setenv("POSTFLOW_JWT_SECRET", "env-secret")
	t.Setenv("REDIS_ADDR", "localhost:7777")

	cfgPath := writeConfig(t, `
port: "8080"
logLevel: "info"
jwtSecret: "file-secret"
aiModel: "gpt-4o-mini"
aiFallbackModel: "gpt-4o"
`)
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.JWTSecret != "env-secret" {
		t.Fatalf("jwtSecret = %q, want env override", cfg.JWTSecret)
	}
	if cfg.RedisAddr != "localhost:7777" {
		t.Fatalf("redisAddr = %q", cfg.RedisAddr)
	}
	if cfg.CacheTTLHours != 24 {
		t.Fatalf("cacheTTLHours = %d, want default 24", cfg.CacheTTLHours)
	}
	if cfg.AIProvider != "openai-compat" {
		t.Fatalf("aiProvider = %q, want default", cfg.AIProvider)
	}
	if cfg.QueueStream == "" || cfg.AMQPExchange == "" {
		t.Fatalf("expected queue defaults, got %+v", cfg)
	}
}

func TestLoadRejectsMissingPort(t *testing.T) {
	cfgPath := writeConfig(t, `
jwtSecret: "secret"
aiModel: "gpt-4o-mini"
`)
	if _, err := Load(cfgPath); err == nil || !strings.Contains(err.Error(), "port") {
		t.Fatalf("expected port error, got %v", err)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	cfgPath := writeConfig(t, `
port: "8080"
jwtSecret: "secret"
aiModel: "gpt-4o-mini"
aiProvider: "oracle"
`)
	if _, err := Load(cfgPath); err == nil || !strings.Contains(err.Error(), "aiProvider") {
		t.Fatalf("expected provider error, got %v", err)
	}
}
