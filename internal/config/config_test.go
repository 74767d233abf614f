package config

import (
	"os"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })
	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	tmpfile.Close()
	return tmpfile.Name()
}

func TestLoadConfig(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		path := writeTempConfig(t, `
port: 8080
debug: true
database:
  type: sqlite
  dsn: "file::memory:"
redis:
  url: "redis://localhost:6379/0"
rate_limit:
  contact_form:
    max_requests: 10
    window: 30m
admin:
  jwt_secret: secret
`)
		config, warning, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		if warning != "" {
			t.Errorf("Expected no warning, got %q", warning)
		}
		if config.Port != 8080 {
			t.Errorf("Expected port 8080, got %d", config.Port)
		}
		if !config.Debug {
			t.Error("Expected debug to be true")
		}
		if config.RateLimit.Store != "redis" {
			t.Errorf("Expected redis store inferred from url, got %s", config.RateLimit.Store)
		}
		if config.RateLimit.ContactForm.MaxRequests != 10 {
			t.Errorf("Expected contact_form max 10, got %d", config.RateLimit.ContactForm.MaxRequests)
		}
		if got := config.RateLimit.ContactForm.WindowDuration(time.Hour); got != 30*time.Minute {
			t.Errorf("Expected 30m window, got %s", got)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		path := writeTempConfig(t, `
database:
  type: sqlite
  dsn: "file::memory:"
admin:
  jwt_secret: secret
`)
		config, warning, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		if warning == "" {
			t.Error("Expected a warning about the in-memory store")
		}
		if config.Scheduler.ReportSpec != "0 7 * * *" {
			t.Errorf("Expected default report spec, got %q", config.Scheduler.ReportSpec)
		}
		if config.RateLimit.Store != "memory" {
			t.Errorf("Expected memory store, got %s", config.RateLimit.Store)
		}
		if config.RateLimit.ContactForm.MaxRequests != 5 {
			t.Errorf("Expected contact_form default 5, got %d", config.RateLimit.ContactForm.MaxRequests)
		}
		if got := config.RateLimit.PartnerApplication.WindowDuration(time.Hour); got != 24*time.Hour {
			t.Errorf("Expected partner_application default 24h, got %s", got)
		}
		if config.Admin.Username != "admin" {
			t.Errorf("Expected default admin username, got %s", config.Admin.Username)
		}
		if config.Admin.TokenTTL() != 12*time.Hour {
			t.Errorf("Expected default token ttl 12h, got %s", config.Admin.TokenTTL())
		}
	})

	t.Run("missing database", func(t *testing.T) {
		path := writeTempConfig(t, `admin: {jwt_secret: s}`)
		if _, _, err := LoadConfig(path); err == nil {
			t.Error("Expected an error, but got nil")
		}
	})

	t.Run("missing jwt secret", func(t *testing.T) {
		path := writeTempConfig(t, "database:\n  type: sqlite\n  dsn: x\n")
		if _, _, err := LoadConfig(path); err == nil {
			t.Error("Expected an error, but got nil")
		}
	})

	t.Run("unknown store", func(t *testing.T) {
		path := writeTempConfig(t, "database: {type: sqlite, dsn: x}\nadmin: {jwt_secret: s}\nrate_limit: {store: etcd}\n")
		if _, _, err := LoadConfig(path); err == nil {
			t.Error("Expected an error for unsupported store")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeTempConfig(t, "database: [\n  type: sqlite")
		if _, _, err := LoadConfig(path); err == nil {
			t.Error("Expected an error for invalid YAML, but got nil")
		}
	})
}

func TestConfigPriority(t *testing.T) {
	t.Run("env vars should override file config", func(t *testing.T) {
		path := writeTempConfig(t,
			"port: 8000\n"+
				"debug: false\n"+
				"database:\n"+
				"  type: \"file-db\"\n"+
				"  dsn: \"file-dsn\"\n"+
				"admin:\n"+
				"  password: \"file-password\"\n"+
				"  jwt_secret: \"file-secret\"\n")

		t.Setenv("INTAKE_PORT", "9000")
		t.Setenv("INTAKE_DEBUG", "true")
		t.Setenv("INTAKE_DATABASE_TYPE", "env-db")
		t.Setenv("INTAKE_DATABASE_DSN", "env-dsn")
		t.Setenv("INTAKE_ADMIN_PASSWORD", "env-password")
		t.Setenv("INTAKE_JWT_SECRET", "env-secret")
		t.Setenv("INTAKE_KAFKA_BROKERS", "k1:9092,k2:9092")

		config, _, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		if config.Port != 9000 {
			t.Errorf("Expected port from env (9000), but got %d", config.Port)
		}
		if !config.Debug {
			t.Error("Expected debug from env (true), but got false")
		}
		if config.Database.Type != "env-db" {
			t.Errorf("Expected db type from env ('env-db'), but got %s", config.Database.Type)
		}
		if config.Database.DSN != "env-dsn" {
			t.Errorf("Expected db dsn from env ('env-dsn'), but got %s", config.Database.DSN)
		}
		if config.Admin.Password != "env-password" {
			t.Errorf("Expected admin password from env ('env-password'), but got %s", config.Admin.Password)
		}
		if config.Admin.JWTSecret != "env-secret" {
			t.Errorf("Expected jwt secret from env, but got %s", config.Admin.JWTSecret)
		}
		if len(config.Kafka.Brokers) != 2 {
			t.Errorf("Expected 2 kafka brokers, got %v", config.Kafka.Brokers)
		}
	})
}
