package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("HOMEDECK_CONFIG")
	defer os.Setenv("HOMEDECK_CONFIG", originalEnv)

	os.Unsetenv("HOMEDECK_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("HOMEDECK_CONFIG")
	defer os.Setenv("HOMEDECK_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("HOMEDECK_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("HOMEDECK_CONFIG")
	defer os.Setenv("HOMEDECK_CONFIG", originalEnv)

	os.Setenv("HOMEDECK_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingJWTSecret verifies run fails when the signing secret
// is absent.
func TestRun_MissingJWTSecret(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
database:
  path: "` + filepath.Join(tmpDir, "test.db") + `"

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("HOMEDECK_CONFIG")
	defer os.Setenv("HOMEDECK_CONFIG", originalEnv)
	os.Setenv("HOMEDECK_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail without a JWT secret")
	}
}

// TestRun_StartupAndShutdown runs the full wiring with external
// integrations disabled, then cancels the context.
func TestRun_StartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
database:
  path: "` + filepath.Join(tmpDir, "test.db") + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

api:
  host: "127.0.0.1"
  port: 18231

ota:
  simulate: true
  simulate_step_seconds: 1

logging:
  level: error
  format: text
  output: stdout

security:
  jwt:
    secret: "test-secret-long-enough-for-validation!"
  dev:
    username: "admin"
    password: "homedeck-test"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("HOMEDECK_CONFIG")
	defer os.Setenv("HOMEDECK_CONFIG", originalEnv)
	os.Setenv("HOMEDECK_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() returned error: %v", err)
	}
}
