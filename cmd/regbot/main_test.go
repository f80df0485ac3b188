package main

import (
	"path/filepath"
	"testing"
)

func TestLoadEnvironmentConfigDefaults(t *testing.T) {
	t.Setenv("REGBOT_SCHEMA_PATH", "")
	t.Setenv("REGBOT_DB_DSN", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REGBOT_STATE_DIR", "")
	t.Setenv("REGBOT_API_ADDR", "")
	t.Setenv("REGBOT_SESSION_TTL_HOURS", "")
	t.Setenv("REGBOT_TRIGGER_SCAN_SECONDS", "")

	config := loadEnvironmentConfig()

	if config.StateDir != DefaultStateDir {
		t.Errorf("StateDir = %q, want %q", config.StateDir, DefaultStateDir)
	}
	if config.APIAddr != DefaultAPIAddr {
		t.Errorf("APIAddr = %q, want %q", config.APIAddr, DefaultAPIAddr)
	}
	if config.SessionTTL != DefaultSessionTTLHours {
		t.Errorf("SessionTTL = %d, want %d", config.SessionTTL, DefaultSessionTTLHours)
	}
	if config.ScanSeconds != DefaultTriggerScanSeconds {
		t.Errorf("ScanSeconds = %d, want %d", config.ScanSeconds, DefaultTriggerScanSeconds)
	}
	wantDSN := filepath.Join(DefaultStateDir, DefaultDBFileName)
	if config.DatabaseDSN != wantDSN {
		t.Errorf("DatabaseDSN = %q, want %q", config.DatabaseDSN, wantDSN)
	}
}

func TestLoadEnvironmentConfigOverrides(t *testing.T) {
	t.Setenv("REGBOT_SCHEMA_PATH", "/etc/regbot/schema.yaml")
	t.Setenv("REGBOT_DB_DSN", "")
	t.Setenv("DATABASE_URL", "postgres://regbot:pw@db/regbot")
	t.Setenv("REGBOT_STATE_DIR", "/tmp/regbot-state")
	t.Setenv("REGBOT_API_ADDR", ":9090")
	t.Setenv("REGBOT_SESSION_TTL_HOURS", "48")
	t.Setenv("REGBOT_TRIGGER_SCAN_SECONDS", "30")

	config := loadEnvironmentConfig()

	if config.SchemaPath != "/etc/regbot/schema.yaml" {
		t.Errorf("SchemaPath = %q", config.SchemaPath)
	}
	if config.DatabaseDSN != "postgres://regbot:pw@db/regbot" {
		t.Errorf("DatabaseDSN = %q, want DATABASE_URL fallback", config.DatabaseDSN)
	}
	if config.StateDir != "/tmp/regbot-state" {
		t.Errorf("StateDir = %q", config.StateDir)
	}
	if config.APIAddr != ":9090" {
		t.Errorf("APIAddr = %q", config.APIAddr)
	}
	if config.SessionTTL != 48 {
		t.Errorf("SessionTTL = %d", config.SessionTTL)
	}
	if config.ScanSeconds != 30 {
		t.Errorf("ScanSeconds = %d", config.ScanSeconds)
	}
}

func TestLoadSchemaFallsBackToBuiltin(t *testing.T) {
	schema, err := loadSchema("")
	if err != nil {
		t.Fatalf("loadSchema(\"\") failed: %v", err)
	}
	if len(schema.Steps) == 0 {
		t.Error("built-in schema has no steps")
	}
}

func TestLoadSchemaMissingFile(t *testing.T) {
	if _, err := loadSchema("/nonexistent/schema.yaml"); err == nil {
		t.Error("expected error for missing schema file")
	}
}
