package config

import (
	"testing"

	"pointsbot/internal/migration"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr)
	}
	if cfg.Modes.Users != migration.ModeStable || cfg.Modes.Points != migration.ModeStable {
		t.Fatalf("services must default to stable: %+v", cfg.Modes)
	}
	if cfg.needsPostgres() {
		t.Fatal("all-stable deployment must not require postgres")
	}
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	t.Setenv("POINTS_MIGRATION_MODE", "shadow")
	if _, err := Load(); err == nil {
		t.Fatal("expected fail-fast on unknown migration mode")
	}
}

func TestLoadRequiresDatabaseURLForShadowModes(t *testing.T) {
	t.Setenv("POINTS_MIGRATION_MODE", "parallel_test")
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing in parallel_test mode")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/pointsbot")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Modes.Points != migration.ModeParallelTest {
		t.Fatalf("unexpected mode %q", cfg.Modes.Points)
	}
}
