package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	c, err := loadFrom(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if c.AppPort != "8080" || c.DBDriver != "sqlite" || c.PointsPerTon != 100 || c.WelcomeBonus != 100 {
		t.Fatalf("unexpected defaults %+v", c)
	}
	if c.ScanHistoryLimit != 10 || c.ScanFallback != "random" || c.SessionIdleMinutes != 30 || c.SigninRewardPoints != 10 {
		t.Fatalf("unexpected ledger defaults %+v", c)
	}
}

func TestLoadGroupedSections(t *testing.T) {
	path := writeConfig(t, `{
		"app": {"AppPort": "9000", "JWTSecret": "s3cret", "AllowedOrigins": ["https://a.example"]},
		"database": {"Driver": "mysql", "DBName": "ledger"},
		"ledger": {"PointsPerTon": 50, "ScanFallback": "reject", "SeedDemoAccount": true},
		"metrics": {"Enabled": true}
	}`)
	c, err := loadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.AppPort != "9000" || c.JWTSecret != "s3cret" || c.DBDriver != "mysql" || c.DBName != "ledger" {
		t.Fatalf("sections not applied: %+v", c)
	}
	if c.PointsPerTon != 50 || c.ScanFallback != "reject" || !c.SeedDemoAccount || !c.MetricsEnabled {
		t.Fatalf("ledger section not applied: %+v", c)
	}
	if len(c.AllowedOrigins) != 1 || c.AllowedOrigins[0] != "https://a.example" {
		t.Fatalf("origins = %v", c.AllowedOrigins)
	}
	// untouched keys still get defaults
	if c.WelcomeBonus != 100 || c.DBPort != "3306" {
		t.Fatalf("defaults missing: %+v", c)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{"ledger": {"PointsPerTon": 50}}`)
	t.Setenv("POINTS_PER_TON", "250")
	t.Setenv("SCAN_FALLBACK", "first")
	t.Setenv("METRICS_ENABLED", "1")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	c, err := loadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.PointsPerTon != 250 || c.ScanFallback != "first" || !c.MetricsEnabled {
		t.Fatalf("env not applied: %+v", c)
	}
	if len(c.AllowedOrigins) != 2 || c.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins = %v", c.AllowedOrigins)
	}
}

func TestInvalidInputs(t *testing.T) {
	if _, err := loadFrom(writeConfig(t, `{not json`)); err == nil {
		t.Fatal("expected decode error")
	}
	t.Setenv("WELCOME_BONUS", "lots")
	if _, err := loadFrom(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected integer parse error")
	}
}

func TestOpenDatabaseSQLite(t *testing.T) {
	c, _ := loadFrom(filepath.Join(t.TempDir(), "missing.json"))
	c.DBPath = filepath.Join(t.TempDir(), "nested", "ledger.db")
	c.LogLevel = "silent"

	type probe struct {
		ID   uint
		Name string
	}
	conn, err := OpenDatabase(c, &probe{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !conn.Migrator().HasTable(&probe{}) {
		t.Fatal("probe table not migrated")
	}

	c.DBDriver = "postgres"
	if _, err := OpenDatabase(c); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}
