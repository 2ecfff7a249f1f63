package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "FETCH_USER_AGENT", "REPORTS_DIR", "WATCH_SCHEDULE"} {
		t.Setenv(key, "")
	}
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := Defaults()
	if cfg.Port != want.Port || cfg.ReportsDir != want.ReportsDir {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if cfg.DefaultMarket != "CN" {
		t.Errorf("expected default market CN, got %q", cfg.DefaultMarket)
	}
}

func TestLoad_ExplicitMissingFileIsAnError(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for an explicitly named missing file")
	}
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)

	path := writeTemp(t, "research.yaml", `
port: 9090
user_agent: "Research/2.0 (ops@example.com)"
reports_dir: /tmp/reports
watch_schedule: "@hourly"
watchlist:
  - symbol: AAPL
    market: US
  - symbol: "600143"
    market: CN
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Port)
	}
	if cfg.UserAgent != "Research/2.0 (ops@example.com)" {
		t.Errorf("unexpected user agent %q", cfg.UserAgent)
	}
	if len(cfg.Watchlist) != 2 || cfg.Watchlist[0].Symbol != "AAPL" || cfg.Watchlist[1].Market != "CN" {
		t.Errorf("unexpected watchlist %+v", cfg.Watchlist)
	}
}

func TestLoad_HJSON(t *testing.T) {
	clearEnv(t)

	path := writeTemp(t, "research.hjson", `{
	# comments are allowed here
	port: 7070
	reports_dir: archive
	watchlist: [
		{ symbol: MSFT, market: US }
	]
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Port)
	}
	if cfg.ReportsDir != "archive" {
		t.Errorf("reports_dir = %q, want archive", cfg.ReportsDir)
	}
	if len(cfg.Watchlist) != 1 || cfg.Watchlist[0].Symbol != "MSFT" {
		t.Errorf("unexpected watchlist %+v", cfg.Watchlist)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := writeTemp(t, "research.yaml", "port: 9090\nreports_dir: from-file\n")
	t.Setenv("PORT", "6060")
	t.Setenv("REPORTS_DIR", "from-env")
	t.Setenv("FETCH_USER_AGENT", "Bot/1.0 (bot@example.com)")
	t.Setenv("WATCH_SCHEDULE", "@every 15m")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 6060 {
		t.Errorf("port = %d, want env override 6060", cfg.Port)
	}
	if cfg.ReportsDir != "from-env" {
		t.Errorf("reports_dir = %q, want from-env", cfg.ReportsDir)
	}
	if cfg.UserAgent != "Bot/1.0 (bot@example.com)" {
		t.Errorf("unexpected user agent %q", cfg.UserAgent)
	}
	if cfg.WatchSchedule != "@every 15m" {
		t.Errorf("unexpected schedule %q", cfg.WatchSchedule)
	}
}

func TestLoad_InvalidPortEnvIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != Defaults().Port {
		t.Errorf("port = %d, want default %d", cfg.Port, Defaults().Port)
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	clearEnv(t)

	path := writeTemp(t, "research.toml", "port = 8080\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unsupported config format")
	}
}

func TestAddr(t *testing.T) {
	cfg := Config{Port: 8080}
	if cfg.Addr() != ":8080" {
		t.Errorf("Addr() = %q, want :8080", cfg.Addr())
	}
}
