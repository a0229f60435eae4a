package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("missing file must fall back to defaults: %v", err)
	}
	if cfg.App.HTTPAddr != ":8080" {
		t.Fatalf("unexpected default addr %q", cfg.App.HTTPAddr)
	}
	if !cfg.App.SchedulerEnabled {
		t.Fatal("scheduler must default to enabled")
	}
	if cfg.App.ScheduleInterval != time.Hour {
		t.Fatalf("unexpected default interval %v", cfg.App.ScheduleInterval)
	}
	if cfg.App.AlertPacing != 2*time.Second {
		t.Fatalf("unexpected default pacing %v", cfg.App.AlertPacing)
	}
}

func TestLoad_ParsesDurationStrings(t *testing.T) {
	path := writeConfig(t, `{
		"app": {"schedule_interval": "30m", "alert_pacing": "5s"},
		"search": {"timeout": "20s", "cache_ttl": "15m"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.ScheduleInterval != 30*time.Minute {
		t.Fatalf("unexpected interval %v", cfg.App.ScheduleInterval)
	}
	if cfg.App.AlertPacing != 5*time.Second {
		t.Fatalf("unexpected pacing %v", cfg.App.AlertPacing)
	}
	if cfg.Search.Timeout != 20*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.Search.Timeout)
	}
	if cfg.Search.CacheTTL != 15*time.Minute {
		t.Fatalf("unexpected cache ttl %v", cfg.Search.CacheTTL)
	}
}

func TestLoad_InvalidDurationRejected(t *testing.T) {
	path := writeConfig(t, `{"app": {"schedule_interval": "soon"}}`)
	if _, err := Load(path); err == nil {
		t.Fatal("invalid duration must fail the load")
	}
}

func TestLoad_SchedulerEnabledTristate(t *testing.T) {
	// 缺省时开启
	path := writeConfig(t, `{"app": {"env": "test"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.App.SchedulerEnabled {
		t.Fatal("absent scheduler_enabled must default to true")
	}

	// 显式关闭要被尊重
	path = writeConfig(t, `{"app": {"scheduler_enabled": false}}`)
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.SchedulerEnabled {
		t.Fatal("explicit scheduler_enabled=false must be respected")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SEARCH_API_KEY", "env-key")
	t.Setenv("APP_SCHEDULE_INTERVAL", "45m")
	t.Setenv("DB_DSN", "user:pw@tcp(db:3306)/jobs?parseTime=true")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Search.APIKey != "env-key" {
		t.Fatalf("SEARCH_API_KEY must win, got %q", cfg.Search.APIKey)
	}
	if cfg.App.ScheduleInterval != 45*time.Minute {
		t.Fatalf("APP_SCHEDULE_INTERVAL must win, got %v", cfg.App.ScheduleInterval)
	}
	if cfg.MySQL.DSN != "user:pw@tcp(db:3306)/jobs?parseTime=true" {
		t.Fatalf("DB_DSN must win, got %q", cfg.MySQL.DSN)
	}
}

func TestLoad_DBHostRewritesDSN(t *testing.T) {
	t.Setenv("DB_HOST", "mysql.internal")
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := "root:secret@tcp(mysql.internal:3306)/jobalerts"
	if len(cfg.MySQL.DSN) < len(want) || cfg.MySQL.DSN[:len(want)] != want {
		t.Fatalf("DSN must carry overridden host and password, got %q", cfg.MySQL.DSN)
	}
}
