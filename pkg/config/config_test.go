package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadParsesTypedValues(t *testing.T) {
	p := writeConfig(t, `
server:
  address: "127.0.0.1"
  port: 9090
  db_path: "/tmp/webchat"
  max_body_bytes: "64KB"
retention:
  enabled: true
  period: "720h"
  batch_sleep: "50ms"
  min_period: 3600
widget:
  content_order: descending
  insert_key_text: true
  max_message_len: 2000
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("Addr: %q", cfg.Addr())
	}
	if cfg.Server.MaxBodyBytes.Int64() != 64000 {
		t.Fatalf("max_body_bytes: %d", cfg.Server.MaxBodyBytes.Int64())
	}
	if cfg.Retention.Period.Duration() != 720*time.Hour {
		t.Fatalf("period: %v", cfg.Retention.Period.Duration())
	}
	if cfg.Retention.BatchSleep.Duration() != 50*time.Millisecond {
		t.Fatalf("batch_sleep: %v", cfg.Retention.BatchSleep.Duration())
	}
	// Bare numbers are seconds.
	if cfg.Retention.MinPeriod.Duration() != time.Hour {
		t.Fatalf("min_period: %v", cfg.Retention.MinPeriod.Duration())
	}
	if cfg.Widget.ContentOrder != "descending" || !cfg.Widget.InsertKeyText {
		t.Fatalf("widget: %+v", cfg.Widget)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	p := writeConfig(t, "retention:\n  period: \"soon\"\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected invalid duration rejected")
	}
}

func TestEffectiveConfigExplicitFlagWins(t *testing.T) {
	flags := Flags{Addr: ":9999", DB: "/flag/db", Set: map[string]bool{"addr": true, "db": true}}
	fileCfg := &Config{}
	fileCfg.Server.Address = "filehost"
	fileCfg.Server.Port = 1111
	envCfg := &Config{}
	envCfg.Server.DBPath = "/env/db"

	res, err := LoadEffectiveConfig(flags, fileCfg, true, envCfg)
	if err != nil {
		t.Fatalf("LoadEffectiveConfig: %v", err)
	}
	if res.Source != "flags" || res.Addr != ":9999" || res.DBPath != "/flag/db" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestEffectiveConfigFileBeatsEnv(t *testing.T) {
	flags := Flags{Set: map[string]bool{}}
	fileCfg := &Config{}
	fileCfg.Server.Address = "filehost"
	fileCfg.Server.Port = 1111
	fileCfg.Server.DBPath = "/file/db"
	envCfg := &Config{}
	envCfg.Server.Address = "envhost"
	envCfg.Server.DBPath = "/env/db"

	res, err := LoadEffectiveConfig(flags, fileCfg, true, envCfg)
	if err != nil {
		t.Fatalf("LoadEffectiveConfig: %v", err)
	}
	if res.Source != "config" || res.Addr != "filehost:1111" || res.DBPath != "/file/db" {
		t.Fatalf("unexpected result: %+v", res)
	}

	res, err = LoadEffectiveConfig(flags, &Config{}, false, envCfg)
	if err != nil {
		t.Fatalf("LoadEffectiveConfig env: %v", err)
	}
	if res.Source != "env" || res.DBPath != "/env/db" {
		t.Fatalf("unexpected env result: %+v", res)
	}
}

func TestEffectiveConfigExplicitConfigMustExist(t *testing.T) {
	flags := Flags{Config: "/nonexistent.yaml", Set: map[string]bool{"config": true}}
	if _, err := LoadEffectiveConfig(flags, &Config{}, false, &Config{}); err == nil {
		t.Fatalf("expected missing explicit config rejected")
	}
}

func TestParseConfigEnvs(t *testing.T) {
	t.Setenv("WEBCHAT_ADDR", "0.0.0.0:7070")
	t.Setenv("WEBCHAT_DB_PATH", "/env/db")
	t.Setenv("WEBCHAT_EDITOR_KEYS", "ed1, ed2,")
	t.Setenv("WEBCHAT_RATE_RPS", "2.5")

	envCfg, used := ParseConfigEnvs()
	if !used {
		t.Fatalf("expected env in use")
	}
	if envCfg.Addr() != "0.0.0.0:7070" {
		t.Fatalf("addr: %q", envCfg.Addr())
	}
	if len(envCfg.Security.APIKeys.Editor) != 2 || envCfg.Security.APIKeys.Editor[1] != "ed2" {
		t.Fatalf("editor keys: %v", envCfg.Security.APIKeys.Editor)
	}
	if envCfg.Security.RateLimit.RPS != 2.5 {
		t.Fatalf("rps: %v", envCfg.Security.RateLimit.RPS)
	}
}

func TestRuntimeKeyLookups(t *testing.T) {
	SetRuntime(&RuntimeConfig{
		ParticipantKeys: map[string]struct{}{"p1": {}},
		EditorKeys:      map[string]struct{}{"e1": {}},
	})
	t.Cleanup(func() { SetRuntime(nil) })

	if _, ok := GetParticipantKeys()["p1"]; !ok {
		t.Fatalf("expected p1 present")
	}
	keys := GetEditorKeys()
	delete(keys, "e1")
	if _, ok := GetEditorKeys()["e1"]; !ok {
		t.Fatalf("expected copies, not the shared map")
	}
}
