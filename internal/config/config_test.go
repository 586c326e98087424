package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Address != DefaultAddress {
		t.Errorf("Address = %q, want default", cfg.Address)
	}
	if cfg.DefaultLanguage != DefaultLanguage {
		t.Errorf("DefaultLanguage = %q, want default", cfg.DefaultLanguage)
	}
	if cfg.Path() != "" {
		t.Errorf("Path() = %q, want empty for defaults", cfg.Path())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := writeConfig(t, `{
		"address": ":9000",
		"defaultLanguage": "go",
		"execution": {"timeout": "3s"},
		"websocket": {"sendQueueSize": 128, "pingInterval": "10s"}
	}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Address != ":9000" {
		t.Errorf("Address = %q, want :9000", cfg.Address)
	}
	if cfg.DefaultLanguage != "go" {
		t.Errorf("DefaultLanguage = %q, want go", cfg.DefaultLanguage)
	}

	sc := cfg.ServerConfig()
	if sc.SendQueueSize != 128 {
		t.Errorf("SendQueueSize = %d, want 128", sc.SendQueueSize)
	}
	if sc.PingInterval != 10*time.Second {
		t.Errorf("PingInterval = %s, want 10s", sc.PingInterval)
	}

	xc := cfg.SandboxConfig()
	if xc.Timeout != 3*time.Second {
		t.Errorf("Timeout = %s, want 3s", xc.Timeout)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	dir := writeConfig(t, `{"execution": {"timeout": "soon"}}`)
	if _, err := Load(dir); err == nil {
		t.Fatal("Load accepted an unparseable duration")
	}
}

func TestLoadRejectsBadJSON(t *testing.T) {
	dir := writeConfig(t, `{broken`)
	if _, err := Load(dir); err == nil {
		t.Fatal("Load accepted malformed JSON")
	}
}

func TestNativeLanguagesValidated(t *testing.T) {
	dir := writeConfig(t, `{"execution": {"native": [{"language": "python"}]}}`)
	if _, err := Load(dir); err == nil {
		t.Fatal("Load accepted a native entry without a command")
	}
}

func TestSandboxConfigNativeOverride(t *testing.T) {
	dir := writeConfig(t, `{
		"execution": {"native": [
			{"language": "python", "command": ["python3"], "extension": "py"}
		]}
	}`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	xc := cfg.SandboxConfig()
	py := xc.Languages["python"]
	if !py.Native {
		t.Error("python should be native after override")
	}
	if js := xc.Languages["javascript"]; js.Native {
		t.Error("javascript should stay simulated")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	cfg := New()
	cfg.Address = ":7777"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if loaded.Address != ":7777" {
		t.Errorf("Address = %q after round trip", loaded.Address)
	}
	if loaded.Path() != path {
		t.Errorf("Path() = %q, want %q", loaded.Path(), path)
	}
}
