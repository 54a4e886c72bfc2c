package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != ":8090" {
		t.Fatalf("unexpected server address %q", cfg.BasicConfig.ServerAddress)
	}
	if cfg.BasicConfig.MaxUploadBytes != 16<<20 {
		t.Fatalf("unexpected upload cap %d", cfg.BasicConfig.MaxUploadBytes)
	}
	if cfg.Rotation.CooldownSeconds != 300 {
		t.Fatalf("unexpected cooldown %d", cfg.Rotation.CooldownSeconds)
	}
	if len(cfg.Rotation.Candidates) == 0 {
		t.Fatalf("expected default rotation candidates")
	}
	for _, cand := range cfg.Rotation.Candidates {
		if cand.Provider != "gemini" {
			t.Fatalf("default candidates should be gemini, got %s", cand.Provider)
		}
	}
	if _, ok := cfg.Databases["sqlite3"]; !ok {
		t.Fatalf("expected default sqlite3 database entry")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	path := writeConfig(t, `{
		"basic_config": {"upload_dir": "uploads", "modified_dir": "modified"},
		"databases": {"sqlite3": {"dsn": "data/app.db"}}
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	baseDir := filepath.Dir(path)
	if cfg.BasicConfig.UploadDir != filepath.Join(baseDir, "uploads") {
		t.Fatalf("upload dir not resolved: %s", cfg.BasicConfig.UploadDir)
	}
	if cfg.Databases["sqlite3"].DSN != filepath.Join(baseDir, "data/app.db") {
		t.Fatalf("dsn not resolved: %s", cfg.Databases["sqlite3"].DSN)
	}
}

func TestLoadEnvAPIKeyOverride(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	path := writeConfig(t, `{"providers": {"gemini": {"model": "gemini-2.5-flash"}}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Providers["gemini"].APIKey != "env-key" {
		t.Fatalf("expected env api key, got %q", cfg.Providers["gemini"].APIKey)
	}
}

func TestLoadConfigKeyWinsOverEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	path := writeConfig(t, `{"providers": {"gemini": {"api_key": "file-key"}}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Providers["gemini"].APIKey != "file-key" {
		t.Fatalf("expected file api key, got %q", cfg.Providers["gemini"].APIKey)
	}
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, `{
		"rotation": {"candidates": [{"provider": "mystery", "model": "m1"}]},
		"providers": {"gemini": {}}
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// applyDefaults registers providers for all candidates, so drop it again.
	delete(cfg.Providers, "mystery")
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for unknown provider")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
