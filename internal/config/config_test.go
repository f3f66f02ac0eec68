package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Bind != ":8080" {
		t.Fatalf("expected default bind, got %q", cfg.Server.Bind)
	}
	if cfg.Classifier.Command != "python3" {
		t.Fatalf("expected default classifier command, got %q", cfg.Classifier.Command)
	}
	if cfg.ClassifierTimeout() != 60*time.Second {
		t.Fatalf("expected default timeout, got %v", cfg.ClassifierTimeout())
	}
	if len(cfg.Classifier.Args) != 1 || cfg.Classifier.Args[0] != "prediction_service/predict.py" {
		t.Fatalf("expected default script argument, got %v", cfg.Classifier.Args)
	}
}

func TestLoadCustomCommandGetsNoDefaultArgs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[classifier]\ncommand = \"/opt/classify\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(cfg.Classifier.Args) != 0 {
		t.Fatalf("expected no implicit arguments, got %v", cfg.Classifier.Args)
	}
}

func TestLoadReadsTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
bind = ":9090"
max_upload_mb = 5

[uploads]
dir = "/var/lib/gateway/uploads"
keep_files = true

[classifier]
command = "/opt/classifier/predict"
args = []
timeout_seconds = 30
max_output_bytes = 4096
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Bind != ":9090" {
		t.Fatalf("expected bind :9090, got %q", cfg.Server.Bind)
	}
	if cfg.MaxUploadBytes() != 5<<20 {
		t.Fatalf("expected 5 MiB cap, got %d", cfg.MaxUploadBytes())
	}
	if !cfg.Uploads.KeepFiles {
		t.Fatal("expected keep_files to be set")
	}
	if cfg.Classifier.Command != "/opt/classifier/predict" {
		t.Fatalf("unexpected classifier command %q", cfg.Classifier.Command)
	}
	if cfg.Classifier.MaxOutputBytes != 4096 {
		t.Fatalf("unexpected output cap %d", cfg.Classifier.MaxOutputBytes)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server]\nbind = \":9090\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("GATEWAY_BIND", ":7070")
	t.Setenv("CLASSIFIER_COMMAND", "/usr/local/bin/classify")
	t.Setenv("CLASSIFIER_TIMEOUT_SECONDS", "5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Bind != ":7070" {
		t.Fatalf("expected env bind override, got %q", cfg.Server.Bind)
	}
	if cfg.Classifier.Command != "/usr/local/bin/classify" {
		t.Fatalf("expected env command override, got %q", cfg.Classifier.Command)
	}
	if cfg.ClassifierTimeout() != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %v", cfg.ClassifierTimeout())
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server]\nmax_upload_mb = -1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for negative upload cap")
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server\nbind=\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
