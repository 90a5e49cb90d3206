package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("WBC_CONFIG_PATH", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("timeout = %s, want 30s", cfg.Timeout)
	}
	if cfg.Concurrency != 4 || !cfg.Retry {
		t.Errorf("dispatch = %d/%v, want 4/true", cfg.Concurrency, cfg.Retry)
	}
	if cfg.Debounce != 500*time.Millisecond {
		t.Errorf("debounce = %s, want 500ms", cfg.Debounce)
	}
	if strings.HasPrefix(cfg.CachePath, "~") || !strings.HasSuffix(cfg.CachePath, filepath.Join(".wbc", "cache")) {
		t.Errorf("cache path not expanded: %q", cfg.CachePath)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected missing api.url to fail validation")
	}
}

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".wbc.yaml")
	yaml := "api:\n  url: https://billing.example\n  timeout: 5s\ndispatch:\n  concurrency: 2\n"
	if err := os.WriteFile(file, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WBC_CONFIG_PATH", dir)
	t.Setenv("WBC_DISPATCH_CONCURRENCY", "6")
	t.Setenv("WBC_SESSION_COOKIE", "from-env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Duration("timeout", 0, "")
	fs.Bool("retry", true, "")
	if err := fs.Parse([]string{"--retry=false"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(fs)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.APIURL != "https://billing.example" {
		t.Errorf("api url = %q", cfg.APIURL)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("unchanged flag overrode the file: timeout = %s", cfg.Timeout)
	}
	if cfg.Concurrency != 6 {
		t.Errorf("env should override file: concurrency = %d", cfg.Concurrency)
	}
	if cfg.Retry {
		t.Error("changed flag should override the default")
	}
	session, err := cfg.Session()
	if err != nil || session != "from-env" {
		t.Errorf("session = %q, %v", session, err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestSessionFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session")
	cfg := &Config{SessionFile: path}

	session, err := cfg.Session()
	if err != nil || session != "" {
		t.Fatalf("missing file should be anonymous, got %q, %v", session, err)
	}
	if err := os.WriteFile(path, []byte("  abc123\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	session, err = cfg.Session()
	if err != nil || session != "abc123" {
		t.Fatalf("session = %q, %v", session, err)
	}
}
