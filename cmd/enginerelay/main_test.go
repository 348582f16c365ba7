package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/castlab/enginerelay/internal/config"
)

func TestRunCLIVersion(t *testing.T) {
	if code := runCLI([]string{"version"}); code != 0 {
		t.Errorf("version exit code = %d, want 0", code)
	}
	if code := runCLI([]string{"--version"}); code != 0 {
		t.Errorf("--version exit code = %d, want 0", code)
	}
}

func TestRunCLIHelp(t *testing.T) {
	if code := runCLI([]string{"help"}); code != 0 {
		t.Errorf("help exit code = %d, want 0", code)
	}
}

func TestRunCLINoArgs(t *testing.T) {
	if code := runCLI(nil); code != 1 {
		t.Errorf("empty args exit code = %d, want 1", code)
	}
}

func TestRunCLIUnknownCommand(t *testing.T) {
	if code := runCLI([]string{"frobnicate"}); code != 1 {
		t.Errorf("unknown command exit code = %d, want 1", code)
	}
}

func TestRunCheckRequiresConfig(t *testing.T) {
	if code := runCLI([]string{"check"}); code != 1 {
		t.Errorf("check without --config exit code = %d, want 1", code)
	}
}

func TestRunCheckMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if code := runCLI([]string{"check", "--config", missing}); code != 1 {
		t.Errorf("check with missing file exit code = %d, want 1", code)
	}
}

func TestRunCheckValidConfigAndPin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	body := `service:
  name: enginerelay
  log_level: INFO
  log_format: json
  sweep_interval: 10s
state:
  path: ` + filepath.Join(dir, "engines.db") + `
api:
  listen: 127.0.0.1:0
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if code := runCLI([]string{"check", "--config", path}); code != 0 {
		t.Errorf("check exit code = %d, want 0", code)
	}
	if code := runCLI([]string{"check", "--config", path, "--pin"}); code != 0 {
		t.Errorf("check --pin exit code = %d, want 0", code)
	}
	if _, err := os.Stat(config.ChecksumPath(path)); err != nil {
		t.Errorf("pin file not written: %v", err)
	}

	// A pinned config that is later edited must fail the check.
	if err := os.WriteFile(path, []byte(body+"# edited\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if code := runCLI([]string{"check", "--config", path}); code != 1 {
		t.Errorf("check after tamper exit code = %d, want 1", code)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.API.Listen == "" {
		t.Error("default config has empty listen address")
	}
}
