package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidateDefaults(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got error: %v", err)
	}
}

func TestDefaultProgressAndTolerance(t *testing.T) {
	cfg := Default()
	if cfg.Progress.BuildShare != 50 {
		t.Fatalf("unexpected build share: %v", cfg.Progress.BuildShare)
	}
	if cfg.Progress.LogCapacity != 100 {
		t.Fatalf("unexpected log capacity: %d", cfg.Progress.LogCapacity)
	}
	if cfg.Updates.Tolerance() != 5*time.Second {
		t.Fatalf("unexpected tolerance: %s", cfg.Updates.Tolerance())
	}
	if cfg.Progress.PollInterval() != 100*time.Millisecond {
		t.Fatalf("unexpected poll interval: %s", cfg.Progress.PollInterval())
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "installer.yaml")
	content := []byte(`
registry:
  owner: example-org
artifacts:
  - name: Analytics UI
    image: ghcr.io/example-org/analytics-ui:latest
    package: analytics-ui
updates:
  tolerance_seconds: 9
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write cfg: %v", err)
	}

	t.Setenv("NQI_REGISTRY_OWNER", "override-org")
	t.Setenv("NQI_TOKEN_FILE", "/tmp/token-override")
	t.Setenv("NQI_PROJECT_ROOT", "/srv/analytics")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Registry.Owner != "override-org" {
		t.Fatalf("owner override not applied: %q", cfg.Registry.Owner)
	}
	if cfg.Registry.TokenFile != "/tmp/token-override" {
		t.Fatalf("token file override missing: %q", cfg.Registry.TokenFile)
	}
	if cfg.Project.Root != "/srv/analytics" {
		t.Fatalf("project root override missing: %q", cfg.Project.Root)
	}
	if len(cfg.Artifacts) != 1 || cfg.Artifacts[0].Package != "analytics-ui" {
		t.Fatalf("artifacts not loaded from file: %#v", cfg.Artifacts)
	}
	if cfg.Updates.ToleranceSeconds != 9 {
		t.Fatalf("tolerance not loaded from file: %d", cfg.Updates.ToleranceSeconds)
	}
	if cfg.Progress.BuildShare != 50 {
		t.Fatalf("defaults should survive partial file: %v", cfg.Progress.BuildShare)
	}
}

func TestLoadExpandsHomePaths(t *testing.T) {
	dir := t.TempDir()
	home := filepath.Join(dir, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)

	path := filepath.Join(dir, "installer.yaml")
	content := []byte(`
registry:
  token_file: ~/.config/nqrust-installer/ghcr_token
project:
  root: ~/analytics
installer:
  download_dir: ~/Downloads
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write cfg: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !strings.HasPrefix(cfg.Registry.TokenFile, home) {
		t.Fatalf("token_file not expanded: %q", cfg.Registry.TokenFile)
	}
	if !strings.HasPrefix(cfg.Project.Root, home) {
		t.Fatalf("project root not expanded: %q", cfg.Project.Root)
	}
	if !strings.HasPrefix(cfg.Installer.DownloadDir, home) {
		t.Fatalf("download_dir not expanded: %q", cfg.Installer.DownloadDir)
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestLoadMissingDefaultPathUsesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with default path failed: %v", err)
	}
	if cfg.Registry.Host != "ghcr.io" {
		t.Fatalf("unexpected registry host: %q", cfg.Registry.Host)
	}
}

func TestTimeoutDurations(t *testing.T) {
	tm := TimeoutsConfig{
		APISeconds:        15,
		DownloadSeconds:   60,
		InstallMinutes:    2,
		ReadyDelaySeconds: 3,
	}
	if tm.APIDuration() != 15*time.Second {
		t.Fatalf("unexpected api duration")
	}
	if tm.DownloadDuration() != time.Minute {
		t.Fatalf("unexpected download duration")
	}
	if tm.InstallDuration() != 2*time.Minute {
		t.Fatalf("unexpected install duration")
	}
	if tm.ReadyDelayDuration() != 3*time.Second {
		t.Fatalf("unexpected ready delay")
	}
}

func TestRegistryHost(t *testing.T) {
	host, err := RegistryHost("ghcr.io/nexusquantum/analytics-ui:latest")
	if err != nil || host != "ghcr.io" {
		t.Fatalf("unexpected ghcr host %q err=%v", host, err)
	}
	host, err = RegistryHost("postgres:16-alpine")
	if err != nil || host != "index.docker.io" {
		t.Fatalf("unexpected docker hub host %q err=%v", host, err)
	}
}

func TestValidateErrorBranches(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{name: "missing owner", mut: func(c *Config) { c.Registry.Owner = " " }},
		{name: "bad api url", mut: func(c *Config) { c.Registry.APIBaseURL = "api.github.com" }},
		{name: "no token env vars", mut: func(c *Config) { c.Registry.TokenEnvVars = nil }},
		{name: "zero request rate", mut: func(c *Config) { c.Registry.RequestsPerSecond = 0 }},
		{name: "invalid image", mut: func(c *Config) { c.Artifacts[0].Image = "Not A Ref::" }},
		{name: "missing package", mut: func(c *Config) { c.Artifacts[0].Package = "" }},
		{name: "missing asset suffix", mut: func(c *Config) { c.Installer.AssetSuffix = "" }},
		{name: "no services", mut: func(c *Config) { c.Project.Services = nil }},
		{name: "build share too high", mut: func(c *Config) { c.Progress.BuildShare = 100 }},
		{name: "step floor above share", mut: func(c *Config) { c.Progress.StepFloor = 60 }},
		{name: "zero log capacity", mut: func(c *Config) { c.Progress.LogCapacity = 0 }},
		{name: "negative tolerance", mut: func(c *Config) { c.Updates.ToleranceSeconds = -1 }},
		{name: "zero api timeout", mut: func(c *Config) { c.Timeouts.APISeconds = 0 }},
		{name: "ready port without retries", mut: func(c *Config) { c.Timeouts.ReadyRetries = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mut(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
