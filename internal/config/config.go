package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	"gopkg.in/yaml.v3"
)

const appDirName = "nqrust-installer"

// Config holds installer settings.
type Config struct {
	Registry  RegistryConfig   `yaml:"registry"`
	Artifacts []ArtifactConfig `yaml:"artifacts"`
	Installer InstallerConfig  `yaml:"installer"`
	Project   ProjectConfig    `yaml:"project"`
	Progress  ProgressConfig   `yaml:"progress"`
	Updates   UpdatesConfig    `yaml:"updates"`
	Timeouts  TimeoutsConfig   `yaml:"timeouts"`
}

type RegistryConfig struct {
	Host              string   `yaml:"host"`
	Owner             string   `yaml:"owner"`
	APIBaseURL        string   `yaml:"api_base_url"`
	TokenEnvVars      []string `yaml:"token_env_vars"`
	TokenFile         string   `yaml:"token_file"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
}

// ArtifactConfig is one image tracked on the update screen.
type ArtifactConfig struct {
	Name    string `yaml:"name"`
	Image   string `yaml:"image"`
	Package string `yaml:"package"`
}

type InstallerConfig struct {
	Owner            string   `yaml:"owner"`
	Repo             string   `yaml:"repo"`
	AssetSuffix      string   `yaml:"asset_suffix"`
	ChecksumAssets   []string `yaml:"checksum_assets"`
	PackageInstaller []string `yaml:"package_installer"`
	DownloadDir      string   `yaml:"download_dir"`
}

type ProjectConfig struct {
	Root      string   `yaml:"root"`
	Services  []string `yaml:"services"`
	ReadyHost string   `yaml:"ready_host"`
	ReadyPort int      `yaml:"ready_port"`
}

// ProgressConfig tunes the install progress estimate. BuildShare is the
// percentage reserved for the build phase; the rest belongs to compose up.
type ProgressConfig struct {
	BuildShare     float64 `yaml:"build_share"`
	StepFloor      float64 `yaml:"step_floor"`
	LogCapacity    int     `yaml:"log_capacity"`
	PollIntervalMS int     `yaml:"poll_interval_ms"`
}

type UpdatesConfig struct {
	ToleranceSeconds int `yaml:"tolerance_seconds"`
}

type TimeoutsConfig struct {
	APISeconds        int `yaml:"api_seconds"`
	DownloadSeconds   int `yaml:"download_seconds"`
	InstallMinutes    int `yaml:"install_minutes"`
	ReadyRetries      int `yaml:"ready_retries"`
	ReadyDelaySeconds int `yaml:"ready_delay_seconds"`
}

func (p ProgressConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMS) * time.Millisecond
}

func (u UpdatesConfig) Tolerance() time.Duration {
	return time.Duration(u.ToleranceSeconds) * time.Second
}

func (t TimeoutsConfig) APIDuration() time.Duration {
	return time.Duration(t.APISeconds) * time.Second
}

func (t TimeoutsConfig) DownloadDuration() time.Duration {
	return time.Duration(t.DownloadSeconds) * time.Second
}

func (t TimeoutsConfig) InstallDuration() time.Duration {
	return time.Duration(t.InstallMinutes) * time.Minute
}

func (t TimeoutsConfig) ReadyDelayDuration() time.Duration {
	return time.Duration(t.ReadyDelaySeconds) * time.Second
}

// Default returns the built-in settings used when no config file exists.
func Default() Config {
	return Config{
		Registry: RegistryConfig{
			Host:              "ghcr.io",
			Owner:             "NexusQuantum",
			APIBaseURL:        "https://api.github.com",
			TokenEnvVars:      []string{"GHCR_TOKEN", "GITHUB_TOKEN", "GH_TOKEN"},
			TokenFile:         filepath.Join(defaultStateDir(), "ghcr_token"),
			RequestsPerSecond: 5,
		},
		Artifacts: []ArtifactConfig{
			{Name: "Analytics Service", Image: "ghcr.io/nexusquantum/analytics-service:latest", Package: "analytics-service"},
			{Name: "Analytics UI", Image: "ghcr.io/nexusquantum/analytics-ui:latest", Package: "analytics-ui"},
			{Name: "PostgreSQL Database", Image: "postgres:16-alpine", Package: "postgres"},
		},
		Installer: InstallerConfig{
			Owner:            "NexusQuantum",
			Repo:             "installer-NQRust-Analytics",
			AssetSuffix:      "_amd64.deb",
			ChecksumAssets:   []string{"SHA256SUMS", "SHA512SUMS", "B2SUMS"},
			PackageInstaller: []string{"sudo", "dpkg", "-i"},
		},
		Project: ProjectConfig{
			Services:  []string{"analytics-service", "qdrant", "northwind-db", "analytics-ui"},
			ReadyHost: "127.0.0.1",
			ReadyPort: 3000,
		},
		Progress: ProgressConfig{
			BuildShare:     50,
			StepFloor:      5,
			LogCapacity:    100,
			PollIntervalMS: 100,
		},
		Updates: UpdatesConfig{ToleranceSeconds: 5},
		Timeouts: TimeoutsConfig{
			APISeconds:        15,
			DownloadSeconds:   60,
			InstallMinutes:    60,
			ReadyRetries:      30,
			ReadyDelaySeconds: 2,
		},
	}
}

// DefaultPath is where Load looks when no --config flag is given.
func DefaultPath() string {
	return filepath.Join(defaultStateDir(), "installer.yaml")
}

// StateDir holds the token cache, the TUI log file and downloads.
func StateDir() string {
	return defaultStateDir()
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, appDirName)
	}
	return filepath.Join(".", "."+appDirName)
}

// Load reads path over the defaults. An empty path means DefaultPath, which
// is allowed to be missing.
func Load(path string) (Config, error) {
	cfg := Default()

	optional := false
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
		optional = true
	}

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(content))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case optional && errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	expandHomePaths(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NQI_REGISTRY_OWNER"); v != "" {
		cfg.Registry.Owner = v
	}
	if v := os.Getenv("NQI_API_BASE_URL"); v != "" {
		cfg.Registry.APIBaseURL = v
	}
	if v := os.Getenv("NQI_TOKEN_FILE"); v != "" {
		cfg.Registry.TokenFile = v
	}
	if v := os.Getenv("NQI_PROJECT_ROOT"); v != "" {
		cfg.Project.Root = v
	}
	if v := os.Getenv("NQI_UPDATE_TOLERANCE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Updates.ToleranceSeconds = n
		}
	}
}

func expandHomePaths(cfg *Config) {
	cfg.Registry.TokenFile = expandHome(cfg.Registry.TokenFile)
	cfg.Project.Root = expandHome(cfg.Project.Root)
	cfg.Installer.DownloadDir = expandHome(cfg.Installer.DownloadDir)
}

func expandHome(path string) string {
	p := strings.TrimSpace(path)
	if p == "" || !strings.HasPrefix(p, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, strings.TrimPrefix(p, "~/"))
	}
	return path
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Registry.Host) == "" {
		return fmt.Errorf("registry.host is required")
	}
	if strings.TrimSpace(c.Registry.Owner) == "" {
		return fmt.Errorf("registry.owner is required")
	}
	if !strings.HasPrefix(c.Registry.APIBaseURL, "http://") && !strings.HasPrefix(c.Registry.APIBaseURL, "https://") {
		return fmt.Errorf("registry.api_base_url must be an http(s) URL")
	}
	if len(c.Registry.TokenEnvVars) == 0 {
		return fmt.Errorf("registry.token_env_vars must list at least one variable")
	}
	if strings.TrimSpace(c.Registry.TokenFile) == "" {
		return fmt.Errorf("registry.token_file is required")
	}
	if c.Registry.RequestsPerSecond <= 0 {
		return fmt.Errorf("registry.requests_per_second must be > 0")
	}
	for i, a := range c.Artifacts {
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("artifacts[%d].name is required", i)
		}
		if strings.TrimSpace(a.Package) == "" {
			return fmt.Errorf("artifacts[%d].package is required", i)
		}
		if _, err := name.ParseReference(a.Image); err != nil {
			return fmt.Errorf("artifacts[%d].image %q is not a valid image reference: %w", i, a.Image, err)
		}
	}
	if strings.TrimSpace(c.Installer.Owner) == "" || strings.TrimSpace(c.Installer.Repo) == "" {
		return fmt.Errorf("installer.owner and installer.repo are required")
	}
	if strings.TrimSpace(c.Installer.AssetSuffix) == "" {
		return fmt.Errorf("installer.asset_suffix is required")
	}
	if len(c.Installer.PackageInstaller) == 0 {
		return fmt.Errorf("installer.package_installer is required")
	}
	if len(c.Project.Services) == 0 {
		return fmt.Errorf("project.services must list at least one service")
	}
	if c.Project.ReadyPort < 0 || c.Project.ReadyPort > 65535 {
		return fmt.Errorf("project.ready_port must be in range 0..65535")
	}
	if c.Progress.BuildShare <= 0 || c.Progress.BuildShare >= 100 {
		return fmt.Errorf("progress.build_share must be in range 1..99")
	}
	if c.Progress.StepFloor < 0 || c.Progress.StepFloor >= c.Progress.BuildShare {
		return fmt.Errorf("progress.step_floor must be >= 0 and below progress.build_share")
	}
	if c.Progress.LogCapacity <= 0 {
		return fmt.Errorf("progress.log_capacity must be > 0")
	}
	if c.Progress.PollIntervalMS <= 0 {
		return fmt.Errorf("progress.poll_interval_ms must be > 0")
	}
	if c.Updates.ToleranceSeconds < 0 {
		return fmt.Errorf("updates.tolerance_seconds must be >= 0")
	}
	if c.Timeouts.APISeconds <= 0 {
		return fmt.Errorf("timeouts.api_seconds must be > 0")
	}
	if c.Timeouts.DownloadSeconds <= 0 {
		return fmt.Errorf("timeouts.download_seconds must be > 0")
	}
	if c.Timeouts.InstallMinutes <= 0 {
		return fmt.Errorf("timeouts.install_minutes must be > 0")
	}
	if c.Project.ReadyPort > 0 && c.Timeouts.ReadyRetries <= 0 {
		return fmt.Errorf("timeouts.ready_retries must be > 0 when project.ready_port is set")
	}
	return nil
}

// RegistryHost returns the registry part of an image reference, using the
// same defaulting rules as docker (index.docker.io for bare names).
func RegistryHost(image string) (string, error) {
	ref, err := name.ParseReference(image)
	if err != nil {
		return "", err
	}
	return ref.Context().RegistryStr(), nil
}
