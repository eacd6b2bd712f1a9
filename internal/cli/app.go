package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Bibi40k/nqrust-installer/internal/config"
	"github.com/Bibi40k/nqrust-installer/internal/github"
	"github.com/Bibi40k/nqrust-installer/internal/registry"
	"github.com/Bibi40k/nqrust-installer/internal/selfupdate"
	"github.com/Bibi40k/nqrust-installer/internal/templates"
	"github.com/Bibi40k/nqrust-installer/internal/updates"
)

// app is the wiring every command shares.
type app struct {
	cfg    config.Config
	root   string
	logger *slog.Logger
	store  registry.TokenStore
	cred   registry.Credential
	api    *github.Client
}

func loadApp(logger *slog.Logger) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, &userError{
			msg:  err.Error(),
			hint: "Fix the installer config or pass another file with --config.",
			err:  err,
		}
	}
	root, err := resolveProjectRoot(cfg)
	if err != nil {
		return nil, err
	}

	store := registry.TokenStore{Path: cfg.Registry.TokenFile}
	cred := registry.ResolveToken(cfg.Registry.TokenEnvVars, store)
	logger.Debug("installer context",
		"project_root", root,
		"token_source", cred.Source,
		"registry", cfg.Registry.Host,
	)

	api := github.NewClient(github.Options{
		BaseURL:           cfg.Registry.APIBaseURL,
		Token:             cred.Token,
		UserAgent:         "nqrust-installer/" + version,
		Timeout:           cfg.Timeouts.APIDuration(),
		DownloadTimeout:   cfg.Timeouts.DownloadDuration(),
		RequestsPerSecond: cfg.Registry.RequestsPerSecond,
	})
	return &app{cfg: cfg, root: root, logger: logger, store: store, cred: cred, api: api}, nil
}

func resolveProjectRoot(cfg config.Config) (string, error) {
	if dir := strings.TrimSpace(projectDir); dir != "" {
		return filepath.Abs(dir)
	}
	if dir := strings.TrimSpace(cfg.Project.Root); dir != "" {
		return filepath.Abs(dir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return templates.ProjectRoot(wd), nil
}

func (a *app) authenticator() *registry.Authenticator {
	return registry.NewAuthenticator(a.api, a.store, a.cfg.Registry.Host, a.logger)
}

func (a *app) resolver() *updates.Resolver {
	return updates.NewResolver(a.api, a.cfg, version, a.logger)
}

func (a *app) updater() *selfupdate.Updater {
	return selfupdate.NewUpdater(a.api, a.cfg.Installer, a.logger)
}

// requireToken fails with a login hint when no credential was found.
func (a *app) requireToken() (string, error) {
	if !a.cred.Present() {
		return "", &userError{
			msg:  "no registry token found",
			hint: fmt.Sprintf("Run `nqrust-installer login` or export one of %s.", strings.Join(a.cfg.Registry.TokenEnvVars, ", ")),
		}
	}
	return a.cred.Token, nil
}
