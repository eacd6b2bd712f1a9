package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Bibi40k/nqrust-installer/internal/github"
	"github.com/Bibi40k/nqrust-installer/internal/process"
)

var ErrEmptyToken = errors.New("personal access token is required")

// dockerLoginFn hands the token to docker over stdin so it never shows up in
// the process list.
var dockerLoginFn = func(ctx context.Context, host, username, token string) error {
	_, _, err := process.Output(ctx, process.Command{
		Name:  "docker",
		Args:  []string{"login", host, "--username", username, "--password-stdin"},
		Stdin: strings.NewReader(token),
	})
	return err
}

type LoginResult struct {
	Username string
	Token    string
	// PersistWarning is set when login worked but the token could not be saved.
	PersistWarning string
}

type Authenticator struct {
	api    *github.Client
	store  TokenStore
	host   string
	logger *slog.Logger
}

func NewAuthenticator(api *github.Client, store TokenStore, registryHost string, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{api: api, store: store, host: registryHost, logger: logger}
}

// Login validates token against the identity API, logs docker into the
// registry and caches the token.
func (a *Authenticator) Login(ctx context.Context, token string) (LoginResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return LoginResult{}, ErrEmptyToken
	}

	user, err := a.api.WithToken(token).User(ctx)
	if err != nil {
		return LoginResult{}, fmt.Errorf("resolve GitHub username: %w", err)
	}
	username := strings.TrimSpace(user.Login)
	if username == "" {
		return LoginResult{}, errors.New("resolve GitHub username: identity response has no login")
	}
	a.logger.Debug("registry identity resolved", "username", username)

	if err := dockerLoginFn(ctx, a.host, username, token); err != nil {
		return LoginResult{}, fmt.Errorf("docker login %s: %w", a.host, err)
	}

	res := LoginResult{Username: username, Token: token}
	if err := a.store.Save(token); err != nil {
		res.PersistWarning = fmt.Sprintf("token not saved: %v", err)
		a.logger.Warn("registry token not persisted", "path", a.store.Path, "error", err)
	}
	return res, nil
}
