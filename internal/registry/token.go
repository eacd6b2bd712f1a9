package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Credential is the bearer token used for the registry and GitHub APIs.
// Source is "env:<NAME>", "file" or empty when nothing was found.
type Credential struct {
	Token  string
	Source string
}

func (c Credential) Present() bool { return c.Token != "" }

var getenvFn = os.Getenv

// ResolveToken checks envVars in order, then the on-disk cache. An empty
// Credential means the operator has to enter one.
func ResolveToken(envVars []string, store TokenStore) Credential {
	for _, name := range envVars {
		if v := strings.TrimSpace(getenvFn(name)); v != "" {
			return Credential{Token: v, Source: "env:" + name}
		}
	}
	if tok, err := store.Load(); err == nil && tok != "" {
		return Credential{Token: tok, Source: "file"}
	}
	return Credential{}
}

// TokenStore persists the token in a single owner-only file.
type TokenStore struct {
	Path string
}

func (s TokenStore) Load() (string, error) {
	if strings.TrimSpace(s.Path) == "" {
		return "", errors.New("token path is not configured")
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s TokenStore) Save(token string) error {
	if strings.TrimSpace(s.Path) == "" {
		return errors.New("token path is not configured")
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("create dir for %s: %w", s.Path, err)
	}
	if err := os.WriteFile(s.Path, []byte(strings.TrimSpace(token)+"\n"), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", s.Path, err)
	}
	// WriteFile keeps the mode of an existing file. Platforms without unix
	// permissions reject this; that is fine.
	_ = os.Chmod(s.Path, 0o600)
	return nil
}
