package templates

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
)

const (
	ConfigFileName  = "config.yaml"
	EnvFileName     = ".env"
	ComposeFileName = "docker-compose.yaml"
)

//go:embed assets/docker-compose.yaml
var composeTemplate []byte

var composeFileNames = []string{
	"docker-compose.yml",
	"docker-compose.yaml",
	"compose.yml",
	"compose.yaml",
}

// ProjectRoot walks up from start to the first directory holding a compose
// file. It falls back to start.
func ProjectRoot(start string) string {
	abs, err := filepath.Abs(start)
	if err != nil {
		return start
	}
	for dir := abs; ; {
		if HasComposeFile(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs
		}
		dir = parent
	}
}

func HasComposeFile(dir string) bool {
	for _, name := range composeFileNames {
		if FileExists(filepath.Join(dir, name)) {
			return true
		}
	}
	return false
}

func ConfigPath(root string) string { return filepath.Join(root, ConfigFileName) }

func EnvPath(root string) string { return filepath.Join(root, EnvFileName) }

func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// EnsureComposeBundle writes the bundled compose file into root unless one
// of the usual compose file names is already there.
func EnsureComposeBundle(root string) (bool, error) {
	if HasComposeFile(root) {
		return false, nil
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return false, fmt.Errorf("create project dir %s: %w", root, err)
	}
	path := filepath.Join(root, ComposeFileName)
	if err := os.WriteFile(path, composeTemplate, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// WriteConfig renders p into <root>/config.yaml.
func WriteConfig(root string, p Provider) (string, error) {
	content, err := RenderConfig(p)
	if err != nil {
		return "", err
	}
	path := ConfigPath(root)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// WriteEnv renders <root>/.env. It holds credentials, so it is owner-only.
func WriteEnv(root string, p Provider, v EnvValues) (string, error) {
	path := EnvPath(root)
	if err := os.WriteFile(path, []byte(RenderEnv(p, v)), 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
