package selfupdate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Bibi40k/nqrust-installer/internal/config"
	"github.com/Bibi40k/nqrust-installer/internal/github"
	"github.com/Bibi40k/nqrust-installer/internal/process"
	"github.com/Bibi40k/nqrust-installer/internal/updates"
)

const (
	percentStep      = 5
	unknownSizeStep  = 5 << 20
	maxManifestBytes = 1 << 20
)

var installPackageFn = func(ctx context.Context, argv []string, path string) (string, error) {
	args := append(append([]string{}, argv[1:]...), path)
	return process.CombinedOutput(ctx, process.Command{Name: argv[0], Args: args})
}

// ErrPasswordRequired means sudo ran with -n and had no cached credentials.
var ErrPasswordRequired = errors.New("sudo needs a password; run `nqrust-installer self-update` from a terminal")

// Progress is a download or install milestone. Percent is -1 when the total
// size is unknown.
type Progress struct {
	Message string
	Percent float64
}

type ProgressFunc func(Progress)

type Result struct {
	Version  string
	Path     string
	Verified bool
	Warning  string
}

type Updater struct {
	api         *github.Client
	installer   []string
	downloadDir string
	logger      *slog.Logger
}

func NewUpdater(api *github.Client, cfg config.InstallerConfig, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{api: api, installer: cfg.PackageInstaller, downloadDir: cfg.DownloadDir, logger: logger}
}

// NonInteractive returns a copy that runs sudo with -n, so a missing
// password fails fast instead of waiting for input nobody can type.
func (u *Updater) NonInteractive() *Updater {
	c := *u
	if len(u.installer) > 0 && filepath.Base(u.installer[0]) == "sudo" && !hasFlag(u.installer[1:], "-n") {
		c.installer = append([]string{u.installer[0], "-n"}, u.installer[1:]...)
	}
	return &c
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag || a == "--non-interactive" {
			return true
		}
	}
	return false
}

// Update downloads the release package, verifies it when a checksum manifest
// is published and hands it to the package installer. The running binary is
// left alone; the caller tells the operator to restart.
func (u *Updater) Update(ctx context.Context, rel updates.InstallerRelease, progress ProgressFunc) (Result, error) {
	if progress == nil {
		progress = func(Progress) {}
	}
	if rel.Asset == nil {
		return Result{}, errors.New("release has no installer package for this platform")
	}
	if len(u.installer) == 0 {
		return Result{}, errors.New("no package installer configured")
	}

	dir, err := os.MkdirTemp(u.downloadDir, "nqrust-installer-*")
	if err != nil {
		return Result{}, fmt.Errorf("create download dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(rel.Asset.Name))
	res := Result{Version: rel.Version, Path: path}

	progress(Progress{Message: fmt.Sprintf("Downloading %s", rel.Asset.Name), Percent: 0})
	if err := u.download(ctx, rel.Asset.BrowserDownloadURL, path, progress); err != nil {
		return res, err
	}

	if rel.Checksum != nil {
		verified, err := u.verify(ctx, *rel.Checksum, path)
		if err != nil {
			return res, err
		}
		res.Verified = verified
		if !verified {
			res.Warning = fmt.Sprintf("%s has no entry for %s; checksum not verified", rel.Checksum.Name, rel.Asset.Name)
			u.logger.Warn("checksum verification skipped", "manifest", rel.Checksum.Name, "file", rel.Asset.Name)
			progress(Progress{Message: "⚠ " + res.Warning, Percent: 100})
		} else {
			progress(Progress{Message: "✓ Checksum verified", Percent: 100})
		}
	}

	progress(Progress{Message: fmt.Sprintf("Installing %s", rel.Asset.Name), Percent: 100})
	out, err := installPackageFn(ctx, u.installer, path)
	if err != nil {
		u.logger.Debug("package installer output", "output", out)
		if strings.Contains(out, "a password is required") {
			return res, fmt.Errorf("install %s: %w: %w", rel.Asset.Name, ErrPasswordRequired, err)
		}
		return res, fmt.Errorf("install %s: %w", rel.Asset.Name, err)
	}
	progress(Progress{Message: fmt.Sprintf("✓ Installer %s installed. Restart required.", rel.Version), Percent: 100})
	return res, nil
}

func (u *Updater) download(ctx context.Context, url, path string, progress ProgressFunc) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	rep := &reporter{fn: progress}
	_, dlErr := u.api.Download(ctx, url, f, rep.observe)
	closeErr := f.Close()
	if dlErr != nil {
		return dlErr
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", path, closeErr)
	}
	return nil
}

func (u *Updater) verify(ctx context.Context, manifest github.Asset, path string) (bool, error) {
	var buf bytes.Buffer
	if _, err := u.api.Download(ctx, manifest.BrowserDownloadURL, &limitedWriter{w: &buf, n: maxManifestBytes}, nil); err != nil {
		return false, fmt.Errorf("download %s: %w", manifest.Name, err)
	}
	return Verify(buf.Bytes(), path, AlgorithmFor(manifest.Name))
}

// reporter turns byte counts into 5% steps, or fixed-size steps when the
// total is unknown.
type reporter struct {
	fn   ProgressFunc
	last int64
}

func (r *reporter) observe(written, total int64) {
	if total > 0 {
		step := written * 100 / total / percentStep * percentStep
		if step > r.last {
			r.last = step
			r.fn(Progress{Message: fmt.Sprintf("Downloaded %d%%", step), Percent: float64(step)})
		}
		return
	}
	chunk := written / unknownSizeStep
	if chunk > r.last {
		r.last = chunk
		r.fn(Progress{Message: fmt.Sprintf("Downloaded %d MiB", written>>20), Percent: -1})
	}
}

type limitedWriter struct {
	w io.Writer
	n int64
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if int64(len(p)) > l.n {
		return 0, fmt.Errorf("checksum manifest larger than %d bytes", maxManifestBytes)
	}
	l.n -= int64(len(p))
	return l.w.Write(p)
}
