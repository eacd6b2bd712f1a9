package cli

import (
	"context"
	"errors"
	"net/http"
	"os/exec"
	"strings"

	"github.com/Bibi40k/nqrust-installer/internal/github"
	"github.com/Bibi40k/nqrust-installer/internal/process"
	"github.com/Bibi40k/nqrust-installer/internal/selfupdate"
)

// userError is a failure the operator can fix; Execute prints the hint.
type userError struct {
	msg  string
	hint string
	err  error
}

func (e *userError) Error() string { return e.msg }

func (e *userError) Hint() string { return e.hint }

func (e *userError) Unwrap() error { return e.err }

// explainError attaches a hint to the failures we know how to fix.
func explainError(err error) error {
	if err == nil {
		return nil
	}
	var ue *userError
	if errors.As(err, &ue) {
		return err
	}
	if hint := hintFor(err); hint != "" {
		return &userError{msg: err.Error(), hint: hint, err: err}
	}
	return err
}

func hintFor(err error) string {
	if errors.Is(err, exec.ErrNotFound) {
		return "Install Docker Engine with the compose plugin and make sure `docker` is on PATH."
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The operation timed out; raise the matching value under `timeouts` in the installer config."
	}
	var mismatch *selfupdate.ChecksumMismatchError
	if errors.As(err, &mismatch) {
		return "The downloaded package does not match the published checksum. Retry later; nothing was installed."
	}
	if errors.Is(err, selfupdate.ErrPasswordRequired) {
		return "Run `nqrust-installer self-update` in a terminal so sudo can ask for your password, or cache credentials with `sudo -v` first."
	}
	switch github.StatusCode(err) {
	case http.StatusUnauthorized:
		return "The token was rejected. Run `nqrust-installer login` with a valid personal access token."
	case http.StatusForbidden:
		return "The token lacks access. It needs the read:packages scope."
	}

	var exitErr *process.ExitError
	if errors.As(err, &exitErr) {
		detail := strings.ToLower(exitErr.Detail)
		switch {
		case strings.Contains(detail, "permission denied") && strings.Contains(detail, "docker"):
			return "Add your user to the docker group (sudo usermod -aG docker $USER) and log in again."
		case strings.Contains(detail, "unauthorized"), strings.Contains(detail, "denied: "):
			return "Registry access was denied. Run `nqrust-installer login` first."
		case strings.Contains(detail, "cannot connect to the docker daemon"):
			return "Start the Docker daemon (sudo systemctl start docker)."
		}
	}
	return ""
}
