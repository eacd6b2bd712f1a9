package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"
)

type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Line is one line read from a child process, tagged with its stream.
type Line struct {
	Stream Stream
	Text   string
}

// Command describes an external process. Env entries are appended to the
// current environment.
type Command struct {
	Name  string
	Args  []string
	Env   []string
	Dir   string
	Stdin io.Reader
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// ExitError is returned when a command runs but exits non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Detail   string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

const (
	maxLineBytes  = 1024 * 1024
	stderrTailLen = 20
)

// Run starts c and drains stdout and stderr concurrently into sink in arrival
// order. A failed read ends only that stream's drain; the exit status is
// always collected. sink may be nil.
func Run(ctx context.Context, logger *slog.Logger, c Command, sink chan<- Line) error {
	if logger == nil {
		logger = slog.Default()
	}
	cmd := newCmd(ctx, c)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%s: capture stdout: %w", c.Name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%s: capture stderr: %w", c.Name, err)
	}

	logger.Debug("process start", "command", c.String(), "dir", c.Dir)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.Name, err)
	}

	// The stderr tail is written only by its own drain goroutine and read
	// after Wait, so it needs no lock.
	var tail []string
	var g errgroup.Group
	g.Go(func() error {
		drain(ctx, logger, stdout, Stdout, sink, nil)
		return nil
	})
	g.Go(func() error {
		drain(ctx, logger, stderr, Stderr, sink, func(text string) {
			tail = append(tail, text)
			if len(tail) > stderrTailLen {
				tail = tail[1:]
			}
		})
		return nil
	})
	_ = g.Wait()

	waitErr := cmd.Wait()
	if waitErr == nil {
		logger.Debug("process done", "command", c.String())
		return nil
	}
	return exitError(c, waitErr, strings.Join(tail, "\n"))
}

func drain(ctx context.Context, logger *slog.Logger, r io.Reader, stream Stream, sink chan<- Line, observe func(string)) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		text := sc.Text()
		if observe != nil {
			observe(text)
		}
		if sink == nil {
			continue
		}
		select {
		case sink <- Line{Stream: stream, Text: text}:
		case <-ctx.Done():
			return
		}
	}
	if err := sc.Err(); err != nil {
		logger.Warn("stopped reading process output", "stream", stream.String(), "error", err)
		// Keep the pipe empty so the child can still exit.
		_, _ = io.Copy(io.Discard, r)
	}
}

// Output runs c to completion and captures both streams.
func Output(ctx context.Context, c Command) (string, string, error) {
	cmd := newCmd(ctx, c)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), stderr.String(), exitError(c, err, stderr.String())
	}
	return stdout.String(), stderr.String(), nil
}

// CombinedOutput runs c with stdout and stderr merged, for tools whose
// diagnostics are split across both.
func CombinedOutput(ctx context.Context, c Command) (string, error) {
	cmd := newCmd(ctx, c)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return out.String(), exitError(c, err, out.String())
	}
	return out.String(), nil
}

func newCmd(ctx context.Context, c Command) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if c.Stdin != nil {
		cmd.Stdin = c.Stdin
	}
	return cmd
}

func exitError(c Command, err error, output string) error {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return &ExitError{
			Command:  c.String(),
			ExitCode: ee.ExitCode(),
			Detail:   summarizeOutput(output),
			Err:      err,
		}
	}
	return fmt.Errorf("run %s: %w", c.Name, err)
}

func summarizeOutput(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	filtered := make([]string, 0, len(lines))
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t == "" {
			continue
		}
		// Drop dpkg/apt progress rows.
		if strings.HasPrefix(t, "(Reading database") || strings.HasPrefix(t, "Progress: [") {
			continue
		}
		filtered = append(filtered, t)
	}
	if len(filtered) == 0 {
		return ""
	}
	// Keep the last 2 lines; they usually contain the actionable error.
	start := len(filtered) - 2
	if start < 0 {
		start = 0
	}
	out := strings.Join(filtered[start:], " | ")
	if len(out) > 360 {
		out = out[:357] + "..."
	}
	return out
}
