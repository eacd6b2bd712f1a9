package install

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Bibi40k/nqrust-installer/internal/config"
	"github.com/Bibi40k/nqrust-installer/internal/logstream"
	"github.com/Bibi40k/nqrust-installer/internal/process"
	"github.com/Bibi40k/nqrust-installer/internal/templates"
	"github.com/Bibi40k/nqrust-installer/pkg/model"
)

// StepInfo announces a step before it runs.
type StepInfo struct {
	Name  string
	Desc  string
	Phase logstream.Phase
	Index int
	Total int
}

type Options struct {
	DryRun        bool
	HumanProgress bool
	// OnStep and OnLine are called from the Run goroutine, in order: every
	// line of a step arrives before the next step is announced.
	OnStep func(StepInfo)
	OnLine func(process.Line)
}

type Result = model.InstallResult

type Step = model.StepResult

// errWarning marks a step failure that does not abort the install.
type errWarning struct{ err error }

func (w errWarning) Error() string { return w.err.Error() }

var (
	runCommandFn        = process.Run
	waitForTCPPortFn    = process.WaitForTCPPort
	ensureComposeFn     = templates.EnsureComposeBundle
	readyConnectTimeout = 2 * time.Second
)

type step struct {
	name  string
	desc  string
	phase logstream.Phase
	run   func(context.Context) error
}

// Run builds and starts the compose project in root.
func Run(ctx context.Context, logger *slog.Logger, cfg config.Config, root string, opts Options) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.OnStep == nil {
		opts.OnStep = func(StepInfo) {}
	}
	if opts.OnLine == nil {
		opts.OnLine = func(process.Line) {}
	}

	res := Result{
		Status:      "running",
		StartedAt:   time.Now().UTC(),
		ProjectRoot: root,
		Services:    cfg.Project.Services,
		DryRun:      opts.DryRun,
	}

	steps := []step{
		{
			name:  "compose_bundle",
			desc:  "Ensure a compose file exists in the project root",
			phase: logstream.PhaseBuild,
			run: func(context.Context) error {
				created, err := ensureComposeFn(root)
				if err != nil {
					return err
				}
				if created {
					logger.Info("compose file scaffolded", "dir", root)
				}
				return nil
			},
		},
		{
			name:  "compose_build",
			desc:  "Build images (docker compose build --no-cache)",
			phase: logstream.PhaseBuild,
			run: func(ctx context.Context) error {
				return runCompose(ctx, logger, root, opts.OnLine, "build", "--no-cache")
			},
		},
		{
			name:  "compose_up",
			desc:  "Start services (docker compose up -d)",
			phase: logstream.PhaseDeploy,
			run: func(ctx context.Context) error {
				return runCompose(ctx, logger, root, opts.OnLine, "up", "-d")
			},
		},
	}
	if cfg.Project.ReadyPort > 0 {
		steps = append(steps, step{
			name:  "service_ready",
			desc:  fmt.Sprintf("Wait for the UI on %s:%d", cfg.Project.ReadyHost, cfg.Project.ReadyPort),
			phase: logstream.PhaseDeploy,
			run: func(ctx context.Context) error {
				stats, err := waitForTCPPortFn(ctx,
					cfg.Project.ReadyHost,
					cfg.Project.ReadyPort,
					cfg.Timeouts.ReadyRetries,
					readyConnectTimeout,
					cfg.Timeouts.ReadyDelayDuration(),
				)
				if err != nil {
					return errWarning{err: err}
				}
				logger.Debug("ui port ready",
					"attempts_used", stats.Attempts,
					"elapsed", stats.Elapsed.Truncate(time.Millisecond).String(),
				)
				return nil
			},
		})
	}

	if opts.DryRun {
		for _, s := range steps {
			res.Steps = append(res.Steps, Step{Name: s.name, Status: model.StepStatusPlanned, Message: s.desc})
		}
		res.Status = "planned"
		res.EndedAt = time.Now().UTC()
		return res, nil
	}

	total := len(steps)
	for i, s := range steps {
		current := i + 1
		pct := (current - 1) * 100 / total
		opts.OnStep(StepInfo{Name: s.name, Desc: s.desc, Phase: s.phase, Index: current, Total: total})
		if opts.HumanProgress {
			fmt.Printf("\033[36m[%d/%d]\033[0m \033[1m%s\033[0m \033[90m(%d%%)\033[0m\n", current, total, humanStepLabel(s.name), pct)
			fmt.Printf("  \033[90m%s\033[0m\n", s.desc)
		} else {
			logger.Info("step start",
				"step", s.name,
				"progress", fmt.Sprintf("[%d/%d] %d%%", current, total, pct),
				"description", s.desc,
			)
		}

		started := time.Now()
		stopHeartbeat := func() {}
		if opts.HumanProgress {
			stopHeartbeat = startStepHeartbeat(s.name)
		}
		err := s.run(ctx)
		stopHeartbeat()
		d := time.Since(started)

		if w, ok := err.(errWarning); ok {
			if opts.HumanProgress {
				fmt.Printf("  \033[33m⚠ %s\033[0m\n", w.Error())
			}
			logger.Warn("step warning", "step", s.name, "error", w.Error())
			res.Steps = append(res.Steps, Step{Name: s.name, Status: model.StepStatusWarning, Duration: d, Message: w.Error()})
			continue
		}
		if err != nil {
			if opts.HumanProgress {
				fmt.Printf("  \033[31m✗ failed\033[0m in %s\n", d.Truncate(time.Millisecond))
			}
			res.Steps = append(res.Steps, Step{Name: s.name, Status: model.StepStatusFailed, Duration: d, Message: err.Error()})
			res.Status = "failed"
			res.Error = fmt.Sprintf("step %s failed: %v", s.name, err)
			res.EndedAt = time.Now().UTC()
			return res, fmt.Errorf("step %s failed: %w", s.name, err)
		}

		res.Steps = append(res.Steps, Step{Name: s.name, Status: model.StepStatusSuccess, Duration: d})
		donePct := current * 100 / total
		if opts.HumanProgress {
			fmt.Printf("  \033[32m✓ done\033[0m in %s \033[90m[%d/%d %d%%]\033[0m\n", d.Truncate(time.Millisecond), current, total, donePct)
		} else {
			logger.Info("step success",
				"step", s.name,
				"duration", d.String(),
				"progress", fmt.Sprintf("[%d/%d] %d%%", current, total, donePct),
			)
		}
	}

	res.Status = "success"
	res.EndedAt = time.Now().UTC()
	return res, nil
}

// Warnings lists the messages of steps that finished with a warning.
func Warnings(res Result) []string {
	var out []string
	for _, s := range res.Steps {
		if s.Status == model.StepStatusWarning {
			out = append(out, fmt.Sprintf("%s: %s", humanStepLabel(s.Name), s.Message))
		}
	}
	return out
}

// runCompose runs one docker compose subcommand and forwards its output to
// emit. It returns only after the last line has been handed over.
func runCompose(ctx context.Context, logger *slog.Logger, dir string, emit func(process.Line), args ...string) error {
	lines := make(chan process.Line, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for l := range lines {
			emit(l)
		}
	}()

	err := runCommandFn(ctx, logger, process.Command{
		Name: "docker",
		Args: append([]string{"compose"}, args...),
		Dir:  dir,
	}, lines)
	close(lines)
	<-done
	return err
}

func humanStepLabel(step string) string {
	return strings.ReplaceAll(step, "_", "-")
}

func startStepHeartbeat(step string) func() {
	done := make(chan struct{})
	started := time.Now()
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fmt.Printf("  \033[90m... %s running (%s)\033[0m\n", humanStepLabel(step), time.Since(started).Truncate(time.Second))
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
