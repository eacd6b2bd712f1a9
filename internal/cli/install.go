package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Bibi40k/nqrust-installer/internal/install"
	"github.com/Bibi40k/nqrust-installer/internal/logstream"
	"github.com/Bibi40k/nqrust-installer/internal/process"
	"github.com/Bibi40k/nqrust-installer/internal/templates"
)

var installRunFn = install.Run

func newInstallCmd() *cobra.Command {
	var (
		dryRun  bool
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Build and start the compose project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(logFormat, logLevel)
			if err != nil {
				return err
			}
			a, err := loadApp(logger)
			if err != nil {
				return err
			}
			if !dryRun {
				if err := checkGeneratedFiles(a.root); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeouts.InstallDuration())
			defer cancel()

			human := !jsonOut && strings.EqualFold(logFormat, "text")
			opts := install.Options{DryRun: dryRun, HumanProgress: human}
			if human {
				opts.OnStep, opts.OnLine = transcriptPrinter(a.cfg.Project.Services, a.cfg.Progress.BuildShare, a.cfg.Progress.StepFloor)
			}
			res, err := installRunFn(ctx, logger, a.cfg, a.root, opts)
			if err != nil {
				if jsonOut {
					return printJSON(res)
				}
				return explainError(err)
			}

			if jsonOut {
				return printJSON(res)
			}
			warnings := install.Warnings(res)
			if human {
				if dryRun {
					for _, s := range res.Steps {
						fmt.Printf("  \033[90m[planned]\033[0m %s: %s\n", s.Name, s.Message)
					}
					return nil
				}
				fmt.Printf("\n\033[32m✓ installation completed\033[0m\n")
				fmt.Printf("  Project:  \033[36m%s\033[0m\n", a.root)
				fmt.Printf("  Services: \033[36m%s\033[0m\n", strings.Join(res.Services, ", "))
				fmt.Printf("  Total:    \033[36m%s\033[0m\n", time.Since(res.StartedAt).Truncate(time.Millisecond))
				for _, w := range warnings {
					fmt.Printf("  \033[33m⚠ %s\033[0m\n", w)
				}
			} else {
				logger.Info("installation completed",
					"project_root", a.root,
					"duration", time.Since(res.StartedAt).String(),
					"warnings", len(warnings),
				)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print planned steps without running docker")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print machine-readable result JSON")

	return cmd
}

func checkGeneratedFiles(root string) error {
	var missing []string
	for _, p := range []string{templates.ConfigPath(root), templates.EnvPath(root)} {
		if !templates.FileExists(p) {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &userError{
		msg:  "missing " + strings.Join(missing, " and "),
		hint: "Run `nqrust-installer config` to generate config.yaml and .env.",
	}
}

// transcriptPrinter condenses compose output the same way the wizard does.
func transcriptPrinter(services []string, buildShare, stepFloor float64) (func(install.StepInfo), func(process.Line)) {
	interp := logstream.NewInterpreter(services)
	tracker := logstream.NewTracker(len(services), buildShare, stepFloor)
	onStep := func(si install.StepInfo) { tracker.Begin(si.Phase) }
	onLine := func(l process.Line) {
		if line := tracker.Apply(interp.Classify(l.Text)); line != "" {
			fmt.Printf("  \033[90m│ %3.0f%%\033[0m %s\n", tracker.Percent, line)
		}
	}
	return onStep, onLine
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json output: %w", err)
	}
	return nil
}
