package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Bibi40k/nqrust-installer/internal/config"
)

var (
	version    = "dev"
	configPath string
	projectDir string
	logFormat  string
	logLevel   string
)

var isTerminalFn = func() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "nqrust-installer",
		Short:         "Install and update NQRust Analytics with Docker Compose",
		Long:          "Without a subcommand the interactive installer starts. The subcommands cover the same steps for scripts and non-interactive shells.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			_, _, err := parseLogFlags(logFormat, logLevel)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !isTerminalFn() {
				return &userError{
					msg:  "the interactive installer needs a terminal",
					hint: "Use `nqrust-installer install` (and `config`, `login`) when running without a TTY.",
				}
			}
			return runWizard(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to installer YAML config (default "+config.DefaultPath()+")")
	cmd.PersistentFlags().StringVar(&projectDir, "project-dir", "", "Compose project directory (default: nearest directory with a compose file)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text|json")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug|info|warn|error")

	cmd.AddCommand(newInstallCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newCheckUpdatesCmd())
	cmd.AddCommand(newPullCmd())
	cmd.AddCommand(newSelfUpdateCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the command tree. v is the build version stamped into main.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		const (
			red    = "\033[31m"
			yellow = "\033[33m"
			cyan   = "\033[36m"
			reset  = "\033[0m"
		)
		if ue, ok := err.(*userError); ok {
			fmt.Fprintf(os.Stderr, "%sError:%s %s\n", red, reset, ue.Error())
			if hint := ue.Hint(); hint != "" {
				fmt.Fprintf(os.Stderr, "%sHint:%s %s%s%s\n", yellow, reset, cyan, hint, reset)
			}
		} else {
			fmt.Fprintf(os.Stderr, "%sError:%s %v\n", red, reset, err)
		}
		return err
	}
	return nil
}

func newLogger(format, level string) (*slog.Logger, error) {
	return newLoggerTo(os.Stdout, format, level)
}

func newLoggerTo(w io.Writer, format, level string) (*slog.Logger, error) {
	lvl, format, err := parseLogFlags(format, level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger, nil
}

// parseLogFlags validates --log-format and --log-level without touching the
// default logger.
func parseLogFlags(format, level string) (slog.Level, string, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return 0, "", fmt.Errorf("invalid --log-level %q (expected: debug|info|warn|error)", level)
	}

	f := strings.ToLower(format)
	if f != "text" && f != "json" {
		return 0, "", fmt.Errorf("invalid --log-format %q (expected: text|json)", format)
	}
	return lvl, f, nil
}

// newFileLogger sends logs to <state dir>/installer.log so they stay off the
// wizard's screen.
func newFileLogger(format, level string) (*slog.Logger, string, func(), error) {
	path := filepath.Join(config.StateDir(), "installer.log")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, "", nil, fmt.Errorf("create state dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, "", nil, fmt.Errorf("open log file: %w", err)
	}
	logger, err := newLoggerTo(f, format, level)
	if err != nil {
		_ = f.Close()
		return nil, "", nil, err
	}
	return logger, path, func() { _ = f.Close() }, nil
}
