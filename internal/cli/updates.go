package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	survey "github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/Bibi40k/nqrust-installer/internal/process"
	"github.com/Bibi40k/nqrust-installer/internal/selfupdate"
	"github.com/Bibi40k/nqrust-installer/internal/updates"
	"github.com/Bibi40k/nqrust-installer/pkg/model"
)

var confirmFn = func(msg string, def bool) (bool, error) {
	ok := def
	if err := survey.AskOne(&survey.Confirm{Message: msg, Default: def}, &ok); err != nil {
		return false, err
	}
	drainStdin()
	return ok, nil
}

func newCheckUpdatesCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "check-updates",
		Short: "Compare local images and the installer with the latest published versions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(logFormat, logLevel)
			if err != nil {
				return err
			}
			a, err := loadApp(logger)
			if err != nil {
				return err
			}
			infos, err := resolveUpdates(cmd.Context(), a)
			if err != nil {
				return err
			}

			if jsonOut {
				report := model.UpdateReport{CheckedAt: time.Now().UTC()}
				for _, info := range infos {
					report.Entries = append(report.Entries, info.Entry())
				}
				return printJSON(report)
			}
			printUpdateTable(infos)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print machine-readable report JSON")
	return cmd
}

func resolveUpdates(ctx context.Context, a *app) ([]updates.Info, error) {
	token, err := a.requireToken()
	if err != nil {
		return nil, err
	}
	infos, err := a.resolver().Resolve(ctx, token)
	if err != nil {
		return nil, explainError(fmt.Errorf("check for updates: %w", err))
	}
	return infos, nil
}

func printUpdateTable(infos []updates.Info) {
	for i, info := range infos {
		mark := "\033[32m✓ up to date\033[0m"
		if info.HasUpdate() {
			mark = "\033[33m↑ update available\033[0m"
		}
		fmt.Printf("%2d. \033[1m%-22s\033[0m %s\n", i+1, info.Name, mark)
		if info.IsInstaller() {
			fmt.Printf("    current %s, latest %s\n", info.CurrentTag, orDash(info.LatestRelease))
		} else {
			fmt.Printf("    %s (latest release %s)\n", info.Image, orDash(info.LatestRelease))
			fmt.Printf("    remote %s, local %s\n", formatStamp(info.RemoteLatestAt), formatStamp(info.LocalCreatedAt))
		}
		if info.Status != "" {
			fmt.Printf("    \033[33m%s\033[0m\n", info.Status)
		}
	}
}

func formatStamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newPullCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull <index|package>",
		Short: "Pull one tracked image (index as listed by check-updates, or package name)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(logFormat, logLevel)
			if err != nil {
				return err
			}
			a, err := loadApp(logger)
			if err != nil {
				return err
			}
			infos, err := resolveUpdates(cmd.Context(), a)
			if err != nil {
				return err
			}
			info, err := selectArtifact(infos, args[0])
			if err != nil {
				return err
			}
			if info.IsInstaller() {
				return &userError{msg: "the installer is not an image", hint: "Use `nqrust-installer self-update`."}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeouts.InstallDuration())
			defer cancel()

			res := a.resolver()
			lines := make(chan process.Line, 64)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for l := range lines {
					fmt.Printf("  \033[90m│\033[0m %s\n", l.Text)
				}
			}()
			fmt.Printf("\033[36m↓ pulling %s\033[0m\n", info.Image)
			err = res.Pull(ctx, info.Image, lines)
			close(lines)
			<-done
			if err != nil {
				return explainError(fmt.Errorf("pull %s: %w", info.Image, err))
			}

			created, note := res.InspectLocal(ctx, info.Image)
			fmt.Printf("\033[32m✓ pulled %s\033[0m (local image created %s)\n", info.Name, formatStamp(created))
			if note != "" {
				fmt.Printf("  \033[33m⚠ %s\033[0m\n", note)
			}
			return nil
		},
	}
	return cmd
}

// selectArtifact matches a 1-based index or a package/display name.
func selectArtifact(infos []updates.Info, arg string) (updates.Info, error) {
	arg = strings.TrimSpace(arg)
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(infos) {
			return updates.Info{}, &userError{
				msg:  fmt.Sprintf("index %d out of range (1-%d)", n, len(infos)),
				hint: "Run `nqrust-installer check-updates` to list the entries.",
			}
		}
		return infos[n-1], nil
	}
	for _, info := range infos {
		if strings.EqualFold(info.Package, arg) || strings.EqualFold(info.Name, arg) {
			return info, nil
		}
	}
	return updates.Info{}, &userError{
		msg:  fmt.Sprintf("no tracked artifact named %q", arg),
		hint: "Run `nqrust-installer check-updates` to list the entries.",
	}
}

func newSelfUpdateCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "self-update",
		Short: "Download, verify and install the latest installer release",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(logFormat, logLevel)
			if err != nil {
				return err
			}
			a, err := loadApp(logger)
			if err != nil {
				return err
			}
			infos, err := resolveUpdates(cmd.Context(), a)
			if err != nil {
				return err
			}
			var self *updates.Info
			for i := range infos {
				if infos[i].IsInstaller() {
					self = &infos[i]
				}
			}
			if self == nil || !self.HasUpdate() || self.Installer.Asset == nil {
				fmt.Printf("\033[32m✓ installer %s is up to date\033[0m\n", version)
				if self != nil && self.Status != "" {
					fmt.Printf("  \033[33m%s\033[0m\n", self.Status)
				}
				return nil
			}

			if !yes {
				if !isTerminalFn() {
					return &userError{msg: "confirmation needed", hint: "Re-run with --yes."}
				}
				ok, err := confirmFn(fmt.Sprintf("Install installer %s (current %s)?", self.Installer.Tag, version), true)
				if err != nil || !ok {
					fmt.Println("Cancelled.")
					return nil
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			res, err := a.updater().Update(ctx, *self.Installer, func(p selfupdate.Progress) {
				fmt.Printf("  %s\n", p.Message)
			})
			if err != nil {
				return explainError(err)
			}
			logger.Debug("self-update finished", "path", res.Path, "verified", res.Verified)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Do not ask for confirmation")
	return cmd
}
