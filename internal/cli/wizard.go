package cli

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Bibi40k/nqrust-installer/internal/tui"
	"github.com/Bibi40k/nqrust-installer/internal/wizard"
)

func runWizard(cmd *cobra.Command) error {
	logger, logPath, closeLog, err := newFileLogger(logFormat, logLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	a, err := loadApp(logger)
	if err != nil {
		return err
	}
	logger.Info("wizard started", "version", version, "project_root", a.root)

	model := tui.New(cmd.Context(), tui.Deps{
		Config:   a.cfg,
		Root:     a.root,
		Token:    a.cred.Token,
		Logger:   logger,
		Auth:     a.authenticator(),
		Resolver: a.resolver(),
		Updater:  a.updater().NonInteractive(),
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		restoreTTYOnExit()
		return fmt.Errorf("run installer wizard: %w", err)
	}
	drainStdin()

	switch st := model.Machine().State().(type) {
	case wizard.Success:
		fmt.Printf("\n\033[32m✓ NQRust Analytics is running\033[0m\n")
		fmt.Printf("  Project: \033[36m%s\033[0m\n", a.root)
		if a.cfg.Project.ReadyPort > 0 {
			fmt.Printf("  UI:      \033[36mhttp://localhost:%d\033[0m\n", a.cfg.Project.ReadyPort)
		}
	case wizard.Error:
		logger.Error("wizard failed", "error", st.Message)
		return &userError{msg: st.Message, hint: "Full log: " + logPath}
	}
	return nil
}
