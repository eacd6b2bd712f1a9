package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	survey "github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/Bibi40k/nqrust-installer/internal/registry"
)

var askTokenFn = func() (string, error) {
	var token string
	prompt := &survey.Password{
		Message: "GitHub personal access token (read:packages):",
	}
	if err := survey.AskOne(prompt, &token, survey.WithValidator(survey.Required)); err != nil {
		return "", err
	}
	drainStdin()
	return token, nil
}

func newLoginCmd() *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Validate a registry token, log docker in and cache the token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(logFormat, logLevel)
			if err != nil {
				return err
			}
			a, err := loadApp(logger)
			if err != nil {
				return err
			}

			token, err := readToken(fromStdin)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeouts.APIDuration())
			defer cancel()
			res, err := a.authenticator().Login(ctx, token)
			if err != nil {
				if errors.Is(err, registry.ErrEmptyToken) {
					return &userError{msg: err.Error(), hint: "Pass a token on stdin with --token-stdin or enter it at the prompt."}
				}
				return explainError(err)
			}

			fmt.Printf("\033[32m✓ logged in to %s as %s\033[0m\n", a.cfg.Registry.Host, res.Username)
			if res.PersistWarning != "" {
				fmt.Printf("  \033[33m⚠ %s\033[0m\n", res.PersistWarning)
			} else {
				fmt.Printf("  Token cached at \033[36m%s\033[0m\n", a.store.Path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "token-stdin", false, "Read the token from standard input")
	return cmd
}

func readToken(fromStdin bool) (string, error) {
	if fromStdin {
		raw, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && raw == "" {
			return "", fmt.Errorf("read token from stdin: %w", err)
		}
		return strings.TrimSpace(raw), nil
	}
	if !isTerminalFn() {
		return "", &userError{msg: "no terminal to prompt for a token", hint: "Use --token-stdin."}
	}
	token, err := askTokenFn()
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(token), nil
}
