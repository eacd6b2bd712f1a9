package cli

import (
	"fmt"
	"os"

	survey "github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/Bibi40k/nqrust-installer/internal/templates"
)

var selectProviderFn = func() (templates.Provider, error) {
	providers := templates.Providers()
	options := make([]string, 0, len(providers))
	byLabel := map[string]templates.Provider{}
	for _, p := range providers {
		label := fmt.Sprintf("%-32s %s", p.Name, p.Description)
		options = append(options, label)
		byLabel[label] = p
	}

	var choice string
	prompt := &survey.Select{
		Message:  "LLM provider:",
		Options:  options,
		PageSize: len(options),
	}
	if err := survey.AskOne(prompt, &choice); err != nil {
		return templates.Provider{}, err
	}
	// Clear delayed terminal control responses left by survey rendering.
	drainStdin()
	return byLabel[choice], nil
}

func newConfigCmd() *cobra.Command {
	var (
		providerKey string
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate config.yaml and .env for an LLM provider",
		RunE: func(_ *cobra.Command, _ []string) error {
			logger, err := newLogger(logFormat, logLevel)
			if err != nil {
				return err
			}
			a, err := loadApp(logger)
			if err != nil {
				return err
			}
			stop := startInterruptHandler()
			defer stop()

			fmt.Println()
			fmt.Println("\033[1mnqrust-installer · Configuration\033[0m")
			fmt.Println("──────────────────────────────────────────────────")

			root := askString("Project directory", a.root)
			if err := os.MkdirAll(root, 0o755); err != nil {
				return fmt.Errorf("create project dir: %w", err)
			}
			provider, err := chooseProvider(providerKey)
			if err != nil {
				return err
			}

			if confirmOverwrite(templates.ConfigPath(root), force) {
				path, err := templates.WriteConfig(root, provider)
				if err != nil {
					return err
				}
				logger.Debug("config written", "path", path, "provider", provider.Key)
				fmt.Printf("  \033[32m✓ Saved:\033[0m %s\n", path)
			}

			if confirmOverwrite(templates.EnvPath(root), force) {
				values := askEnvValues(provider)
				path, err := templates.WriteEnv(root, provider, values)
				if err != nil {
					return err
				}
				fmt.Printf("  \033[32m✓ Saved:\033[0m %s\n", path)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVar(&providerKey, "provider", "", "Provider key (openai, anthropic, ollama, ...); prompts when empty")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files without asking")
	return cmd
}

func chooseProvider(key string) (templates.Provider, error) {
	if key != "" {
		p, ok := templates.Lookup(key)
		if !ok {
			return templates.Provider{}, &userError{
				msg:  fmt.Sprintf("unknown provider %q", key),
				hint: "Omit --provider to pick from the list.",
			}
		}
		return p, nil
	}
	p, err := selectProviderFn()
	if err != nil {
		return templates.Provider{}, fmt.Errorf("select provider: %w", err)
	}
	return p, nil
}

func confirmOverwrite(path string, force bool) bool {
	if force || !templates.FileExists(path) {
		return true
	}
	return askBool(fmt.Sprintf("%s exists. Overwrite?", path), false)
}

// askEnvValues prompts until the provider's credentials pass validation.
func askEnvValues(p templates.Provider) templates.EnvValues {
	var v templates.EnvValues
	if p.Fields() == 0 {
		return v
	}
	for {
		v.APIKey = askSecret(p.KeyLabel+" API Key", false)
		if p.NeedsOpenAIEmbedding {
			v.OpenAIKey = askSecret("OpenAI API Key (embeddings)", false)
		}
		err := templates.ValidateEnv(p, v)
		if err == nil {
			return v
		}
		fmt.Printf("  \033[31m%s\033[0m\n", err)
	}
}
