package templates

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

//go:embed assets/env.template
var envTemplate string

const (
	vendorKeysMarker  = "# vendor keys"
	openAIKeyName     = "OPENAI_API_KEY"
	openAIPlaceholder = "{{OPENAI_API_KEY}}"
)

var envDefaults = []struct{ placeholder, value string }{
	{"{{ANALYTICS_AI_SERVICE_PORT}}", "5555"},
	{"{{GENERATION_MODEL}}", "default"},
	{"{{HOST_PORT}}", "3000"},
	{"{{AI_SERVICE_FORWARD_PORT}}", "5555"},
}

var newUUIDFn = uuid.NewString

// EnvValues are the operator inputs for a generated .env.
type EnvValues struct {
	APIKey    string
	OpenAIKey string
	// UserUUID defaults to a fresh demo-user id when empty.
	UserUUID string
}

// NewUserUUID returns "demo-user-" plus the first group of a random UUID.
func NewUserUUID() string {
	first, _, _ := strings.Cut(newUUIDFn(), "-")
	return "demo-user-" + first
}

var ErrOpenAIKeyRequired = errors.New("OpenAI API Key is required for embedding model!")

// ValidateEnv checks that p's credentials are filled in. Local providers
// never need one.
func ValidateEnv(p Provider, v EnvValues) error {
	if !p.NeedsAPIKey {
		return nil
	}
	if strings.TrimSpace(v.APIKey) == "" {
		return fmt.Errorf("%s API Key is required!", p.KeyLabel)
	}
	if p.NeedsOpenAIEmbedding && strings.TrimSpace(v.OpenAIKey) == "" {
		return ErrOpenAIKeyRequired
	}
	return nil
}

// RenderEnv fills the .env template for p. The provider key goes right after
// the vendor keys marker; the OpenAI key line stays only when the provider
// is OpenAI or embeds through OpenAI.
func RenderEnv(p Provider, v EnvValues) string {
	userID := v.UserUUID
	if userID == "" {
		userID = NewUserUUID()
	}
	content := strings.ReplaceAll(envTemplate, "{{USER_UUID}}", userID)
	for _, d := range envDefaults {
		content = strings.ReplaceAll(content, d.placeholder, d.value)
	}

	apiKey := strings.TrimSpace(v.APIKey)
	openAIKey := strings.TrimSpace(v.OpenAIKey)

	switch p.EnvKey {
	case "":
		return strings.ReplaceAll(content, openAIPlaceholder, "")
	case openAIKeyName:
		return strings.ReplaceAll(content, openAIPlaceholder, apiKey)
	}

	withOpenAI := p.NeedsOpenAIEmbedding && openAIKey != ""
	providerLine := p.EnvKey + "=" + apiKey
	openAILine := openAIKeyName + "=" + openAIKey

	var out []string
	addedProvider, addedOpenAI := false, false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == openAIKeyName+"="+openAIPlaceholder || trimmed == openAIKeyName+"=":
			continue
		case strings.HasPrefix(trimmed, p.EnvKey+"="):
			out = append(out, providerLine)
			addedProvider = true
		case strings.HasPrefix(trimmed, openAIKeyName+"="):
			if withOpenAI {
				out = append(out, openAILine)
				addedOpenAI = true
			}
		default:
			out = append(out, line)
			if strings.Contains(line, vendorKeysMarker) {
				if !addedProvider {
					out = append(out, providerLine)
					addedProvider = true
				}
				if withOpenAI && !addedOpenAI {
					out = append(out, openAILine)
					addedOpenAI = true
				}
			}
		}
	}
	if !addedProvider {
		out = append(out, providerLine)
	}
	if withOpenAI && !addedOpenAI {
		out = append(out, openAILine)
	}
	return strings.Join(out, "\n")
}
