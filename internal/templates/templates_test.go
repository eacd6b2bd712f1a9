package templates

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func mustProvider(t *testing.T, key string) Provider {
	t.Helper()
	p, ok := Lookup(key)
	require.True(t, ok, "provider %s", key)
	return p
}

func TestCatalogue(t *testing.T) {
	providers := Providers()
	require.Len(t, providers, 14)
	assert.Equal(t, "openai", providers[0].Key)
	assert.Equal(t, "zhipu", providers[len(providers)-1].Key)

	seen := map[string]bool{}
	for _, p := range providers {
		assert.False(t, seen[p.Key], "duplicate key %s", p.Key)
		seen[p.Key] = true
		assert.NotEmpty(t, p.llms, p.Key)
		assert.NotEmpty(t, p.embedder.Model, p.Key)
	}

	assert.Equal(t, 0, mustProvider(t, "ollama").Fields())
	assert.Equal(t, 1, mustProvider(t, "lm_studio").Fields())
	assert.Equal(t, 1, mustProvider(t, "openai").Fields())
	assert.Equal(t, 2, mustProvider(t, "deepseek").Fields())

	_, ok := Lookup("nope")
	assert.False(t, ok)
}

func TestRenderConfigBindsOverrides(t *testing.T) {
	content, err := RenderConfig(mustProvider(t, "deepseek"))
	require.NoError(t, err)

	dec := yaml.NewDecoder(bytes.NewReader(content))
	var docs []map[string]any
	for {
		var d map[string]any
		err := dec.Decode(&d)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		docs = append(docs, d)
	}
	require.Len(t, docs, 6)
	assert.Equal(t, "llm", docs[0]["type"])
	assert.Equal(t, "embedder", docs[1]["type"])

	pipes := docs[4]["pipes"].([]any)
	bindings := map[string]string{}
	for _, raw := range pipes {
		p := raw.(map[string]any)
		if llm, ok := p["llm"].(string); ok {
			bindings[p["name"].(string)] = llm
		}
	}
	assert.Equal(t, "litellm_llm.deepseek/deepseek-reasoner", bindings["sql_generation_reasoning"])
	assert.Equal(t, "litellm_llm.deepseek/deepseek-chat", bindings["sql_answer"])
	assert.Equal(t, "litellm_llm.default", bindings["chart_generation"])

	settings := docs[5]["settings"].(map[string]any)
	assert.Equal(t, true, settings["development"])
	assert.Equal(t, "DEBUG", settings["logging_level"])
}

func TestValidateEnv(t *testing.T) {
	assert.NoError(t, ValidateEnv(mustProvider(t, "ollama"), EnvValues{}))
	assert.NoError(t, ValidateEnv(mustProvider(t, "lm_studio"), EnvValues{}))

	err := ValidateEnv(mustProvider(t, "anthropic"), EnvValues{APIKey: "  "})
	require.Error(t, err)
	assert.Equal(t, "Anthropic API Key is required!", err.Error())

	err = ValidateEnv(mustProvider(t, "anthropic"), EnvValues{APIKey: "sk-ant"})
	assert.ErrorIs(t, err, ErrOpenAIKeyRequired)

	assert.NoError(t, ValidateEnv(mustProvider(t, "openai"), EnvValues{APIKey: "sk"}))
}

func TestNewUserUUID(t *testing.T) {
	prev := newUUIDFn
	t.Cleanup(func() { newUUIDFn = prev })
	newUUIDFn = func() string { return "1a2b3c4d-0000-4000-8000-000000000000" }

	assert.Equal(t, "demo-user-1a2b3c4d", NewUserUUID())
}

func TestRenderEnvOpenAIUsesPlaceholder(t *testing.T) {
	out := RenderEnv(mustProvider(t, "openai"), EnvValues{APIKey: " sk-openai ", UserUUID: "demo-user-x"})
	assert.Contains(t, out, "OPENAI_API_KEY=sk-openai\n")
	assert.Contains(t, out, "USER_UUID=demo-user-x")
	assert.Contains(t, out, "HOST_PORT=3000")
	assert.NotContains(t, out, "{{")
}

func TestRenderEnvInsertsProviderKeyAfterMarker(t *testing.T) {
	out := RenderEnv(mustProvider(t, "anthropic"), EnvValues{APIKey: "sk-ant", OpenAIKey: "sk-oa", UserUUID: "u"})
	lines := strings.Split(out, "\n")
	idx := -1
	for i, l := range lines {
		if l == vendorKeysMarker {
			idx = i
		}
	}
	require.GreaterOrEqual(t, idx, 0)
	require.Greater(t, len(lines), idx+2)
	assert.Equal(t, "ANTHROPIC_API_KEY=sk-ant", lines[idx+1])
	assert.Equal(t, "OPENAI_API_KEY=sk-oa", lines[idx+2])
	assert.Equal(t, 1, strings.Count(out, "OPENAI_API_KEY="))
}

func TestRenderEnvDropsOpenAIKeyWhenUnused(t *testing.T) {
	out := RenderEnv(mustProvider(t, "groq"), EnvValues{APIKey: "gsk"})
	assert.Contains(t, out, "GROQ_API_KEY=gsk")
	assert.NotContains(t, out, "OPENAI_API_KEY")

	out = RenderEnv(mustProvider(t, "ollama"), EnvValues{})
	assert.Contains(t, out, "OPENAI_API_KEY=\n")
}

func TestProjectRootWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "compose.yml"), []byte("services: {}\n"), 0o644))

	assert.Equal(t, root, ProjectRoot(nested))
}

func TestProjectRootFallsBackToStart(t *testing.T) {
	start := t.TempDir()
	got := ProjectRoot(start)
	if HasComposeFile(filepath.Dir(start)) {
		t.Skip("temp dir parent has a compose file")
	}
	assert.Equal(t, start, got)
}

func TestEnsureComposeBundle(t *testing.T) {
	root := t.TempDir()
	created, err := EnsureComposeBundle(root)
	require.NoError(t, err)
	assert.True(t, created)
	content, err := os.ReadFile(filepath.Join(root, ComposeFileName))
	require.NoError(t, err)
	assert.Contains(t, string(content), "analytics-ui:")

	created, err = EnsureComposeBundle(root)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestWriteEnvIsOwnerOnly(t *testing.T) {
	root := t.TempDir()
	path, err := WriteEnv(root, mustProvider(t, "openai"), EnvValues{APIKey: "sk"})
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	path, err = WriteConfig(root, mustProvider(t, "openai"))
	require.NoError(t, err)
	assert.True(t, FileExists(path))
}
