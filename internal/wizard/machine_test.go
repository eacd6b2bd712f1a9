package wizard

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bibi40k/nqrust-installer/internal/logstream"
	"github.com/Bibi40k/nqrust-installer/internal/templates"
	"github.com/Bibi40k/nqrust-installer/internal/updates"
)

func newTestMachine(token string, config, env bool) *Machine {
	return NewMachine(Options{
		Token:        token,
		ConfigExists: config,
		EnvExists:    env,
		Providers:    templates.Providers(),
		Services:     []string{"analytics-service", "qdrant", "analytics-ui"},
		BuildShare:   60,
		StepFloor:    5,
		LogCapacity:  50,
	})
}

func key(t KeyType) Key { return Key{Type: t} }

func typeText(m *Machine, s string) {
	for _, r := range s {
		m.Handle(Key{Type: KeyRune, Rune: r})
	}
}

func lookup(t *testing.T, k string) templates.Provider {
	t.Helper()
	p, ok := templates.Lookup(k)
	require.True(t, ok, "provider %s", k)
	return p
}

func TestAvailableOptions(t *testing.T) {
	tests := []struct {
		name string
		p    Prereqs
		want []MenuOption
	}{
		{"fresh", Prereqs{}, []MenuOption{GenerateConfig, GenerateEnv, CheckUpdates, Cancel}},
		{"config only", Prereqs{Config: true}, []MenuOption{GenerateEnv, CheckUpdates, Cancel}},
		{"ready", Prereqs{Config: true, Env: true}, []MenuOption{Proceed, CheckUpdates, Cancel}},
		{"ready with token", Prereqs{Credential: true, Config: true, Env: true}, []MenuOption{Proceed, CheckUpdates, UpdateToken, Cancel}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AvailableOptions(tc.p))
		})
	}
}

func TestInitialState(t *testing.T) {
	assert.IsType(t, RegistrySetup{}, newTestMachine("", false, false).State())

	m := newTestMachine("ghp_x", false, false)
	assert.IsType(t, Confirmation{}, m.State())
	assert.Equal(t, GenerateConfig, m.Selected())
}

func TestMenuWrapsBothWays(t *testing.T) {
	m := newTestMachine("ghp_x", true, true)
	require.Equal(t, []MenuOption{Proceed, CheckUpdates, UpdateToken, Cancel}, m.Menu())

	m.Handle(key(KeyUp))
	assert.Equal(t, Cancel, m.Selected())
	m.Handle(key(KeyDown))
	assert.Equal(t, Proceed, m.Selected())

	seen := map[MenuOption]bool{}
	for range 8 {
		m.Handle(key(KeyTab))
		seen[m.Selected()] = true
	}
	assert.Len(t, seen, 4)
	assert.False(t, seen[GenerateConfig])
	assert.False(t, seen[GenerateEnv])
}

func TestSelectionResetsWhenOptionDisappears(t *testing.T) {
	m := newTestMachine("ghp_x", false, true)
	require.Equal(t, GenerateConfig, m.Selected())

	require.Empty(t, m.Handle(key(KeyEnter)))
	require.IsType(t, ConfigSelection{}, m.State())
	effects := m.Handle(key(KeyEnter))
	require.Equal(t, []Effect{WriteConfig{Provider: "openai"}}, effects)
	assert.True(t, m.Busy())

	m.Handle(ConfigWritten{Provider: "openai"})
	require.IsType(t, Confirmation{}, m.State())
	assert.Equal(t, Proceed, m.Selected())
	assert.Equal(t, []MenuOption{Proceed, CheckUpdates, UpdateToken, Cancel}, m.Menu())
}

func TestLoginFlow(t *testing.T) {
	m := newTestMachine("", true, true)
	require.IsType(t, RegistrySetup{}, m.State())

	// Empty submit re-prompts without an effect.
	assert.Empty(t, m.Handle(key(KeyCtrlS)))
	assert.Equal(t, msgTokenRequired, m.Registry().Status)

	m.Handle(key(KeyEnter))
	require.True(t, m.Registry().Editing)
	typeText(m, "ghp_secretx")
	m.Handle(key(KeyBackspace))
	m.Handle(key(KeyEnter))
	assert.Equal(t, "ghp_secret", m.Registry().Token)

	m.Handle(key(KeyDown))
	effects := m.Handle(key(KeyEnter))
	require.Equal(t, []Effect{Login{Token: "ghp_secret"}}, effects)

	// Keys are ignored while the login runs.
	m.Handle(key(KeyEsc))
	require.IsType(t, RegistrySetup{}, m.State())

	m.Handle(LoginFinished{Err: errors.New("bad credentials")})
	assert.IsType(t, RegistrySetup{}, m.State())
	assert.Equal(t, "Login failed: bad credentials", m.Registry().Status)

	m.Handle(key(KeyCtrlS))
	m.Handle(LoginFinished{Username: "octocat"})
	require.IsType(t, Confirmation{}, m.State())
	assert.Equal(t, "ghp_secret", m.Token())
	assert.True(t, m.Prereqs().Credential)
	assert.Contains(t, m.Menu(), UpdateToken)
	assert.Contains(t, m.Notice(), "octocat")
}

func TestSkipRegistrySetup(t *testing.T) {
	m := newTestMachine("", false, false)
	m.Handle(Key{Type: KeyRune, Rune: 'q'})
	require.IsType(t, Confirmation{}, m.State())
	assert.NotContains(t, m.Menu(), UpdateToken)
}

func TestCheckUpdatesWithoutCredential(t *testing.T) {
	m := newTestMachine("", true, true)
	m.Handle(key(KeyEsc))
	require.IsType(t, Confirmation{}, m.State())

	m.Handle(key(KeyDown))
	require.Equal(t, CheckUpdates, m.Selected())
	assert.Empty(t, m.Handle(key(KeyEnter)))
	assert.IsType(t, RegistrySetup{}, m.State())
	assert.Equal(t, msgTokenForUpdates, m.Registry().Status)
}

func TestEnvValidation(t *testing.T) {
	m := newTestMachine("ghp_x", true, false)
	m.enterEnvSetup(lookup(t, "anthropic"))

	assert.Empty(t, m.Handle(key(KeyCtrlS)))
	assert.Equal(t, "Anthropic API Key is required!", m.Env().Error)

	m.Handle(key(KeyEnter))
	typeText(m, "sk-ant")
	m.Handle(key(KeyEnter))
	m.Handle(key(KeyCtrlS))
	assert.Equal(t, "OpenAI API Key is required for embedding model!", m.Env().Error)

	m.Handle(key(KeyDown))
	m.Handle(key(KeyDown))
	assert.Equal(t, 1, m.Env().Field)
	m.Handle(key(KeyEnter))
	typeText(m, "sk-oai")
	effects := m.Handle(key(KeyCtrlS))
	require.Equal(t, []Effect{WriteEnv{Provider: "anthropic", APIKey: "sk-ant", OpenAIKey: "sk-oai"}}, effects)
	assert.Empty(t, m.Env().Error)

	m.Handle(EnvWritten{})
	require.IsType(t, Confirmation{}, m.State())
	assert.Equal(t, Proceed, m.Selected())
}

func TestLocalProviderHasNoFields(t *testing.T) {
	m := newTestMachine("ghp_x", true, false)
	m.enterEnvSetup(lookup(t, "ollama"))

	m.Handle(key(KeyEnter))
	assert.False(t, m.Env().Editing)
	assert.Equal(t, []Effect{WriteEnv{Provider: "ollama"}}, m.Handle(key(KeyCtrlS)))
}

func TestGenerateEnvWithoutProviderAsksForConfig(t *testing.T) {
	m := newTestMachine("ghp_x", true, false)
	require.Equal(t, GenerateEnv, m.Selected())
	m.Handle(key(KeyEnter))
	assert.IsType(t, ConfigSelection{}, m.State())
}

func TestConfigWriteFailure(t *testing.T) {
	m := newTestMachine("ghp_x", false, false)
	m.Handle(key(KeyEnter))
	m.Handle(key(KeyUp))
	effects := m.Handle(key(KeyEnter))
	require.Equal(t, []Effect{WriteConfig{Provider: "zhipu"}}, effects)

	m.Handle(ConfigWritten{Provider: "zhipu", Err: errors.New("permission denied")})
	assert.Equal(t, Error{Message: "Failed to generate config.yaml: permission denied"}, m.State())

	// Error is terminal.
	m.Handle(key(KeyEnter))
	assert.IsType(t, Error{}, m.State())
}

func TestInstallFlow(t *testing.T) {
	m := newTestMachine("ghp_x", true, true)
	require.Equal(t, Proceed, m.Selected())
	require.Equal(t, []Effect{RunInstall{}}, m.Handle(key(KeyEnter)))
	require.IsType(t, Installing{}, m.State())

	m.Handle(PhaseStarted{Phase: logstream.PhaseBuild, Label: "Building images"})
	m.Handle(OutputLine{Text: "Step 2/4 : RUN cargo build --release"})
	m.Handle(OutputLine{Text: ""})
	buildPct := m.Progress().Percent
	assert.Greater(t, buildPct, 0.0)
	assert.LessOrEqual(t, buildPct, 60.0)

	m.Handle(PhaseStarted{Phase: logstream.PhaseDeploy, Label: "Starting services"})
	m.Handle(OutputLine{Text: " Container qdrant  Started"})
	assert.GreaterOrEqual(t, m.Progress().Percent, buildPct)

	m.Handle(InstallFinished{Warnings: []string{"service-ready: not reachable"}})
	require.IsType(t, Success{}, m.State())
	assert.Equal(t, 100.0, m.Progress().Percent)

	logs := m.Logs()
	assert.Equal(t, "🚀 Starting Analytics installation...", logs[0])
	assert.Contains(t, logs, "Building images")
	assert.Contains(t, logs, "⚠ service-ready: not reachable")
	assert.Equal(t, "✅ All services started successfully!", logs[len(logs)-1])
}

func TestInstallFailure(t *testing.T) {
	m := newTestMachine("ghp_x", true, true)
	m.Handle(key(KeyEnter))
	m.Handle(InstallFinished{Err: errors.New("step compose_build failed: exit status 1")})
	assert.Equal(t, Error{Message: "Installation failed: step compose_build failed: exit status 1"}, m.State())
}

func TestForceQuitWaitsForTick(t *testing.T) {
	m := newTestMachine("ghp_x", true, true)
	m.Handle(key(KeyEnter))
	require.True(t, m.Busy())

	assert.Empty(t, m.Handle(key(KeyCtrlC)))
	assert.True(t, m.Stopping())
	assert.Equal(t, []Effect{Quit{}}, m.Handle(Tick{}))
}

func TestTickWithoutStopIsNoop(t *testing.T) {
	m := newTestMachine("ghp_x", false, false)
	assert.Empty(t, m.Handle(Tick{}))
}

func TestUpdateListPull(t *testing.T) {
	m := newTestMachine("ghp_x", true, true)
	m.Handle(key(KeyDown))
	require.Equal(t, CheckUpdates, m.Selected())
	require.Equal(t, []Effect{FetchUpdates{Token: "ghp_x"}}, m.Handle(key(KeyEnter)))
	require.IsType(t, UpdateList{}, m.State())

	remote := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	svc := updates.Info{
		Name:   "analytics-service",
		Image:  "ghcr.io/nexusquantum/analytics-service:latest",
		Status: "Failed to inspect local image: no such image",
	}
	svc.ApplyRemoteLatest(&remote)
	require.True(t, svc.HasUpdate())
	installer := updates.Info{Name: "nqrust-installer", Installer: &updates.InstallerRelease{Tag: "v0.1.0"}}

	m.Handle(UpdatesFetched{Infos: []updates.Info{svc, installer}})
	assert.Equal(t, "1 update(s) available", m.UpdateStatus())

	m.Handle(key(KeyUp))
	assert.Equal(t, 1, m.UpdateIndex())
	assert.Empty(t, m.Handle(Key{Type: KeyRune, Rune: 'p'}))
	assert.Equal(t, msgInstallerCurrent, m.UpdateStatus())

	m.Handle(key(KeyDown))
	effects := m.Handle(key(KeyEnter))
	require.Equal(t, []Effect{PullImage{Index: 0, Image: svc.Image}}, effects)
	require.IsType(t, UpdatePulling{}, m.State())

	m.Handle(OutputLine{Text: "latest: Pulling from nexusquantum/analytics-service"})
	local := remote.Add(time.Hour)
	m.Handle(PullFinished{Index: 0, LocalCreated: &local})
	require.IsType(t, UpdateList{}, m.State())
	got := m.Updates()[0]
	assert.Empty(t, got.Status)
	assert.False(t, got.HasUpdate())
	assert.Equal(t, "✓ Pulled analytics-service", m.UpdateStatus())
}

func TestUpdatesFetchFailure(t *testing.T) {
	m := newTestMachine("ghp_x", true, true)
	m.Handle(key(KeyDown))
	m.Handle(key(KeyEnter))
	m.Handle(UpdatesFetched{Err: errors.New("401 Unauthorized")})
	assert.Equal(t, Error{Message: "Failed to check for updates: 401 Unauthorized"}, m.State())
}

func TestSelfUpdateFinished(t *testing.T) {
	m := newTestMachine("ghp_x", true, true)
	m.state = UpdatePulling{}
	m.busy = true
	m.Handle(DownloadProgress{Message: "Downloading installer: 40%", Percent: 40})
	assert.Equal(t, 40.0, m.DownloadPercent())

	m.Handle(SelfUpdateFinished{Message: "Installed 0.2.0. Restart required.", Warning: "checksum manifest not published"})
	assert.IsType(t, UpdateList{}, m.State())
	assert.False(t, m.Busy())
	assert.Equal(t, "Installed 0.2.0. Restart required. (checksum manifest not published)", m.UpdateStatus())
}
