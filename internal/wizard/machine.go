package wizard

import (
	"fmt"
	"strings"

	"github.com/Bibi40k/nqrust-installer/internal/logstream"
	"github.com/Bibi40k/nqrust-installer/internal/templates"
	"github.com/Bibi40k/nqrust-installer/internal/updates"
)

const (
	msgTokenRequired    = "Personal access token is required"
	msgNoTemplates      = "No configuration templates available"
	msgTokenForUpdates  = "A registry token is required before checking for updates."
	msgAuthenticating   = "Authenticating..."
	msgCheckingUpdates  = "Checking for updates..."
	msgInstallerCurrent = "Installer is already up to date"
)

type Options struct {
	// Token is the credential resolved at startup; empty forces RegistrySetup.
	Token        string
	ConfigExists bool
	EnvExists    bool
	Providers    []templates.Provider
	Services     []string
	BuildShare   float64
	StepFloor    float64
	LogCapacity  int
}

// RegistryForm is the credential entry screen. Field 0 is the token input,
// field 1 the submit button.
type RegistryForm struct {
	Token   string
	Field   int
	Editing bool
	Status  string
}

// EnvForm is the .env screen for the selected provider.
type EnvForm struct {
	Provider  templates.Provider
	APIKey    string
	OpenAIKey string
	Field     int
	Editing   bool
	Error     string
}

func (f *EnvForm) value() *string {
	if f.Field == 1 {
		return &f.OpenAIKey
	}
	return &f.APIKey
}

// Machine owns every piece of mutable wizard state. It is driven from a
// single goroutine.
type Machine struct {
	state    State
	prereqs  Prereqs
	token    string
	menu     []MenuOption
	selected MenuOption
	notice   string

	registry RegistryForm

	providers   []templates.Provider
	configIndex int
	env         EnvForm

	interp  logstream.Interpreter
	tracker *logstream.Tracker
	logs    *logstream.Buffer

	updates      []updates.Info
	updateIndex  int
	updateStatus string
	download     float64

	busy bool
	stop bool
}

func NewMachine(o Options) *Machine {
	m := &Machine{
		token:     strings.TrimSpace(o.Token),
		providers: o.Providers,
		interp:    logstream.NewInterpreter(o.Services),
		tracker:   logstream.NewTracker(len(o.Services), o.BuildShare, o.StepFloor),
		logs:      logstream.NewBuffer(o.LogCapacity),
		download:  -1,
	}
	m.prereqs = Prereqs{Credential: m.token != "", Config: o.ConfigExists, Env: o.EnvExists}
	m.selected = AvailableOptions(m.prereqs)[0]
	if m.prereqs.Credential {
		m.enterConfirmation()
	} else {
		m.state = RegistrySetup{}
	}
	return m
}

func (m *Machine) State() State                    { return m.state }
func (m *Machine) Prereqs() Prereqs                { return m.prereqs }
func (m *Machine) Token() string                   { return m.token }
func (m *Machine) Menu() []MenuOption              { return append([]MenuOption(nil), m.menu...) }
func (m *Machine) Selected() MenuOption            { return m.selected }
func (m *Machine) Notice() string                  { return m.notice }
func (m *Machine) Registry() RegistryForm          { return m.registry }
func (m *Machine) Env() EnvForm                    { return m.env }
func (m *Machine) Providers() []templates.Provider { return m.providers }
func (m *Machine) ConfigIndex() int                { return m.configIndex }
func (m *Machine) Logs() []string                  { return m.logs.Lines() }
func (m *Machine) Progress() logstream.Tracker     { return *m.tracker }
func (m *Machine) Updates() []updates.Info         { return m.updates }
func (m *Machine) UpdateIndex() int                { return m.updateIndex }
func (m *Machine) UpdateStatus() string            { return m.updateStatus }
func (m *Machine) DownloadPercent() float64        { return m.download }
func (m *Machine) Busy() bool                      { return m.busy }
func (m *Machine) Stopping() bool                  { return m.stop }

// Handle applies ev and returns the effects the caller must run.
func (m *Machine) Handle(ev Event) []Effect {
	switch ev := ev.(type) {
	case Tick:
		if m.stop {
			return []Effect{Quit{}}
		}
		return nil
	case Key:
		if ev.Type == KeyCtrlC {
			m.stop = true
			return nil
		}
		if m.busy {
			return nil
		}
		return m.handleKey(ev)
	case LoginFinished:
		return m.onLogin(ev)
	case ConfigWritten:
		return m.onConfigWritten(ev)
	case EnvWritten:
		return m.onEnvWritten(ev)
	case PhaseStarted:
		m.tracker.Begin(ev.Phase)
		if ev.Label != "" {
			m.logs.Push(ev.Label)
		}
	case OutputLine:
		if line := m.tracker.Apply(m.interp.Classify(ev.Text)); line != "" {
			m.logs.Push(line)
		}
	case DownloadProgress:
		m.download = ev.Percent
		if ev.Message != "" {
			m.logs.Push(ev.Message)
		}
	case InstallFinished:
		return m.onInstallFinished(ev)
	case UpdatesFetched:
		return m.onUpdatesFetched(ev)
	case PullFinished:
		return m.onPullFinished(ev)
	case SelfUpdateFinished:
		return m.onSelfUpdateFinished(ev)
	}
	return nil
}

func (m *Machine) handleKey(k Key) []Effect {
	switch m.state.(type) {
	case RegistrySetup:
		return m.registryKey(k)
	case Confirmation:
		return m.confirmationKey(k)
	case ConfigSelection:
		return m.configKey(k)
	case EnvSetup:
		return m.envKey(k)
	case UpdateList:
		return m.updateListKey(k)
	case UpdatePulling, Installing, Success, Error:
		// Only force-quit is accepted here.
	}
	return nil
}

// enterConfirmation recomputes the menu and keeps the selection inside it.
func (m *Machine) enterConfirmation() {
	m.state = Confirmation{}
	m.menu = AvailableOptions(m.prereqs)
	for _, o := range m.menu {
		if o == m.selected {
			return
		}
	}
	m.selected = m.menu[0]
}

func (m *Machine) fail(format string, args ...any) []Effect {
	m.busy = false
	m.state = Error{Message: fmt.Sprintf(format, args...)}
	return nil
}

func (m *Machine) enterRegistry(status string) {
	m.registry = RegistryForm{Status: status}
	m.state = RegistrySetup{}
}

func (m *Machine) registryKey(k Key) []Effect {
	f := &m.registry
	if f.Editing {
		switch k.Type {
		case KeyRune:
			f.Token += string(k.Rune)
		case KeyBackspace:
			f.Token = dropLastRune(f.Token)
		case KeyEnter, KeyEsc:
			f.Editing = false
		case KeyCtrlS:
			f.Editing = false
			return m.submitToken()
		}
		return nil
	}

	switch k.Type {
	case KeyUp, KeyDown, KeyTab:
		f.Field = 1 - f.Field
	case KeyEnter:
		if f.Field == 0 {
			f.Editing = true
			return nil
		}
		return m.submitToken()
	case KeyCtrlS:
		return m.submitToken()
	case KeyEsc:
		m.enterConfirmation()
	case KeyRune:
		if k.Rune == 'q' {
			m.enterConfirmation()
		}
	}
	return nil
}

func (m *Machine) submitToken() []Effect {
	token := strings.TrimSpace(m.registry.Token)
	if token == "" {
		m.registry.Status = msgTokenRequired
		return nil
	}
	m.busy = true
	m.registry.Status = msgAuthenticating
	return []Effect{Login{Token: token}}
}

func (m *Machine) onLogin(ev LoginFinished) []Effect {
	m.busy = false
	if ev.Err != nil {
		m.registry.Status = "Login failed: " + ev.Err.Error()
		return nil
	}
	m.token = strings.TrimSpace(m.registry.Token)
	m.prereqs.Credential = true
	m.registry = RegistryForm{}
	m.notice = fmt.Sprintf("Logged in to the registry as %s", ev.Username)
	if ev.Warning != "" {
		m.notice += " (" + ev.Warning + ")"
	}
	m.enterConfirmation()
	return nil
}

func (m *Machine) confirmationKey(k Key) []Effect {
	switch k.Type {
	case KeyUp:
		m.selected = m.menu[(m.menuPos()+len(m.menu)-1)%len(m.menu)]
	case KeyDown, KeyTab:
		m.selected = m.menu[(m.menuPos()+1)%len(m.menu)]
	case KeyEnter:
		return m.activate(m.selected)
	case KeyEsc:
		return []Effect{Quit{}}
	case KeyRune:
		if k.Rune == 'q' {
			return []Effect{Quit{}}
		}
	}
	return nil
}

func (m *Machine) menuPos() int {
	for i, o := range m.menu {
		if o == m.selected {
			return i
		}
	}
	return 0
}

func (m *Machine) activate(o MenuOption) []Effect {
	m.notice = ""
	switch o {
	case GenerateConfig:
		return m.enterConfigSelection()
	case GenerateEnv:
		if m.env.Provider.Key == "" {
			return m.enterConfigSelection()
		}
		m.enterEnvSetup(m.env.Provider)
	case Proceed:
		if !m.prereqs.Config || !m.prereqs.Env {
			return nil
		}
		m.tracker.Reset()
		m.logs.Reset()
		m.logs.Push("🚀 Starting Analytics installation...")
		m.busy = true
		m.state = Installing{}
		return []Effect{RunInstall{}}
	case CheckUpdates:
		if !m.prereqs.Credential {
			m.enterRegistry(msgTokenForUpdates)
			return nil
		}
		return m.fetchUpdates()
	case UpdateToken:
		m.enterRegistry("")
	case Cancel:
		return []Effect{Quit{}}
	}
	return nil
}

func (m *Machine) enterConfigSelection() []Effect {
	if len(m.providers) == 0 {
		return m.fail(msgNoTemplates)
	}
	m.configIndex = 0
	m.state = ConfigSelection{}
	return nil
}

func (m *Machine) configKey(k Key) []Effect {
	n := len(m.providers)
	switch k.Type {
	case KeyUp:
		m.configIndex = (m.configIndex + n - 1) % n
	case KeyDown, KeyTab:
		m.configIndex = (m.configIndex + 1) % n
	case KeyEnter:
		m.busy = true
		return []Effect{WriteConfig{Provider: m.providers[m.configIndex].Key}}
	case KeyEsc:
		m.enterConfirmation()
	case KeyRune:
		if k.Rune == 'q' {
			m.enterConfirmation()
		}
	}
	return nil
}

func (m *Machine) onConfigWritten(ev ConfigWritten) []Effect {
	m.busy = false
	if ev.Err != nil {
		return m.fail("Failed to generate config.yaml: %v", ev.Err)
	}
	m.prereqs.Config = true
	provider := m.providers[m.configIndex]
	for _, p := range m.providers {
		if p.Key == ev.Provider {
			provider = p
		}
	}
	if m.prereqs.Env {
		m.env = EnvForm{Provider: provider}
		m.enterConfirmation()
		return nil
	}
	m.enterEnvSetup(provider)
	return nil
}

func (m *Machine) enterEnvSetup(p templates.Provider) {
	m.env = EnvForm{Provider: p}
	m.state = EnvSetup{}
}

func (m *Machine) envKey(k Key) []Effect {
	f := &m.env
	if f.Editing {
		switch k.Type {
		case KeyRune:
			*f.value() += string(k.Rune)
		case KeyBackspace:
			*f.value() = dropLastRune(*f.value())
		case KeyEnter, KeyEsc:
			f.Editing = false
		case KeyCtrlS:
			f.Editing = false
			return m.submitEnv()
		}
		return nil
	}

	fields := f.Provider.Fields()
	switch k.Type {
	case KeyEnter:
		if f.Field < fields {
			f.Editing = true
		}
	case KeyUp:
		if f.Field > 0 {
			f.Field--
		}
	case KeyDown, KeyTab:
		if f.Field < fields-1 {
			f.Field++
		}
	case KeyCtrlS:
		return m.submitEnv()
	case KeyEsc:
		m.enterConfirmation()
	case KeyRune:
		if k.Rune == 'q' {
			m.enterConfirmation()
		}
	}
	return nil
}

func (m *Machine) submitEnv() []Effect {
	f := &m.env
	if err := templates.ValidateEnv(f.Provider, templates.EnvValues{APIKey: f.APIKey, OpenAIKey: f.OpenAIKey}); err != nil {
		f.Error = err.Error()
		return nil
	}
	f.Error = ""
	m.busy = true
	return []Effect{WriteEnv{
		Provider:  f.Provider.Key,
		APIKey:    strings.TrimSpace(f.APIKey),
		OpenAIKey: strings.TrimSpace(f.OpenAIKey),
	}}
}

func (m *Machine) onEnvWritten(ev EnvWritten) []Effect {
	m.busy = false
	if ev.Err != nil {
		return m.fail("Failed to generate .env: %v", ev.Err)
	}
	m.prereqs.Env = true
	m.enterConfirmation()
	return nil
}

func (m *Machine) onInstallFinished(ev InstallFinished) []Effect {
	m.busy = false
	if ev.Err != nil {
		return m.fail("Installation failed: %v", ev.Err)
	}
	for _, w := range ev.Warnings {
		m.logs.Push("⚠ " + w)
	}
	m.tracker.Finish()
	m.logs.Push("✅ All services started successfully!")
	m.state = Success{}
	return nil
}

func (m *Machine) fetchUpdates() []Effect {
	m.busy = true
	m.updates = nil
	m.updateIndex = 0
	m.updateStatus = msgCheckingUpdates
	m.state = UpdateList{}
	return []Effect{FetchUpdates{Token: m.token}}
}

func (m *Machine) onUpdatesFetched(ev UpdatesFetched) []Effect {
	m.busy = false
	if ev.Err != nil {
		return m.fail("Failed to check for updates: %v", ev.Err)
	}
	m.updates = ev.Infos
	m.updateIndex = 0
	pending := 0
	for _, info := range m.updates {
		if info.HasUpdate() {
			pending++
		}
	}
	if pending == 0 {
		m.updateStatus = "Everything is up to date"
	} else {
		m.updateStatus = fmt.Sprintf("%d update(s) available", pending)
	}
	return nil
}

func (m *Machine) updateListKey(k Key) []Effect {
	n := len(m.updates)
	switch k.Type {
	case KeyUp:
		if n > 0 {
			m.updateIndex = (m.updateIndex + n - 1) % n
		}
	case KeyDown, KeyTab:
		if n > 0 {
			m.updateIndex = (m.updateIndex + 1) % n
		}
	case KeyEnter:
		return m.pullSelected()
	case KeyEsc:
		m.enterConfirmation()
	case KeyRune:
		switch k.Rune {
		case 'p':
			return m.pullSelected()
		case 'r':
			return m.fetchUpdates()
		case 'q':
			m.enterConfirmation()
		}
	}
	return nil
}

func (m *Machine) pullSelected() []Effect {
	if m.updateIndex >= len(m.updates) {
		return nil
	}
	info := m.updates[m.updateIndex]
	m.tracker.Reset()
	m.tracker.Begin(logstream.PhasePull)
	m.logs.Reset()
	m.download = -1

	if info.IsInstaller() {
		if !info.HasUpdate() || info.Installer.Asset == nil {
			m.updateStatus = msgInstallerCurrent
			if info.Status != "" {
				m.updateStatus += ": " + info.Status
			}
			return nil
		}
		m.logs.Push(fmt.Sprintf("Updating installer to %s", info.Installer.Tag))
		m.busy = true
		m.state = UpdatePulling{}
		return []Effect{SelfUpdate{Release: *info.Installer}}
	}

	m.logs.Push(fmt.Sprintf("Pulling %s", info.Image))
	m.busy = true
	m.state = UpdatePulling{}
	return []Effect{PullImage{Index: m.updateIndex, Image: info.Image}}
}

func (m *Machine) onPullFinished(ev PullFinished) []Effect {
	m.busy = false
	if ev.Index < 0 || ev.Index >= len(m.updates) {
		m.state = UpdateList{}
		return nil
	}
	info := &m.updates[ev.Index]
	if ev.Err != nil {
		return m.fail("Failed to pull %s: %v", info.Image, ev.Err)
	}
	info.ClearInspectFailure()
	info.AppendStatus(ev.Note)
	info.ApplyLocalCreated(ev.LocalCreated)
	m.updateStatus = fmt.Sprintf("✓ Pulled %s", info.Name)
	m.state = UpdateList{}
	return nil
}

func (m *Machine) onSelfUpdateFinished(ev SelfUpdateFinished) []Effect {
	m.busy = false
	if ev.Err != nil {
		return m.fail("Installer update failed: %v", ev.Err)
	}
	m.updateStatus = ev.Message
	if ev.Warning != "" {
		m.updateStatus += " (" + ev.Warning + ")"
	}
	m.state = UpdateList{}
	return nil
}

func dropLastRune(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return string(r[:len(r)-1])
}
