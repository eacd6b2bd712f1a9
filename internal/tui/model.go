// Package tui renders the installer wizard with bubbletea and runs the
// effects the wizard asks for.
package tui

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Bibi40k/nqrust-installer/internal/config"
	"github.com/Bibi40k/nqrust-installer/internal/process"
	"github.com/Bibi40k/nqrust-installer/internal/registry"
	"github.com/Bibi40k/nqrust-installer/internal/selfupdate"
	"github.com/Bibi40k/nqrust-installer/internal/templates"
	"github.com/Bibi40k/nqrust-installer/internal/updates"
	"github.com/Bibi40k/nqrust-installer/internal/wizard"
)

type Authenticator interface {
	Login(ctx context.Context, token string) (registry.LoginResult, error)
}

type Resolver interface {
	Resolve(ctx context.Context, token string) ([]updates.Info, error)
	Pull(ctx context.Context, ref string, sink chan<- process.Line) error
	InspectLocal(ctx context.Context, ref string) (*time.Time, string)
}

type Updater interface {
	Update(ctx context.Context, rel updates.InstallerRelease, progress selfupdate.ProgressFunc) (selfupdate.Result, error)
}

// Deps is everything the effects need.
type Deps struct {
	Config   config.Config
	Root     string
	Token    string
	Logger   *slog.Logger
	Auth     Authenticator
	Resolver Resolver
	Updater  Updater
}

type (
	tickMsg  struct{}
	eventMsg struct{ ev wizard.Event }
)

type Model struct {
	deps    Deps
	machine *wizard.Machine
	events  chan wizard.Event
	ctx     context.Context
	cancel  context.CancelFunc

	spinner spinner.Model
	bar     progress.Model
	width   int
}

func New(ctx context.Context, deps Deps) *Model {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	cfg := deps.Config
	machine := wizard.NewMachine(wizard.Options{
		Token:        deps.Token,
		ConfigExists: templates.FileExists(templates.ConfigPath(deps.Root)),
		EnvExists:    templates.FileExists(templates.EnvPath(deps.Root)),
		Providers:    templates.Providers(),
		Services:     cfg.Project.Services,
		BuildShare:   cfg.Progress.BuildShare,
		StepFloor:    cfg.Progress.StepFloor,
		LogCapacity:  cfg.Progress.LogCapacity,
	})

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	ctx, cancel := context.WithCancel(ctx)
	return &Model{
		deps:    deps,
		machine: machine,
		events:  make(chan wizard.Event, 256),
		ctx:     ctx,
		cancel:  cancel,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		width:   80,
	}
}

// Machine exposes the wizard for tests and the exit summary.
func (m *Model) Machine() *wizard.Machine { return m.machine }

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick(), waitForEvent(m.events))
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.deps.Config.Progress.PollInterval(), func(time.Time) tea.Msg { return tickMsg{} })
}

// waitForEvent turns the next effect outcome into a message.
func waitForEvent(events <-chan wizard.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg{ev: <-events}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(20, min(msg.Width-10, 80))
		return m, nil
	case tea.KeyMsg:
		var cmds []tea.Cmd
		for _, k := range toKeys(msg) {
			cmds = append(cmds, m.dispatch(k))
		}
		return m, tea.Batch(cmds...)
	case tickMsg:
		return m, tea.Batch(m.dispatch(wizard.Tick{}), m.tick())
	case eventMsg:
		return m, tea.Batch(m.dispatch(msg.ev), waitForEvent(m.events))
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) dispatch(ev wizard.Event) tea.Cmd {
	var cmds []tea.Cmd
	for _, eff := range m.machine.Handle(ev) {
		if _, ok := eff.(wizard.Quit); ok {
			m.cancel()
			return tea.Quit
		}
		cmds = append(cmds, m.run(eff))
	}
	return tea.Batch(cmds...)
}

func toKeys(msg tea.KeyMsg) []wizard.Key {
	switch msg.Type {
	case tea.KeyCtrlC:
		return []wizard.Key{{Type: wizard.KeyCtrlC}}
	case tea.KeyCtrlS:
		return []wizard.Key{{Type: wizard.KeyCtrlS}}
	case tea.KeyUp:
		return []wizard.Key{{Type: wizard.KeyUp}}
	case tea.KeyDown:
		return []wizard.Key{{Type: wizard.KeyDown}}
	case tea.KeyTab:
		return []wizard.Key{{Type: wizard.KeyTab}}
	case tea.KeyEnter:
		return []wizard.Key{{Type: wizard.KeyEnter}}
	case tea.KeyEsc:
		return []wizard.Key{{Type: wizard.KeyEsc}}
	case tea.KeyBackspace:
		return []wizard.Key{{Type: wizard.KeyBackspace}}
	case tea.KeySpace:
		return []wizard.Key{{Type: wizard.KeyRune, Rune: ' '}}
	case tea.KeyRunes:
		out := make([]wizard.Key, 0, len(msg.Runes))
		for _, r := range msg.Runes {
			out = append(out, wizard.Key{Type: wizard.KeyRune, Rune: r})
		}
		return out
	}
	return nil
}
