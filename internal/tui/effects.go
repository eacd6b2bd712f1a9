package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Bibi40k/nqrust-installer/internal/install"
	"github.com/Bibi40k/nqrust-installer/internal/process"
	"github.com/Bibi40k/nqrust-installer/internal/selfupdate"
	"github.com/Bibi40k/nqrust-installer/internal/templates"
	"github.com/Bibi40k/nqrust-installer/internal/wizard"
)

var installRunFn = install.Run

// run starts eff in the background. Every outcome, streamed or final, goes
// through m.events so the wizard sees them in the order they happened.
//
// Effects that drive an external process run on a context quitting does not
// cancel: force quit stops the UI and leaves the child to finish.
func (m *Model) run(eff wizard.Effect) tea.Cmd {
	var work func(context.Context)
	detached := false
	switch eff := eff.(type) {
	case wizard.Login:
		work = func(ctx context.Context) { m.login(ctx, eff) }
	case wizard.WriteConfig:
		work = func(context.Context) { m.writeConfig(eff) }
	case wizard.WriteEnv:
		work = func(context.Context) { m.writeEnv(eff) }
	case wizard.RunInstall:
		work, detached = m.install, true
	case wizard.FetchUpdates:
		work = func(ctx context.Context) { m.fetchUpdates(ctx, eff) }
	case wizard.PullImage:
		work, detached = func(ctx context.Context) { m.pull(ctx, eff) }, true
	case wizard.SelfUpdate:
		work, detached = func(ctx context.Context) { m.selfUpdate(ctx, eff) }, true
	default:
		m.deps.Logger.Warn("unhandled wizard effect", "effect", fmt.Sprintf("%T", eff))
		return nil
	}
	ctx := m.ctx
	if detached {
		ctx = context.WithoutCancel(ctx)
	}
	return func() tea.Msg {
		work(ctx)
		return nil
	}
}

func (m *Model) emit(ev wizard.Event) {
	select {
	case m.events <- ev:
	case <-m.ctx.Done():
	}
}

func (m *Model) apiContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.deps.Config.Timeouts.APIDuration())
}

func (m *Model) login(ctx context.Context, eff wizard.Login) {
	ctx, cancel := m.apiContext(ctx)
	defer cancel()
	res, err := m.deps.Auth.Login(ctx, eff.Token)
	if err != nil {
		m.deps.Logger.Warn("registry login failed", "error", err)
	}
	m.emit(wizard.LoginFinished{Username: res.Username, Warning: res.PersistWarning, Err: err})
}

func (m *Model) writeConfig(eff wizard.WriteConfig) {
	p, ok := templates.Lookup(eff.Provider)
	if !ok {
		m.emit(wizard.ConfigWritten{Provider: eff.Provider, Err: fmt.Errorf("unknown provider %q", eff.Provider)})
		return
	}
	path, err := templates.WriteConfig(m.deps.Root, p)
	if err == nil {
		m.deps.Logger.Info("config written", "path", path, "provider", p.Key)
	}
	m.emit(wizard.ConfigWritten{Provider: eff.Provider, Err: err})
}

func (m *Model) writeEnv(eff wizard.WriteEnv) {
	p, ok := templates.Lookup(eff.Provider)
	if !ok {
		m.emit(wizard.EnvWritten{Err: fmt.Errorf("unknown provider %q", eff.Provider)})
		return
	}
	path, err := templates.WriteEnv(m.deps.Root, p, templates.EnvValues{APIKey: eff.APIKey, OpenAIKey: eff.OpenAIKey})
	if err == nil {
		m.deps.Logger.Info("env written", "path", path, "provider", p.Key)
	}
	m.emit(wizard.EnvWritten{Err: err})
}

func (m *Model) install(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, m.deps.Config.Timeouts.InstallDuration())
	defer cancel()
	res, err := installRunFn(ctx, m.deps.Logger, m.deps.Config, m.deps.Root, install.Options{
		OnStep: func(si install.StepInfo) {
			m.emit(wizard.PhaseStarted{Phase: si.Phase, Label: fmt.Sprintf("[%d/%d] %s", si.Index, si.Total, si.Desc)})
		},
		OnLine: func(l process.Line) { m.emit(wizard.OutputLine{Text: l.Text}) },
	})
	m.emit(wizard.InstallFinished{Warnings: install.Warnings(res), Err: err})
}

func (m *Model) fetchUpdates(ctx context.Context, eff wizard.FetchUpdates) {
	infos, err := m.deps.Resolver.Resolve(ctx, eff.Token)
	m.emit(wizard.UpdatesFetched{Infos: infos, Err: err})
}

// pull relays the pull output line by line and only reports completion once
// the last line is through.
func (m *Model) pull(ctx context.Context, eff wizard.PullImage) {
	pullCtx, cancel := context.WithTimeout(ctx, m.deps.Config.Timeouts.DownloadDuration())
	defer cancel()

	lines := make(chan process.Line, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for l := range lines {
			m.emit(wizard.OutputLine{Text: l.Text})
		}
	}()
	err := m.deps.Resolver.Pull(pullCtx, eff.Image, lines)
	close(lines)
	<-done

	if err != nil {
		m.emit(wizard.PullFinished{Index: eff.Index, Err: err})
		return
	}
	created, note := m.deps.Resolver.InspectLocal(ctx, eff.Image)
	m.emit(wizard.PullFinished{Index: eff.Index, LocalCreated: created, Note: note})
}

func (m *Model) selfUpdate(ctx context.Context, eff wizard.SelfUpdate) {
	res, err := m.deps.Updater.Update(ctx, eff.Release, func(p selfupdate.Progress) {
		m.emit(wizard.DownloadProgress{Message: p.Message, Percent: p.Percent})
	})
	if err != nil {
		m.emit(wizard.SelfUpdateFinished{Err: err})
		return
	}
	m.emit(wizard.SelfUpdateFinished{
		Message: fmt.Sprintf("✓ Installer %s installed. Restart required.", res.Version),
		Warning: res.Warning,
	})
}
