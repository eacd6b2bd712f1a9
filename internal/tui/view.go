package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Bibi40k/nqrust-installer/internal/updates"
	"github.com/Bibi40k/nqrust-installer/internal/wizard"
)

const visibleLogLines = 12

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	subtitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	spinnerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	inputStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	activeInput   = inputStyle.BorderForeground(lipgloss.Color("212"))
	logStyle      = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1)
)

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("NQRust Analytics Installer"))
	b.WriteString("\n\n")

	switch st := m.machine.State().(type) {
	case wizard.RegistrySetup:
		m.viewRegistry(&b)
	case wizard.Confirmation:
		m.viewConfirmation(&b)
	case wizard.ConfigSelection:
		m.viewConfigSelection(&b)
	case wizard.EnvSetup:
		m.viewEnv(&b)
	case wizard.Installing:
		m.viewProgress(&b, "Installing", m.machine.Progress().Percent)
	case wizard.UpdateList:
		m.viewUpdates(&b)
	case wizard.UpdatePulling:
		pct := m.machine.DownloadPercent()
		if pct < 0 {
			pct = m.machine.Progress().Percent
		}
		m.viewProgress(&b, "Updating", pct)
	case wizard.Success:
		b.WriteString(okStyle.Render("Installation complete."))
		b.WriteString("\n\n")
		m.viewLogs(&b)
		b.WriteString(mutedStyle.Render("Open http://localhost:3000 to get started. Ctrl+C to exit."))
	case wizard.Error:
		b.WriteString(errorStyle.Render("✗ " + st.Message))
		b.WriteString("\n\n")
		m.viewLogs(&b)
		b.WriteString(mutedStyle.Render("Ctrl+C to exit. Details are in the installer log."))
	}

	if m.machine.Stopping() {
		b.WriteString("\n" + warnStyle.Render("Stopping..."))
	}
	return b.String() + "\n"
}

func (m *Model) viewRegistry(b *strings.Builder) {
	f := m.machine.Registry()
	b.WriteString("Registry access\n")
	b.WriteString(subtitleStyle.Render("Enter a GitHub personal access token with read:packages scope."))
	b.WriteString("\n\n")

	masked := strings.Repeat("•", len([]rune(f.Token)))
	if f.Editing {
		masked += "▌"
	}
	box := inputStyle
	if f.Field == 0 {
		box = activeInput
	}
	b.WriteString(box.Render(fmt.Sprintf("Token: %s", masked)))
	b.WriteString("\n")
	b.WriteString(menuLine("[ Save & Login ]", f.Field == 1))
	b.WriteString("\n")

	if f.Status != "" {
		b.WriteString("\n" + m.statusLine(f.Status) + "\n")
	}
	b.WriteString("\n" + mutedStyle.Render("↑/↓ move • Enter edit/submit • Ctrl+S submit • Esc skip"))
}

func (m *Model) viewConfirmation(b *strings.Builder) {
	p := m.machine.Prereqs()
	b.WriteString(checkLine("Registry token", p.Credential))
	b.WriteString(checkLine("config.yaml", p.Config))
	b.WriteString(checkLine(".env", p.Env))
	b.WriteString("\n")
	if n := m.machine.Notice(); n != "" {
		b.WriteString(okStyle.Render(n) + "\n\n")
	}
	for _, o := range m.machine.Menu() {
		b.WriteString(menuLine(o.String(), o == m.machine.Selected()))
		b.WriteString("\n")
	}
	b.WriteString("\n" + mutedStyle.Render("↑/↓ move • Enter select • q quit"))
}

func (m *Model) viewConfigSelection(b *strings.Builder) {
	b.WriteString("Select an LLM provider\n\n")
	for i, p := range m.machine.Providers() {
		line := fmt.Sprintf("%-32s %s", p.Name, mutedStyle.Render(p.Description))
		b.WriteString(menuLine(line, i == m.machine.ConfigIndex()))
		b.WriteString("\n")
	}
	if m.machine.Busy() {
		b.WriteString("\n" + m.spinner.View() + " Writing config.yaml...\n")
	}
	b.WriteString("\n" + mutedStyle.Render("↑/↓ move • Enter generate • Esc back"))
}

func (m *Model) viewEnv(b *strings.Builder) {
	f := m.machine.Env()
	b.WriteString(fmt.Sprintf("Environment for %s\n\n", f.Provider.Name))

	fields := []struct{ label, value string }{
		{f.Provider.KeyLabel + " API Key", f.APIKey},
		{"OpenAI API Key (embeddings)", f.OpenAIKey},
	}
	n := f.Provider.Fields()
	if n == 0 {
		b.WriteString(subtitleStyle.Render("This provider runs locally; no API key is needed."))
		b.WriteString("\n")
	}
	for i := 0; i < n; i++ {
		masked := strings.Repeat("•", len([]rune(fields[i].value)))
		if f.Editing && f.Field == i {
			masked += "▌"
		}
		box := inputStyle
		if f.Field == i {
			box = activeInput
		}
		b.WriteString(box.Render(fmt.Sprintf("%s: %s", fields[i].label, masked)))
		b.WriteString("\n")
	}
	if f.Error != "" {
		b.WriteString("\n" + errorStyle.Render(f.Error) + "\n")
	}
	b.WriteString("\n" + mutedStyle.Render("↑/↓ move • Enter edit • Ctrl+S save • Esc back"))
}

func (m *Model) viewProgress(b *strings.Builder, label string, pct float64) {
	tr := m.machine.Progress()
	head := fmt.Sprintf("%s %s", m.spinner.View(), label)
	if tr.Current != "" {
		head += " " + mutedStyle.Render(tr.Current)
	}
	if tr.Total > 0 && tr.Completed > 0 {
		head += mutedStyle.Render(fmt.Sprintf(" (%d/%d services)", tr.Completed, tr.Total))
	}
	b.WriteString(head + "\n")
	if pct >= 0 {
		b.WriteString(m.bar.ViewAs(pct / 100))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	m.viewLogs(b)
}

func (m *Model) viewLogs(b *strings.Builder) {
	lines := m.machine.Logs()
	if len(lines) == 0 {
		return
	}
	if len(lines) > visibleLogLines {
		lines = lines[len(lines)-visibleLogLines:]
	}
	b.WriteString(logStyle.Render(strings.Join(lines, "\n")))
	b.WriteString("\n")
}

func (m *Model) viewUpdates(b *strings.Builder) {
	b.WriteString("Updates\n\n")
	infos := m.machine.Updates()
	if m.machine.Busy() {
		b.WriteString(m.spinner.View() + " Checking for updates...\n")
	}
	for i, info := range infos {
		b.WriteString(menuLine(updateLine(info), i == m.machine.UpdateIndex()))
		b.WriteString("\n")
		if info.Status != "" {
			b.WriteString("    " + warnStyle.Render(info.Status) + "\n")
		}
	}
	if s := m.machine.UpdateStatus(); s != "" && !m.machine.Busy() {
		b.WriteString("\n" + m.statusLine(s) + "\n")
	}
	b.WriteString("\n" + mutedStyle.Render("↑/↓ move • Enter/p pull • r refresh • Esc back"))
}

func updateLine(info updates.Info) string {
	mark := okStyle.Render("✓")
	if info.HasUpdate() {
		mark = warnStyle.Render("↑")
	}
	detail := info.CurrentTag
	if info.IsInstaller() {
		detail = fmt.Sprintf("%s → %s", info.CurrentTag, info.Installer.Tag)
	} else if info.LatestRelease != "" {
		detail = fmt.Sprintf("%s (latest release %s)", info.CurrentTag, info.LatestRelease)
	}
	return fmt.Sprintf("%s %-24s %s", mark, info.Name, mutedStyle.Render(detail))
}

func (m *Model) statusLine(s string) string {
	if m.machine.Busy() {
		return m.spinner.View() + " " + s
	}
	switch {
	case strings.HasPrefix(s, "✓"):
		return okStyle.Render(s)
	case strings.Contains(strings.ToLower(s), "failed"), strings.Contains(s, "required"):
		return errorStyle.Render(s)
	}
	return subtitleStyle.Render(s)
}

func menuLine(s string, selected bool) string {
	if selected {
		return selectedStyle.Render("❯ " + s)
	}
	return "  " + s
}

func checkLine(label string, ok bool) string {
	if ok {
		return okStyle.Render("✓ ") + label + "\n"
	}
	return warnStyle.Render("○ ") + label + mutedStyle.Render(" (missing)") + "\n"
}
