package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-epg/midi"
	"go-epg/pattern"
	"go-epg/remote"
	"go-epg/sequencer"
	"go-epg/theme"
	"go-epg/widgets"
)

// paramKeys is the order the parameter cursor walks through
var paramKeys = []string{sequencer.ParamSteps, sequencer.ParamPulses, sequencer.ParamRotation}

type Model struct {
	Manager  *sequencer.Manager
	Watcher  *midi.PortWatcher // may be nil
	Theme    *theme.Theme
	cursor   int // index into paramKeys
	quitting bool
}

type UpdateMsg struct{}

func NewModel(manager *sequencer.Manager, watcher *midi.PortWatcher, th *theme.Theme) Model {
	if th == nil {
		th = theme.New(nil)
	}
	return Model{
		Manager: manager,
		Watcher: watcher,
		Theme:   th,
	}
}

func ListenForUpdates(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		<-manager.UpdateChan
		return UpdateMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return ListenForUpdates(m.Manager)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case UpdateMsg:
		return m, ListenForUpdates(m.Manager)
	}
	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	param := paramKeys[m.cursor]
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		m.Manager.Do((*sequencer.Session).Stop)
		return m, tea.Quit

	case "p", " ":
		m.Manager.Do(func(s *sequencer.Session) {
			if s.Playing() {
				s.Stop()
			} else {
				s.Play()
			}
		})

	case "+", "=":
		m.Manager.Do(func(s *sequencer.Session) { s.SetBPM(s.Clock().BPM + 5) })

	case "-", "_":
		m.Manager.Do(func(s *sequencer.Session) { s.SetBPM(s.Clock().BPM - 5) })

	case "n":
		m.Manager.Do(func(s *sequencer.Session) { s.CreatePattern(pattern.Spec{}) })

	case "x", "backspace":
		m.Manager.Do((*sequencer.Session).DeleteSelected)

	case "tab", "j":
		m.Manager.Do(func(s *sequencer.Session) { s.SelectNext(1) })

	case "shift+tab", "k":
		m.Manager.Do(func(s *sequencer.Session) { s.SelectNext(-1) })

	case "left", "h":
		m.cursor = (m.cursor + len(paramKeys) - 1) % len(paramKeys)

	case "right", "l":
		m.cursor = (m.cursor + 1) % len(paramKeys)

	case "up":
		m.Manager.Do(func(s *sequencer.Session) { s.AdjustSelected(param, 1) })

	case "down":
		m.Manager.Do(func(s *sequencer.Session) { s.AdjustSelected(param, -1) })

	case "L":
		m.Manager.Do((*sequencer.Session).ToggleLearn)

	case "enter":
		m.Manager.Do(func(s *sequencer.Session) {
			if s.Router().Learning() {
				s.LearnSelected(param)
			}
		})

	case "u":
		m.Manager.Do(func(s *sequencer.Session) { s.UnassignSelected(param) })
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	st := m.Manager.State()
	th := m.Theme

	headerStyle := lipgloss.NewStyle().Foreground(th.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	warnStyle := lipgloss.NewStyle().Foreground(th.Warning())
	learnStyle := lipgloss.NewStyle().Foreground(th.Success()).Bold(true)

	playState := "STOP"
	if st.Playing {
		playState = "PLAY"
	}
	header := headerStyle.Render(fmt.Sprintf("go-epg  %s  %3dbpm  tick:%d  %s", playState, st.BPM, st.Tick, st.Name))
	if st.Learning {
		header += "  " + learnStyle.Render("LEARN")
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")

	if len(st.Patterns) == 0 {
		out.WriteString(dimStyle.Render("  no patterns - press n to add one"))
		out.WriteString("\n")
	}
	for i, p := range st.Patterns {
		out.WriteString(m.patternLine(i, p))
		out.WriteString("\n")
	}

	if st.Selected >= 0 && st.Selected < len(st.Patterns) {
		out.WriteString("\n")
		out.WriteString(m.paramLine(st.Patterns[st.Selected].Params, st.Learning))
		out.WriteString("\n")
	}

	if len(st.Assignments) > 0 {
		out.WriteString("\n")
		out.WriteString(dimStyle.Render("CC assignments"))
		out.WriteString("\n")
		for _, a := range st.Assignments {
			out.WriteString(fmt.Sprintf("  ch%-2d cc%-3d  %s.%s\n", a.Channel, a.Controller, a.Pattern, a.Param))
		}
	}

	out.WriteString("\n")
	status := fmt.Sprintf("cc: %d applied  %d unmatched  %d ignored", st.Stats.Dispatched, st.Stats.Unmatched, st.Stats.Ignored)
	if m.Watcher != nil {
		if ports := m.Watcher.Connected(); len(ports) > 0 {
			status += "  in: " + strings.Join(ports, ", ")
		}
	}
	if !st.LastSave.IsZero() {
		status += "  saved " + st.LastSave.Format("15:04:05")
	}
	out.WriteString(dimStyle.Render(status))
	if st.Err != nil {
		out.WriteString("\n")
		out.WriteString(warnStyle.Render(st.Err.Error()))
	}

	out.WriteString("\n\n")
	out.WriteString(dimStyle.Render("p:play  +/-:tempo  n:new  x:delete  tab:select  ←→:param  ↑↓:adjust  L:learn  enter:bind  u:unbind  q:quit"))
	return out.String()
}

func (m Model) patternLine(i int, p sequencer.PatternState) string {
	th := m.Theme
	gate := th.Symbols.PatternOff
	if p.IsOn {
		gate = th.Symbols.PatternOn
	}
	name := p.Name
	if name == "" {
		name = fmt.Sprintf("#%d", i+1)
	}
	marker := " "
	if p.Selected {
		marker = ">"
	}
	color := th.Channel(p.Channel)
	label := lipgloss.NewStyle().Foreground(color).Render(fmt.Sprintf("%-8s", name))
	settings := fmt.Sprintf("E(%2d,%2d) r%-2d ch%-2d", p.Steps, p.Pulses, p.Rotation, p.Channel+1)
	return fmt.Sprintf("%s %c %s %s  %s", marker, gate, label, settings, widgets.RenderSteps(th, p.Euclid, p.Step, color))
}

func (m Model) paramLine(params []sequencer.ParamState, learning bool) string {
	th := m.Theme
	cursorStyle := lipgloss.NewStyle().Foreground(th.Cursor()).Bold(true)
	var parts []string
	for _, p := range params {
		text := fmt.Sprintf("%s:%d", p.Label, p.Value)
		switch {
		case learning && p.Remote == remote.StateSelected:
			text = string(th.Symbols.Learn) + text
		case !p.Binding.IsZero():
			text = fmt.Sprintf("%c%s [%d/%d]", th.Symbols.Assigned, text, p.Binding.Channel, p.Binding.Controller)
		}
		if p.Key == paramKeys[m.cursor] {
			text = cursorStyle.Render(text)
		}
		parts = append(parts, text)
	}
	return "  " + strings.Join(parts, "   ")
}
