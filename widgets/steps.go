package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-epg/theme"
)

// RenderSteps draws a euclid sequence as one row of symbols with the
// playhead highlighted. A playhead outside the sequence is not drawn.
func RenderSteps(th *theme.Theme, seq []bool, playhead int, color lipgloss.Color) string {
	pulse := lipgloss.NewStyle().Foreground(color)
	rest := lipgloss.NewStyle().Foreground(th.Muted())
	head := lipgloss.NewStyle().Foreground(th.Cursor()).Bold(true)

	var out strings.Builder
	for i, on := range seq {
		switch {
		case i == playhead && on:
			out.WriteString(head.Render(string(th.Symbols.StepHit)))
		case i == playhead:
			out.WriteString(head.Render(string(th.Symbols.StepPlayhead)))
		case on:
			out.WriteString(pulse.Render(string(th.Symbols.StepPulse)))
		default:
			out.WriteString(rest.Render(string(th.Symbols.StepRest)))
		}
	}
	return out.String()
}

// StepString is RenderSteps without styling
func StepString(th *theme.Theme, seq []bool, playhead int) string {
	var out strings.Builder
	for i, on := range seq {
		switch {
		case i == playhead && on:
			out.WriteRune(th.Symbols.StepHit)
		case i == playhead:
			out.WriteRune(th.Symbols.StepPlayhead)
		case on:
			out.WriteRune(th.Symbols.StepPulse)
		default:
			out.WriteRune(th.Symbols.StepRest)
		}
	}
	return out.String()
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
