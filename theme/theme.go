package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	StepRest     rune // · no pulse
	StepPulse    rune // ● pulse
	StepPlayhead rune // ▶ playhead on a rest
	StepHit      rune // ◉ playhead on a pulse

	PatternOn  rune // ● gate open
	PatternOff rune // ○ gate closed

	Learn    rune // ◎ parameter waiting for a CC
	Assigned rune // ■ parameter bound to a CC
}

// New creates a theme; a nil palette uses Plasma
func New(palette *Palette) *Theme {
	if palette == nil || len(palette.Colors) == 0 {
		palette = Plasma()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			StepRest:     '·',
			StepPulse:    '●',
			StepPlayhead: '▶',
			StepHit:      '◉',

			PatternOn:  '●',
			PatternOff: '○',

			Learn:    '◎',
			Assigned: '■',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleMuted   = 0.2
	RoleFG      = 0.4
	RoleAccent  = 0.5
	RoleCursor  = 0.6
	RoleActive  = 0.7
	RoleWarning = 0.8
	RoleSuccess = 1.0
)

func (t *Theme) BG() lipgloss.Color      { return t.Color(RoleBG) }
func (t *Theme) FG() lipgloss.Color      { return t.Color(RoleFG) }
func (t *Theme) Accent() lipgloss.Color  { return t.Color(RoleAccent) }
func (t *Theme) Muted() lipgloss.Color   { return t.Color(RoleMuted) }
func (t *Theme) Active() lipgloss.Color  { return t.Color(RoleActive) }
func (t *Theme) Cursor() lipgloss.Color  { return t.Color(RoleCursor) }
func (t *Theme) Warning() lipgloss.Color { return t.Color(RoleWarning) }
func (t *Theme) Success() lipgloss.Color { return t.Color(RoleSuccess) }

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return Hex(t.Palette.Lookup(norm))
}

// Channel picks a stable color for a pattern channel
func (t *Theme) Channel(ch int) lipgloss.Color {
	return t.Color(0.3 + 0.7*float64(ch%8)/7)
}

// Hex converts c to a lipgloss color
func Hex(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
