package theme

import (
	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	Held    rune // ● key sounding
	Idle    rune // · key silent
	Control rune // ◆ CC button marker
	Output  rune // ▶ selected output in the picker
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = DefaultPalette()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Held:    '●',
			Idle:    '·',
			Control: '◆',
			Output:  '▶',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG       = 0.0
	RoleSurface  = 0.1
	RoleMuted    = 0.2
	RoleFG       = 0.4
	RoleWhiteKey = 0.5
	RoleAccent   = 0.6
	RoleActive   = 0.7
	RoleWarning  = 0.9
	RoleSuccess  = 1.0
)

// Style helpers

func (t *Theme) BG() lipgloss.Color      { return t.Color(RoleBG) }
func (t *Theme) Surface() lipgloss.Color { return t.Color(RoleSurface) }
func (t *Theme) FG() lipgloss.Color      { return t.Color(RoleFG) }
func (t *Theme) Accent() lipgloss.Color  { return t.Color(RoleAccent) }
func (t *Theme) Muted() lipgloss.Color   { return t.Color(RoleMuted) }
func (t *Theme) Active() lipgloss.Color  { return t.Color(RoleActive) }
func (t *Theme) Warning() lipgloss.Color { return t.Color(RoleWarning) }
func (t *Theme) Success() lipgloss.Color { return t.Color(RoleSuccess) }

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return lipgloss.Color(t.Palette.Lookup(norm).Hex())
}

// RGB returns raw RGB for any normalized value
func (t *Theme) RGB(norm float64) RGB {
	return t.Palette.Lookup(norm)
}

// KeyKind selects how a key face is painted.
type KeyKind int

const (
	KindWhite KeyKind = iota
	KindBlack
	KindTop
	KindButton
)

// KeyStyle returns the style for a key face. A pressed key is its resting
// color pulled most of the way toward the active role.
func (t *Theme) KeyStyle(kind KeyKind, pressed bool) lipgloss.Style {
	var bg, fg RGB
	switch kind {
	case KindWhite:
		bg, fg = t.RGB(RoleWhiteKey), t.RGB(RoleBG)
	case KindBlack:
		bg, fg = t.RGB(RoleSurface), t.RGB(RoleFG)
	case KindTop:
		bg, fg = t.RGB(RoleMuted), t.RGB(RoleWhiteKey)
	default:
		bg, fg = Blend(t.RGB(RoleMuted), t.RGB(RoleAccent), 0.3), t.RGB(RoleWhiteKey)
	}
	if pressed {
		bg = Blend(bg, t.RGB(RoleActive), 0.8)
		fg = t.RGB(RoleBG)
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color(bg.Hex())).
		Foreground(lipgloss.Color(fg.Hex()))
}
