package tui

import (
	"github.com/gdamore/tcell/v2"

	"tunnelwatch/internal/client/view"
)

type palette struct {
	bg     tcell.Color
	fg     tcell.Color
	border tcell.Color
	accent tcell.Color
	detail tcell.Style
	muted  tcell.Style
	ok     tcell.Color
	redir  tcell.Color
	client tcell.Color
	server tcell.Color
}

var (
	darkPalette = palette{
		bg:     tcell.ColorBlack,
		fg:     tcell.ColorWhite,
		border: tcell.ColorGray,
		accent: tcell.ColorHotPink,
		detail: tcell.StyleDefault.Foreground(tcell.ColorSilver),
		muted:  tcell.StyleDefault.Foreground(tcell.ColorGray),
		ok:     tcell.ColorGreen,
		redir:  tcell.ColorDarkCyan,
		client: tcell.ColorYellow,
		server: tcell.ColorRed,
	}
	lightPalette = palette{
		bg:     tcell.ColorWhite,
		fg:     tcell.ColorBlack,
		border: tcell.ColorDarkGray,
		accent: tcell.ColorDarkMagenta,
		detail: tcell.StyleDefault.Foreground(tcell.ColorDimGray),
		muted:  tcell.StyleDefault.Foreground(tcell.ColorDarkGray),
		ok:     tcell.ColorDarkGreen,
		redir:  tcell.ColorTeal,
		client: tcell.ColorOlive,
		server: tcell.ColorMaroon,
	}
)

func paletteFor(t view.Theme) palette {
	if t == view.ThemeLight {
		return lightPalette
	}
	return darkPalette
}

func (p palette) statusStyle(code int) tcell.Style {
	st := tcell.StyleDefault.Background(p.bg)
	switch {
	case code >= 500:
		return st.Foreground(p.server)
	case code >= 400:
		return st.Foreground(p.client)
	case code >= 300:
		return st.Foreground(p.redir)
	case code >= 200:
		return st.Foreground(p.ok)
	default:
		return st.Foreground(p.fg)
	}
}
