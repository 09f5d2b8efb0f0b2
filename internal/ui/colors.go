package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/song-migrations/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a small stylesheet of named [lipgloss.Style] fields.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	muted lipgloss.Style
}

func NewPalette(t, s, e, w, m string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		muted: NewEm(m),
	}
}

// Status picks the style for a transfer or playlist status.
func (p *Palette) Status(s models.TransferStatus) lipgloss.Style {
	switch s {
	case models.StatusCompleted:
		return p.ok
	case models.StatusFailed:
		return p.err
	case models.StatusInProgress:
		return p.warn
	default:
		return p.muted
	}
}

// StatusText renders s in its status color.
func StatusText(s models.TransferStatus) string {
	return styles.Status(s).Render(string(s))
}

func Title(s string) string { return styles.title.Render(s) }

func Warn(s string) string { return styles.warn.Render(s) }

func Muted(s string) string { return styles.muted.Render(s) }

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
