// Package render draws workflow state for the terminal.
package render

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	colorPrimary = lipgloss.Color("#2E7D32")
	colorAccent  = lipgloss.Color("#F9A825")
	colorMuted   = lipgloss.Color("#78909C")
	colorError   = lipgloss.Color("#E53935")
	colorSuccess = lipgloss.Color("#43A047")
	colorInfo    = lipgloss.Color("#1E88E5")
	colorBorder  = lipgloss.Color("#B0BEC5")
)

// BannerKind selects a banner style.
type BannerKind int

const (
	BannerInfo BannerKind = iota
	BannerSuccess
	BannerWarning
	BannerError
)

type styles struct {
	title    lipgloss.Style
	subtitle lipgloss.Style
	muted    lipgloss.Style
	strong   lipgloss.Style
	score    lipgloss.Style
	podium   lipgloss.Style
	badge    lipgloss.Style
	card     lipgloss.Style
	banners  map[BannerKind]lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	banner := func(c lipgloss.Color) lipgloss.Style {
		return r.NewStyle().
			Foreground(c).
			Bold(true).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(c).
			PaddingLeft(1)
	}

	return styles{
		title:    r.NewStyle().Foreground(colorPrimary).Bold(true),
		subtitle: r.NewStyle().Foreground(colorMuted).Italic(true),
		muted:    r.NewStyle().Foreground(colorMuted),
		strong:   r.NewStyle().Bold(true),
		score:    r.NewStyle().Foreground(colorAccent),
		podium: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1),
		badge: r.NewStyle().
			Foreground(colorInfo).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorInfo).
			Padding(0, 1),
		card: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1),
		banners: map[BannerKind]lipgloss.Style{
			BannerInfo:    banner(colorInfo),
			BannerSuccess: banner(colorSuccess),
			BannerWarning: banner(colorAccent),
			BannerError:   banner(colorError),
		},
	}
}

// Renderer writes styled output to w. Colors are dropped automatically when
// w is not a terminal.
type Renderer struct {
	w     io.Writer
	lg    *lipgloss.Renderer
	s     styles
	width int
}

// New creates a renderer for w.
func New(w io.Writer) *Renderer {
	lg := lipgloss.NewRenderer(w)
	return &Renderer{w: w, lg: lg, s: newStyles(lg), width: 72}
}

// SetWidth sets the wrapping width for paragraphs.
func (r *Renderer) SetWidth(width int) {
	if width > 20 {
		r.width = width
	}
}
