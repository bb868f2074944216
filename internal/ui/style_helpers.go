package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// BgStyle paints header and log segments on a shared background. Each word
// and each gap is rendered separately; a single Render over text with
// inner styles would reset the background after the first styled run.
type BgStyle struct {
	bg    lipgloss.Color
	fill  lipgloss.Style
	space string
}

// NewBgStyle returns a BgStyle for the given color.
func NewBgStyle(color string) BgStyle {
	bg := lipgloss.Color(color)
	fill := lipgloss.NewStyle().Background(bg)
	return BgStyle{bg: bg, fill: fill, space: fill.Render(" ")}
}

// Render applies style to text on the background, gaps included.
func (b BgStyle) Render(text string, style lipgloss.Style) string {
	if text == "" {
		return ""
	}
	words := strings.Split(text, " ")
	styled := style.Background(b.bg)
	for i, w := range words {
		if w != "" {
			words[i] = styled.Render(w)
		}
	}
	return strings.Join(words, b.space)
}

// Space is one background-colored space.
func (b BgStyle) Space() string { return b.space }

// Spaces is n background-colored spaces.
func (b BgStyle) Spaces(n int) string {
	if n <= 0 {
		return ""
	}
	return b.fill.Render(strings.Repeat(" ", n))
}

// Sep renders a separator on the background.
func (b BgStyle) Sep(sep string) string { return b.fill.Render(sep) }

// Join joins rendered parts with sep.
func (b BgStyle) Join(parts []string, sep string) string {
	return strings.Join(parts, b.Sep(sep))
}

// FillLine pads rendered content with background out to width.
func (b BgStyle) FillLine(content string, width int) string {
	return b.fill.Width(width).Render(content)
}
