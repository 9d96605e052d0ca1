package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// palette for terminal output.
var (
	accentColour = lipgloss.Color("#7C3AED")
	sourceColour = lipgloss.Color("#06B6D4")
	mutedColour  = lipgloss.Color("#6C7086")
	warnColour   = lipgloss.Color("#F9E2AF")
)

// printer renders styled text when writing to a terminal and plain text otherwise.
type printer struct {
	heading lipgloss.Style
	source  lipgloss.Style
	muted   lipgloss.Style
	warn    lipgloss.Style
	styled  bool
}

func newPrinter(w io.Writer) *printer {
	p := &printer{styled: isTerminal(w)}
	if p.styled {
		p.heading = lipgloss.NewStyle().Bold(true).Foreground(accentColour)
		p.source = lipgloss.NewStyle().Foreground(sourceColour)
		p.muted = lipgloss.NewStyle().Foreground(mutedColour)
		p.warn = lipgloss.NewStyle().Foreground(warnColour)
	}
	return p
}

func (p *printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
