package report

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Terminal styles shared by the reporters. Lipgloss degrades colors to what
// the terminal supports.
var (
	// StyleHeader marks section headers and file locations.
	StyleHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	// StyleError marks failures.
	StyleError = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	// StyleWarn marks unmatched tokens and warnings.
	StyleWarn = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	// StyleOK marks success lines.
	StyleOK = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	// StyleDim is used for hints, layers and parents.
	StyleDim = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// RenderStyle applies style when colors are enabled.
func RenderStyle(style lipgloss.Style, text string, useColors bool) string {
	if !useColors {
		return text
	}
	return style.Render(text)
}

// UseColors decides whether output to f should be colored. An explicit
// force wins, then NO_COLOR, FORCE_COLOR and GitHub Actions, then TTY
// detection.
func UseColors(force bool, f *os.File) bool {
	switch {
	case force:
		return true
	case os.Getenv("NO_COLOR") != "":
		return false
	case os.Getenv("FORCE_COLOR") != "", os.Getenv("GITHUB_ACTIONS") == "true":
		return true
	case f == nil:
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
