package progress

import (
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/evermod/everctl/internal/ui/styles"
)

// State represents the current state of one transfer row
type State int

const (
	StatePending State = iota
	StateActive
	StateComplete
	StateSkipped
	StateError
)

// Icons - Nerd Font with ASCII fallback
type Icons struct {
	Check   string
	Cross   string
	Arrow   string
	Pending string
	Warning string
	Spinner string
}

var (
	// NerdFontIcons uses Nerd Font glyphs
	NerdFontIcons = Icons{
		Check:   "\uf00c",
		Cross:   "\uf00d",
		Arrow:   "\uf061",
		Pending: "\uf111",
		Warning: "\uf071",
		Spinner: "\uf110",
	}

	// ASCIIIcons uses simple ASCII characters
	ASCIIIcons = Icons{
		Check:   "+",
		Cross:   "x",
		Arrow:   "->",
		Pending: "o",
		Warning: "!",
		Spinner: "*",
	}
)

// GetIcons returns the appropriate icon set based on environment
func GetIcons() Icons {
	if os.Getenv("EVERCTL_NERD_FONTS") == "1" {
		return NerdFontIcons
	}
	return ASCIIIcons
}

// Icon styles
var (
	IconStyleCheck   = lipgloss.NewStyle().Foreground(styles.Success)
	IconStyleCross   = lipgloss.NewStyle().Foreground(styles.Error)
	IconStylePending = lipgloss.NewStyle().Foreground(styles.Muted)
	IconStyleWarning = lipgloss.NewStyle().Foreground(styles.Warning)
	IconStyleSpinner = lipgloss.NewStyle().Foreground(styles.Primary)
)

// StyledIcon returns a styled icon string for the given state
func StyledIcon(state State) string {
	icons := GetIcons()
	switch state {
	case StateComplete:
		return IconStyleCheck.Render(icons.Check)
	case StateError:
		return IconStyleCross.Render(icons.Cross)
	case StateSkipped:
		return IconStyleWarning.Render(icons.Warning)
	case StateActive:
		return IconStyleSpinner.Render(icons.Spinner)
	default:
		return IconStylePending.Render(icons.Pending)
	}
}

// RowStyle returns the appropriate text style for a row based on state
func RowStyle(state State) lipgloss.Style {
	switch state {
	case StateComplete:
		return styles.SuccessText
	case StateError:
		return styles.ErrorText
	case StateSkipped:
		return styles.WarningText
	case StateActive:
		return styles.NormalText.Bold(true)
	default:
		return styles.MutedText
	}
}
