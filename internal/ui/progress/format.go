package progress

import (
	"fmt"

	"github.com/evermod/everctl/internal/ui/styles"
)

// Plain printers for --no-progress mode and simple command output.

// PrintStep prints a step with the appropriate icon and styling
func PrintStep(state State, message string) {
	icon := StyledIcon(state)
	textStyle := RowStyle(state)
	fmt.Printf("  %s %s\n", icon, textStyle.Render(message))
}

// PrintComplete prints a completed step
func PrintComplete(message string) {
	PrintStep(StateComplete, message)
}

// PrintError prints an error step
func PrintError(message string) {
	PrintStep(StateError, message)
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	icons := GetIcons()
	icon := IconStyleWarning.Render(icons.Warning)
	fmt.Printf("  %s %s\n", icon, styles.WarningText.Render(message))
}

// PrintTitle prints a title/header
func PrintTitle(title string) {
	style := styles.NormalText.Bold(true)
	fmt.Printf("%s\n\n", style.Render(title))
}

// PrintDetail prints an indented detail line
func PrintDetail(detail string) {
	fmt.Printf("      %s\n", styles.MutedText.Render(detail))
}

// PrintSummary prints a summary line with count
func PrintSummary(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	fmt.Printf("\n  %s\n", styles.MutedText.Render(message))
}

// PrintNewline prints an empty line
func PrintNewline() {
	fmt.Println()
}

// FormatProgressLine formats a line like "Downloading 3/12: SpringCollab2020"
func FormatProgressLine(action string, current, total int, name string) string {
	icons := GetIcons()
	icon := IconStyleSpinner.Render(icons.Spinner)
	count := styles.MutedText.Render(fmt.Sprintf("%d/%d", current, total))
	return fmt.Sprintf("  %s %s %s: %s", icon, action, count, styles.NormalText.Bold(true).Render(name))
}
