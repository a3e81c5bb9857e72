package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Padding(0, 1).
		MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#3B82F6"))

	successStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F59E0B"))

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444")).
		Bold(true)

	dimStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))
)

func printTitle(text string) {
	fmt.Println(titleStyle.Render(text))
}

func printHeader(text string) {
	fmt.Println(headerStyle.Render(text))
}

func printSuccess(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

func printWarn(format string, args ...interface{}) {
	fmt.Println(warnStyle.Render(fmt.Sprintf(format, args...)))
}

func printError(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render(fmt.Sprintf(format, args...)))
}

func printDim(format string, args ...interface{}) {
	fmt.Println(dimStyle.Render(fmt.Sprintf(format, args...)))
}
