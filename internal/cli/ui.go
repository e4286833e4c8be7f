package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorCyan  = lipgloss.Color("36")
	colorAmber = lipgloss.Color("220")
	colorGray  = lipgloss.Color("245")

	styleLabel   = lipgloss.NewStyle().Foreground(colorGray)
	styleValue   = lipgloss.NewStyle().Foreground(colorCyan)
	styleWarning = lipgloss.NewStyle().Foreground(colorAmber).Bold(true)
)

const labelWidth = 11

// printField writes "label: value" with values aligned in one column.
// Styles render as plain text when w is not a terminal.
func printField(w io.Writer, label string, value any, style lipgloss.Style) {
	pad := max(labelWidth-len(label)-1, 1)
	fmt.Fprintf(w, "%s%s%s\n", styleLabel.Render(label+":"), strings.Repeat(" ", pad), style.Render(fmt.Sprint(value)))
}
