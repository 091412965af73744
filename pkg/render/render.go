// Package render handles terminal presentation: panels, tables, markdown,
// and machine-readable JSON output.
package render

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/saga-labs/saga-code/pkg/llm"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().Bold(true)

	warnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("11")).
			Padding(0, 1)

	errStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("9")).
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().Faint(true)
)

// Panel renders a titled box around body.
func Panel(title, body string) string {
	box := panelStyle.Render(strings.TrimRight(body, "\n"))
	if title == "" {
		return box
	}
	return titleStyle.Render(title) + "\n" + box
}

// PrintPanel writes a titled panel to stdout.
func PrintPanel(title, body string) {
	fmt.Println(Panel(title, body))
}

// PrintWarningPanel writes a yellow-bordered panel to the given stream.
func PrintWarningPanel(w *os.File, body string) {
	fmt.Fprintln(w, titleStyle.Render("Warning")+"\n"+warnStyle.Render(strings.TrimRight(body, "\n")))
}

// PrintErrorPanel writes a red-bordered error panel to stderr.
func PrintErrorPanel(message string) {
	fmt.Fprintln(os.Stderr, titleStyle.Render("Error")+"\n"+errStyle.Render(strings.TrimRight(message, "\n")))
}

// PrintDimPanel writes a faint panel, used for debug reasoning output.
func PrintDimPanel(title, body string) {
	fmt.Println(titleStyle.Render(title) + "\n" + dimStyle.Render(panelStyle.Render(strings.TrimRight(body, "\n"))))
}

// Markdown renders markdown for the terminal; on renderer failure the raw
// text is returned unchanged.
func Markdown(text string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return text
	}
	out, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// PrintJSON writes indented JSON to stdout.
func PrintJSON(value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode JSON output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// ModelsTable renders discovery results as a bordered table.
func ModelsTable(results []llm.ModelResult) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("MODEL", "METHOD", "STATUS", "DETAILS")
	for _, result := range results {
		t.Row(result.ModelID, result.DiscoveryMethod, result.Status, result.Details)
	}
	return t.Render()
}
