package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// outputFormat selects how command results are rendered.
type outputFormat string

const (
	formatText outputFormat = "text"
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
)

func parseOutputFormat(s string) (outputFormat, error) {
	switch outputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", formatText, "table":
		return formatText, nil
	case formatJSON:
		return formatJSON, nil
	case formatYAML, "yml":
		return formatYAML, nil
	}
	return "", usageErrorf("unknown output format %q: use text, json or yaml", s)
}

// theme is the color scheme for text output.
type theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	Warn    lipgloss.Color
	Fail    lipgloss.Color
}

var defaultTheme = theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Warn:    lipgloss.Color("#e3b341"),
	Fail:    lipgloss.Color("#f85149"),
}

// styles holds the lipgloss styles derived from a theme.
type styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Header lipgloss.Style
	Help   lipgloss.Style
	Pass   lipgloss.Style
	Warn   lipgloss.Style
	Fail   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, t theme) styles {
	return styles{
		Title:  r.NewStyle().Bold(true).Foreground(t.Primary),
		Label:  r.NewStyle().Bold(true).Foreground(t.Primary),
		Header: r.NewStyle().Bold(true).Underline(true),
		Help:   r.NewStyle().Foreground(t.Dim),
		Pass:   r.NewStyle().Foreground(t.Primary),
		Warn:   r.NewStyle().Foreground(t.Warn),
		Fail:   r.NewStyle().Bold(true).Foreground(t.Fail),
	}
}

var style = newStyles(lipgloss.DefaultRenderer(), defaultTheme)

// useOutput binds the text styles to w, so colors are dropped when w is not
// a terminal.
func useOutput(w io.Writer) {
	style = newStyles(lipgloss.NewRenderer(w), defaultTheme)
}

// render writes v as JSON or YAML, or calls text for the text format.
func render(w io.Writer, format outputFormat, v any, text func(io.Writer) error) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return text(w)
}

// writeTable renders rows as aligned columns with a styled header row.
func writeTable(w io.Writer, headers []string, rows [][]string) error {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	line := func(cells []string, st *lipgloss.Style) string {
		var b strings.Builder
		for i, cell := range cells {
			pad := widths[i] - lipgloss.Width(cell)
			if st != nil {
				cell = st.Render(cell)
			}
			b.WriteString(cell)
			if i < len(cells)-1 {
				b.WriteString(strings.Repeat(" ", pad+2))
			}
		}
		return b.String()
	}

	if _, err := fmt.Fprintln(w, line(headers, &style.Header)); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, line(row, nil)); err != nil {
			return err
		}
	}
	return nil
}

// field prints a "label: value" line.
func field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%s %v\n", style.Label.Render(label+":"), value)
}

// orDash renders blank strings as "-".
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
