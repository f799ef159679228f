package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

func renderHuman(w io.Writer, doc *Document) error {
	var b strings.Builder
	multi := len(doc.Codebases) > 1

	for _, cb := range doc.Codebases {
		if multi {
			b.WriteString(fmt.Sprintf("%s\n%s\n\n", cb.Name, strings.Repeat("=", len(cb.Name))))
		}
		if len(cb.Files) == 0 {
			b.WriteString("No unreferenced declarations found.\n\n")
			continue
		}
		for _, g := range cb.Files {
			b.WriteString(g.Path + "\n")
			tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
			for _, f := range g.Findings {
				fmt.Fprintf(tw, "  %s\t%s\t%s\n", f.Position, f.Kind, f.Name)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			b.WriteString("\n")
		}
	}

	if len(doc.Codebases) == 0 && len(doc.Diagnostics) == 0 {
		b.WriteString("No unreferenced declarations found.\n\n")
	}

	if len(doc.Diagnostics) > 0 {
		b.WriteString("Warnings:\n")
		for _, d := range doc.Diagnostics {
			b.WriteString("  " + formatDiagnostic(d) + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(summaryLine(doc.Summary) + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func formatDiagnostic(d Diagnostic) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s", d.Severity, d.Code))
	if d.Codebase != "" {
		b.WriteString(" " + d.Codebase + ":")
	}
	switch {
	case d.Path != "" && d.Position != nil:
		b.WriteString(fmt.Sprintf(" %s:%s", d.Path, d.Position))
	case d.Path != "":
		b.WriteString(" " + d.Path)
	}
	if d.Name != "" {
		b.WriteString(" " + d.Name)
	}
	b.WriteString(": " + d.Message)
	return b.String()
}

func summaryLine(s Summary) string {
	line := fmt.Sprintf("%s in %s (%s analyzed, %s checked)",
		plural(s.Findings, "unreferenced declaration"),
		plural(s.Files, "file"),
		plural(s.Analyzed.Files, "file"),
		plural(s.Analyzed.Classified, "declaration"))
	if s.Baselined > 0 {
		line += fmt.Sprintf(", %d baselined", s.Baselined)
	}
	if s.Diagnostics > 0 {
		line += ", " + plural(s.Diagnostics, "warning")
	}
	return line
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
