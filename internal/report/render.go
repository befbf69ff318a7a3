package report

import (
	"embed"
	"html/template"
	"io"

	"ferret/internal/domain"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var htmlTmpl = template.Must(template.New("report.html.tmpl").Funcs(template.FuncMap{
	"sevClass": severityClass,
	"meta": func(r domain.NormalizedResult, key string) string {
		return r.Meta(key)
	},
}).ParseFS(templateFS, "templates/report.html.tmpl"))

// RenderHTML writes the styled document view of a report. Strictly a
// presentation transform over the report value; no business logic lives
// here.
func RenderHTML(w io.Writer, rep domain.ScanReport) error {
	return htmlTmpl.Execute(w, rep)
}

func severityClass(s string) string {
	switch domain.Severity(s) {
	case domain.SeverityCritical:
		return "sev-critical"
	case domain.SeverityHigh:
		return "sev-high"
	case domain.SeverityMedium:
		return "sev-medium"
	case domain.SeverityLow:
		return "sev-low"
	}
	return "sev-info"
}
