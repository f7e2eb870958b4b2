package results

import (
	"bytes"
	"fmt"
	"html/template"
)

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
table { border-collapse: collapse; font-family: monospace; }
th, td { border: 1px solid #ccc; padding: 2px 8px; text-align: right; }
td:first-child { text-align: left; }
</style>
</head>
<body>
<table>
<tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr>
{{- range .Rows}}
<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
</table>
</body>
</html>
`

type htmlData struct {
	Title  string
	Header []string
	Rows   [][]string
}

// HTMLFormatter renders the results table as an HTML document.
type HTMLFormatter struct {
	template *template.Template
	Title    string
}

// NewHTMLFormatter creates a new HTML formatter.
func NewHTMLFormatter() (*HTMLFormatter, error) {
	tmpl, err := template.New("results").Parse(htmlTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML template: %w", err)
	}
	return &HTMLFormatter{template: tmpl, Title: "Page results"}, nil
}

// Format implements Formatter.
func (f *HTMLFormatter) Format(r *Results) (string, error) {
	header, rows := table(r)
	if len(rows) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, htmlData{Title: f.Title, Header: header, Rows: rows}); err != nil {
		return "", fmt.Errorf("failed to execute HTML template: %w", err)
	}
	return buf.String(), nil
}
