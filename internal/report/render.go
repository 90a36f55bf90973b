// Package report composes the per-run artifact bundle.
package report

import (
	"bytes"
	"html/template"
)

// Inputs are the values available to the report template.
type Inputs struct {
	Query      string
	Mode       string
	Highlights []string
	Sources    []string
}

// Renderer turns report inputs into document bytes.
type Renderer interface {
	Render(in Inputs) ([]byte, error)
}

// PDFPlaceholderPrefix marks documents rendered without a PDF engine.
const PDFPlaceholderPrefix = "PDF placeholder for offline mode.\n\n"

var briefTemplate = template.Must(template.New("brief").Parse(`<html>
<head>
  <style>
    body { font-family: sans-serif; margin: 2rem; }
    h1 { color: #1b4d89; }
  </style>
</head>
<body>
  <h1>TerraRisk Mitigation Brief</h1>
  <p><strong>Query:</strong> {{ .Query }}</p>
  <p><strong>Mode:</strong> {{ .Mode }}</p>
  <h2>Highlights</h2>
  <ul>
  {{- range .Highlights }}
    <li>{{ . }}</li>
  {{- end }}
  </ul>
  <h2>Data Sources</h2>
  <ul>
  {{- range .Sources }}
    <li>{{ . }}</li>
  {{- end }}
  </ul>
  <footer>
    <p>Personal R&amp;D project. Provenance stitched via Action Credentials.</p>
  </footer>
</body>
</html>
`))

// HTMLRenderer renders the mitigation brief as HTML behind the offline PDF
// placeholder line.
type HTMLRenderer struct {
	tmpl *template.Template
}

func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{tmpl: briefTemplate}
}

func (r *HTMLRenderer) Render(in Inputs) ([]byte, error) {
	tmpl := briefTemplate
	if r != nil && r.tmpl != nil {
		tmpl = r.tmpl
	}
	var buf bytes.Buffer
	buf.WriteString(PDFPlaceholderPrefix)
	if err := tmpl.Execute(&buf, in); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
