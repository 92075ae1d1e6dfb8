package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"

	"github.com/skip2/go-qrcode"
)

const documentTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.M.Title}}</title>
<style>
body{font-family:Helvetica,Arial,sans-serif;color:#1e1e1e;margin:0}
header{background:{{.Primary}};color:#fff;padding:24px 32px}
header img{max-height:48px;vertical-align:middle;margin-right:12px}
main{padding:24px 32px}
h2{color:{{.Primary}}}
.layout-modern header{border-bottom:6px solid {{.Secondary}}}
.layout-gallery .section h2{background:{{.Secondary}};color:#1e1e1e;padding:6px 10px}
.summary{background:{{.Secondary}};padding:8px 12px}
.label{display:inline-block;min-width:110px;font-size:.85em;color:#555}
table.pricing td{padding:6px 12px;border-bottom:1px solid {{.Secondary}}}
footer{font-size:.8em;color:#6e6e6e;text-align:center;padding:16px}
</style>
</head>
<body class="layout-{{.M.Layout}}">
<header>
{{- if .M.LogoURL}}<img src="{{.M.LogoURL}}" alt="{{.M.Brand}}">{{end}}<strong>{{.M.Brand}}</strong>
</header>
<main>
<h1>{{.M.Title}}</h1>
{{- if .M.Subtitle}}<p>{{.M.Subtitle}}</p>{{end}}
{{- if .M.Summary}}
<div class="summary"><strong>At a glance</strong><ul>{{range .M.Summary}}<li>{{.}}</li>{{end}}</ul></div>
{{- end}}
{{- range .M.Sections}}
<section class="section">
<h2>{{.Heading}}</h2>
{{- if .Caption}}<p><em>{{.Caption}}</em></p>{{end}}
{{- if .ImageURL}}<img src="{{.ImageURL}}" alt="{{.Heading}}" style="max-width:100%">{{end}}
{{- range .Blocks}}
<p>{{if .Label}}<span class="label">{{.Label}}</span>{{end}}{{if .Title}}<strong>{{.Title}}</strong>{{end}}{{if .Detail}}<br>{{.Detail}}{{end}}</p>
{{- end}}
</section>
{{- end}}
{{- if .M.Notes}}
<h2>Good to know</h2>
{{- range .M.Notes}}
<section class="note"><h3>{{.Heading}}</h3>{{range .Blocks}}<p>{{.Detail}}</p>{{end}}</section>
{{- end}}
{{- end}}
{{- if .M.Extensions}}
<h2>Optional extensions</h2>
{{- range .M.Extensions}}
<p><span class="label">{{.Label}}</span><strong>{{.Title}}</strong>{{if .Detail}}<br>{{.Detail}}{{end}}</p>
{{- end}}
{{- end}}
<table class="pricing">
{{- range .M.Pricing}}
<tr><td>{{.Label}}</td><td>{{if .Strong}}<strong>{{.Value}}</strong>{{else}}{{.Value}}{{end}}</td></tr>
{{- end}}
</table>
{{- if .M.PortalURL}}
<p class="portal"><img src="{{.QR}}" alt="Portal QR code" width="128" height="128"><br><a href="{{.M.PortalURL}}">View and approve online</a></p>
{{- end}}
</main>
<footer>{{if .M.Footer}}{{.M.Footer}}<br>{{end}}{{.M.PoweredBy}}</footer>
</body>
</html>
`

type htmlSerializer struct {
	tmpl *template.Template
}

func newHTMLSerializer() htmlSerializer {
	return htmlSerializer{tmpl: template.Must(template.New("document").Parse(documentTemplate))}
}

func (htmlSerializer) ContentType() string { return "text/html; charset=utf-8" }
func (htmlSerializer) Extension() string   { return "html" }

type htmlView struct {
	M         Model
	Primary   template.CSS
	Secondary template.CSS
	QR        template.URL
}

func (s htmlSerializer) Serialize(m Model) ([]byte, error) {
	// palette values are validated hex colours by the time they get here
	view := htmlView{
		M:         m,
		Primary:   template.CSS(m.Palette.Primary),
		Secondary: template.CSS(m.Palette.Secondary),
	}
	if m.PortalURL != "" {
		png, err := qrcode.Encode(m.PortalURL, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("failed to encode portal qr: %w", err)
		}
		view.QR = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
