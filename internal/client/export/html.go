package export

import (
	"bytes"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dmitrijs2005/teadiary/internal/models"
)

var (
	mdRenderer    = goldmark.New(goldmark.WithExtensions(extension.GFM))
	htmlSanitizer = bluemonday.UGCPolicy()
)

// renderMarkdown converts tasting notes to sanitized HTML.
func renderMarkdown(src string) template.HTML {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return template.HTML(htmlSanitizer.Sanitize(template.HTMLEscapeString(src)))
	}
	return template.HTML(htmlSanitizer.SanitizeBytes(buf.Bytes()))
}

type htmlSection struct {
	Title string
	Body  template.HTML
}

type htmlRecord struct {
	Index    int
	Record   models.TastingRecord
	Stars    string
	Sections []htmlSection
}

type htmlPage struct {
	Owner      string
	ExportedAt string
	Count      int
	Records    []htmlRecord
}

var pageTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>{{.Owner}}'s tea diary</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; color: #333; }
.record { border: 1px solid #e5e7eb; border-radius: 8px; padding: 20px; margin-bottom: 20px; page-break-inside: avoid; }
.record-title { color: #10b981; font-size: 18px; font-weight: bold; }
.rating { color: #f59e0b; }
</style>
</head>
<body>
<h1>{{.Owner}}'s tea diary</h1>
<p>Exported {{.ExportedAt}} | {{.Count}} records</p>
{{range .Records}}<div class="record">
<div class="record-title">{{.Index}}. {{.Record.TeaName}}</div>
<ul>
<li>Date: {{.Record.Date}}</li>
<li>Type: {{.Record.TeaType}}</li>
<li>Origin: {{.Record.Origin}}</li>
<li>Brewing: {{.Record.BrewingMethod}}, {{.Record.Temperature}}°C, {{.Record.BrewingTime}}</li>
<li>Rating: <span class="rating">{{.Stars}}</span> ({{.Record.Rating}}/5)</li>
</ul>
{{range .Sections}}<h3>{{.Title}}</h3>
<div class="description">{{.Body}}</div>
{{end}}{{if .Record.ImageURL}}<img src="{{.Record.ImageURL}}" alt="{{.Record.TeaName}}" style="max-width: 300px">
{{end}}</div>
{{end}}</body>
</html>
`))

// WriteHTML renders a printable report of records. Notes are treated as
// Markdown.
func WriteHTML(w io.Writer, owner string, records []models.TastingRecord, now time.Time) error {
	page := htmlPage{
		Owner:      owner,
		ExportedAt: now.Format(time.DateOnly),
		Count:      len(records),
	}
	for i, r := range records {
		hr := htmlRecord{Index: i + 1, Record: r, Stars: stars(r.Rating)}
		for _, s := range []struct{ title, text string }{
			{"Appearance", r.Appearance},
			{"Aroma", r.Aroma},
			{"Taste", r.Taste},
			{"Aftertaste", r.Aftertaste},
			{"Notes", r.Notes},
		} {
			if body := renderMarkdown(s.text); body != "" {
				hr.Sections = append(hr.Sections, htmlSection{Title: s.title, Body: body})
			}
		}
		page.Records = append(page.Records, hr)
	}
	return pageTmpl.Execute(w, page)
}

func stars(rating int) string {
	rating = max(0, min(5, rating))
	return strings.Repeat("★", rating) + strings.Repeat("☆", 5-rating)
}
