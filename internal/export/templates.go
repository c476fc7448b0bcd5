package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

// SafeHTML is a template function that marks a string as safe HTML
func SafeHTML(s interface{}) template.HTML {
	switch v := s.(type) {
	case string:
		return template.HTML(v)
	case template.HTML:
		return v
	default:
		return template.HTML("")
	}
}

var postTemplate = template.Must(template.New("post").Funcs(template.FuncMap{
	"lower": strings.ToLower,
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
	"safeHTML": SafeHTML,
}).Parse(postTemplateHTML))

// TemplateData holds data for post template rendering
type TemplateData struct {
	Title       string
	ContentHTML template.HTML
	Author      string
	BrandName   string
	UpdatedAt   time.Time
	Comments    []TemplateComment
}

// TemplateComment holds comment data for the template
type TemplateComment struct {
	Author        string
	Body          string
	IsAIGenerated bool
}

// RenderPostHTML renders the post template with provided data
func RenderPostHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := postTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const postTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #6c3cc9; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .comment { background: #f5f5f5; padding: 1rem; margin: 1rem 0; border-left: 3px solid #6c3cc9; }
    .comment .author { font-weight: bold; }
    .ai-badge { color: #6c3cc9; font-size: 0.8em; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{if .BrandName}}{{.BrandName}} | {{end}}{{.Author}} | {{.UpdatedAt.Format "Jan 2, 2006"}}</div>
  <div>{{.ContentHTML | safeHTML}}</div>
  {{if .Comments}}
  <h2>Comments</h2>
  {{range .Comments}}
  <div class="comment">
    <span class="author">{{.Author}}</span>{{if .IsAIGenerated}} <span class="ai-badge">AI persona</span>{{end}}
    <p>{{.Body}}</p>
  </div>
  {{end}}
  {{end}}
</body>
</html>`
