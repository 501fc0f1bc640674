package handlers

import (
	"html/template"
	"net/http"
)

const swaggerUIVersion = "5.10.0"

// docsLink is one entry of the navigation bar above the API reference
type docsLink struct {
	Label string
	Href  string
}

type docsPage struct {
	Title     string
	SpecURL   string
	UIVersion string
	Links     []docsLink
}

var apiDocs = docsPage{
	Title:     "World Energy Dashboard API",
	SpecURL:   "/api/docs/openapi.json",
	UIVersion: swaggerUIVersion,
	Links: []docsLink{
		{Label: "Dashboard", Href: "/dashboard"},
		{Label: "OpenAPI JSON", Href: "/api/docs/openapi.json"},
		{Label: "Health", Href: "/health"},
		{Label: "Prometheus", Href: "/metrics"},
	},
}

var docsTemplate = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@{{.UIVersion}}/swagger-ui.css">
<style>
body { margin: 0; font-family: sans-serif; }
nav { display: flex; gap: 1.5em; align-items: baseline; padding: 0.8em 1.5em; background: #31688e; color: #fff; }
nav h1 { margin: 0; font-size: 1.1em; }
nav a { color: #fde725; text-decoration: none; }
.ws-note { padding: 0.6em 1.5em; background: #f4f4f4; font-size: 0.9em; }
</style>
</head>
<body>
<nav>
<h1>{{.Title}}</h1>
{{range .Links}}<a href="{{.Href}}">{{.Label}}</a>
{{end}}</nav>
<p class="ws-note">The live dashboard session runs over the <code>/ws</code> websocket; each message is a JSON action such as <code>{"action":"select_countries","countries":["India"]}</code>.</p>
<div id="api-reference"></div>
<script src="https://unpkg.com/swagger-ui-dist@{{.UIVersion}}/swagger-ui-bundle.js"></script>
<script>
window.addEventListener("load", function () {
  window.ui = SwaggerUIBundle({
    url: "{{.SpecURL}}",
    dom_id: "#api-reference",
    layout: "BaseLayout",
    docExpansion: "list",
    defaultModelsExpandDepth: 0,
    displayRequestDuration: true,
    tryItOutEnabled: true
  });
});
</script>
</body>
</html>`))

// SwaggerUI serves the API reference with links to the dashboard's other surfaces
func SwaggerUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := docsTemplate.Execute(w, apiDocs); err != nil {
		http.Error(w, "failed to render API docs", http.StatusInternalServerError)
	}
}
