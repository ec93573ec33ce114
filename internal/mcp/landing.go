package mcp

import (
	"html/template"
	"log/slog"
	"net/http"
)

type endpoint struct {
	Method, Path, Summary string
}

var landingEndpoints = []endpoint{
	{"", "/mcp", "MCP Streamable HTTP, tool query_docs"},
	{"POST", "/query", "documentation query, JSON body {query, maxResults}"},
	{"GET", "/mcp/tool", "tool definition as server-sent events"},
	{"GET", "/mcp.json", "discovery document, when configured"},
	{"GET", "/health", "index status"},
}

var landingPage = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<title>{{.Name}}</title>
<h1>{{.Name}}</h1>
<p>Retrieval over the Expo documentation and SDK source comments.</p>
<ul>
{{- range .Endpoints}}
<li><code>{{with .Method}}{{.}} {{end}}{{.Path}}</code> {{.Summary}}</li>
{{- end}}
</ul>
`))

// NewLandingHandler returns an HTTP handler that lists the server's endpoints at /.
func NewLandingHandler(logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err := landingPage.Execute(w, map[string]any{
			"Name":      ServerName,
			"Endpoints": landingEndpoints,
		})
		if err != nil {
			logger.Error("Error rendering landing page", "error", err)
		}
	}
}
