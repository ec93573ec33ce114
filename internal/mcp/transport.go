package mcp

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPHandlerOptions configures the HTTP transport behavior.
type HTTPHandlerOptions struct {
	// Stateless disables session management. Use for simple tool servers
	// that don't need server-to-client requests. Default: false (stateful).
	Stateless bool
}

// NewHTTPHandler creates an HTTP handler for the MCP server using Streamable HTTP transport.
// The handler can be mounted on any http.ServeMux path (e.g., "/mcp").
func NewHTTPHandler(server *Server, opts *HTTPHandlerOptions) http.Handler {
	if opts == nil {
		opts = &HTTPHandlerOptions{}
	}

	sdkOpts := &mcp.StreamableHTTPOptions{
		Stateless: opts.Stateless,
	}

	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server.MCPServer()
	}, sdkOpts)
}

// RouterConfig holds everything served over HTTP.
type RouterConfig struct {
	Server         *Server
	Querier        Querier
	Discovery      json.RawMessage // Served at the discovery paths when non-nil
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter mounts every HTTP endpoint and wraps them with CORS.
//
//	GET  /                       landing page
//	GET  /health                 health check
//	POST /query                  documentation query
//	GET  /mcp/tool               tool definition as server-sent events
//	     /mcp                    MCP Streamable HTTP
//	GET  /mcp.json, /.well-known/mcp.json, /mcp-config.json   discovery
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", NewLandingHandler(cfg.Logger))
	mux.HandleFunc("GET /health", NewHealthHandler(cfg.Querier))
	mux.HandleFunc("/query", NewQueryHandler(cfg.Querier, cfg.Logger))
	mux.HandleFunc("GET /mcp/tool", NewToolDefinitionHandler(cfg.Logger))
	mux.Handle("/mcp", NewHTTPHandler(cfg.Server, nil))

	if cfg.Discovery != nil {
		discovery := NewDiscoveryHandler(cfg.Discovery)
		for _, p := range []string{"/mcp.json", "/.well-known/mcp.json", "/mcp-config.json"} {
			mux.HandleFunc("GET "+p, discovery)
		}
	}

	return NewCORS(cfg.AllowedOrigins).Handler(mux)
}

// CORS adds cross-origin headers for allowed origins and answers preflight requests.
type CORS struct {
	allowedOrigins []string
}

// NewCORS creates CORS middleware. "*" allows every origin.
func NewCORS(allowedOrigins []string) *CORS {
	return &CORS{allowedOrigins: allowedOrigins}
}

// Handler wraps next with CORS headers.
func (c *CORS) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if allow := c.allow(origin); allow != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Mcp-Session-Id, Mcp-Protocol-Version")
			h.Set("Access-Control-Expose-Headers", "Mcp-Session-Id")
			h.Set("Access-Control-Max-Age", "86400")
			if allow != "*" {
				h.Add("Vary", "Origin")
			}
		}

		// Handle preflight
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allow returns the Access-Control-Allow-Origin value for origin, or "".
func (c *CORS) allow(origin string) string {
	for _, o := range c.allowedOrigins {
		switch {
		case o == "*" && origin == "":
			return "*"
		case o == "*" || o == origin:
			return origin
		}
	}
	return ""
}
