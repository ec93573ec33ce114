package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mike-a-ellis/expo-docs-mcp/internal/query"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/service"
)

// Tool identity shared by the MCP tool and the SSE tool definition.
const (
	ServerName      = "expo-documentation"
	ToolName        = "query_docs"
	ToolDescription = "Queries the Expo documentation based on a natural language query. " +
		"Returns the most relevant documentation chunks with their source path, title and URL."
)

// makeQueryHandler creates the query_docs tool handler.
func makeQueryHandler(q Querier) mcp.ToolHandlerFor[QueryDocsInput, QueryDocsOutput] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input QueryDocsInput) (
		*mcp.CallToolResult, QueryDocsOutput, error,
	) {
		result, err := q.ProcessQuery(ctx, input.Query, input.MaxResults)
		if err != nil {
			if errors.Is(err, query.ErrIndexNotInitialized) {
				return nil, QueryDocsOutput{}, fmt.Errorf("documentation index is not built yet; run build-index first")
			}
			return nil, QueryDocsOutput{}, fmt.Errorf("query failed: %w", err)
		}
		return nil, QueryDocsOutput{Context: result.Context}, nil
	}
}

// NewQueryHandler serves POST /query.
// A missing query is 400, an unbuilt index 503 and any other failure 500.
func NewQueryHandler(q Querier, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed"})
			return
		}

		var req QueryRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON body"})
			return
		}

		result, err := q.ProcessQuery(r.Context(), req.Query, req.MaxResults)
		switch {
		case errors.Is(err, service.ErrEmptyQuery):
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Query is required"})
		case errors.Is(err, query.ErrIndexNotInitialized):
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "index not initialized"})
		case err != nil:
			logger.Error("Error processing query", "error", err)
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		default:
			writeJSON(w, http.StatusOK, result)
		}
	}
}

// LoadDiscovery reads the discovery document served at the well-known paths.
// A missing file yields nil and no error.
func LoadDiscovery(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s is not valid JSON", path)
	}
	return json.RawMessage(data), nil
}

// NewDiscoveryHandler serves a fixed discovery document.
func NewDiscoveryHandler(doc json.RawMessage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	}
}

// NewToolDefinitionHandler streams the HTTP tool definition as two
// server-sent events, "tool" and "end".
func NewToolDefinitionHandler(logger *slog.Logger) http.HandlerFunc {
	return toolEventsHandler(toolDefinition(), logger)
}

func toolEventsHandler(definition any, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := json.Marshal(definition)
		if err != nil {
			logger.Error("Error encoding tool definition", "error", err)
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		fmt.Fprintf(w, "event: tool\ndata: %s\n\n", data)
		fmt.Fprint(w, "event: end\ndata: {}\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

func toolDefinition() map[string]any {
	str := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}
	return map[string]any{
		"schema_version": "v1",
		"name":           ServerName,
		"description":    "Provides access to Expo documentation, including API references, guides, and tutorials.",
		"authentication": map[string]any{"type": "none"},
		"endpoints": []any{map[string]any{
			"name":        "query",
			"description": ToolDescription,
			"path":        "/query",
			"method":      http.MethodPost,
			"request_body": map[string]any{
				"required":     true,
				"description":  "The query to search for in the Expo documentation.",
				"content_type": "application/json",
				"schema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query":      str("The natural language query to search for in the documentation."),
						"maxResults": map[string]any{"type": "integer", "description": "The maximum number of results to return. Default is 5."},
					},
					"required": []string{"query"},
				},
			},
			"response": map[string]any{
				"content_type": "application/json",
				"schema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"context": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"id":      str("Chunk source identifier"),
									"content": str("Chunk text"),
									"metadata": map[string]any{
										"type": "object",
										"properties": map[string]any{
											"source":      str("Corpus name"),
											"path":        str("File path relative to the repository"),
											"type":        str("markdown, source-code or source-code-comment"),
											"title":       str("Document title"),
											"url":         str("Link to the file"),
											"lastUpdated": str("Last update date from front matter"),
										},
									},
								},
							},
						},
					},
				},
			},
		}},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
