package mcp

import (
	"context"
	"net/http"
	"time"

	"github.com/mike-a-ellis/expo-docs-mcp/internal/service"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Index     string `json:"index"`
	Timestamp string `json:"timestamp"`
}

// IndexStatuser reports the state of the saved index.
type IndexStatuser interface {
	IndexStatus(ctx context.Context) string
}

// NewHealthHandler creates an HTTP handler for the /health endpoint.
// The server is healthy while the index is ready, missing or replaced by
// fixtures; a store that cannot be checked makes it unhealthy.
func NewHealthHandler(s IndexStatuser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Create context with 3-second timeout for health check
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		response := HealthResponse{
			Index:     s.IndexStatus(ctx),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		if response.Index == service.IndexError {
			response.Status = "unhealthy"
			response.Message = "Index store is unavailable"
			writeJSON(w, http.StatusServiceUnavailable, response)
			return
		}

		response.Status = "ok"
		response.Message = "Expo Documentation MCP Server is running"
		writeJSON(w, http.StatusOK, response)
	}
}
