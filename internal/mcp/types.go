// Package mcp exposes documentation queries over MCP and plain HTTP.
package mcp

import "github.com/mike-a-ellis/expo-docs-mcp/internal/document"

// QueryDocsInput defines the input parameters for the query_docs tool.
type QueryDocsInput struct {
	// Query is the natural language question.
	Query string `json:"query" jsonschema:"The natural language query to search for in the Expo documentation"`
	// MaxResults is the maximum number of chunks to return.
	MaxResults int `json:"maxResults,omitempty" jsonschema:"The maximum number of results to return. Default is 5"`
}

// QueryDocsOutput contains the matching documentation chunks, best first.
type QueryDocsOutput struct {
	Context []document.Document `json:"context"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"maxResults,omitempty"`
}

// ErrorResponse is the body of every HTTP error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
