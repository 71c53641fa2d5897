// ABOUTME: MCP tool definitions and registration for the askdocs server
// ABOUTME: Exposes ingestion, question answering and session history as tools
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/harper/askdocs/internal/core"
)

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, service *core.Service) *Handlers {
	handlers := NewHandlers(service)

	// 1. ingest_documents - Add documents to the index
	server.AddTool(mcp.Tool{
		Name:        "ingest_documents",
		Description: "Chunk, embed and index documents. Appends to the existing index unless mode is 'rebuild', which replaces it.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"documents": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"id":       map[string]interface{}{"type": "string"},
							"text":     map[string]interface{}{"type": "string"},
							"metadata": map[string]interface{}{"type": "object"},
						},
						"required": []string{"text"},
					},
					"description": "Documents to index",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"enum":        []string{core.ModeAppend, core.ModeRebuild},
					"description": "append (default) or rebuild",
				},
			},
			Required: []string{"documents"},
		},
	}, handlers.IngestDocuments)

	// 2. ask_question - Answer a question from the indexed documents
	server.AddTool(mcp.Tool{
		Name:        "ask_question",
		Description: "Answer a question using the indexed documents and the session's conversation history. Returns the answer and its sources.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "The question to answer",
				},
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Conversation session (default: \"default\")",
				},
			},
			Required: []string{"question"},
		},
	}, handlers.AskQuestion)

	// 3. get_session_history - Turns recorded for a session
	server.AddTool(mcp.Tool{
		Name:        "get_session_history",
		Description: "Get the question/answer turns recorded for a session, oldest first.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Conversation session (default: \"default\")",
				},
			},
		},
	}, handlers.GetSessionHistory)

	// 4. clear_session - Forget a session
	server.AddTool(mcp.Tool{
		Name:        "clear_session",
		Description: "Forget a session's conversation history.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Conversation session to clear",
				},
			},
			Required: []string{"session_id"},
		},
	}, handlers.ClearSession)

	// 5. index_stats - Describe the active index
	server.AddTool(mcp.Tool{
		Name:        "index_stats",
		Description: "Report the embedding model, vector dimension, chunk count and live session count.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.IndexStats)

	return handlers
}
