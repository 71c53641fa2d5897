// ABOUTME: MCP tool handler implementations for the askdocs server
// ABOUTME: Each handler validates arguments, calls core.Service and returns JSON text
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harper/askdocs/internal/core"
	"github.com/harper/askdocs/internal/models"
)

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	service *core.Service
}

// NewHandlers creates handlers bound to service
func NewHandlers(service *core.Service) *Handlers {
	return &Handlers{service: service}
}

type ingestArgs struct {
	Documents []models.Document `json:"documents"`
	Mode      string            `json:"mode"`
}

// IngestDocuments handles the ingest_documents tool
func (h *Handlers) IngestDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args ingestArgs
	if err := request.BindArguments(&args); err != nil {
		return errorResult(core.InvalidRequestError("ingest_documents", fmt.Errorf("invalid arguments: %w", err))), nil
	}
	if len(args.Documents) == 0 && args.Mode != core.ModeRebuild {
		return errorResult(core.InvalidRequestError("ingest_documents", errors.New("documents argument is required"))), nil
	}

	stats, err := h.service.Ingest(ctx, args.Documents, args.Mode)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(stats)
}

// AskQuestion handles the ask_question tool
func (h *Handlers) AskQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return errorResult(core.InvalidRequestError("ask_question", errors.New("question argument is required and must be a string"))), nil
	}
	sessionID := request.GetString("session_id", "")

	result, err := h.service.Ask(ctx, sessionID, question)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(result)
}

// GetSessionHistory handles the get_session_history tool
func (h *Handlers) GetSessionHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := core.NormalizeSessionID(request.GetString("session_id", ""))
	turns, err := h.service.History(sessionID)
	if err != nil {
		return errorResult(err), nil
	}

	return jsonResult(map[string]interface{}{
		"session_id": sessionID,
		"turns":      turns,
	})
}

// ClearSession handles the clear_session tool
func (h *Handlers) ClearSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return errorResult(core.InvalidRequestError("clear_session", errors.New("session_id argument is required and must be a string"))), nil
	}
	if err := h.service.ClearSession(sessionID); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]interface{}{
		"session_id": core.NormalizeSessionID(sessionID),
		"cleared":    true,
	})
}

// IndexStats handles the index_stats tool
func (h *Handlers) IndexStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(h.service.Stats())
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}

// errorResult renders err in the same {"error":{kind,message}} shape the HTTP API uses
func errorResult(err error) *mcp.CallToolResult {
	body, marshalErr := json.Marshal(map[string]interface{}{
		"error": map[string]string{
			"kind":    core.KindOf(err).Code(),
			"message": err.Error(),
		},
	})
	if marshalErr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(string(body))
}
