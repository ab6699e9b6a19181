package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/thisis/placesguard/internal/errors"
	"github.com/thisis/placesguard/internal/ops"
	"github.com/thisis/placesguard/internal/place"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	svc *ops.Service
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc *ops.Service) *Handlers {
	return &Handlers{svc: svc}
}

// Request types for each tool

// KindRequest represents the arguments for budget_status and budget_record.
type KindRequest struct {
	Kind string `json:"kind,omitempty"`
}

// UsageEventsRequest represents the arguments for usage_events.
type UsageEventsRequest struct {
	Kind  string `json:"kind,omitempty"`
	Day   string `json:"day,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// UsageExportRequest represents the arguments for usage_export.
type UsageExportRequest struct {
	Path string `json:"path,omitempty"`
	Day  string `json:"day,omitempty"`
}

// ActivateRequest represents the arguments for killswitch_activate.
type ActivateRequest struct {
	Reason string `json:"reason"`
}

// VisualRequest represents the arguments for visual_resolve.
type VisualRequest struct {
	Category     string   `json:"category,omitempty"`
	UserPhotos   []string `json:"user_photos,omitempty"`
	PhotoName    string   `json:"photo_name,omitempty"`
	Attributions []string `json:"attributions,omitempty"`
	Upgrade      bool     `json:"upgrade,omitempty"`
}

// ReasonRequest represents the arguments for reason_for.
type ReasonRequest struct {
	PlaceTypes []string `json:"place_types"`
	UserTags   []string `json:"user_tags,omitempty"`
	FriendTags []string `json:"friend_tags,omitempty"`
	Nearby     bool     `json:"nearby,omitempty"`
}

// HandleBudgetStatus handles the budget_status tool.
func (h *Handlers) HandleBudgetStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[KindRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.svc.BudgetStatus(ctx, ops.BudgetStatusInput{Kind: input.Kind})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleBudgetRecord handles the budget_record tool.
func (h *Handlers) HandleBudgetRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[KindRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.svc.BudgetRecord(ctx, ops.BudgetRecordInput{Kind: input.Kind})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleUsageEvents handles the usage_events tool.
func (h *Handlers) HandleUsageEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UsageEventsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.svc.UsageEvents(ctx, ops.UsageEventsInput{
		Kind:  input.Kind,
		Day:   input.Day,
		Limit: input.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleUsageExport handles the usage_export tool.
func (h *Handlers) HandleUsageExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UsageExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.svc.ExportUsage(ctx, ops.ExportUsageInput{Path: input.Path, Day: input.Day})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleKillSwitchStatus handles the killswitch_status tool.
func (h *Handlers) HandleKillSwitchStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := h.svc.KillSwitchStatus(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleKillSwitchActivate handles the killswitch_activate tool.
func (h *Handlers) HandleKillSwitchActivate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ActivateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.svc.KillSwitchActivate(ctx, ops.KillSwitchActivateInput{Reason: input.Reason})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleKillSwitchDeactivate handles the killswitch_deactivate tool.
func (h *Handlers) HandleKillSwitchDeactivate(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := h.svc.KillSwitchDeactivate(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleVisualResolve handles the visual_resolve tool.
func (h *Handlers) HandleVisualResolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[VisualRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	return successResult(h.svc.VisualResolve(ctx, ops.VisualResolveInput{
		Category:     input.Category,
		UserPhotos:   input.UserPhotos,
		PhotoName:    input.PhotoName,
		Attributions: input.Attributions,
		Upgrade:      input.Upgrade,
	}))
}

// HandleReasonFor handles the reason_for tool.
func (h *Handlers) HandleReasonFor(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReasonRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	return successResult(ops.Reason(ops.ReasonInput{
		PlaceTypes: input.PlaceTypes,
		UserTags:   input.UserTags,
		FriendTags: input.FriendTags,
		Nearby:     input.Nearby,
	}))
}

// HandleNearbyCell handles the nearby_cell tool.
func (h *Handlers) HandleNearbyCell(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, err := decode[place.Bounds](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Cell(b)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleNearbySearch handles the nearby_search tool.
func (h *Handlers) HandleNearbySearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, err := decode[place.Bounds](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.svc.NearbySearch(ctx, b)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var gErr *errors.GuardError
	if stderrors.As(err, &gErr) {
		msg := gErr.Message
		if err != error(gErr) {
			// wrapped: keep the caller's prefix
			msg = err.Error()
		}
		errorObj := map[string]any{
			"code":    gErr.Code,
			"message": msg,
			"status":  gErr.Status,
		}
		if gErr.Code != errors.ErrInternal && gErr.Details != nil {
			errorObj["details"] = gErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
