package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/thisis/placesguard/internal/ops"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"budget_status": {
		def:     budgetStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBudgetStatus },
	},
	"budget_record": {
		def:     budgetRecordToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBudgetRecord },
	},
	"usage_events": {
		def:     usageEventsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUsageEvents },
	},
	"usage_export": {
		def:     usageExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUsageExport },
	},
	"killswitch_status": {
		def:     killSwitchStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleKillSwitchStatus },
	},
	"killswitch_activate": {
		def:     killSwitchActivateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleKillSwitchActivate },
	},
	"killswitch_deactivate": {
		def:     killSwitchDeactivateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleKillSwitchDeactivate },
	},
	"visual_resolve": {
		def:     visualResolveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleVisualResolve },
	},
	"reason_for": {
		def:     reasonForToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReasonFor },
	},
	"nearby_cell": {
		def:     nearbyCellToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNearbyCell },
	},
	"nearby_search": {
		def:     nearbySearchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNearbySearch },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the placesguard tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(svc *ops.Service, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"placesguard",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(svc)

	disabled := make(map[string]bool)
	for _, name := range svc.Config().DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(svc *ops.Service, version string) error {
	s := NewServer(svc, version)
	return server.ServeStdio(s)
}
