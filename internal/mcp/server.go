// Package mcp exposes a live drawing session as MCP tools.
package mcp

import (
	"database/sql"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/haiilab/sketchlab/internal/config"
	"github.com/haiilab/sketchlab/internal/session"
)

// KnownTypes lists all valid tool group names.
var KnownTypes = []string{"scene", "tool", "shape", "selection", "history", "suggest", "session", "drawing"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"scene_get": {
		def:     sceneGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSceneGet },
	},
	"scene_clear": {
		def:     sceneClearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSceneClear },
	},
	"tool_select": {
		def:     toolSelectToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleToolSelect },
	},
	"tool_style": {
		def:     toolStyleToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleToolStyle },
	},
	"tool_pointer": {
		def:     toolPointerToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleToolPointer },
	},
	"shape_add": {
		def:     shapeAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleShapeAdd },
	},
	"selection_set": {
		def:     selectionSetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSelectionSet },
	},
	"selection_duplicate": {
		def:     selectionDuplicateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSelectionDuplicate },
	},
	"selection_delete": {
		def:     selectionDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSelectionDelete },
	},
	"selection_copy": {
		def:     selectionCopyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSelectionCopy },
	},
	"selection_cut": {
		def:     selectionCutToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSelectionCut },
	},
	"selection_paste": {
		def:     selectionPasteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSelectionPaste },
	},
	"selection_transform": {
		def:     selectionTransformToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSelectionTransform },
	},
	"history_undo": {
		def:     historyUndoToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryUndo },
	},
	"history_redo": {
		def:     historyRedoToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryRedo },
	},
	"suggest_request": {
		def:     suggestRequestToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSuggestRequest },
	},
	"suggest_accept": {
		def:     suggestAcceptToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSuggestAccept },
	},
	"suggest_reject": {
		def:     suggestRejectToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSuggestReject },
	},
	"suggest_list": {
		def:     suggestListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSuggestList },
	},
	"suggest_auto": {
		def:     suggestAutoToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSuggestAuto },
	},
	"session_configure": {
		def:     sessionConfigureToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionConfigure },
	},
	"session_rate": {
		def:     sessionRateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionRate },
	},
	"drawing_save": {
		def:     drawingSaveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDrawingSave },
	},
	"drawing_load": {
		def:     drawingLoadToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDrawingLoad },
	},
	"drawing_list": {
		def:     drawingListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDrawingList },
	},
	"drawing_export": {
		def:     drawingExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDrawingExport },
	},
	"drawing_delete": {
		def:     drawingDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDrawingDelete },
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

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the group name from a tool name.
// Tool names follow the pattern "group_action" (e.g., "history_undo" → "history").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given groups.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates an MCP server driving sess.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(db *sql.DB, cfg *config.Config, sess *session.Session, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"sketchlab",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg, sess)

	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
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

// Run serves sess over stdio until stdin closes.
func Run(db *sql.DB, cfg *config.Config, sess *session.Session, version string) error {
	return server.ServeStdio(NewServer(db, cfg, sess, version))
}
