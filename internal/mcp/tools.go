package mcp

import "github.com/mark3labs/mcp-go/mcp"

func boolPtr(b bool) *bool { return &b }

var destructive = mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)})

var pointItems = mcp.Items(map[string]any{
	"type": "object",
	"properties": map[string]any{
		"x": map[string]any{"type": "number"},
		"y": map[string]any{"type": "number"},
	},
	"required": []string{"x", "y"},
})

var sceneGetToolDef = mcp.NewTool("scene_get",
	mcp.WithDescription("Return the current scene document, selection, active tool and history depth"),
)

var sceneClearToolDef = mcp.NewTool("scene_clear",
	mcp.WithDescription("Remove every shape as one undoable step"),
	destructive,
)

var toolSelectToolDef = mcp.NewTool("tool_select",
	mcp.WithDescription("Activate a drawing tool. Any capture in progress is abandoned."),
	mcp.WithString("tool", mcp.Required(),
		mcp.Enum("select", "pen", "eraser", "line", "rectangle", "ellipse", "triangle"),
		mcp.Description("Tool to activate")),
)

var toolStyleToolDef = mcp.NewTool("tool_style",
	mcp.WithDescription("Set the style applied to new shapes. Omitted fields keep their value."),
	mcp.WithString("stroke", mcp.Description("Stroke colour, e.g. #000000")),
	mcp.WithNumber("width", mcp.Description("Stroke width in canvas units")),
	mcp.WithString("fill", mcp.Description("Fill colour or \"none\"")),
)

var toolPointerToolDef = mcp.NewTool("tool_pointer",
	mcp.WithDescription("Feed one pointer event to the active tool"),
	mcp.WithString("phase", mcp.Required(), mcp.Enum("down", "move", "up")),
	mcp.WithNumber("x", mcp.Required()),
	mcp.WithNumber("y", mcp.Required()),
	mcp.WithBoolean("shift", mcp.Description("Extend the selection instead of replacing it")),
)

var shapeAddToolDef = mcp.NewTool("shape_add",
	mcp.WithDescription("Add one shape from explicit geometry as a manual action"),
	mcp.WithString("kind", mcp.Required(),
		mcp.Enum("stroke", "line", "rectangle", "ellipse", "triangle"),
		mcp.Description("Shape kind")),
	mcp.WithArray("points", mcp.Required(), pointItems,
		mcp.Description("Stroke: 1+ points. Line, rectangle, ellipse: 2 corner points. Triangle: 3 vertices.")),
	mcp.WithString("stroke", mcp.Description("Stroke colour (default: current tool style)")),
	mcp.WithNumber("width", mcp.Description("Stroke width (default: current tool style)")),
	mcp.WithString("fill", mcp.Description("Fill colour (default: current tool style)")),
)

var selectionSetToolDef = mcp.NewTool("selection_set",
	mcp.WithDescription("Select shapes by id. An empty list clears the selection."),
	mcp.WithArray("ids", mcp.Items(map[string]any{"type": "string"})),
)

var selectionDuplicateToolDef = mcp.NewTool("selection_duplicate",
	mcp.WithDescription("Duplicate the selected shapes with fresh ids and an offset"),
)

var selectionDeleteToolDef = mcp.NewTool("selection_delete",
	mcp.WithDescription("Delete the selected shapes as one undoable step"),
	destructive,
)

var selectionCopyToolDef = mcp.NewTool("selection_copy",
	mcp.WithDescription("Copy the selected shapes to the session clipboard"),
)

var selectionCutToolDef = mcp.NewTool("selection_cut",
	mcp.WithDescription("Copy the selected shapes, then delete them"),
	destructive,
)

var selectionPasteToolDef = mcp.NewTool("selection_paste",
	mcp.WithDescription("Paste the clipboard with fresh ids and select the copies"),
)

var selectionTransformToolDef = mcp.NewTool("selection_transform",
	mcp.WithDescription("Translate, scale or rotate the selected shapes about their own pivots"),
	mcp.WithNumber("dx"),
	mcp.WithNumber("dy"),
	mcp.WithNumber("scale", mcp.Description("Scale factor (default: 1)")),
	mcp.WithNumber("rotation", mcp.Description("Rotation in radians, clockwise")),
)

var historyUndoToolDef = mcp.NewTool("history_undo",
	mcp.WithDescription("Undo the most recent command"),
)

var historyRedoToolDef = mcp.NewTool("history_redo",
	mcp.WithDescription("Redo the most recently undone command"),
)

var suggestRequestToolDef = mcp.NewTool("suggest_request",
	mcp.WithDescription("Ask for suggestions. Nothing is drawn until a suggestion is accepted."),
	mcp.WithString("mode", mcp.Required(), mcp.Enum("panel", "floating", "auto")),
	mcp.WithString("category", mcp.Description("Panel category: door, wheel, body, roof, ears")),
	mcp.WithString("prompt", mcp.Description("Free text for the floating assistant")),
	mcp.WithNumber("anchor_x", mcp.Description("Placement anchor (default: canvas centre)")),
	mcp.WithNumber("anchor_y"),
)

var suggestAcceptToolDef = mcp.NewTool("suggest_accept",
	mcp.WithDescription("Accept a proposed suggestion; its shapes are added as one undoable step"),
	mcp.WithString("id", mcp.Required()),
)

var suggestRejectToolDef = mcp.NewTool("suggest_reject",
	mcp.WithDescription("Reject a proposed suggestion without touching the scene"),
	mcp.WithString("id", mcp.Required()),
	mcp.WithString("reason", mcp.Enum("ignore", "override", "cancel"), mcp.Description("default: ignore")),
)

var suggestListToolDef = mcp.NewTool("suggest_list",
	mcp.WithDescription("List open suggestions, or every suggestion of the session"),
	mcp.WithBoolean("all", mcp.Description("Include resolved suggestions")),
)

var suggestAutoToolDef = mcp.NewTool("suggest_auto",
	mcp.WithDescription("Turn automatic suggestions after manual edits on or off"),
	mcp.WithBoolean("on", mcp.Required()),
)

var sessionConfigureToolDef = mcp.NewTool("session_configure",
	mcp.WithDescription("Choose the reference task and experimental condition"),
	mcp.WithString("task", mcp.Enum("cat", "castle", "car", "free"), mcp.Description("default: free")),
	mcp.WithString("condition", mcp.Enum("H_ONLY", "H_PLUS_IA"), mcp.Description("default: H_PLUS_IA")),
)

var sessionRateToolDef = mcp.NewTool("session_rate",
	mcp.WithDescription("Record the subject's similarity rating (1-5) against the reference"),
	mcp.WithNumber("score", mcp.Required()),
)

var drawingSaveToolDef = mcp.NewTool("drawing_save",
	mcp.WithDescription("Save the current scene with the session's task, condition and rating"),
	mcp.WithString("name", mcp.Description("Optional label")),
)

var drawingLoadToolDef = mcp.NewTool("drawing_load",
	mcp.WithDescription("Replace the scene with a saved drawing. History restarts empty."),
	mcp.WithString("id", mcp.Required()),
)

var drawingListToolDef = mcp.NewTool("drawing_list",
	mcp.WithDescription("List saved drawings, most recently updated first"),
	mcp.WithString("task"),
	mcp.WithString("condition"),
	mcp.WithString("session_id"),
	mcp.WithNumber("limit", mcp.Description("default: 20, max: 100")),
	mcp.WithNumber("offset"),
	mcp.WithBoolean("include_deleted"),
)

var drawingExportToolDef = mcp.NewTool("drawing_export",
	mcp.WithDescription("Write a saved drawing to a file"),
	mcp.WithString("id", mcp.Required()),
	mcp.WithString("format", mcp.Enum("json", "svg", "pdf", "png"), mcp.Description("default: json")),
	mcp.WithString("path", mcp.Description("default: ~/.sketchlab/exports/<name>-<timestamp>.<format>")),
)

var drawingDeleteToolDef = mcp.NewTool("drawing_delete",
	mcp.WithDescription("Soft-delete a saved drawing"),
	mcp.WithString("id", mcp.Required()),
	destructive,
)
