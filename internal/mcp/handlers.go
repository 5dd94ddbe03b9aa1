package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/haiilab/sketchlab/internal/config"
	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/geometry"
	"github.com/haiilab/sketchlab/internal/history"
	"github.com/haiilab/sketchlab/internal/ops"
	"github.com/haiilab/sketchlab/internal/scene"
	"github.com/haiilab/sketchlab/internal/session"
	"github.com/haiilab/sketchlab/internal/suggest"
	"github.com/haiilab/sketchlab/internal/tool"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db   *sql.DB
	cfg  *config.Config
	sess *session.Session
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, sess *session.Session) *Handlers {
	return &Handlers{db: db, cfg: cfg, sess: sess}
}

// Request types for each tool

// ToolSelectRequest represents the arguments for tool_select.
type ToolSelectRequest struct {
	Tool string `json:"tool"`
}

// ToolStyleRequest represents the arguments for tool_style.
type ToolStyleRequest struct {
	Stroke *string  `json:"stroke,omitempty"`
	Width  *float64 `json:"width,omitempty"`
	Fill   *string  `json:"fill,omitempty"`
}

// ToolPointerRequest represents the arguments for tool_pointer.
type ToolPointerRequest struct {
	Phase string  `json:"phase"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Shift bool    `json:"shift,omitempty"`
}

// ShapeAddRequest represents the arguments for shape_add.
type ShapeAddRequest struct {
	Kind   string           `json:"kind"`
	Points []geometry.Point `json:"points"`
	ToolStyleRequest
}

// IDsRequest represents the arguments for selection_set.
type IDsRequest struct {
	IDs []string `json:"ids"`
}

// TransformRequest represents the arguments for selection_transform.
type TransformRequest struct {
	DX       float64 `json:"dx,omitempty"`
	DY       float64 `json:"dy,omitempty"`
	Scale    float64 `json:"scale,omitempty"`
	Rotation float64 `json:"rotation,omitempty"`
}

// SuggestRequestRequest represents the arguments for suggest_request.
type SuggestRequestRequest struct {
	Mode     string   `json:"mode"`
	Category string   `json:"category,omitempty"`
	Prompt   string   `json:"prompt,omitempty"`
	AnchorX  *float64 `json:"anchor_x,omitempty"`
	AnchorY  *float64 `json:"anchor_y,omitempty"`
}

// IDRequest represents the arguments of tools addressing one item.
type IDRequest struct {
	ID string `json:"id"`
}

// SuggestRejectRequest represents the arguments for suggest_reject.
type SuggestRejectRequest struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

// SuggestListRequest represents the arguments for suggest_list.
type SuggestListRequest struct {
	All bool `json:"all,omitempty"`
}

// SuggestAutoRequest represents the arguments for suggest_auto.
type SuggestAutoRequest struct {
	On bool `json:"on"`
}

// SessionConfigureRequest represents the arguments for session_configure.
type SessionConfigureRequest struct {
	Task      string `json:"task,omitempty"`
	Condition string `json:"condition,omitempty"`
}

// SessionRateRequest represents the arguments for session_rate.
type SessionRateRequest struct {
	Score int `json:"score"`
}

// DrawingSaveRequest represents the arguments for drawing_save.
type DrawingSaveRequest struct {
	Name *string `json:"name,omitempty"`
}

// DrawingListRequest represents the arguments for drawing_list.
type DrawingListRequest struct {
	Task           string `json:"task,omitempty"`
	Condition      string `json:"condition,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	Offset         int    `json:"offset,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

// DrawingExportRequest represents the arguments for drawing_export.
type DrawingExportRequest struct {
	ID     string `json:"id"`
	Format string `json:"format,omitempty"`
	Path   string `json:"path,omitempty"`
}

// SceneState is the scene_get result.
type SceneState struct {
	SessionID string         `json:"session_id"`
	Task      string         `json:"task"`
	Condition string         `json:"condition"`
	Version   uint64         `json:"version"`
	Scene     scene.Document `json:"scene"`
	Selection []string       `json:"selection"`
	Tool      tool.Kind      `json:"tool"`
	State     tool.State     `json:"state"`
	Style     scene.Style    `json:"style"`
	CanUndo   bool           `json:"can_undo"`
	CanRedo   bool           `json:"can_redo"`
	Assist    bool           `json:"assist_enabled"`
	Auto      bool           `json:"auto"`
}

// HistoryResult reports the command an undo or redo acted on.
type HistoryResult struct {
	Label    string   `json:"label"`
	ShapeIDs []string `json:"shape_ids"`
	Version  uint64   `json:"version"`
	CanUndo  bool     `json:"can_undo"`
	CanRedo  bool     `json:"can_redo"`
}

// Handler implementations

// HandleSceneGet handles the scene_get tool call.
func (h *Handlers) HandleSceneGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(h.sceneState())
}

func (h *Handlers) sceneState() SceneState {
	engine := h.sess.Engine()
	tools := h.sess.Tools()
	layer := h.sess.Suggestions()
	sel := tools.Selection()
	if sel == nil {
		sel = []string{}
	}
	return SceneState{
		SessionID: h.sess.ID(),
		Task:      h.sess.Task(),
		Condition: h.sess.Condition(),
		Version:   engine.Version(),
		Scene:     h.sess.Document(),
		Selection: sel,
		Tool:      tools.Tool(),
		State:     tools.State(),
		Style:     tools.Style(),
		CanUndo:   engine.CanUndo(),
		CanRedo:   engine.CanRedo(),
		Assist:    layer.Enabled(),
		Auto:      layer.Auto(),
	}
}

// HandleSceneClear handles the scene_clear tool call.
func (h *Handlers) HandleSceneClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.sess.Clear(); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"cleared": true, "version": h.sess.Engine().Version()})
}

// HandleToolSelect handles the tool_select tool call.
func (h *Handlers) HandleToolSelect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ToolSelectRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	kind, err := tool.ParseKind(input.Tool)
	if err != nil {
		return errorResult(err), nil
	}
	if err := h.sess.Tools().SetTool(kind); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"tool": kind})
}

// HandleToolStyle handles the tool_style tool call.
func (h *Handlers) HandleToolStyle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ToolStyleRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	tools := h.sess.Tools()
	st := input.apply(tools.Style())
	if st.Width < 0 {
		return errorResult(errors.NewInvalidRequest("width must not be negative")), nil
	}
	tools.SetStyle(st)
	return successResult(map[string]any{"style": tools.Style()})
}

func (r ToolStyleRequest) apply(st scene.Style) scene.Style {
	if r.Stroke != nil {
		st.Stroke = *r.Stroke
	}
	if r.Width != nil {
		st.Width = *r.Width
	}
	if r.Fill != nil {
		st.Fill = *r.Fill
	}
	return st
}

// HandleToolPointer handles the tool_pointer tool call.
func (h *Handlers) HandleToolPointer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ToolPointerRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	phase := tool.Phase(input.Phase)
	switch phase {
	case tool.Down, tool.Move, tool.Up:
	default:
		return errorResult(errors.NewInvalidRequest("phase must be down, move or up")), nil
	}

	tools := h.sess.Tools()
	err = tools.Handle(tool.Pointer{Phase: phase, At: geometry.Pt(input.X, input.Y), Shift: input.Shift})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"state":     tools.State(),
		"preview":   tools.Preview(),
		"selection": tools.Selection(),
		"version":   h.sess.Engine().Version(),
	})
}

// HandleShapeAdd handles the shape_add tool call.
func (h *Handlers) HandleShapeAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ShapeAddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	kind := scene.Kind(input.Kind)
	if kind == scene.KindGroup {
		return errorResult(errors.NewInvalidRequest("groups are only created by accepting suggestions")), nil
	}

	sh := scene.Shape{
		Kind:       kind,
		Points:     input.Points,
		Style:      input.apply(h.sess.Tools().Style()),
		Provenance: scene.Manual,
	}
	if err := sh.Validate(); err != nil {
		return errorResult(err), nil
	}
	cmd := history.NewAddShape(sh)
	if err := h.sess.Engine().Execute(cmd); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"id": cmd.Shape().ID, "version": h.sess.Engine().Version()})
}

// HandleSelectionSet handles the selection_set tool call.
func (h *Handlers) HandleSelectionSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	tools := h.sess.Tools()
	if len(input.IDs) == 0 {
		tools.ClearSelection()
	} else if err := tools.SelectIDs(input.IDs...); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"selection": input.IDs})
}

// HandleSelectionDuplicate handles the selection_duplicate tool call.
func (h *Handlers) HandleSelectionDuplicate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := h.sess.Tools().Duplicate()
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"ids": ids})
}

// HandleSelectionDelete handles the selection_delete tool call.
func (h *Handlers) HandleSelectionDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n := len(h.sess.Tools().Selection())
	if err := h.sess.Tools().DeleteSelection(); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"deleted": n})
}

// HandleSelectionCopy handles the selection_copy tool call.
func (h *Handlers) HandleSelectionCopy(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n := h.sess.Tools().Copy()
	if n == 0 {
		return errorResult(errors.NewInvalidRequest("nothing selected")), nil
	}
	return successResult(map[string]any{"copied": n})
}

// HandleSelectionCut handles the selection_cut tool call.
func (h *Handlers) HandleSelectionCut(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n := len(h.sess.Tools().Selection())
	if err := h.sess.Tools().Cut(); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"cut": n})
}

// HandleSelectionPaste handles the selection_paste tool call.
func (h *Handlers) HandleSelectionPaste(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := h.sess.Tools().Paste()
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"ids": ids})
}

// HandleSelectionTransform handles the selection_transform tool call.
func (h *Handlers) HandleSelectionTransform(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TransformRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	t := geometry.Transform{DX: input.DX, DY: input.DY, Scale: input.Scale, Rotation: input.Rotation}
	if err := h.sess.Tools().TransformSelection(t); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"version": h.sess.Engine().Version()})
}

// HandleHistoryUndo handles the history_undo tool call.
func (h *Handlers) HandleHistoryUndo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cmd, err := h.sess.Undo()
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(h.historyResult(cmd))
}

// HandleHistoryRedo handles the history_redo tool call.
func (h *Handlers) HandleHistoryRedo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cmd, err := h.sess.Redo()
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(h.historyResult(cmd))
}

func (h *Handlers) historyResult(cmd history.Command) HistoryResult {
	e := h.sess.Engine()
	return HistoryResult{
		Label:    cmd.Label(),
		ShapeIDs: cmd.ShapeIDs(),
		Version:  e.Version(),
		CanUndo:  e.CanUndo(),
		CanRedo:  e.CanRedo(),
	}
}

// HandleSuggestRequest handles the suggest_request tool call.
func (h *Handlers) HandleSuggestRequest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SuggestRequestRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	mode, err := suggest.ParseMode(input.Mode)
	if err != nil {
		return errorResult(err), nil
	}
	if !h.sess.Suggestions().Enabled() {
		return errorResult(errors.NewAssistDisabled()), nil
	}

	r := suggest.Request{Mode: mode, Category: input.Category, Prompt: input.Prompt}
	if input.AnchorX != nil && input.AnchorY != nil {
		p := geometry.Pt(*input.AnchorX, *input.AnchorY)
		r.Anchor = &p
	}
	res := h.sess.Request(ctx, r)
	if res.Suggestions == nil {
		res.Suggestions = []suggest.Suggestion{}
	}
	return successResult(res)
}

// HandleSuggestAccept handles the suggest_accept tool call.
func (h *Handlers) HandleSuggestAccept(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}
	s, err := h.sess.Accept(input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(s)
}

// HandleSuggestReject handles the suggest_reject tool call.
func (h *Handlers) HandleSuggestReject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SuggestRejectRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}
	reason, err := suggest.ParseRejectReason(input.Reason)
	if err != nil {
		return errorResult(err), nil
	}
	s, err := h.sess.Reject(input.ID, reason)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(s)
}

// HandleSuggestList handles the suggest_list tool call.
func (h *Handlers) HandleSuggestList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SuggestListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	layer := h.sess.Suggestions()
	layer.Sweep()
	items := layer.Pending()
	if input.All {
		items = layer.All()
	}
	if items == nil {
		items = []suggest.Suggestion{}
	}
	return successResult(map[string]any{"items": items, "suppressed": layer.Suppressed()})
}

// HandleSuggestAuto handles the suggest_auto tool call.
func (h *Handlers) HandleSuggestAuto(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SuggestAutoRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	layer := h.sess.Suggestions()
	if input.On && !layer.Enabled() {
		return errorResult(errors.NewAssistDisabled()), nil
	}
	layer.SetAuto(input.On)
	return successResult(map[string]any{"auto": layer.Auto()})
}

// HandleSessionConfigure handles the session_configure tool call.
func (h *Handlers) HandleSessionConfigure(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionConfigureRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := h.sess.Configure(input.Task, input.Condition); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"session_id":     h.sess.ID(),
		"task":           h.sess.Task(),
		"condition":      h.sess.Condition(),
		"assist_enabled": h.sess.Suggestions().Enabled(),
	})
}

// HandleSessionRate handles the session_rate tool call.
func (h *Handlers) HandleSessionRate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := h.sess.RecordRating(input.Score); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"score": input.Score})
}

// HandleDrawingSave handles the drawing_save tool call.
func (h *Handlers) HandleDrawingSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DrawingSaveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := h.sess.Save(ctx, h.db, input.Name)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDrawingLoad handles the drawing_load tool call.
func (h *Handlers) HandleDrawingLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := h.sess.Load(ctx, h.db, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDrawingList handles the drawing_list tool call.
func (h *Handlers) HandleDrawingList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DrawingListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.List(ctx, h.db, ops.ListInput{
		Task:           input.Task,
		Condition:      input.Condition,
		SessionID:      input.SessionID,
		Limit:          input.Limit,
		Offset:         input.Offset,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDrawingExport handles the drawing_export tool call.
func (h *Handlers) HandleDrawingExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DrawingExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.ExportDrawing(ctx, h.db, h.cfg, ops.ExportDrawingInput{
		ID:     input.ID,
		Format: input.Format,
		Path:   input.Path,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDrawingDelete handles the drawing_delete tool call.
func (h *Handlers) HandleDrawingDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.Delete(ctx, h.db, ops.DeleteInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var sErr *errors.SketchError
	if stderrors.As(err, &sErr) {
		msg := sErr.Message
		if err != error(sErr) {
			// keep the wrapping context, e.g. "record 2: ..."
			msg = err.Error()
		}
		if sErr.Code == errors.ErrInternal {
			msg = "an internal error occurred"
		}
		errorObj := map[string]any{
			"code":    sErr.Code,
			"message": msg,
			"status":  sErr.Status,
		}
		if sErr.Code != errors.ErrInternal && sErr.Details != nil {
			errorObj["details"] = sErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
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
