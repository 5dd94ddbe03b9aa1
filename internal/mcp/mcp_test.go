package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/haiilab/sketchlab/internal/config"
	"github.com/haiilab/sketchlab/internal/db"
	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/session"
	"github.com/haiilab/sketchlab/internal/suggest"
)

// testSetup creates a temporary database, config and live session.
func testSetup(t *testing.T) (*Handlers, *sql.DB, *config.Config) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true // Allow temp dirs in tests

	sess := session.New(
		session.WithConfig(cfg),
		session.WithSource(suggest.Panel, suggest.NewCatalogSource(nil)),
		session.WithSource(suggest.Floating, suggest.NewWizardSource()),
	)
	t.Cleanup(sess.Close)

	return NewHandlers(database, cfg, sess), database, cfg
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

type handlerFunc func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func call(t *testing.T, fn handlerFunc, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := fn(context.Background(), makeRequest(args))
	if err != nil {
		t.Fatalf("handler returned protocol error: %v", err)
	}
	return result
}

func drawEllipse(t *testing.T, h *Handlers, x0, y0, x1, y1 float64) {
	t.Helper()
	parseOutput(t, call(t, h.HandleToolSelect, map[string]any{"tool": "ellipse"}))
	parseOutput(t, call(t, h.HandleToolPointer, map[string]any{"phase": "down", "x": x0, "y": y0}))
	parseOutput(t, call(t, h.HandleToolPointer, map[string]any{"phase": "move", "x": x1, "y": y1}))
	parseOutput(t, call(t, h.HandleToolPointer, map[string]any{"phase": "up", "x": x1, "y": y1}))
}

func sceneShapes(t *testing.T, h *Handlers) []any {
	t.Helper()
	out := parseOutput(t, call(t, h.HandleSceneGet, nil))
	sc := out["scene"].(map[string]any)
	shapes, _ := sc["shapes"].([]any)
	return shapes
}

func TestHandleToolPointer_DrawsOnRelease(t *testing.T) {
	h, _, _ := testSetup(t)

	parseOutput(t, call(t, h.HandleToolSelect, map[string]any{"tool": "rectangle"}))
	parseOutput(t, call(t, h.HandleToolPointer, map[string]any{"phase": "down", "x": 10, "y": 10}))
	out := parseOutput(t, call(t, h.HandleToolPointer, map[string]any{"phase": "move", "x": 50, "y": 40}))
	if out["state"] != "drawing" {
		t.Errorf("state = %v, want drawing", out["state"])
	}
	if n := len(sceneShapes(t, h)); n != 0 {
		t.Errorf("shapes during capture = %d, want 0", n)
	}

	parseOutput(t, call(t, h.HandleToolPointer, map[string]any{"phase": "up", "x": 50, "y": 40}))
	shapes := sceneShapes(t, h)
	if len(shapes) != 1 {
		t.Fatalf("shapes = %d, want 1", len(shapes))
	}
	rec := shapes[0].(map[string]any)
	if rec["type"] != "rectangle" || rec["provenance"] != "manual" {
		t.Errorf("record = %v", rec)
	}
}

func TestHandleToolSelect_Unknown(t *testing.T) {
	h, _, _ := testSetup(t)
	assertErrorCode(t, call(t, h.HandleToolSelect, map[string]any{"tool": "brush"}), "INVALID_REQUEST")
}

func TestHandleToolPointer_BadPhase(t *testing.T) {
	h, _, _ := testSetup(t)
	assertErrorCode(t, call(t, h.HandleToolPointer, map[string]any{"phase": "hover", "x": 1, "y": 1}), "INVALID_REQUEST")
}

func TestHandleToolStyle(t *testing.T) {
	h, _, _ := testSetup(t)

	out := parseOutput(t, call(t, h.HandleToolStyle, map[string]any{"stroke": "#ff0000", "width": 5}))
	style := out["style"].(map[string]any)
	if style["stroke"] != "#ff0000" || style["width"] != float64(5) {
		t.Errorf("style = %v", style)
	}
	assertErrorCode(t, call(t, h.HandleToolStyle, map[string]any{"width": -1}), "INVALID_REQUEST")
}

func TestHandleShapeAdd(t *testing.T) {
	h, _, _ := testSetup(t)

	out := parseOutput(t, call(t, h.HandleShapeAdd, map[string]any{
		"kind":   "triangle",
		"points": []any{map[string]any{"x": 0, "y": 0}, map[string]any{"x": 10, "y": 0}, map[string]any{"x": 5, "y": 8}},
		"fill":   "#00ff00",
	}))
	if id, _ := out["id"].(string); id == "" {
		t.Errorf("id = %v, want non-empty", out["id"])
	}
	shapes := sceneShapes(t, h)
	if len(shapes) != 1 {
		t.Fatalf("shapes = %d, want 1", len(shapes))
	}
	style := shapes[0].(map[string]any)["style"].(map[string]any)
	if style["fill"] != "#00ff00" {
		t.Errorf("fill = %v, want #00ff00", style["fill"])
	}

	tests := []struct {
		name string
		args map[string]any
		code string
	}{
		{"wrong point count", map[string]any{"kind": "triangle", "points": []any{map[string]any{"x": 0, "y": 0}}}, "INVALID_GEOMETRY"},
		{"unknown kind", map[string]any{"kind": "star", "points": []any{map[string]any{"x": 0, "y": 0}}}, "INVALID_GEOMETRY"},
		{"group", map[string]any{"kind": "group"}, "INVALID_REQUEST"},
		{"bad points", map[string]any{"kind": "line", "points": "nope"}, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertErrorCode(t, call(t, h.HandleShapeAdd, tt.args), tt.code)
		})
	}
	if n := len(sceneShapes(t, h)); n != 1 {
		t.Errorf("shapes after failures = %d, want 1", n)
	}
}

func TestHandleSelection_DuplicateCopyPaste(t *testing.T) {
	h, _, _ := testSetup(t)
	added := parseOutput(t, call(t, h.HandleShapeAdd, map[string]any{
		"kind":   "rectangle",
		"points": []any{map[string]any{"x": 0, "y": 0}, map[string]any{"x": 20, "y": 20}},
	}))
	id := added["id"].(string)

	assertErrorCode(t, call(t, h.HandleSelectionDuplicate, nil), "INVALID_REQUEST")
	assertErrorCode(t, call(t, h.HandleSelectionSet, map[string]any{"ids": []any{"missing"}}), "NOT_FOUND")

	parseOutput(t, call(t, h.HandleSelectionSet, map[string]any{"ids": []any{id}}))
	dup := parseOutput(t, call(t, h.HandleSelectionDuplicate, nil))
	if ids := dup["ids"].([]any); len(ids) != 1 || ids[0] == id {
		t.Errorf("duplicate ids = %v", ids)
	}

	copied := parseOutput(t, call(t, h.HandleSelectionCopy, nil))
	if copied["copied"] != float64(1) {
		t.Errorf("copied = %v, want 1", copied["copied"])
	}
	parseOutput(t, call(t, h.HandleSelectionPaste, nil))
	if n := len(sceneShapes(t, h)); n != 3 {
		t.Errorf("shapes = %d, want 3", n)
	}

	parseOutput(t, call(t, h.HandleSelectionTransform, map[string]any{"dx": 5}))
	parseOutput(t, call(t, h.HandleSelectionDelete, nil))
	if n := len(sceneShapes(t, h)); n != 2 {
		t.Errorf("shapes after delete = %d, want 2", n)
	}
}

func TestHandleHistory(t *testing.T) {
	h, _, _ := testSetup(t)

	assertErrorCode(t, call(t, h.HandleHistoryUndo, nil), "HISTORY_EMPTY")
	assertErrorCode(t, call(t, h.HandleHistoryRedo, nil), "HISTORY_EMPTY")

	drawEllipse(t, h, 0, 0, 40, 30)
	out := parseOutput(t, call(t, h.HandleHistoryUndo, nil))
	if out["label"] != "add ellipse" || out["can_redo"] != true {
		t.Errorf("undo = %v", out)
	}
	if n := len(sceneShapes(t, h)); n != 0 {
		t.Errorf("shapes after undo = %d, want 0", n)
	}
	parseOutput(t, call(t, h.HandleHistoryRedo, nil))
	if n := len(sceneShapes(t, h)); n != 1 {
		t.Errorf("shapes after redo = %d, want 1", n)
	}

	parseOutput(t, call(t, h.HandleSceneClear, nil))
	if n := len(sceneShapes(t, h)); n != 0 {
		t.Errorf("shapes after clear = %d, want 0", n)
	}
}

func TestHandleSuggest_AcceptWorkflow(t *testing.T) {
	h, _, _ := testSetup(t)
	parseOutput(t, call(t, h.HandleSessionConfigure, map[string]any{"task": "cat", "condition": "H_PLUS_IA"}))
	drawEllipse(t, h, 100, 100, 300, 260)

	res := parseOutput(t, call(t, h.HandleSuggestRequest, map[string]any{"mode": "floating"}))
	suggestions := res["suggestions"].([]any)
	if len(suggestions) != 1 {
		t.Fatalf("suggestions = %d, want 1", len(suggestions))
	}
	sg := suggestions[0].(map[string]any)
	if sg["template_id"] != "cat_ears" || sg["state"] != "proposed" {
		t.Errorf("suggestion = %v", sg)
	}
	if n := len(sceneShapes(t, h)); n != 1 {
		t.Errorf("proposal touched the scene: %d shapes", n)
	}

	listed := parseOutput(t, call(t, h.HandleSuggestList, nil))
	if items := listed["items"].([]any); len(items) != 1 {
		t.Errorf("pending = %d, want 1", len(items))
	}

	id := sg["id"].(string)
	acc := parseOutput(t, call(t, h.HandleSuggestAccept, map[string]any{"id": id}))
	if acc["state"] != "accepted" {
		t.Errorf("state = %v, want accepted", acc["state"])
	}
	shapes := sceneShapes(t, h)
	if len(shapes) != 2 {
		t.Fatalf("shapes = %d, want 2", len(shapes))
	}
	if prov := shapes[1].(map[string]any)["provenance"]; prov != "ai_accepted" {
		t.Errorf("provenance = %v, want ai_accepted", prov)
	}

	assertErrorCode(t, call(t, h.HandleSuggestAccept, map[string]any{"id": id}), "CONFLICT")
	assertErrorCode(t, call(t, h.HandleSuggestAccept, map[string]any{"id": "nope"}), "NOT_FOUND")
	assertErrorCode(t, call(t, h.HandleSuggestAccept, map[string]any{}), "INVALID_REQUEST")

	undo := parseOutput(t, call(t, h.HandleHistoryUndo, nil))
	if undo["can_redo"] != true {
		t.Errorf("undo = %v", undo)
	}
	if n := len(sceneShapes(t, h)); n != 1 {
		t.Errorf("shapes after undo = %d, want 1", n)
	}
}

func TestHandleSuggest_Reject(t *testing.T) {
	h, _, _ := testSetup(t)
	res := parseOutput(t, call(t, h.HandleSuggestRequest, map[string]any{"mode": "panel", "category": "wheel"}))
	suggestions := res["suggestions"].([]any)
	if len(suggestions) == 0 {
		t.Fatal("expected panel suggestions")
	}
	id := suggestions[0].(map[string]any)["id"].(string)

	assertErrorCode(t, call(t, h.HandleSuggestReject, map[string]any{"id": id, "reason": "bored"}), "INVALID_REQUEST")
	out := parseOutput(t, call(t, h.HandleSuggestReject, map[string]any{"id": id}))
	if out["state"] != "rejected" || out["reason"] != "ignore" {
		t.Errorf("reject = %v", out)
	}
	if n := len(sceneShapes(t, h)); n != 0 {
		t.Errorf("shapes = %d, want 0", n)
	}

	all := parseOutput(t, call(t, h.HandleSuggestList, map[string]any{"all": true}))
	if items := all["items"].([]any); len(items) != len(suggestions) {
		t.Errorf("all = %d, want %d", len(items), len(suggestions))
	}
}

func TestHandleSuggest_HumanOnly(t *testing.T) {
	h, _, _ := testSetup(t)
	parseOutput(t, call(t, h.HandleSessionConfigure, map[string]any{"task": "castle", "condition": "H_ONLY"}))

	assertErrorCode(t, call(t, h.HandleSuggestRequest, map[string]any{"mode": "panel"}), "ASSIST_DISABLED")
	assertErrorCode(t, call(t, h.HandleSuggestAuto, map[string]any{"on": true}), "ASSIST_DISABLED")
	assertErrorCode(t, call(t, h.HandleSuggestAccept, map[string]any{"id": "x"}), "ASSIST_DISABLED")

	state := parseOutput(t, call(t, h.HandleSceneGet, nil))
	if state["assist_enabled"] != false || state["condition"] != "H_ONLY" {
		t.Errorf("state = %v", state)
	}
}

func TestHandleSuggestRequest_BadMode(t *testing.T) {
	h, _, _ := testSetup(t)
	assertErrorCode(t, call(t, h.HandleSuggestRequest, map[string]any{"mode": "popup"}), "INVALID_REQUEST")
}

func TestHandleSuggestAuto(t *testing.T) {
	h, _, _ := testSetup(t)
	out := parseOutput(t, call(t, h.HandleSuggestAuto, map[string]any{"on": true}))
	if out["auto"] != true {
		t.Errorf("auto = %v, want true", out["auto"])
	}
	out = parseOutput(t, call(t, h.HandleSuggestAuto, map[string]any{"on": false}))
	if out["auto"] != false {
		t.Errorf("auto = %v, want false", out["auto"])
	}
}

func TestHandleSession(t *testing.T) {
	h, _, _ := testSetup(t)

	assertErrorCode(t, call(t, h.HandleSessionConfigure, map[string]any{"task": "dog"}), "INVALID_REQUEST")
	out := parseOutput(t, call(t, h.HandleSessionConfigure, map[string]any{}))
	if out["task"] != "free" || out["condition"] != "H_PLUS_IA" || out["assist_enabled"] != true {
		t.Errorf("configure = %v", out)
	}

	assertErrorCode(t, call(t, h.HandleSessionRate, map[string]any{"score": 9}), "INVALID_REQUEST")
	parseOutput(t, call(t, h.HandleSessionRate, map[string]any{"score": 2}))
}

func TestHandleDrawing_Lifecycle(t *testing.T) {
	h, _, _ := testSetup(t)
	parseOutput(t, call(t, h.HandleSessionConfigure, map[string]any{"task": "car"}))
	drawEllipse(t, h, 10, 10, 60, 60)
	parseOutput(t, call(t, h.HandleSessionRate, map[string]any{"score": 4}))

	saved := parseOutput(t, call(t, h.HandleDrawingSave, map[string]any{"name": "My Car"}))
	id := saved["id"].(string)
	if saved["shape_count"] != float64(1) {
		t.Errorf("shape_count = %v, want 1", saved["shape_count"])
	}

	list := parseOutput(t, call(t, h.HandleDrawingList, map[string]any{"task": "car"}))
	items := list["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["id"] != id {
		t.Errorf("list = %v", items)
	}
	if r := items[0].(map[string]any)["rating"]; r != float64(4) {
		t.Errorf("rating = %v, want 4", r)
	}
	assertErrorCode(t, call(t, h.HandleDrawingList, map[string]any{"condition": "both"}), "INVALID_REQUEST")

	path := filepath.Join(t.TempDir(), "car.svg")
	exported := parseOutput(t, call(t, h.HandleDrawingExport, map[string]any{"id": id, "format": "svg", "path": path}))
	if exported["path"] != path || exported["bytes"].(float64) <= 0 {
		t.Errorf("export = %v", exported)
	}
	assertErrorCode(t, call(t, h.HandleDrawingExport, map[string]any{"id": id, "format": "bmp"}), "INVALID_REQUEST")

	parseOutput(t, call(t, h.HandleSceneClear, nil))
	loaded := parseOutput(t, call(t, h.HandleDrawingLoad, map[string]any{"id": id}))
	if loaded["name"] != "My Car" {
		t.Errorf("name = %v", loaded["name"])
	}
	if n := len(sceneShapes(t, h)); n != 1 {
		t.Errorf("shapes after load = %d, want 1", n)
	}
	assertErrorCode(t, call(t, h.HandleHistoryUndo, nil), "HISTORY_EMPTY")

	parseOutput(t, call(t, h.HandleDrawingDelete, map[string]any{"id": id}))
	assertErrorCode(t, call(t, h.HandleDrawingDelete, map[string]any{"id": id}), "NOT_FOUND")
	assertErrorCode(t, call(t, h.HandleDrawingLoad, map[string]any{"id": id}), "NOT_FOUND")
}

func TestServerRegistration(t *testing.T) {
	h, database, cfg := testSetup(t)

	s := NewServer(database, cfg, h.sess, "test")
	tools := s.ListTools()
	if len(tools) != len(toolRegistry) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry))
	}
	for _, name := range []string{"scene_get", "tool_pointer", "suggest_accept", "session_configure", "drawing_save"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	h, database, cfg := testSetup(t)

	cfg.DisabledTools = []string{"drawing_delete", "scene_clear", "scene_clear"}
	s := NewServer(database, cfg, h.sess, "test")
	tools := s.ListTools()

	if len(tools) != len(toolRegistry)-2 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry)-2)
	}
	for _, name := range []string{"drawing_delete", "scene_clear"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_WithDisabledTypes(t *testing.T) {
	h, database, cfg := testSetup(t)

	cfg.DisabledTypes = []string{"suggest", "selection"}
	s := NewServer(database, cfg, h.sess, "test")
	tools := s.ListTools()

	for name := range tools {
		if typ := GetTypeForTool(name); typ == "suggest" || typ == "selection" {
			t.Errorf("tool %q of a disabled type is registered", name)
		}
	}
	if _, ok := tools["history_undo"]; !ok {
		t.Error("history_undo should stay registered")
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	h, database, cfg := testSetup(t)

	cfg.DisabledTools = AllToolNames()
	s := NewServer(database, cfg, h.sess, "test")
	if n := len(s.ListTools()); n != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", n)
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{"all valid", []string{"scene_clear", "drawing_delete"}, 0},
		{"one unknown", []string{"scene_clear", "fake_tool"}, 1},
		{"all unknown", []string{"foo", "bar", "baz"}, 3},
		{"empty list", []string{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if unknown := ValidateDisabledTools(tt.input); len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestValidateDisabledTypes(t *testing.T) {
	if unknown := ValidateDisabledTypes([]string{"scene", "brush"}); len(unknown) != 1 || unknown[0] != "brush" {
		t.Errorf("ValidateDisabledTypes = %v, want [brush]", unknown)
	}
}

func TestToolGroupsAreKnown(t *testing.T) {
	known := make(map[string]bool)
	for _, typ := range KnownTypes {
		known[typ] = true
	}
	for _, name := range AllToolNames() {
		if !known[GetTypeForTool(name)] {
			t.Errorf("tool %q has unknown group %q", name, GetTypeForTool(name))
		}
		if toolRegistry[name].def.Name != name {
			t.Errorf("registry key %q defines tool %q", name, toolRegistry[name].def.Name)
		}
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}
	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if strings.Contains(errObj["message"].(string), "secret") {
		t.Errorf("message leaks details: %v", errObj["message"])
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrapped := fmt.Errorf("record 2: %w", errors.NewInvalidGeometry("line", "needs 2 points, got 1"))

	errObj := errorObject(t, errorResult(wrapped))
	if errObj["code"] != string(errors.ErrInvalidGeometry) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrInvalidGeometry)
	}
	if msg := errObj["message"].(string); !strings.Contains(msg, "record 2") {
		t.Errorf("message should keep wrapper context, got: %s", msg)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	errObj := errorObject(t, errorResult(errors.NewNotFound("drawing", "abc")))
	if errObj["code"] != string(errors.ErrNotFound) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != string(errors.ErrInternal) || errObj["message"] == "boom" {
		t.Errorf("error = %v", errObj)
	}
}

// Helper functions

func errorObject(t *testing.T, r *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload["error"].(map[string]any)
}

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if !result.IsError {
		t.Errorf("expected error %s, got success: %s", expectedCode, extractErrorMessage(result))
		return
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}
	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}
	if code, _ := errorObj["code"].(string); code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}
	return text.Text
}
