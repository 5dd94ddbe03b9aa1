package web

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/haiilab/sketchlab/internal/config"
	"github.com/haiilab/sketchlab/internal/db"
	"github.com/haiilab/sketchlab/internal/drawing"
	"github.com/haiilab/sketchlab/internal/events"
	"github.com/haiilab/sketchlab/internal/geometry"
	"github.com/haiilab/sketchlab/internal/history"
	"github.com/haiilab/sketchlab/internal/ops"
	"github.com/haiilab/sketchlab/internal/scene"
	"github.com/haiilab/sketchlab/internal/session"
)

func stringPtr(s string) *string { return &s }

func setupTest(t *testing.T) *Handlers {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}

	return &Handlers{
		db:       database,
		cfg:      config.DefaultConfig(),
		renderer: NewRenderer(templateSub, "test"),
	}
}

func testScene(t *testing.T) *scene.Scene {
	t.Helper()
	sc := scene.New()
	shapes := []scene.Shape{
		{Kind: scene.KindEllipse, Points: []geometry.Point{{X: 100, Y: 100}, {X: 200, Y: 180}}, Style: scene.Style{Stroke: "#000000", Width: 2}},
		{Kind: scene.KindTriangle, Provenance: scene.AIAccepted, Points: []geometry.Point{{X: 110, Y: 90}, {X: 130, Y: 60}, {X: 150, Y: 90}}, Style: scene.Style{Stroke: "#000000", Width: 2}},
	}
	for _, sh := range shapes {
		if _, err := sc.Add(sh); err != nil {
			t.Fatalf("add shape: %v", err)
		}
	}
	return sc
}

// seedDrawing stores a two-shape drawing and returns its ID.
func seedDrawing(t *testing.T, h *Handlers, name, task, condition, sessionID string) string {
	t.Helper()
	out, err := ops.Save(context.Background(), h.db, ops.SaveInput{
		Name:      stringPtr(name),
		SessionID: sessionID,
		Task:      task,
		Condition: condition,
		Scene:     testScene(t),
	})
	if err != nil {
		t.Fatalf("seed drawing %q: %v", name, err)
	}
	return out.ID
}

func get(h http.HandlerFunc, target, id string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", target, nil)
	if id != "" {
		req.SetPathValue("id", id)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

// --- HandleList ---

func TestHandleList_Default(t *testing.T) {
	h := setupTest(t)
	seedDrawing(t, h, "whiskers", drawing.TaskCat, drawing.HumanPlusAI, "s1")

	rec := get(h.HandleList, "/drawings", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "whiskers") {
		t.Error("expected drawing name 'whiskers' in response")
	}
	if !strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("expected full layout")
	}
}

func TestHandleList_Filters(t *testing.T) {
	h := setupTest(t)
	seedDrawing(t, h, "tabby", drawing.TaskCat, drawing.HumanOnly, "s1")
	seedDrawing(t, h, "roadster", drawing.TaskCar, drawing.HumanPlusAI, "s2")

	rec := get(h.HandleList, "/drawings?task=car", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "roadster") {
		t.Error("expected 'roadster' in filtered results")
	}
	if strings.Contains(body, ">tabby<") {
		t.Error("did not expect 'tabby' in filtered results")
	}

	rec = get(h.HandleList, "/drawings?session_id=s1", "", nil)
	if !strings.Contains(rec.Body.String(), ">tabby<") {
		t.Error("expected 'tabby' when filtering by session")
	}
}

func TestHandleList_UnknownTask(t *testing.T) {
	h := setupTest(t)

	rec := get(h.HandleList, "/drawings?task=dog", "", nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleList_Empty(t *testing.T) {
	h := setupTest(t)

	rec := get(h.HandleList, "/drawings", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No drawings yet") {
		t.Error("expected empty state message")
	}
}

func TestHandleList_HtmxReturnsContentOnly(t *testing.T) {
	h := setupTest(t)
	seedDrawing(t, h, "htmx-cat", drawing.TaskCat, drawing.HumanPlusAI, "s1")

	rec := get(h.HandleList, "/drawings", "", map[string]string{"HX-Request": "true"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("htmx response should not contain full layout")
	}
	if !strings.Contains(body, "htmx-cat") {
		t.Error("htmx response should contain drawing data")
	}
}

func TestHandleList_JSON(t *testing.T) {
	h := setupTest(t)
	seedDrawing(t, h, "a", drawing.TaskCastle, drawing.HumanPlusAI, "s1")
	seedDrawing(t, h, "b", drawing.TaskCastle, drawing.HumanPlusAI, "s1")

	rec := get(h.HandleList, "/drawings?limit=1", "", map[string]string{"Accept": "application/json"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out ops.ListOutput
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(out.Items) != 1 || !out.Pagination.HasMore || out.Pagination.Total != 2 {
		t.Errorf("page = %d items, pagination %+v", len(out.Items), out.Pagination)
	}
}

func TestHandleList_InvalidLimitFallsBack(t *testing.T) {
	h := setupTest(t)

	rec := get(h.HandleList, "/drawings?limit=notanumber&offset=bad", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

// --- HandleDetail ---

func TestHandleDetail_Found(t *testing.T) {
	h := setupTest(t)
	id := seedDrawing(t, h, "detail-cat", drawing.TaskCat, drawing.HumanPlusAI, "sess-detail")

	journal := db.NewJournal(h.db)
	for _, typ := range []events.Type{events.SuggestionProposed, events.SuggestionAccepted} {
		err := journal.Write(events.Event{
			SessionID: "sess-detail", At: time.Now(), Type: typ, Provenance: scene.AIGenerated,
			Condition: drawing.HumanPlusAI, Task: drawing.TaskCat,
			Payload: map[string]any{"label": "cat ears"},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	rec := get(h.HandleDetail, "/drawings/"+id, id, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "detail-cat") {
		t.Error("expected drawing name in detail page")
	}
	if !strings.Contains(body, "<svg") || !strings.Contains(body, "<polygon") {
		t.Error("expected inline SVG with shapes")
	}
	if strings.Contains(body, "<?xml") {
		t.Error("inline SVG should not carry an XML declaration")
	}
	if !strings.Contains(body, "<h2>Draw a cat</h2>") {
		t.Error("expected rendered task brief")
	}
	if !strings.Contains(body, "suggestion_accepted") {
		t.Error("expected session timeline")
	}
	if !strings.Contains(body, "50%") {
		t.Error("expected accepted share of 50%")
	}
}

func TestHandleDetail_JSON(t *testing.T) {
	h := setupTest(t)
	id := seedDrawing(t, h, "json-cat", drawing.TaskCat, drawing.HumanPlusAI, "s1")

	rec := get(h.HandleDetail, "/drawings/"+id, id, map[string]string{"Accept": "application/json"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if resp["id"] != id {
		t.Errorf("id = %v, want %s", resp["id"], id)
	}
	doc, ok := resp["scene"].(map[string]any)
	if !ok {
		t.Fatal("expected scene object")
	}
	if shapes, _ := doc["shapes"].([]any); len(shapes) != 2 {
		t.Errorf("scene shapes = %d, want 2", len(shapes))
	}
}

func TestHandleDetail_NotFound(t *testing.T) {
	h := setupTest(t)

	rec := get(h.HandleDetail, "/drawings/NONEXISTENT", "NONEXISTENT", nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDetail_EmptyID(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/drawings/", nil)
	req.SetPathValue("id", "")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// --- HandleSVG / HandleDownload ---

func TestHandleSVG(t *testing.T) {
	h := setupTest(t)
	id := seedDrawing(t, h, "svg-cat", drawing.TaskCat, drawing.HumanPlusAI, "s1")

	rec := get(h.HandleSVG, "/drawings/"+id+"/svg", id, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/svg+xml" {
		t.Errorf("Content-Type = %q, want image/svg+xml", got)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "<?xml") || !strings.Contains(body, "<svg") {
		t.Errorf("body = %.40q, want an svg document", body)
	}
}

func TestHandleDownload(t *testing.T) {
	h := setupTest(t)
	id := seedDrawing(t, h, "dl-cat", drawing.TaskCat, drawing.HumanPlusAI, "s1")

	tests := []struct {
		format      string
		contentType string
		ext         string
	}{
		{"", "application/json", ".json"},
		{"svg", "image/svg+xml", ".svg"},
		{"pdf", "application/pdf", ".pdf"},
		{"png", "image/png", ".png"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			rec := get(h.HandleDownload, "/drawings/"+id+"/download?format="+tt.format, id, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", got, tt.contentType)
			}
			want := `attachment; filename="` + id + tt.ext + `"`
			if got := rec.Header().Get("Content-Disposition"); got != want {
				t.Errorf("Content-Disposition = %q, want %q", got, want)
			}
			if rec.Body.Len() == 0 {
				t.Error("empty body")
			}
		})
	}
}

func TestHandleDownload_BadFormat(t *testing.T) {
	h := setupTest(t)
	id := seedDrawing(t, h, "dl-cat", drawing.TaskCat, drawing.HumanPlusAI, "s1")

	rec := get(h.HandleDownload, "/drawings/"+id+"/download?format=gif", id, nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// --- HandleDelete ---

func TestHandleDelete_HtmxRequest(t *testing.T) {
	h := setupTest(t)
	id := seedDrawing(t, h, "del-htmx", drawing.TaskFree, drawing.HumanOnly, "s1")

	req := httptest.NewRequest("DELETE", "/drawings/"+id, nil)
	req.SetPathValue("id", id)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("HX-Redirect"); got != "/drawings" {
		t.Errorf("HX-Redirect = %q, want /drawings", got)
	}
}

func TestHandleDelete_JSONRequest(t *testing.T) {
	h := setupTest(t)
	id := seedDrawing(t, h, "del-json", drawing.TaskFree, drawing.HumanOnly, "s1")

	req := httptest.NewRequest("DELETE", "/drawings/"+id, nil)
	req.SetPathValue("id", id)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if resp["deleted"] != true || resp["id"] != id {
		t.Errorf("response = %v", resp)
	}

	// Soft-deleted drawings stay reachable with include_deleted.
	rec = get(h.HandleDetail, "/drawings/"+id, id, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("detail after delete status = %d, want 404", rec.Code)
	}
	rec = get(h.HandleDetail, "/drawings/"+id+"?include_deleted=true", id, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("detail with include_deleted status = %d, want 200", rec.Code)
	}
}

func TestHandleDelete_DefaultRedirect(t *testing.T) {
	h := setupTest(t)
	id := seedDrawing(t, h, "del-redirect", drawing.TaskFree, drawing.HumanOnly, "s1")

	req := httptest.NewRequest("DELETE", "/drawings/"+id, nil)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/drawings" {
		t.Errorf("Location = %q, want /drawings", got)
	}
}

func TestHandleDelete_NotFound(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("DELETE", "/drawings/NONEXISTENT", nil)
	req.SetPathValue("id", "NONEXISTENT")
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

// --- HandlePurge ---

func postPurge(h *Handlers, form url.Values, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/drawings/purge", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.HandlePurge(rec, req)
	return rec
}

func TestHandlePurge_MissingConfirm(t *testing.T) {
	h := setupTest(t)

	rec := postPurge(h, url.Values{}, nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlePurge_JSONResponse(t *testing.T) {
	h := setupTest(t)
	id := seedDrawing(t, h, "purge-me", drawing.TaskFree, drawing.HumanOnly, "s1")
	if _, err := ops.Delete(context.Background(), h.db, ops.DeleteInput{ID: id}); err != nil {
		t.Fatal(err)
	}

	rec := postPurge(h, url.Values{"confirm": {"true"}}, map[string]string{"Accept": "application/json"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if resp["purged"] != float64(1) {
		t.Errorf("purged = %v, want 1", resp["purged"])
	}
}

func TestHandlePurge_HtmxResponse(t *testing.T) {
	h := setupTest(t)

	rec := postPurge(h, url.Values{"confirm": {"true"}}, map[string]string{"HX-Request": "true"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `class="purge-result"`) {
		t.Errorf("body = %q, want purge-result fragment", rec.Body.String())
	}
}

func TestHandlePurge_InvalidOlderThanDays(t *testing.T) {
	h := setupTest(t)

	rec := postPurge(h, url.Values{"confirm": {"true"}, "older_than_days": {"soon"}}, nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// --- HandleSession ---

func TestHandleSession_NoSession(t *testing.T) {
	h := setupTest(t)

	rec := get(h.HandleSession, "/session", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No live session") {
		t.Error("expected inactive session message")
	}
}

func TestHandleSession_Live(t *testing.T) {
	h := setupTest(t)
	h.sess = session.New(session.WithID("live-1"), session.WithConfig(h.cfg))
	t.Cleanup(h.sess.Close)
	if err := h.sess.Configure(drawing.TaskCastle, drawing.HumanOnly); err != nil {
		t.Fatal(err)
	}
	add := history.NewAddShape(scene.Shape{
		Kind:   scene.KindRectangle,
		Points: []geometry.Point{{X: 10, Y: 10}, {X: 90, Y: 60}},
		Style:  scene.Style{Stroke: "#000000", Width: 2},
	})
	if err := h.sess.Engine().Execute(add); err != nil {
		t.Fatal(err)
	}

	rec := get(h.HandleSession, "/session", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"live-1", "castle", "H_ONLY", `data-id="` + add.Shape().ID + `"`, "Draw a castle"} {
		if !strings.Contains(body, want) {
			t.Errorf("session page missing %q", want)
		}
	}

	rec = get(h.HandleSession, "/session", "", map[string]string{"Accept": "application/json"})
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if resp["session_id"] != "live-1" || resp["undo_depth"] != float64(1) {
		t.Errorf("response = %v", resp)
	}
}

// --- Server wiring ---

func TestNewServer_Routes(t *testing.T) {
	h := setupTest(t)
	id := seedDrawing(t, h, "routed", drawing.TaskCar, drawing.HumanPlusAI, "s1")

	srv := NewServer(h.db, h.cfg, nil, NewHub(), "test", "127.0.0.1", 0)
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/drawings" {
		t.Errorf("GET / = %d %q, want redirect to /drawings", resp.StatusCode, resp.Header.Get("Location"))
	}
	if resp.Header.Get("X-Frame-Options") != "DENY" {
		t.Error("missing security headers")
	}

	for _, path := range []string{"/drawings", "/drawings/" + id, "/drawings/" + id + "/svg", "/session", "/static/style.css", "/static/live.js"} {
		resp, err := client.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

// --- Helper functions ---

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=abc", 20},
		{"limit=-1", -1},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/drawings?"+tt.query, nil)
		if got := parseIntParam(req, "limit", 20); got != tt.want {
			t.Errorf("parseIntParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestParseBoolParam(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"", false},
		{"include_deleted=true", true},
		{"include_deleted=1", true},
		{"include_deleted=yes", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/drawings?"+tt.query, nil)
		if got := parseBoolParam(req, "include_deleted"); got != tt.want {
			t.Errorf("parseBoolParam(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := displayName(stringPtr("castle"), "01ABCDEFGHIJK"); got != "castle" {
		t.Errorf("displayName = %q, want castle", got)
	}
	if got := displayName(nil, "01ABCDEFGHIJK"); got != "01ABCDEFGH..." {
		t.Errorf("displayName = %q, want truncated id", got)
	}
	if got := displayName(stringPtr(""), "short"); got != "short" {
		t.Errorf("displayName = %q, want short", got)
	}
}

func TestTaskBrief_FallsBackToFree(t *testing.T) {
	got := string(taskBrief("unknown"))
	if !strings.Contains(got, "Free drawing") {
		t.Errorf("taskBrief(unknown) = %q, want the free brief", got)
	}
}

func TestFormatPayload(t *testing.T) {
	got := formatPayload(map[string]any{"label": "ears", "version": 3})
	if got != `"label"="ears","version"=3` {
		t.Errorf("formatPayload = %q", got)
	}
	if formatPayload(nil) != "" {
		t.Error("formatPayload(nil) should be empty")
	}
}
