package web

import (
	"bytes"
	"database/sql"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/haiilab/sketchlab/internal/config"
	"github.com/haiilab/sketchlab/internal/drawing"
	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/export"
	"github.com/haiilab/sketchlab/internal/ops"
	"github.com/haiilab/sketchlab/internal/scene"
	"github.com/haiilab/sketchlab/internal/session"
)

// timelineLimit caps the events shown on a drawing's detail page.
const timelineLimit = 200

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	sess     *session.Session // nil when no live session is attached
	renderer *Renderer
}

// HandleList handles GET /drawings - list stored drawings.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := ops.ListInput{
		Task:           q.Get("task"),
		Condition:      q.Get("condition"),
		SessionID:      q.Get("session_id"),
		Limit:          parseIntParam(r, "limit", 20),
		Offset:         parseIntParam(r, "offset", 0),
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	}

	result, err := ops.List(r.Context(), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Drawings",
			Version: h.renderer.version,
			Nav:     "drawings",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
		Tasks:      drawing.Tasks,
		Task:       input.Task,
		Condition:  input.Condition,
		SessionID:  input.SessionID,
		Deleted:    input.IncludeDeleted,
	})
}

// HandleDetail handles GET /drawings/{id} - a drawing with its stats and
// the interaction timeline of the session that produced it.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	out, ok := h.load(w, r)
	if !ok {
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, out)
		return
	}

	svg, err := h.inlineSVG(out.Scene)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	timeline, err := ops.Events(r.Context(), h.db, ops.EventsInput{
		SessionID: out.SessionID,
		Limit:     timelineLimit,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	name := displayName(out.Name, out.ID)
	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   name,
			Version: h.renderer.version,
			Nav:     "drawings",
		},
		Drawing:     out,
		DisplayName: name,
		SVG:         svg,
		Brief:       taskBrief(out.Task),
		Accepted:    fmt.Sprintf("%.0f%%", out.Stats.AcceptedShare()*100),
		Events:      timeline.Items,
		MoreEvents:  timeline.HasMore,
	})
}

// HandleSVG handles GET /drawings/{id}/svg - the drawing as a standalone image.
func (h *Handlers) HandleSVG(w http.ResponseWriter, r *http.Request) {
	out, ok := h.load(w, r)
	if !ok {
		return
	}
	h.writeExport(w, r, out, export.SVG, false)
}

// HandleDownload handles GET /drawings/{id}/download?format= - the drawing
// as an attachment in any export format.
func (h *Handlers) HandleDownload(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	out, ok := h.load(w, r)
	if !ok {
		return
	}
	h.writeExport(w, r, out, format, true)
}

// HandleDelete handles DELETE /drawings/{id} - soft-delete a drawing.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("drawing ID is required"))
		return
	}

	result, err := ops.Delete(r.Context(), h.db, ops.DeleteInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/drawings")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/drawings", http.StatusFound)
}

// HandlePurge handles POST /drawings/purge - permanently delete soft-deleted drawings.
func (h *Handlers) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	var input ops.PurgeInput
	if days := r.FormValue("older_than_days"); days != "" {
		d, err := strconv.Atoi(days)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("older_than_days must be an integer"))
			return
		}
		input.OlderThanDays = &d
	}

	result, err := ops.Purge(r.Context(), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="purge-result">` + template.HTMLEscapeString(result.Message) + `</div>`))
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/drawings?include_deleted=true", http.StatusFound)
}

// HandleSession handles GET /session - the state of the attached live session.
// Updates arrive over the /live websocket.
func (h *Handlers) HandleSession(w http.ResponseWriter, r *http.Request) {
	data := SessionPageData{
		PageData: PageData{
			Title:   "Live session",
			Version: h.renderer.version,
			Nav:     "session",
		},
	}
	if h.sess == nil {
		h.renderer.renderPage(w, r, "session", data)
		return
	}

	sc := scene.New()
	sc.Restore(h.sess.Engine().Snapshot())
	svg, err := h.inlineSVG(sc)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	layer := h.sess.Suggestions()
	layer.Sweep()

	data.Active = true
	data.SessionID = h.sess.ID()
	data.Task = h.sess.Task()
	data.Condition = h.sess.Condition()
	data.Tool = string(h.sess.Tools().Tool())
	data.Undo, data.Redo = h.sess.Engine().Depth()
	data.Version = h.sess.Engine().Version()
	data.SVG = svg
	data.Brief = taskBrief(data.Task)
	data.Suggestions = layer.Pending()
	data.Auto = layer.Auto()

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"session_id":  data.SessionID,
			"task":        data.Task,
			"condition":   data.Condition,
			"tool":        data.Tool,
			"undo_depth":  data.Undo,
			"redo_depth":  data.Redo,
			"version":     data.Version,
			"auto":        data.Auto,
			"suggestions": data.Suggestions,
			"scene":       h.sess.Document(),
		})
		return
	}
	h.renderer.renderPage(w, r, "session", data)
}

// load fetches the drawing named by the {id} path value, rendering any error.
func (h *Handlers) load(w http.ResponseWriter, r *http.Request) (*ops.LoadOutput, bool) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("drawing ID is required"))
		return nil, false
	}
	out, err := ops.Load(r.Context(), h.db, ops.LoadInput{
		ID:             id,
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return nil, false
	}
	return out, true
}

func (h *Handlers) inlineSVG(sc *scene.Scene) (template.HTML, error) {
	var buf bytes.Buffer
	if err := export.Write(&buf, sc, export.SVG, ops.ExportOptions(h.cfg)); err != nil {
		return "", err
	}
	// The encoder escapes every attribute and only emits validated colours.
	// The XML declaration is dropped for embedding in the page.
	doc := buf.String()
	if i := strings.Index(doc, "<svg"); i > 0 {
		doc = doc[i:]
	}
	return template.HTML(doc), nil
}

func (h *Handlers) writeExport(w http.ResponseWriter, r *http.Request, out *ops.LoadOutput, format export.Format, attachment bool) {
	var buf bytes.Buffer
	if err := export.Write(&buf, out.Scene, format, ops.ExportOptions(h.cfg)); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType(format))
	if attachment {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s%s"`, out.ID, format.Ext()))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func contentType(f export.Format) string {
	switch f {
	case export.SVG:
		return "image/svg+xml"
	case export.PDF:
		return "application/pdf"
	case export.PNG:
		return "image/png"
	default:
		return "application/json"
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}

// displayName returns the drawing name if present, or a truncated ID.
func displayName(name *string, id string) string {
	if name != nil && *name != "" {
		return *name
	}
	if len(id) > 10 {
		return id[:10] + "..."
	}
	return id
}
