package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/haiilab/sketchlab/internal/drawing"
	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/events"
	"github.com/haiilab/sketchlab/internal/scene"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestDrawing(id, task, condition string, updatedAt int64) *drawing.Drawing {
	return &drawing.Drawing{
		ID:         id,
		SessionID:  "session-1",
		Task:       task,
		Condition:  condition,
		SceneJSON:  `{"version":1,"shapes":[]}`,
		ShapeCount: 0,
		CreatedAt:  updatedAt,
		UpdatedAt:  updatedAt,
	}
}

func intPtr(i int) *int { return &i }

func TestUpsertAndGetDrawing(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	name := "First Cat"
	d := newTestDrawing("01DRAW001", drawing.TaskCat, drawing.HumanPlusAI, 1000)
	d.Name = &name
	d.NameNorm = drawing.NormalizeName(&name)
	d.Rating = intPtr(4)

	if err := UpsertDrawing(ctx, db, d); err != nil {
		t.Fatalf("UpsertDrawing failed: %v", err)
	}

	got, err := GetDrawing(ctx, db, d.ID, false)
	if err != nil {
		t.Fatalf("GetDrawing failed: %v", err)
	}
	if got.Name == nil || *got.Name != "First Cat" {
		t.Errorf("Name = %v, want First Cat", got.Name)
	}
	if got.NameNorm == nil || *got.NameNorm != "first cat" {
		t.Errorf("NameNorm = %v, want first cat", got.NameNorm)
	}
	if got.Rating == nil || *got.Rating != 4 {
		t.Errorf("Rating = %v, want 4", got.Rating)
	}
	if got.Task != drawing.TaskCat || got.Condition != drawing.HumanPlusAI {
		t.Errorf("Task/Condition = %s/%s", got.Task, got.Condition)
	}
	if got.DeletedAt != nil {
		t.Errorf("DeletedAt = %v, want nil", *got.DeletedAt)
	}
}

func TestUpsertDrawing_ReplacesAndKeepsCreatedAt(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	d := newTestDrawing("01DRAW002", drawing.TaskCar, drawing.HumanOnly, 1000)
	if err := UpsertDrawing(ctx, db, d); err != nil {
		t.Fatalf("UpsertDrawing failed: %v", err)
	}
	if err := SoftDeleteDrawing(ctx, db, d.ID); err != nil {
		t.Fatalf("SoftDeleteDrawing failed: %v", err)
	}

	d.ShapeCount = 3
	d.CreatedAt = 5000
	d.UpdatedAt = 5000
	if err := UpsertDrawing(ctx, db, d); err != nil {
		t.Fatalf("second UpsertDrawing failed: %v", err)
	}

	got, err := GetDrawing(ctx, db, d.ID, false)
	if err != nil {
		t.Fatalf("GetDrawing failed: %v", err)
	}
	if got.ShapeCount != 3 {
		t.Errorf("ShapeCount = %d, want 3", got.ShapeCount)
	}
	if got.CreatedAt != 1000 {
		t.Errorf("CreatedAt = %d, want 1000", got.CreatedAt)
	}
	if got.UpdatedAt != 5000 {
		t.Errorf("UpdatedAt = %d, want 5000", got.UpdatedAt)
	}
}

func TestGetDrawing_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := GetDrawing(context.Background(), db, "missing", false)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

func TestSoftDeleteDrawing(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	d := newTestDrawing("01DRAW003", drawing.TaskCastle, drawing.HumanPlusAI, 1000)
	if err := UpsertDrawing(ctx, db, d); err != nil {
		t.Fatal(err)
	}
	if err := SoftDeleteDrawing(ctx, db, d.ID); err != nil {
		t.Fatalf("SoftDeleteDrawing failed: %v", err)
	}

	if _, err := GetDrawing(ctx, db, d.ID, false); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetDrawing after delete err = %v, want NOT_FOUND", err)
	}
	got, err := GetDrawing(ctx, db, d.ID, true)
	if err != nil {
		t.Fatalf("GetDrawing(includeDeleted) failed: %v", err)
	}
	if got.DeletedAt == nil {
		t.Error("DeletedAt = nil, want set")
	}

	if err := SoftDeleteDrawing(ctx, db, d.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second delete err = %v, want NOT_FOUND", err)
	}
}

func TestListDrawings_FiltersAndPagination(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	fixtures := []*drawing.Drawing{
		newTestDrawing("A", drawing.TaskCat, drawing.HumanOnly, 100),
		newTestDrawing("B", drawing.TaskCat, drawing.HumanPlusAI, 200),
		newTestDrawing("C", drawing.TaskCar, drawing.HumanPlusAI, 300),
		newTestDrawing("D", drawing.TaskCat, drawing.HumanPlusAI, 400),
	}
	for _, d := range fixtures {
		if err := UpsertDrawing(ctx, db, d); err != nil {
			t.Fatal(err)
		}
	}
	if err := SoftDeleteDrawing(ctx, db, "D"); err != nil {
		t.Fatal(err)
	}

	items, total, err := ListDrawings(ctx, db, DrawingFilter{}, 2, 0)
	if err != nil {
		t.Fatalf("ListDrawings failed: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(items) != 2 || items[0].ID != "C" || items[1].ID != "B" {
		t.Errorf("page 1 = %v, want [C B]", ids(items))
	}

	items, _, err = ListDrawings(ctx, db, DrawingFilter{}, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != "A" {
		t.Errorf("page 2 = %v, want [A]", ids(items))
	}

	items, total, err = ListDrawings(ctx, db, DrawingFilter{Task: drawing.TaskCat, Condition: drawing.HumanPlusAI, IncludeDeleted: true}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(items) != 2 || items[0].ID != "D" {
		t.Errorf("filtered = %v (total %d), want [D B]", ids(items), total)
	}
}

func ids(items []drawing.Summary) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestPurgeDeleted(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"P1", "P2", "P3"} {
		if err := UpsertDrawing(ctx, db, newTestDrawing(id, drawing.TaskFree, drawing.HumanOnly, 1)); err != nil {
			t.Fatal(err)
		}
	}
	for _, id := range []string{"P1", "P2"} {
		if err := SoftDeleteDrawing(ctx, db, id); err != nil {
			t.Fatal(err)
		}
	}

	days := 7
	n, err := PurgeDeleted(ctx, db, &days)
	if err != nil {
		t.Fatalf("PurgeDeleted failed: %v", err)
	}
	if n != 0 {
		t.Errorf("purged recent = %d, want 0", n)
	}

	n, err = PurgeDeleted(ctx, db, nil)
	if err != nil {
		t.Fatalf("PurgeDeleted failed: %v", err)
	}
	if n != 2 {
		t.Errorf("purged = %d, want 2", n)
	}
	if _, err := GetDrawing(ctx, db, "P3", false); err != nil {
		t.Errorf("live drawing purged: %v", err)
	}
}

func TestJournal(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	j := NewJournal(db)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	write := func(session string, typ events.Type, prov scene.Provenance, payload map[string]any) {
		t.Helper()
		err := j.Write(events.Event{
			SessionID: session, At: at, Type: typ, Provenance: prov,
			Condition: drawing.HumanPlusAI, Task: drawing.TaskCat, Payload: payload,
		})
		if err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	write("s1", events.CommandExecuted, scene.Manual, map[string]any{"label": "add rectangle"})
	write("s2", events.CommandExecuted, scene.Manual, nil)
	write("s1", events.SuggestionAccepted, scene.AIAccepted, map[string]any{"decision_ms": 1500})
	write("s1", events.CommandUndone, scene.AIAccepted, nil)

	got, err := ListEvents(ctx, db, EventFilter{SessionID: "s1"})
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Seq >= got[1].Seq || got[1].Seq >= got[2].Seq {
		t.Errorf("seqs not increasing: %d %d %d", got[0].Seq, got[1].Seq, got[2].Seq)
	}
	if !got[1].At.Equal(at) {
		t.Errorf("At = %v, want %v", got[1].At, at)
	}
	if got[1].Provenance != scene.AIAccepted {
		t.Errorf("Provenance = %s, want ai_accepted", got[1].Provenance)
	}
	if got[1].Payload["decision_ms"] != float64(1500) {
		t.Errorf("payload = %v", got[1].Payload)
	}

	got, err = ListEvents(ctx, db, EventFilter{Types: []events.Type{events.CommandExecuted}, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].SessionID != "s1" {
		t.Errorf("typed+limited = %+v", got)
	}

	after := got[0].Seq
	got, err = ListEvents(ctx, db, EventFilter{AfterSeq: after})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("after seq %d: len = %d, want 3", after, len(got))
	}

	n, err := CountEvents(ctx, db, "s2")
	if err != nil || n != 1 {
		t.Errorf("CountEvents(s2) = %d, %v; want 1", n, err)
	}
}
