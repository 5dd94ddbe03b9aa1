package session

import (
	"github.com/haiilab/sketchlab/internal/events"
	"github.com/haiilab/sketchlab/internal/history"
	"github.com/haiilab/sketchlab/internal/scene"
	"github.com/haiilab/sketchlab/internal/suggest"
	"github.com/haiilab/sketchlab/internal/tool"
)

var changeTypes = map[history.Action]events.Type{
	history.Executed: events.CommandExecuted,
	history.Undone:   events.CommandUndone,
	history.Redone:   events.CommandRedone,
}

func (s *Session) onChange(c history.Change) {
	s.publish(changeTypes[c.Action], c.Command.Provenance(), map[string]any{
		"label":     c.Command.Label(),
		"shape_ids": c.Command.ShapeIDs(),
		"version":   c.Version,
	})
}

func (s *Session) onActivity(a tool.Activity) {
	payload := map[string]any{"tool": string(a.Tool)}
	if len(a.ShapeIDs) > 0 {
		payload["shape_ids"] = a.ShapeIDs
	}
	s.publish(events.Type(a.Name), scene.Manual, payload)
}

func (s *Session) onTransition(tr suggest.Transition) {
	payload := map[string]any{"mode": string(tr.Mode)}
	if tr.Notice != "" {
		payload["notice"] = tr.Notice
	}

	var prov scene.Provenance
	if sg := tr.Suggestion; sg.ID != "" {
		prov = scene.AIGenerated
		payload["suggestion_id"] = sg.ID
		payload["source"] = sg.Source
		payload["label"] = sg.Label
		payload["score"] = sg.Score
		if sg.TemplateID != "" {
			payload["template_id"] = sg.TemplateID
		}
		if sg.Uncertainty > 0 {
			payload["uncertainty_pct"] = sg.Uncertainty
		}
		if len(sg.Explanation) > 0 {
			payload["explanation"] = sg.Explanation
		}
		if sg.Reason != "" {
			payload["reason"] = string(sg.Reason)
		}
		if !sg.ResolvedAt.IsZero() {
			payload["decision_ms"] = sg.DecisionLatency().Milliseconds()
		}
		if sg.State == suggest.Accepted {
			prov = scene.AIAccepted
			payload["accepted_ids"] = sg.AcceptedIDs
		}
	}
	s.publish(events.Type(tr.Name), prov, payload)
}

func (s *Session) publish(t events.Type, prov scene.Provenance, payload map[string]any) {
	s.mu.Lock()
	e := events.Event{
		SessionID:  s.id,
		At:         s.now().UTC(),
		Type:       t,
		Provenance: prov,
		Condition:  s.condition,
		Task:       s.task,
		Payload:    payload,
	}
	s.mu.Unlock()
	s.bus.Publish(e)
}
