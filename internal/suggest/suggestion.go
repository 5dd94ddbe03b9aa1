// Package suggest integrates AI suggestion sources with the editor.
//
// Sources only propose. Proposals become Suggestions owned by the Layer,
// and reach the scene solely through Accept, which executes one composite
// command on the history engine.
package suggest

import (
	"context"
	"fmt"
	"time"

	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/geometry"
	"github.com/haiilab/sketchlab/internal/scene"
)

// State is the lifecycle position of a suggestion.
type State string

const (
	Proposed State = "proposed"
	Accepted State = "accepted"
	Rejected State = "rejected"
	Expired  State = "expired"
)

// Mode is how a suggestion was requested.
type Mode string

const (
	Panel    Mode = "panel"    // batch of pre-made elements
	Floating Mode = "floating" // on-demand assistant near the cursor
	Auto     Mode = "auto"     // reactive, after the user pauses
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Panel, Floating, Auto:
		return Mode(s), nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("unknown suggestion mode %q", s))
}

// RejectReason explains a rejection.
type RejectReason string

const (
	Ignore   RejectReason = "ignore"   // dismissed
	Override RejectReason = "override" // user drew their own version
	Cancel   RejectReason = "cancel"   // closed the assistant
)

// ParseRejectReason validates a reason, defaulting to ignore.
func ParseRejectReason(s string) (RejectReason, error) {
	switch RejectReason(s) {
	case "":
		return Ignore, nil
	case Ignore, Override, Cancel:
		return RejectReason(s), nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("unknown reject reason %q", s))
}

// Proposal is what a source returns. Shapes are in canvas coordinates.
type Proposal struct {
	TemplateID  string        `json:"template_id,omitempty"`
	Label       string        `json:"label"`
	Shapes      []scene.Shape `json:"shapes"`
	Grouped     bool          `json:"grouped,omitempty"` // accept as one group shape
	Score       float64       `json:"score"`
	Uncertainty int           `json:"uncertainty_pct,omitempty"`
	Explanation []string      `json:"explanation,omitempty"`
	Advice      string        `json:"advice,omitempty"`
}

// MaxExplanation bounds the explanation factors shown to the subject.
const MaxExplanation = 3

// Suggestion is a proposal tracked through its lifecycle.
type Suggestion struct {
	Proposal
	ID             string       `json:"id"`
	Mode           Mode         `json:"mode"`
	Source         string       `json:"source"`
	State          State        `json:"state"`
	Reason         RejectReason `json:"reason,omitempty"`
	ContextVersion uint64       `json:"context_version"`
	CreatedAt      time.Time    `json:"created_at"`
	ResolvedAt     time.Time    `json:"resolved_at,omitzero"`
	AcceptedIDs    []string     `json:"accepted_ids,omitempty"`
}

// DecisionLatency is the time from proposal to resolution.
func (s Suggestion) DecisionLatency() time.Duration {
	if s.ResolvedAt.IsZero() {
		return 0
	}
	return s.ResolvedAt.Sub(s.CreatedAt)
}

func (s Suggestion) clone() Suggestion {
	out := s
	out.Shapes = cloneShapes(s.Shapes)
	out.Explanation = append([]string(nil), s.Explanation...)
	out.AcceptedIDs = append([]string(nil), s.AcceptedIDs...)
	return out
}

// Context is everything a source may look at.
type Context struct {
	Mode          Mode           `json:"mode"`
	Task          string         `json:"task"`
	Category      string         `json:"category,omitempty"`
	Prompt        string         `json:"prompt,omitempty"`
	Anchor        geometry.Point `json:"anchor"`
	Canvas        geometry.Rect  `json:"canvas"`
	Shapes        []scene.Shape  `json:"shapes"`
	Version       uint64         `json:"version"`
	RecentActions []string       `json:"recent_actions,omitempty"`
	Suppressed    []string       `json:"suppressed,omitempty"`
}

// IsSuppressed reports whether a template was auto-rejected this session.
func (c Context) IsSuppressed(templateID string) bool {
	for _, id := range c.Suppressed {
		if id == templateID {
			return true
		}
	}
	return false
}

// Request asks for suggestions in one mode.
type Request struct {
	Mode     Mode            `json:"mode"`
	Category string          `json:"category,omitempty"` // panel category
	Prompt   string          `json:"prompt,omitempty"`   // floating free text
	Anchor   *geometry.Point `json:"anchor,omitempty"`   // defaults to the canvas centre
}

// Result is the outcome of a request. It never carries an error: failures
// leave Suggestions empty and explain themselves in Notice.
type Result struct {
	Mode        Mode         `json:"mode"`
	Suggestions []Suggestion `json:"suggestions"`
	Notice      string       `json:"notice,omitempty"`
	Stale       bool         `json:"stale,omitempty"`
}

// Source produces proposals for a context. Implementations must honour ctx.
type Source interface {
	Name() string
	Generate(ctx context.Context, c Context) ([]Proposal, error)
}

func cloneShapes(in []scene.Shape) []scene.Shape {
	if in == nil {
		return nil
	}
	out := make([]scene.Shape, len(in))
	for i, sh := range in {
		out[i] = sh.Clone()
	}
	return out
}

// withProvenance returns fresh copies (no ids) stamped with p, children included.
func withProvenance(in []scene.Shape, p scene.Provenance) []scene.Shape {
	out := make([]scene.Shape, len(in))
	for i, sh := range in {
		cp := sh.Fresh()
		stamp(&cp, p)
		out[i] = cp
	}
	return out
}

func stamp(sh *scene.Shape, p scene.Provenance) {
	sh.Provenance = p
	for i := range sh.Children {
		stamp(&sh.Children[i], p)
	}
}
