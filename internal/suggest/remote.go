package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/haiilab/sketchlab/internal/llm"
	"github.com/haiilab/sketchlab/internal/scene"
)

// wireProposal is the JSON exchanged with remote sources.
type wireProposal struct {
	TemplateID  string         `json:"template_id"`
	Label       string         `json:"label"`
	Shapes      []scene.Record `json:"shapes"`
	Grouped     bool           `json:"grouped"`
	Score       float64        `json:"score"`
	Uncertainty int            `json:"uncertainty_pct"`
	Explanation []string       `json:"explanation"`
	Advice      string         `json:"advice"`
}

// wireContext is what remote sources see of the drawing.
type wireContext struct {
	Mode          Mode           `json:"mode"`
	Task          string         `json:"task"`
	Category      string         `json:"category,omitempty"`
	Prompt        string         `json:"prompt,omitempty"`
	Anchor        [2]float64     `json:"anchor"`
	Canvas        [2]float64     `json:"canvas"`
	Shapes        []scene.Record `json:"shapes"`
	RecentActions []string       `json:"recent_actions,omitempty"`
	Suppressed    []string       `json:"suppressed,omitempty"`
}

func toWire(c Context) wireContext {
	w := wireContext{
		Mode:          c.Mode,
		Task:          c.Task,
		Category:      c.Category,
		Prompt:        c.Prompt,
		Anchor:        [2]float64{c.Anchor.X, c.Anchor.Y},
		Canvas:        [2]float64{c.Canvas.Width, c.Canvas.Height},
		Shapes:        make([]scene.Record, len(c.Shapes)),
		RecentActions: c.RecentActions,
		Suppressed:    c.Suppressed,
	}
	for i, sh := range c.Shapes {
		w.Shapes[i] = scene.ToRecord(sh)
	}
	return w
}

// parseProposals extracts a JSON array of proposals from free text. Entries
// with invalid geometry are dropped; an unparseable reply is an error.
func parseProposals(text string, logger *slog.Logger) ([]Proposal, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("reply contains no JSON array")
	}
	var wire []wireProposal
	if err := json.Unmarshal([]byte(text[start:end+1]), &wire); err != nil {
		return nil, fmt.Errorf("parse proposals: %w", err)
	}

	out := make([]Proposal, 0, len(wire))
next:
	for i, w := range wire {
		p := Proposal{
			TemplateID:  w.TemplateID,
			Label:       w.Label,
			Grouped:     w.Grouped,
			Score:       w.Score,
			Uncertainty: w.Uncertainty,
			Explanation: w.Explanation,
			Advice:      w.Advice,
		}
		for _, r := range w.Shapes {
			sh := r.ToShape()
			if err := sh.Validate(); err != nil {
				logger.Debug("suggest.proposal_dropped", "index", i, "error", err)
				continue next
			}
			p.Shapes = append(p.Shapes, sh)
		}
		if len(p.Shapes) > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

const llmSystemPrompt = `You help a person sketch simple drawings (a cat, a castle or a car) on a canvas.
You receive the current drawing as JSON. Propose at most 3 additions that would help complete it.
Reply with a JSON array only. Each element has:
  "template_id": short stable id, "label": short text,
  "shapes": array of {"type": "stroke"|"line"|"rectangle"|"ellipse"|"triangle", "points": [{"x":..,"y":..}], "style": {"stroke":"#000000","width":2,"fill":"none"}},
  "grouped": true if the shapes form one element, "score": 0..1, "uncertainty_pct": 0..100,
  "explanation": up to 3 short reasons, "advice": one sentence.
Rectangles and ellipses take 2 corner points, lines 2 endpoints, triangles 3 vertices.
Never repeat an element whose template_id is listed in "suppressed". Reply [] to abstain.`

// LLMSource asks a language model for proposals.
type LLMSource struct {
	client  llm.Client
	retries int
	logger  *slog.Logger
}

func NewLLMSource(client llm.Client, retries int, logger *slog.Logger) *LLMSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMSource{client: client, retries: retries, logger: logger}
}

func (s *LLMSource) Name() string { return "llm" }

func (s *LLMSource) Generate(ctx context.Context, c Context) ([]Proposal, error) {
	payload, err := json.Marshal(toWire(c))
	if err != nil {
		return nil, err
	}
	resp, err := s.client.CompleteWithRetry(ctx, llmSystemPrompt, []llm.Message{
		{Role: "user", Content: string(payload)},
	}, s.retries, nil)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("suggest.llm_reply", "model", resp.Model, "input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens, "duration_ms", resp.Duration.Milliseconds())
	if resp.WasTruncated() {
		return nil, fmt.Errorf("model reply truncated")
	}
	return parseProposals(resp.Content, s.logger)
}

// ToolCaller is the subset of an MCP client used by MCPSource.
type ToolCaller interface {
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// MCPSource calls a tool on an external MCP server. The tool receives the
// drawing context as arguments and returns a JSON proposal array as text.
type MCPSource struct {
	caller ToolCaller
	tool   string
	logger *slog.Logger
}

func NewMCPSource(caller ToolCaller, tool string, logger *slog.Logger) *MCPSource {
	if tool == "" {
		tool = "suggest_shapes"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MCPSource{caller: caller, tool: tool, logger: logger}
}

func (s *MCPSource) Name() string { return "mcp:" + s.tool }

func (s *MCPSource) Generate(ctx context.Context, c Context) ([]Proposal, error) {
	raw, err := json.Marshal(toWire(c))
	if err != nil {
		return nil, err
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = s.tool
	req.Params.Arguments = args

	res, err := s.caller.CallTool(ctx, req)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, content := range res.Content {
		if tc, ok := mcp.AsTextContent(content); ok {
			text.WriteString(tc.Text)
		}
	}
	if res.IsError {
		return nil, fmt.Errorf("tool %s failed: %s", s.tool, text.String())
	}
	return parseProposals(text.String(), s.logger)
}

// FailoverSource tries each source in turn and returns the first success.
// An empty but successful answer is final: the source chose to abstain.
type FailoverSource struct {
	sources []Source
}

func NewFailoverSource(sources ...Source) *FailoverSource {
	return &FailoverSource{sources: sources}
}

func (f *FailoverSource) Name() string {
	names := make([]string, len(f.sources))
	for i, s := range f.sources {
		names[i] = s.Name()
	}
	return strings.Join(names, ">")
}

func (f *FailoverSource) Generate(ctx context.Context, c Context) ([]Proposal, error) {
	var errs []string
	for _, s := range f.sources {
		ps, err := s.Generate(ctx, c)
		if err == nil {
			return ps, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, s.Name()+": "+err.Error())
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}
	return nil, fmt.Errorf("all sources failed: %s", strings.Join(errs, "; "))
}
