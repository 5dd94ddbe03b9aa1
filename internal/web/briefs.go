package web

import (
	"embed"
	"html/template"

	"github.com/haiilab/sketchlab/internal/drawing"
)

//go:embed briefs/*.md
var briefFS embed.FS

// taskBrief renders the markdown brief shown next to a drawing of task.
// Unknown tasks fall back to the free-drawing brief.
func taskBrief(task string) template.HTML {
	data, err := briefFS.ReadFile("briefs/" + task + ".md")
	if err != nil {
		data, err = briefFS.ReadFile("briefs/" + drawing.TaskFree + ".md")
		if err != nil {
			return ""
		}
	}
	return renderMarkdown(string(data))
}
