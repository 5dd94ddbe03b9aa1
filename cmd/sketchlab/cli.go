package main

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/haiilab/sketchlab/internal/config"
	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/ops"
	"github.com/haiilab/sketchlab/internal/suggest"
	"github.com/haiilab/sketchlab/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "sketchlab",
		Usage:   "Sketching sessions with optional AI suggestions",
		Version: Version,
		Commands: []*cli.Command{
			listCmd(db),
			showCmd(db),
			latestCmd(db),
			updateCmd(db),
			exportCmd(db, cfg),
			importCmd(db, cfg),
			deleteCmd(db),
			purgeCmd(db),
			eventsCmd(db),
			exportEventsCmd(db, cfg),
			catalogCmd(db, cfg),
			serveCmd(db, cfg),
			discoverCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// listCmd creates the list command.
func listCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored drawings, most recently updated first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "task", Usage: "Filter by task: cat|castle|car|free"},
			&cli.StringFlag{Name: "condition", Usage: "Filter by condition: H_ONLY|H_PLUS_IA"},
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Filter by session id"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted drawings"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, db, ops.ListInput{
				Task:           c.String("task"),
				Condition:      c.String("condition"),
				SessionID:      c.String("session"),
				Limit:          c.Int("limit"),
				Offset:         c.Int("offset"),
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a drawing with its scene and shape statistics",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted drawings"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Load(c.Context, db, ops.LoadInput{
				ID:             c.Args().First(),
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// latestCmd creates the latest command.
func latestCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "latest",
		Usage: "Show the most recently updated drawing",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "task", Usage: "Filter by task"},
			&cli.StringFlag{Name: "condition", Usage: "Filter by condition"},
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Filter by session id"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Latest(c.Context, db, ops.LatestInput{
				SessionID: c.String("session"),
				Task:      c.String("task"),
				Condition: c.String("condition"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// updateCmd creates the update command.
func updateCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Rename or rate a stored drawing",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "New name (empty clears it)"},
			&cli.IntFlag{Name: "rating", Aliases: []string{"r"}, Usage: "Rating from 1 to 5"},
		},
		Action: func(c *cli.Context) error {
			input := ops.UpdateInput{ID: c.Args().First()}
			if c.IsSet("name") {
				name := c.String("name")
				input.Name = &name
			}
			if c.IsSet("rating") {
				rating := c.Int("rating")
				input.Rating = &rating
			}

			output, err := ops.Update(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export a drawing to a file",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "json", Usage: "Output format: json|svg|pdf|png"},
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.sketchlab/exports/<name-or-id>-<timestamp>.<format>)"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted drawings"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ExportDrawing(c.Context, db, cfg, ops.ExportDrawingInput{
				ID:             c.Args().First(),
				Path:           c.String("path"),
				Format:         c.String("format"),
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import a drawing file or a bare scene document",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path (.json)"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace|rename"},
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Session id for bare scene documents"},
			&cli.StringFlag{Name: "task", Usage: "Task for bare scene documents"},
			&cli.StringFlag{Name: "condition", Usage: "Condition for bare scene documents"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(c.Context, db, cfg, ops.ImportInput{
				Path:      c.String("path"),
				Mode:      ops.ImportMode(c.String("mode")),
				SessionID: c.String("session"),
				Task:      c.String("task"),
				Condition: c.String("condition"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Soft-delete a drawing",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Delete(c.Context, db, ops.DeleteInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete soft-deleted drawings",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "older-than", Usage: "Only purge if deleted more than N days ago (e.g., 7d)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.PurgeInput{}
			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThanDays = &days
			}

			output, err := ops.Purge(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// eventsCmd creates the events command.
func eventsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Page through the interaction journal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Filter by session id"},
			&cli.StringFlag{Name: "types", Aliases: []string{"t"}, Usage: "Comma-separated event types"},
			&cli.Int64Flag{Name: "after", Usage: "Resume after this sequence number"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 200, Usage: "Maximum events to return"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Events(c.Context, db, ops.EventsInput{
				SessionID: c.String("session"),
				Types:     parseList(c.String("types")),
				AfterSeq:  c.Int64("after"),
				Limit:     c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// exportEventsCmd creates the export-events command.
func exportEventsCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export-events",
		Usage: "Export the interaction journal to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.sketchlab/exports/<session-or-all>-<timestamp>.jsonl)"},
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Filter by session id"},
			&cli.StringFlag{Name: "types", Aliases: []string{"t"}, Usage: "Comma-separated event types"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ExportEvents(c.Context, db, cfg, ops.ExportEventsInput{
				Path:      c.String("path"),
				SessionID: c.String("session"),
				Types:     parseList(c.String("types")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// catalogEntry is one template as listed by the catalog command.
type catalogEntry struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Label    string `json:"label"`
	Shapes   int    `json:"shapes"`
	Grouped  bool   `json:"grouped,omitempty"`
}

// catalogCmd creates the catalog command.
func catalogCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "List the panel templates (built-in, or catalog_path from config)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Only list one category"},
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Catalog YAML file (overrides config)"},
		},
		Subcommands: []*cli.Command{
			catalogAddCmd(db, cfg),
		},
		Action: func(c *cli.Context) error {
			path := c.String("path")
			if path == "" && cfg != nil {
				path = cfg.CatalogPath
			}
			catalog, err := suggest.LoadCatalog(path)
			if err != nil {
				return outputError(err)
			}

			templates := catalog.Templates
			if category := c.String("category"); category != "" {
				templates = catalog.ByCategory(category)
			}
			entries := make([]catalogEntry, 0, len(templates))
			for _, t := range templates {
				entries = append(entries, catalogEntry{
					ID:       t.ID,
					Category: t.Category,
					Label:    t.Label,
					Shapes:   len(t.Shapes),
					Grouped:  t.Grouped,
				})
			}
			return outputJSON(map[string]any{
				"categories": catalog.Categories(),
				"templates":  entries,
			})
		},
	}
}

// catalogAddCmd creates the catalog add command: a stored drawing becomes a
// panel template.
func catalogAddCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Add a stored drawing to the catalog as a template",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Required: true, Usage: "Drawing id to turn into a template"},
			&cli.StringFlag{Name: "id", Required: true, Usage: "Template id"},
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Required: true, Usage: "Template category"},
			&cli.StringFlag{Name: "label", Usage: "Label shown in the panel (default: from id)"},
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Catalog YAML file (default: catalog_path from config)"},
			&cli.BoolFlag{Name: "replace", Usage: "Overwrite a template with the same id"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.AddTemplate(c.Context, db, cfg, ops.AddTemplateInput{
				DrawingID: c.String("from"),
				ID:        c.String("id"),
				Category:  c.String("category"),
				Label:     c.String("label"),
				Path:      c.String("path"),
				Replace:   c.Bool("replace"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// discoverCmd creates the discover command.
func discoverCmd() *cli.Command {
	return &cli.Command{
		Name:  "discover",
		Usage: "Find sketchlab UIs advertised on the local network",
		Action: func(c *cli.Context) error {
			addrs, err := web.Discover()
			if err != nil {
				return outputError(err)
			}
			if addrs == nil {
				addrs = []string{}
			}
			return outputJSON(map[string]any{"servers": addrs})
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var sErr *errors.SketchError
	if stderrors.As(err, &sErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", sErr.Code, sErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseList splits a comma-separated string, dropping empty items.
func parseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
