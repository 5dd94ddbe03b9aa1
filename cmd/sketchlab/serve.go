package main

import (
	"database/sql"
	"log"

	"github.com/urfave/cli/v2"

	"github.com/haiilab/sketchlab/internal/config"
	"github.com/haiilab/sketchlab/internal/db"
	"github.com/haiilab/sketchlab/internal/mcp"
	"github.com/haiilab/sketchlab/internal/session"
	"github.com/haiilab/sketchlab/internal/web"
)

// serveCmd creates the serve command: the review UI plus one live session,
// optionally driven over MCP on stdio.
func serveCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web UI with a live session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Aliases: []string{"b"}, Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8700, Usage: "Port to listen on"},
			&cli.StringFlag{Name: "task", Value: "free", Usage: "Task of the live session: cat|castle|car|free"},
			&cli.StringFlag{Name: "condition", Value: "H_PLUS_IA", Usage: "Condition of the live session: H_ONLY|H_PLUS_IA"},
			&cli.BoolFlag{Name: "mcp", Usage: "Also serve the live session as MCP tools on stdio"},
			&cli.BoolFlag{Name: "advertise", Usage: "Announce the UI on the local network over mDNS"},
		},
		Action: func(c *cli.Context) error {
			logger := newLogger()

			sources, err := session.BuildSources(c.Context, cfg, Version, logger)
			if err != nil {
				return outputError(err)
			}
			defer sources.Close()

			hub := web.NewHub()
			sess := session.New(
				session.WithConfig(cfg),
				session.WithLogger(logger),
				session.WithSink(db.NewJournal(database)),
				session.WithSink(hub),
				session.WithSources(sources.ByMode),
			)
			defer sess.Close()

			if err := sess.Configure(c.String("task"), c.String("condition")); err != nil {
				return outputError(err)
			}

			if c.Bool("advertise") {
				zone, err := web.Advertise(c.Int("port"), Version)
				if err != nil {
					log.Printf("mDNS advertisement disabled: %v", err)
				} else {
					defer func() { _ = zone.Shutdown() }()
				}
			}

			if c.Bool("mcp") {
				go func() {
					if err := mcp.Run(database, cfg, sess, Version); err != nil {
						log.Printf("MCP server stopped: %v", err)
					}
				}()
			}

			log.Printf("live session %s (%s, %s)", sess.ID(), sess.Task(), sess.Condition())
			srv := web.NewServer(database, cfg, sess, hub, Version, c.String("bind"), c.Int("port"))
			return web.Run(srv, hub.Close)
		},
	}
}
