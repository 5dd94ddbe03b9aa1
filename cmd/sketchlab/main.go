package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/haiilab/sketchlab/internal/config"
	"github.com/haiilab/sketchlab/internal/db"
	"github.com/haiilab/sketchlab/internal/events"
	"github.com/haiilab/sketchlab/internal/mcp"
	"github.com/haiilab/sketchlab/internal/session"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"list": true, "show": true, "latest": true, "update": true,
	"export": true, "import": true, "delete": true, "purge": true,
	"events": true, "export-events": true, "catalog": true,
	"serve": true, "discover": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
       _        _       _     _       _
   ___| | _____| |_ ___| |__ | | __ _| |__
  / __| |/ / _ \ __/ __| '_ \| |/ _' | '_ \
  \__ \   <  __/ || (__| | | | | (_| | |_) |
  |___/_|\_\___|\__\___|_| |_|_|\__,_|_.__/

  Sketching sessions with optional AI suggestions

  Usage: sketchlab <command> [options]
         sketchlab --help

  MCP server mode requires piped input.`)
}

// newLogger writes JSON diagnostics to stderr; stdout belongs to MCP and
// CLI results. SKETCHLAB_LOG_LEVEL selects debug, info, warn or error.
func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(os.Getenv("SKETCHLAB_LOG_LEVEL")))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ".sketchlab")

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	cwd, _ := os.Getwd()
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	db.ConfigurePool(database, cfg)

	if isCLIMode() {
		app := newCLIApp(database, cfg)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'sketchlab --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	logger := newLogger()
	sources, err := session.BuildSources(context.Background(), cfg, Version, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer sources.Close()

	sess := session.New(
		session.WithConfig(cfg),
		session.WithLogger(logger),
		session.WithSink(db.NewJournal(database)),
		session.WithSink(events.NewSlogSink(logger)),
		session.WithSources(sources.ByMode),
	)
	defer sess.Close()

	if err := mcp.Run(database, cfg, sess, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
