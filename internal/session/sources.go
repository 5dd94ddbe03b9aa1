package session

import (
	"context"
	"log/slog"
	"os"

	"github.com/haiilab/sketchlab/internal/config"
	"github.com/haiilab/sketchlab/internal/llm"
	"github.com/haiilab/sketchlab/internal/suggest"
)

// Sources holds the suggestion sources built from configuration and the
// cleanup for any subprocess they started.
type Sources struct {
	ByMode  map[suggest.Mode]suggest.Source
	Catalog *suggest.Catalog
	closers []func() error
}

// Close releases external sources.
func (s *Sources) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// BuildSources routes the panel to the template catalog and the floating and
// auto modes to the remote sources in cfg, falling back to the local wizard.
// A remote source that cannot be started is logged and skipped.
func BuildSources(ctx context.Context, cfg *config.Config, version string, logger *slog.Logger) (*Sources, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	catalog, err := suggest.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	out := &Sources{Catalog: catalog}

	var chain []suggest.Source
	if key := apiKey(cfg.LLM); key != "" {
		var opts []llm.AnthropicOption
		if cfg.LLM.Endpoint != "" {
			opts = append(opts, llm.WithEndpoint(cfg.LLM.Endpoint))
		}
		client := llm.NewAnthropicClient(key, cfg.LLM.Model, opts...)
		chain = append(chain, suggest.NewLLMSource(client, cfg.LLM.MaxRetries, logger.With("source", "llm")))
		logger.Info("llm suggestion source enabled", "model", cfg.LLM.Model)
	}
	if cfg.MCPSource.Command != "" {
		src, closeFn, err := suggest.DialMCPSource(ctx, cfg.MCPSource.Command, cfg.MCPSource.Args, cfg.MCPSource.Tool, version, logger.With("source", "mcp"))
		if err != nil {
			logger.Warn("mcp suggestion source unavailable", "command", cfg.MCPSource.Command, "error", err)
		} else {
			chain = append(chain, src)
			out.closers = append(out.closers, closeFn)
		}
	}

	var assist suggest.Source = suggest.NewWizardSource()
	if len(chain) > 0 {
		assist = suggest.NewFailoverSource(append(chain, assist)...)
	}
	out.ByMode = map[suggest.Mode]suggest.Source{
		suggest.Panel:    suggest.NewCatalogSource(catalog),
		suggest.Floating: assist,
		suggest.Auto:     assist,
	}
	return out, nil
}

func apiKey(c config.LLMConfig) string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}
