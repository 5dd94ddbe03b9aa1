package suggest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// DialMCPSource starts command as an MCP stdio server and returns a source
// calling tool on it, plus a function closing the subprocess.
func DialMCPSource(ctx context.Context, command string, args []string, tool, version string, logger *slog.Logger) (*MCPSource, func() error, error) {
	c, err := client.NewStdioMCPClient(command, nil, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("start mcp source %s: %w", command, err)
	}

	init := mcp.InitializeRequest{}
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "sketchlab", Version: version}
	if _, err := c.Initialize(ctx, init); err != nil {
		_ = c.Close()
		return nil, nil, fmt.Errorf("initialize mcp source %s: %w", command, err)
	}
	return NewMCPSource(c, tool, logger), c.Close, nil
}
