// Package mcp provides the jlaunch MCP server, exposing launches and the
// run history as tools.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/deixis/jlaunch"
	"github.com/deixis/jlaunch/internal/config"
	"github.com/deixis/jlaunch/internal/history"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	mu     sync.Mutex
	loaded *config.LoadResult // replaced when the client reports a root
	store  history.Store
}

// NewServer creates an MCP server with all jlaunch tools registered.
func NewServer(loaded *config.LoadResult, store history.Store) *mcp.Server {
	h := &handler{loaded: loaded, store: store}

	opts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "jlaunch", Version: jlaunch.Version}, opts)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "launch_config",
		Description: "Show the launch configuration: Java executable, argument reference, working directory and limits.",
	}, h.configHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "launch",
		Description: `Start the configured Java executable with its argument file and wait for it to exit.

Returns the captured STDOUT, STDERR and return code. A non-zero return code is reported, not treated
as an error; only a Java executable that cannot be started is an error. The run is stored for
launch_inspect.`,
	}, h.launchHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "launch_inspect",
		Description: "Show the captured output of an earlier launch by its run_id.",
	}, h.inspectHandler)

	return s
}

// config returns the current configuration snapshot.
func (h *handler) config() *config.LoadResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded
}

// updateFromRoots asks the client for its roots and reloads the config
// from the first file root. Failures leave the current config in place.
func (h *handler) updateFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}

	h.reload(u.Path)
}

// reload replaces the config with the .jlaunch file found from dir, with
// the same environment overrides applied at startup. It reports whether a
// file was found.
func (h *handler) reload(dir string) bool {
	loaded, err := config.Load(dir)
	if err != nil || loaded.Path == "" {
		return false
	}
	loaded.Config.ApplyEnv(os.Getenv)

	h.mu.Lock()
	h.loaded = loaded
	h.mu.Unlock()
	return true
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
