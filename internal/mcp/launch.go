package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/deixis/jlaunch/internal/launcher"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type launchParams struct {
	ArgsFile string `json:"args_file,omitempty" jsonschema:"argument reference passed to Java instead of the configured one (e.g. @other-args.txt)"`
}

func (h *handler) launchHandler(ctx context.Context, req *mcp.CallToolRequest, params launchParams) (*mcp.CallToolResult, any, error) {
	loaded := h.config()

	cfg := *loaded.Config
	if params.ArgsFile != "" {
		cfg.ArgsFile = params.ArgsFile
	}
	if err := cfg.Validate(); err != nil {
		return errorResult(err.Error())
	}

	l := launcher.New(&cfg, loaded.Root)
	l.Store = h.store

	res, err := l.Launch(ctx)
	if err != nil {
		var lf *launcher.LaunchFailure
		if errors.As(err, &lf) {
			return errorResult(fmt.Sprintf("Java could not be started: %v", lf.Err))
		}
		return errorResult(err.Error())
	}

	return textResult(formatLaunch(res))
}

func formatLaunch(res *launcher.Result) string {
	var b strings.Builder
	b.WriteString(launcher.Format(res))
	if res.Truncated {
		fmt.Fprintln(&b, "(output truncated)")
	}
	fmt.Fprintf(&b, "Run: %s\n", res.RunID)
	return b.String()
}
