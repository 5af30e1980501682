package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/deixis/jlaunch/internal/history"
	"github.com/deixis/jlaunch/internal/launcher"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type inspectParams struct {
	RunID string `json:"run_id" jsonschema:"the run ID from a launch result"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}
	if h.store == nil {
		return errorResult("run history is disabled")
	}

	rec, err := h.store.Load(params.RunID)
	if errors.Is(err, history.ErrNotFound) {
		return errorResult(fmt.Sprintf("No run %s.", params.RunID))
	}
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	return textResult(fmt.Sprintf("Started: %s (%s)\nCommand: %s %v\n\n%s",
		rec.StartedAt.Format("2006-01-02 15:04:05"), rec.Duration(), rec.JavaPath, rec.Args,
		formatLaunch(launcher.FromRecord(rec))))
}
