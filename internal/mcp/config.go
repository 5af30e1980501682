package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type configParams struct{}

func (h *handler) configHandler(ctx context.Context, req *mcp.CallToolRequest, _ configParams) (*mcp.CallToolResult, any, error) {
	loaded := h.config()
	cfg := loaded.Config

	var b strings.Builder
	if loaded.Path != "" {
		fmt.Fprintf(&b, "Config: %s\n", loaded.Path)
	} else {
		fmt.Fprintln(&b, "Config: (defaults, no .jlaunch found)")
	}
	fmt.Fprintf(&b, "Root: %s\n", loaded.Root)
	fmt.Fprintln(&b)

	java := cfg.JavaPath
	if java == "" {
		java = "(not set)"
	}
	fmt.Fprintf(&b, "Java: %s%s\n", java, existence(cfg.JavaPath))
	fmt.Fprintf(&b, "Arguments: %s\n", cfg.ArgsFile)

	workDir := loaded.Root
	if cfg.WorkDir != "" {
		workDir = filepath.Join(loaded.Root, cfg.WorkDir)
		if filepath.IsAbs(cfg.WorkDir) {
			workDir = cfg.WorkDir
		}
	}
	fmt.Fprintf(&b, "Working directory: %s\n", workDir)
	if strings.HasPrefix(cfg.ArgsFile, "@") {
		path := cfg.ArgsFilePath(workDir)
		fmt.Fprintf(&b, "Argument file: %s%s\n", path, existence(path))
	}

	if t := cfg.Timeout(); t > 0 {
		fmt.Fprintf(&b, "Timeout: %s\n", t)
	} else {
		fmt.Fprintln(&b, "Timeout: none")
	}
	if m := cfg.MaxOutputBytes(); m > 0 {
		fmt.Fprintf(&b, "Output cap: %d bytes per stream\n", m)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, err)
	}

	return textResult(b.String())
}

// existence annotates a path with whether it is currently present.
func existence(path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		if !filepath.IsAbs(path) && !strings.ContainsRune(path, filepath.Separator) {
			return " (resolved via PATH)"
		}
		return " (missing)"
	}
	return ""
}
