// Package runner executes a single command, waits for it, and captures
// everything it wrote to stdout and stderr along with its exit code.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// waitDelay bounds how long Wait keeps reading pipes held open by
// descendants once a timed-out command has been killed.
const waitDelay = 2 * time.Second

// Runner executes commands within a workspace boundary.
//
// A zero Timeout means the command may run indefinitely. A zero MaxOutput
// means stdout and stderr are captured in full.
type Runner struct {
	Workspace string
	Timeout   time.Duration
	MaxOutput int // bytes per stream
	Env       []string
}

// SpawnError reports that the operating system could not start the command.
// A command that starts and then exits non-zero is not a SpawnError.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("executing %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Run executes a command with the given argv. The first element is the
// binary (a path, or a name resolved via PATH), and the rest are arguments
// passed verbatim. cwd is resolved relative to the workspace root and must
// remain within it.
func (r *Runner) Run(ctx context.Context, argv []string, cwd string) (*Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty argv")
	}

	dir, err := r.resolveDir(cwd)
	if err != nil {
		return nil, err
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	runID := uuid.New().String()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	killProcessGroup(cmd)
	if r.Timeout > 0 {
		cmd.WaitDelay = waitDelay
	}
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	outW := &limitWriter{buf: &stdout, limit: r.MaxOutput}
	errW := &limitWriter{buf: &stderr, limit: r.MaxOutput}
	cmd.Stdout = outW
	cmd.Stderr = errW

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Path: argv[0], Err: err}
	}
	// Wait returns only after both pipes are drained into the buffers, or
	// after waitDelay once a timeout has killed the process group.
	waitErr := cmd.Wait()
	elapsed := time.Since(started)

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		return nil, fmt.Errorf("waiting for %s: %w", argv[0], waitErr)
	}
	// ErrWaitDelay means the pipes were closed before every writer was done.
	pipesCut := errors.Is(waitErr, exec.ErrWaitDelay)

	return &Result{
		RunID:     runID,
		ExitCode:  exitStatus(cmd.ProcessState),
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Truncated: outW.dropped || errW.dropped || pipesCut,
		StartedAt: started,
		Duration:  elapsed,
	}, nil
}

// exitStatus returns the process exit code, or the negated signal number
// when the process was killed by a signal.
func exitStatus(ps *os.ProcessState) int {
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return ps.ExitCode()
}

// resolveDir resolves cwd relative to the workspace and validates it
// is within the workspace boundary.
func (r *Runner) resolveDir(cwd string) (string, error) {
	if cwd == "" {
		return r.Workspace, nil
	}
	if r.Workspace == "" {
		return filepath.Clean(cwd), nil
	}

	var dir string
	if filepath.IsAbs(cwd) {
		dir = filepath.Clean(cwd)
	} else {
		dir = filepath.Clean(filepath.Join(r.Workspace, cwd))
	}

	rel, err := filepath.Rel(r.Workspace, dir)
	if err != nil {
		return "", fmt.Errorf("resolving cwd: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("cwd %q is outside workspace %q", cwd, r.Workspace)
	}
	return dir, nil
}

// limitWriter writes up to limit bytes to buf, then silently discards the
// rest. A limit of zero or less disables the cap.
type limitWriter struct {
	buf     *bytes.Buffer
	limit   int
	dropped bool
}

func (w *limitWriter) Write(p []byte) (int, error) {
	if w.limit <= 0 {
		return w.buf.Write(p)
	}
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		if len(p) > 0 {
			w.dropped = true
		}
		return len(p), nil
	}
	if len(p) > remaining {
		// Report all bytes as consumed to avoid short write errors from io.Copy.
		w.buf.Write(p[:remaining])
		w.dropped = true
		return len(p), nil
	}
	return w.buf.Write(p)
}
