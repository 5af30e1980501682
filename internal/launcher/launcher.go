// Package launcher starts the configured Java executable with its argument
// reference, waits for it to exit, and reports what it printed.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/deixis/jlaunch/internal/config"
	"github.com/deixis/jlaunch/internal/history"
	"github.com/deixis/jlaunch/internal/runner"
)

// CommandRunner executes commands within a workspace.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, cwd string) (*runner.Result, error)
}

// Result is what one launch produced. It is never modified after Launch
// returns it.
type Result struct {
	RunID      string        `json:"run_id"`
	JavaPath   string        `json:"java_path"`
	Args       []string      `json:"args"`
	Dir        string        `json:"dir,omitempty"`
	Stdout     string        `json:"stdout"`
	Stderr     string        `json:"stderr"`
	ExitStatus int           `json:"exit_status"`
	Truncated  bool          `json:"truncated,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
}

// Record converts r into a history record.
func (r *Result) Record() *history.Record {
	return &history.Record{
		ID:         r.RunID,
		JavaPath:   r.JavaPath,
		Args:       r.Args,
		Dir:        r.Dir,
		ExitStatus: r.ExitStatus,
		Stdout:     r.Stdout,
		Stderr:     r.Stderr,
		Truncated:  r.Truncated,
		StartedAt:  r.StartedAt,
		DurationMS: r.Duration.Milliseconds(),
	}
}

// FromRecord rebuilds a Result from a stored history record.
func FromRecord(rec *history.Record) *Result {
	return &Result{
		RunID:      rec.ID,
		JavaPath:   rec.JavaPath,
		Args:       rec.Args,
		Dir:        rec.Dir,
		Stdout:     rec.Stdout,
		Stderr:     rec.Stderr,
		ExitStatus: rec.ExitStatus,
		Truncated:  rec.Truncated,
		StartedAt:  rec.StartedAt,
		Duration:   rec.Duration(),
	}
}

// Launcher runs one Java command line. Args is normally the single
// argument reference, e.g. "@args.txt".
type Launcher struct {
	JavaPath string
	Args     []string
	Dir      string // child working directory, relative to the runner workspace

	// ArgsFile and ArgsContent, when both are set, write the argument file
	// before the process is started.
	ArgsFile    string
	ArgsContent string

	Runner CommandRunner
	Store  history.Store // optional; launches are recorded when set
}

// New builds a Launcher from a validated config. root is the directory the
// config was loaded from; the child runs there unless work_dir says
// otherwise.
func New(cfg *config.Config, root string) *Launcher {
	r := &runner.Runner{
		Workspace: root,
		Timeout:   cfg.Timeout(),
		MaxOutput: cfg.MaxOutputBytes(),
		Env:       cfg.Env,
	}
	l := &Launcher{
		JavaPath: cfg.JavaPath,
		Args:     []string{cfg.ArgsFile},
		Dir:      cfg.WorkDir,
		Runner:   r,
	}
	if cfg.ArgsContent != "" {
		childDir := root
		if cfg.WorkDir != "" {
			childDir = resolve(root, cfg.WorkDir)
		}
		l.ArgsFile = cfg.ArgsFilePath(childDir)
		l.ArgsContent = cfg.ArgsContent
	}
	return l
}

// NewFromCommand builds a Launcher for a full command line read from a
// command file. The rest of cfg (timeouts, environment, work_dir) still
// applies.
func NewFromCommand(cmd *config.Command, cfg *config.Config, root string) *Launcher {
	l := New(cfg, root)
	l.JavaPath = cmd.JavaPath
	l.Args = cmd.Params
	l.ArgsFile, l.ArgsContent = "", ""
	return l
}

// Launch starts the process, blocks until it exits with both output
// streams drained, and returns the result. A child that exits non-zero is
// a successful launch. If the executable cannot be started the error is a
// *LaunchFailure and no Result is returned.
func (l *Launcher) Launch(ctx context.Context) (*Result, error) {
	if l.ArgsFile != "" && l.ArgsContent != "" {
		if err := writeArgsFile(l.ArgsFile, l.ArgsContent); err != nil {
			return nil, err
		}
	}

	argv := append([]string{l.JavaPath}, l.Args...)
	res, err := l.Runner.Run(ctx, argv, l.Dir)
	if err != nil {
		var spawnErr *runner.SpawnError
		if errors.As(err, &spawnErr) {
			return nil, &LaunchFailure{JavaPath: l.JavaPath, Err: spawnCause(spawnErr.Err)}
		}
		return nil, fmt.Errorf("launching %s: %w", l.JavaPath, err)
	}

	out := &Result{
		RunID:      res.RunID,
		JavaPath:   l.JavaPath,
		Args:       append([]string(nil), l.Args...),
		Dir:        l.Dir,
		Stdout:     string(res.Stdout),
		Stderr:     string(res.Stderr),
		ExitStatus: res.ExitCode,
		Truncated:  res.Truncated,
		StartedAt:  res.StartedAt,
		Duration:   res.Duration,
	}

	if l.Store != nil {
		if err := l.Store.Save(out.Record()); err != nil {
			log.Printf("recording run %s: %v", out.RunID, err)
		}
	}
	return out, nil
}

// spawnCause strips the path-carrying wrappers os/exec puts around a start
// failure, since LaunchFailure already names the executable.
func spawnCause(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return execErr.Err
	}
	return err
}

func writeArgsFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating argument file directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing argument file: %w", err)
	}
	return nil
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}
