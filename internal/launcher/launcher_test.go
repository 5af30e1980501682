package launcher

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/deixis/jlaunch/internal/config"
	"github.com/deixis/jlaunch/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeJava writes an executable shell script standing in for a JRE.
func fakeJava(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "java")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func newLauncher(t *testing.T, body string) (*Launcher, string) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{JavaPath: fakeJava(t, root, body), ArgsFile: "@args.txt"}
	require.NoError(t, cfg.Validate())
	return New(cfg, root), root
}

func TestLaunch_Hello(t *testing.T) {
	l, _ := newLauncher(t, "echo hello\n")

	res, err := l.Launch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, "", res.Stderr)
	assert.Equal(t, 0, res.ExitStatus)
	assert.Equal(t, []string{"@args.txt"}, res.Args)
	assert.NotEmpty(t, res.RunID)

	var out bytes.Buffer
	require.NoError(t, Print(&out, res))
	assert.Equal(t, "STDOUT:\n hello\n\nSTDERR:\n \nReturn code: 0\n", out.String())
}

func TestLaunch_PassesReferenceVerbatim(t *testing.T) {
	l, _ := newLauncher(t, `printf '%s' "$#:$1"`+"\n")

	res, err := l.Launch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1:@args.txt", res.Stdout)
}

func TestLaunch_NonZeroExitIsData(t *testing.T) {
	l, _ := newLauncher(t, "echo 'Error: Unable to access jarfile' >&2\nexit 1\n")

	res, err := l.Launch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitStatus)
	assert.Equal(t, "Error: Unable to access jarfile\n", res.Stderr)
}

func TestLaunch_ExitStatusMatchesDirectRun(t *testing.T) {
	l, _ := newLauncher(t, "exit 42\n")

	res, err := l.Launch(context.Background())
	require.NoError(t, err)

	direct := exec.Command(l.JavaPath, l.Args...).Run()
	var exitErr *exec.ExitError
	require.True(t, errors.As(direct, &exitErr))
	assert.Equal(t, exitErr.ExitCode(), res.ExitStatus)
}

func TestLaunch_Idempotent(t *testing.T) {
	l, _ := newLauncher(t, "echo out; echo err >&2; exit 5\n")

	first, err := l.Launch(context.Background())
	require.NoError(t, err)
	second, err := l.Launch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Stdout, second.Stdout)
	assert.Equal(t, first.Stderr, second.Stderr)
	assert.Equal(t, first.ExitStatus, second.ExitStatus)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestLaunch_MissingExecutable(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Config{JavaPath: filepath.Join(root, "jre", "bin", "java"), ArgsFile: "@args.txt"}
	l := New(cfg, root)

	res, err := l.Launch(context.Background())
	assert.Nil(t, res)

	var lf *LaunchFailure
	require.ErrorAs(t, err, &lf)
	assert.Equal(t, cfg.JavaPath, lf.JavaPath)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, 1, strings.Count(err.Error(), cfg.JavaPath), "path should appear once in %q", err)
}

func TestLaunch_NotExecutable(t *testing.T) {
	root := t.TempDir()
	java := filepath.Join(root, "java")
	require.NoError(t, os.WriteFile(java, []byte("#!/bin/sh\necho hi\n"), 0o644))
	cfg := &config.Config{JavaPath: java, ArgsFile: "@args.txt"}

	res, err := New(cfg, root).Launch(context.Background())
	assert.Nil(t, res)

	var lf *LaunchFailure
	require.ErrorAs(t, err, &lf)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, "launch failed: "+java+": permission denied", err.Error())
}

func TestLaunch_MissingExecutableIsNotRecorded(t *testing.T) {
	root := t.TempDir()
	store := history.NewDiskStore(filepath.Join(root, "runs"))
	l := New(&config.Config{JavaPath: filepath.Join(root, "nope"), ArgsFile: "@args.txt"}, root)
	l.Store = store

	_, err := l.Launch(context.Background())
	require.Error(t, err)

	entries, _ := os.ReadDir(filepath.Join(root, "runs"))
	assert.Empty(t, entries)
}

func TestLaunch_WritesArgsContent(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Config{
		JavaPath:    fakeJava(t, root, "cat \"${1#@}\"\n"),
		ArgsFile:    "@args.txt",
		ArgsContent: "-Xmx4096M\n-jar\ngame.jar\n",
		WorkDir:     "instance",
	}
	l := New(cfg, root)
	assert.Equal(t, filepath.Join(root, "instance", "args.txt"), l.ArgsFile)

	res, err := l.Launch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cfg.ArgsContent, res.Stdout)
	assert.Equal(t, "instance", res.Dir)
}

func TestLaunch_WorkDirOutsideRoot(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Config{JavaPath: fakeJava(t, root, "pwd\n"), ArgsFile: "@args.txt", WorkDir: "../elsewhere"}

	res, err := New(cfg, root).Launch(context.Background())
	assert.Nil(t, res)
	require.Error(t, err)
	var lf *LaunchFailure
	assert.False(t, errors.As(err, &lf), "a rejected work_dir is not a spawn failure")
	assert.Contains(t, err.Error(), "outside workspace")
}

func TestLaunch_Records(t *testing.T) {
	l, root := newLauncher(t, "echo recorded\n")
	store := history.NewDiskStore(filepath.Join(root, "runs"))
	l.Store = store

	res, err := l.Launch(context.Background())
	require.NoError(t, err)

	rec, err := store.Load(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "recorded\n", rec.Stdout)
	assert.Equal(t, l.JavaPath, rec.JavaPath)

	back := FromRecord(rec)
	assert.Equal(t, Format(res), Format(back))
}

func TestLaunch_Timeout(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Config{JavaPath: fakeJava(t, root, "sleep 10\necho done\n"), ArgsFile: "@args.txt", RawTimeout: "100ms"}

	start := time.Now()
	res, err := New(cfg, root).Launch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -9, res.ExitStatus)
	assert.NotContains(t, res.Stdout, "done")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewFromCommand(t *testing.T) {
	root := t.TempDir()
	java := fakeJava(t, root, `printf '%s,' "$@"`+"\n")
	cfg := &config.Config{ArgsFile: "@args.txt", ArgsContent: "ignored"}
	cmd := &config.Command{JavaPath: java, Params: []string{"-Xmx2G", "-jar", "game.jar"}}

	l := NewFromCommand(cmd, cfg, root)
	res, err := l.Launch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "-Xmx2G,-jar,game.jar,", res.Stdout)
	assert.NoFileExists(t, filepath.Join(root, "args.txt"))
}

func TestFormat_OrderWithEmptyFields(t *testing.T) {
	got := Format(&Result{ExitStatus: -1})
	assert.Equal(t, "STDOUT:\n \nSTDERR:\n \nReturn code: -1\n", got)

	got = Format(&Result{Stdout: "STDERR:\n", Stderr: "STDOUT:\n", ExitStatus: 3})
	i := strings.Index(got, "STDOUT:\n ")
	j := strings.Index(got, "\nSTDERR:\n ")
	k := strings.Index(got, "Return code: 3")
	assert.True(t, i == 0 && j > i && k > j, "sections out of order: %q", got)
}
