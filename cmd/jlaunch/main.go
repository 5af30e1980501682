// Command jlaunch starts a Java runtime with an argument file and prints
// what it wrote to stdout and stderr along with its return code.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/deixis/jlaunch"
	"github.com/deixis/jlaunch/internal/config"
	"github.com/deixis/jlaunch/internal/history"
	"github.com/deixis/jlaunch/internal/launcher"
	jmcp "github.com/deixis/jlaunch/internal/mcp"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// errUsage reports bad command-line input whose message has already been
// written to stderr.
var errUsage = errors.New("usage")

func main() {
	log.SetFlags(0)
	log.SetPrefix("jlaunch: ")
	os.Exit(dispatch(os.Args[1:], os.Stdout, os.Stderr))
}

// dispatch runs one command and returns the process exit code: 0 on
// success, 1 when the command failed, 2 on a usage error.
func dispatch(args []string, stdout, stderr io.Writer) int {
	// Flags without a command belong to run.
	cmd := "run"
	if len(args) > 0 && (!strings.HasPrefix(args[0], "-") || args[0] == "-h" || args[0] == "--help") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = runMain(args, stdout, stderr)
	case "history":
		err = historyMain(args, stdout, stderr)
	case "show":
		err = showMain(args, stdout, stderr)
	case "mcp":
		err = mcpMain(args, stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, jlaunch.Version)
	case "help", "-h", "--help":
		usage(stderr)
	default:
		fmt.Fprintf(stderr, "jlaunch: unknown command %q\n", cmd)
		usage(stderr)
		return 2
	}

	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		log.New(stderr, "jlaunch: ", 0).Print(err)
		return 1
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `Usage: jlaunch [command] [flags]

Commands:
  run         Launch Java with the configured argument file (default)
  history     List recorded launches
  show        Print the output of a recorded launch
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Use "jlaunch <command> -h" for command-specific flags.`)
}

// parseFlags parses args into fs, which reports problems on stderr.
func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) error {
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	return nil
}

// --- run ---

func runMain(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configFlag := fs.String("config", "", "config file (default: nearest "+config.FileName+")")
	javaFlag := fs.String("java", "", "Java executable (overrides java_path and $"+config.EnvJavaPath+")")
	argsFlag := fs.String("args", "", "argument reference passed to Java, e.g. @args.txt")
	dirFlag := fs.String("dir", "", "working directory for Java, relative to the config root")
	timeoutFlag := fs.Duration("timeout", 0, "kill Java after this long (default: no limit)")
	cmdFileFlag := fs.String("command-file", "", "read the full Java command line from this file instead")
	jsonFlag := fs.Bool("json", false, "output the result as JSON")
	historyFlag := fs.Bool("history", false, "record this launch in the run history")
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	loaded, err := loadConfig(*configFlag)
	if err != nil {
		return err
	}
	cfg := loaded.Config
	cfg.ApplyEnv(os.Getenv)
	cfg.Apply(config.Overrides{
		JavaPath: *javaFlag,
		ArgsFile: *argsFlag,
		WorkDir:  *dirFlag,
		Timeout:  *timeoutFlag,
		History:  *historyFlag,
	})

	var command *config.Command
	if *cmdFileFlag != "" {
		command, err = config.LoadCommandFile(*cmdFileFlag)
		if err != nil {
			return err
		}
		cfg.JavaPath = command.JavaPath
		fmt.Fprintln(stdout, "Java path:", command.JavaPath)
		fmt.Fprintln(stdout, "Parameters:", len(command.Params))
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	l := launcher.New(cfg, loaded.Root)
	if command != nil {
		l = launcher.NewFromCommand(command, cfg, loaded.Root)
	}

	if cfg.History.On() {
		store, closeStore, err := openHistory(cfg, loaded.Root)
		if err != nil {
			log.Printf("run history unavailable: %v", err)
		} else {
			defer closeStore()
			l.Store = store
		}
	}

	res, err := l.Launch(ctx)
	if err != nil {
		return err
	}

	if *jsonFlag {
		return writeJSON(stdout, res)
	}
	return launcher.Print(stdout, res)
}

// --- history ---

func historyMain(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	configFlag := fs.String("config", "", "config file (default: nearest "+config.FileName+")")
	limitFlag := fs.Int("n", 20, "number of launches to list")
	jsonFlag := fs.Bool("json", false, "output as JSON")
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}

	loaded, err := loadConfig(*configFlag)
	if err != nil {
		return err
	}
	db, err := openExistingDB(loaded.Config)
	if err != nil {
		return err
	}

	var recs []*history.Record
	if db != nil {
		defer db.Close()
		if recs, err = db.List(context.Background(), *limitFlag); err != nil {
			return err
		}
	}

	if *jsonFlag {
		if recs == nil {
			recs = []*history.Record{}
		}
		return writeJSON(stdout, recs)
	}
	if len(recs) == 0 {
		fmt.Fprintln(stdout, "no launches recorded")
		return nil
	}
	for _, rec := range recs {
		fmt.Fprintln(stdout, rec.Summary())
	}
	return nil
}

// --- show ---

func showMain(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configFlag := fs.String("config", "", "config file (default: nearest "+config.FileName+")")
	jsonFlag := fs.Bool("json", false, "output as JSON")
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: jlaunch show [-json] <run-id>")
		return errUsage
	}
	runID := fs.Arg(0)

	loaded, err := loadConfig(*configFlag)
	if err != nil {
		return err
	}

	var stores history.Tee
	db, err := openExistingDB(loaded.Config)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		stores = append(stores, db)
	}
	if dir := recordDir(loaded.Config, loaded.Root); dir != "" {
		stores = append(stores, history.NewDiskStore(dir))
	}
	if len(stores) == 0 {
		return fmt.Errorf("%w: %s (no launches recorded)", history.ErrNotFound, runID)
	}

	rec, err := stores.Load(runID)
	if err != nil {
		return err
	}

	res := launcher.FromRecord(rec)
	if *jsonFlag {
		return writeJSON(stdout, res)
	}
	return launcher.Print(stdout, res)
}

// --- mcp ---

func mcpMain(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	configFlag := fs.String("config", "", "config file (default: nearest "+config.FileName+")")
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}

	if *instructions {
		fmt.Fprint(stdout, jmcp.Instructions)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	loaded, err := loadConfig(*configFlag)
	if err != nil {
		return err
	}
	loaded.Config.ApplyEnv(os.Getenv)

	// Runs live in a temp dir for launch_inspect unless history is on.
	var back history.Store = history.NewDiskStore("")
	if loaded.Config.History.On() {
		persistent, closeStore, err := openHistory(loaded.Config, loaded.Root)
		if err != nil {
			log.Printf("run history unavailable, keeping runs in a temp dir: %v", err)
		} else {
			defer closeStore()
			back = persistent
		}
	}
	store := history.NewLRUStore(5, back)

	server := jmcp.NewServer(loaded, store)
	if *httpAddr != "" {
		return serveHTTP(ctx, server, *httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- shared ---

func loadConfig(path string) (*config.LoadResult, error) {
	if path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return loaded, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining working directory: %w", err)
	}
	loaded, err := config.Load(wd)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return loaded, nil
}

func dbPath(cfg *config.Config) (string, error) {
	if cfg.History.DB != "" {
		return cfg.History.DB, nil
	}
	return history.DefaultDBPath()
}

// openExistingDB opens the SQLite index for reading. It returns nil when no
// launch has ever been recorded, without creating the database.
func openExistingDB(cfg *config.Config) (*history.SQLStore, error) {
	path, err := dbPath(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return history.OpenSQL(path)
}

func recordDir(cfg *config.Config, root string) string {
	dir := cfg.History.Dir
	if dir != "" && !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return dir
}

// openHistory opens the stores launches are recorded in: the SQLite index,
// plus a JSON record directory when history.dir is set.
func openHistory(cfg *config.Config, root string) (history.Store, func(), error) {
	path, err := dbPath(cfg)
	if err != nil {
		return nil, nil, err
	}
	db, err := history.OpenSQL(path)
	if err != nil {
		return nil, nil, err
	}
	stores := history.Tee{db}
	if dir := recordDir(cfg, root); dir != "" {
		stores = append(stores, history.NewDiskStore(dir))
	}
	return stores, func() { _ = db.Close() }, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
