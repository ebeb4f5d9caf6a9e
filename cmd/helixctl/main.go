package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"gopkg.in/alecthomas/kingpin.v2"

	"helixsim/internal/config"
	"helixsim/internal/logging"
	helix "helixsim/pkg/helixsim"
)

const version = "0.3.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every command handler gets: resolved settings, a logger and
// the output stream. The client is opened lazily since some commands never
// touch the store.
type env struct {
	cfg    config.Config
	logger *log.Logger
	stdout io.Writer
	stderr io.Writer
}

func (e *env) openClient() (*helix.Client, error) {
	return helix.New(helix.Options{
		StoreKind: e.cfg.Store.Kind,
		DBPath:    e.cfg.Store.SQLitePath,
		RunsDir:   e.cfg.RunsDir,
		Logger:    e.logger,
	})
}

func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type command interface {
	run(ctx context.Context, e *env) error
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	// Settings come from the config file and HELIXSIM_* first; flag defaults
	// are filled from them so that explicit flags win.
	cfg, err := config.Load(configPathFromArgs(args))
	if err != nil {
		return err
	}

	app := kingpin.New("helixctl", "DNA mutation, bacterial growth and resistance simulator.")
	app.Version(version)
	app.Writer(stdout)
	app.ErrorWriter(stderr)
	app.UsageWriter(stdout)
	app.Terminate(nil)

	app.Flag("config", "Path to a helixsim.yaml config file.").PlaceHolder("FILE").String()
	storeKind := app.Flag("store", "Run store backend (memory or sqlite).").Default(cfg.Store.Kind).String()
	dbPath := app.Flag("db-path", "SQLite database path.").Default(cfg.Store.SQLitePath).String()
	runsDir := app.Flag("runs-dir", "Directory for per-run artifacts.").Default(cfg.RunsDir).String()
	logLevel := app.Flag("log-level", "Log level.").Default(cfg.Log.Level).String()
	logFormat := app.Flag("log-format", "Log format (auto, text, logfmt, json).").Default(cfg.Log.Format).Enum("auto", "text", "logfmt", "json")

	commands := map[string]command{
		"mutate":   newMutateCommand(app, cfg),
		"grow":     newGrowCommand(app, cfg),
		"amr":      newAMRCommand(app, cfg),
		"genes":    newGenesCommand(app),
		"strains":  newStrainsCommand(app),
		"estimate": newEstimateCommand(app),
		"scan":     newScanCommand(app),
		"runs":     newRunsCommand(app),
		"show":     newShowCommand(app),
		"export":   newExportCommand(app),
		"serve":    newServeCommand(app, cfg),
	}

	selected, err := app.Parse(args)
	if err != nil {
		return err
	}
	if selected == "" {
		// --help and --version end up here with Terminate disabled.
		return nil
	}
	cmd, ok := commands[selected]
	if !ok {
		return usageError(fmt.Sprintf("unknown command: %s", selected))
	}

	cfg.Store.Kind = *storeKind
	cfg.Store.SQLitePath = *dbPath
	cfg.RunsDir = *runsDir
	cfg.Log.Level = *logLevel
	cfg.Log.Format = *logFormat
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(stderr, logging.Options{
		Level:  cfg.Log.Level,
		Format: logging.Format(cfg.Log.Format),
		Prefix: "helixctl",
	})
	if err != nil {
		return err
	}
	return cmd.run(ctx, &env{cfg: cfg, logger: logger, stdout: stdout, stderr: stderr})
}

// configPathFromArgs finds --config ahead of the real parse, since the file
// supplies the flag defaults.
func configPathFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if v, ok := strings.CutPrefix(arg, "--config="); ok {
			return v
		}
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func usageError(msg string) error {
	return errors.New(msg)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// openInput opens a named file, or stdin for "-".
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}
