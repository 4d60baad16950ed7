package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/systemstart/piper/pkg/api"
	"github.com/systemstart/piper/pkg/history"
	"github.com/systemstart/piper/pkg/logging"
	"github.com/systemstart/piper/pkg/probe"
	"github.com/systemstart/piper/pkg/processing"
	"github.com/systemstart/piper/pkg/report"
	"github.com/systemstart/piper/pkg/version"
)

var buildVersion = "dev"

const (
	exitSucceeded = iota
	exitExecutionFailed
	exitEnvironmentIneligible
	exitStepSkipped
	exitInfrastructureError
	exitCancelled
)

const (
	exitConfigurationError = iota + 10
	exitDotenvError
	exitLoggingInitFailed
	exitHistoryReadFailed
)

const (
	defaultPipeline    = "build"
	defaultEnvironment = "local"
)

var (
	configFile   string
	contextFile  string
	historyFile  string
	historyCount int
	noHistory    bool
	listOnly     bool
	verbose      bool
	loggingType  string
	logLevel     string
	showVersion  bool
)

func init() {
	flag.StringVar(
		&configFile,
		"config",
		api.DefaultConfigFile,
		"configuration file")
	flag.StringVar(
		&contextFile,
		"context-file",
		"",
		"YAML file with extra template data")
	flag.StringVar(
		&historyFile,
		"history-file",
		history.DefaultFile,
		"run history file, relative to the configuration directory")
	flag.IntVar(
		&historyCount,
		"history",
		0,
		"print the last N runs and exit")
	flag.BoolVar(
		&noHistory,
		"no-history",
		false,
		"do not record this run")
	flag.BoolVar(
		&listOnly,
		"list",
		false,
		"list environments, steps and pipelines and exit")
	flag.BoolVar(
		&verbose,
		"verbose",
		false,
		"stream step output")
	flag.StringVar(
		&loggingType,
		"logging-type",
		"tint",
		"logging type: json, text or tint")
	flag.StringVar(
		&logLevel,
		"log-level",
		"info",
		"logging level: debug, info, warn, error")
	flag.BoolVar(
		&showVersion,
		"version",
		false,
		"print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [pipeline] [env]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Println(buildVersion)
		os.Exit(exitSucceeded)
	}

	if err := logging.Initialize(os.Stderr, loggingType, logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitLoggingInitFailed)
	}

	includeEnv()

	if historyCount > 0 {
		showHistory()
		os.Exit(exitSucceeded)
	}

	cfg, err := api.LoadConfig(configFile)
	if err != nil {
		slog.Error("failed to load configuration", "filename", configFile, "error", err)
		os.Exit(exitConfigurationError)
	}

	executor, err := processing.FromConfig(cfg, executorOptions(cfg)...)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(exitConfigurationError)
	}

	if listOnly {
		if err := printList(os.Stdout, executor); err != nil {
			slog.Error("failed to list configuration", "error", err)
			os.Exit(exitConfigurationError)
		}
		os.Exit(exitSucceeded)
	}

	pipelineName, envName := positionalArgs(flag.Args())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := executor.Run(ctx, pipelineName, envName)
	if err != nil {
		slog.Error("cannot run pipeline", "pipeline", pipelineName, "env", envName, "error", err)
		os.Exit(exitConfigurationError)
	}

	if err := report.Render(os.Stdout, result); err != nil {
		slog.Warn("failed to write report", "error", err)
	}
	saveHistory(result)

	os.Exit(exitCode(result))
}

func positionalArgs(args []string) (string, string) {
	pipelineName, envName := defaultPipeline, defaultEnvironment
	if len(args) > 0 {
		pipelineName = args[0]
	}
	if len(args) > 1 {
		envName = args[1]
	}
	if len(args) > 2 {
		slog.Warn("ignoring extra arguments", "args", args[2:])
	}
	return pipelineName, envName
}

func executorOptions(cfg *api.Config) []processing.Option {
	opts := []processing.Option{
		processing.WithProber(newProber()),
		versionOption(cfg),
		processing.WithObserver(logObserver{}),
	}
	if verbose {
		opts = append(opts, processing.WithOutput(os.Stderr))
	}
	if contextFile != "" {
		data, err := processing.LoadTemplateData(contextFile)
		if err != nil {
			slog.Error("failed to load context file", "filename", contextFile, "error", err)
			os.Exit(exitConfigurationError)
		}
		opts = append(opts, processing.WithTemplateData(data))
	}
	return opts
}

func newProber() probe.Prober {
	facter := probe.Facter{}
	if facter.Available() {
		slog.Debug("probing attributes with facter")
		return probe.Chain{facter, probe.Host{}}
	}
	return probe.Host{}
}

// versionOption defers deriving the label until a run starts, so listing
// and history never shell out to git.
func versionOption(cfg *api.Config) processing.Option {
	p, err := version.New(cfg.Version, cfg.Dir)
	if err != nil {
		slog.Warn("invalid version configuration", "error", err)
		return processing.WithVersion(version.Unknown)
	}
	return processing.WithVersionSource(version.Lazy(warnOnError{p}))
}

// warnOnError logs why no version could be derived.
type warnOnError struct {
	version.Provider
}

func (w warnOnError) Version(ctx context.Context) (string, error) {
	v, err := w.Provider.Version(ctx)
	if err != nil {
		slog.Warn("could not determine version", "error", err)
	}
	return v, err
}

func historyPath(baseDir string) string {
	if filepath.IsAbs(historyFile) {
		return historyFile
	}
	return filepath.Join(baseDir, historyFile)
}

func showHistory() {
	store := history.NewFileStore(historyPath(filepath.Dir(configFile)))
	recs, err := store.List(context.Background())
	if err != nil {
		slog.Error("failed to read history", "filename", store.Path, "error", err)
		os.Exit(exitHistoryReadFailed)
	}
	if err := report.RenderHistory(os.Stdout, history.Last(recs, historyCount), time.Now()); err != nil {
		slog.Warn("failed to write history", "error", err)
	}
}

func saveHistory(result *processing.RunResult) {
	if noHistory {
		return
	}
	store := history.NewFileStore(historyPath(filepath.Dir(configFile)))
	if err := store.Save(context.Background(), history.FromResult(result)); err != nil {
		slog.Warn("failed to record run", "filename", store.Path, "error", err)
	}
}

func printList(w io.Writer, e *processing.Executor) error {
	pipelines := e.Pipelines()
	used := make(map[string]bool)
	for _, name := range pipelines.Names() {
		pl, err := pipelines.Resolve(name)
		if err != nil {
			return err
		}
		for _, step := range pl.Steps {
			used[step] = true
		}
	}

	fmt.Fprintf(w, "environments: %s\n", strings.Join(e.Environments().Names(), ", "))
	fmt.Fprintln(w, "steps:")
	for _, name := range e.Steps().Names() {
		def, err := e.Steps().Resolve(name)
		if err != nil {
			return err
		}
		unused := ""
		if !used[name] {
			unused = " (unused)"
		}
		fmt.Fprintf(w, "  %s [%s]%s\n", name, def.Kind, unused)
	}
	fmt.Fprintln(w, "pipelines:")
	for _, name := range pipelines.Names() {
		pl, err := pipelines.Resolve(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %s: %s\n", name, strings.Join(pl.Steps, " -> "))
	}
	return nil
}

func exitCode(r *processing.RunResult) int {
	switch r.Outcome {
	case processing.RunSucceeded:
		return exitSucceeded
	case processing.RunEnvironmentIneligible:
		return exitEnvironmentIneligible
	}
	switch r.Category {
	case processing.CategoryRequirement:
		return exitStepSkipped
	case processing.CategoryInfrastructure:
		return exitInfrastructureError
	case processing.CategoryCancelled:
		return exitCancelled
	default:
		return exitExecutionFailed
	}
}

func includeEnv() {
	err := godotenv.Load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Error("failed to load .env", "error", err)
			os.Exit(exitDotenvError)
		}
		slog.Debug("no .env file found")
	} else {
		slog.Info("using .env file")
	}
}
