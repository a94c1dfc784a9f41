// Package main is the Kotae CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/kotae/internal/assistant"
	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kotae/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// A missing default file yields the built-in defaults. Returns the config and the path
// that was actually loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "harness":
		runHarness()
	case "runs":
		runRuns()
	case "status":
		runStatus()
	case "reindex":
		runReindex()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads .env and config and builds a logger. It exits on failure.
func setup(configPath, envPath string, debug bool) (*config.Config, string, *zap.Logger) {
	if err := config.LoadEnv(envPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env: %v\n", err)
		os.Exit(1)
	}
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger
}

// startAssistant builds the engine and loads the corpus. It exits on failure.
func startAssistant(ctx context.Context, cfg *config.Config, logger *zap.Logger) *assistant.Assistant {
	a, err := assistant.New(ctx, cfg, assistant.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Close()
		logger.Fatal("Failed to load corpus", zap.Error(err))
	}
	return a
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	envPath := fs.String("env", ".env", "env file with provider keys")
	debug := fs.Bool("debug", false, "enable debug logging (turn stages, reloads, watch events)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := setup(*configPath, *envPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug || *debug),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := startAssistant(ctx, cfg, logger)
	defer a.Close()

	if cfg.Corpus.Watch {
		faqPath, docsDir := a.WatchPaths()
		watchSvc := watcher.NewWatcher(faqPath, docsDir, cfg.Corpus.Extensions, func() {
			if _, err := a.Reload(ctx); err != nil {
				logger.Warn("watch reload failed", zap.Error(err))
			}
		}, watcher.WithLogger(logger))
		if err := watchSvc.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(a, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = srv.Stop(stopCtx)
}

// buildQuery joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the question
// to the front of the slice so that flag.Parse() sees them.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	envPath := fs.String("env", ".env", "env file with provider keys (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = answer in-process without a server)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: kotae ask [flags] <question>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := buildQuery(fs.Args())
	if query == "" {
		fs.Usage()
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	var turn *models.Turn
	if *serverURL != "" {
		turn = &models.Turn{}
		if err := postJSON(*serverURL+"/api/v1/answer", models.AnswerRequest{Query: query}, turn); err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, logger := setup(*configPath, *envPath, false)
		defer logger.Sync()
		ctx := context.Background()
		a := startAssistant(ctx, cfg, logger)
		defer a.Close()
		turn = a.Ask(ctx, query)
	}
	if err := cli.WriteAnswer(os.Stdout, turn, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runHarness() {
	fs := flag.NewFlagSet("harness", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	envPath := fs.String("env", ".env", "env file with provider keys (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = run in-process without a server)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	var report *models.HarnessReport
	if *serverURL != "" {
		report = &models.HarnessReport{}
		if err := postJSON(*serverURL+"/api/v1/harness/run", nil, report); err != nil {
			fmt.Fprintf(os.Stderr, "Harness failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, logger := setup(*configPath, *envPath, false)
		defer logger.Sync()
		ctx := context.Background()
		a := startAssistant(ctx, cfg, logger)
		defer a.Close()
		var err error
		report, err = a.RunHarnessReport(ctx)
		if report == nil {
			fmt.Fprintf(os.Stderr, "Harness failed: %v\n", err)
			os.Exit(1)
		}
		if err != nil {
			logger.Warn("harness run not stored", zap.Error(err))
		}
	}
	if err := cli.WriteHarnessReport(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if report.Failed > 0 {
		os.Exit(2)
	}
}

func runRuns() {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	limit := fs.Int("limit", 20, "number of runs")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	if fs.NArg() > 0 {
		var report models.HarnessReport
		if err := getJSON(*serverURL+"/api/v1/harness/runs/"+fs.Arg(0), &report); err != nil {
			fmt.Fprintf(os.Stderr, "Get run failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteHarnessReport(os.Stdout, &report, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	var out struct {
		Runs []models.HarnessRunSummary `json:"runs"`
	}
	if err := getJSON(fmt.Sprintf("%s/api/v1/harness/runs?limit=%d", *serverURL, *limit), &out); err != nil {
		fmt.Fprintf(os.Stderr, "List runs failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteHarnessRuns(os.Stdout, out.Runs, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	envPath := fs.String("env", ".env", "env file with provider keys (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load the corpus in-process)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	var status *assistant.Status
	if *serverURL != "" {
		status = &assistant.Status{}
		if err := getJSON(*serverURL+"/api/v1/status", status); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, logger := setup(*configPath, *envPath, false)
		defer logger.Sync()
		ctx := context.Background()
		a := startAssistant(ctx, cfg, logger)
		defer a.Close()
		var err error
		status, err = a.Status(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runReindex() {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(os.Args[2:])

	var res struct {
		Rebuilt    bool   `json:"rebuilt"`
		Source     string `json:"source"`
		Documents  int    `json:"documents"`
		Chunks     int    `json:"chunks"`
		DurationMS int64  `json:"duration_ms"`
	}
	if err := postJSON(*serverURL+"/api/v1/reload", nil, &res); err != nil {
		fmt.Fprintf(os.Stderr, "Reindex failed: %v\n", err)
		os.Exit(1)
	}
	state := "unchanged, index reused"
	if res.Rebuilt {
		state = "rebuilt"
	}
	fmt.Printf("Corpus %s (%s): %d document(s), %d chunk(s) in %dms\n",
		state, res.Source, res.Documents, res.Chunks, res.DurationMS)
}

var httpClient = &http.Client{Timeout: 2 * time.Minute}

func postJSON(url string, body, out interface{}) error {
	var r io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	resp, err := httpClient.Post(url, "application/json", r)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeResponse(resp, out)
}

func getJSON(url string, out interface{}) error {
	resp, err := httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func printUsage() {
	fmt.Println(`kotae - Grounded question answering over insurance FAQs and policy documents

Usage:
  kotae server [flags]             Load the corpus and start the HTTP server
  kotae ask [flags] <question>     Answer a question with citations
  kotae harness [flags]            Run the accuracy harness (exit 2 on failures)
  kotae runs [flags] [run-id]      List stored harness runs or show one
  kotae status [flags]             Show corpus, index and provider status
  kotae reindex [flags]            Ask a running server to reload the corpus
  kotae version                    Show version
  kotae help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --env string       Env file with provider keys (default: .env)
  --debug            Enable debug logging

Ask / Harness / Status Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" to run in-process.
  --config string    Config file path (in-process mode)
  --output string    Output format: text or json (default: text)

Examples:
  kotae server
  kotae ask "Is a root canal covered by my dental plan?"
  kotae ask --output json what is a deductible
  kotae ask --server "" "What does Medicare Part B cover?"
  kotae harness
  kotae runs --limit 5
  kotae status --output json
  kotae reindex`)
}
