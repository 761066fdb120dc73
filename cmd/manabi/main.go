// Package main is the Manabi CLI entry point.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/chalkboard-ai/manabi/internal/answer"
	"github.com/chalkboard-ai/manabi/internal/catalog"
	"github.com/chalkboard-ai/manabi/internal/cli"
	"github.com/chalkboard-ai/manabi/internal/config"
	"github.com/chalkboard-ai/manabi/internal/embedding"
	"github.com/chalkboard-ai/manabi/internal/history"
	"github.com/chalkboard-ai/manabi/internal/indexer"
	"github.com/chalkboard-ai/manabi/internal/models"
	"github.com/chalkboard-ai/manabi/internal/query"
	"github.com/chalkboard-ai/manabi/internal/router"
	"github.com/chalkboard-ai/manabi/internal/server"
	"github.com/chalkboard-ai/manabi/internal/watcher"
	"github.com/chalkboard-ai/manabi/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/manabi/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "manabi server" from the project dir uses the project's config (including debug).
// Returns the config and the path that was actually loaded (for saving, etc.).
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
	case "chat":
		runChat()
	case "catalog":
		runCatalog()
	case "history":
		runHistory()
	case "status":
		runStatus()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("manabi version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (routing scores, index builds, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.EnabledOrDefault() {
		watchOpts := []watcher.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		invalidate := func(path string) {
			if components.Cache != nil {
				components.Cache.Invalidate(path)
			}
			if err := components.Catalog.Refresh(context.Background(), path); err != nil {
				logger.Warn("catalog refresh failed", zap.String("path", path), zap.Error(err))
			}
		}
		watchSvc := watcher.New(
			cfg.Content.Dir,
			cfg.Watch.RecursiveOrDefault(),
			func(path string) {
				invalidate(path)
				if strings.HasPrefix(filepath.Base(path), "chapter_mapping") {
					// The routing table is embedded at startup.
					logger.Info("chapter mapping changed; restart the server to rebuild routing",
						zap.String("path", path))
				}
			},
			invalidate,
			watchOpts...,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(
		components.Engine,
		components.Chat,
		components.Catalog,
		components.Router,
		components.Store,
		components.Cache,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// printAskUsage prints ask subcommand usage and retrieval hints.
func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: manabi ask [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "Question is all remaining arguments joined by spaces. Multi-word questions work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
The question is routed to the best-matching curriculum chapter first. When no
chapter clears the relevance threshold the answer is a refusal, so questions
outside the loaded curriculum return no chunks.
  • Use --n to control how many chunks are retrieved (0 = configured default).
  • Use --topic to restrict chunks to a single topic within the routed chapter.
  • Use --output json for structured output consumable by other apps.

Examples:
  manabi ask What is a fraction?
  manabi ask "What is a fraction?"                  # same as above
  manabi ask --n 12 photosynthesis inputs
  manabi ask --topic "Comparing Fractions" how do I order fractions
  manabi ask --output json "What is a fraction?"
`)
}

// buildQuery joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting (e.g. "what is a fraction" vs what is a fraction).
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "manabi ask \"question\" -n 12"
// would otherwise leave -n unparsed (default used).
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

func runAsk() {
	askArgs := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = run the retrieval pipeline in-process)")
	nResults := fs.Int("n", 0, "number of chunks to retrieve (0 = configured default)")
	topic := fs.String("topic", "", "restrict chunks to one topic name")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(askArgs)

	question := buildQuery(fs.Args())
	if question == "" {
		printAskUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	req := &models.AskRequest{
		Question:    question,
		NResults:    *nResults,
		TopicFilter: *topic,
	}

	if *serverURL != "" {
		// Use the HTTP API when the server is running (avoids a second
		// embedding model load and a SQLite lock conflict).
		result, err := askViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteAskResult(os.Stdout, result, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Direct in-process retrieval (when the server is not running).
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	result, err := components.Engine.Ask(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAskResult(os.Stdout, result, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runChat() {
	chatArgs := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = run chat in-process)")
	session := fs.String("session", "", "session ID to continue (empty = start a new session)")
	_ = fs.Parse(chatArgs)

	sessionID := *session
	send := func(message string) (*models.ChatResult, error) {
		req := &models.ChatRequest{Message: message, SessionID: sessionID}
		if *serverURL != "" {
			return chatViaHTTP(*serverURL, req)
		}
		return directChat(*configPath, req)
	}

	// Single-shot mode: question given on the command line.
	if question := buildQuery(fs.Args()); question != "" {
		result, err := send(question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Chat failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteChatResult(os.Stdout, result, cli.OutputText); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Interactive mode: one exchange per line until exit/quit/EOF.
	fmt.Println("Curriculum chat. Type your question, or \"exit\" to leave.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}
		result, err := send(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Chat failed: %v\n", err)
			continue
		}
		// Carry the session forward so follow-up questions keep their context.
		if result.SessionID != "" {
			sessionID = result.SessionID
		}
		if err := cli.WriteChatResult(os.Stdout, result, cli.OutputText); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		}
		fmt.Println()
	}
}

// directChat runs a single conversational turn in-process. Each call builds and
// tears down the full component set, so interactive use is much slower than
// going through a running server.
func directChat(configPath string, req *models.ChatRequest) (*models.ChatResult, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		return nil, err
	}
	defer components.Close()

	if components.Chat == nil {
		return nil, fmt.Errorf("chat is not enabled: set %s", cfg.Answer.APIKeyEnv)
	}
	return components.Chat.Chat(context.Background(), req)
}

func runCatalog() {
	catArgs := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("catalog", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = scan the content directory in-process)")
	limit := fs.Int("limit", 0, "maximum number of search matches (0 = catalog default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(catArgs)

	// With no terms the catalog is listed; with terms it is searched.
	queryStr := buildQuery(fs.Args())
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if *serverURL != "" {
		if queryStr == "" {
			docs, err := documentsViaHTTP(*serverURL)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Catalog failed: %v\n", err)
				os.Exit(1)
			}
			if err := cli.WriteDocuments(os.Stdout, docs, format); err != nil {
				fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
				os.Exit(1)
			}
			return
		}
		matches, err := catalogSearchViaHTTP(*serverURL, queryStr, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Catalog search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteMatches(os.Stdout, matches, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if queryStr == "" {
		if err := cli.WriteDocuments(os.Stdout, components.Catalog.Documents(), format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	matches, err := components.Catalog.Search(context.Background(), queryStr, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Catalog search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteMatches(os.Stdout, matches, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read the history database directly)")
	limit := fs.Int("limit", 50, "maximum number of exchanges")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: manabi history [flags] <session-id>")
		os.Exit(1)
	}
	sessionID := fs.Arg(0)
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if *serverURL != "" {
		exchanges, err := historyViaHTTP(*serverURL, sessionID, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "History failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteExchanges(os.Stdout, exchanges, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Direct mode only needs the history database, not the full pipeline.
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	store, err := history.NewStore(cfg.History.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	exchanges, err := store.SessionHistory(context.Background(), sessionID, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "History failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteExchanges(os.Stdout, exchanges, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// statusConfigResponse holds configuration info returned by status.
type statusConfigResponse struct {
	ContentDir          string  `json:"content_dir,omitempty"`
	EmbeddingProvider   string  `json:"embedding_provider,omitempty"`
	EmbeddingModel      string  `json:"embedding_model,omitempty"`
	EmbeddingDimensions int     `json:"embedding_dimensions,omitempty"`
	RelevanceThreshold  float64 `json:"relevance_threshold,omitempty"`
	ChatEnabled         bool    `json:"chat_enabled"`
	HistoryEnabled      bool    `json:"history_enabled"`
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Chapters       int                   `json:"chapters"`
	Documents      int                   `json:"documents"`
	CachedIndexes  *int                  `json:"cached_indexes,omitempty"`
	Exchanges      *int64                `json:"exchanges,omitempty"`
	DiskUsageBytes *int64                `json:"disk_usage_bytes,omitempty"`
	Config         *statusConfigResponse `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = inspect in-process)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		ctx := context.Background()
		status = statusResponse{
			Chapters:  len(components.Router.Chapters()),
			Documents: components.Catalog.Len(),
			Config: &statusConfigResponse{
				ContentDir:          cfg.Content.Dir,
				EmbeddingProvider:   cfg.Embedding.Provider,
				EmbeddingModel:      cfg.Embedding.Model,
				EmbeddingDimensions: cfg.Embedding.Dimensions,
				RelevanceThreshold:  cfg.Retrieval.RelevanceThreshold,
				ChatEnabled:         components.Chat != nil,
				HistoryEnabled:      components.Store != nil,
			},
		}
		if components.Cache != nil {
			cached := components.Cache.Len()
			status.CachedIndexes = &cached
		}
		if count, err := components.Store.CountExchanges(ctx); err == nil {
			status.Exchanges = &count
			if diskBytes, diskErr := components.Store.DiskUsageBytes(); diskErr == nil {
				status.DiskUsageBytes = &diskBytes
			}
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("chapters:           %d   # routable curriculum chapters\n", status.Chapters)
		fmt.Printf("documents:          %d   # chapter files in the catalog\n", status.Documents)
		if status.CachedIndexes != nil {
			fmt.Printf("cached_indexes:     %d   # chapter indexes held in memory\n", *status.CachedIndexes)
		}
		if status.Exchanges != nil {
			fmt.Printf("exchanges:          %d   # recorded conversation turns\n", *status.Exchanges)
		}
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes:   %d   # history database on disk\n", *status.DiskUsageBytes)
		}
		if status.Config != nil {
			fmt.Println()
			fmt.Println("# configuration")
			if status.Config.ContentDir != "" {
				fmt.Printf("content_dir:         %s\n", status.Config.ContentDir)
			}
			fmt.Printf("embedding_provider:  %s\n", status.Config.EmbeddingProvider)
			if status.Config.EmbeddingModel != "" {
				fmt.Printf("embedding_model:     %s\n", status.Config.EmbeddingModel)
			}
			if status.Config.EmbeddingDimensions > 0 {
				fmt.Printf("embedding_dims:      %d\n", status.Config.EmbeddingDimensions)
			}
			fmt.Printf("relevance_threshold: %.2f\n", status.Config.RelevanceThreshold)
			fmt.Printf("chat_enabled:        %t\n", status.Config.ChatEnabled)
			fmt.Printf("history_enabled:     %t\n", status.Config.HistoryEnabled)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "where to write the starter config")
	force := fs.Bool("force", false, "overwrite an existing config file")
	_ = fs.Parse(os.Args[2:])

	if _, err := os.Stat(*configPath); err == nil && !*force {
		fmt.Printf("Config already exists at %s (use --force to overwrite)\n", *configPath)
		os.Exit(1)
	}

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	// Spell the optional booleans out so the starter file reads as a full example.
	cacheOn := true
	watchOn := true
	recursive := true
	cfg.Retrieval.CacheEnabled = &cacheOn
	cfg.Watch.Enabled = &watchOn
	cfg.Watch.Recursive = &recursive

	if dir := filepath.Dir(*configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create config directory: %v\n", err)
			os.Exit(1)
		}
	}
	if err := config.Save(*configPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote starter config to %s\n", *configPath)
	fmt.Println("Edit content.dir to point at your curriculum directory (chapter_mapping.json plus chapter JSON files).")
}

func askViaHTTP(serverURL string, req *models.AskRequest) (*models.AskResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/ask", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var result models.AskResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

func chatViaHTTP(serverURL string, req *models.ChatRequest) (*models.ChatResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var result models.ChatResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

func documentsViaHTTP(serverURL string) ([]*catalog.DocumentInfo, error) {
	resp, err := http.Get(serverURL + "/api/v1/documents")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Documents []*catalog.DocumentInfo `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Documents, nil
}

func catalogSearchViaHTTP(serverURL, queryStr string, limit int) ([]*catalog.Match, error) {
	params := url.Values{}
	params.Set("q", queryStr)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	resp, err := http.Get(serverURL + "/api/v1/catalog/search?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Matches []*catalog.Match `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Matches, nil
}

func historyViaHTTP(serverURL, sessionID string, limit int) ([]*history.Exchange, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	u := serverURL + "/api/v1/history/" + url.PathEscape(sessionID)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	resp, err := http.Get(u)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Exchanges []*history.Exchange `json:"exchanges"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Exchanges, nil
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// Components holds initialized services.
type Components struct {
	Embedder embedding.Embedder
	Router   *router.Router
	Cache    *indexer.Cache
	Engine   *query.Engine
	Catalog  *catalog.Catalog
	Store    *history.Store
	Chat     *answer.Service
}

func (c *Components) Close() {
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// newEmbedder builds the embedder named by the config, falling back to mock
// embeddings when the real backend is unavailable so the pipeline stays usable
// on machines without the model.
func newEmbedder(cfg *config.Config, logger *zap.Logger) embedding.Embedder {
	switch cfg.Embedding.Provider {
	case config.ProviderHTTP:
		httpEmbedder, err := embedding.NewHTTPEmbedder(
			cfg.Embedding.BaseURL,
			cfg.Embedding.APIKeyEnv,
			cfg.Embedding.Model,
			cfg.Embedding.Dimensions,
			cfg.Embedding.CacheSize,
		)
		if err == nil {
			return httpEmbedder
		}
		logger.Warn("http embedder unavailable, using mock embeddings", zap.Error(err))
	case config.ProviderMock:
	default:
		onnxEmbedder, err := embedding.NewONNXEmbedder(
			cfg.Embedding.ModelPath,
			cfg.Embedding.Dimensions,
			cfg.Embedding.MaxTokens,
			cfg.Embedding.CacheSize,
		)
		if err == nil {
			return onnxEmbedder
		}
		logger.Warn("onnx embedder unavailable, using mock embeddings",
			zap.String("model_path", cfg.Embedding.ModelPath),
			zap.Error(err))
	}
	return embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	embedder := newEmbedder(cfg, logger)

	rt, err := router.New(context.Background(), cfg.Content.ChapterMapping, cfg.Content.Dir, embedder, router.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build chapter router: %w", err)
	}

	idxOpts := []indexer.IndexerOption{}
	if debug {
		idxOpts = append(idxOpts, indexer.WithLogger(logger))
	}
	idx := indexer.NewIndexer(embedder, idxOpts...)

	var cache *indexer.Cache
	var provider query.IndexProvider = idx
	if cfg.Retrieval.CacheEnabledOrDefault() {
		cache = indexer.NewCache(idx, cfg.Retrieval.CacheSize)
		provider = cache
	}
	engine := query.NewEngine(rt, provider, embedder, &cfg.Retrieval)

	chapters := make(map[string]string)
	for _, entry := range rt.Entries() {
		chapters[entry.JSONFile] = entry.ChapterName
	}
	cat, err := catalog.New(cfg.Content.Dir, chapters, catalog.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog: %w", err)
	}
	if err := cat.Scan(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to scan content directory: %w", err)
	}

	store, err := history.NewStore(cfg.History.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	// Chat needs a generation backend; without the API key the retrieval
	// pipeline still works and chat endpoints report themselves disabled.
	var chat *answer.Service
	if os.Getenv(cfg.Answer.APIKeyEnv) != "" {
		client := answer.NewClient(&cfg.Answer)
		chat = answer.NewService(engine, client, store, &cfg.Answer, answer.WithLogger(logger))
	} else {
		logger.Info("chat disabled: answer API key not set", zap.String("env", cfg.Answer.APIKeyEnv))
	}

	return &Components{
		Embedder: embedder,
		Router:   rt,
		Cache:    cache,
		Engine:   engine,
		Catalog:  cat,
		Store:    store,
		Chat:     chat,
	}, nil
}

func printUsage() {
	fmt.Println(`manabi - Curriculum-grounded retrieval and chat

Usage:
  manabi server [flags]             Start the HTTP server
  manabi ask [flags] <question>     Retrieve curriculum context for a question
  manabi chat [flags] [question]    Chat against the curriculum (interactive without a question)
  manabi catalog [flags] [terms]    List chapter documents, or search them by terms
  manabi history [flags] <session>  Show the recorded transcript of a session
  manabi status [flags]             Show router/catalog/history status
  manabi init [flags]               Write a starter config file
  manabi version                    Show version
  manabi help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/manabi/config.yaml)
  --debug            Enable debug logging (routing scores, index builds, etc.)

Ask Flags:
  --config string    Config file path (for in-process mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to run in-process.
  --n int            Number of chunks to retrieve (0 = configured default)
  --topic string     Restrict chunks to one topic within the routed chapter
  --output string    Output format: text or json (default: text)

Chat Flags:
  --config string    Config file path (for in-process mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to run in-process.
  --session string   Session ID to continue (empty = start a new session)

Catalog Flags:
  --config string    Config file path (for in-process mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to run in-process.
  --limit int        Maximum number of search matches (0 = catalog default)
  --output string    Output format: text or json (default: text)

History Flags:
  --config string    Config file path (for direct database mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to read the database directly.
  --limit int        Maximum number of exchanges (default: 50)
  --output string    Output format: text or json (default: text)

Status Flags:
  --config string    Config file path (for in-process mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to inspect in-process.
  --output string    Output format: text or json (default: text)

Examples:
  manabi server
  manabi ask "What is a fraction?"
  manabi ask --n 12 photosynthesis inputs
  manabi ask --output json "What is a fraction?"   # structured JSON for other apps
  manabi chat
  manabi chat --session 1b9cc9 "Why does that work?"
  manabi catalog
  manabi catalog fractions
  manabi history 1b9cc9
  manabi status --output json
  manabi init --config ./config.yaml`)
}
