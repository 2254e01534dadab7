// Package main is the triage CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/triage/internal/cli"
	"github.com/hyperjump/triage/internal/config"
	"github.com/hyperjump/triage/internal/guideline"
	"github.com/hyperjump/triage/internal/models"
	"github.com/hyperjump/triage/internal/server"
	"github.com/hyperjump/triage/internal/storage"
	"github.com/hyperjump/triage/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/triage/config.yaml"
	defaultServerURL  = "http://localhost:7860"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
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

// loadEnv reads a .env file next to the working directory if one exists.
func loadEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func main() {
	if err := loadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "build-index":
		runBuildIndex()
	case "emergency":
		runEmergency()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("triage version %s\n", version)
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
	debug := fs.Bool("debug", false, "enable debug logging (state transitions, raw model output)")
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
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid config", zap.Error(err))
	}

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(server.Deps{
		Triage:      components.Pipeline,
		Profiles:    components.Profiles,
		Index:       components.Cache,
		Transcriber: components.Transcriber,
		Metrics:     components.Metrics,
		DataPaths:   []string{cfg.Storage.DatabasePath, cfg.Storage.PersonalIndexDir},
	}, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runBuildIndex() {
	fs := flag.NewFlagSet("build-index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	recordsPath := fs.String("records", "", "guideline records file (.json array or .jsonl)")
	name := fs.String("name", "", "index name (default from config)")
	batch := fs.Int("batch", guideline.DefaultBatchSize, "records embedded per request")
	_ = fs.Parse(os.Args[2:])

	if *recordsPath == "" {
		fmt.Println("Usage: triage build-index --records <file.json|file.jsonl> [flags]")
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := utils.NewCommandLogger("build-index", cfg.Debug)
	defer logger.Sync()

	records, err := guideline.ReadRecordsFile(*recordsPath)
	if err != nil {
		fmt.Printf("Failed to read records: %v\n", err)
		os.Exit(1)
	}
	store, embedder, err := initializeStorage(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer store.Close()

	indexName := *name
	if indexName == "" {
		indexName = cfg.Retrieval.IndexName
	}
	builder := guideline.NewBuilder(store, embedder, guideline.WithLogger(logger), guideline.WithBatchSize(*batch))
	meta, err := builder.Build(context.Background(), indexName, records)
	if err != nil {
		fmt.Printf("Index build failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Built index %s with %d record(s)\n", meta.Name, len(records))
	fmt.Printf("  index_blob_id:   %s\n", meta.IndexBlobID)
	fmt.Printf("  records_blob_id: %s\n", meta.RecordsBlobID)
	fmt.Println("Restart the server to pick up the new index.")
}

// argsReorder moves any flags (and their values) that appear after the complaint
// text to the front so flag.Parse sees them; flag stops at the first non-flag.
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

// complaintText joins positional args so quoting is optional.
func complaintText(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runEmergency() {
	fs := flag.NewFlagSet("emergency", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	userID := fs.String("user", "", "user id of the requester")
	outputFormat := fs.String("output", "text", "output format: text or json")
	timeout := fs.Duration("timeout", 2*time.Minute, "request timeout")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if *userID == "" {
		fmt.Println("Usage: triage emergency --user <id> [flags] <description>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	client := cli.NewClient(*serverURL, *timeout)
	resp, err := client.Emergency(context.Background(), models.EmergencyRequest{
		UserID:    *userID,
		VoiceText: complaintText(fs.Args()),
	})
	if resp != nil {
		if werr := cli.WriteEmergencyResult(os.Stdout, resp, format); werr != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", werr)
			os.Exit(1)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Emergency request failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load the index directly from storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var report *cli.IndexStatusReport
	if *serverURL != "" {
		report, err = cli.NewClient(*serverURL, 10*time.Second).IndexStatus(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		report, err = directStatus(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteIndexStatus(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// directStatus loads the index from storage without a running server.
func directStatus(configPath string) (*cli.IndexStatusReport, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := utils.NewCommandLogger("status", cfg.Debug)
	defer logger.Sync()

	store, _, err := initializeStorage(cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	cache := guideline.NewCache(store, cfg.Retrieval.IndexName, logger)
	if err := cache.EnsureLoaded(context.Background()); err != nil {
		logger.Warn("guideline index not loadable", zap.Error(err))
	}
	report := &cli.IndexStatusReport{Index: cache.Status()}
	if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.PersonalIndexDir); err == nil {
		report.DiskUsageBytes = &diskBytes
	}
	return report, nil
}

func printUsage() {
	fmt.Println(`triage - Emergency triage and responder dispatch

Usage:
  triage server [flags]                      Start the HTTP server
  triage build-index --records <file>        Embed guideline records and store the shared index
  triage emergency --user <id> <text>        Submit an emergency to a running server
  triage status [flags]                      Show guideline index status
  triage version                             Show version
  triage help                                Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/triage/config.yaml)
  --debug            Enable debug logging (state transitions, raw model output)

Build-index Flags:
  --config string    Config file path
  --records string   Guideline records as a JSON array or JSON lines of {"question","answer"}
  --name string      Index name (default: retrieval.index_name from config)
  --batch int        Records embedded per request (default: 64)

Emergency Flags:
  --server string    Server URL (default: http://localhost:7860)
  --user string      Requesting user id
  --output string    Output format: text or json (default: text)
  --timeout duration Request timeout (default: 2m)

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:7860). Use empty (--server "") to load from storage.
  --output string    Output format: text or json (default: text)

Examples:
  triage server
  triage build-index --records guidelines.jsonl
  triage emergency --user bda550aa4e88 "my chest hurts and my left arm is numb"
  triage emergency --output json --user bda550aa4e88 sprained ankle
  triage status --output json`)
}
