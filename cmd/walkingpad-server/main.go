package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/zombor/walkingpad-tracker/internal/api"
	"github.com/zombor/walkingpad-tracker/internal/scanning"
	"github.com/zombor/walkingpad-tracker/internal/storage"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// Load .env file if present (ignore errors)
	_ = godotenv.Load()

	fs := ff.NewFlagSet("walkingpad-server")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		storageType    = fs.StringLong("storage", "local", "Capture storage: 'local' or 'gcs'")
		storagePath    = fs.StringLong("storage-path", "./captures", "Local capture directory")
		publicURL      = fs.StringLong("public-url", "", "Base URL the model uses to fetch local captures (default http://localhost:<port>)")
		gcsBucket      = fs.StringLong("gcs-bucket", "", "Google Cloud Storage bucket for captures")
		gcsCredentials = fs.StringLong("gcs-credentials", "", "Service account JSON file (default: application default credentials)")
		scannerType    = fs.StringLong("scanner", "gemini", "Scanner type: 'gemini', 'ollama' or 'openai'")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)")
		openaiURL      = fs.StringLong("openai-url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
		openaiKey      = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openaiModel    = fs.StringLong("openai-model", "gpt-4o", "OpenAI model name")
		_              = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("WALKINGPAD"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize analyzer based on scanner type
	var analyzer scanning.Analyzer
	var err error
	switch *scannerType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		analyzer, err = scanning.NewGemini(apiKey, *geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		analyzer, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
	case "openai":
		apiKey := *openaiKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		slog.Info("Initializing OpenAI scanner...", "url", *openaiURL, "model", *openaiModel)
		analyzer, err = scanning.NewOpenAI(*openaiURL, apiKey, *openaiModel)
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "gemini, ollama or openai")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize scanner", "scanner", *scannerType, "error", err)
		os.Exit(1)
	}
	defer analyzer.Close()

	// Initialize storage
	slog.Info("Initializing storage...", "type", *storageType)
	var (
		store  storage.BlobStore
		reader storage.BlobReader
	)
	switch *storageType {
	case "local":
		base := *publicURL
		if base == "" {
			base = fmt.Sprintf("http://localhost:%d", *port)
		}
		local, err := storage.NewLocalStorage(*storagePath, base)
		if err != nil {
			slog.Error("Failed to initialize storage", "error", err)
			os.Exit(1)
		}
		store, reader = local, local
	case "gcs":
		if *gcsBucket == "" {
			slog.Error("--gcs-bucket is required for gcs storage")
			os.Exit(1)
		}
		gcsStore, err := storage.NewGCSStore(ctx, *gcsBucket, *gcsCredentials)
		if err != nil {
			slog.Error("Failed to initialize storage", "error", err)
			os.Exit(1)
		}
		store = gcsStore
	default:
		slog.Error("Invalid storage type", "type", *storageType, "valid", "local or gcs")
		os.Exit(1)
	}

	server := api.NewServer(api.NewService(store, reader, analyzer))

	addr := fmt.Sprintf(":%d", *port)
	if err := server.Run(ctx, addr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}
