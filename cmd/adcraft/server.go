package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/adcraft/internal/api"
	"github.com/kalambet/adcraft/internal/campaign"
	"github.com/kalambet/adcraft/internal/config"
	"github.com/kalambet/adcraft/internal/extract"
	"github.com/kalambet/adcraft/internal/filter"
	"github.com/kalambet/adcraft/internal/genai"
	"github.com/kalambet/adcraft/internal/jobs"
	"github.com/kalambet/adcraft/internal/llm"
	"github.com/kalambet/adcraft/internal/metrics"
	"github.com/kalambet/adcraft/internal/pipeline"
	"github.com/kalambet/adcraft/internal/storage"
	"github.com/kalambet/adcraft/internal/tagger"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the adcraft server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running adcraft server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show adcraft system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "adcraft.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// openStore opens PostgreSQL when a DSN is configured, SQLite otherwise.
func openStore(cfg config.StorageConfig) (*storage.Store, error) {
	if cfg.DSN != "" {
		return storage.OpenDSN(cfg.DSN, cfg.DataDir)
	}
	return storage.Open(cfg.DataDir)
}

// newOrchestrator wires the generation pipeline around one generative client.
func newOrchestrator(cfg config.Config, completer llm.Completer, store *storage.Store, m *metrics.Metrics) *pipeline.Orchestrator {
	client := genai.New(completer, genai.Options{
		Model:       cfg.LLM.Model,
		VisionModel: cfg.LLM.VisionModel,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		HTTPClient:  &http.Client{Timeout: cfg.Extract.TimeoutDuration()},
		Metrics:     m,
	})

	return pipeline.New(pipeline.Deps{
		Extractor: extract.New(cfg.Extract.TimeoutDuration()),
		Tagger:    tagger.New(client, cfg.Tagger.MaxTags),
		Generator: client,
		Policy:    filter.NewPolicyFilter(client),
		Relevance: filter.NewRelevanceFilter(client),
		Assembler: campaign.New(store, m),
		Metrics:   m,
	})
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "adcraft version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("adcraft is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("adcraft is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()
	slog.Info("campaign store ready", "backend", store.Backend())

	m := metrics.New()
	go reportDBStats(ctx, m, store)

	orchestrator := newOrchestrator(cfg, llm.NewOpenAIClient(cfg.LLM.APIKey, cfg.LLM.BaseURL), store, m)

	worker := jobs.NewWorker(store, orchestrator, m, 500*time.Millisecond)
	go worker.Run(ctx)

	if cfg.Server.MCPEnabled {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Service: orchestrator, Store: store})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(api.Deps{Service: orchestrator, Store: store, Metrics: m}),
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "adcraft listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// reportDBStats refreshes the connection pool gauges until ctx is done.
func reportDBStats(ctx context.Context, m *metrics.Metrics, store *storage.Store) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		m.UpdateDBStats(store.DB())
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("adcraft is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop adcraft (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to adcraft (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("LLM endpoint", "%s", cfg.LLM.BaseURL)
	printStatus("Text model", "%s", cfg.LLM.Model)
	printStatus("Vision model", "%s", cfg.LLM.VisionModel)

	if running {
		if campaignsResp, err := client.Get(serverURL + "/campaigns?limit=100"); err == nil {
			var campaigns []json.RawMessage
			if json.NewDecoder(campaignsResp.Body).Decode(&campaigns) == nil {
				printStatus("Campaigns", "%s", countLabel(len(campaigns), 100))
			}
			campaignsResp.Body.Close()
		}
	}

	if cfg.Storage.DSN != "" {
		printStatus("Store", "postgres")
	} else {
		printStatus("Store", "sqlite")
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
