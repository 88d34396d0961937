package main

import (
	"context"
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

	"github.com/applypilot/applypilot/internal/answer"
	"github.com/applypilot/applypilot/internal/api"
	"github.com/applypilot/applypilot/internal/classify"
	"github.com/applypilot/applypilot/internal/config"
	"github.com/applypilot/applypilot/internal/index"
	"github.com/applypilot/applypilot/internal/jobinfo"
	"github.com/applypilot/applypilot/internal/journal"
	"github.com/applypilot/applypilot/internal/profile"
	"github.com/applypilot/applypilot/internal/provider"
	"github.com/applypilot/applypilot/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the applypilot server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		company, _ := cmd.Flags().GetString("company")
		jobTitle, _ := cmd.Flags().GetString("job-title")
		descFile, _ := cmd.Flags().GetString("job-description")
		remote, _ := cmd.Flags().GetBool("remote")

		job, err := loadJobContext(company, jobTitle, descFile)
		if err != nil {
			return err
		}
		return runServer(job, remote)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running applypilot server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applypilot system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	startCmd.Flags().String("company", "", "company the application session targets")
	startCmd.Flags().String("job-title", "", "job title the application session targets")
	startCmd.Flags().String("job-description", "", "file with the job description (HTML or plain text)")
	startCmd.Flags().Bool("remote", false, "use the hosted model instead of local Ollama")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "applypilot.pid")
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

func runServer(job jobinfo.Context, remote bool) error {
	fmt.Fprintf(os.Stderr, "applypilot version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()})))

	// Refuse to double-start. The health endpoint is the authority, the PID
	// file only names the culprit.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prof, err := profile.Load(cfg.Profile.Path)
	if err != nil {
		return fmt.Errorf("loading profile: %w", err)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	local := provider.NewLocalClient(cfg.Ollama.BaseURL)
	ollamaUp := local.IsRunning(ctx)
	if !ollamaUp {
		printWarning("Ollama is not running at %s; retrieval and generation degrade to profile fallbacks", cfg.Ollama.BaseURL)
	} else {
		for _, model := range []string{cfg.Ollama.ChatModel, cfg.Ollama.EmbedModel} {
			if !local.HasModel(ctx, model) {
				printWarning("model %q is not pulled; run: ollama pull %s", model, model)
			}
		}
	}

	var chatter provider.Chatter = local
	chatModel := cfg.Ollama.ChatModel
	if remote {
		if cfg.Remote.APIKey == "" {
			return fmt.Errorf("remote model requested but no API key configured; %s", config.RemoteKeyHint())
		}
		chatter = provider.NewRemoteClient(cfg.Remote.APIKey, cfg.Remote.BaseURL)
		chatModel = cfg.Remote.Model
		slog.Info("using hosted model", "model", chatModel)
	}

	idx := index.New(local, cfg.Ollama.EmbedModel, store)
	if ollamaUp {
		report, err := idx.Ingest(ctx, prof, nil)
		if err != nil {
			slog.Warn("initial profile indexing failed", "error", err)
		} else {
			slog.Info("profile indexed",
				"total", report.Total, "indexed", report.Indexed,
				"failed", report.Failed, "spilled", report.Spilled)
		}
	}

	classifier := classify.New(local, cfg.Ollama.ClassifyModel)
	jnl := journal.New(store, job.Company, job.Title)
	eng := answer.New(prof, idx, chatter, chatModel, jnl, classifier)
	eng.SetJob(job)
	eng.SetTopK(cfg.Index.TopK)

	apiToken := os.Getenv("APPLYPILOT_API_TOKEN")
	appHandler := api.NewAppHandler(api.AppDeps{
		Engine:  eng,
		Index:   idx,
		Profile: prof,
		Store:   store,
		Journal: jnl,
		Token:   apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: appHandler,
	}

	// MCP server over stdio, for browser-extension and agent hosts.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Engine:   eng,
		Searcher: idx,
		Profile:  prof,
		Journal:  jnl,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Same MCP surface over streamable HTTP, for hosts that cannot attach
	// to our stdio.
	mcpHTTP := server.NewStreamableHTTPServer(mcpSrv)
	mcpAddr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.MCPPort)
	go func() {
		if err := mcpHTTP.Start(mcpAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("MCP HTTP server error", "error", err)
		}
	}()
	slog.Info("MCP server started (http transport)", "addr", mcpAddr)

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "applypilot listening on %s\n", addr)
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

	// Persist whatever the debounce has not written yet.
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), 5*time.Second)
	jnl.Flush(flushCtx)
	cancelFlush()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mcpHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Warn("MCP HTTP shutdown", "error", err)
	}
	return srv.Shutdown(shutdownCtx)
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
		printError("applypilot is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop applypilot (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to applypilot (PID %d)", pid)
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

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
	if err != nil {
		printStatus("Ollama", "not running")
	} else {
		ollamaResp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	}

	printStatus("Chat model", "%s", cfg.Ollama.ChatModel)
	printStatus("Classify model", "%s", cfg.Ollama.ClassifyModel)
	printStatus("Embed model", "%s", cfg.Ollama.EmbedModel)
	printStatus("Profile", "%s", cfg.Profile.Path)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
