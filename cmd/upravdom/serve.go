package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/upravdom/upravdom/internal/agent"
	"github.com/upravdom/upravdom/internal/answer"
	"github.com/upravdom/upravdom/internal/api"
	"github.com/upravdom/upravdom/internal/composer"
	"github.com/upravdom/upravdom/internal/config"
	"github.com/upravdom/upravdom/internal/conversation"
	"github.com/upravdom/upravdom/internal/corpus"
	"github.com/upravdom/upravdom/internal/engine"
	"github.com/upravdom/upravdom/internal/feedback"
	"github.com/upravdom/upravdom/internal/index"
	"github.com/upravdom/upravdom/internal/retrieval"
	"github.com/upravdom/upravdom/internal/websearch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the upravdom server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

// app holds the assembled answer pipeline shared by the server and the
// one-shot ask command.
type app struct {
	cfg        config.Config
	engine     engine.Engine
	retriever  *retrieval.Retriever
	controller *conversation.Controller
	feedback   *feedback.Store
}

func (a *app) close() {
	if a.feedback != nil {
		if err := a.feedback.Close(); err != nil {
			slog.Warn("closing feedback store", "error", err)
		}
	}
}

// buildApp loads the corpus, checks engine readiness and wires the full
// pipeline. The corpus file must exist; run "upravdom ingest" first.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log.Level)

	eng := engine.NewOllama(cfg.Engine.BaseURL)
	if err := engine.EnsureReady(ctx, eng, os.Stderr,
		cfg.Engine.ChatModel, cfg.Engine.ClarifyModel, cfg.Engine.EmbedModel); err != nil {
		return nil, err
	}

	store, err := corpus.Load(cfg.Storage.CorpusPath)
	if err != nil {
		return nil, fmt.Errorf("loading corpus from %s (run \"upravdom ingest\" first): %w", cfg.Storage.CorpusPath, err)
	}
	idx, err := index.Build(store)
	if err != nil {
		return nil, fmt.Errorf("building vector index: %w", err)
	}
	slog.Info("corpus loaded", "chunks", store.Len(), "path", cfg.Storage.CorpusPath)

	embedder := retrieval.NewEmbedder(eng, cfg.Engine.EmbedModel)
	retriever := retrieval.NewRetriever(embedder, idx, store, retrieval.DefaultThemes())

	registry, err := agent.DefaultRegistry()
	if err != nil {
		return nil, fmt.Errorf("building agent registry: %w", err)
	}

	fb, err := feedback.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening feedback store: %w", err)
	}

	var search answer.Searcher
	if cfg.Search.Enabled {
		search = websearch.New()
	}

	answerTimeout, err := time.ParseDuration(cfg.Engine.AnswerTimeout)
	if err != nil {
		slog.Warn("invalid answer timeout, using default", "value", cfg.Engine.AnswerTimeout, "error", err)
		answerTimeout = 0
	}

	generator := answer.NewGenerator(
		eng,
		cfg.Engine.ChatModel,
		retriever,
		composer.Budget{MaxTokens: cfg.Retrieval.MaxContextTokens},
		cfg.Retrieval.TopK,
		search,
		fb,
		answerTimeout,
	)
	clarifier := conversation.NewClarifier(eng, cfg.Engine.ClarifyModel)
	controller := conversation.NewController(clarifier, registry, generator, fb)

	return &app{
		cfg:        cfg,
		engine:     eng,
		retriever:  retriever,
		controller: controller,
		feedback:   fb,
	}, nil
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "upravdom version %s\n", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	handler := api.NewHandler(a.controller, api.NewSessions())

	addr := fmt.Sprintf("127.0.0.1:%d", a.cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP server on stdio, alongside HTTP.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Responder: a.controller,
		Retriever: a.retriever,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "upravdom listening on %s\n", addr)
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

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show upravdom system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	engResp, err := client.Get(cfg.Engine.BaseURL + "/api/version")
	if err != nil {
		printStatus("Ollama", "not running")
	} else {
		engResp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.Engine.BaseURL)
	}

	printStatus("Chat model", "%s", cfg.Engine.ChatModel)
	printStatus("Clarify model", "%s", cfg.Engine.ClarifyModel)
	printStatus("Embed model", "%s", cfg.Engine.EmbedModel)

	if chunks, ok := corpusSize(cfg.Storage.CorpusPath); ok {
		printStatus("Corpus", "%d chunks", chunks)
	} else {
		printStatus("Corpus", "not ingested (%s)", cfg.Storage.CorpusPath)
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func corpusSize(path string) (int, bool) {
	store, err := corpus.Load(path)
	if err != nil {
		return 0, false
	}
	return store.Len(), true
}
