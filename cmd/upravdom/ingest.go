package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/upravdom/upravdom/internal/config"
	"github.com/upravdom/upravdom/internal/engine"
	"github.com/upravdom/upravdom/internal/ingest"
	"github.com/upravdom/upravdom/internal/retrieval"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <каталог>",
	Short: "Build the retrieval corpus from a directory of documents",
	Long: `Build the retrieval corpus from a directory of documents.

Supported formats: .txt, .md, .pdf. The resulting corpus is written to the
configured corpus path and picked up by "upravdom serve" on next start.

Examples:
  upravdom ingest ./документы
  upravdom ingest --out ./corpus.json ./документы`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath, _ := cmd.Flags().GetString("out")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)
		if outPath == "" {
			outPath = cfg.Storage.CorpusPath
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		eng := engine.NewOllama(cfg.Engine.BaseURL)
		if err := engine.EnsureReady(ctx, eng, os.Stderr, cfg.Engine.EmbedModel); err != nil {
			return err
		}

		printStep("Ingesting documents from %s", args[0])
		embedder := retrieval.NewEmbedder(eng, cfg.Engine.EmbedModel)
		builder := ingest.NewBuilder(embedder, retrieval.DefaultThemes())

		count, err := builder.Build(ctx, args[0], outPath)
		if err != nil {
			printError("ingest failed: %v", err)
			return fmt.Errorf("building corpus: %w", err)
		}

		printSuccess("Corpus written: %d chunks to %s", count, outPath)
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("out", "", "corpus output path (defaults to the configured corpus path)")
}
