package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hireflow/hireflow/internal/chunk"
	"github.com/hireflow/hireflow/internal/config"
	"github.com/hireflow/hireflow/internal/embedding"
	"github.com/hireflow/hireflow/internal/embedding/openai"
	"github.com/hireflow/hireflow/internal/extract"
	"github.com/hireflow/hireflow/internal/match"
	"github.com/hireflow/hireflow/internal/observability"
	"github.com/hireflow/hireflow/internal/server"
	"github.com/hireflow/hireflow/internal/store"
	"github.com/hireflow/hireflow/internal/timeline"
	"github.com/hireflow/hireflow/internal/vector"
)

const version = "0.1.0"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "hireflow",
		Short: "Resume-to-job semantic matching pipeline",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (optional)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	var (
		indexFile string
		indexName string
	)
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Index a resume file into the vector collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(configPath, indexFile, indexName)
		},
	}
	indexCmd.Flags().StringVar(&indexFile, "file", "", "Path to the resume file")
	indexCmd.Flags().StringVar(&indexName, "name", "", "Filename to index under (defaults to the file's base name)")
	_ = indexCmd.MarkFlagRequired("file")

	var (
		scoreResume  string
		scoreProfile string
		scoreTopK    int
	)
	scoreCmd := &cobra.Command{
		Use:   "score",
		Short: "Score an indexed resume against an ideal profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(configPath, scoreResume, scoreProfile, scoreTopK)
		},
	}
	scoreCmd.Flags().StringVar(&scoreResume, "resume", "", "Indexed resume filename")
	scoreCmd.Flags().StringVar(&scoreProfile, "profile", "", "Ideal profile text, or @path to read from a file")
	scoreCmd.Flags().IntVar(&scoreTopK, "top-k", match.DefaultTopK, "Number of fragments to consider")
	_ = scoreCmd.MarkFlagRequired("resume")
	_ = scoreCmd.MarkFlagRequired("profile")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("hireflow", version)
		},
	}

	rootCmd.AddCommand(serveCmd, indexCmd, scoreCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// buildEngine wires the chunker, embedding provider and Qdrant index.
func buildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*match.Engine, *vector.QdrantIndex, error) {
	client := openai.New(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.BaseURL, cfg.Embedding.Dimension)
	provider := embedding.NewRetryProvider(client, embedding.DefaultRetryConfig())

	index, err := vector.NewQdrant(cfg.Vector.Host, cfg.Vector.Port, cfg.Vector.Collection, provider.Dimension(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to qdrant: %w", err)
	}
	if err := index.EnsureCollection(ctx); err != nil {
		index.Close()
		return nil, nil, fmt.Errorf("ensuring collection: %w", err)
	}

	engine := match.NewEngine(chunk.New(chunk.DefaultMaxTokens, chunk.DefaultOverlap), provider, index, cfg.Embedding.Workers, logger)
	return engine, index, nil
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	ctx := context.Background()
	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     1.0,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	engine, index, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}

	repo, err := store.Open(cfg.Database.Path)
	if err != nil {
		index.Close()
		return fmt.Errorf("opening database: %w", err)
	}

	gate := timeline.NewGate(timeline.GateConfig{
		ThresholdPercent:  cfg.Gate.ThresholdPercent,
		RejectionFeedback: cfg.Gate.RejectionFeedback,
	})

	health := server.NewHealthServer(version)
	health.RegisterCheck("database", server.DatabaseHealthChecker(repo.Ping))
	health.RegisterCheck("vector-index", server.VectorIndexHealthChecker(cfg.Vector.Collection, index.Ping))
	health.RegisterCheck("embedding", server.EmbeddingHealthChecker(cfg.Embedding.Model, nil))

	srv := server.NewServer(
		&server.APIConfig{ListenAddr: cfg.Server.Addr},
		engine, repo, gate, &extract.PlainText{}, health, logger,
	)

	shutdown := server.NewShutdownHandler(&server.ShutdownConfig{
		Timeout: 30 * time.Second,
		Signals: server.DefaultShutdownConfig().Signals,
		Logger:  logger,
	})
	shutdown.RegisterHook("api-server", 10, srv.Stop)
	shutdown.RegisterHook("vector-index", 50, func(ctx context.Context) error {
		return index.Close()
	})
	shutdown.RegisterHook("tracing", 80, tp.Shutdown)
	shutdown.RegisterHook("database", 90, func(ctx context.Context) error {
		return repo.Close()
	})
	shutdown.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		shutdown.Shutdown()
		shutdown.Wait()
		return err
	case <-shutdown.Done():
		return nil
	}
}

func runIndex(configPath, filePath, name string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	ctx := context.Background()
	engine, index, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer index.Close()

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filePath, err)
	}
	defer f.Close()

	extractor := &extract.PlainText{}
	text, err := extractor.Extract(ctx, f)
	if err != nil {
		return fmt.Errorf("extracting text: %w", err)
	}

	if name == "" {
		parts := strings.Split(strings.ReplaceAll(filePath, "\\", "/"), "/")
		name = parts[len(parts)-1]
	}

	report, err := engine.IndexDocument(ctx, name, text)
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %s as document %s: %d fragments, %d stored, %d failed\n",
		name, report.DocumentID, report.Fragments, report.Indexed, report.Failed)
	return nil
}

func runScore(configPath, resume, profile string, topK int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	if strings.HasPrefix(profile, "@") {
		data, err := os.ReadFile(profile[1:])
		if err != nil {
			return fmt.Errorf("reading profile file: %w", err)
		}
		profile = string(data)
	}

	ctx := context.Background()
	engine, index, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer index.Close()

	score, err := engine.Score(ctx, profile, resume, topK)
	if err != nil {
		return err
	}
	if score == nil {
		fmt.Println("No score: resume has no indexed fragments or embedding failed")
		return nil
	}

	gate := timeline.NewGate(timeline.GateConfig{
		ThresholdPercent:  cfg.Gate.ThresholdPercent,
		RejectionFeedback: cfg.Gate.RejectionFeedback,
	})
	outcome := gate.Evaluate(score)

	fmt.Printf("Match: %.1f%% (threshold %.1f%%)\n", *outcome.ScorePercent, outcome.ThresholdUsed)
	if outcome.Passed {
		fmt.Println("Preselection: pass")
	} else {
		fmt.Println("Preselection: reject")
	}
	return nil
}
