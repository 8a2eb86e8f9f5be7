package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bookrag/internal/ai"
	"github.com/xxxsen/bookrag/internal/config"
	"github.com/xxxsen/bookrag/internal/db"
	"github.com/xxxsen/bookrag/internal/handler"
	"github.com/xxxsen/bookrag/internal/ingest"
	"github.com/xxxsen/bookrag/internal/job"
	"github.com/xxxsen/bookrag/internal/middleware"
	"github.com/xxxsen/bookrag/internal/repo"
	"github.com/xxxsen/bookrag/internal/schedule"
	"github.com/xxxsen/bookrag/internal/service"
	"github.com/xxxsen/bookrag/internal/snapshot"
	"github.com/xxxsen/bookrag/internal/vectorstore"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "bookrag",
		Short: "bookrag backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run bookrag server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			database, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, database)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func buildAIManager(cfg config.AIConfig) (*ai.Manager, error) {
	generators := make([]ai.GeneratorEntry, 0, len(cfg.Providers))
	embedders := make([]ai.EmbedderEntry, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		provider, err := ai.NewProvider(pc.Provider, pc.Data)
		if err != nil {
			return nil, fmt.Errorf("init ai provider %s: %w", pc.Provider, err)
		}
		if pc.GenerateModel != "" {
			generators = append(generators, ai.GeneratorEntry{
				Name:      pc.Provider,
				Generator: ai.NewGenerator(provider, pc.GenerateModel),
			})
		}
		if pc.EmbedModel != "" {
			embedders = append(embedders, ai.EmbedderEntry{
				Name:     pc.Provider,
				Embedder: ai.NewEmbedder(provider, pc.EmbedModel),
			})
		}
	}
	return ai.NewManager(
		ai.NewGroupGenerator(generators),
		ai.NewGroupEmbedder(embedders),
		ai.ManagerConfig{Timeout: cfg.Timeout, EmbedCacheTTL: cfg.EmbedCacheTTL},
	), nil
}

func runServer(cfg *config.Config, database *sql.DB) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logutil.GetLogger(ctx).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("vector_store", cfg.VectorStore.Type),
	)

	aiManager, err := buildAIManager(cfg.AI)
	if err != nil {
		return err
	}

	store, err := vectorstore.New(vectorstore.Config{
		Type: cfg.VectorStore.Type,
		Data: cfg.VectorStore.Data,
	})
	if err != nil {
		return fmt.Errorf("init vector store: %w", err)
	}
	if err := store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	var snapshots snapshot.Store
	if cfg.Ingest.SaveSnapshots && cfg.Snapshot.Type != "" {
		snapshots, err = snapshot.New(snapshot.Config{
			Type: cfg.Snapshot.Type,
			Data: cfg.Snapshot.Data,
		})
		if err != nil {
			return fmt.Errorf("init snapshot store: %w", err)
		}
	}

	client := &http.Client{Timeout: time.Duration(cfg.Ingest.FetchTimeout) * time.Second}
	resolver := ingest.NewSitemapResolver(client, cfg.Ingest.UserAgent)
	extractor := ingest.NewExtractor(client, cfg.Ingest.UserAgent, snapshots)
	chunker := ingest.NewChunker(ingest.ChunkerConfig{
		MinTokens:    cfg.Ingest.MinTokens,
		MaxTokens:    cfg.Ingest.MaxTokens,
		OverlapRatio: cfg.Ingest.OverlapRatio,
	})
	orchestrator := ingest.NewOrchestrator(resolver, extractor, chunker, aiManager, store)

	profileRepo := repo.NewProfileRepo(database)
	interactionRepo := repo.NewInteractionRepo(database)

	ingestService := service.NewIngestService(orchestrator)
	retrievalService := service.NewRetrievalService(aiManager, store,
		float32(cfg.Retrieval.ScoreThreshold), cfg.Retrieval.MaxChunks)
	answerService := service.NewAnswerService(aiManager)
	interactionService := service.NewInteractionService(interactionRepo)
	queryService := service.NewQueryService(retrievalService, answerService, interactionService)
	sourceService := service.NewSourceService(store)
	profileService := service.NewProfileService(profileRepo)

	deps := handler.RouterDeps{
		Ingest:        handler.NewIngestHandler(ingestService),
		Query:         handler.NewQueryHandler(queryService),
		Sources:       handler.NewSourceHandler(sourceService),
		Profile:       handler.NewProfileHandler(profileService),
		SessionSecret: []byte(cfg.SessionSecret),
		IngestWindow:  time.Duration(cfg.Ingest.RateLimit) * time.Second,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.CORS(cfg.CORSOrigins),
		gzip.Gzip(gzip.DefaultCompression),
	)
	handler.RegisterRootRoutes(engine)
	handler.RegisterRoutes(engine.Group("/api/v1"), deps)

	if cfg.Refresh.CronSpec != "" {
		scheduler := schedule.NewCronScheduler()
		refresh := job.NewRefreshJob(ingestService, cfg.Refresh.SitemapURL)
		if err := scheduler.AddJob(refresh, cfg.Refresh.CronSpec); err != nil {
			return fmt.Errorf("schedule refresh job: %w", err)
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: engine}
	go func() {
		logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(ctx).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
