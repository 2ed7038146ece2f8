package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/doctalk-ai/doctalk/internal/api/handlers"
	"github.com/doctalk-ai/doctalk/internal/config"
	"github.com/doctalk-ai/doctalk/internal/database"
	"github.com/doctalk-ai/doctalk/internal/extract"
	"github.com/doctalk-ai/doctalk/internal/jobs"
	"github.com/doctalk-ai/doctalk/internal/llm"
	"github.com/doctalk-ai/doctalk/internal/openai"
	"github.com/doctalk-ai/doctalk/internal/repository"
	"github.com/doctalk-ai/doctalk/internal/server"
	"github.com/doctalk-ai/doctalk/internal/service"
	"github.com/doctalk-ai/doctalk/internal/storage"
	"github.com/doctalk-ai/doctalk/internal/telemetry"
	"github.com/doctalk-ai/doctalk/internal/vectorindex"
)

// repairPollInterval is how often the repair worker rescans for documents
// whose indexing was interrupted.
const repairPollInterval = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the doctalk API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasOpenAI() {
		return fmt.Errorf("DOCTALK_OPENAI_API_KEY is required: documents are embedded with OpenAI")
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	docRepo := repository.NewDocumentRepository(pool)

	var index vectorindex.Index
	switch cfg.VectorBackend {
	case "memory":
		memIndex, err := vectorindex.NewMemoryIndex(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open vector index: %w", err)
		}
		index = memIndex
		log.Printf("vector index: in-memory, snapshots under %s", cfg.DataDir)
	default:
		index = vectorindex.NewPostgresIndex(pool)
		log.Println("vector index: pgvector")
	}

	embedder := openai.NewClient(cfg.OpenAIAPIKey)

	registry := llm.NewRegistry(llm.Config{
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		OpenAIModel:      cfg.OpenAIModel,
		PerplexityAPIKey: cfg.PerplexityAPIKey,
		PerplexityModel:  cfg.PerplexityModel,
		IBMAPIKey:        cfg.IBMAPIKey,
		IBMProjectID:     cfg.IBMProjectID,
		IBMURL:           cfg.IBMURL,
		IBMModel:         cfg.IBMModel,
	}, cfg.LLMProvider)
	if registry.Empty() {
		log.Println("no answer provider configured, chat degrades to document excerpts")
	} else {
		log.Printf("answer provider: %s", registry.Default().Name())
	}

	ingestSvc := service.NewIngestService(docRepo, embedder, index)
	retrievalSvc := service.NewRetrievalService(embedder, index)
	composer := service.NewComposer(registry)
	chatSvc := service.NewChatService(retrievalSvc, composer, service.NewHistoryStore())

	repairProcessor := jobs.NewRepairWorker(docRepo, ingestSvc)
	repairWorker := jobs.NewWorker(repairProcessor, repairPollInterval)
	go repairWorker.Start(ctx)
	log.Println("repair worker started")

	var archiver handlers.Archiver
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready, archiving raw uploads", cfg.S3Bucket)
		archiver = s3Client
	}

	documentHandler := handlers.NewDocumentHandler(ingestSvc, docRepo, extract.NewURLExtractor(), archiver)
	chatHandler := handlers.NewChatHandler(chatSvc)

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: documentHandler,
		ChatHandler:     chatHandler,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	repairWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	if err := index.Close(shutdownCtx); err != nil {
		log.Printf("failed to close vector index: %v", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	log.Printf("migrations applied (version: %d, dirty: %v)", version, dirty)

	return nil
}
