package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"alfredoptarigan/resume-matcher/internal/config"
	"alfredoptarigan/resume-matcher/internal/handlers"
	"alfredoptarigan/resume-matcher/internal/logger"
	"alfredoptarigan/resume-matcher/internal/repositories"
	"alfredoptarigan/resume-matcher/internal/services"
)

func main() {
	cfg := config.Load()

	zapLogger, err := logger.New(cfg.Server.Env, cfg.Server.Debug)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	// Database
	db, err := config.InitDatabase(cfg)
	if err != nil {
		zapLogger.Fatal("failed to initialize database", zap.Error(err))
	}
	zapLogger.Info("database initialized")

	// Repositories
	jobRepo := repositories.NewJobRepository(db)
	resumeRepo := repositories.NewResumeRepository(db)
	matchRepo := repositories.NewMatchResultRepository(db)

	// Redis cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	cacheService := services.NewCacheService(redisClient, zapLogger)

	// Gemini models
	geminiService, err := services.NewGeminiService(cfg)
	if err != nil {
		zapLogger.Fatal("failed to initialize gemini client", zap.Error(err))
	}
	zapLogger.Info("gemini client initialized",
		zap.String("model", cfg.Gemini.Model),
		zap.String("embed_model", cfg.Gemini.EmbedModel))

	// Qdrant vector index
	vectorStore, err := services.NewVectorStore(
		cfg.Qdrant.URL,
		cfg.Qdrant.APIKey,
		cfg.Qdrant.Collection,
		cfg.Gemini.EmbeddingDimension,
	)
	if err != nil {
		zapLogger.Fatal("failed to initialize qdrant client", zap.Error(err))
	}
	if err := vectorStore.InitCollection(context.Background()); err != nil {
		zapLogger.Fatal("failed to initialize qdrant collection", zap.Error(err))
	}
	zapLogger.Info("qdrant collection ready", zap.String("collection", cfg.Qdrant.Collection))

	// Pipeline services
	embeddingService := services.NewEmbeddingService(geminiService, cacheService,
		services.EmbeddingServiceOptions{
			CacheTTL:    cfg.Matching.EmbeddingCacheTTL,
			FallbackTTL: cfg.Matching.FallbackCacheTTL,
		}, zapLogger)

	similarityService := services.NewSimilarityService(services.ScalingSigmoid,
		int(cfg.Matching.MaxConcurrentPairs), zapLogger)

	skillService := services.NewSkillService(geminiService,
		cfg.Gemini.SkillExtractionEnabled, zapLogger)

	explanationService := services.NewExplanationService(geminiService, cacheService,
		services.ExplanationServiceOptions{
			CacheTTL:      cfg.Matching.ExplanationCacheTTL,
			MaxConcurrent: int(cfg.Matching.MaxConcurrentExpl),
		}, zapLogger)

	matcherService := services.NewMatcherService(
		jobRepo, resumeRepo, matchRepo,
		embeddingService, similarityService, skillService, explanationService,
		cacheService, vectorStore,
		services.MatcherOptions{
			SimilarityWeight:   cfg.Matching.SimilarityWeight,
			SkillWeight:        cfg.Matching.SkillWeight,
			MaxConcurrentPairs: int(cfg.Matching.MaxConcurrentPairs),
			EligibleLimit:      cfg.Matching.EligibleResumeLimit,
			MatchCacheTTL:      cfg.Matching.MatchCacheTTL,
		}, zapLogger)

	// Background embedding backfill
	worker := services.NewEmbeddingWorker(resumeRepo, embeddingService, vectorStore,
		services.EmbeddingWorkerOptions{
			Concurrency:  cfg.Worker.Concurrency,
			PollInterval: cfg.Worker.PollInterval,
			BatchSize:    cfg.Worker.BatchSize,
		}, zapLogger)
	worker.Start(context.Background())

	// Handlers
	matchHandler := handlers.NewMatchHandler(matcherService, jobRepo, vectorStore)
	resumeHandler := handlers.NewResumeHandler(resumeRepo, worker)
	skillHandler := handlers.NewSkillHandler(skillService)
	explanationHandler := handlers.NewExplanationHandler(explanationService)

	app := fiber.New(fiber.Config{
		AppName:      "Resume Matcher API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	api := app.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	api.Post("/match", matchHandler.HandleMatch)
	api.Post("/match/pair", matchHandler.HandleMatchPair)
	api.Get("/match/:job_id/statistics", matchHandler.HandleStatistics)
	api.Delete("/match/:job_id", matchHandler.HandlePurgeMatches)
	api.Get("/jobs/:id/similar-resumes", matchHandler.HandleSimilarResumes)
	api.Post("/resumes/:id/process", resumeHandler.HandleProcess)
	api.Post("/skills/analyze", skillHandler.HandleAnalyzeSkills)
	api.Post("/explanations", explanationHandler.HandleExplain)
	api.Post("/explanations/batch", explanationHandler.HandleExplainBatch)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		zapLogger.Info("shutting down server")
		worker.Stop()
		if err := app.Shutdown(); err != nil {
			zapLogger.Error("server forced to shutdown", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	zapLogger.Info("server starting", zap.String("addr", addr))

	if err := app.Listen(addr); err != nil {
		zapLogger.Fatal("failed to start server", zap.Error(err))
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
