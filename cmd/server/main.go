package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/gould-simon/ai-accounting-job-matching/internal/cache"
	"github.com/gould-simon/ai-accounting-job-matching/internal/config"
	"github.com/gould-simon/ai-accounting-job-matching/internal/domain/fiber/handler"
	"github.com/gould-simon/ai-accounting-job-matching/internal/logger"
	"github.com/gould-simon/ai-accounting-job-matching/internal/middleware"
	"github.com/gould-simon/ai-accounting-job-matching/internal/model"
	"github.com/gould-simon/ai-accounting-job-matching/internal/repository"
	"github.com/gould-simon/ai-accounting-job-matching/internal/scheduler"
	"github.com/gould-simon/ai-accounting-job-matching/internal/service"
	"github.com/gould-simon/ai-accounting-job-matching/internal/usecase"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("could not load .env file, relying on process environment")
	}

	appCfg := config.LoadAppConfig()
	log, err := logger.New(appCfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	db := connectDB(log)

	embCfg := config.LoadEmbeddingConfig()
	provider, err := service.NewProvider(embCfg)
	if err != nil {
		log.Fatal("failed to build embedding provider", zap.Error(err))
	}
	embedder := cache.NewEmbeddingCache(provider, embCfg)

	catalogRepo := repository.NewCatalogRepository(db)
	embRepo := repository.NewEmbeddingRepository(db, embCfg.Dimension)
	historyRepo := repository.NewSearchHistoryRepository(db)

	matchCfg := config.LoadMatchingConfig()
	refreshCfg := config.LoadRefreshConfig()

	matchUC := usecase.NewMatchUsecase(embRepo, embedder, historyRepo, matchCfg, provider.ModelVersion(), log)
	refreshUC := usecase.NewRefreshUsecase(catalogRepo, embRepo, embedder, provider.ModelVersion(), refreshCfg.BatchSize, log)

	sched := scheduler.NewRefreshScheduler(refreshUC, embRepo, refreshCfg, log)
	if err := sched.Start(context.Background()); err != nil {
		log.Fatal("failed to start refresh scheduler", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName: appCfg.Name,
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			message := err.Error()
			if message == "" {
				message = "Internal Server Error"
			}
			return ctx.Status(code).JSON(fiber.Map{"error": message})
		},
	})
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
	}))
	app.Use(recover.New(recover.Config{
		EnableStackTrace: appCfg.Env != "production",
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(pprof.New(pprof.Config{
		Next: func(c *fiber.Ctx) bool {
			return appCfg.Env == "production"
		},
	}))
	app.Use(healthcheck.New())
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.RateLimiter(50, 1*time.Minute))

	h := handler.NewSearchHandler(matchUC, sched, embedder.Stats, historyRepo.FailureCount)
	h.RegisterRoutes(app)

	go func() {
		log.Info("server starting", zap.String("port", appCfg.Port))
		if err := app.Listen(appCfg.Port); err != nil {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	sched.Stop()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
}

func connectDB(log *zap.Logger) *gorm.DB {
	dbCfg := config.LoadDBConfig()

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		dbCfg.Host,
		dbCfg.User,
		dbCfg.Password,
		dbCfg.Name,
		dbCfg.Port,
		dbCfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("could not connect to database", zap.Error(err))
	}
	pgDB, err := db.DB()
	if err != nil {
		log.Fatal("could not get database instance", zap.Error(err))
	}
	pgDB.SetMaxIdleConns(dbCfg.MaxIdleConns)
	pgDB.SetMaxOpenConns(dbCfg.MaxOpenConns)
	pgDB.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)

	// The jobs catalog belongs to the scraping system and is never migrated
	// from here. Only the engine-owned tables are.
	err = db.AutoMigrate(
		&model.JobEmbedding{},
		&model.RefreshCheckpoint{},
		&model.SearchQuery{},
		&model.JobMatch{},
	)
	if err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	return db
}
