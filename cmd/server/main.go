package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"query_quest/internal/api"
	"query_quest/internal/app/service"
	"query_quest/internal/common/security"
	"query_quest/internal/domain/repository"
	"query_quest/internal/platform/ai"
	"query_quest/internal/platform/cache"
	"query_quest/internal/platform/config"
	"query_quest/internal/platform/database"
	"query_quest/internal/platform/email"
	"query_quest/internal/platform/logging"
	"query_quest/internal/platform/observability"
)

const release = "query-quest-backend@1.0.0"

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Logging & Error Reporting
	logger, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("Could not initialize logger: %v", err)
	}
	defer logger.Closer()
	flushSentry, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, release)
	if err != nil {
		logger.Sugar.Warnw("sentry init failed", "err", err)
	}
	defer flushSentry()

	// 3. Initialize JWT
	security.InitJWT(cfg.JWTKey, cfg.JWTExp)

	// 4. Initialize Database & run migrations
	db, err := database.Connect(cfg.DBConnStr)
	if err != nil {
		logger.Sugar.Fatalw("database connection failed", "err", err)
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		observability.CaptureErr(err)
		logger.Sugar.Fatalw("database migration failed", "err", err)
	}
	logger.Sugar.Info("database connected and migrated")

	// 5. Initialize Redis
	rdb, err := cache.Connect(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Sugar.Fatalw("redis connection failed", "err", err)
	}
	defer rdb.Close()
	denylist := cache.NewTokenDenylist(rdb)

	// 6. Initialize outbound services
	var emailSvc email.Service
	if cfg.SendgridAPIKey != "" {
		emailSvc = email.NewSendgridService(cfg.SendgridAPIKey, cfg.EmailFromName, cfg.EmailFromAddr)
	} else {
		emailSvc = email.NewConsoleService(logger.Sugar)
	}
	completer := ai.NewOpenAIClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel)

	// 7. Initialize Repositories
	userRepo := repository.NewPgUserRepository(db)
	institutionRepo := repository.NewPgInstitutionRepository(db)
	challengeRepo := repository.NewPgChallengeRepository(db)
	lessonRepo := repository.NewPgLessonRepository(db)
	contactRepo := repository.NewPgContactRequestRepository(db)
	txBeginner := repository.NewSQLTxBeginner(db)

	// 8. Initialize Services
	directoryService := service.NewDirectoryService(institutionRepo)
	authService := service.NewAuthService(userRepo, directoryService, emailSvc, denylist, logger.Sugar, cfg.FrontendBaseURL)
	userService := service.NewUserService(userRepo, directoryService, emailSvc, txBeginner, logger.Sugar, cfg.BulkImportPasswordBytes)
	institutionService := service.NewInstitutionService(institutionRepo, contactRepo, txBeginner, logger.Sugar)
	challengeService := service.NewChallengeService(challengeRepo, userRepo, txBeginner, logger.Sugar)
	lessonService := service.NewLessonService(lessonRepo, userRepo)
	chatService := service.NewChatService(userRepo, institutionRepo, challengeRepo, lessonRepo, completer, rdb, logger.Sugar, cfg.ChatHistoryLimit)

	// 9. Initialize Router & HTTP Server
	router := api.NewRouter(api.Services{
		Auth:        authService,
		Directory:   directoryService,
		User:        userService,
		Institution: institutionService,
		Challenge:   challengeService,
		Lesson:      lessonService,
		Chat:        chatService,
	}, denylist, db)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 10. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Sugar.Infow("server starting", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			observability.CaptureErr(err)
			logger.Sugar.Fatalw("server failed", "err", err)
		}
	}()

	<-stop // Wait for interrupt signal

	logger.Sugar.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Sugar.Fatalw("server shutdown failed", "err", err)
	}
	logger.Sugar.Info("server stopped gracefully")
}
