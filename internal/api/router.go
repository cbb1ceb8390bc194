package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"query_quest/internal/api/handler"
	appMiddleware "query_quest/internal/api/middleware"
	"query_quest/internal/app/service"
	"query_quest/internal/common/security"
	"query_quest/internal/platform/cache"
	"query_quest/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

type Services struct {
	Auth        *service.AuthService
	Directory   *service.DirectoryService
	User        *service.UserService
	Institution *service.InstitutionService
	Challenge   *service.ChallengeService
	Lesson      *service.LessonService
	Chat        *service.ChatService
}

func NewRouter(svcs Services, denylist *cache.TokenDenylist, db *sql.DB) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(appMiddleware.Metrics)

	// Verifies Authorization: Bearer tokens and puts claims in context.
	// Routes decide whether a valid token is required.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
		defer cancel()
		t0 := time.Now()
		if err := db.PingContext(ctx); err != nil {
			http.Error(w, "db not ok: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		metrics.ObserveDBPing(time.Since(t0))
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	// API v1 Routes
	r.Route("/api/v1", func(v1 chi.Router) {
		authHandler := handler.NewAuthHandler(svcs.Auth, svcs.Directory, denylist)
		authHandler.RegisterRoutes(v1)

		institutionHandler := handler.NewInstitutionHandler(svcs.Institution, denylist)
		v1.Route("/institutions", institutionHandler.RegisterRoutes)

		contactHandler := handler.NewContactHandler(svcs.Institution, denylist)
		v1.Route("/contact-requests", contactHandler.RegisterRoutes)

		challengeHandler := handler.NewChallengeHandler(svcs.Challenge, denylist)
		v1.Route("/challenges", challengeHandler.RegisterRoutes)

		lessonHandler := handler.NewLessonHandler(svcs.Lesson, denylist)
		v1.Route("/lessons", lessonHandler.RegisterRoutes)

		userHandler := handler.NewUserHandler(svcs.User, denylist)
		v1.Route("/users", userHandler.RegisterRoutes)

		chatHandler := handler.NewChatHandler(svcs.Chat, denylist)
		v1.Route("/chat", chatHandler.RegisterRoutes)
	})

	return r
}
