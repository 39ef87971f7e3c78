package api

import (
	"net/http"

	"github.com/Rrens/chat-memory/internal/api/handler"
	customMiddleware "github.com/Rrens/chat-memory/internal/api/middleware"
	"github.com/Rrens/chat-memory/internal/config"
	"github.com/Rrens/chat-memory/internal/llm"
	"github.com/Rrens/chat-memory/internal/security"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Dependencies are the wired services the router exposes
type Dependencies struct {
	JWT         *security.JWTManager
	RateLimiter customMiddleware.RateLimiter
	LLMRouter   *llm.Router
	Chat        handler.ChatService
	Sessions    handler.SessionService
	Knowledge   handler.KnowledgeService
	SearchCache handler.CacheFlusher
	Ready       map[string]handler.Pinger
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	chatHandler := handler.NewChatHandler(deps.Chat)
	sessionHandler := handler.NewSessionHandler(deps.Sessions)
	knowledgeHandler := handler.NewKnowledgeHandler(deps.Knowledge)

	authMiddleware := customMiddleware.NewAuthMiddleware(deps.JWT)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(deps.Ready))

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			if deps.RateLimiter != nil {
				r.Use(customMiddleware.NewRateLimitMiddleware(deps.RateLimiter).Limit)
			}

			r.Get("/llm-providers", handler.ListLLMProviders(deps.LLMRouter))
			r.Post("/cache/flush", handler.FlushCache(deps.SearchCache))
			r.Post("/knowledge", knowledgeHandler.Upsert)

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", sessionHandler.List)
				r.Post("/", sessionHandler.Create)

				r.Route("/{sessionID}", func(r chi.Router) {
					r.Get("/", sessionHandler.Get)
					r.Delete("/", sessionHandler.Delete)
					r.Get("/messages", sessionHandler.Messages)
					r.Post("/messages", chatHandler.Send)
					r.Get("/context", chatHandler.Context)
				})
			})
		})
	})

	return r
}
