package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vmsouza/conversa/internal/api/middleware"
	"github.com/vmsouza/conversa/internal/chat"
	"github.com/vmsouza/conversa/internal/config"
	"github.com/vmsouza/conversa/internal/handlers"
	"github.com/vmsouza/conversa/internal/store"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg *config.Config, logger zerolog.Logger, db store.DataStore, redisStore *store.RedisStore, registry *chat.Registry, notifier *chat.Notifier) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(16 * 1024)) // 16KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	limiter := middleware.NewRateLimiter(redisStore.Client(), logger)
	r.Use(limiter.Middleware)

	// CORS with credentials: the browser sends the session cookie, so the
	// origin list must be explicit.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(db, redisStore, registry, notifier, logger)
	auth := middleware.NewAuthMiddleware(db, redisStore, logger)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Post("/auth/cadastrar", h.Register)
	r.Post("/auth/login", h.Login)

	// Authenticated routes (require session cookie)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Post("/auth/logout", h.Logout)
		r.Get("/auth/eu", h.Me)

		r.Get("/chat/stream", h.Stream)
		r.Post("/chat/salas", h.CreateRoom)
		r.Get("/chat/conversas", h.ListConversations)
		r.Get("/chat/mensagens/{salaID}", h.ListMessages)
		r.Post("/chat/mensagens", h.SendMessage)
		r.Post("/chat/mensagens/lidas/{salaID}", h.MarkRead)
		r.Get("/chat/mensagens/nao-lidas/total", h.UnreadTotal)
		r.Get("/chat/usuarios/buscar", h.SearchUsers)
	})

	return r
}
