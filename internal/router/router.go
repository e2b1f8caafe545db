package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"cardmarket/internal/handler"
	"cardmarket/internal/middleware"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	MarketHandler  *handler.MarketHandler
	AdminHandler   *handler.AdminHandler
	ChannelHandler *handler.ChannelHandler
	Metrics        http.Handler
	AuthMiddleware func(http.Handler) http.Handler
	RateLimit      func(http.Handler) http.Handler
}

// OpenPaths are served without an API key.
var OpenPaths = []string{"/api/v1/health", "/api/v1/ready"}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		r.Group(func(r chi.Router) {
			if cfg.AuthMiddleware != nil {
				r.Use(cfg.AuthMiddleware)
			}
			if cfg.RateLimit != nil {
				r.Use(cfg.RateLimit)
			}

			if cfg.Metrics != nil {
				r.Handle("/metrics", cfg.Metrics)
			}

			if cfg.AdminHandler != nil {
				r.Get("/admin/stats", cfg.AdminHandler.GetStats)
			}

			if cfg.ChannelHandler != nil {
				r.Get("/channels/search", cfg.ChannelHandler.Search)
			}

			if h := cfg.MarketHandler; h != nil {
				r.Get("/data", h.GetData)
				r.Post("/posts/category", h.PostCategory)
				r.Post("/messages", h.SendMessage)

				r.Route("/claims", func(r chi.Router) {
					r.Post("/", h.CreateClaim)
					r.Delete("/", h.DeleteClaim)
					r.Post("/{id}/paid", h.MarkPaid)
					r.Put("/{id}/paid", h.SetPaid)
				})

				r.Post("/cards", h.CreateCard)
				r.Delete("/cards/{id}", h.DeleteCard)

				r.Post("/sellers", h.CreateSeller)
				r.Put("/sellers/{id}/channels", h.UpdateSellerChannels)

				r.Get("/settings", h.GetSettings)
				r.Put("/settings", h.SaveSettings)
			}
		})
	})

	return r
}
