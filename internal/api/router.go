package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flightwatch/flightwatch/internal/engine"
	"github.com/flightwatch/flightwatch/internal/poller"
	"github.com/flightwatch/flightwatch/internal/store"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(pgStore *store.PostgresStore, redisStore *store.RedisStore, keys *engine.KeyPool, p *poller.Poller) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// Handlers
	subHandler := NewSubscriptionHandler(pgStore)
	guildHandler := NewGuildHandler(pgStore)
	keyHandler := NewKeyHandler(keys, pgStore)
	pollerHandler := NewPollerHandler(p)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler(pgStore, redisStore))

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", subHandler.Create)
			r.Get("/", subHandler.List)
			r.Delete("/{id}", subHandler.Delete)
		})

		r.Route("/guilds/{guildID}/channel", func(r chi.Router) {
			r.Put("/", guildHandler.SetChannel)
			r.Get("/", guildHandler.GetChannel)
		})

		r.Route("/keys", func(r chi.Router) {
			r.Get("/", keyHandler.List)
			r.Get("/credits", keyHandler.Credits)
			r.Post("/{id}/park", keyHandler.Park)
			r.Post("/{id}/unpark", keyHandler.Unpark)
		})

		r.Route("/poller", func(r chi.Router) {
			r.Get("/status", pollerHandler.Status)
			r.Post("/run", pollerHandler.Run)
			r.Post("/pause", pollerHandler.Pause)
			r.Post("/resume", pollerHandler.Resume)
			r.Patch("/interval", pollerHandler.SetInterval)
		})
	})

	return r
}
