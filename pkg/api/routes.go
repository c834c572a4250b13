package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// buildRouter constructs the chi router with all routes and middleware.
func (s *server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.corsMiddleware())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Public endpoints.
		r.Group(func(r chi.Router) {
			if s.cfg.Server.RateLimit.Enabled {
				r.Use(s.rateLimitMiddleware(
					s.cfg.Server.RateLimit.Public,
				))
			}

			r.Post("/messages", s.handleCreateMessage)

			r.Route("/spotify", func(r chi.Router) {
				r.Post("/token", s.handleSpotifyToken)
				r.Post("/token/save", s.handleSpotifySaveToken)
				r.Get("/current-track", s.handleSpotifyCurrentTrack)
				r.Post("/disconnect", s.handleSpotifyDisconnect)
			})

			r.Route("/discord", func(r chi.Router) {
				r.Post("/token", s.handleDiscordToken)
				r.Get("/activity", s.handleDiscordActivity)
			})

			r.Get("/repos", s.handleListRepos)
			r.Get("/github/stats", s.handleGitHubStats)

			r.Get("/settings/repositories", s.handleGetRepositorySettings)
			r.Get("/settings/activity", s.handleGetActivitySettings)

			r.Get("/status", s.handleStatus)
		})

		// Admin endpoints.
		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)

			if s.cfg.Server.RateLimit.Enabled {
				r.Use(s.rateLimitMiddleware(
					s.cfg.Server.RateLimit.Admin,
				))
			}

			r.Get("/messages", s.handleListMessages)
			r.Patch("/messages/{id}/read", s.handleMarkMessageRead)
			r.Delete("/messages/{id}", s.handleDeleteMessage)

			r.Post("/settings/repositories", s.handleUpdateRepositorySettings)
			r.Post("/settings/activity", s.handleUpdateActivitySettings)

			r.Get("/admin/status", s.handleAdminStatus)
		})
	})

	return r
}

// corsMiddleware returns a CORS handler configured from the server config.
func (s *server) corsMiddleware() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Admin-Key", "Discord-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	origins := s.cfg.Server.CORSOrigins

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// Reflect the requesting origin so credentials work from any origin.
		opts.AllowOriginFunc = func(_ *http.Request, _ string) bool {
			return true
		}
	} else {
		opts.AllowedOrigins = origins
	}

	return cors.Handler(opts)
}
