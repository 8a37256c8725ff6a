package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medra-health/medirag/internal/api"
	"github.com/medra-health/medirag/internal/api/handlers"
	"github.com/medra-health/medirag/internal/api/middleware"
)

type RouterConfig struct {
	DocumentsHandler *handlers.DocumentsHandler
	SearchHandler    *handlers.SearchHandler
	ReindexHandler   *handlers.ReindexHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Uploads carry whole PDFs.
	const maxBodyBytes int64 = 32 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", cfg.DocumentsHandler.Ingest)
		r.Get("/", cfg.DocumentsHandler.List)
		r.Get("/{id}", cfg.DocumentsHandler.Download)
		r.Delete("/{id}", cfg.DocumentsHandler.Delete)
	})

	r.Post("/search", cfg.SearchHandler.Search)
	r.Post("/ask", cfg.SearchHandler.Ask)
	r.Post("/reindex", cfg.ReindexHandler.Trigger)

	return r
}
