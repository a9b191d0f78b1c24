package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter mounts the API routes. Admin routes go behind bearer auth;
// the public surface and scrape endpoints stay open.
func NewRouter(s *Server, adminKeys []string, middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	for _, m := range middlewares {
		r.Use(m)
	}

	r.Post("/AddURLEmbeddings", s.AddURLEmbeddings)
	r.Post("/BatchStartProcessing", s.BatchStartProcessing)
	r.Post("/GetConversationResponse", s.GetConversationResponse)
	r.Get("/api/health", s.HealthCheck)
	r.Get("/api/config", s.GetConfig)
	r.Get("/metrics", s.Metrics)

	r.Group(func(admin chi.Router) {
		admin.Use(BearerAuthMiddleware(adminKeys))
		admin.Get("/api/files", s.ListFiles)
		admin.Delete("/api/files", s.DeleteFiles)
		admin.Post("/api/config", s.SaveConfig)
		admin.Post("/api/config/refresh", s.RefreshConfig)
	})

	return r
}
