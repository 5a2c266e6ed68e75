package locality

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes returns the public routes, mounted at /localities.
func SetupRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Post("/boundary/check", h.CheckBoundary)
	r.With(h.SearchMiddleware...).Get("/{type}", h.Suggest)
	r.Get("/{type}/all", h.ListAll)

	return r
}

// SetupAdminRoutes returns the maintenance routes, mounted at /admin/localities
// behind the admin token middleware.
func SetupAdminRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()

	if h.Normalizer != nil {
		r.Post("/normalize", h.Normalize)
	}

	return r
}
