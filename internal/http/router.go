// Package httpapi assembles the operator-facing HTTP surface.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"refiling/internal/filing/handler"
	"refiling/internal/platform/middleware"
)

// RouterDeps carries everything the router needs. Handlers stay thin; all
// business rules live in the filing service.
type RouterDeps struct {
	Filing         *handler.Handler
	TokenValidator middleware.TokenValidator
	AdminToken     string
	Logger         *slog.Logger
}

// NewRouter wires the operator endpoints behind their middleware chains:
// bearer tokens for reads, the admin token on top for mutations.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/operator", func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.TokenValidator, deps.Logger))

		deps.Filing.RegisterReads(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdminToken(deps.AdminToken, deps.Logger))
			deps.Filing.RegisterMutations(r)
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
