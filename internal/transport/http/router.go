package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers collects the per-vertical handlers the router mounts.
type Handlers struct {
	Compliance *ComplianceHandler
	Assets     *AssetHandler
	Vault      *VaultHandler
	Custody    *CustodyHandler
	Yield      *YieldHandler
}

// NewRouter assembles the API router. Every route sees a request ID and a
// pinned request time; admin gating is applied per-route by the handlers.
func NewRouter(logger *slog.Logger, h Handlers) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(RequestID)
	r.Use(RequestTime)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	h.Compliance.Register(r)
	h.Assets.Register(r)
	h.Vault.Register(r)
	h.Custody.Register(r)
	h.Yield.Register(r)

	return r
}
