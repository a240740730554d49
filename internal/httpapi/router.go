package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"kitbuild/internal/api"
	"kitbuild/internal/audit"
	"kitbuild/internal/catalog"
	"kitbuild/internal/changerequest"
	"kitbuild/internal/estimate"
	"kitbuild/internal/order"
	"kitbuild/internal/progress"
	"kitbuild/internal/report"
	"kitbuild/internal/tracking"
	"kitbuild/pkg/config"
)

type Dependencies struct {
	Cfg config.Config
	DB  *pgxpool.Pool
	Log zerolog.Logger
}

// Handlers groups every HTTP surface the router mounts.
type Handlers struct {
	Catalog        catalog.Handlers
	Estimates      estimate.Handlers
	Orders         order.Handlers
	Progress       progress.Handlers
	ChangeRequests changerequest.Handlers
	Tracking       tracking.Handlers
	Reports        report.Handlers
	Audit          audit.Handlers
}

func NewRouter(deps Dependencies) http.Handler {
	return Routes(deps.Cfg, deps.Log, Wire(deps))
}

// Wire builds the Postgres-backed handlers.
func Wire(deps Dependencies) Handlers {
	catalogRepo := catalog.NewRepository(deps.DB)
	auditRepo := audit.NewRepository(deps.DB)
	orderRepo := order.NewRepository(deps.DB)
	progressRepo := progress.NewRepository(deps.DB)

	engine := order.NewEngine(orderRepo, catalogRepo)
	ledger := progress.NewLedger(progressRepo)
	links := tracking.NewService(tracking.NewRepository(deps.DB), orderRepo, progressRepo, deps.Cfg.TrackingLinkTTL)

	return Handlers{
		Catalog:        catalog.Handlers{Catalog: catalogRepo, Audit: auditRepo},
		Estimates:      estimate.Handlers{Catalog: catalogRepo, Workers: deps.Cfg.EstimateWorkers},
		Orders:         order.Handlers{Engine: engine, Links: links},
		Progress:       progress.Handlers{Ledger: ledger},
		ChangeRequests: changerequest.Handlers{Service: changerequest.NewService(changerequest.NewRepository(deps.DB))},
		Tracking:       tracking.Handlers{Service: links},
		Reports:        report.Handlers{Orders: engine, Ledger: ledger, Generator: report.NewGenerator()},
		Audit:          audit.Handlers{Audit: auditRepo},
	}
}

func Routes(cfg config.Config, log zerolog.Logger, h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(api.RequestLogger(log))
	// Browser callers include the public tracking page; only configured
	// origins get CORS headers.
	r.Use(api.CORSMiddleware(api.CORSOptions{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MaxAgeSeconds:  600,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		// Public, token-based tracking. The token is the only credential.
		r.Get("/track/{token}", h.Tracking.View)
		r.Get("/track/{token}/progress", h.Tracking.Progress)

		r.Group(func(r chi.Router) {
			r.Use(api.ActorAuth(api.AuthOptions{Secret: cfg.Auth.TokenSecret, Issuer: cfg.Auth.Issuer}))

			r.Get("/catalog", h.Catalog.Public)
			r.Post("/estimates", h.Estimates.Quote)

			// Handlers below authorize per actor (owner or staff).
			r.Post("/orders", h.Orders.Create)
			r.Get("/orders", h.Orders.List)
			r.Get("/orders/{id}", h.Orders.Get)
			r.Post("/orders/{id}/transitions", h.Orders.Transition)
			r.Get("/orders/{id}/progress", h.Progress.List)
			r.Post("/orders/{id}/progress", h.Progress.Append)
			r.Get("/orders/{id}/change-requests", h.ChangeRequests.List)
			r.Post("/orders/{id}/change-requests", h.ChangeRequests.Open)
			r.Post("/orders/{id}/tracking-link", h.Tracking.Create)

			r.Group(func(r chi.Router) {
				r.Use(api.RequireStaff)

				r.Post("/estimates/batch", h.Estimates.QuoteBatch)
				r.Post("/orders/{id}/reestimate", h.Orders.Reestimate)
				r.Put("/orders/{id}/items", h.Orders.ReplaceItems)
				r.Get("/orders/{id}/progress.xlsx", h.Reports.Timeline)
				r.Get("/orders/{id}/audit", h.Audit.ListByOrder)
				r.Post("/change-requests/{id}/resolve", h.ChangeRequests.Resolve)
				r.Post("/change-requests/{id}/reject", h.ChangeRequests.Reject)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(api.RequireAdmin)

				r.Get("/catalog", h.Catalog.Admin)
				r.Post("/service-types", h.Catalog.SaveServiceType)
				r.Put("/service-types/{id}", h.Catalog.SaveServiceType)
				r.Post("/service-types/{id}/deactivate", h.Catalog.Deactivate(catalog.KindServiceType))
				r.Post("/complexity-levels", h.Catalog.SaveComplexityLevel)
				r.Put("/complexity-levels/{id}", h.Catalog.SaveComplexityLevel)
				r.Post("/complexity-levels/{id}/deactivate", h.Catalog.Deactivate(catalog.KindComplexityLevel))
				r.Post("/add-ons", h.Catalog.SaveAddOn)
				r.Put("/add-ons/{id}", h.Catalog.SaveAddOn)
				r.Post("/add-ons/{id}/deactivate", h.Catalog.Deactivate(catalog.KindAddOn))
			})
		})
	})

	return r
}
