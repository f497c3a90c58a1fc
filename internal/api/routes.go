package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/sendgrid-insights/internal/auth"
	"github.com/ignite/sendgrid-insights/internal/metrics"
	"github.com/ignite/sendgrid-insights/internal/ratelimit"
)

// RouteOptions carries the cross-cutting pieces of the router.
type RouteOptions struct {
	Auth           *auth.Manager      // nil disables login routes and auth checks
	LoginLimiter   *ratelimit.Limiter // nil leaves login unlimited
	Health         *HealthChecker
	Metrics        http.Handler // served at /metrics when set
	AllowedOrigins []string
}

// SetupRoutes configures all routes.
func SetupRoutes(h *Handlers, opts RouteOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.HTTPMiddleware)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if hc := opts.Health; hc != nil {
		r.Get("/health", hc.HandleHealth)
		r.Get("/health/live", hc.HandleLiveness)
		r.Get("/health/ready", hc.HandleReadiness)
		r.Get("/health/db", hc.HandleDBStats)
	}
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	if am := opts.Auth; am != nil {
		r.Route("/auth", func(r chi.Router) {
			login := http.Handler(http.HandlerFunc(am.HandleLogin))
			if opts.LoginLimiter != nil {
				login = opts.LoginLimiter.Middleware(login)
			}
			r.Method(http.MethodPost, "/login", login)
			r.Post("/logout", am.HandleLogout)
			r.Delete("/login", am.HandleLogout)
			r.Get("/session", am.HandleSession)
		})
	}

	// SendGrid cannot hold a session; the webhook is protected by its
	// signature instead.
	r.Post("/webhooks/sendgrid", h.SendGridWebhook)

	r.Route("/api", func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth.RequireAuth)
		}

		r.Get("/events", h.ListEvents)
		r.Get("/events/count", h.CountEvents)
		r.Post("/events/upload", h.UploadEvents)
		r.Post("/imports/s3", h.RunImport)

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/overview", h.GetOverview)
			r.Get("/kpi", h.GetKPIs)
			r.Get("/daily", h.GetTimeseries)
			r.Get("/funnel", h.GetFunnel)
			r.Get("/categories", h.GetCategories)
			r.Get("/activity", h.GetActivity)
			r.Get("/filters", h.GetFilters)
			r.Get("/engagement", h.GetEngagement)
			r.Get("/domains", h.GetDomains)
			r.Get("/domains/{domain}/contacts", h.GetDomainContacts)
			r.Get("/bounces", h.GetBounces)
			r.Get("/insights", h.GetInsights)
			r.Get("/sequences", h.GetSequences)
			r.Get("/compare", h.GetCompare)
		})

		r.Post("/reports/snapshot", h.CreateSnapshot)
		r.Get("/reports/snapshots", h.ListSnapshots)
		r.Get("/reports/snapshots/{id}", h.GetSnapshot)

		r.Get("/export/{report}.csv", h.Export)

		r.Route("/suppressions", func(r chi.Router) {
			r.Get("/", h.ListSuppressions)
			r.Post("/", h.AddSuppression)
			r.Get("/stats", h.SuppressionStats)
			r.Get("/check", h.CheckSuppression)
			r.Post("/from-bounces", h.SuppressBounces)
			r.Post("/screen", h.ScreenRecipients)
			r.Delete("/{email}", h.RemoveSuppression)
		})
	})

	return r
}
