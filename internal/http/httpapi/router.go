package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"tunesmith/internal/http/handlers"
	"tunesmith/internal/middleware"
)

// NewRouter builds the full API surface. Webhooks carry their own
// authentication and skip the identity middleware; everything else under
// /v1 resolves a principal first.
func NewRouter(app *handlers.App, lookup middleware.CountryLookup, staticDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		chimw.Recoverer,
		middleware.RequestID,
		middleware.Logger(app.Logger),
		middleware.CORS(nil),
		middleware.I18N("en", lookup),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/stats", app.StatsSummary)
	r.Get("/v1/catalog", app.CatalogList)

	r.Route("/v1/webhooks", func(r chi.Router) {
		r.Post("/payment", app.PaymentWebhook)
		r.Post("/generation", app.GenerationCallback)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity(app.Cfg.JWTSecret, app.Principals))
		r.With(middleware.RateLimit(app.Cfg.RateLimitPerMin, time.Minute)).
			Post("/v1/generate", app.Generate)
		r.Get("/v1/orders/{id}", app.OrderStatus)
		r.Get("/v1/quota", app.Quota)
		r.Get("/v1/tracks", app.TracksList)
		r.Get("/v1/tracks/{id}", app.TrackGet)
	})

	if staticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
