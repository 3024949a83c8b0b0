package httpapi

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"jarfeed/internal/http/handlers"
	"jarfeed/internal/infra"
	"jarfeed/internal/middleware"
)

// apiTimeout bounds every /api request; the realtime endpoint is exempt.
const apiTimeout = 15 * time.Second

// overlayPages maps the overlay routes onto files under the static directory.
var overlayPages = map[string]string{
	"/":           "index.html",
	"/donations":  "donations.html",
	"/obs":        "obs.html",
	"/camera-jar": "camera-jar.html",
}

type Deps struct {
	App    *handlers.App
	Config *infra.Config
	// Realtime upgrades /ws; nil disables the endpoint.
	Realtime http.HandlerFunc
	Country  middleware.CountryLookup
	Logger   zerolog.Logger
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	r := chi.NewRouter()

	r.Use(
		middleware.TrustedRealIP(cfg.TrustedProxies),
		middleware.RequestID,
		middleware.Logger(d.Logger),
		chimw.Recoverer,
		middleware.CORS(cfg.AllowedOrigins),
		middleware.I18N(cfg.DefaultLocale, d.Country),
	)

	r.Get("/healthz", d.App.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	if d.Realtime != nil {
		r.Get("/ws", d.Realtime)
	}

	bankLimit := middleware.RateLimit(cfg.RateLimitBank, cfg.RateLimitBankPer,
		"Too many bank API requests, please try again later.")
	testLimit := middleware.RateLimit(cfg.RateLimitTest, cfg.RateLimitTestPer,
		"Too many test donation requests, please try again later.")

	r.Route("/api", func(r chi.Router) {
		r.Get("/openapi.json", d.App.OpenAPIJSON)
		r.Get("/docs", d.App.OpenAPIDocs)

		r.Group(func(r chi.Router) {
			r.Use(
				chimw.Timeout(apiTimeout),
				middleware.RateLimit(cfg.RateLimitGeneral, cfg.RateLimitGeneralPer,
					"Too many requests from this IP, please try again later."),
			)

			r.Route("/donations", func(r chi.Router) {
				r.Get("/stats", d.App.DonationStats)
				r.Get("/top", d.App.DonationsTop)
				r.Get("/recent", d.App.DonationsRecent)
				r.Get("/latest", d.App.DonationLatest)
			})

			r.With(testLimit).Get("/test-donation", d.App.TestDonation)
			r.With(testLimit).Post("/test-donation", d.App.TestDonation)

			r.With(bankLimit).Get("/jars", d.App.ListJars)
			r.With(bankLimit).Get("/jar/target", d.App.TargetJar)
			r.With(bankLimit).Get("/jar/camera", d.App.TargetJar)
		})
	})

	mountStatic(r, cfg.StaticDir)
	return r
}

func mountStatic(r chi.Router, dir string) {
	if dir == "" {
		return
	}
	for route, file := range overlayPages {
		page := filepath.Join(dir, file)
		r.Get(route, func(w http.ResponseWriter, req *http.Request) {
			http.ServeFile(w, req, page)
		})
	}
	r.Handle("/*", http.FileServer(http.Dir(dir)))
}
