package http

import (
	"context"
	"net/http"
	"time"

	"bizarea/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Router struct {
	chi.Router
}

func NewRouter(rateLimit middleware.RateLimitConfig) *Router {
	r := chi.NewRouter()

	// Use chi middleware with aliases to avoid conflicts
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Custom middleware
	r.Use(middleware.RateLimit(rateLimit))
	r.Use(middleware.Logging)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errRouteNotFound)
	})

	return &Router{r}
}

// CatalogTimeout bounds repository-backed routes.
const CatalogTimeout = 60 * time.Second

// RegisterAmapRoutes registers the live Amap search routes. timeout should
// cover the slowest aggregate search; see amap.AggregateTimeout.
func (r *Router) RegisterAmapRoutes(h *AmapHandler, timeout time.Duration) {
	r.withTimeout(timeout, h.RegisterRoutes)
}

// RegisterCatalogRoutes registers city, business area and store routes
func (r *Router) RegisterCatalogRoutes(h *CatalogHandler) {
	r.withTimeout(CatalogTimeout, h.RegisterRoutes)
}

// withTimeout registers routes in a group whose request context carries its
// own deadline.
func (r *Router) withTimeout(timeout time.Duration, register func(chi.Router)) {
	r.Group(func(g chi.Router) {
		g.Use(chimiddleware.Timeout(timeout))
		register(g)
	})
}

// RegisterHealthRoutes registers health check routes. /ready pings every
// named dependency; nil entries are skipped.
func (r *Router) RegisterHealthRoutes(deps map[string]Pinger) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, "ok", map[string]string{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := make(map[string]string, len(deps))
		ready := true
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = err.Error()
				ready = false
				continue
			}
			checks[name] = "ok"
		}

		if !ready {
			writeJSON(w, http.StatusServiceUnavailable, Envelope{
				Code:      http.StatusServiceUnavailable,
				Message:   "not ready",
				Data:      checks,
				Timestamp: time.Now().Unix(),
			})
			return
		}
		writeSuccess(w, "ready", checks)
	})
}

// RegisterMetricsRoutes registers the Prometheus scrape endpoint
func (r *Router) RegisterMetricsRoutes() {
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}
