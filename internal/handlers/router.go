package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shopforge/api/internal/platform/httpx"
)

const defaultAPIPrefix = "/api/v1"

// RouteRegistrar mounts a handler group onto a chi router.
type RouteRegistrar func(chi.Router)

// RouterConfig collects everything the HTTP router needs.
type RouterConfig struct {
	apiPrefix      string
	requestTimeout time.Duration
	health         *HealthHandlers
	orders         *OrderHandlers
	payments       *PaymentHandlers
	middlewares    []func(http.Handler) http.Handler
	extraRoutes    []RouteRegistrar
}

// RouterOption customises router construction.
type RouterOption func(*RouterConfig)

// WithAPIPrefix overrides the versioned API mount point.
func WithAPIPrefix(prefix string) RouterOption {
	return func(c *RouterConfig) {
		if prefix != "" {
			c.apiPrefix = prefix
		}
	}
}

// WithRequestTimeout bounds how long a single request may run.
func WithRequestTimeout(timeout time.Duration) RouterOption {
	return func(c *RouterConfig) {
		if timeout > 0 {
			c.requestTimeout = timeout
		}
	}
}

// WithHealthHandlers registers liveness and readiness endpoints at the root.
func WithHealthHandlers(h *HealthHandlers) RouterOption {
	return func(c *RouterConfig) {
		c.health = h
	}
}

// WithOrderHandlers mounts the order endpoints under the API prefix.
func WithOrderHandlers(h *OrderHandlers) RouterOption {
	return func(c *RouterConfig) {
		c.orders = h
	}
}

// WithPaymentHandlers mounts the payment endpoints under the API prefix.
func WithPaymentHandlers(h *PaymentHandlers) RouterOption {
	return func(c *RouterConfig) {
		c.payments = h
	}
}

// WithMiddleware appends middleware applied to every request.
func WithMiddleware(mw ...func(http.Handler) http.Handler) RouterOption {
	return func(c *RouterConfig) {
		c.middlewares = append(c.middlewares, mw...)
	}
}

// WithRoutes registers additional route groups under the API prefix.
func WithRoutes(registrars ...RouteRegistrar) RouterOption {
	return func(c *RouterConfig) {
		c.extraRoutes = append(c.extraRoutes, registrars...)
	}
}

// NewRouter builds the HTTP surface for the service.
func NewRouter(opts ...RouterOption) http.Handler {
	cfg := &RouterConfig{
		apiPrefix:      defaultAPIPrefix,
		requestTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.requestTimeout))
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", "resource not found", http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", "method not allowed", http.StatusMethodNotAllowed))
	})

	if cfg.health != nil {
		cfg.health.Routes(r)
	}

	r.Route(cfg.apiPrefix, func(api chi.Router) {
		if cfg.orders != nil {
			api.Route("/orders", cfg.orders.Routes)
		}
		if cfg.payments != nil {
			api.Route("/payments", cfg.payments.Routes)
		}
		for _, register := range cfg.extraRoutes {
			register(api)
		}
	})

	return r
}
