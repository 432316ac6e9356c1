// Package routing builds the HTTP route table from configuration. Routes
// name their handler and the middleware they need; global middleware
// (request IDs, access logs, metrics, panic recovery, CORS) wraps them all.
package routing

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/teilomillet/parley/config"
	"github.com/teilomillet/parley/errors"
	"github.com/teilomillet/parley/server/metrics"
	"github.com/teilomillet/parley/server/middleware"
	"go.uber.org/zap"
)

// Router handles config-driven HTTP routing.
type Router struct {
	router   chi.Router
	handlers map[string]http.Handler
	logger   *zap.Logger
	cfg      *config.Config
	metrics  *metrics.Metrics
	limiter  *middleware.RateLimiter
	queue    *middleware.Queue
	started  time.Time
}

// NewRouter creates a router for cfg.Routes. handlers maps handler names to
// implementations; "health" and "metrics" are provided when absent.
// m may be nil, which disables request metrics and the metrics handler.
func NewRouter(cfg *config.Config, handlers map[string]http.Handler, m *metrics.Metrics, logger *zap.Logger) *Router {
	r := &Router{
		router:   chi.NewRouter(),
		handlers: make(map[string]http.Handler, len(handlers)+2),
		logger:   logger,
		cfg:      cfg,
		metrics:  m,
		limiter:  middleware.NewRateLimiter(cfg.RateLimit, m),
		queue:    middleware.NewQueue(cfg.Queue.MaxSize, m),
		started:  time.Now(),
	}
	for name, h := range handlers {
		r.handlers[name] = h
	}
	r.registerBuiltins()

	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.Logging(logger))
	if m != nil {
		r.router.Use(middleware.PrometheusMetrics(m))
	}
	r.router.Use(errors.ErrorHandler(logger))
	r.router.Use(middleware.CORS)

	r.router.NotFound(func(w http.ResponseWriter, req *http.Request) {
		errors.WriteError(w, errors.NewError(errors.NotFoundError, "Route not found",
			http.StatusNotFound, middleware.GetRequestID(req.Context()),
			map[string]interface{}{"path": req.URL.Path}, nil))
	})
	r.router.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		errors.WriteError(w, errors.NewError(errors.ValidationError, "Method not allowed",
			http.StatusMethodNotAllowed, middleware.GetRequestID(req.Context()),
			map[string]interface{}{"method": req.Method}, nil))
	})

	r.setupRoutes()
	return r
}

func (r *Router) registerBuiltins() {
	if _, ok := r.handlers["health"]; !ok {
		r.handlers["health"] = r.healthHandler()
	}
	if _, ok := r.handlers["metrics"]; !ok && r.metrics != nil {
		r.handlers["metrics"] = metricsHandler(r.metrics)
	}
}

// setupRoutes mounts each configured route with its own middleware and
// allowed methods. Routes naming an unknown handler are skipped.
func (r *Router) setupRoutes() {
	for _, route := range r.cfg.Routes {
		handler, ok := r.handlers[route.Handler]
		if !ok {
			r.logger.Error("handler not found",
				zap.String("handler", route.Handler),
				zap.String("path", route.Path),
			)
			continue
		}

		route := route
		r.router.Group(func(router chi.Router) {
			for _, mw := range route.Middleware {
				switch mw {
				case "ratelimit":
					router.Use(r.limiter.Handler)
				case "queue":
					router.Use(r.queue.Handler)
				case "timeout":
					router.Use(middleware.Timeout(r.cfg.Server.RequestTimeout))
				default:
					r.logger.Warn("unknown middleware requested", zap.String("middleware", mw))
				}
			}

			methods := route.Methods
			if len(methods) == 0 {
				methods = []string{http.MethodGet}
			}
			for _, method := range methods {
				router.Method(method, route.Path, handler)
			}
		})
	}
}

// healthHandler reports liveness and the admission queue state.
func (r *Router) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ok",
			"uptime": time.Since(r.started).Round(time.Second).String(),
			"queue": map[string]interface{}{
				"length":      r.queue.Len(),
				"max_size":    r.queue.MaxSize(),
				"oldest_wait": r.queue.OldestWait().String(),
			},
		})
	}
}

// Shutdown waits for requests admitted by the queue to finish.
func (r *Router) Shutdown(ctx context.Context) error {
	return r.queue.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
