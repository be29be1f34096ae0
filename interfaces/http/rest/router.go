package rest

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"stackit/application/commands/bus"
	querybus "stackit/application/queries/bus"
	"stackit/infrastructure/config"
	"stackit/interfaces/http/rest/handlers"
	"stackit/interfaces/http/rest/middleware"
	"stackit/pkg/auth"
	pkgerrors "stackit/pkg/errors"
	"stackit/pkg/observability"
)

// Sessions is what the router needs from the session registry
type Sessions interface {
	handlers.SessionStore
	Len() int
}

// Limiters holds the per-caller rate limiters for mutating routes
type Limiters struct {
	IP        auth.RateLimiter
	Session   auth.RateLimiter
	PerMinute int
}

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	sessions   Sessions
	limiters   Limiters
	metrics    *observability.Metrics
	config     *config.Config
	logger     *zap.Logger
}

// NewRouter creates a new router instance; metrics may be nil
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	sessions Sessions,
	limiters Limiters,
	metrics *observability.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		sessions:   sessions,
		limiters:   limiters,
		metrics:    metrics,
		config:     cfg,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()
	errs := pkgerrors.NewErrorHandler(rt.logger, rt.config.IsDevelopment())

	var (
		requests middleware.RequestObserver
		limited  middleware.RateLimitObserver
		streams  handlers.StreamObserver
	)
	if rt.metrics != nil {
		requests, limited, streams = rt.metrics, rt.metrics, rt.metrics
	}

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(errs.Middleware)
	router.Use(middleware.Logger(rt.logger, requests))
	router.Use(versionMiddleware)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: !allowsAnyOrigin(rt.config.CORSAllowedOrigins),
		MaxAge:           300,
	}))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errs.HandleStatus(w, r, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errs.HandleStatus(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	boardHandler := handlers.NewBoardHandler(rt.commandBus, rt.queryBus, rt.sessions, errs, streams, rt.config.CORSAllowedOrigins, rt.logger)
	limit := middleware.RateLimit(rt.limiters.IP, rt.limiters.Session, rt.limiters.PerMinute, errs, limited, rt.logger)

	router.Route("/api/v1/boards", func(r chi.Router) {
		r.With(limit).Post("/", boardHandler.CreateSession)

		r.Route("/{session}", func(r chi.Router) {
			r.Use(middleware.BindIdentity(rt.sessions))

			r.Get("/", boardHandler.GetBoard)
			r.Delete("/", boardHandler.CloseSession)
			r.Get("/notices", boardHandler.DrainNotices)
			r.Get("/stream", boardHandler.Stream)
			r.Put("/draft", boardHandler.UpdateDraft)

			r.Group(func(r chi.Router) {
				r.Use(limit)
				r.Put("/question/{questionID}", boardHandler.LoadQuestion)
				r.Post("/answers", boardHandler.SubmitAnswer)
				r.Post("/answers/{answerID}/vote", boardHandler.CastVote)
				r.Post("/refresh", boardHandler.Refresh)
			})
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck reports ready and refreshes the session gauge
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if rt.metrics != nil {
		rt.metrics.SetSessions(rt.sessions.Len())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// versionMiddleware adds API version headers to all responses
func versionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("X-API-Version", "v1")
			w.Header().Set("X-API-Latest", "v1")
		}
		next.ServeHTTP(w, r)
	})
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
