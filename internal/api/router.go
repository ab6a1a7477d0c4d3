// Package api provides the HTTP API for InferGuard.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/inferguard/inferguard/internal/api/handler"
	"github.com/inferguard/inferguard/internal/api/middleware"
	"github.com/inferguard/inferguard/internal/api/models"
	"github.com/inferguard/inferguard/internal/api/response"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	RequireTLS  bool
	Metrics     *middleware.Metrics
	// Gatherer backs /metrics. Nil leaves the endpoint unmounted.
	Gatherer prometheus.Gatherer

	Checks            handler.CheckCatalog
	Monitor           handler.CheckExecutor
	Faults            handler.FaultController
	Model             handler.ModelReporter
	Incidents         handler.IncidentService
	Remediator        handler.IncidentRemediator
	Audit             handler.AuditReader
	DefaultMaxRetries int
	Fleet             handler.Fleet
	Rightsizer        handler.Rightsizer
	Readiness         []handler.ReadinessCheck
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID) // Generate/propagate request ID first
	r.Use(middleware.Tracing()) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // 403 on forwarded plain HTTP
	r.Use(middleware.RequireJSON)                // 415 on non-JSON bodies

	// Set before any Route call so subrouters inherit them.
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.NotFound(w, req, "no route for "+req.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		detail := req.Method + " is not supported on " + req.URL.Path
		response.Problem(w, req, models.NewProblem(http.StatusMethodNotAllowed, "", detail))
	})

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Readiness...)
	checkHandler := handler.NewHealthCheckHandler(cfg.Checks, cfg.Monitor, cfg.Logger)
	modelHandler := handler.NewModelHandler(cfg.Faults, cfg.Model, cfg.Logger)
	incidentHandler := handler.NewIncidentHandler(cfg.Incidents, cfg.Logger)
	remediationHandler := handler.NewRemediationHandler(cfg.Remediator, cfg.Audit, cfg.DefaultMaxRetries, cfg.Logger)
	infraHandler := handler.NewInfrastructureHandler(cfg.Fleet, cfg.Rightsizer, cfg.Logger)

	controlRateLimit := middleware.RateLimitByIP(middleware.ControlRateLimit)     // 20 req/min
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (unlimited, polled by orchestrators)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		r.Route("/healthchecks", func(r chi.Router) {
			r.With(standardRateLimit).Get("/", checkHandler.List)
			r.With(expensiveRateLimit).Post("/run", checkHandler.Run)
			r.With(expensiveRateLimit).Post("/run-all", checkHandler.RunAll)
			r.Route("/{checkId}", func(r chi.Router) {
				r.Use(standardRateLimit)
				r.Get("/", checkHandler.Get)
				r.Get("/history", checkHandler.History)
			})
		})

		// Fault injection mutates shared model state - strict rate limiting
		r.Route("/faults", func(r chi.Router) {
			r.With(standardRateLimit).Get("/", modelHandler.Faults)
			r.With(controlRateLimit).Post("/", modelHandler.Inject)
			r.With(controlRateLimit).Delete("/", modelHandler.Clear)
		})

		r.With(standardRateLimit).Get("/model/health", modelHandler.Health)

		r.Route("/incidents", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", incidentHandler.List)
			r.Post("/", incidentHandler.Create)
			r.Get("/summary", incidentHandler.Summary)
			r.Route("/{incidentId}", func(r chi.Router) {
				r.Get("/", incidentHandler.Get)
				r.Post("/resolve", incidentHandler.Resolve)
			})
		})

		r.Route("/remediations", func(r chi.Router) {
			r.With(controlRateLimit).Post("/", remediationHandler.Remediate)
			r.With(controlRateLimit).Post("/auto", remediationHandler.AutoRemediate)
			r.With(standardRateLimit).Get("/audit", remediationHandler.Audit)
			r.With(standardRateLimit).Get("/strategies", remediationHandler.Strategies)
		})

		r.Route("/infrastructure", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/instances", infraHandler.Instances)
			r.Get("/metrics", infraHandler.Metrics)
			r.Get("/summary", infraHandler.Summary)
			r.Get("/idle", infraHandler.Idle)
			r.Get("/cost-summary", infraHandler.CostSummary)
		})

		// Reports sample the whole fleet - expensive rate limiting
		r.Route("/rightsizing", func(r chi.Router) {
			r.Use(expensiveRateLimit)
			r.Get("/opportunities", infraHandler.Opportunities)
			r.Get("/analysis/{instanceId}", infraHandler.Analysis)
			r.Get("/report", infraHandler.Report)
			r.Get("/report/csv", infraHandler.ReportCSV)
			r.Get("/history", infraHandler.ReportHistory)
			r.Get("/playbook", infraHandler.Playbook)
		})
	})

	return r
}
