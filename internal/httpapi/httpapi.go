// Package httpapi implements the REST Surface (C14), the Schema/Spec
// Endpoint (C13), and the Golden-Sample Admin binding (C15) on top of a
// single *engine.Engine. Grounded on the teacher's cmd/agentcli HTTP
// tooling shape generalized with github.com/go-chi/chi/v5 (the retrieval
// pack's router of choice, jordigilh-kubernaut / Aureuma-si) and
// github.com/go-chi/cors for the device-facing CORS policy.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aoipipeline/inspectord/internal/engine"
)

// schemaVersion bumps whenever a wire structure changes shape, per base
// spec §4.13.
const schemaVersion = "1.0.0"

// Server binds HTTP routes to an Engine.
type Server struct {
	engine *engine.Engine
	log    logr.Logger
}

// NewRouter builds the full route table described in base spec §4.14.
func NewRouter(e *engine.Engine, log logr.Logger) http.Handler {
	s := &Server{engine: e, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	reg := registerMetrics(e)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Get("/products", s.handleListProducts)
	r.Post("/products", s.handleCreateProduct)
	r.Get("/products/{id}/config", s.handleGetConfig)
	r.Post("/products/{id}/config", s.handleSaveConfig)

	r.Post("/session/create", s.handleCreateSession)
	r.Get("/session/{id}/status", s.handleSessionStatus)
	r.Post("/session/{id}/inspect", s.handleInspect)
	r.Post("/session/{id}/close", s.handleCloseSession)
	r.Get("/sessions", s.handleListSessions)

	r.Get("/schema/roi", s.handleSchemaROI)
	r.Get("/schema/result", s.handleSchemaResult)
	r.Get("/schema/version", s.handleSchemaVersion)

	r.Get("/golden-sample/products", s.handleGoldenProducts)
	r.Get("/golden-sample/{product}/{roi_id}", s.handleGoldenList)
	r.Get("/golden-sample/{product}/{roi_id}/metadata", s.handleGoldenMetadata)
	r.Get("/golden-sample/{product}/{roi_id}/download/{name}", s.handleGoldenDownload)
	r.Post("/golden-sample/save", s.handleGoldenSave)
	r.Post("/golden-sample/promote", s.handleGoldenPromote)
	r.Post("/golden-sample/restore", s.handleGoldenRestore)
	r.Post("/golden-sample/delete", s.handleGoldenDelete)
	r.Post("/golden-sample/rename-folders", s.handleGoldenRenameFolders)

	return r
}

func requestLogger(log logr.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			next.ServeHTTP(ww, req)
			log.V(1).Info("request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// registerMetrics builds a per-Server registry rather than registering on
// prometheus's global DefaultRegisterer: NewRouter is a per-server
// constructor and may run more than once per process (one instance per
// test, for example), and MustRegister on the global registry panics the
// second time a collector with the same name is registered.
func registerMetrics(e *engine.Engine) *prometheus.Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "aoi_sessions_active",
		Help: "Number of active inspection sessions.",
	}, func() float64 { return float64(e.ActiveSessionCount()) }))

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "aoi_uptime_seconds",
		Help: "Seconds since the service started.",
	}, func() float64 { return e.Uptime().Seconds() }))

	return reg
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": s.engine.Uptime().Seconds(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds":          s.engine.Uptime().Seconds(),
		"sessions_active":         s.engine.ActiveSessionCount(),
		"feature_extractor_ready": true,
	})
}
