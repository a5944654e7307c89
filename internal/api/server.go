package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/redflag/internal/domain"
)

const codeMethodNotAllowed = "method_not_allowed"

// Server is the Red-Flag HTTP API.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer wires the handler into a chi router.
func NewServer(cfg domain.ServerConfig, deps Deps) *Server {
	h := NewHandler(deps)
	r := chi.NewRouter()

	// Recover sits inside logging and tracing so a panic is logged as a 500
	r.Use(CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.RealIP)
	r.Use(TracingMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoverMiddleware)
	r.Use(middleware.Compress(5))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)

	r.Route("/assessments", func(r chi.Router) {
		r.Post("/", h.CreateAssessment)
		r.Get("/", h.ListAssessments)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetAssessment)
			r.Post("/simulate", h.SimulateAssessment)
			r.Post("/report", h.PurchaseReport)
			r.Get("/report", h.GetReport)
		})
	})
	r.Post("/simulate", h.Simulate)
	r.Get("/stats", h.Stats)

	// The ruleset is fixed for the life of the process
	r.Group(func(r chi.Router) {
		r.Use(middleware.SetHeader("Cache-Control", "public, max-age=300"))
		r.Get("/rules", h.GetRules)
		r.Get("/industries", h.ListIndustries)
		r.Get("/industries/{id}", h.GetIndustry)
	})

	return &Server{
		router:  r,
		handler: h,
		config:  cfg,
	}
}

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port)),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router exposes the router to tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler exposes the handler to tests.
func (s *Server) Handler() *Handler {
	return s.handler
}
