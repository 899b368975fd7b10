// Package api exposes the HTTP interface for the showcase service.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/pzntech/showcase-crawler/internal/catalog"
	"github.com/pzntech/showcase-crawler/internal/config"
	"github.com/pzntech/showcase-crawler/internal/telemetry"
)

// Scraper triggers a background reconciliation run.
type Scraper interface {
	Trigger() bool
}

// Catalog serves read queries over persisted projects.
type Catalog interface {
	ListProjects(ctx context.Context, search string, season int) ([]catalog.Project, error)
	ListAllProjects(ctx context.Context) ([]catalog.Project, error)
}

// Pinger reports downstream readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires HTTP handlers to the scraper and the project catalog.
type Server struct {
	router  chi.Router
	scraper Scraper
	catalog Catalog
	pinger  Pinger
	cfg     config.Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes. screenshotDir is
// served as static content under /screenshots.
func NewServer(
	scraper Scraper,
	cat Catalog,
	pinger Pinger,
	cfg config.Config,
	screenshotDir string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		scraper: scraper,
		catalog: cat,
		pinger:  pinger,
		cfg:     cfg,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(telemetry.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))
	if len(cfg.Server.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Accept", "Content-Type", apiKeyHeader},
		}))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/api", func(r chi.Router) {
		r.With(apiKeyMiddleware(cfg.Auth.Keys())).Get("/scrape", s.triggerScrape)
		r.With(apiKeyMiddleware(cfg.Auth.Keys())).Post("/scrape", s.triggerScrape)
		r.Get("/projects", s.listProjects)
		r.Get("/metadata", s.metadata)
	})

	r.Handle("/screenshots/*", http.StripPrefix("/screenshots/",
		http.FileServer(http.Dir(screenshotDir))))

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if err := s.pinger.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) triggerScrape(w http.ResponseWriter, _ *http.Request) {
	if s.scraper.Trigger() {
		writeJSON(w, http.StatusAccepted, map[string]string{"message": "scraping started"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "scraping already in progress"})
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	search := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("search")))

	season := s.cfg.Scraper.DefaultSeason
	if season <= 0 {
		season = 5
	}
	if raw := r.URL.Query().Get("season"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "season must be a positive integer")
			return
		}
		season = parsed
	}

	projects, err := s.catalog.ListProjects(r.Context(), search, season)
	if err != nil {
		s.logger.Error("project query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch projects")
		return
	}

	if r.URL.Query().Get("raw") == "true" {
		writeJSON(w, http.StatusOK, map[string]any{
			"season":   season,
			"count":    len(projects),
			"projects": projects,
		})
		return
	}

	view := catalog.GroupByWeek(projects)
	if view.Count == 0 {
		view.Season = season
		view.Weeks = []catalog.Week{}
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) metadata(w http.ResponseWriter, r *http.Request) {
	projects, err := s.catalog.ListAllProjects(r.Context())
	if err != nil {
		s.logger.Error("metadata query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch metadata")
		return
	}
	writeJSON(w, http.StatusOK, catalog.BuildMetadata(projects))
}
