// Package api provides the HTTP API server and handlers for the YomiHub
// aggregation engine.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/yomihub/yomihub-server/internal/aggregate"
	"github.com/yomihub/yomihub-server/internal/library"
	"github.com/yomihub/yomihub-server/internal/media/images"
	"github.com/yomihub/yomihub-server/internal/media/pagecache"
	"github.com/yomihub/yomihub-server/internal/scrape"
	"github.com/yomihub/yomihub-server/internal/search"
	"github.com/yomihub/yomihub-server/internal/source"
	"github.com/yomihub/yomihub-server/internal/store"
	"github.com/yomihub/yomihub-server/internal/store/statsdb"
	"github.com/yomihub/yomihub-server/internal/tags"
	"github.com/yomihub/yomihub-server/internal/validation"
)

// Version is stamped into the OpenAPI spec and the health payload.
const Version = "1.0.0"

// Dependencies carries everything the handlers need. Stats, Scraper,
// Covers, and Library may be nil; the routes that need them respond 501.
type Dependencies struct {
	Store        *store.Store
	Registry     *source.Registry
	Orchestrator *aggregate.Orchestrator
	Search       *search.Index
	Tags         *tags.Index
	Pages        *pagecache.Cache
	Covers       *images.Processor
	Stats        *statsdb.Store
	Scraper      *scrape.Scraper
	Library      *library.Service
	Logger       *slog.Logger

	// IncludeAdultDefault widens requests that do not say otherwise.
	IncludeAdultDefault bool
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	deps      Dependencies
	router    *chi.Mux
	api       huma.API
	validator *validation.Validator
	logger    *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	humaConfig := huma.DefaultConfig("YomiHub API", Version)
	RegisterErrorHandler()

	s := &Server{
		deps:      deps,
		router:    router,
		api:       humachi.New(router, humaConfig),
		validator: validation.New(),
		logger:    deps.Logger,
	}

	s.registerHealthRoutes()
	s.registerCatalogRoutes()
	s.registerSeriesRoutes()
	s.registerSearchRoutes()
	s.registerSourceRoutes()
	s.registerTagRoutes()
	s.registerCacheRoutes()
	s.registerScrapeRoutes()
	s.registerLibraryRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API for test wrapping.
func (s *Server) API() huma.API {
	return s.api
}
