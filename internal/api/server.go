package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/drillboard/internal/chat"
	"github.com/lox/drillboard/internal/config"
	"github.com/lox/drillboard/internal/dataset"
	"github.com/lox/drillboard/internal/ingest"
	"github.com/lox/drillboard/internal/middleware"
	"github.com/lox/drillboard/internal/store"
)

// Options carries the dependencies resolved at startup.
type Options struct {
	Config    *config.Config
	Server    config.ServerConfig
	Store     *store.Store
	Datasets  dataset.Store
	Backend   string
	Assistant chat.Assistant
}

type Server struct {
	cfg       *config.Config
	port      string
	store     *store.Store
	datasets  dataset.Store
	backend   string
	importer  *ingest.Importer
	assistant chat.Assistant
	router    http.Handler
}

// NewServer builds the router. ctx bounds background work owned by the
// middleware stack.
func NewServer(ctx context.Context, opts Options) *Server {
	s := &Server{
		cfg:       opts.Config,
		port:      opts.Server.Port,
		store:     opts.Store,
		datasets:  opts.Datasets,
		backend:   opts.Backend,
		assistant: opts.Assistant,
		importer: ingest.NewImporter(opts.Store, opts.Datasets,
			ingest.NewPipeline(opts.Config.MaxUploadBytes), opts.Backend),
	}
	s.router = s.routes(ctx, opts.Server)
	return s
}

func (s *Server) routes(ctx context.Context, sc config.ServerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.SecureHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   sc.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	limited := middleware.RateLimiter(ctx, middleware.RateLimitConfig{
		RequestsPerSecond: sc.RateLimitRPS,
		Burst:             sc.RateLimitBurst,
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/wells", s.handleWells)
		r.Get("/wells/{id}", s.handleWell)
		r.Get("/wells/{id}/data", s.handleWellData)
		r.Get("/wells/{id}/summary", s.handleWellSummary)
		r.Get("/wells/{id}/chart", s.handleWellChart)
		r.Get("/data", s.handleUploads)
		r.Get("/uploads/health", s.handleUploadHealth)
		r.With(limited).Post("/upload", s.handleUpload)
		r.With(limited).Post("/chat", s.handleChat)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("server: shutdown: %v", err)
		}
	}()

	log.Printf("server: listening on :%s (store %s, chat %s)", s.port, s.backend, s.assistant.Name())
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
