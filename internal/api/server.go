package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/humanarch/internal/app"
	"github.com/terra-clan/humanarch/internal/community"
	"github.com/terra-clan/humanarch/internal/config"
	"github.com/terra-clan/humanarch/internal/content"
	"github.com/terra-clan/humanarch/internal/events"
	"github.com/terra-clan/humanarch/internal/storage"
)

// Deps are the services the API exposes
type Deps struct {
	Registry *app.Registry
	Content  *content.Loader
	Guild    community.Guild
	Bus      *events.Bus
	Repo     storage.Repository
}

// Server represents the HTTP API server
type Server struct {
	config    config.ServerConfig
	cors      config.CORSConfig
	feedLimit int
	router    *chi.Mux
	registry  *app.Registry
	content   *content.Loader
	guild     community.Guild
	bus       *events.Bus
	repo      storage.Repository
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, corsCfg config.CORSConfig, feedLimit int, deps Deps) *Server {
	if feedLimit <= 0 {
		feedLimit = community.DefaultFeedLimit
	}
	s := &Server{
		config:    cfg,
		cors:      corsCfg,
		feedLimit: feedLimit,
		registry:  deps.Registry,
		content:   deps.Content,
		guild:     deps.Guild,
		bus:       deps.Bus,
		repo:      deps.Repo,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	origins := s.cors.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	// Health check (outside versioned API)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		// Websockets live outside the request timeout
		r.Get("/sessions/{id}/events", s.handleSessionEvents)
		r.Get("/community/ws", s.handleCommunityEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))

			// Sessions
			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", s.handleCreateSession)

				r.Route("/{id}", func(r chi.Router) {
					r.Delete("/", s.handleDeleteSession)

					r.Group(func(r chi.Router) {
						r.Use(s.loadSession)

						r.Get("/", s.handleGetSession)
						r.Post("/route", s.handleRoute)
						r.Put("/preferences", s.handleUpdatePreferences)

						r.Get("/assessment", s.handleGetAssessment)
						r.Post("/assessment/start", s.handleStartAssessment)
						r.Post("/assessment/answer", s.handleAnswer)
						r.Post("/assessment/revisit", s.handleRevisit)
						r.Post("/assessment/reset", s.handleResetAssessment)

						r.Get("/cart", s.handleGetCart)
						r.Post("/cart", s.handleAddToCart)
						r.Delete("/cart", s.handleClearCart)
						r.Delete("/cart/{index}", s.handleRemoveFromCart)

						r.Get("/checkout", s.handleGetCheckout)
						r.Post("/checkout", s.handleCheckout)
					})
				})
			})

			// Static content
			r.Route("/content", func(r chi.Router) {
				r.Get("/translations", s.handleTranslations)
				r.Get("/products", s.handleListProducts)
				r.Get("/products/{id}", s.handleGetProduct)
				r.Get("/questions", s.handleListQuestions)
				r.Get("/posts", s.handleListPosts)
				r.Get("/posts/{slug}", s.handleGetPost)
			})

			// Guild
			r.Route("/community", func(r chi.Router) {
				r.Post("/members", s.handleRegisterMember)
				r.Get("/members/{id}", s.handleGetMember)
				r.Get("/posts", s.handleListCommunityPosts)
				r.Post("/posts", s.handleCreateCommunityPost)
				r.Post("/posts/{id}/like", s.handleLikePost)
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
