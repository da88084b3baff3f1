// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer. It connects handlers, middleware and
// routes, and decides how the server starts and stops.
//
// DEPENDENCY INJECTION FLOW:
// main.go creates:
//
//	config → logger → sqldb.DB → media.Store → server.New
//
// server.New then builds every service and handler from those. This is
// the composition root: all dependencies are wired in one place.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/recipe-api/internal/auth"
	"github.com/sakif/recipe-api/internal/config"
	"github.com/sakif/recipe-api/internal/handler"
	"github.com/sakif/recipe-api/internal/media"
	"github.com/sakif/recipe-api/internal/middleware"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/ratelimit"
	"github.com/sakif/recipe-api/internal/repository/sqldb"
	"github.com/sakif/recipe-api/internal/service"
	"github.com/sakif/recipe-api/internal/validation"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and the auth rate limiter.
// Start closes both during graceful shutdown; tests that never call Start
// call Close instead.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqldb.DB
	limiter *ratelimit.KeyedRateLimiter
}

// New wires services and handlers onto a router.
//
// Each layer only receives what it needs:
//   - services get repository interfaces (satisfied by *sqldb.DB)
//   - handlers get services, never the database
func New(cfg *config.Config, logger *slog.Logger, db *sqldb.DB, images media.Store) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		limiter: ratelimit.New(ratelimit.PerInterval(cfg.AuthRate.PerMinute, time.Minute), cfg.AuthRate.Burst),
	}

	s.setupRoutes(tokens, auth.NewPasswordService(), images)
	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTES (trailing slashes are optional, StripSlashes removes them):
//
//	GET    /healthz                                   → health
//	POST   /api/user/create/                          → register      (rate limited)
//	POST   /api/user/token/                           → obtain token  (rate limited)
//	GET    /api/user/github/login/                    → GitHub redirect
//	GET    /api/user/github/callback/                 → GitHub token
//	GET    /api/user/                                 → list users    (staff)
//	GET    /api/user/me/                              → profile
//	PUT    /api/user/me/  PATCH /api/user/me/         → update profile
//	*      /api/recipe/tags/ and /{id}/               → tag CRUD
//	*      /api/recipe/ingredients/ and /{id}/        → ingredient CRUD
//	*      /api/recipe/recipes/ and /{id}/            → recipe CRUD
//	POST   /api/recipe/recipes/{id}/upload-image/     → image upload
//	GET    /media/*                                   → local image files
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID so every later log line can carry it
//  2. RealIP before anything that keys on the client address
//  3. Logger wraps Recoverer, so a recovered panic is logged as a 500
//  4. StripSlashes so /api/recipe/tags/ and /api/recipe/tags route alike
//  5. CORS answers preflight requests before auth runs
func (s *Server) setupRoutes(tokens *auth.TokenService, passwords *auth.PasswordService, images media.Store) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(chimiddleware.StripSlashes)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// === SERVICES ===
	v := validation.New()
	userService := service.NewUserService(s.db, passwords, v, s.logger)
	authService := service.NewAuthService(s.db, tokens, passwords, v, s.logger)
	tagService := service.NewLabelService(s.db, model.KindTag, v, s.logger)
	ingredientService := service.NewLabelService(s.db, model.KindIngredient, v, s.logger)
	recipeService := service.NewRecipeService(s.db, s.db, images, v, s.logger)

	// === HANDLERS ===
	healthHandler := handler.NewHealthHandler(s.db, s.logger)
	userHandler := handler.NewUserHandler(userService, authService, s.logger)
	tagHandler := handler.NewLabelHandler(tagService, s.logger)
	ingredientHandler := handler.NewLabelHandler(ingredientService, s.logger)
	recipeHandler := handler.NewRecipeHandler(recipeService, s.config.MaxUploadBytes, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	// === PUBLIC ROUTES ===
	// Credential endpoints share one per-IP limiter.
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(s.limiter, s.logger))
		r.Post("/api/user/create", userHandler.HandleCreate)
		r.Post("/api/user/token", userHandler.HandleToken)
	})

	if s.config.GitHub.Enabled() {
		callback := s.config.GitHub.CallbackURL
		if callback == "" {
			callback = fmt.Sprintf("http://localhost:%d/api/user/github/callback/", s.config.Port)
		}
		githubHandler := handler.NewGitHubHandler(
			auth.NewGitHubProvider(s.config.GitHub.ClientID, s.config.GitHub.ClientSecret, callback),
			authService, s.logger,
		)
		s.router.Get("/api/user/github/login", githubHandler.HandleLogin)
		s.router.Get("/api/user/github/callback", githubHandler.HandleCallback)
	} else {
		s.logger.Info("GitHub sign-in disabled: GITHUB_CLIENT_ID or GITHUB_CLIENT_SECRET not set")
	}

	// === AUTHENTICATED ROUTES ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Route("/api/user", func(r chi.Router) {
			r.Get("/", userHandler.HandleList)
			r.Get("/me", userHandler.HandleMe)
			r.Put("/me", userHandler.HandleUpdateMe)
			r.Patch("/me", userHandler.HandleUpdateMe)
		})

		r.Route("/api/recipe", func(r chi.Router) {
			r.Route("/tags", labelRoutes(tagHandler))
			r.Route("/ingredients", labelRoutes(ingredientHandler))
			r.Route("/recipes", func(r chi.Router) {
				r.Get("/", recipeHandler.HandleList)
				r.Post("/", recipeHandler.HandleCreate)
				r.Get("/{id}", recipeHandler.HandleGet)
				r.Put("/{id}", recipeHandler.HandleUpdate)
				r.Patch("/{id}", recipeHandler.HandlePatch)
				r.Delete("/{id}", recipeHandler.HandleDelete)
				r.Post("/{id}/upload-image", recipeHandler.HandleUploadImage)
			})
		})
	})

	// === MEDIA FILES ===
	// Only the local backend serves files itself. S3 URLs point at the
	// bucket (or its CDN) directly.
	if local, ok := images.(*media.LocalStore); ok && strings.HasPrefix(local.BaseURL(), "/") {
		prefix := local.BaseURL()
		s.router.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(filesOnly{http.Dir(local.Root())})))
	}
}

func labelRoutes(h *handler.LabelHandler) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdate)
		r.Patch("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
	}
}

// filesOnly hides directories so the media root cannot be listed.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases what New acquired. Start calls it on the way out.
func (s *Server) Close() error {
	s.limiter.Stop()
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Stop the limiter's cleanup goroutine and close the database
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second, // image uploads need more than a JSON call
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", string(s.db.Dialect())),
			slog.String("media", s.config.Media.Backend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
