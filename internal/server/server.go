package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/recipevault/apiserver/config"
	"github.com/recipevault/apiserver/internal/auth"
	"github.com/recipevault/apiserver/internal/db"
	"github.com/recipevault/apiserver/internal/events"
	"github.com/recipevault/apiserver/internal/handlers"
	"github.com/recipevault/apiserver/internal/logging"
	"github.com/recipevault/apiserver/internal/mq"
	"github.com/recipevault/apiserver/internal/services"
	"github.com/recipevault/apiserver/internal/storage"
	"github.com/recipevault/apiserver/internal/store"
)

const corsMaxAge = 3600

// Deps are the components the HTTP router dispatches to.
type Deps struct {
	Auth           *services.AuthService
	Tokens         *auth.TokenService
	Recipes        *services.RecipeService
	Images         *services.ImageService
	DB             handlers.Pinger
	AllowedOrigins []string
	StaticDir      string
	Log            logging.Logger
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	log        logging.Logger
}

// New connects every backing service and constructs a Server.
func New(ctx context.Context, cfg config.Config, log logging.Logger) (*Server, error) {
	if log == nil {
		log = logging.Nop()
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	tokens, err := auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.TTL, auth.WithLogger(log))
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("ensure bucket %s: %w", objects.Bucket(), err)
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	recipeRepo := store.NewRecipeRepository(dbConn)

	router := NewRouter(Deps{
		Auth:           services.NewAuthService(userRepo, tokens),
		Tokens:         tokens,
		Recipes:        services.NewRecipeService(recipeRepo, events.NewPublisher(queue, log), log),
		Images:         services.NewImageService(objects, log),
		DB:             dbConn,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		StaticDir:      cfg.StaticDir,
		Log:            log,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info(ctx, "server configured",
		"port", port,
		"storage_backend", cfg.Storage.Backend,
		"bucket", objects.Bucket(),
		"events_enabled", queue.Enabled(),
	)

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		log:        log,
	}, nil
}

// NewRouter builds the chi router with the middleware stack and all routes.
func NewRouter(d Deps) *chi.Mux {
	log := d.Log
	if log == nil {
		log = logging.Nop()
	}

	authHandler := handlers.NewAuthHandler(d.Auth, d.Tokens, log)
	recipeHandler := handlers.NewRecipeHandler(d.Recipes, log)
	imageHandler := handlers.NewImageHandler(d.Images, log)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins:   d.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
			MaxAge:           corsMaxAge,
		}),
	)

	health := handlers.Health(d.DB)
	router.Get("/healthz", health)
	router.Get("/actuator/health", health)

	router.Route("/api/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
	})
	router.Route("/api/recipes", func(r chi.Router) {
		handlers.RecipeRouter(r, recipeHandler, authHandler.RequireAuth)
	})
	router.Route("/api/images", func(r chi.Router) {
		handlers.ImageRouter(r, imageHandler, authHandler.RequireAuth)
	})

	router.NotFound(handlers.NewSPA(d.StaticDir).ServeHTTP)
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info(context.Background(), "listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the broker and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
