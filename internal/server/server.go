package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/akicestmoi/auth-apiserver/config"
	"github.com/akicestmoi/auth-apiserver/internal/db"
	"github.com/akicestmoi/auth-apiserver/internal/handlers"
	"github.com/akicestmoi/auth-apiserver/internal/mq"
	"github.com/akicestmoi/auth-apiserver/internal/services"
	"github.com/akicestmoi/auth-apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server and its collaborators.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	eventBus   *mq.MQ
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	eventBus, err := mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	logger := slog.Default()

	accountRepo := store.NewAccountRepository(dbConn)

	// A nil *mq.MQ must stay a nil interface, otherwise the service
	// would try to publish through it.
	var events services.EventPublisher
	if eventBus != nil {
		events = eventBus
	}
	accountService := services.NewAccountService(accountRepo, events, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	handlers.AccountRouter(router, accountService, logger)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		eventBus:   eventBus,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and closes the collaborators.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.eventBus != nil {
		_ = s.eventBus.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
