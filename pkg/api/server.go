package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cbodonnell/roulette/pkg/api/handlers"
	"github.com/cbodonnell/roulette/pkg/api/middleware"
	"github.com/cbodonnell/roulette/pkg/log"
	"github.com/cbodonnell/roulette/pkg/state"
	"github.com/cbodonnell/roulette/pkg/table"
	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port         int
	TLS          *TLSConfig
	Commander    handlers.Commander
	StateManager state.StateManager
	Layout       *table.Layout
	// CORSOrigins defaults to every origin.
	CORSOrigins []string
	Logger      *log.Logger
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewHandler(opts),
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// NewHandler builds the API routes.
func NewHandler(opts NewAPIServerOptions) http.Handler {
	if opts.Layout == nil {
		opts.Layout = table.StandardLayout()
	}
	if opts.Logger == nil {
		opts.Logger = log.DefaultLogger().WithComponent("api")
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	r := mux.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(opts.Logger), middleware.NewLoggingMiddleware(opts.Logger))

	r.HandleFunc("/state", handlers.HandleGetState(opts.StateManager)).Methods(http.MethodGet)
	r.HandleFunc("/balance", handlers.HandleGetBalance(opts.StateManager)).Methods(http.MethodGet)
	r.HandleFunc("/funds", handlers.HandleAddFunds(opts.Commander)).Methods(http.MethodPost)
	r.HandleFunc("/layout", handlers.HandleGetLayout(opts.Layout)).Methods(http.MethodGet)

	r.HandleFunc("/bets", handlers.HandlePlaceBet(opts.Commander, opts.Layout)).Methods(http.MethodPost)
	r.HandleFunc("/bets", handlers.HandleCancelBets(opts.Commander)).Methods(http.MethodDelete)
	r.HandleFunc("/bets/move", handlers.HandleMoveChip(opts.Commander)).Methods(http.MethodPost)
	r.HandleFunc("/bets/{spotID}", handlers.HandleRemoveBet(opts.Commander)).Methods(http.MethodDelete)
	r.HandleFunc("/chip", handlers.HandleSelectChip(opts.Commander)).Methods(http.MethodPost)

	r.HandleFunc("/spin", handlers.HandleSpin(opts.Commander)).Methods(http.MethodPost)
	r.HandleFunc("/history", handlers.HandleGetHistory(opts.Commander)).Methods(http.MethodGet)
	r.HandleFunc("/stats", handlers.HandleGetStats(opts.Commander)).Methods(http.MethodGet)

	return cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         60 * 15,
	})(r)
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
