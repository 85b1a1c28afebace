package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers are the endpoints mounted by the server. Nil optional handlers
// are not mounted.
type Handlers struct {
	Compress    http.Handler
	WebSocket   http.Handler
	Metrics     http.Handler
	MetricsPath string
}

// Server is the HTTP front of the proxy
type Server struct {
	Router     *chi.Mux
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server listening on address
func New(address string, logger *slog.Logger, handlers Handlers) *Server {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	r.Get("/", handlers.Compress.ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok")
	})
	if handlers.WebSocket != nil {
		r.Get("/ws", handlers.WebSocket.ServeHTTP)
	}
	if handlers.Metrics != nil {
		path := handlers.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, handlers.Metrics)
	}

	return &Server{
		Router: r,
		httpServer: &http.Server{
			Addr:     address,
			Handler:  r,
			ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		logger: logger,
	}
}

// Start listens and serves until Shutdown
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve serves on an existing listener until Shutdown
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info("starting server", slog.String("address", listener.Addr().String()))
	if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}
