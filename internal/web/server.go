package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/litekit/litebridge/internal/config"
	"github.com/litekit/litebridge/internal/registry"
	"github.com/litekit/litebridge/internal/web/events"
	"github.com/litekit/litebridge/internal/web/handlers"
	"github.com/litekit/litebridge/internal/web/middleware"
)

// Server exposes the registry over HTTP and WebSocket.
type Server struct {
	registry *registry.Registry
	port     int
	bind     string
	apiKey   string
	router   *chi.Mux
	broker   *events.Broker
	handlers *handlers.Handlers
}

// NewServer creates the HTTP facade. With a non-empty apiKey every /api route
// requires a matching X-API-Key header.
func NewServer(reg *registry.Registry, port int, bind, apiKey string) *Server {
	s := &Server{
		registry: reg,
		port:     port,
		bind:     bind,
		apiKey:   apiKey,
		router:   chi.NewRouter(),
		broker:   events.NewBroker(),
	}
	s.handlers = handlers.New(reg, s.broker)
	s.setupRoutes()
	return s
}

// Broker returns the lifecycle event broker, to be registered as a registry
// event sink.
func (s *Server) Broker() *events.Broker {
	return s.broker
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/healthz", s.handlers.Health)

	r.Route("/api", func(r chi.Router) {
		if s.apiKey != "" {
			r.Use(middleware.APIKey(s.apiKey))
		}
		r.Get("/path", s.handlers.DatabasesPath)
		r.Get("/events", s.handlers.Events)

		r.Route("/databases", func(r chi.Router) {
			r.Get("/", s.handlers.ListDatabases)
			r.Post("/", s.handlers.OpenDatabase)
			r.Post("/delete", s.handlers.DeleteDatabase)

			r.Route("/{handle}", func(r chi.Router) {
				r.Delete("/", s.handlers.CloseDatabase)
				r.Post("/execute", s.handlers.Execute)
				r.Post("/query", s.handlers.Query)
				r.Post("/insert", s.handlers.Insert)
				r.Post("/update", s.handlers.Update)
				r.Post("/batch", s.handlers.Batch)
			})
		})
	})
}

// Start runs the server until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	var addr string
	if s.bind != "" {
		addr = fmt.Sprintf("%s:%d", s.bind, s.port)
	} else {
		addr = fmt.Sprintf(":%d", s.port)
	}

	timeouts := config.GetTimeouts()
	server := &http.Server{
		Addr:    addr,
		Handler: s.router,
		// ReadTimeout is for reading request body
		ReadTimeout: timeouts.HTTPRead,
		// WriteTimeout disabled (0) to allow the long-lived event socket
		WriteTimeout: 0,
		// IdleTimeout for keep-alive connections between requests
		IdleTimeout: timeouts.HTTPIdle,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down HTTP server")
		// Disconnect event subscribers first so Shutdown can drain.
		s.broker.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}
