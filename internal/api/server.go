package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"routebudget-telemetry/internal/config"
	"routebudget-telemetry/internal/location"
	"routebudget-telemetry/internal/session"
	"routebudget-telemetry/internal/suggest"
	"routebudget-telemetry/internal/telemetry"
)

// Reverser labels a coordinate with a display name.
type Reverser interface {
	Reverse(ctx context.Context, pos location.Position) (string, error)
}

type Server struct {
	Config      *config.Config
	logger      *slog.Logger
	controller  *session.Controller
	suggestions *suggest.Service
	channel     *telemetry.Channel
	reverser    Reverser
	trips       location.TripStore
}

func NewServer(config *config.Config, controller *session.Controller, suggestions *suggest.Service, channel *telemetry.Channel, reverser Reverser, trips location.TripStore, logger *slog.Logger) *Server {
	return &Server{
		Config:      config,
		logger:      logger,
		controller:  controller,
		suggestions: suggestions,
		channel:     channel,
		reverser:    reverser,
		trips:       trips,
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Header().Add("Cache-Control", "no-cache, no-store, must-revalidate;")
	if _, err := w.Write([]byte("API server is started.")); err != nil {
		s.logger.Error(fmt.Sprintf("Error writing response: %v", err))
	}
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.Handle("GET /suggestions", s.suggestionsHandler())
	mux.Handle("GET /position", s.positionHandler())
	mux.Handle("GET /session", s.sessionHandler())
	mux.Handle("GET /trip", s.tripHandler())
	mux.Handle("POST /trip/select", s.selectHandler())
	mux.Handle("POST /trip/confirm", s.confirmHandler())
	mux.Handle("POST /trip/resume", s.resumeHandler())

	server := &http.Server{
		Addr:    net.JoinHostPort(s.Config.APIServerHost, s.Config.APIServerPort),
		Handler: mux,
	}

	go func() {
		s.logger.Info("API server is running", "port", s.Config.APIServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server failed to listen and serve", "error", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("API server failed to shutdown", "error", err)
		}
	}()

	wg.Wait()
	return nil
}
