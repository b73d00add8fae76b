package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/matheodrd/httphelper/handler"

	"routebudget-telemetry/internal/location"
	"routebudget-telemetry/internal/session"
)

// suggestionWait bounds how long a suggestions request waits for the
// debounced remote lookup before answering with what it has.
const suggestionWait = 1200 * time.Millisecond

func (s *Server) suggestionsHandler() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		query := r.URL.Query().Get("q")
		if query == "" {
			return handler.NewErrWithStatus(http.StatusBadRequest, errors.New("missing q"))
		}

		// The instant results arrive immediately; the cached or remote
		// follow-up is waited for within a bounded window.
		lookupCtx, cancel := context.WithTimeout(r.Context(), suggestionWait)
		defer cancel()

		var latest []location.Suggestion
		for results := range s.suggestions.Lookup(lookupCtx, query) {
			latest = results
		}
		return writeJSON(w, map[string]any{"suggestions": latest})
	})
}

func (s *Server) positionHandler() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		pos := s.controller.CurrentPosition()
		if pos == nil {
			return handler.NewErrWithStatus(http.StatusNotFound, errors.New("no position acquired yet"))
		}

		address, err := s.reverser.Reverse(r.Context(), *pos)
		if err != nil {
			s.logger.Warn("reverse geocode failed", "error", err)
		}
		return writeJSON(w, map[string]any{"position": pos, "address": address})
	})
}

func (s *Server) sessionHandler() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, _ *http.Request) error {
		return writeJSON(w, map[string]any{
			"phase":    s.controller.Phase().String(),
			"channel":  s.channel.Session(),
			"on_route": s.controller.OnRoute(),
		})
	})
}

type selectRequest struct {
	Field      string              `json:"field"`
	Suggestion location.Suggestion `json:"suggestion"`
}

func (s *Server) selectHandler() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var req selectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return handler.NewErrWithStatus(http.StatusBadRequest, err)
		}
		if err := s.controller.SelectSuggestion(req.Field, req.Suggestion); err != nil {
			return handler.NewErrWithStatus(http.StatusBadRequest, err)
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
}

type confirmRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (s *Server) confirmHandler() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		var req confirmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return handler.NewErrWithStatus(http.StatusBadRequest, err)
		}
		if req.From != "" {
			s.controller.SetFrom(req.From)
		}
		if req.To != "" {
			s.controller.SetTo(req.To)
		}

		trip, err := s.controller.ConfirmTrip(r.Context())
		if errors.Is(err, session.ErrAddressesRequired) {
			return handler.NewErrWithStatus(http.StatusBadRequest, err)
		}
		if err != nil {
			return handler.NewErrWithStatus(http.StatusBadGateway, err)
		}
		return writeJSON(w, trip)
	})
}

func (s *Server) tripHandler() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		trip, err := s.trips.Trip(r.Context())
		if err != nil {
			return handler.NewErrWithStatus(http.StatusInternalServerError, err)
		}
		if trip == nil {
			return handler.NewErrWithStatus(http.StatusNotFound, errors.New("no trip saved"))
		}
		return writeJSON(w, trip)
	})
}

func (s *Server) resumeHandler() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		trip, center, err := s.controller.Resume(r.Context())
		if err != nil {
			return handler.NewErrWithStatus(http.StatusInternalServerError, err)
		}
		return writeJSON(w, map[string]any{"trip": trip, "center": center})
	})
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}
