// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/leaguemaker/internal/app"
	"github.com/okian/leaguemaker/internal/domain/model"
	"github.com/okian/leaguemaker/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SessionDependencies
	EventDependencies
	RecordDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	sessionHandler     *SessionHandler
	eventsHandler      *EventsHandler
	recordsHandler     *RecordsHandler
	leaderboardHandler *LeaderboardHandler
}

// NewServer creates a new API server with all handlers. maxLimit caps the
// top scorers page size.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		sessionHandler:     NewSessionHandler(deps),
		eventsHandler:      NewEventsHandler(deps),
		recordsHandler:     NewRecordsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /stats", "stats", s.statsHandler.HandleStats)

	route("POST /matches/{matchID}/session", "session", s.sessionHandler.HandleOpen)
	route("GET /matches/{matchID}/session", "session", s.sessionHandler.HandleGet)
	route("DELETE /matches/{matchID}/session", "session", s.sessionHandler.HandleClose)
	route("GET /matches/{matchID}/roster", "roster", s.sessionHandler.HandleRoster)
	route("PUT /matches/{matchID}/roster/{playerID}/attendance", "attendance", s.sessionHandler.HandleAttendance)
	route("POST /matches/{matchID}/clock/{action}", "clock", s.sessionHandler.HandleClock)
	route("POST /matches/{matchID}/participant", "participant", s.sessionHandler.HandleParticipant)
	route("GET /matches/{matchID}/snapshot", "snapshot", s.sessionHandler.HandleSnapshot)
	route("POST /matches/{matchID}/persist", "persist", s.sessionHandler.HandlePersist)

	route("POST /matches/{matchID}/events", "events", s.eventsHandler.HandleRecord)
	route("GET /matches/{matchID}/events", "events", s.eventsHandler.HandleList)
	route("GET /matches/{matchID}/events/{eventID}", "event", s.eventsHandler.HandleGet)
	route("PATCH /matches/{matchID}/events/{eventID}", "event", s.eventsHandler.HandleEdit)
	route("DELETE /matches/{matchID}/events/{eventID}", "event", s.eventsHandler.HandleRemove)

	route("GET /records/{matchID}", "records", s.recordsHandler.HandleGetRecord)
	route("GET /players/{playerID}/career", "career", s.recordsHandler.HandleCareer)
	route("GET /leaders/scorers", "scorers", s.leaderboardHandler.HandleGetScorers)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads a JSON body, rejecting unknown fields.
func decodeJSON(r *http.Request, op string, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.WrapKind(op, ErrBadRequest, err)
	}
	return nil
}

// writeFailure translates upstream errors into status codes.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Get().Named("api").Error(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrBackpressure), errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrTooManySessions):
		return http.StatusTooManyRequests, "too_many_sessions"
	case errors.Is(err, model.ErrValidation):
		return http.StatusUnprocessableEntity, "validation"
	case errors.Is(err, model.ErrInvalidEvent):
		return http.StatusUnprocessableEntity, "invalid_event"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrIllegalState):
		return http.StatusConflict, "illegal_state"
	case errors.Is(err, model.ErrScoreUnderflow):
		return http.StatusInternalServerError, "score_underflow"
	}
	return http.StatusInternalServerError, "internal_error"
}
