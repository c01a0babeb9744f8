package api

import (
	"context"
	"net/http"

	service "github.com/okian/leaguemaker/internal/app"
	"github.com/okian/leaguemaker/internal/domain/ledger"
	"github.com/okian/leaguemaker/internal/domain/model"
	"github.com/okian/leaguemaker/internal/domain/types"
)

// EventDependencies defines the interface for event ledger operations.
type EventDependencies interface {
	RecordEvent(ctx context.Context, matchID string, req service.RecordRequest) (service.RecordResult, error)
	Event(ctx context.Context, matchID, eventID string) (model.Event, error)
	Events(ctx context.Context, matchID string, order ledger.Order, playerID string) ([]model.Event, error)
	EditEvent(ctx context.Context, matchID, eventID string, patch model.EventPatch) (model.Event, model.Score, error)
	RemoveEvent(ctx context.Context, matchID, eventID string) (model.Event, model.Score, error)
}

// recordEventRequest mirrors the OpenAPI schema for POST /matches/{matchID}/events.
type recordEventRequest struct {
	RequestID       string  `json:"request_id"`
	Type            string  `json:"type"`
	PlayerID        string  `json:"player_id"`
	Side            string  `json:"side"`
	Minute          *int    `json:"minute"`
	Half            *string `json:"half"`
	RelatedPlayerID string  `json:"related_player_id"`
	Reason          string  `json:"reason"`
}

func (e recordEventRequest) toService(op string) (service.RecordRequest, error) { //nolint:gocritic // hugeParam: request body value
	t, ok := model.ParseEventType(e.Type)
	if !ok {
		return service.RecordRequest{}, model.Errorf(op, model.ErrInvalidEvent, "unknown event type %q", e.Type)
	}
	req := service.RecordRequest{
		RequestID:       e.RequestID,
		Type:            t,
		PlayerID:        e.PlayerID,
		Minute:          e.Minute,
		RelatedPlayerID: e.RelatedPlayerID,
		Reason:          e.Reason,
	}
	if e.PlayerID != "" {
		side, ok := model.ParseSide(e.Side)
		if !ok {
			return service.RecordRequest{}, model.Errorf(op, model.ErrValidation, "unknown side %q", e.Side)
		}
		req.Side = side
	}
	if e.Half != nil {
		half, ok := model.ParseHalf(*e.Half)
		if !ok {
			return service.RecordRequest{}, model.Errorf(op, model.ErrValidation, "unknown half %q", *e.Half)
		}
		req.Half = &half
	}
	return req, nil
}

// patchEventRequest mirrors the OpenAPI schema for PATCH .../events/{eventID}.
type patchEventRequest struct {
	Minute          *int    `json:"minute"`
	Half            *string `json:"half"`
	Reason          *string `json:"reason"`
	RelatedPlayerID *string `json:"related_player_id"`
}

func (p patchEventRequest) toModel(op string) (model.EventPatch, error) {
	patch := model.EventPatch{
		Minute:          p.Minute,
		Reason:          p.Reason,
		RelatedPlayerID: p.RelatedPlayerID,
	}
	if p.Half != nil {
		half, ok := model.ParseHalf(*p.Half)
		if !ok {
			return model.EventPatch{}, model.Errorf(op, model.ErrValidation, "unknown half %q", *p.Half)
		}
		patch.Half = &half
	}
	return patch, nil
}

type eventResponse struct {
	Status    string       `json:"status"`
	Duplicate bool         `json:"duplicate"`
	Event     *types.Event `json:"event,omitempty"`
	Score     model.Score  `json:"score"`
}

// EventsHandler handles event requests.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandleRecord handles POST /matches/{matchID}/events. A repeated
// request_id answers 200 with duplicate=true and records nothing.
func (h *EventsHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	const op = "api.record_event"
	var body recordEventRequest
	if err := decodeJSON(r, op, &body); err != nil {
		writeFailure(w, r, err)
		return
	}
	req, err := body.toService(op)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	res, err := h.deps.RecordEvent(r.Context(), r.PathValue("matchID"), req)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if res.Duplicate {
		writeJSON(w, http.StatusOK, eventResponse{Status: "duplicate", Duplicate: true, Score: res.Score})
		return
	}
	view := types.FromEvent(res.Event)
	writeJSON(w, http.StatusCreated, eventResponse{Status: "recorded", Event: &view, Score: res.Score})
}

// HandleList handles GET /matches/{matchID}/events?order=asc|desc&player=.
func (h *EventsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_events"
	q := r.URL.Query()
	order, ok := ledger.ParseOrder(q.Get("order"))
	if !ok {
		writeFailure(w, r, model.Errorf(op, ErrBadRequest, "order must be asc or desc"))
		return
	}
	events, err := h.deps.Events(r.Context(), r.PathValue("matchID"), order, q.Get("player"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromEvents(events))
}

// HandleGet handles GET /matches/{matchID}/events/{eventID}.
func (h *EventsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	e, err := h.deps.Event(r.Context(), r.PathValue("matchID"), r.PathValue("eventID"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromEvent(e))
}

// HandleEdit handles PATCH /matches/{matchID}/events/{eventID}.
func (h *EventsHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	const op = "api.edit_event"
	var body patchEventRequest
	if err := decodeJSON(r, op, &body); err != nil {
		writeFailure(w, r, err)
		return
	}
	patch, err := body.toModel(op)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	e, score, err := h.deps.EditEvent(r.Context(), r.PathValue("matchID"), r.PathValue("eventID"), patch)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	view := types.FromEvent(e)
	writeJSON(w, http.StatusOK, eventResponse{Status: "edited", Event: &view, Score: score})
}

// HandleRemove handles DELETE /matches/{matchID}/events/{eventID}.
func (h *EventsHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	e, score, err := h.deps.RemoveEvent(r.Context(), r.PathValue("matchID"), r.PathValue("eventID"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	view := types.FromEvent(e)
	writeJSON(w, http.StatusOK, eventResponse{Status: "removed", Event: &view, Score: score})
}
