package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/leaguemaker/internal/adapters/mq/queue"
	"github.com/okian/leaguemaker/internal/domain/clock"
	"github.com/okian/leaguemaker/internal/domain/model"
	"github.com/okian/leaguemaker/internal/domain/session"
	"github.com/okian/leaguemaker/internal/domain/types"
)

// SessionDependencies defines the interface for session lifecycle operations.
type SessionDependencies interface {
	OpenSession(ctx context.Context, matchID string, entries []model.RosterEntry) (session.State, error)
	CloseSession(ctx context.Context, matchID string) error
	State(ctx context.Context, matchID string) (session.State, error)
	Roster(ctx context.Context, matchID string) ([]model.RosterEntry, error)
	ClockAction(ctx context.Context, matchID, action string) (session.State, error)
	SelectParticipant(ctx context.Context, matchID, playerID string, side model.Side) (bool, error)
	SetAttendance(ctx context.Context, matchID, playerID string, a model.Attendance) error
	Snapshot(ctx context.Context, matchID string) (model.Snapshot, error)
	Persist(ctx context.Context, matchID string) (queue.Job, error)
}

// rosterEntry mirrors the OpenAPI RosterEntry schema.
type rosterEntry struct {
	PlayerID     string `json:"player_id"`
	DisplayName  string `json:"display_name"`
	Position     string `json:"position,omitempty"`
	JerseyNumber int    `json:"jersey_number,omitempty"`
	Side         string `json:"side"`
	Attendance   string `json:"attendance"`
}

func (e rosterEntry) model() model.RosterEntry {
	// invalid values pass through; the roster rejects them
	side, _ := model.ParseSide(e.Side)
	attendance, _ := model.ParseAttendance(e.Attendance)
	return model.RosterEntry{
		PlayerID:     e.PlayerID,
		DisplayName:  e.DisplayName,
		Position:     e.Position,
		JerseyNumber: e.JerseyNumber,
		Side:         side,
		Attendance:   attendance,
	}
}

func fromRosterEntry(e model.RosterEntry) rosterEntry {
	return rosterEntry{
		PlayerID:     e.PlayerID,
		DisplayName:  e.DisplayName,
		Position:     e.Position,
		JerseyNumber: e.JerseyNumber,
		Side:         string(e.Side),
		Attendance:   string(e.Attendance),
	}
}

type openSessionRequest struct {
	Roster []rosterEntry `json:"roster"`
}

type stateResponse struct {
	MatchID   string               `json:"match_id"`
	Phase     model.Phase          `json:"phase"`
	Elapsed   int                  `json:"elapsed"`
	Running   bool                 `json:"running"`
	Minute    int                  `json:"minute"`
	Remaining int                  `json:"remaining"`
	Mode      clock.Mode           `json:"mode"`
	Score     model.Score          `json:"score"`
	Events    int                  `json:"events"`
	Staged    *session.Participant `json:"staged,omitempty"`
	Persisted bool                 `json:"persisted"`
}

func toStateResponse(st session.State) stateResponse { //nolint:gocritic // hugeParam: state is a value view
	return stateResponse{
		MatchID:   st.MatchID,
		Phase:     st.Phase,
		Elapsed:   st.Elapsed,
		Running:   st.Running,
		Minute:    st.Minute,
		Remaining: st.Remaining,
		Mode:      st.Mode,
		Score:     st.Score,
		Events:    st.Events,
		Staged:    st.Staged,
		Persisted: st.Persisted,
	}
}

type participantRequest struct {
	PlayerID string `json:"player_id"`
	Side     string `json:"side"`
}

type participantResponse struct {
	Selected bool          `json:"selected"`
	State    stateResponse `json:"state"`
}

type attendanceRequest struct {
	Attendance string `json:"attendance"`
}

type snapshotResponse struct {
	MatchID    string        `json:"match_id"`
	Score      model.Score   `json:"score"`
	FinalPhase model.Phase   `json:"final_phase"`
	Events     []types.Event `json:"events"`
	TakenAt    time.Time     `json:"taken_at"`
}

type persistResponse struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id"`
	MatchID string `json:"match_id"`
}

// SessionHandler handles session, clock and roster requests.
type SessionHandler struct {
	deps SessionDependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

// HandleOpen handles POST /matches/{matchID}/session.
func (h *SessionHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	const op = "api.open_session"
	var req openSessionRequest
	if err := decodeJSON(r, op, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	entries := make([]model.RosterEntry, 0, len(req.Roster))
	for _, e := range req.Roster {
		entries = append(entries, e.model())
	}
	st, err := h.deps.OpenSession(r.Context(), r.PathValue("matchID"), entries)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStateResponse(st))
}

// HandleGet handles GET /matches/{matchID}/session.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.State(r.Context(), r.PathValue("matchID"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStateResponse(st))
}

// HandleClose handles DELETE /matches/{matchID}/session.
func (h *SessionHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.CloseSession(r.Context(), r.PathValue("matchID")); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRoster handles GET /matches/{matchID}/roster.
func (h *SessionHandler) HandleRoster(w http.ResponseWriter, r *http.Request) {
	entries, err := h.deps.Roster(r.Context(), r.PathValue("matchID"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	out := make([]rosterEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, fromRosterEntry(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleAttendance handles PUT /matches/{matchID}/roster/{playerID}/attendance.
func (h *SessionHandler) HandleAttendance(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_attendance"
	var req attendanceRequest
	if err := decodeJSON(r, op, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	a, ok := model.ParseAttendance(req.Attendance)
	if !ok {
		writeFailure(w, r, model.Errorf(op, model.ErrValidation, "unknown attendance %q", req.Attendance))
		return
	}
	matchID := r.PathValue("matchID")
	if err := h.deps.SetAttendance(r.Context(), matchID, r.PathValue("playerID"), a); err != nil {
		writeFailure(w, r, err)
		return
	}
	h.HandleGet(w, r)
}

// HandleClock handles POST /matches/{matchID}/clock/{action}.
func (h *SessionHandler) HandleClock(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.ClockAction(r.Context(), r.PathValue("matchID"), r.PathValue("action"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStateResponse(st))
}

// HandleParticipant handles POST /matches/{matchID}/participant. A player
// who is not attending for the side is reported with selected=false.
func (h *SessionHandler) HandleParticipant(w http.ResponseWriter, r *http.Request) {
	const op = "api.select_participant"
	var req participantRequest
	if err := decodeJSON(r, op, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	side, ok := model.ParseSide(req.Side)
	if !ok {
		writeFailure(w, r, model.Errorf(op, model.ErrValidation, "unknown side %q", req.Side))
		return
	}
	matchID := r.PathValue("matchID")
	selected, err := h.deps.SelectParticipant(r.Context(), matchID, req.PlayerID, side)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	st, err := h.deps.State(r.Context(), matchID)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, participantResponse{Selected: selected, State: toStateResponse(st)})
}

// HandleSnapshot handles GET /matches/{matchID}/snapshot.
func (h *SessionHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Snapshot(r.Context(), r.PathValue("matchID"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse{
		MatchID:    snap.MatchID,
		Score:      snap.Score,
		FinalPhase: snap.FinalPhase,
		Events:     types.FromEvents(snap.Events),
		TakenAt:    snap.TakenAt,
	})
}

// HandlePersist handles POST /matches/{matchID}/persist.
func (h *SessionHandler) HandlePersist(w http.ResponseWriter, r *http.Request) {
	job, err := h.deps.Persist(r.Context(), r.PathValue("matchID"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, persistResponse{Status: "queued", JobID: job.ID, MatchID: job.MatchID})
}
