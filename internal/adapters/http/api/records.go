package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/leaguemaker/internal/adapters/repository"
	"github.com/okian/leaguemaker/internal/domain/model"
	"github.com/okian/leaguemaker/internal/domain/types"
)

// RecordDependencies defines the interface for stored match queries.
type RecordDependencies interface {
	MatchRecord(ctx context.Context, matchID string) (repository.MatchRecord, error)
	Career(ctx context.Context, playerID string) (repository.Career, error)
	TopScorers(ctx context.Context, n int) ([]types.Entry, error)
}

type recordResponse struct {
	MatchID     string        `json:"match_id"`
	Score       model.Score   `json:"score"`
	FinalPhase  model.Phase   `json:"final_phase"`
	Events      []types.Event `json:"events"`
	TakenAt     time.Time     `json:"taken_at"`
	PersistedAt time.Time     `json:"persisted_at"`
}

// RecordsHandler handles stored match and career requests.
type RecordsHandler struct {
	deps RecordDependencies
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(deps RecordDependencies) *RecordsHandler {
	return &RecordsHandler{deps: deps}
}

// HandleGetRecord handles GET /records/{matchID}.
func (h *RecordsHandler) HandleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.deps.MatchRecord(r.Context(), r.PathValue("matchID"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse{
		MatchID:     rec.MatchID,
		Score:       rec.Score,
		FinalPhase:  rec.FinalPhase,
		Events:      types.FromEvents(rec.Events),
		TakenAt:     rec.TakenAt,
		PersistedAt: rec.PersistedAt,
	})
}

// HandleCareer handles GET /players/{playerID}/career.
func (h *RecordsHandler) HandleCareer(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.Career(r.Context(), r.PathValue("playerID"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
