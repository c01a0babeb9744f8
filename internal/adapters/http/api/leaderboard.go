package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/leaguemaker/internal/domain/model"
	"github.com/okian/leaguemaker/internal/domain/types"
)

// DefaultScorersLimit is used when the request carries no limit.
const DefaultScorersLimit = 10

// LeaderboardDependencies defines the interface for top scorer queries.
type LeaderboardDependencies interface {
	TopScorers(ctx context.Context, n int) ([]types.Entry, error)
}

// LeaderboardHandler handles top scorer requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	if maxLimit < 1 {
		maxLimit = 100
	}
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetScorers handles GET /leaders/scorers?limit=N requests.
func (h *LeaderboardHandler) HandleGetScorers(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_scorers"
	n := DefaultScorersLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", model.NewKind(op, ErrBadRequest))
			return
		}
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", model.Errorf(op, ErrBadRequest, "limit above %d", h.maxLimit))
		return
	}
	entries, err := h.deps.TopScorers(r.Context(), n)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
