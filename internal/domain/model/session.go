package model

import "time"

// Phase is the clock's position in the match.
type Phase string

// Clock phases.
const (
	PhaseFirstHalf  Phase = "first-half"
	PhaseHalfTime   Phase = "half-time"
	PhaseSecondHalf Phase = "second-half"
	PhaseFinished   Phase = "finished"
)

// Playing reports whether the ball can be in play during p.
func (p Phase) Playing() bool { return p == PhaseFirstHalf || p == PhaseSecondHalf }

// Half maps the phase to the half an event recorded now belongs to.
// Half-time counts as the first half (late first-half entries).
func (p Phase) Half() Half {
	if p == PhaseSecondHalf || p == PhaseFinished {
		return HalfSecond
	}
	return HalfFirst
}

// Score is the derived home/away goal count.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// For returns the count for side.
func (s Score) For(side Side) int {
	if side == SideAway {
		return s.Away
	}
	return s.Home
}

// Snapshot is an immutable export of a session for the persistence layer.
type Snapshot struct {
	MatchID    string
	Score      Score
	Events     []Event // chronological
	FinalPhase Phase
	TakenAt    time.Time
}
