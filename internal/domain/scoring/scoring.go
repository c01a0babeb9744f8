// Package scoring derives the match score from the event ledger.
package scoring

import (
	"github.com/okian/leaguemaker/internal/domain/model"
)

// Delta signs for ApplyDelta.
const (
	Add    = 1
	Remove = -1
)

// Recompute counts goal events per side. It is the reference the
// incremental Projector must always agree with.
func Recompute(events []model.Event) model.Score {
	var s model.Score
	for _, e := range events {
		if !e.IsGoal() {
			continue
		}
		switch e.Side {
		case model.SideHome:
			s.Home++
		case model.SideAway:
			s.Away++
		}
	}
	return s
}

// Projector keeps a running score in step with ledger mutations.
// It is not safe for concurrent use.
type Projector struct {
	score model.Score
}

// NewProjector returns a projector at 0-0.
func NewProjector() *Projector {
	return &Projector{}
}

// Score returns the current score.
func (p *Projector) Score() model.Score { return p.score }

// Recompute replaces the running score with a full recount of events.
func (p *Projector) Recompute(events []model.Event) model.Score {
	p.score = Recompute(events)
	return p.score
}

// ApplyDelta adds (sign=Add) or removes (sign=Remove) the event's score
// contribution. Non-goal events contribute nothing. A removal that would
// take a side below zero floors the count at zero and returns
// ErrScoreUnderflow: the ledger and score disagree and the caller must hear
// about it.
func (p *Projector) ApplyDelta(e model.Event, sign int) error {
	const op = "scoring.apply_delta"
	if sign != Add && sign != Remove {
		return model.Errorf(op, model.ErrValidation, "sign must be +1 or -1, got %d", sign)
	}
	if !e.IsGoal() {
		return nil
	}
	var count *int
	switch e.Side {
	case model.SideHome:
		count = &p.score.Home
	case model.SideAway:
		count = &p.score.Away
	default:
		return model.Errorf(op, model.ErrValidation, "goal %s has invalid side %q", e.ID, e.Side)
	}
	next := *count + sign
	if next < 0 {
		*count = 0
		return model.Errorf(op, model.ErrScoreUnderflow, "removing goal %s would make %s score negative", e.ID, e.Side)
	}
	*count = next
	return nil
}

// Replace moves the contribution of before to after. It only touches the
// score when the goal-ness or the side of the event changed.
func (p *Projector) Replace(before, after model.Event) error {
	if before.IsGoal() == after.IsGoal() && before.Side == after.Side {
		return nil
	}
	if err := p.ApplyDelta(before, Remove); err != nil {
		return err
	}
	return p.ApplyDelta(after, Add)
}

// Consistent reports whether the running score matches a full recount.
func (p *Projector) Consistent(events []model.Event) bool {
	return p.score == Recompute(events)
}
