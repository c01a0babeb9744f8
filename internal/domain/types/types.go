// Package types contains the wire views shared by the API and the stores.
package types

import (
	"github.com/okian/leaguemaker/internal/domain/model"
)

// Entry represents a top scorer row.
type Entry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Goals    int    `json:"goals"`
}

// Event is the flat JSON form of a ledger event.
type Event struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Side            string `json:"side"`
	PlayerID        string `json:"player_id"`
	RelatedPlayerID string `json:"related_player_id,omitempty"`
	Reason          string `json:"reason,omitempty"`
	Minute          int    `json:"minute"`
	Half            string `json:"half"`
	Seq             uint64 `json:"seq"`
}

// FromEvent flattens e.
func FromEvent(e model.Event) Event { //nolint:gocritic // hugeParam: events are values by contract
	return Event{
		ID:              e.ID,
		Type:            string(e.Type()),
		Side:            string(e.Side),
		PlayerID:        e.PlayerID,
		RelatedPlayerID: e.RelatedPlayerID(),
		Reason:          e.Reason(),
		Minute:          e.Minute,
		Half:            string(e.Half),
		Seq:             e.Seq,
	}
}

// FromEvents flattens a slice of events, keeping order.
func FromEvents(events []model.Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		out = append(out, FromEvent(e))
	}
	return out
}

// Model rebuilds the domain event. It fails with model.ErrInvalidEvent when
// the type, side or half is unknown or the detail fields do not fit the type.
func (e Event) Model() (model.Event, error) { //nolint:gocritic // hugeParam: mirrors model.Event
	const op = "types.event"
	t, ok := model.ParseEventType(e.Type)
	if !ok {
		return model.Event{}, model.Errorf(op, model.ErrInvalidEvent, "unknown event type %q", e.Type)
	}
	side, ok := model.ParseSide(e.Side)
	if !ok {
		return model.Event{}, model.Errorf(op, model.ErrInvalidEvent, "unknown side %q", e.Side)
	}
	half, ok := model.ParseHalf(e.Half)
	if !ok {
		return model.Event{}, model.Errorf(op, model.ErrInvalidEvent, "unknown half %q", e.Half)
	}
	detail, err := model.NewDetail(t, e.RelatedPlayerID, e.Reason)
	if err != nil {
		return model.Event{}, err
	}
	return model.Event{
		ID:       e.ID,
		Side:     side,
		PlayerID: e.PlayerID,
		Minute:   e.Minute,
		Half:     half,
		Detail:   detail,
		Seq:      e.Seq,
	}, nil
}
