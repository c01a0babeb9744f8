// Package model contains domain models passed between layers.
package model

import "strings"

// Side identifies which team an event or roster entry belongs to.
type Side string

// Team sides.
const (
	SideHome Side = "home"
	SideAway Side = "away"
)

// Valid reports whether s is home or away.
func (s Side) Valid() bool { return s == SideHome || s == SideAway }

// ParseSide normalizes user input into a Side.
func ParseSide(s string) (Side, bool) {
	side := Side(strings.ToLower(strings.TrimSpace(s)))
	return side, side.Valid()
}

// Half is one of the two playing periods.
type Half string

// Halves.
const (
	HalfFirst  Half = "first"
	HalfSecond Half = "second"
)

// Valid reports whether h is first or second.
func (h Half) Valid() bool { return h == HalfFirst || h == HalfSecond }

// ParseHalf normalizes user input into a Half.
func ParseHalf(s string) (Half, bool) {
	h := Half(strings.ToLower(strings.TrimSpace(s)))
	return h, h.Valid()
}

// EventType discriminates the EventDetail variants.
type EventType string

// Event types.
const (
	EventGoal         EventType = "goal"
	EventCaution      EventType = "caution"
	EventDismissal    EventType = "dismissal"
	EventSubstitution EventType = "substitution"
)

// ParseEventType normalizes user input into an EventType.
func ParseEventType(s string) (EventType, bool) {
	t := EventType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case EventGoal, EventCaution, EventDismissal, EventSubstitution:
		return t, true
	}
	return t, false
}

// EventDetail is the per-type payload of an Event. The set of
// implementations is closed: Goal, Caution, Dismissal and Substitution.
type EventDetail interface {
	Type() EventType
	sealed()
}

// Goal scores one for the event's side. AssistPlayerID is optional.
type Goal struct {
	AssistPlayerID string
}

// Caution is a yellow card.
type Caution struct {
	Reason string
}

// Dismissal is a red card.
type Dismissal struct {
	Reason string
}

// Substitution replaces the event's primary player (leaving) with
// IncomingPlayerID (entering).
type Substitution struct {
	IncomingPlayerID string
}

func (Goal) Type() EventType         { return EventGoal }
func (Caution) Type() EventType      { return EventCaution }
func (Dismissal) Type() EventType    { return EventDismissal }
func (Substitution) Type() EventType { return EventSubstitution }

func (Goal) sealed()         {}
func (Caution) sealed()      {}
func (Dismissal) sealed()    {}
func (Substitution) sealed() {}

// Event is a single in-match occurrence recorded in the ledger.
type Event struct {
	ID       string
	Side     Side
	PlayerID string // scorer, booked player, or player leaving
	Minute   int    // may exceed the half length for stoppage time
	Half     Half
	Detail   EventDetail
	Seq      uint64 // insertion order within the ledger
}

// Type returns the event's discriminator, or "" when Detail is unset.
func (e Event) Type() EventType {
	if e.Detail == nil {
		return ""
	}
	return e.Detail.Type()
}

// IsGoal reports whether the event contributes to the score.
func (e Event) IsGoal() bool { return e.Type() == EventGoal }

// RelatedPlayerID returns the assist provider for goals or the incoming
// player for substitutions.
func (e Event) RelatedPlayerID() string {
	switch d := e.Detail.(type) {
	case Goal:
		return d.AssistPlayerID
	case Substitution:
		return d.IncomingPlayerID
	}
	return ""
}

// Reason returns the free-text reason for cautions and dismissals.
func (e Event) Reason() string {
	switch d := e.Detail.(type) {
	case Caution:
		return d.Reason
	case Dismissal:
		return d.Reason
	}
	return ""
}

// Involves reports whether playerID is the primary or related participant.
func (e Event) Involves(playerID string) bool {
	if playerID == "" {
		return false
	}
	return e.PlayerID == playerID || e.RelatedPlayerID() == playerID
}

// EventPatch is a partial update. Nil fields are left untouched.
type EventPatch struct {
	Minute          *int
	Half            *Half
	Reason          *string
	RelatedPlayerID *string
}

// Empty reports whether the patch changes nothing.
func (p EventPatch) Empty() bool {
	return p.Minute == nil && p.Half == nil && p.Reason == nil && p.RelatedPlayerID == nil
}

// NewDetail builds the variant for t from the flat option fields used by
// transport layers. Fields that do not apply to t must be empty.
func NewDetail(t EventType, relatedPlayerID, reason string) (EventDetail, error) {
	const op = "model.new_detail"
	switch t {
	case EventGoal:
		if reason != "" {
			return nil, Errorf(op, ErrInvalidEvent, "reason does not apply to a goal")
		}
		return Goal{AssistPlayerID: relatedPlayerID}, nil
	case EventCaution:
		if relatedPlayerID != "" {
			return nil, Errorf(op, ErrInvalidEvent, "a caution has no related player")
		}
		return Caution{Reason: reason}, nil
	case EventDismissal:
		if relatedPlayerID != "" {
			return nil, Errorf(op, ErrInvalidEvent, "a dismissal has no related player")
		}
		return Dismissal{Reason: reason}, nil
	case EventSubstitution:
		if reason != "" {
			return nil, Errorf(op, ErrInvalidEvent, "reason does not apply to a substitution")
		}
		return Substitution{IncomingPlayerID: relatedPlayerID}, nil
	}
	return nil, Errorf(op, ErrInvalidEvent, "unknown event type %q", t)
}
