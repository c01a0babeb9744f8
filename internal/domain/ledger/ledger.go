// Package ledger stores the ordered collection of events recorded during a
// match session.
package ledger

import (
	"iter"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/leaguemaker/internal/domain/model"
)

// Order selects how List sorts events.
type Order int

const (
	// Ascending is the chronological narrative: first half before second,
	// then by minute, then by recording order.
	Ascending Order = iota
	// Descending is the most-recent-first feed; the exact reverse of Ascending.
	Descending
)

// ParseOrder maps "asc"/"desc" (or empty) to an Order.
func ParseOrder(s string) (Order, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Ascending, true
	case "desc", "descending":
		return Descending, true
	}
	return Ascending, false
}

// RosterView is the read side of the roster the ledger validates against.
type RosterView interface {
	Lookup(playerID string) (model.RosterEntry, bool)
}

// RecordOptions carries the optional fields of Record.
type RecordOptions struct {
	// RelatedPlayerID is the assist provider for a goal or the incoming
	// player for a substitution.
	RelatedPlayerID string
	// Reason applies to cautions and dismissals.
	Reason string
}

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithIDGenerator replaces the uuid based event id generator.
func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) {
		if fn != nil {
			l.newID = fn
		}
	}
}

// Ledger is the append-only (with deletion) list of match events.
// It is not safe for concurrent use; the owning session serializes access.
type Ledger struct {
	roster RosterView
	events []model.Event // recording order
	seq    uint64
	newID  func() string
}

// New creates an empty ledger validating participants against roster.
func New(roster RosterView, opts ...Option) *Ledger {
	l := &Ledger{
		roster: roster,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record validates and appends a new event with a fresh id.
func (l *Ledger) Record(t model.EventType, side model.Side, playerID string, minute int, half model.Half, opts RecordOptions) (model.Event, error) {
	const op = "ledger.record"
	detail, err := model.NewDetail(t, opts.RelatedPlayerID, opts.Reason)
	if err != nil {
		return model.Event{}, err
	}
	e := model.Event{
		Side:     side,
		PlayerID: playerID,
		Minute:   minute,
		Half:     half,
		Detail:   detail,
	}
	if err := l.validate(op, e); err != nil {
		return model.Event{}, err
	}
	e.ID = l.newID()
	l.seq++
	e.Seq = l.seq
	l.events = append(l.events, e)
	return e, nil
}

// Load appends previously recorded events in bulk, keeping their ids. The
// whole batch is validated first; on error nothing is appended.
func (l *Ledger) Load(events []model.Event) error {
	const op = "ledger.load"
	seen := make(map[string]struct{}, len(l.events)+len(events))
	for _, e := range l.events {
		seen[e.ID] = struct{}{}
	}
	for _, e := range events {
		if strings.TrimSpace(e.ID) == "" {
			return model.Errorf(op, model.ErrValidation, "event without id")
		}
		if _, dup := seen[e.ID]; dup {
			return model.Errorf(op, model.ErrValidation, "duplicate event id %s", e.ID)
		}
		seen[e.ID] = struct{}{}
		if e.Detail == nil {
			return model.Errorf(op, model.ErrInvalidEvent, "event %s has no type", e.ID)
		}
		if err := l.validateLoaded(op, e); err != nil {
			return err
		}
	}
	for _, e := range events {
		l.seq++
		e.Seq = l.seq
		l.events = append(l.events, e)
	}
	return nil
}

// Get returns the event with id.
func (l *Ledger) Get(id string) (model.Event, error) {
	i := l.indexOf(id)
	if i < 0 {
		return model.Event{}, model.Errorf("ledger.get", model.ErrNotFound, "event %s", id)
	}
	return l.events[i], nil
}

// Update applies patch to the event with id and returns the previous and
// the updated event. Touched relationship fields are revalidated; on error
// the ledger is unchanged.
func (l *Ledger) Update(id string, patch model.EventPatch) (before, after model.Event, err error) {
	const op = "ledger.update"
	i := l.indexOf(id)
	if i < 0 {
		return model.Event{}, model.Event{}, model.Errorf(op, model.ErrNotFound, "event %s", id)
	}
	before = l.events[i]
	after = before

	if patch.Minute != nil {
		after.Minute = *patch.Minute
	}
	if patch.Half != nil {
		after.Half = *patch.Half
	}
	if patch.Reason != nil || patch.RelatedPlayerID != nil {
		related, reason := before.RelatedPlayerID(), before.Reason()
		if patch.RelatedPlayerID != nil {
			related = strings.TrimSpace(*patch.RelatedPlayerID)
		}
		if patch.Reason != nil {
			reason = *patch.Reason
		}
		detail, err := model.NewDetail(before.Type(), related, reason)
		if err != nil {
			return model.Event{}, model.Event{}, model.WrapKind(op, model.KindOf(err), err)
		}
		after.Detail = detail
	}
	if err := l.validatePatched(op, after, patch.RelatedPlayerID != nil); err != nil {
		return model.Event{}, model.Event{}, err
	}
	l.events[i] = after
	return before, after, nil
}

// Restore puts e back in place of the event with the same id, undoing an
// Update. It reports false when no such event exists.
func (l *Ledger) Restore(e model.Event) bool { //nolint:gocritic // hugeParam: events are values by contract
	i := l.indexOf(e.ID)
	if i < 0 {
		return false
	}
	l.events[i] = e
	return true
}

// Delete removes the event with id and returns it so callers can reverse
// its effects.
func (l *Ledger) Delete(id string) (model.Event, error) {
	i := l.indexOf(id)
	if i < 0 {
		return model.Event{}, model.Errorf("ledger.delete", model.ErrNotFound, "event %s", id)
	}
	e := l.events[i]
	l.events = slices.Delete(l.events, i, i+1)
	return e, nil
}

// List returns a copy of the events in the requested order.
func (l *Ledger) List(order Order) []model.Event {
	out := slices.Clone(l.events)
	slices.SortStableFunc(out, compareChronological)
	if order == Descending {
		slices.Reverse(out)
	}
	return out
}

// ByPlayer yields, in chronological order, the events naming playerID as
// primary or related participant. The sequence is evaluated lazily over a
// snapshot taken when iteration starts.
func (l *Ledger) ByPlayer(playerID string) iter.Seq[model.Event] {
	return func(yield func(model.Event) bool) {
		for _, e := range l.List(Ascending) {
			if !e.Involves(playerID) {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// Len returns the number of events.
func (l *Ledger) Len() int { return len(l.events) }

func (l *Ledger) indexOf(id string) int {
	return slices.IndexFunc(l.events, func(e model.Event) bool { return e.ID == id })
}

func compareChronological(a, b model.Event) int {
	if a.Half != b.Half {
		if a.Half == model.HalfFirst {
			return -1
		}
		return 1
	}
	if a.Minute != b.Minute {
		return a.Minute - b.Minute
	}
	switch {
	case a.Seq < b.Seq:
		return -1
	case a.Seq > b.Seq:
		return 1
	}
	return 0
}

// validate checks the event against the roster's current attendance.
func (l *Ledger) validate(op string, e model.Event) error {
	if err := checkShape(op, e); err != nil {
		return err
	}
	if err := l.checkParticipant(op, e.PlayerID, e.Side, true); err != nil {
		return err
	}
	return l.checkRelated(op, e, true)
}

// validatePatched checks an edited event. The primary participant was
// validated when recorded, so only roster membership is rechecked; a newly
// set related player must be attending.
func (l *Ledger) validatePatched(op string, e model.Event, relatedTouched bool) error {
	if err := checkShape(op, e); err != nil {
		return err
	}
	if err := l.checkParticipant(op, e.PlayerID, e.Side, false); err != nil {
		return err
	}
	return l.checkRelated(op, e, relatedTouched)
}

// validateLoaded checks a historical event: participants must be on the
// roster and side, but their attendance may have changed since.
func (l *Ledger) validateLoaded(op string, e model.Event) error {
	if err := checkShape(op, e); err != nil {
		return err
	}
	if err := l.checkParticipant(op, e.PlayerID, e.Side, false); err != nil {
		return err
	}
	return l.checkRelated(op, e, false)
}

func checkShape(op string, e model.Event) error {
	switch {
	case !e.Side.Valid():
		return model.Errorf(op, model.ErrValidation, "invalid team side %q", e.Side)
	case !e.Half.Valid():
		return model.Errorf(op, model.ErrValidation, "invalid half %q", e.Half)
	case e.Minute < 0:
		return model.Errorf(op, model.ErrValidation, "minute must not be negative, got %d", e.Minute)
	case strings.TrimSpace(e.PlayerID) == "":
		return model.Errorf(op, model.ErrValidation, "missing player")
	}
	return nil
}

func (l *Ledger) checkParticipant(op, playerID string, side model.Side, requireAttending bool) error {
	entry, ok := l.roster.Lookup(playerID)
	switch {
	case !ok:
		return model.Errorf(op, model.ErrValidation, "player %s is not on either roster", playerID)
	case entry.Side != side:
		return model.Errorf(op, model.ErrValidation, "player %s plays for %s, not %s", playerID, entry.Side, side)
	case requireAttending && !entry.Attending():
		return model.Errorf(op, model.ErrValidation, "player %s is %s, not attending", playerID, entry.Attendance)
	}
	return nil
}

func (l *Ledger) checkRelated(op string, e model.Event, requireAttending bool) error {
	related := e.RelatedPlayerID()
	switch e.Detail.(type) {
	case model.Substitution:
		if related == "" {
			return model.Errorf(op, model.ErrInvalidEvent, "substitution needs an incoming player")
		}
	case model.Goal:
		if related == "" {
			return nil
		}
	default:
		return nil
	}
	if related == e.PlayerID {
		return model.Errorf(op, model.ErrInvalidEvent, "%s: related player must differ from %s", e.Type(), e.PlayerID)
	}
	return l.checkParticipant(op, related, e.Side, requireAttending)
}
