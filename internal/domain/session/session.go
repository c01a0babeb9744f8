// Package session composes the clock, the event ledger and the score
// projector into the match live-recording controller.
package session

import (
	"iter"
	"strings"
	"time"

	"github.com/okian/leaguemaker/internal/domain/clock"
	"github.com/okian/leaguemaker/internal/domain/ledger"
	"github.com/okian/leaguemaker/internal/domain/model"
	"github.com/okian/leaguemaker/internal/domain/scoring"
)

// Participant is the player staged as the subject of the next event.
type Participant struct {
	PlayerID string     `json:"player_id"`
	Side     model.Side `json:"side"`
}

// State is a read-only view of the controller.
type State struct {
	MatchID   string
	Phase     model.Phase
	Elapsed   int
	Running   bool
	Minute    int
	Remaining int
	Mode      clock.Mode
	Score     model.Score
	Events    int
	Staged    *Participant
	Persisted bool
}

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithClockOptions configures the session clock.
func WithClockOptions(opts ...clock.Option) Option {
	return func(c *Controller) {
		c.clockOpts = append(c.clockOpts, opts...)
	}
}

// WithIDGenerator sets the event id generator used by the ledger.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) {
		c.ledgerOpts = append(c.ledgerOpts, ledger.WithIDGenerator(fn))
	}
}

// WithNow sets the time source used to stamp snapshots.
func WithNow(fn func() time.Time) Option {
	return func(c *Controller) {
		if fn != nil {
			c.now = fn
		}
	}
}

// WithEvents preloads previously recorded events, e.g. when a session is
// reopened for correction. The score is recomputed from them.
func WithEvents(events []model.Event) Option {
	return func(c *Controller) {
		c.preload = events
	}
}

// Controller owns one match's clock, ledger and score. It is not safe for
// concurrent use; callers serialize access per match.
type Controller struct {
	matchID   string
	roster    *model.Roster
	clock     clock.Clock
	ledger    *ledger.Ledger
	score     *scoring.Projector
	staged    *Participant
	persisted bool
	frozen    bool // a snapshot is on its way to the store
	now       func() time.Time

	clockOpts  []clock.Option
	ledgerOpts []ledger.Option
	preload    []model.Event
}

// New creates a controller for matchID over roster.
func New(matchID string, roster *model.Roster, opts ...Option) (*Controller, error) {
	const op = "session.new"
	if strings.TrimSpace(matchID) == "" {
		return nil, model.Errorf(op, model.ErrValidation, "missing match id")
	}
	if roster == nil {
		return nil, model.Errorf(op, model.ErrValidation, "missing roster")
	}
	c := &Controller{
		matchID: matchID,
		roster:  roster,
		score:   scoring.NewProjector(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.clock = clock.New(c.clockOpts...)
	c.ledger = ledger.New(roster, c.ledgerOpts...)
	if len(c.preload) > 0 {
		if err := c.ledger.Load(c.preload); err != nil {
			return nil, err
		}
		c.score.Recompute(c.ledger.List(ledger.Ascending))
	}
	c.preload = nil
	return c, nil
}

// MatchID returns the match the session records.
func (c *Controller) MatchID() string { return c.matchID }

// Roster returns the roster the session validates against.
func (c *Controller) Roster() *model.Roster { return c.roster }

// Clock returns the current clock value.
func (c *Controller) Clock() clock.Clock { return c.clock }

// Score returns the current score.
func (c *Controller) Score() model.Score { return c.score.Score() }

// Persisted reports whether MarkPersisted was called.
func (c *Controller) Persisted() bool { return c.persisted }

// State returns a read-only view of the session.
func (c *Controller) State() State {
	s := State{
		MatchID:   c.matchID,
		Phase:     c.clock.Phase(),
		Elapsed:   c.clock.Elapsed(),
		Running:   c.clock.Running(),
		Minute:    c.clock.Minute(),
		Remaining: c.clock.Remaining(),
		Mode:      c.clock.Mode(),
		Score:     c.score.Score(),
		Events:    c.ledger.Len(),
		Persisted: c.persisted,
	}
	if c.staged != nil {
		p := *c.staged
		s.Staged = &p
	}
	return s
}

// SelectParticipant stages playerID on side as the subject of the next
// recorded event. It reports false and changes nothing when the player is not
// an attending member of side.
func (c *Controller) SelectParticipant(playerID string, side model.Side) bool {
	if !c.roster.AttendingOn(playerID, side) {
		return false
	}
	c.staged = &Participant{PlayerID: playerID, Side: side}
	return true
}

// ClearParticipant drops the staged participant.
func (c *Controller) ClearParticipant() { c.staged = nil }

// Staged returns the staged participant, if any.
func (c *Controller) Staged() (Participant, bool) {
	if c.staged == nil {
		return Participant{}, false
	}
	return *c.staged, true
}

// SetAttendance changes a roster entry's attendance during the match. A
// staged participant who stops attending stays staged; the next record call
// rejects them.
func (c *Controller) SetAttendance(playerID string, a model.Attendance) error {
	if err := c.checkMutable("session.set_attendance"); err != nil {
		return err
	}
	return c.roster.SetAttendance(playerID, a)
}

// RecordGoal records a goal by the staged participant.
func (c *Controller) RecordGoal(minute int, half model.Half, assistPlayerID string) (model.Event, error) {
	return c.record("session.record_goal", model.EventGoal, minute, half, ledger.RecordOptions{RelatedPlayerID: assistPlayerID})
}

// RecordCaution records a caution against the staged participant.
func (c *Controller) RecordCaution(minute int, half model.Half, reason string) (model.Event, error) {
	return c.record("session.record_caution", model.EventCaution, minute, half, ledger.RecordOptions{Reason: reason})
}

// RecordDismissal records a dismissal of the staged participant.
func (c *Controller) RecordDismissal(minute int, half model.Half, reason string) (model.Event, error) {
	return c.record("session.record_dismissal", model.EventDismissal, minute, half, ledger.RecordOptions{Reason: reason})
}

// RecordSubstitution replaces the staged participant with incomingPlayerID.
func (c *Controller) RecordSubstitution(minute int, half model.Half, incomingPlayerID string) (model.Event, error) {
	return c.record("session.record_substitution", model.EventSubstitution, minute, half, ledger.RecordOptions{RelatedPlayerID: incomingPlayerID})
}

// Record dispatches on t to the typed record operations.
func (c *Controller) Record(t model.EventType, minute int, half model.Half, opts ledger.RecordOptions) (model.Event, error) {
	switch t {
	case model.EventGoal:
		return c.RecordGoal(minute, half, opts.RelatedPlayerID)
	case model.EventCaution:
		return c.RecordCaution(minute, half, opts.Reason)
	case model.EventDismissal:
		return c.RecordDismissal(minute, half, opts.Reason)
	case model.EventSubstitution:
		return c.RecordSubstitution(minute, half, opts.RelatedPlayerID)
	}
	return model.Event{}, model.Errorf("session.record", model.ErrInvalidEvent, "unknown event type %q", t)
}

func (c *Controller) record(op string, t model.EventType, minute int, half model.Half, opts ledger.RecordOptions) (model.Event, error) {
	if err := c.checkMutable(op); err != nil {
		return model.Event{}, err
	}
	if c.staged == nil {
		return model.Event{}, model.Errorf(op, model.ErrValidation, "no participant selected")
	}
	if !c.roster.AttendingOn(c.staged.PlayerID, c.staged.Side) {
		return model.Event{}, model.Errorf(op, model.ErrValidation, "player %s is no longer attending", c.staged.PlayerID)
	}
	e, err := c.ledger.Record(t, c.staged.Side, c.staged.PlayerID, minute, half, opts)
	if err != nil {
		return model.Event{}, err
	}
	if err := c.score.ApplyDelta(e, scoring.Add); err != nil {
		// Cannot fail for a freshly validated event; keep the ledger and
		// score aligned regardless.
		_, _ = c.ledger.Delete(e.ID)
		c.score.Recompute(c.ledger.List(ledger.Ascending))
		return model.Event{}, err
	}
	c.staged = nil
	return e, nil
}

// EditEvent applies patch to an event and moves its score contribution when
// the edit changes it.
func (c *Controller) EditEvent(eventID string, patch model.EventPatch) (model.Event, error) {
	const op = "session.edit_event"
	if err := c.checkMutable(op); err != nil {
		return model.Event{}, err
	}
	if patch.Empty() {
		return c.ledger.Get(eventID)
	}
	before, after, err := c.ledger.Update(eventID, patch)
	if err != nil {
		return model.Event{}, err
	}
	if err := c.score.Replace(before, after); err != nil {
		c.ledger.Restore(before)
		c.score.Recompute(c.ledger.List(ledger.Ascending))
		return model.Event{}, err
	}
	return after, nil
}

// RemoveEvent deletes an event and reverses its score contribution. An
// ErrScoreUnderflow means the running score had drifted from the ledger; the
// event is still removed and the score is rebuilt from the ledger.
func (c *Controller) RemoveEvent(eventID string) (model.Event, error) {
	const op = "session.remove_event"
	if err := c.checkMutable(op); err != nil {
		return model.Event{}, err
	}
	e, err := c.ledger.Delete(eventID)
	if err != nil {
		return model.Event{}, err
	}
	if err := c.score.ApplyDelta(e, scoring.Remove); err != nil {
		c.score.Recompute(c.ledger.List(ledger.Ascending))
		return e, err
	}
	return e, nil
}

// Event returns a single event.
func (c *Controller) Event(eventID string) (model.Event, error) {
	return c.ledger.Get(eventID)
}

// Events lists the events in the requested order.
func (c *Controller) Events(order ledger.Order) []model.Event {
	return c.ledger.List(order)
}

// EventsByPlayer yields the events naming playerID.
func (c *Controller) EventsByPlayer(playerID string) iter.Seq[model.Event] {
	return c.ledger.ByPlayer(playerID)
}

// Consistent reports whether the running score equals a recount of the ledger.
func (c *Controller) Consistent() bool {
	return c.score.Consistent(c.ledger.List(ledger.Ascending))
}

// Start kicks off the first half.
func (c *Controller) Start() error { return c.transition("session.start", clock.Clock.Start) }

// Pause stops the clock.
func (c *Controller) Pause() error { return c.transition("session.pause", clock.Clock.Pause) }

// Resume restarts a paused clock or kicks off the second half.
func (c *Controller) Resume() error { return c.transition("session.resume", clock.Clock.Resume) }

// EndFirstHalf moves the match into half-time.
func (c *Controller) EndFirstHalf() error {
	return c.transition("session.end_first_half", clock.Clock.EndFirstHalf)
}

// SwitchToSecondHalf moves the match into a stopped second half.
func (c *Controller) SwitchToSecondHalf() error {
	return c.transition("session.switch_to_second_half", clock.Clock.SwitchToSecondHalf)
}

func (c *Controller) transition(op string, fn func(clock.Clock) (clock.Clock, error)) error {
	if err := c.checkMutable(op); err != nil {
		return err
	}
	next, err := fn(c.clock)
	if err != nil {
		return err
	}
	c.clock = next
	return nil
}

// Tick advances the clock by one second. It reports whether the clock
// changed; stray ticks on a stopped clock are ignored.
func (c *Controller) Tick() bool {
	next := c.clock.Advance()
	if next == c.clock {
		return false
	}
	c.clock = next
	return true
}

// FinishMatch ends the match. Play must have reached the second half;
// finishing a finished match is a no-op.
func (c *Controller) FinishMatch() error {
	const op = "session.finish_match"
	switch c.clock.Phase() {
	case model.PhaseFinished:
		return nil
	case model.PhaseSecondHalf:
		c.clock = c.clock.Finish()
		return nil
	}
	return model.Errorf(op, model.ErrIllegalState, "cannot finish during %s", c.clock.Phase())
}

// Reset returns the clock to its initial state. Events are kept. Once a
// snapshot is queued or persisted the clock is locked.
func (c *Controller) Reset() error {
	if err := c.checkMutable("session.reset"); err != nil {
		return err
	}
	c.clock = c.clock.Reset()
	return nil
}

// Snapshot exports the session for persistence. The returned value shares no
// memory with the controller.
func (c *Controller) Snapshot() model.Snapshot {
	return model.Snapshot{
		MatchID:    c.matchID,
		Score:      c.score.Score(),
		Events:     c.ledger.List(ledger.Ascending),
		FinalPhase: c.clock.Phase(),
		TakenAt:    c.now().UTC(),
	}
}

// MarkPersisted records that a snapshot reached the store. The session is
// read-only afterwards.
func (c *Controller) MarkPersisted() {
	c.persisted = true
	c.frozen = false
}

// Freeze rejects every mutation until Thaw or MarkPersisted. It is set while
// the snapshot taken for the store is in flight.
func (c *Controller) Freeze() { c.frozen = true }

// Thaw lifts Freeze after a failed store attempt.
func (c *Controller) Thaw() { c.frozen = false }

// Frozen reports whether a snapshot is in flight.
func (c *Controller) Frozen() bool { return c.frozen }

func (c *Controller) checkMutable(op string) error {
	switch {
	case c.persisted:
		return model.Errorf(op, model.ErrIllegalState, "match %s already persisted", c.matchID)
	case c.frozen:
		return model.Errorf(op, model.ErrIllegalState, "match %s is being persisted", c.matchID)
	}
	return nil
}
