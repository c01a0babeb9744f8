// Package clock models elapsed playing time through a two-half match.
//
// Clock is a value type. Every transition returns a new Clock and leaves the
// receiver untouched, so a rejected transition never changes state and the
// tick source can live anywhere (a ticker goroutine, a test loop).
package clock

import (
	"github.com/okian/leaguemaker/internal/domain/model"
)

// Default clock configuration constants.
const (
	DefaultHalfDuration = 45 * 60 // seconds
	secondsPerMinute    = 60
)

// Mode selects how the clock moves between halves.
type Mode string

const (
	// ModeExplicit stops the clock when a half's time is up and waits for
	// an explicit SwitchToSecondHalf / Finish.
	ModeExplicit Mode = "explicit"
	// ModeAuto rolls the first half straight into the second half and
	// finishes the match when the second half's time is up.
	ModeAuto Mode = "auto"
)

// ParseMode returns the mode named by s; empty input selects ModeExplicit.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "", ModeExplicit:
		return ModeExplicit, true
	case ModeAuto:
		return ModeAuto, true
	}
	return Mode(s), false
}

// Option applies a configuration option to a Clock.
type Option func(*Clock)

// WithHalfDuration sets the length of each half in seconds.
func WithHalfDuration(seconds int) Option {
	return func(c *Clock) {
		if seconds > 0 {
			c.halfDuration = seconds
		}
	}
}

// WithMode sets the half transition policy.
func WithMode(m Mode) Option {
	return func(c *Clock) {
		if m == ModeExplicit || m == ModeAuto {
			c.mode = m
		}
	}
}

// Clock is the match timer state.
type Clock struct {
	phase        model.Phase
	elapsed      int
	running      bool
	halfDuration int
	mode         Mode
}

// New returns a stopped clock at the start of the first half.
func New(opts ...Option) Clock {
	c := Clock{
		phase:        model.PhaseFirstHalf,
		halfDuration: DefaultHalfDuration,
		mode:         ModeExplicit,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c Clock) Phase() model.Phase { return c.phase }
func (c Clock) Elapsed() int       { return c.elapsed }
func (c Clock) Running() bool      { return c.running }
func (c Clock) HalfDuration() int  { return c.halfDuration }
func (c Clock) Mode() Mode         { return c.mode }

// Remaining returns the seconds left in the current half.
func (c Clock) Remaining() int {
	if !c.phase.Playing() || c.elapsed >= c.halfDuration {
		return 0
	}
	return c.halfDuration - c.elapsed
}

// Minute returns the match minute in football notation: the first minute of
// the first half is 1, the first minute of the second half follows the half
// length (46 for 45 minute halves).
func (c Clock) Minute() int {
	halfMinutes := c.halfDuration / secondsPerMinute
	switch c.phase {
	case model.PhaseFirstHalf:
		return c.elapsed/secondsPerMinute + 1
	case model.PhaseHalfTime:
		return halfMinutes
	case model.PhaseSecondHalf:
		return halfMinutes + c.elapsed/secondsPerMinute + 1
	default:
		return 2 * halfMinutes
	}
}

// Start begins the first half.
func (c Clock) Start() (Clock, error) {
	if c.phase != model.PhaseFirstHalf || c.elapsed != 0 || c.running {
		return c, illegal("clock.start", "start needs a fresh first half, clock is %s", c.describe())
	}
	c.running = true
	return c, nil
}

// Pause stops a running clock and keeps the elapsed time.
func (c Clock) Pause() (Clock, error) {
	if !c.running {
		return c, illegal("clock.pause", "clock is not running (%s)", c.describe())
	}
	c.running = false
	return c, nil
}

// Resume restarts a stopped clock in a playing phase that has time left.
// Unlike Start it does not require zero elapsed time, so it also kicks off
// the second half.
func (c Clock) Resume() (Clock, error) {
	switch {
	case c.running:
		return c, illegal("clock.resume", "clock is already running")
	case !c.phase.Playing():
		return c, illegal("clock.resume", "cannot resume during %s", c.phase)
	case c.elapsed >= c.halfDuration:
		return c, illegal("clock.resume", "%s time is up", c.phase)
	}
	c.running = true
	return c, nil
}

// Advance moves the clock forward by one second. It is a no-op unless the
// clock is running in a playing phase, so stray ticks after Pause or Finish
// are harmless.
func (c Clock) Advance() Clock {
	if !c.running || !c.phase.Playing() {
		return c
	}
	c.elapsed++
	if c.elapsed < c.halfDuration {
		return c
	}
	if c.mode == ModeAuto {
		if c.phase == model.PhaseFirstHalf {
			c.phase = model.PhaseSecondHalf
			c.elapsed = 0
			return c
		}
		return c.Finish()
	}
	c.running = false
	return c
}

// AdvanceBy applies n one-second ticks.
func (c Clock) AdvanceBy(n int) Clock {
	for i := 0; i < n; i++ {
		next := c.Advance()
		if next == c {
			break
		}
		c = next
	}
	return c
}

// EndFirstHalf moves from the first half to half-time.
func (c Clock) EndFirstHalf() (Clock, error) {
	if c.phase != model.PhaseFirstHalf {
		return c, illegal("clock.end_first_half", "not in the first half (%s)", c.phase)
	}
	c.phase = model.PhaseHalfTime
	c.running = false
	return c, nil
}

// SwitchToSecondHalf starts the second half with a stopped, zeroed clock.
func (c Clock) SwitchToSecondHalf() (Clock, error) {
	if c.phase != model.PhaseFirstHalf && c.phase != model.PhaseHalfTime {
		return c, illegal("clock.switch_to_second_half", "cannot switch halves during %s", c.phase)
	}
	c.phase = model.PhaseSecondHalf
	c.elapsed = 0
	c.running = false
	return c, nil
}

// Finish ends the match. It is valid from any phase.
func (c Clock) Finish() Clock {
	c.phase = model.PhaseFinished
	c.running = false
	return c
}

// Reset returns the clock to its initial state, keeping its configuration.
func (c Clock) Reset() Clock {
	return Clock{
		phase:        model.PhaseFirstHalf,
		halfDuration: c.halfDuration,
		mode:         c.mode,
	}
}

func (c Clock) describe() string {
	state := "stopped"
	if c.running {
		state = "running"
	}
	return string(c.phase) + " " + state
}

func illegal(op, format string, args ...any) error {
	return model.Errorf(op, model.ErrIllegalState, format, args...)
}
