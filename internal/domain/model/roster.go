package model

import (
	"strings"
	"sync"
)

// Attendance is a player's availability for a given match.
type Attendance string

// Attendance statuses.
const (
	AttendanceAttending Attendance = "attending"
	AttendanceAbsent    Attendance = "absent"
	AttendancePending   Attendance = "pending"
	AttendanceUnknown   Attendance = "unknown"
)

// ParseAttendance normalizes user input. Empty input maps to unknown.
func ParseAttendance(s string) (Attendance, bool) {
	a := Attendance(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case "":
		return AttendanceUnknown, true
	case AttendanceAttending, AttendanceAbsent, AttendancePending, AttendanceUnknown:
		return a, true
	}
	return a, false
}

// RosterEntry is a player's team membership and attendance for one match.
// It is supplied by the hosting application.
type RosterEntry struct {
	PlayerID     string
	DisplayName  string
	Position     string
	JerseyNumber int
	Side         Side
	Attendance   Attendance
}

// Attending reports whether the entry may take part in events.
func (r RosterEntry) Attending() bool { return r.Attendance == AttendanceAttending }

// Roster holds both teams' entries for a match, keyed by player id.
type Roster struct {
	mu      sync.RWMutex
	entries map[string]RosterEntry
	order   []string
}

// NewRoster validates and indexes entries. Player ids must be unique
// across both sides.
func NewRoster(entries ...RosterEntry) (*Roster, error) {
	const op = "model.new_roster"
	r := &Roster{entries: make(map[string]RosterEntry, len(entries))}
	for _, e := range entries {
		if strings.TrimSpace(e.PlayerID) == "" {
			return nil, Errorf(op, ErrValidation, "roster entry without player id")
		}
		if !e.Side.Valid() {
			return nil, Errorf(op, ErrValidation, "player %s has invalid side %q", e.PlayerID, e.Side)
		}
		a, ok := ParseAttendance(string(e.Attendance))
		if !ok {
			return nil, Errorf(op, ErrValidation, "player %s has invalid attendance %q", e.PlayerID, e.Attendance)
		}
		e.Attendance = a
		if _, dup := r.entries[e.PlayerID]; dup {
			return nil, Errorf(op, ErrValidation, "player %s listed twice", e.PlayerID)
		}
		r.entries[e.PlayerID] = e
		r.order = append(r.order, e.PlayerID)
	}
	return r, nil
}

// Lookup returns the entry for playerID.
func (r *Roster) Lookup(playerID string) (RosterEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[playerID]
	return e, ok
}

// AttendingOn reports whether playerID is attending and plays for side.
func (r *Roster) AttendingOn(playerID string, side Side) bool {
	e, ok := r.Lookup(playerID)
	return ok && e.Side == side && e.Attending()
}

// SetAttendance changes a player's attendance status.
func (r *Roster) SetAttendance(playerID string, a Attendance) error {
	const op = "model.set_attendance"
	parsed, ok := ParseAttendance(string(a))
	if !ok || strings.TrimSpace(string(a)) == "" {
		return Errorf(op, ErrValidation, "invalid attendance %q", a)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[playerID]
	if !ok {
		return Errorf(op, ErrNotFound, "player %s is not on the roster", playerID)
	}
	e.Attendance = parsed
	r.entries[playerID] = e
	return nil
}

// Entries returns a copy of all entries in insertion order.
func (r *Roster) Entries() []RosterEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RosterEntry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

// Len returns the number of entries.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
