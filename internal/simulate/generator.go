package simulate

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// Event shares of a generated match, out of 100.
const (
	goalShare      = 35
	cautionShare   = 30
	dismissalShare = 5
	assistShare    = 60
	halfMinutes    = 45
)

// RosterEntry is a player as sent when a session opens.
type RosterEntry struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Side        string `json:"side"`
	Attendance  string `json:"attendance"`
}

// Step is one event request of a script.
type Step struct {
	RequestID       string `json:"request_id"`
	Type            string `json:"type"`
	PlayerID        string `json:"player_id"`
	Side            string `json:"side"`
	Minute          int    `json:"minute"`
	Half            string `json:"half"`
	RelatedPlayerID string `json:"related_player_id,omitempty"`
	Reason          string `json:"reason,omitempty"`
	Resend          bool   `json:"-"`
}

// Score is the expected final score.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Tally is the expected career contribution of one player.
type Tally struct {
	Matches    int `json:"matches"`
	Goals      int `json:"goals"`
	Assists    int `json:"assists"`
	Cautions   int `json:"cautions"`
	Dismissals int `json:"dismissals"`
	SubbedOff  int `json:"subbed_off"`
	SubbedOn   int `json:"subbed_on"`
}

// Script is a generated match: who plays and what happens, in order.
type Script struct {
	MatchID string        `json:"match_id"`
	Roster  []RosterEntry `json:"roster"`
	First   []Step        `json:"first_half"`
	Second  []Step        `json:"second_half"`
}

// Steps returns both halves in playing order.
func (s *Script) Steps() []Step {
	out := make([]Step, 0, len(s.First)+len(s.Second))
	out = append(out, s.First...)
	return append(out, s.Second...)
}

// Score returns the score the script should end with.
func (s *Script) Score() Score {
	var sc Score
	for _, st := range s.Steps() {
		if st.Type != "goal" {
			continue
		}
		if st.Side == "home" {
			sc.Home++
		} else {
			sc.Away++
		}
	}
	return sc
}

// Tallies adds the script's per-player contributions to into.
func (s *Script) Tallies(into map[string]*Tally) {
	involved := map[string]bool{}
	get := func(id string) *Tally {
		t, ok := into[id]
		if !ok {
			t = &Tally{}
			into[id] = t
		}
		if !involved[id] {
			involved[id] = true
			t.Matches++
		}
		return t
	}
	for _, st := range s.Steps() {
		primary := get(st.PlayerID)
		switch st.Type {
		case "goal":
			primary.Goals++
			if st.RelatedPlayerID != "" {
				get(st.RelatedPlayerID).Assists++
			}
		case "caution":
			primary.Cautions++
		case "dismissal":
			primary.Dismissals++
		case "substitution":
			primary.SubbedOff++
			get(st.RelatedPlayerID).SubbedOn++
		}
	}
}

// Generator builds deterministic scripts from a seed.
type Generator struct {
	runID     string
	seed      uint64
	squadSize int
	events    int
	resend    float64
}

// NewGenerator creates a generator for cfg. An empty RunID or zero Seed is
// filled in.
func NewGenerator(cfg *Config) *Generator {
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()[:8]
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{
		runID:     runID,
		seed:      seed,
		squadSize: cfg.SquadSize,
		events:    cfg.EventsPerMatch,
		resend:    cfg.ResendRate,
	}
}

// RunID returns the prefix used for match and player ids.
func (g *Generator) RunID() string { return g.runID }

// PlayerID names squad member n of side. Players keep their id across
// matches so careers accumulate.
func (g *Generator) PlayerID(side string, n int) string {
	return fmt.Sprintf("%s-%s-%02d", g.runID, side, n)
}

// Script generates match number n.
func (g *Generator) Script(n int) Script {
	r := rand.New(rand.NewPCG(g.seed, uint64(n)))
	s := Script{MatchID: fmt.Sprintf("%s-m%03d", g.runID, n)}

	attending := map[string][]string{}
	for _, side := range []string{"home", "away"} {
		absent := r.IntN(g.squadSize)
		for i := range g.squadSize {
			id := g.PlayerID(side, i+1)
			a := "attending"
			if i == absent {
				a = "absent"
			} else {
				attending[side] = append(attending[side], id)
			}
			s.Roster = append(s.Roster, RosterEntry{
				PlayerID:    id,
				DisplayName: fmt.Sprintf("%s %d", side, i+1),
				Side:        side,
				Attendance:  a,
			})
		}
	}

	firstHalf := g.events / 2
	for i := range g.events {
		half, steps := "first", &s.First
		if i >= firstHalf {
			half, steps = "second", &s.Second
		}
		side := "home"
		if r.IntN(2) == 1 {
			side = "away"
		}
		players := attending[side]
		pick := r.Perm(len(players))
		st := Step{
			RequestID: fmt.Sprintf("%s-r%03d", s.MatchID, i),
			Side:      side,
			PlayerID:  players[pick[0]],
			Minute:    r.IntN(halfMinutes) + 1,
			Half:      half,
			Resend:    r.Float64() < g.resend,
		}
		if half == "second" {
			st.Minute += halfMinutes
		}
		switch roll := r.IntN(100); {
		case roll < goalShare:
			st.Type = "goal"
			if r.IntN(100) < assistShare {
				st.RelatedPlayerID = players[pick[1]]
			}
		case roll < goalShare+cautionShare:
			st.Type = "caution"
			st.Reason = "foul"
		case roll < goalShare+cautionShare+dismissalShare:
			st.Type = "dismissal"
			st.Reason = "serious foul play"
		default:
			st.Type = "substitution"
			st.RelatedPlayerID = players[pick[1]]
		}
		*steps = append(*steps, st)
	}
	return s
}
