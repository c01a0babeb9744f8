package service

import (
	"context"
	"slices"
	"strings"

	"github.com/okian/leaguemaker/internal/domain/clock"
	"github.com/okian/leaguemaker/internal/domain/dedupe"
	"github.com/okian/leaguemaker/internal/domain/ledger"
	"github.com/okian/leaguemaker/internal/domain/model"
	"github.com/okian/leaguemaker/internal/domain/session"
	"github.com/okian/leaguemaker/pkg/logger"
	"github.com/okian/leaguemaker/pkg/metrics"
)

// Clock actions accepted by ClockAction.
const (
	ActionStart        = "start"
	ActionPause        = "pause"
	ActionResume       = "resume"
	ActionEndFirstHalf = "end-first-half"
	ActionSecondHalf   = "second-half"
	ActionFinish       = "finish"
	ActionReset        = "reset"
)

// RecordRequest describes an event to record. PlayerID and Side, when set,
// stage the participant first. Minute and Half default to the clock.
type RecordRequest struct {
	RequestID       string
	Type            model.EventType
	PlayerID        string
	Side            model.Side
	Minute          *int
	Half            *model.Half
	RelatedPlayerID string
	Reason          string
}

// RecordResult is the outcome of RecordEvent. Duplicate is set, and Event
// left empty, when the request id was already recorded for the match.
type RecordResult struct {
	Event     model.Event
	Duplicate bool
	Score     model.Score
}

// withSession runs fn with the session for matchID while holding sessMu.
func (s *Service) withSession(op, matchID string, fn func(h *hosted) error) error {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	h, ok := s.sessions[matchID]
	if !ok {
		return s.observe(model.WrapKind(op, model.ErrNotFound, ErrSessionNotFound))
	}
	return s.observe(fn(h))
}

// OpenSession creates the live session for matchID from its rosters.
func (s *Service) OpenSession(ctx context.Context, matchID string, entries []model.RosterEntry) (session.State, error) {
	const op = "service.open_session"
	matchID = strings.TrimSpace(matchID)
	roster, err := model.NewRoster(entries...)
	if err != nil {
		return session.State{}, s.observe(err)
	}
	ctrl, err := session.New(matchID, roster,
		session.WithClockOptions(clock.WithHalfDuration(s.halfDuration), clock.WithMode(s.clockMode)),
	)
	if err != nil {
		return session.State{}, s.observe(err)
	}

	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	if _, exists := s.sessions[matchID]; exists {
		return session.State{}, s.observe(model.WrapKind(op, model.ErrIllegalState, ErrSessionExists))
	}
	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		return session.State{}, s.observe(model.WrapKind(op, model.ErrIllegalState, ErrTooManySessions))
	}
	s.sessions[matchID] = &hosted{ctrl: ctrl, openedAt: s.now()}
	metrics.UpdateSessionsOpen(len(s.sessions))
	s.logger.Info(ctx, "session opened",
		logger.String("match_id", matchID),
		logger.Int("roster", roster.Len()),
	)
	return ctrl.State(), nil
}

// CloseSession discards the session for matchID. Unpersisted events are lost.
func (s *Service) CloseSession(ctx context.Context, matchID string) error {
	const op = "service.close_session"
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	h, ok := s.sessions[matchID]
	if !ok {
		return s.observe(model.WrapKind(op, model.ErrNotFound, ErrSessionNotFound))
	}
	delete(s.sessions, matchID)
	metrics.UpdateSessionsOpen(len(s.sessions))
	s.logger.Info(ctx, "session closed",
		logger.String("match_id", matchID),
		logger.Bool("persisted", h.ctrl.Persisted()),
		logger.Int("events", h.ctrl.State().Events),
	)
	return nil
}

// State returns the read-only view of the session.
func (s *Service) State(ctx context.Context, matchID string) (session.State, error) {
	var st session.State
	err := s.withSession("service.state", matchID, func(h *hosted) error {
		st = h.ctrl.State()
		return nil
	})
	return st, err
}

// Roster returns the session's roster entries.
func (s *Service) Roster(ctx context.Context, matchID string) ([]model.RosterEntry, error) {
	var entries []model.RosterEntry
	err := s.withSession("service.roster", matchID, func(h *hosted) error {
		entries = h.ctrl.Roster().Entries()
		return nil
	})
	return entries, err
}

// ClockAction applies a named clock transition.
func (s *Service) ClockAction(ctx context.Context, matchID, action string) (session.State, error) {
	const op = "service.clock_action"
	var st session.State
	err := s.withSession(op, matchID, func(h *hosted) error {
		var err error
		switch action {
		case ActionStart:
			err = h.ctrl.Start()
		case ActionPause:
			err = h.ctrl.Pause()
		case ActionResume:
			err = h.ctrl.Resume()
		case ActionEndFirstHalf:
			err = h.ctrl.EndFirstHalf()
		case ActionSecondHalf:
			err = h.ctrl.SwitchToSecondHalf()
		case ActionFinish:
			err = h.ctrl.FinishMatch()
		case ActionReset:
			err = h.ctrl.Reset()
		default:
			return model.Errorf(op, model.ErrValidation, "%w: %q", ErrUnknownAction, action)
		}
		if err != nil {
			return err
		}
		metrics.RecordClockTransition(action)
		st = h.ctrl.State()
		s.logger.Debug(ctx, "clock transition",
			logger.String("match_id", matchID),
			logger.String("action", action),
			logger.String("phase", string(st.Phase)),
			logger.Int("elapsed", st.Elapsed),
		)
		return nil
	})
	return st, err
}

// SelectParticipant stages the subject of the next event. It reports false
// when the player is not attending for side; the previous selection stays.
func (s *Service) SelectParticipant(ctx context.Context, matchID, playerID string, side model.Side) (bool, error) {
	var selected bool
	err := s.withSession("service.select_participant", matchID, func(h *hosted) error {
		selected = h.ctrl.SelectParticipant(playerID, side)
		return nil
	})
	return selected, err
}

// SetAttendance changes a player's attendance during the match.
func (s *Service) SetAttendance(ctx context.Context, matchID, playerID string, a model.Attendance) error {
	return s.withSession("service.set_attendance", matchID, func(h *hosted) error {
		if err := h.ctrl.SetAttendance(playerID, a); err != nil {
			return err
		}
		s.logger.Debug(ctx, "attendance changed",
			logger.String("match_id", matchID),
			logger.String("player_id", playerID),
			logger.String("attendance", string(a)),
		)
		return nil
	})
}

// RecordEvent records an event for the staged (or given) participant. A
// repeated RequestID for the same match is reported as a duplicate and
// records nothing.
func (s *Service) RecordEvent(ctx context.Context, matchID string, req RecordRequest) (RecordResult, error) { //nolint:gocritic // hugeParam: request is a value by contract
	const op = "service.record_event"
	var res RecordResult
	err := s.withSession(op, matchID, func(h *hosted) error {
		key := ""
		if req.RequestID != "" {
			key = dedupe.Key(matchID, req.RequestID)
			if s.deduper.SeenAndRecord(ctx, key) {
				metrics.RecordEventDuplicate()
				s.logger.Debug(ctx, "duplicate event request, skipping",
					logger.String("match_id", matchID),
					logger.String("request_id", req.RequestID),
				)
				res = RecordResult{Duplicate: true, Score: h.ctrl.Score()}
				return nil
			}
		}

		e, err := s.record(op, h.ctrl, req)
		if err != nil {
			if key != "" {
				s.deduper.Unrecord(ctx, key)
			}
			return err
		}
		metrics.RecordEventRecorded(string(e.Type()))
		res = RecordResult{Event: e, Score: h.ctrl.Score()}
		s.logger.Info(ctx, "event recorded",
			logger.String("match_id", matchID),
			logger.String("event_id", e.ID),
			logger.String("type", string(e.Type())),
			logger.String("player_id", e.PlayerID),
			logger.Int("minute", e.Minute),
		)
		return nil
	})
	return res, err
}

func (s *Service) record(op string, ctrl *session.Controller, req RecordRequest) (e model.Event, err error) { //nolint:gocritic // hugeParam: request is a value by contract
	if req.PlayerID != "" {
		prev, hadPrev := ctrl.Staged()
		if !ctrl.SelectParticipant(req.PlayerID, req.Side) {
			return model.Event{}, model.Errorf(op, model.ErrValidation, "%w: %s on %s", ErrNotAttending, req.PlayerID, req.Side)
		}
		// a failed request leaves the earlier selection in place
		defer func() {
			if err == nil {
				return
			}
			if !hadPrev || !ctrl.SelectParticipant(prev.PlayerID, prev.Side) {
				ctrl.ClearParticipant()
			}
		}()
	}

	c := ctrl.Clock()
	minute := c.Minute()
	if req.Minute != nil {
		minute = *req.Minute
	}
	half := c.Phase().Half()
	if req.Half != nil {
		half = *req.Half
	}
	return ctrl.Record(req.Type, minute, half, ledger.RecordOptions{
		RelatedPlayerID: req.RelatedPlayerID,
		Reason:          req.Reason,
	})
}

// EditEvent applies patch to an event.
func (s *Service) EditEvent(ctx context.Context, matchID, eventID string, patch model.EventPatch) (model.Event, model.Score, error) {
	var (
		e     model.Event
		score model.Score
	)
	err := s.withSession("service.edit_event", matchID, func(h *hosted) error {
		var err error
		e, err = h.ctrl.EditEvent(eventID, patch)
		score = h.ctrl.Score()
		if err != nil {
			if model.KindOf(err) == model.ErrScoreUnderflow {
				metrics.RecordScoreUnderflow()
			}
			return err
		}
		metrics.RecordEventEdited()
		s.logger.Debug(ctx, "event edited", logger.String("match_id", matchID), logger.String("event_id", eventID))
		return nil
	})
	return e, score, err
}

// RemoveEvent deletes an event and reverses its score contribution.
func (s *Service) RemoveEvent(ctx context.Context, matchID, eventID string) (model.Event, model.Score, error) {
	var (
		e     model.Event
		score model.Score
	)
	err := s.withSession("service.remove_event", matchID, func(h *hosted) error {
		var err error
		e, err = h.ctrl.RemoveEvent(eventID)
		score = h.ctrl.Score()
		if err != nil {
			if model.KindOf(err) == model.ErrScoreUnderflow {
				metrics.RecordScoreUnderflow()
				s.logger.Error(ctx, "score underflow on remove",
					logger.String("match_id", matchID),
					logger.String("event_id", eventID),
					logger.Error(err),
				)
			}
			return err
		}
		metrics.RecordEventRemoved()
		s.logger.Info(ctx, "event removed",
			logger.String("match_id", matchID),
			logger.String("event_id", eventID),
			logger.String("type", string(e.Type())),
		)
		return nil
	})
	return e, score, err
}

// Event returns a single event.
func (s *Service) Event(ctx context.Context, matchID, eventID string) (model.Event, error) {
	var e model.Event
	err := s.withSession("service.event", matchID, func(h *hosted) error {
		var err error
		e, err = h.ctrl.Event(eventID)
		return err
	})
	return e, err
}

// Events lists the session's events in order. A non-empty playerID keeps
// only the events naming that player.
func (s *Service) Events(ctx context.Context, matchID string, order ledger.Order, playerID string) ([]model.Event, error) {
	var events []model.Event
	err := s.withSession("service.events", matchID, func(h *hosted) error {
		if playerID == "" {
			events = h.ctrl.Events(order)
			return nil
		}
		events = slices.Collect(h.ctrl.EventsByPlayer(playerID))
		if order == ledger.Descending {
			slices.Reverse(events)
		}
		return nil
	})
	if events == nil && err == nil {
		events = []model.Event{}
	}
	return events, err
}

// Snapshot exports the session.
func (s *Service) Snapshot(ctx context.Context, matchID string) (model.Snapshot, error) {
	var snap model.Snapshot
	err := s.withSession("service.snapshot", matchID, func(h *hosted) error {
		snap = h.ctrl.Snapshot()
		return nil
	})
	return snap, err
}
