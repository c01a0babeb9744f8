package ledger_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/okian/leaguemaker/internal/domain/ledger"
	"github.com/okian/leaguemaker/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func newRoster() *model.Roster {
	r, err := model.NewRoster(
		model.RosterEntry{PlayerID: "p1", Side: model.SideHome, Attendance: model.AttendanceAttending},
		model.RosterEntry{PlayerID: "p2", Side: model.SideHome, Attendance: model.AttendanceAttending},
		model.RosterEntry{PlayerID: "p3", Side: model.SideAway, Attendance: model.AttendanceAttending},
		model.RosterEntry{PlayerID: "p4", Side: model.SideAway, Attendance: model.AttendanceAbsent},
		model.RosterEntry{PlayerID: "p9", Side: model.SideHome, Attendance: model.AttendancePending},
	)
	if err != nil {
		panic(err)
	}
	return r
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("e%d", n)
	}
}

func TestLedger_Record(t *testing.T) {
	Convey("Given an empty ledger", t, func() {
		l := ledger.New(newRoster(), ledger.WithIDGenerator(sequentialIDs()))

		Convey("When recording a goal for an attending player", func() {
			e, err := l.Record(model.EventGoal, model.SideHome, "p1", 23, model.HalfFirst, ledger.RecordOptions{RelatedPlayerID: "p2"})

			Convey("Then the event is appended with a fresh id", func() {
				So(err, ShouldBeNil)
				So(e.ID, ShouldEqual, "e1")
				So(e.Minute, ShouldEqual, 23)
				So(e.Detail, ShouldResemble, model.Goal{AssistPlayerID: "p2"})
				So(l.Len(), ShouldEqual, 1)
			})
		})

		Convey("When the default generator is used", func() {
			l := ledger.New(newRoster())
			a, _ := l.Record(model.EventCaution, model.SideAway, "p3", 10, model.HalfFirst, ledger.RecordOptions{})
			b, _ := l.Record(model.EventCaution, model.SideAway, "p3", 10, model.HalfFirst, ledger.RecordOptions{})

			Convey("Then ids are unique and duplicates are allowed", func() {
				So(a.ID, ShouldNotBeEmpty)
				So(a.ID, ShouldNotEqual, b.ID)
				So(l.Len(), ShouldEqual, 2)
			})
		})

		Convey("When the player is not attending", func() {
			_, err := l.Record(model.EventCaution, model.SideAway, "p4", 30, model.HalfFirst, ledger.RecordOptions{})

			Convey("Then it is a validation error and nothing is stored", func() {
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
				So(l.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the player is on the other side", func() {
			_, err := l.Record(model.EventGoal, model.SideAway, "p1", 30, model.HalfFirst, ledger.RecordOptions{})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("When the minute is negative", func() {
			_, err := l.Record(model.EventGoal, model.SideHome, "p1", -1, model.HalfFirst, ledger.RecordOptions{})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("When the minute is deep into stoppage time", func() {
			_, err := l.Record(model.EventGoal, model.SideHome, "p1", 97, model.HalfSecond, ledger.RecordOptions{})
			So(err, ShouldBeNil)
		})

		Convey("When a substitution has no incoming player", func() {
			_, err := l.Record(model.EventSubstitution, model.SideHome, "p1", 60, model.HalfSecond, ledger.RecordOptions{})
			So(errors.Is(err, model.ErrInvalidEvent), ShouldBeTrue)
		})

		Convey("When a substitution replaces a player with himself", func() {
			_, err := l.Record(model.EventSubstitution, model.SideHome, "p1", 60, model.HalfSecond, ledger.RecordOptions{RelatedPlayerID: "p1"})
			So(errors.Is(err, model.ErrInvalidEvent), ShouldBeTrue)
		})

		Convey("When a substitution brings on a pending player", func() {
			_, err := l.Record(model.EventSubstitution, model.SideHome, "p1", 60, model.HalfSecond, ledger.RecordOptions{RelatedPlayerID: "p9"})

			Convey("Then it is a validation error", func() {
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
				So(l.Len(), ShouldEqual, 0)
			})
		})

		Convey("When a substitution brings on a player from the other side", func() {
			_, err := l.Record(model.EventSubstitution, model.SideHome, "p1", 60, model.HalfSecond, ledger.RecordOptions{RelatedPlayerID: "p3"})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("When a goal lists the scorer as assist", func() {
			_, err := l.Record(model.EventGoal, model.SideHome, "p1", 5, model.HalfFirst, ledger.RecordOptions{RelatedPlayerID: "p1"})
			So(errors.Is(err, model.ErrInvalidEvent), ShouldBeTrue)
		})
	})
}

func TestLedger_UpdateDelete(t *testing.T) {
	Convey("Given a ledger with a caution and a goal", t, func() {
		roster := newRoster()
		l := ledger.New(roster, ledger.WithIDGenerator(sequentialIDs()))
		caution, _ := l.Record(model.EventCaution, model.SideAway, "p3", 12, model.HalfFirst, ledger.RecordOptions{Reason: "foul"})
		goal, _ := l.Record(model.EventGoal, model.SideHome, "p1", 30, model.HalfFirst, ledger.RecordOptions{})

		Convey("When updating the caution's minute and reason", func() {
			minute, reason := 14, "dissent"
			before, after, err := l.Update(caution.ID, model.EventPatch{Minute: &minute, Reason: &reason})

			Convey("Then the stored event changes and the old one is returned", func() {
				So(err, ShouldBeNil)
				So(before.Minute, ShouldEqual, 12)
				So(after.Minute, ShouldEqual, 14)
				So(after.Reason(), ShouldEqual, "dissent")
				got, _ := l.Get(caution.ID)
				So(got, ShouldResemble, after)
			})
		})

		Convey("When adding an assist to the goal", func() {
			assist := "p2"
			_, after, err := l.Update(goal.ID, model.EventPatch{RelatedPlayerID: &assist})
			So(err, ShouldBeNil)
			So(after.RelatedPlayerID(), ShouldEqual, "p2")

			Convey("And clearing it again", func() {
				none := ""
				_, after, err := l.Update(goal.ID, model.EventPatch{RelatedPlayerID: &none})
				So(err, ShouldBeNil)
				So(after.RelatedPlayerID(), ShouldEqual, "")
			})
		})

		Convey("When the scorer stops attending and the minute is corrected", func() {
			So(roster.SetAttendance("p1", model.AttendanceAbsent), ShouldBeNil)
			minute := 31
			_, after, err := l.Update(goal.ID, model.EventPatch{Minute: &minute})

			Convey("Then the edit is accepted", func() {
				So(err, ShouldBeNil)
				So(after.Minute, ShouldEqual, 31)
			})
		})

		Convey("When setting a reason on a goal", func() {
			reason := "nice"
			_, _, err := l.Update(goal.ID, model.EventPatch{Reason: &reason})

			Convey("Then it is invalid and the ledger is unchanged", func() {
				So(errors.Is(err, model.ErrInvalidEvent), ShouldBeTrue)
				got, _ := l.Get(goal.ID)
				So(got, ShouldResemble, goal)
			})
		})

		Convey("When assigning an absent assist", func() {
			absent := "p4"
			_, _, err := l.Update(goal.ID, model.EventPatch{RelatedPlayerID: &absent})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("When an update is undone with Restore", func() {
			minute := 44
			before, _, err := l.Update(goal.ID, model.EventPatch{Minute: &minute})
			So(err, ShouldBeNil)

			Convey("Then the original event is back in place", func() {
				So(l.Restore(before), ShouldBeTrue)
				got, _ := l.Get(goal.ID)
				So(got, ShouldResemble, goal)
				So(l.Len(), ShouldEqual, 2)
				So(l.Restore(model.Event{ID: "nope"}), ShouldBeFalse)
			})
		})

		Convey("When updating an unknown id", func() {
			minute := 1
			_, _, err := l.Update("nope", model.EventPatch{Minute: &minute})
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("When deleting the goal", func() {
			removed, err := l.Delete(goal.ID)

			Convey("Then it is returned and gone", func() {
				So(err, ShouldBeNil)
				So(removed.ID, ShouldEqual, goal.ID)
				So(l.Len(), ShouldEqual, 1)
				_, err := l.Get(goal.ID)
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})

			Convey("And deleting it twice reports not found", func() {
				_, err := l.Delete(goal.ID)
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestLedger_Ordering(t *testing.T) {
	Convey("Given events recorded out of order", t, func() {
		l := ledger.New(newRoster(), ledger.WithIDGenerator(sequentialIDs()))
		_, _ = l.Record(model.EventGoal, model.SideHome, "p1", 50, model.HalfSecond, ledger.RecordOptions{})  // e1
		_, _ = l.Record(model.EventGoal, model.SideHome, "p1", 10, model.HalfFirst, ledger.RecordOptions{})   // e2
		_, _ = l.Record(model.EventCaution, model.SideAway, "p3", 47, model.HalfFirst, ledger.RecordOptions{}) // e3
		_, _ = l.Record(model.EventCaution, model.SideAway, "p3", 10, model.HalfFirst, ledger.RecordOptions{}) // e4

		ids := func(events []model.Event) []string {
			out := make([]string, len(events))
			for i, e := range events {
				out[i] = e.ID
			}
			return out
		}

		Convey("Then ascending is by half, minute, then recording order", func() {
			So(ids(l.List(ledger.Ascending)), ShouldResemble, []string{"e2", "e4", "e3", "e1"})
		})

		Convey("Then descending is the exact reverse", func() {
			So(ids(l.List(ledger.Descending)), ShouldResemble, []string{"e1", "e3", "e4", "e2"})
		})

		Convey("Then the returned slice is a copy", func() {
			list := l.List(ledger.Ascending)
			list[0].Minute = 99
			again := l.List(ledger.Ascending)
			So(again[0].Minute, ShouldEqual, 10)
		})

		Convey("Then per-player iteration is lazy and can stop early", func() {
			var got []string
			for e := range l.ByPlayer("p3") {
				got = append(got, e.ID)
			}
			So(got, ShouldResemble, []string{"e4", "e3"})

			count := 0
			for range l.ByPlayer("p1") {
				count++
				break
			}
			So(count, ShouldEqual, 1)
		})
	})

	Convey("Given order names", t, func() {
		o, ok := ledger.ParseOrder("desc")
		So(ok, ShouldBeTrue)
		So(o, ShouldEqual, ledger.Descending)
		_, ok = ledger.ParseOrder("sideways")
		So(ok, ShouldBeFalse)
	})
}

func TestLedger_Load(t *testing.T) {
	Convey("Given an empty ledger", t, func() {
		roster := newRoster()
		l := ledger.New(roster)

		Convey("When loading historical events whose players later stopped attending", func() {
			events := []model.Event{
				{ID: "h1", Side: model.SideAway, PlayerID: "p4", Minute: 3, Half: model.HalfFirst, Detail: model.Goal{}},
				{ID: "h2", Side: model.SideHome, PlayerID: "p1", Minute: 8, Half: model.HalfFirst, Detail: model.Caution{}},
			}
			err := l.Load(events)

			Convey("Then they are accepted with their ids", func() {
				So(err, ShouldBeNil)
				So(l.Len(), ShouldEqual, 2)
				_, err := l.Get("h1")
				So(err, ShouldBeNil)
			})
		})

		Convey("When a batch contains a duplicate id", func() {
			err := l.Load([]model.Event{
				{ID: "h1", Side: model.SideHome, PlayerID: "p1", Half: model.HalfFirst, Detail: model.Goal{}},
				{ID: "h1", Side: model.SideHome, PlayerID: "p1", Half: model.HalfFirst, Detail: model.Goal{}},
			})

			Convey("Then nothing is loaded", func() {
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
				So(l.Len(), ShouldEqual, 0)
			})
		})

		Convey("When an event has no detail", func() {
			err := l.Load([]model.Event{{ID: "h1", Side: model.SideHome, PlayerID: "p1", Half: model.HalfFirst}})
			So(errors.Is(err, model.ErrInvalidEvent), ShouldBeTrue)
		})
	})
}
