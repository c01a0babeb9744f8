package types_test

import (
	"errors"
	"testing"

	model "github.com/okian/leaguemaker/internal/domain/model"
	types "github.com/okian/leaguemaker/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntry(t *testing.T) {
	Convey("Given an Entry struct", t, func() {
		Convey("When creating an entry with zero values", func() {
			entry := types.Entry{}

			Convey("Then it should have default values", func() {
				So(entry.Rank, ShouldEqual, 0)
				So(entry.PlayerID, ShouldEqual, "")
				So(entry.Goals, ShouldEqual, 0)
			})
		})
	})
}

func TestEventView(t *testing.T) {
	Convey("Given ledger events of each type", t, func() {
		events := []model.Event{
			{ID: "e1", Side: model.SideHome, PlayerID: "p1", Minute: 12, Half: model.HalfFirst, Detail: model.Goal{AssistPlayerID: "p4"}, Seq: 1},
			{ID: "e2", Side: model.SideAway, PlayerID: "p2", Minute: 30, Half: model.HalfFirst, Detail: model.Caution{Reason: "dissent"}, Seq: 2},
			{ID: "e3", Side: model.SideAway, PlayerID: "p3", Minute: 50, Half: model.HalfSecond, Detail: model.Dismissal{}, Seq: 3},
			{ID: "e4", Side: model.SideHome, PlayerID: "p1", Minute: 70, Half: model.HalfSecond, Detail: model.Substitution{IncomingPlayerID: "p9"}, Seq: 4},
		}

		Convey("When they are flattened", func() {
			views := types.FromEvents(events)

			Convey("Then the variant fields land in the flat columns", func() {
				So(views, ShouldHaveLength, 4)
				So(views[0].Type, ShouldEqual, "goal")
				So(views[0].RelatedPlayerID, ShouldEqual, "p4")
				So(views[1].Reason, ShouldEqual, "dissent")
				So(views[3].RelatedPlayerID, ShouldEqual, "p9")
				So(views[3].Half, ShouldEqual, "second")
			})

			Convey("Then rebuilding them gives back the same events", func() {
				for i, v := range views {
					e, err := v.Model()
					So(err, ShouldBeNil)
					So(e, ShouldResemble, events[i])
				}
			})
		})

		Convey("When a view is malformed", func() {
			bad := []types.Event{
				{Type: "corner", Side: "home", Half: "first"},
				{Type: "goal", Side: "middle", Half: "first"},
				{Type: "goal", Side: "home", Half: "third"},
				{Type: "goal", Side: "home", Half: "first", Reason: "offside"},
			}

			Convey("Then it is rejected as an invalid event", func() {
				for _, v := range bad {
					_, err := v.Model()
					So(errors.Is(err, model.ErrInvalidEvent), ShouldBeTrue)
				}
			})
		})
	})
}
