package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/leaguemaker/internal/adapters/http/api"
	service "github.com/okian/leaguemaker/internal/app"
	"github.com/okian/leaguemaker/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const rosterBody = `{"roster":[
	{"player_id":"p1","display_name":"Ada","side":"home","attendance":"attending"},
	{"player_id":"p2","display_name":"Bea","side":"away","attendance":"attending"},
	{"player_id":"p3","display_name":"Cy","side":"away","attendance":"attending"},
	{"player_id":"p4","display_name":"Dee","side":"home","attendance":"attending"},
	{"player_id":"p5","display_name":"Eve","side":"home","attendance":"absent"}
]}`

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

type harness struct {
	mux *http.ServeMux
	svc *service.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	svc := service.New(service.WithTickInterval(0), service.WithWorkerCount(1), service.WithPersistBackoff(time.Millisecond))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	server := api.NewServer(svc, svc, 50)
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return &harness{mux: mux, svc: svc}
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestServer_Register(t *testing.T) {
	Convey("Given a new API server", t, func() {
		server := api.NewServer(service.New(), &mockStatsProvider{stats: map[string]interface{}{"started": false}}, 10)
		mux := http.NewServeMux()
		server.Register(context.Background(), mux)

		Convey("Then the health endpoint serves metrics", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the stats endpoint merges process figures", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest("GET", "/stats", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
			stats := decode(w)
			So(stats["started"], ShouldEqual, false)
			So(stats["goroutines"], ShouldBeGreaterThan, 0.0)
		})

		Convey("Then a wrong method is refused", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest("POST", "/stats", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestSessionEndpoints(t *testing.T) {
	Convey("Given a running API", t, func() {
		h := newHarness(t)
		defer h.svc.Stop()

		Convey("When a session is opened", func() {
			w := h.do("POST", "/matches/m1/session", rosterBody)
			So(w.Code, ShouldEqual, http.StatusCreated)
			st := decode(w)

			Convey("Then the state is at kick-off", func() {
				So(st["match_id"], ShouldEqual, "m1")
				So(st["phase"], ShouldEqual, "first-half")
				So(st["running"], ShouldEqual, false)
			})

			Convey("Then opening it again conflicts", func() {
				So(h.do("POST", "/matches/m1/session", rosterBody).Code, ShouldEqual, http.StatusConflict)
			})

			Convey("Then the roster can be read back", func() {
				w := h.do("GET", "/matches/m1/roster", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var entries []map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &entries), ShouldBeNil)
				So(entries, ShouldHaveLength, 5)
				So(entries[4]["attendance"], ShouldEqual, "absent")
			})

			Convey("Then clock actions drive the phase", func() {
				So(h.do("POST", "/matches/m1/clock/start", "").Code, ShouldEqual, http.StatusOK)
				So(h.do("POST", "/matches/m1/clock/start", "").Code, ShouldEqual, http.StatusConflict)
				So(h.do("POST", "/matches/m1/clock/rewind", "").Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(h.do("POST", "/matches/m1/clock/finish", "").Code, ShouldEqual, http.StatusConflict)
				So(h.do("POST", "/matches/m1/clock/second-half", "").Code, ShouldEqual, http.StatusOK)
				w := h.do("POST", "/matches/m1/clock/finish", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["phase"], ShouldEqual, "finished")
			})

			Convey("Then an absent player is not selected", func() {
				w := h.do("POST", "/matches/m1/participant", `{"player_id":"p5","side":"home"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["selected"], ShouldEqual, false)
			})

			Convey("Then attendance can change", func() {
				w := h.do("PUT", "/matches/m1/roster/p5/attendance", `{"attendance":"attending"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				w = h.do("POST", "/matches/m1/participant", `{"player_id":"p5","side":"home"}`)
				So(decode(w)["selected"], ShouldEqual, true)
				So(h.do("PUT", "/matches/m1/roster/p5/attendance", `{"attendance":"maybe"}`).Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(h.do("PUT", "/matches/m1/roster/zz/attendance", `{"attendance":"absent"}`).Code, ShouldEqual, http.StatusNotFound)
			})

			Convey("Then closing it removes it", func() {
				So(h.do("DELETE", "/matches/m1/session", "").Code, ShouldEqual, http.StatusNoContent)
				So(h.do("GET", "/matches/m1/session", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the body is malformed", func() {
			w := h.do("POST", "/matches/m1/session", `{"roster":`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When the roster is invalid", func() {
			w := h.do("POST", "/matches/m1/session", `{"roster":[{"player_id":"p1","side":"middle"}]}`)

			Convey("Then it is unprocessable", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			})
		})
	})
}

func TestEventEndpoints(t *testing.T) {
	Convey("Given an open session", t, func() {
		h := newHarness(t)
		defer h.svc.Stop()
		So(h.do("POST", "/matches/m1/session", rosterBody).Code, ShouldEqual, http.StatusCreated)

		Convey("When a goal is recorded", func() {
			w := h.do("POST", "/matches/m1/events", `{"request_id":"r1","type":"goal","player_id":"p1","side":"home","minute":23,"related_player_id":"p4"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			res := decode(w)
			event := res["event"].(map[string]any)
			id := event["id"].(string)

			Convey("Then the score and the event come back", func() {
				So(res["score"], ShouldResemble, map[string]any{"home": 1.0, "away": 0.0})
				So(event["type"], ShouldEqual, "goal")
				So(event["related_player_id"], ShouldEqual, "p4")
				So(event["half"], ShouldEqual, "first")
			})

			Convey("Then replaying the request is a duplicate", func() {
				w := h.do("POST", "/matches/m1/events", `{"request_id":"r1","type":"goal","player_id":"p1","side":"home","minute":23}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["duplicate"], ShouldEqual, true)
				w = h.do("GET", "/matches/m1/events", "")
				var list []map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &list), ShouldBeNil)
				So(list, ShouldHaveLength, 1)
			})

			Convey("Then it can be fetched and edited", func() {
				So(h.do("GET", "/matches/m1/events/"+id, "").Code, ShouldEqual, http.StatusOK)
				w := h.do("PATCH", "/matches/m1/events/"+id, `{"minute":44}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["event"].(map[string]any)["minute"], ShouldEqual, 44.0)
				So(h.do("PATCH", "/matches/m1/events/"+id, `{"half":"third"}`).Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(h.do("PATCH", "/matches/m1/events/missing", `{"minute":1}`).Code, ShouldEqual, http.StatusNotFound)
			})

			Convey("Then removing it restores the score", func() {
				w := h.do("DELETE", "/matches/m1/events/"+id, "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["score"], ShouldResemble, map[string]any{"home": 0.0, "away": 0.0})
				So(h.do("DELETE", "/matches/m1/events/"+id, "").Code, ShouldEqual, http.StatusNotFound)
			})

			Convey("Then events can be listed by order and player", func() {
				So(h.do("POST", "/matches/m1/events", `{"type":"caution","player_id":"p2","side":"away","minute":5,"reason":"dissent"}`).Code, ShouldEqual, http.StatusCreated)

				var asc, desc, mine []map[string]any
				So(json.Unmarshal(h.do("GET", "/matches/m1/events?order=asc", "").Body.Bytes(), &asc), ShouldBeNil)
				So(json.Unmarshal(h.do("GET", "/matches/m1/events?order=desc", "").Body.Bytes(), &desc), ShouldBeNil)
				So(json.Unmarshal(h.do("GET", "/matches/m1/events?player=p4", "").Body.Bytes(), &mine), ShouldBeNil)
				So(asc[0]["type"], ShouldEqual, "caution")
				So(desc[0]["type"], ShouldEqual, "goal")
				So(mine, ShouldHaveLength, 1)
				So(h.do("GET", "/matches/m1/events?order=sideways", "").Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When recording for an absent player", func() {
			w := h.do("POST", "/matches/m1/events", `{"type":"goal","player_id":"p5","side":"home"}`)

			Convey("Then it is unprocessable", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(decode(w)["code"], ShouldEqual, "validation")
			})
		})

		Convey("When recording an unknown event type", func() {
			w := h.do("POST", "/matches/m1/events", `{"type":"corner","player_id":"p1","side":"home"}`)

			Convey("Then it is an invalid event", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(decode(w)["code"], ShouldEqual, "invalid_event")
			})
		})

		Convey("When recording into a missing session", func() {
			w := h.do("POST", "/matches/zz/events", `{"type":"goal","player_id":"p1","side":"home"}`)

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestPersistAndRecordEndpoints(t *testing.T) {
	Convey("Given a played match", t, func() {
		h := newHarness(t)
		defer h.svc.Stop()
		So(h.do("POST", "/matches/m1/session", rosterBody).Code, ShouldEqual, http.StatusCreated)
		So(h.do("POST", "/matches/m1/events", `{"type":"goal","player_id":"p1","side":"home","minute":10,"related_player_id":"p4"}`).Code, ShouldEqual, http.StatusCreated)
		So(h.do("POST", "/matches/m1/events", `{"type":"goal","player_id":"p2","side":"away","minute":20}`).Code, ShouldEqual, http.StatusCreated)
		So(h.do("POST", "/matches/m1/events", `{"type":"goal","player_id":"p1","side":"home","minute":60,"half":"second"}`).Code, ShouldEqual, http.StatusCreated)

		Convey("When persisting before the final whistle", func() {
			Convey("Then it conflicts", func() {
				So(h.do("POST", "/matches/m1/persist", "").Code, ShouldEqual, http.StatusConflict)
			})
		})

		Convey("When the finished match is persisted", func() {
			So(h.do("POST", "/matches/m1/clock/second-half", "").Code, ShouldEqual, http.StatusOK)
			So(h.do("POST", "/matches/m1/clock/finish", "").Code, ShouldEqual, http.StatusOK)

			snap := decode(h.do("GET", "/matches/m1/snapshot", ""))
			So(snap["final_phase"], ShouldEqual, "finished")
			So(snap["events"], ShouldHaveLength, 3)

			w := h.do("POST", "/matches/m1/persist", "")
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(decode(w)["status"], ShouldEqual, "queued")

			deadline := time.Now().Add(3 * time.Second)
			for time.Now().Before(deadline) && h.do("GET", "/records/m1", "").Code != http.StatusOK {
				time.Sleep(10 * time.Millisecond)
			}

			Convey("Then the record is served", func() {
				w := h.do("GET", "/records/m1", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				rec := decode(w)
				So(rec["score"], ShouldResemble, map[string]any{"home": 2.0, "away": 1.0})
				So(rec["events"], ShouldHaveLength, 3)
			})

			Convey("Then career and scorers reflect it", func() {
				c := decode(h.do("GET", "/players/p1/career", ""))
				So(c["goals"], ShouldEqual, 2.0)
				So(c["matches"], ShouldEqual, 1.0)

				var top []map[string]any
				w := h.do("GET", "/leaders/scorers?limit=1", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(json.Unmarshal(w.Body.Bytes(), &top), ShouldBeNil)
				So(top, ShouldHaveLength, 1)
				So(top[0]["player_id"], ShouldEqual, "p1")

				So(h.do("GET", "/leaders/scorers?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
				So(h.do("GET", "/leaders/scorers?limit=500", "").Code, ShouldEqual, http.StatusBadRequest)
				So(h.do("GET", "/players/nobody/career", "").Code, ShouldEqual, http.StatusNotFound)
				So(h.do("GET", "/records/zz", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}
