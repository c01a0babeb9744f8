package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it uses the service namespace", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "leaguemaker")
				So(manager.subsystem, ShouldEqual, "matches")
				So(manager.enabled, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("sessions"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.RecordEventRecorded("goal")

			Convey("Then metric names and constant labels follow the options", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_sessions_events_recorded_total"], ShouldBeTrue)
				So(manager.histogramBuckets, ShouldResemble, []float64{1, 5, 10})
			})
		})

		Convey("When empty options are given", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithCustomLabels(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then the defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "leaguemaker")
				So(manager.subsystem, ShouldEqual, "matches")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
				So(manager.customLabels, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a manager on its own registry", t, func() {
		m := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))

		Convey("When session activity is recorded", func() {
			m.UpdateSessionsOpen(3)
			m.RecordEventRecorded("goal")
			m.RecordEventRecorded("goal")
			m.RecordEventRecorded("caution")
			m.RecordEventEdited()
			m.RecordEventRemoved()
			m.RecordEventDuplicate()
			m.RecordScoreUnderflow()
			m.RecordClockTick()
			m.RecordClockTransition("start")
			m.RecordDomainError("validation")

			Convey("Then the counters reflect it", func() {
				So(testutil.ToFloat64(m.sessionsOpen), ShouldEqual, 3)
				So(testutil.ToFloat64(m.eventsRecorded.WithLabelValues("goal")), ShouldEqual, 2)
				So(testutil.ToFloat64(m.eventsRecorded.WithLabelValues("caution")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.eventsEdited), ShouldEqual, 1)
				So(testutil.ToFloat64(m.eventsRemoved), ShouldEqual, 1)
				So(testutil.ToFloat64(m.eventsDuplicate), ShouldEqual, 1)
				So(testutil.ToFloat64(m.scoreUnderflows), ShouldEqual, 1)
				So(testutil.ToFloat64(m.clockTicks), ShouldEqual, 1)
				So(testutil.ToFloat64(m.clockTransitions.WithLabelValues("start")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.domainErrors.WithLabelValues("validation")), ShouldEqual, 1)
			})
		})

		Convey("When queue and worker activity is recorded", func() {
			m.UpdateQueueSize(4)
			m.UpdateQueueCapacity(16)
			m.UpdateQueueUtilization(0.25)
			m.RecordQueueEnqueue()
			m.RecordQueueDequeue()
			m.RecordQueueEnqueueError()
			m.UpdateWorkerCount(2)
			m.UpdateWorkerActiveCount(1)
			m.RecordPersistJob("stored")
			m.RecordPersistRetry()
			m.RecordPersistLatency(12)

			Convey("Then the gauges and counters reflect it", func() {
				So(testutil.ToFloat64(m.queueSize), ShouldEqual, 4)
				So(testutil.ToFloat64(m.queueCapacity), ShouldEqual, 16)
				So(testutil.ToFloat64(m.queueUtilization), ShouldEqual, 0.25)
				So(testutil.ToFloat64(m.queueEnqueueRate), ShouldEqual, 1)
				So(testutil.ToFloat64(m.queueDequeueRate), ShouldEqual, 1)
				So(testutil.ToFloat64(m.queueEnqueueErrors), ShouldEqual, 1)
				So(testutil.ToFloat64(m.workerCount), ShouldEqual, 2)
				So(testutil.ToFloat64(m.workerActiveCount), ShouldEqual, 1)
				So(testutil.ToFloat64(m.persistJobs.WithLabelValues("stored")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.persistRetries), ShouldEqual, 1)
				So(testutil.CollectAndCount(m.persistLatency), ShouldEqual, 1)
			})
		})

		Convey("When repository, HTTP and system metrics are recorded", func() {
			m.UpdateRepositoryRecordsTotal(7)
			m.UpdateRepositoryEventsByType("goal", 21)
			m.RecordRepositorySaveLatency(3)
			m.RecordRepositoryQueryLatency(1)
			m.RecordHTTPRequest("/matches/{matchID}/events", "POST", "201")
			m.RecordHTTPRequestDuration("/matches/{matchID}/events", "POST", "201", 2.5)
			m.RecordErrorByComponent("repository", "not_found")
			m.UpdateSystemMemoryUsage(1024)
			m.UpdateSystemGoroutineCount(12)

			Convey("Then they are exported", func() {
				So(testutil.ToFloat64(m.repositoryRecordsTotal), ShouldEqual, 7)
				So(testutil.ToFloat64(m.repositoryRecordsByKind.WithLabelValues("goal")), ShouldEqual, 21)
				So(testutil.ToFloat64(m.httpRequests.WithLabelValues("/matches/{matchID}/events", "POST", "201")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.errorRateByComponent.WithLabelValues("repository", "not_found")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.systemMemoryUsage), ShouldEqual, 1024)
				So(testutil.ToFloat64(m.systemGoroutineCount), ShouldEqual, 12)
				So(testutil.CollectAndCount(m.repositorySaveLatency), ShouldEqual, 1)
				So(testutil.CollectAndCount(m.httpRequestDuration), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a disabled manager", t, func() {
		m := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()), WithMetricsEnabled(false))

		Convey("When events are recorded", func() {
			m.RecordEventRecorded("goal")
			m.UpdateSessionsOpen(5)

			Convey("Then nothing is counted", func() {
				So(testutil.ToFloat64(m.eventsRecorded.WithLabelValues("goal")), ShouldEqual, 0)
				So(testutil.ToFloat64(m.sessionsOpen), ShouldEqual, 0)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When the package level recorders are called", func() {
			So(func() {
				UpdateSessionsOpen(1)
				RecordEventRecorded("substitution")
				RecordEventEdited()
				RecordEventRemoved()
				RecordEventDuplicate()
				RecordScoreUnderflow()
				RecordClockTick()
				RecordClockTransition("pause")
				RecordDomainError("illegal_state")
				RecordHTTPRequest("/stats", "GET", "200")
				RecordHTTPRequestDuration("/stats", "GET", "200", 1)
				UpdateRepositoryRecordsTotal(1)
				UpdateRepositoryEventsByType("goal", 1)
				RecordRepositorySaveLatency(1)
				RecordRepositoryQueryLatency(1)
				UpdateQueueSize(1)
				UpdateQueueCapacity(1)
				UpdateQueueUtilization(1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerCount(1)
				UpdateWorkerActiveCount(1)
				RecordPersistJob("failed")
				RecordPersistRetry()
				RecordPersistLatency(1)
				RecordErrorByComponent("api", "bad_request")
				UpdateSystemMemoryUsage(1)
				UpdateSystemGoroutineCount(1)
			}, ShouldNotPanic)

			Convey("Then they land on the custom registry", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				So(testutil.ToFloat64(globalManager.eventsRecorded.WithLabelValues("substitution")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})
	})
}
