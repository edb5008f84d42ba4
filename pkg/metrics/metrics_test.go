package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then collectors use the backr namespace", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "backr")
				So(manager.subsystem, ShouldEqual, "matching")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.locksEnqueued.Inc()

			Convey("Then the options are reflected in the exposition", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				var found bool
				for _, f := range families {
					if f.GetName() == "test_unit_lock_jobs_enqueued_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When empty option values are passed", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithConstLabels(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "backr")
				So(manager.histogramBuckets, ShouldNotBeEmpty)
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then registration collides", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording suggestion responses", func() {
			served := testutil.ToFloat64(globalManager.suggestionsServed)
			empty := testutil.ToFloat64(globalManager.suggestionsEmpty)

			RecordSuggestionsServed(3)
			RecordSuggestionsServed(0)

			Convey("Then empty and non-empty responses are counted apart", func() {
				So(testutil.ToFloat64(globalManager.suggestionsServed), ShouldEqual, served+1)
				So(testutil.ToFloat64(globalManager.suggestionsEmpty), ShouldEqual, empty+1)
			})
		})

		Convey("When recording suggestion failures", func() {
			before := testutil.ToFloat64(globalManager.suggestionFailures.WithLabelValues("candidates"))
			RecordSuggestionFailure("candidates")
			RecordSuggestionFailure("candidates")

			Convey("Then the stage label is incremented", func() {
				So(testutil.ToFloat64(globalManager.suggestionFailures.WithLabelValues("candidates")), ShouldEqual, before+2)
			})
		})

		Convey("When recording lock pipeline events", func() {
			enq := testutil.ToFloat64(globalManager.locksEnqueued)
			dup := testutil.ToFloat64(globalManager.locksDuplicate)
			rej := testutil.ToFloat64(globalManager.locksRejected)
			ok := testutil.ToFloat64(globalManager.locksSucceeded)
			bad := testutil.ToFloat64(globalManager.locksFailed)
			stale := testutil.ToFloat64(globalManager.locksSkipped)

			RecordLockEnqueued()
			RecordLockDuplicate()
			RecordLockRejected()
			RecordLockSucceeded()
			RecordLockFailed()
			RecordLockSkipped()

			Convey("Then each counter moves by one", func() {
				So(testutil.ToFloat64(globalManager.locksEnqueued), ShouldEqual, enq+1)
				So(testutil.ToFloat64(globalManager.locksDuplicate), ShouldEqual, dup+1)
				So(testutil.ToFloat64(globalManager.locksRejected), ShouldEqual, rej+1)
				So(testutil.ToFloat64(globalManager.locksSucceeded), ShouldEqual, ok+1)
				So(testutil.ToFloat64(globalManager.locksFailed), ShouldEqual, bad+1)
				So(testutil.ToFloat64(globalManager.locksSkipped), ShouldEqual, stale+1)
			})
		})

		Convey("When updating gauges", func() {
			UpdateQueueSize(7)
			UpdateQueueCapacity(100)
			UpdateWorkerCount(4)
			UpdateTotalEntities(42)
			UpdateLedgerCircuitState(2)

			Convey("Then the last value wins", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 100)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.totalEntities), ShouldEqual, 42)
				So(testutil.ToFloat64(globalManager.ledgerCircuitState), ShouldEqual, 2)
			})
		})

		Convey("When recording latencies and labelled counters", func() {
			So(func() {
				RecordSuggestionLatency(3.5)
				RecordCandidatePoolSize(12)
				RecordLedgerLatency("lock_funds", "ok", 25)
				RecordWorkerProcessingLatency(30)
				RecordRepositoryQueryLatency("find_candidates", 1.2)
				RecordHTTPRequest("/healthz", "GET", "200")
				RecordHTTPRequestDuration("/healthz", "GET", "200", 0.4)
				RecordErrorByComponent("ledger", "unavailable")
			}, ShouldNotPanic)

			Convey("Then labelled counters carry their labels", func() {
				So(testutil.ToFloat64(globalManager.errorsByComponent.WithLabelValues("ledger", "unavailable")), ShouldBeGreaterThanOrEqualTo, 1)
				So(testutil.ToFloat64(globalManager.httpRequests.WithLabelValues("/healthz", "GET", "200")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent writers", t, func() {
		before := testutil.ToFloat64(globalManager.locksEnqueued)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					RecordLockEnqueued()
					RecordHTTPRequest("/api/entities/{id}/suggestions", "GET", "200")
				}
			}()
		}
		wg.Wait()

		Convey("Then no increment is lost", func() {
			So(testutil.ToFloat64(globalManager.locksEnqueued), ShouldEqual, before+1000)
		})
	})
}

func TestRegistryExposition(t *testing.T) {
	Convey("Given the custom registry behind promhttp", t, func() {
		RecordLockEnqueued()
		h := promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		Convey("Then backr metrics are exposed without Go runtime collectors", func() {
			body := rec.Body.String()
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(body, ShouldContainSubstring, "backr_matching_lock_jobs_enqueued_total")
			So(strings.Contains(body, "go_goroutines"), ShouldBeFalse)
		})
	})
}

func TestRegisterRuntimeCollectors(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		Convey("When runtime collectors are registered twice", func() {
			So(RegisterRuntimeCollectors(), ShouldBeNil)
			So(RegisterRuntimeCollectors(), ShouldBeNil)

			Convey("Then go runtime metrics are exposed", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)

				found := false
				for _, f := range families {
					if f.GetName() == "go_goroutines" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}
