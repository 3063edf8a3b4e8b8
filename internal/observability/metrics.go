package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_events_received_total",
		Help: "Raw events handed to the pipeline",
	})
	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_events_rejected_total",
		Help: "Events rejected by validation, by reason",
	}, []string{"reason"})
	HeartbeatsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_heartbeats_consumed_total",
		Help: "Status-NONE events silently consumed",
	})
	EventsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_events_persisted_total",
		Help: "Events durably inserted",
	})
	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_persist_failures_total",
		Help: "Event insert failures (aborted ingest calls)",
	})
	EnrichQueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_enrich_queued_total",
		Help: "Enrichment jobs submitted to the worker pool",
	})
	EnrichDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_enrich_dropped_total",
		Help: "Enrichment jobs dropped because the queue was full",
	})
	EnrichCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_enrich_completed_total",
		Help: "Enrichment jobs that finished, successfully or not",
	})
	EnrichNoResult = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_enrich_noresult_total",
		Help: "Enrichment jobs that completed without resolving any fields",
	})
	EnrichFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_enrich_failed_total",
		Help: "Enrichment jobs whose follow-up event update failed",
	})
	EnrichQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingest_enrich_queue_depth",
		Help: "Enrichment jobs currently waiting in the queue",
	})
	RuleTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_rule_triggers_total",
		Help: "Rule engine triggers, by rule name",
	}, []string{"rule"})
)

// NewMetricsServer returns the metrics and health endpoint server; the
// caller owns its lifecycle.
func NewMetricsServer(port string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{Addr: ":" + port, Handler: mux}
}
