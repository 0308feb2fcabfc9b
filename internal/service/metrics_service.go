package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
)

// Save outcomes used as the "outcome" label.
const (
	OutcomeSuccess   = "success"
	OutcomeNoChanges = "no_changes"
	OutcomeConflict  = "conflict"
	OutcomeFailure   = "failure"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	storeLatency     prometheus.Observer
	storeWrite       prometheus.Observer
	storeHitRatio    prometheus.Gauge
	storeHits        prometheus.Counter
	storeMisses      prometheus.Counter
	dbQueryDuration  *prometheus.HistogramVec
	editsDetected    prometheus.Counter
	editsRejected    *prometheus.CounterVec
	saves            *prometheus.CounterVec
	rowsPersisted    *prometheus.CounterVec
	rowsLocked       prometheus.Counter
	sessionsStarted  prometheus.Counter
	eventsDispatched *prometheus.CounterVec

	storeHitCount        uint64
	storeMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	dbQueryCount         uint64
	dbQueryDurationTotal uint64
	editCount            uint64
	rejectedCount        uint64
	saveCount            uint64
	saveFailureCount     uint64
	persistedCount       uint64
	lockedCount          uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	storeLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "session_store_latency_seconds",
		Help:    "Latency for session store lookups",
		Buckets: prometheus.DefBuckets,
	})

	storeWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "session_store_write_seconds",
		Help:    "Latency for session store writes",
		Buckets: prometheus.DefBuckets,
	})

	storeHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "session_store_hit_ratio",
		Help: "Ratio of session store hits to total lookups",
	})

	storeHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_store_hits_total",
		Help: "Total session store hits",
	})

	storeMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_store_misses_total",
		Help: "Total session store misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of warehouse queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	editsDetected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grid_edits_detected_total",
		Help: "Cell edits detected across renders",
	})

	editsRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grid_edits_rejected_total",
		Help: "Cell edits refused by the edit policy",
	}, []string{"role"})

	saves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_saves_total",
		Help: "Save attempts by outcome",
	}, []string{"outcome"})

	rowsPersisted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_rows_persisted_total",
		Help: "Rows written back to the warehouse",
	}, []string{"mode"})

	rowsLocked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rows_locked_total",
		Help: "Rows locked through the locking workflow",
	})

	sessionsStarted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "editing_sessions_started_total",
		Help: "Editing sessions created",
	})

	eventsDispatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "activity_events_total",
		Help: "Activity events by delivery status",
	}, []string{"status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, storeLatency, storeWrite, storeHitRatio, storeHits, storeMisses,
		dbQueryDuration, editsDetected, editsRejected, saves, rowsPersisted, rowsLocked, sessionsStarted, eventsDispatched, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:         registry,
		handler:          handler,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		storeLatency:     storeLatency,
		storeWrite:       storeWrite,
		storeHitRatio:    storeHitRatio,
		storeHits:        storeHits,
		storeMisses:      storeMisses,
		dbQueryDuration:  dbQueryDuration,
		editsDetected:    editsDetected,
		editsRejected:    editsRejected,
		saves:            saves,
		rowsPersisted:    rowsPersisted,
		rowsLocked:       rowsLocked,
		sessionsStarted:  sessionsStarted,
		eventsDispatched: eventsDispatched,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordSessionLookup records session store hit/miss metrics and updates the hit ratio.
func (m *MetricsService) RecordSessionLookup(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.storeLatency != nil {
		m.storeLatency.Observe(duration.Seconds())
	}
	if hit {
		m.storeHits.Inc()
		atomic.AddUint64(&m.storeHitCount, 1)
	} else {
		m.storeMisses.Inc()
		atomic.AddUint64(&m.storeMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.storeHitCount)
	misses := atomic.LoadUint64(&m.storeMissCount)
	total := hits + misses
	if total > 0 {
		m.storeHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveSessionWrite tracks the duration of session store writes.
func (m *MetricsService) ObserveSessionWrite(duration time.Duration) {
	if m == nil || m.storeWrite == nil {
		return
	}
	m.storeWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records warehouse query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
	atomic.AddUint64(&m.dbQueryCount, 1)
	atomic.AddUint64(&m.dbQueryDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordEdits counts accepted and rejected cell edits of one render.
func (m *MetricsService) RecordEdits(role models.Role, detected, rejected int) {
	if m == nil {
		return
	}
	if detected > 0 {
		m.editsDetected.Add(float64(detected))
		atomic.AddUint64(&m.editCount, uint64(detected))
	}
	if rejected > 0 {
		m.editsRejected.WithLabelValues(string(role)).Add(float64(rejected))
		atomic.AddUint64(&m.rejectedCount, uint64(rejected))
	}
}

// RecordSave counts a save attempt and, on success, the persisted rows.
func (m *MetricsService) RecordSave(outcome, mode string, rows int) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(outcome).Inc()
	switch outcome {
	case OutcomeSuccess:
		atomic.AddUint64(&m.saveCount, 1)
		m.rowsPersisted.WithLabelValues(mode).Add(float64(rows))
		atomic.AddUint64(&m.persistedCount, uint64(rows))
	case OutcomeFailure, OutcomeConflict:
		atomic.AddUint64(&m.saveFailureCount, 1)
	}
}

// RecordLock counts rows locked by the locking workflow.
func (m *MetricsService) RecordLock(rows int) {
	if m == nil || rows <= 0 {
		return
	}
	m.rowsLocked.Add(float64(rows))
	atomic.AddUint64(&m.lockedCount, uint64(rows))
}

// SessionStarted counts a newly created editing session.
func (m *MetricsService) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
}

// RecordEvent counts an activity event delivery.
func (m *MetricsService) RecordEvent(status string) {
	if m == nil {
		return
	}
	m.eventsDispatched.WithLabelValues(status).Inc()
}

// Snapshot returns aggregated metrics suitable for the status endpoint.
func (m *MetricsService) Snapshot() models.MetricsSnapshot {
	if m == nil {
		return models.MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.storeHitCount)
	misses := atomic.LoadUint64(&m.storeMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	dbCount := atomic.LoadUint64(&m.dbQueryCount)
	dbDuration := atomic.LoadUint64(&m.dbQueryDurationTotal)

	var hitRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		hitRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgDBMs float64
	if dbCount > 0 {
		avgDBMs = float64(dbDuration) / float64(dbCount) / float64(time.Millisecond)
	}

	return models.MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		SessionStoreHitRatio:     hitRatio,
		EditsDetected:            atomic.LoadUint64(&m.editCount),
		EditsRejected:            atomic.LoadUint64(&m.rejectedCount),
		Saves:                    atomic.LoadUint64(&m.saveCount),
		SaveFailures:             atomic.LoadUint64(&m.saveFailureCount),
		RowsPersisted:            atomic.LoadUint64(&m.persistedCount),
		RowsLocked:               atomic.LoadUint64(&m.lockedCount),
		DBQueryCount:             dbCount,
		AverageDBQueryDurationMs: avgDBMs,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
