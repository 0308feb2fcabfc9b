package models

import "time"

// MetricsSnapshot aggregates in-process counters for the status endpoint.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	SessionStoreHitRatio     float64   `json:"session_store_hit_ratio"`
	EditsDetected            uint64    `json:"edits_detected"`
	EditsRejected            uint64    `json:"edits_rejected"`
	Saves                    uint64    `json:"saves"`
	SaveFailures             uint64    `json:"save_failures"`
	RowsPersisted            uint64    `json:"rows_persisted"`
	RowsLocked               uint64    `json:"rows_locked"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
