package models

import (
	"encoding/json"
	"time"
)

// ActivityEventType names an auditable action against the warehouse.
type ActivityEventType string

const (
	EventSessionStarted ActivityEventType = "kulate_stoly_session_started"
	EventTableRead      ActivityEventType = "kulate_stoly_read_table"
	EventTableWrite     ActivityEventType = "kulate_stoly_write_table"
	EventRowsLocked     ActivityEventType = "kulate_stoly_rows_locked"
	EventFilterSaved    ActivityEventType = "kulate_stoly_filter_saved"
	EventQuery          ActivityEventType = "kulate_stoly_query"
)

// ActivityEvent is one entry of the application's activity log.
type ActivityEvent struct {
	ID        string            `db:"id" json:"id"`
	Type      ActivityEventType `db:"event_type" json:"type"`
	Message   string            `db:"message" json:"message"`
	Actor     string            `db:"actor" json:"actor"`
	SessionID string            `db:"session_id" json:"session_id"`
	Data      json.RawMessage   `db:"event_data" json:"data,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
}
