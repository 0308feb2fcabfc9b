package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
)

// EventRepository appends activity events to PostgreSQL.
type EventRepository struct {
	db    *sqlx.DB
	table string
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *sqlx.DB, table string) *EventRepository {
	return &EventRepository{db: db, table: quoteTable(table)}
}

// Insert stores one event.
func (r *EventRepository) Insert(ctx context.Context, event *models.ActivityEvent) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, event_type, message, actor, session_id, event_data, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, r.table)
	data := string(event.Data)
	if data == "" {
		data = "{}"
	}
	if _, err := r.db.ExecContext(ctx, query,
		event.ID, string(event.Type), event.Message, event.Actor, event.SessionID, data, event.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert activity event: %w", err)
	}
	return nil
}

// LogEventRepository writes activity events to the structured log. It is
// used when no warehouse connection is configured.
type LogEventRepository struct {
	logger *zap.Logger
}

// NewLogEventRepository constructs a LogEventRepository.
func NewLogEventRepository(logger *zap.Logger) *LogEventRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogEventRepository{logger: logger}
}

// Insert logs the event.
func (r *LogEventRepository) Insert(ctx context.Context, event *models.ActivityEvent) error {
	r.logger.Info("activity event",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("message", event.Message),
		zap.String("actor", event.Actor),
		zap.String("session_id", event.SessionID),
		zap.ByteString("data", event.Data),
		zap.Time("created_at", event.CreatedAt),
	)
	return nil
}
