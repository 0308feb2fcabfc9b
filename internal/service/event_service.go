package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
	"github.com/noah-isme/kulate-stoly-api/pkg/jobs"
)

type eventDispatcher interface {
	TryEnqueue(job jobs.Job) error
}

type eventRepository interface {
	Insert(ctx context.Context, event *models.ActivityEvent) error
}

// EventService records warehouse activity events in the background.
type EventService struct {
	queue   eventDispatcher
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewEventService constructs an EventService. A nil queue disables events.
func NewEventService(queue eventDispatcher, metrics *MetricsService, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{queue: queue, metrics: metrics, logger: logger, now: time.Now}
}

// Emit records an event on behalf of a session. The acting identity is the
// impersonating user when there is one.
func (s *EventService) Emit(sess *models.Session, eventType models.ActivityEventType, message string, data interface{}) {
	if sess == nil {
		return
	}
	actor := sess.Email
	if sess.Actor != "" {
		actor = sess.Actor
	}
	s.Record(sess.ID, actor, eventType, message, data)
}

// Record queues an event without blocking the caller. Events are dropped
// when the queue is full.
func (s *EventService) Record(sessionID, actor string, eventType models.ActivityEventType, message string, data interface{}) {
	if s == nil || s.queue == nil {
		return
	}
	event := &models.ActivityEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Message:   message,
		Actor:     actor,
		SessionID: sessionID,
		CreatedAt: s.now().UTC(),
	}
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			s.logger.Warn("failed to encode event data", zap.String("type", string(eventType)), zap.Error(err))
		} else {
			event.Data = payload
		}
	}
	if err := s.queue.TryEnqueue(jobs.Job{ID: event.ID, Type: string(eventType), Payload: event}); err != nil {
		status := "failed"
		if errors.Is(err, jobs.ErrQueueFull) {
			status = "dropped"
		}
		s.metrics.RecordEvent(status)
		s.logger.Warn("activity event not queued", zap.String("type", string(eventType)), zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	s.metrics.RecordEvent("queued")
}

// EventWorker bridges queue jobs to the event repository.
type EventWorker struct {
	repo    eventRepository
	metrics *MetricsService
	logger  *zap.Logger
}

// NewEventWorker constructs a worker.
func NewEventWorker(repo eventRepository, metrics *MetricsService, logger *zap.Logger) *EventWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventWorker{repo: repo, metrics: metrics, logger: logger}
}

// Handle processes a queue job.
func (w *EventWorker) Handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(*models.ActivityEvent)
	if !ok || event == nil {
		w.logger.Error("unexpected event payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	if err := w.repo.Insert(ctx, event); err != nil {
		return fmt.Errorf("store activity event %s: %w", event.ID, err)
	}
	w.metrics.RecordEvent("stored")
	return nil
}
