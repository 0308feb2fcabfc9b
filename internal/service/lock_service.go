package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
	appErrors "github.com/noah-isme/kulate-stoly-api/pkg/errors"
)

type patchApplier interface {
	Apply(ctx context.Context, sess *models.Session, patches []models.RowPatch) (int, error)
}

// LockService locks every row of a view in one reconciliation pass.
type LockService struct {
	reconciler patchApplier
	events     activityEmitter
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time
}

// NewLockService constructs the locking workflow.
func NewLockService(reconciler patchApplier, events activityEmitter, metrics *MetricsService, logger *zap.Logger) *LockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LockService{reconciler: reconciler, events: events, metrics: metrics, logger: logger, now: time.Now}
}

// LockPatches builds an IS_LOCKED=1 patch per distinct key of view.
func LockPatches(view []models.EvaluationRecord) []models.RowPatch {
	patches := make([]models.RowPatch, 0, len(view))
	seen := make(map[models.EvaluationKey]struct{}, len(view))
	for _, rec := range view {
		key := rec.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		patches = append(patches, models.RowPatch{Key: key, Fields: map[string]interface{}{models.ColIsLocked: 1}})
	}
	return patches
}

// Lock sets IS_LOCKED on every row of view and persists the result straight
// through the reconciliation engine. The session's pending edits are not
// touched. Rows already locked keep their original lock timestamp. On
// success the grid identity is regenerated so clients reload.
func (s *LockService) Lock(ctx context.Context, sess *models.Session, view []models.EvaluationRecord) (*models.SaveResult, error) {
	if len(view) == 0 {
		return nil, appErrors.ErrNothingToLock
	}
	patches := LockPatches(view)
	written, err := s.reconciler.Apply(ctx, sess, patches)
	if err != nil {
		s.logger.Warn("locking rows failed", zap.String("session_id", sess.ID), zap.Int("rows", len(patches)), zap.Error(err))
		return nil, err
	}
	sess.InvalidateGrid(s.now())
	s.metrics.RecordLock(written)
	if s.events != nil {
		s.events.Emit(sess, models.EventRowsLocked, "Rows locked", map[string]interface{}{"rows": written})
	}
	return &models.SaveResult{RowsWritten: written, GridKey: sess.GridToken}, nil
}
