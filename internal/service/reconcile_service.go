package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
	appErrors "github.com/noah-isme/kulate-stoly-api/pkg/errors"
)

type evaluationStore interface {
	LoadAll(ctx context.Context) ([]models.EvaluationRecord, error)
	Persist(ctx context.Context, rows []models.EvaluationRecord) (int, error)
	ModifiedWhen(ctx context.Context, keys []models.EvaluationKey) (map[models.EvaluationKey]models.Timestamp, error)
	Mode() string
}

type activityEmitter interface {
	Emit(sess *models.Session, eventType models.ActivityEventType, message string, data interface{})
}

// ReconcileConfig tunes the reconciliation engine.
type ReconcileConfig struct {
	// ConflictCheck refuses to overwrite rows whose warehouse modification
	// time moved since the session loaded them.
	ConflictCheck bool
	Now           func() time.Time
}

// ReconcileService merges accumulated edits with the last loaded warehouse
// state and writes them back.
type ReconcileService struct {
	store   evaluationStore
	events  activityEmitter
	metrics *MetricsService
	cfg     ReconcileConfig
	logger  *zap.Logger
}

// NewReconcileService constructs the reconciliation engine.
func NewReconcileService(store evaluationStore, events activityEmitter, metrics *MetricsService, cfg ReconcileConfig, logger *zap.Logger) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ReconcileService{store: store, events: events, metrics: metrics, cfg: cfg, logger: logger}
}

// Load reads the full evaluation table.
func (s *ReconcileService) Load(ctx context.Context) (*models.EvaluationDataset, error) {
	start := time.Now()
	records, err := s.store.LoadAll(ctx)
	s.metrics.ObserveDBQuery("evaluations_load", time.Since(start))
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrPersistence, "failed to load evaluations")
	}
	return models.NewEvaluationDataset(records), nil
}

// Save reconciles and persists the session's pending changes. On success the
// change set is cleared and the session is rebased on a fresh load. On
// failure the change set is left untouched.
func (s *ReconcileService) Save(ctx context.Context, sess *models.Session) (*models.SaveResult, error) {
	if sess.Changes.Empty() {
		s.metrics.RecordSave(OutcomeNoChanges, s.store.Mode(), 0)
		return nil, appErrors.ErrNoChanges
	}
	written, err := s.commit(ctx, sess, sess.Changes.Rows)
	if err != nil {
		return nil, err
	}
	sess.ClearChanges()
	if err := s.refresh(ctx, sess); err != nil {
		return nil, err
	}
	return &models.SaveResult{RowsWritten: written, Mode: s.store.Mode()}, nil
}

// Apply reconciles and persists patches outside the session's change set,
// then rebases the session. Pending edits are kept.
func (s *ReconcileService) Apply(ctx context.Context, sess *models.Session, patches []models.RowPatch) (int, error) {
	written, err := s.commit(ctx, sess, patches)
	if err != nil {
		return 0, err
	}
	if err := s.refresh(ctx, sess); err != nil {
		return written, err
	}
	return written, nil
}

// Reconcile turns sparse patches into complete rows ready for the warehouse:
// the acting user and time are stamped, unedited fields are backfilled from
// the session's loaded dataset, values are coerced to the column types and
// the lock timestamp rule is applied. Patches for the same key collapse into
// one row.
func (s *ReconcileService) Reconcile(sess *models.Session, patches []models.RowPatch) ([]models.EvaluationRecord, error) {
	now := models.NewTimestamp(s.cfg.Now())
	schema := models.EvaluationSchema
	rows := make([]models.EvaluationRecord, 0, len(patches))
	index := make(map[models.EvaluationKey]int, len(patches))

	for _, patch := range patches {
		key := patch.Key
		key.UserID = strings.TrimSpace(key.UserID)
		rec, known := sess.Dataset.Get(key)
		if pos, ok := index[key]; ok {
			rec, known = rows[pos], true
		}
		if !known {
			s.logger.Warn("changed row not found in loaded dataset, backfilling defaults",
				zap.String("session_id", sess.ID), zap.String("key", key.String()))
			rec = models.EvaluationRecord{UserID: key.UserID, Year: key.Year, Evaluation: key.Evaluation}
		}

		for _, column := range patch.Columns() {
			if isKeyColumn(column) || column == models.ColYearEvaluation {
				continue
			}
			if err := schema.Set(&rec, column, patch.Fields[column]); err != nil {
				return nil, fmt.Errorf("row %s: %w", key, err)
			}
		}
		rec.HistDataModifiedBy = sess.Email
		rec.HistDataModifiedWhen = now
		if rec.Locked() && rec.LockedTimestamp.IsSentinel() {
			rec.LockedTimestamp = now
		}

		if pos, ok := index[key]; ok {
			rows[pos] = rec
			continue
		}
		index[key] = len(rows)
		rows = append(rows, rec)
	}
	return rows, nil
}

func (s *ReconcileService) commit(ctx context.Context, sess *models.Session, patches []models.RowPatch) (int, error) {
	mode := s.store.Mode()
	rows, err := s.Reconcile(sess, patches)
	if err != nil {
		s.metrics.RecordSave(OutcomeFailure, mode, 0)
		return 0, appErrors.WrapAs(err, appErrors.ErrReconciliation, "")
	}

	if s.cfg.ConflictCheck {
		if err := s.checkConflicts(ctx, sess, rows); err != nil {
			if errors.Is(err, appErrors.ErrEditConflict) {
				s.metrics.RecordSave(OutcomeConflict, mode, 0)
				return 0, err
			}
			s.metrics.RecordSave(OutcomeFailure, mode, 0)
			return 0, appErrors.WrapAs(err, appErrors.ErrReconciliation, "")
		}
	}

	start := time.Now()
	written, err := s.store.Persist(ctx, rows)
	s.metrics.ObserveDBQuery("evaluations_persist", time.Since(start))
	if err != nil {
		s.metrics.RecordSave(OutcomeFailure, mode, 0)
		s.logger.Error("persisting reconciled rows failed", zap.String("session_id", sess.ID), zap.String("mode", mode), zap.Int("rows", len(rows)), zap.Error(err))
		cause := appErrors.WrapAs(err, appErrors.ErrPersistence, "")
		return 0, appErrors.WrapAs(cause, appErrors.ErrReconciliation, "")
	}

	s.metrics.RecordSave(OutcomeSuccess, mode, written)
	s.logger.Info("reconciled rows persisted", zap.String("session_id", sess.ID), zap.String("mode", mode), zap.Int("rows", written))
	if s.events != nil {
		s.events.Emit(sess, models.EventTableWrite, "Data written to the evaluation table", map[string]interface{}{
			"rows": written,
			"mode": mode,
			"keys": keyStrings(rows),
		})
	}
	return written, nil
}

func (s *ReconcileService) refresh(ctx context.Context, sess *models.Session) error {
	dataset, err := s.Load(ctx)
	if err != nil {
		return appErrors.WrapAs(err, appErrors.ErrPersistence, "changes were saved but reloading evaluations failed")
	}
	sess.Rebase(dataset, s.cfg.Now())
	if s.events != nil {
		s.events.Emit(sess, models.EventTableRead, "Evaluation table reloaded", map[string]interface{}{"rows": dataset.Len()})
	}
	return nil
}

// checkConflicts compares the modification time each row had when the
// session loaded it with the warehouse's current value.
func (s *ReconcileService) checkConflicts(ctx context.Context, sess *models.Session, rows []models.EvaluationRecord) error {
	keys := make([]models.EvaluationKey, 0, len(rows))
	for _, row := range rows {
		if _, ok := sess.Dataset.Get(row.Key()); ok {
			keys = append(keys, row.Key())
		}
	}
	if len(keys) == 0 {
		return nil
	}
	current, err := s.store.ModifiedWhen(ctx, keys)
	if err != nil {
		return err
	}
	conflicted := make([]string, 0)
	for _, key := range keys {
		loaded, _ := sess.Dataset.Get(key)
		latest, ok := current[key]
		if !ok {
			continue
		}
		if !latest.Equal(loaded.HistDataModifiedWhen) {
			conflicted = append(conflicted, key.String())
		}
	}
	if len(conflicted) > 0 {
		s.logger.Warn("edit conflict detected", zap.String("session_id", sess.ID), zap.Strings("keys", conflicted))
		return appErrors.Clone(appErrors.ErrEditConflict, fmt.Sprintf("%d row(s) were modified by someone else since they were loaded", len(conflicted)))
	}
	return nil
}

func isKeyColumn(column string) bool {
	for _, c := range models.PrimaryKeyColumns {
		if c == column {
			return true
		}
	}
	return false
}

func keyStrings(rows []models.EvaluationRecord) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row.Key().String()
	}
	return out
}
