package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
	appErrors "github.com/noah-isme/kulate-stoly-api/pkg/errors"
)

type fakeEvaluationStore struct {
	rows         map[models.EvaluationKey]models.EvaluationRecord
	order        []models.EvaluationKey
	persisted    [][]models.EvaluationRecord
	persistErr   error
	loadErr      error
	modified     map[models.EvaluationKey]models.Timestamp
	loadCalls    int
	conflictKeys []models.EvaluationKey
}

func newFakeEvaluationStore(records ...models.EvaluationRecord) *fakeEvaluationStore {
	store := &fakeEvaluationStore{rows: make(map[models.EvaluationKey]models.EvaluationRecord)}
	for _, rec := range records {
		store.put(rec)
	}
	return store
}

func (f *fakeEvaluationStore) put(rec models.EvaluationRecord) {
	if _, ok := f.rows[rec.Key()]; !ok {
		f.order = append(f.order, rec.Key())
	}
	f.rows[rec.Key()] = rec
}

func (f *fakeEvaluationStore) LoadAll(ctx context.Context) ([]models.EvaluationRecord, error) {
	f.loadCalls++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := make([]models.EvaluationRecord, 0, len(f.order))
	for _, key := range f.order {
		out = append(out, f.rows[key])
	}
	return out, nil
}

func (f *fakeEvaluationStore) Persist(ctx context.Context, rows []models.EvaluationRecord) (int, error) {
	if f.persistErr != nil {
		return 0, f.persistErr
	}
	f.persisted = append(f.persisted, rows)
	for _, rec := range rows {
		f.put(rec)
	}
	return len(rows), nil
}

func (f *fakeEvaluationStore) ModifiedWhen(ctx context.Context, keys []models.EvaluationKey) (map[models.EvaluationKey]models.Timestamp, error) {
	f.conflictKeys = keys
	if f.modified != nil {
		return f.modified, nil
	}
	out := make(map[models.EvaluationKey]models.Timestamp, len(keys))
	for _, key := range keys {
		if rec, ok := f.rows[key]; ok {
			out[key] = rec.HistDataModifiedWhen
		}
	}
	return out, nil
}

func (f *fakeEvaluationStore) Mode() string { return "fake" }

type recordingEmitter struct {
	types []models.ActivityEventType
}

func (r *recordingEmitter) Emit(sess *models.Session, eventType models.ActivityEventType, message string, data interface{}) {
	r.types = append(r.types, eventType)
}

var reconcileNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func sampleRecord(id string) models.EvaluationRecord {
	return models.EvaluationRecord{
		UserID:             id,
		Year:               2024,
		Evaluation:         1,
		EmailAddress:       id + "@x.cz",
		DirectManagerEmail: "boss@x.cz",
		FullName:           "Person " + id,
		Vykon:              3,
		Hodnoty:            3,
		Potencial:          "střední",
		Poznamky:           "original",
		HistDataModifiedBy: "loader@x.cz",
	}
}

func newReconcileFixture(t *testing.T, cfg ReconcileConfig, records ...models.EvaluationRecord) (*ReconcileService, *fakeEvaluationStore, *recordingEmitter, *models.Session) {
	t.Helper()
	store := newFakeEvaluationStore(records...)
	events := &recordingEmitter{}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return reconcileNow }
	}
	svc := NewReconcileService(store, events, NewMetricsService(), cfg, zap.NewNop())
	dataset, err := svc.Load(context.Background())
	require.NoError(t, err)
	sess := models.NewSession("s1", "editor@x.cz", models.RoleBP, dataset, reconcileNow)
	return svc, store, events, sess
}

func TestReconcileBackfillsUneditedFields(t *testing.T) {
	svc, _, _, sess := newReconcileFixture(t, ReconcileConfig{}, sampleRecord("u1"))
	key := sampleRecord("u1").Key()

	rows, err := svc.Reconcile(sess, []models.RowPatch{
		{Key: key, Fields: map[string]interface{}{models.ColHodnoty: 5}},
		{Key: key, Fields: map[string]interface{}{models.ColPoznamky: "calibrated", models.ColUserID: "hijack"}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, key, row.Key())
	assert.Equal(t, 5, row.Hodnoty)
	assert.Equal(t, "calibrated", row.Poznamky)
	assert.Equal(t, 3, row.Vykon)
	assert.Equal(t, "střední", row.Potencial)
	assert.Equal(t, "Person u1", row.FullName)
	assert.Equal(t, "editor@x.cz", row.HistDataModifiedBy)
	assert.Equal(t, "2024-06-01 10:00:00.000", row.HistDataModifiedWhen.String())
	assert.True(t, row.LockedTimestamp.IsSentinel())
}

func TestReconcileUnknownKeyUsesDefaults(t *testing.T) {
	svc, _, _, sess := newReconcileFixture(t, ReconcileConfig{}, sampleRecord("u1"))
	key := models.EvaluationKey{UserID: " ghost ", Year: 2024, Evaluation: 1}

	rows, err := svc.Reconcile(sess, []models.RowPatch{{Key: key, Fields: map[string]interface{}{models.ColVykon: 2}}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ghost", rows[0].UserID)
	assert.Equal(t, 2, rows[0].Vykon)
	assert.Empty(t, rows[0].FullName)
}

func TestReconcileLockTimestamp(t *testing.T) {
	already := sampleRecord("u2")
	already.IsLocked = 1
	already.LockedTimestamp = models.NewTimestamp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	svc, _, _, sess := newReconcileFixture(t, ReconcileConfig{}, sampleRecord("u1"), already)

	rows, err := svc.Reconcile(sess, []models.RowPatch{
		{Key: sampleRecord("u1").Key(), Fields: map[string]interface{}{models.ColIsLocked: 1}},
		{Key: already.Key(), Fields: map[string]interface{}{models.ColIsLocked: 1}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-06-01 10:00:00.000", rows[0].LockedTimestamp.String())
	assert.Equal(t, "2024-01-01 00:00:00.000", rows[1].LockedTimestamp.String())
}

func TestSavePersistsAndRebases(t *testing.T) {
	svc, store, events, sess := newReconcileFixture(t, ReconcileConfig{}, sampleRecord("u1"), sampleRecord("u2"))
	key := sampleRecord("u1").Key()
	sess.Accumulate([]models.RowPatch{{Key: key, Fields: map[string]interface{}{models.ColVykon: 5}}})

	result, err := svc.Save(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowsWritten)
	assert.Equal(t, "fake", result.Mode)
	require.Len(t, store.persisted, 1)
	assert.Len(t, store.persisted[0], 1)

	assert.True(t, sess.Changes.Empty())
	assert.False(t, sess.Unsaved)
	reloaded, ok := sess.Dataset.Get(key)
	require.True(t, ok)
	assert.Equal(t, 5, reloaded.Vykon)
	assert.Equal(t, 5, sess.Baseline[key].Vykon)
	assert.Equal(t, 2, store.loadCalls)
	assert.Equal(t, []models.ActivityEventType{models.EventTableWrite, models.EventTableRead}, events.types)
}

func TestSaveTwiceKeepsOriginalLockTimestamp(t *testing.T) {
	clock := reconcileNow
	svc, store, _, sess := newReconcileFixture(t, ReconcileConfig{Now: func() time.Time { return clock }}, sampleRecord("u1"))
	key := sampleRecord("u1").Key()

	sess.Accumulate([]models.RowPatch{{Key: key, Fields: map[string]interface{}{models.ColIsLocked: 1}}})
	_, err := svc.Save(context.Background(), sess)
	require.NoError(t, err)
	first := store.rows[key].LockedTimestamp

	clock = clock.Add(48 * time.Hour)
	sess.Accumulate([]models.RowPatch{{Key: key, Fields: map[string]interface{}{models.ColPoznamky: "later"}}})
	_, err = svc.Save(context.Background(), sess)
	require.NoError(t, err)

	assert.True(t, first.Equal(store.rows[key].LockedTimestamp))
	assert.Equal(t, "2024-06-03 10:00:00.000", store.rows[key].HistDataModifiedWhen.String())
}

func TestSaveWithoutChanges(t *testing.T) {
	svc, store, _, sess := newReconcileFixture(t, ReconcileConfig{}, sampleRecord("u1"))

	_, err := svc.Save(context.Background(), sess)
	assert.ErrorIs(t, err, appErrors.ErrNoChanges)
	assert.Empty(t, store.persisted)
}

func TestSaveFailureKeepsChanges(t *testing.T) {
	svc, store, _, sess := newReconcileFixture(t, ReconcileConfig{}, sampleRecord("u1"))
	store.persistErr = errors.New("warehouse down")
	sess.Accumulate([]models.RowPatch{{Key: sampleRecord("u1").Key(), Fields: map[string]interface{}{models.ColVykon: 1}}})

	_, err := svc.Save(context.Background(), sess)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrReconciliation)
	assert.ErrorIs(t, err, appErrors.ErrPersistence)
	assert.Equal(t, 1, sess.Changes.Len())
	assert.True(t, sess.Unsaved)
	assert.Equal(t, 1, store.loadCalls)
}

func TestSaveReloadFailureAfterWrite(t *testing.T) {
	svc, store, _, sess := newReconcileFixture(t, ReconcileConfig{}, sampleRecord("u1"))
	store.loadErr = errors.New("read timeout")
	sess.Accumulate([]models.RowPatch{{Key: sampleRecord("u1").Key(), Fields: map[string]interface{}{models.ColVykon: 1}}})

	_, err := svc.Save(context.Background(), sess)
	assert.ErrorIs(t, err, appErrors.ErrPersistence)
	assert.Len(t, store.persisted, 1)
	assert.True(t, sess.Changes.Empty())
}

func TestSaveConflictCheck(t *testing.T) {
	svc, store, _, sess := newReconcileFixture(t, ReconcileConfig{ConflictCheck: true}, sampleRecord("u1"), sampleRecord("u2"))
	key := sampleRecord("u1").Key()
	store.modified = map[models.EvaluationKey]models.Timestamp{
		key: models.NewTimestamp(reconcileNow.Add(-time.Minute)),
	}
	sess.Accumulate([]models.RowPatch{
		{Key: key, Fields: map[string]interface{}{models.ColVykon: 1}},
		{Key: models.EvaluationKey{UserID: "new", Year: 2024, Evaluation: 1}, Fields: map[string]interface{}{models.ColVykon: 1}},
	})

	_, err := svc.Save(context.Background(), sess)
	assert.ErrorIs(t, err, appErrors.ErrEditConflict)
	assert.Equal(t, []models.EvaluationKey{key}, store.conflictKeys)
	assert.Empty(t, store.persisted)
	assert.Equal(t, 2, sess.Changes.Len())

	store.modified = nil
	_, err = svc.Save(context.Background(), sess)
	require.NoError(t, err)
	assert.Len(t, store.persisted, 1)
}

func TestApplyKeepsPendingChanges(t *testing.T) {
	svc, store, _, sess := newReconcileFixture(t, ReconcileConfig{}, sampleRecord("u1"), sampleRecord("u2"))
	pending := models.RowPatch{Key: sampleRecord("u2").Key(), Fields: map[string]interface{}{models.ColPoznamky: "draft"}}
	sess.Accumulate([]models.RowPatch{pending})

	written, err := svc.Apply(context.Background(), sess, LockPatches([]models.EvaluationRecord{sampleRecord("u1")}))
	require.NoError(t, err)
	assert.Equal(t, 1, written)
	assert.Equal(t, 1, store.rows[sampleRecord("u1").Key()].IsLocked)
	assert.Equal(t, "original", store.rows[sampleRecord("u2").Key()].Poznamky)
	assert.Equal(t, 1, sess.Changes.Len())
	assert.True(t, sess.Unsaved)
	assert.Equal(t, "draft", sess.Baseline[pending.Key].Poznamky)
	assert.Equal(t, 1, sess.Baseline[sampleRecord("u1").Key()].IsLocked)
}
