package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
)

func detectorBaseline() map[models.EvaluationKey]models.EvaluationRecord {
	rec := models.EvaluationRecord{UserID: "u1", Year: 2024, Evaluation: 1, Vykon: 3, Hodnoty: 2, Potencial: "střední"}
	return map[models.EvaluationKey]models.EvaluationRecord{rec.Key(): rec}
}

func TestDetectEmitsOnlyChangedColumns(t *testing.T) {
	detector := NewEditDetector()
	rows := []models.GridRow{{
		models.ColUserID:         "u1",
		models.ColYear:           2024.0,
		models.ColEvaluation:     "1",
		models.ColVykon:          "3",
		models.ColHodnoty:        4.0,
		models.ColPotencial:      "střední",
		models.ColYearEvaluation: "2024-1",
		models.ColModifiedWhen:   "2030-01-01 00:00:00.000",
		"GRID_ONLY_COLUMN":       "ignored",
	}}

	det, err := detector.Detect(rows, detectorBaseline())
	require.NoError(t, err)
	require.Len(t, det.Diff, 1)
	assert.Equal(t, map[string]interface{}{models.ColHodnoty: 4}, det.Diff[0].Fields)

	rendered := det.Rendered[det.Diff[0].Key]
	assert.Equal(t, 4, rendered.Hodnoty)
	assert.Equal(t, 3, rendered.Vykon)
}

func TestDetectUnchangedRenderIsEmpty(t *testing.T) {
	detector := NewEditDetector()
	base := detectorBaseline()
	var rows []models.GridRow
	for _, rec := range base {
		rows = append(rows, models.GridRow(models.EvaluationSchema.Map(rec)))
	}

	det, err := detector.Detect(rows, base)
	require.NoError(t, err)
	assert.Empty(t, det.Diff)
	assert.Len(t, det.Rendered, 1)
}

func TestDetectMatchesPaddedUserID(t *testing.T) {
	rec := models.EvaluationRecord{UserID: "42", Year: 2024, Evaluation: 1, Hodnoty: 2}
	base := map[models.EvaluationKey]models.EvaluationRecord{rec.Key(): rec}
	row := models.GridRow(models.EvaluationSchema.Map(rec))
	row[models.ColUserID] = " 42"
	row[models.ColHodnoty] = 4

	det, err := NewEditDetector().Detect([]models.GridRow{row}, base)
	require.NoError(t, err)
	require.Len(t, det.Diff, 1)
	assert.Equal(t, "42", det.Diff[0].Key.UserID)
	assert.Equal(t, map[string]interface{}{models.ColHodnoty: 4}, det.Diff[0].Fields)
	assert.Equal(t, "42", det.Rendered[rec.Key()].UserID)
}

func TestDetectUnknownRowIsAdoptedNotDiffed(t *testing.T) {
	detector := NewEditDetector()
	rows := []models.GridRow{{
		models.ColUserID:     "new",
		models.ColYear:       2024,
		models.ColEvaluation: 1,
		models.ColVykon:      5,
	}}

	det, err := detector.Detect(rows, detectorBaseline())
	require.NoError(t, err)
	assert.Empty(t, det.Diff)
	adopted := det.Rendered[models.EvaluationKey{UserID: "new", Year: 2024, Evaluation: 1}]
	assert.Equal(t, 5, adopted.Vykon)
}

func TestDetectRejectsRowWithoutKey(t *testing.T) {
	_, err := NewEditDetector().Detect([]models.GridRow{{models.ColUserID: "u1", models.ColVykon: 1}}, nil)
	assert.Error(t, err)
}

func TestEditPolicyByRole(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	policy := NewEditPolicy(30*24*time.Hour, func() time.Time { return now })

	open := models.EvaluationRecord{UserID: "u1", Year: 2024, Evaluation: 1, DirectManagerEmail: "boss@x.cz"}
	recentLock := open
	recentLock.IsLocked = 1
	recentLock.LockedTimestamp = models.NewTimestamp(now.Add(-24 * time.Hour))
	oldLock := open
	oldLock.IsLocked = 1
	oldLock.LockedTimestamp = models.NewTimestamp(now.Add(-60 * 24 * time.Hour))
	sentinelLock := open
	sentinelLock.IsLocked = 1

	assert.True(t, policy.RowEditable(open, models.RoleMA, "BOSS@x.cz"))
	assert.False(t, policy.RowEditable(open, models.RoleMA, "other@x.cz"))
	assert.False(t, policy.RowEditable(recentLock, models.RoleMA, "boss@x.cz"))

	assert.True(t, policy.RowEditable(open, models.RoleBP, ""))
	assert.True(t, policy.RowEditable(recentLock, models.RoleBP, ""))
	assert.False(t, policy.RowEditable(oldLock, models.RoleBP, ""))
	assert.False(t, policy.RowEditable(sentinelLock, models.RoleBP, ""))

	assert.False(t, policy.RowEditable(open, models.RoleLC, ""))
	assert.True(t, policy.RowEditable(oldLock, models.RoleDev, ""))
	assert.True(t, policy.RowEditable(oldLock, models.RoleTest, ""))

	assert.True(t, policy.LockEditable(open, models.RoleBP))
	assert.False(t, policy.LockEditable(recentLock, models.RoleBP))
	assert.False(t, policy.LockEditable(open, models.RoleMA))
	assert.True(t, policy.LockEditable(recentLock, models.RoleDev))
}

func TestEditPolicyCellReasons(t *testing.T) {
	policy := NewEditPolicy(0, nil)
	open := models.EvaluationRecord{UserID: "u1", Year: 2024, Evaluation: 1, DirectManagerEmail: "boss@x.cz"}
	locked := open
	locked.IsLocked = 1

	ok, reason := policy.CellEditable(open, models.ColPoznamky, models.RoleMA, "boss@x.cz")
	assert.True(t, ok)
	assert.Empty(t, reason)

	ok, reason = policy.CellEditable(open, models.ColFullName, models.RoleDev, "")
	assert.False(t, ok)
	assert.Equal(t, "column is read-only", reason)

	ok, reason = policy.CellEditable(locked, models.ColVykon, models.RoleMA, "boss@x.cz")
	assert.False(t, ok)
	assert.Equal(t, "row is locked", reason)

	ok, reason = policy.CellEditable(open, models.ColVykon, models.RoleMA, "someone@x.cz")
	assert.False(t, ok)
	assert.Equal(t, "row is outside the editable scope of this role", reason)

	ok, _ = policy.CellEditable(open, models.ColIsLocked, models.RoleLC, "")
	assert.False(t, ok)
}
