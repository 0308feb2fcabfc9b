package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
	"github.com/noah-isme/kulate-stoly-api/pkg/storage"
)

func newCSVStore(t *testing.T, content string) (*EvaluationCSVStore, string) {
	dir := t.TempDir()
	if content != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "evaluations.csv"), []byte(content), 0o644))
	}
	local, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	return NewEvaluationCSVStore(local, "evaluations.csv"), filepath.Join(dir, "evaluations.csv")
}

func TestEvaluationCSVStoreMissingFileIsEmpty(t *testing.T) {
	store, _ := newCSVStore(t, "")
	records, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, "local", store.Mode())
}

func TestEvaluationCSVStoreLoadAll(t *testing.T) {
	store, _ := newCSVStore(t, "USER_ID,YEAR,EVALUATION,FULL_NAME,VYKON,POTENCIAL,EXTRA\n"+
		"u-1,2024,1,Jan Novák,4,vysoký,x\n"+
		"u-2,2024,1,Eva Malá,abc,,y\n")

	records, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 4, records[0].Vykon)
	assert.Equal(t, "vysoký", records[0].Potencial)
	assert.Equal(t, 0, records[1].Vykon)
	assert.True(t, records[1].LockedTimestamp.IsSentinel())
}

func TestEvaluationCSVStoreRejectsRowWithoutKey(t *testing.T) {
	store, _ := newCSVStore(t, "USER_ID,YEAR,EVALUATION\n,2024,1\n")
	_, err := store.LoadAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestEvaluationCSVStorePersistUpdatesAndAppends(t *testing.T) {
	store, path := newCSVStore(t, "USER_ID,YEAR,EVALUATION,FULL_NAME,VYKON,EXTRA\n"+
		"u-1,2024,1,Jan Novák,1,keep\n")
	ctx := context.Background()

	existing := models.EvaluationRecord{UserID: "u-1", Year: 2024, Evaluation: 1, FullName: "ignored", Vykon: 5}
	added := models.EvaluationRecord{UserID: "u-9", Year: 2024, Evaluation: 2, FullName: "Nový", Hodnoty: 2,
		HistDataModifiedWhen: models.NewTimestamp(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))}

	written, err := store.Persist(ctx, []models.EvaluationRecord{existing, added})
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	records, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 5, records[0].Vykon)
	assert.Equal(t, "Jan Novák", records[0].FullName, "non write-back columns stay untouched")
	assert.Equal(t, "Nový", records[1].FullName)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "USER_ID,YEAR,EVALUATION,FULL_NAME,VYKON,EXTRA,"))
	assert.Contains(t, string(raw), "keep")

	modified, err := store.ModifiedWhen(ctx, []models.EvaluationKey{added.Key(), {UserID: "missing", Year: 1, Evaluation: 1}})
	require.NoError(t, err)
	require.Len(t, modified, 1)
	assert.True(t, modified[added.Key()].Equal(added.HistDataModifiedWhen))
}
