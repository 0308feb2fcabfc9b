package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
	"github.com/noah-isme/kulate-stoly-api/pkg/storage"
)

func TestFilterRepositoryListByCreator(t *testing.T) {
	db, mock, cleanup := newEvaluationRepoMock(t)
	defer cleanup()

	repo := NewFilterRepository(db, "kulate_stoly_filters")
	rows := sqlmock.NewRows([]string{"FILTER_NAME", "FILTER_CREATOR", "FILTERED_VALUES", "UPDATED_AT"}).
		AddRow("mine", "boss@example.com", `{"TEAM_CODE":{"filterType":"set","values":["A"]}}`, time.Now())
	mock.ExpectQuery(`SELECT "FILTER_NAME"`).WithArgs("boss@example.com").WillReturnRows(rows)

	filters, err := repo.ListByCreator(context.Background(), "boss@example.com")
	require.NoError(t, err)
	require.Len(t, filters, 1)
	model, err := filters[0].Model()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"A"}, model["TEAM_CODE"].Values)
}

func TestFilterRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newEvaluationRepoMock(t)
	defer cleanup()

	repo := NewFilterRepository(db, "kulate_stoly_filters")
	mock.ExpectExec(`INSERT INTO "kulate_stoly_filters"`).
		WithArgs("mine", "boss@example.com", "{}", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Upsert(context.Background(), models.SavedFilter{Name: "mine", Creator: "boss@example.com", FilteredValues: "{}"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterCSVStoreUpsertReplacesByNameAndCreator(t *testing.T) {
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	store := NewFilterCSVStore(local, "")
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, models.SavedFilter{Name: "b", Creator: "boss@example.com", FilteredValues: `{"x":1}`}))
	require.NoError(t, store.Upsert(ctx, models.SavedFilter{Name: "a", Creator: "boss@example.com", FilteredValues: "{}"}))
	require.NoError(t, store.Upsert(ctx, models.SavedFilter{Name: "a", Creator: "other@example.com", FilteredValues: "{}"}))
	require.NoError(t, store.Upsert(ctx, models.SavedFilter{Name: "b", Creator: "boss@example.com", FilteredValues: `{"x":2}`}))

	filters, err := store.ListByCreator(ctx, "boss@example.com")
	require.NoError(t, err)
	require.Len(t, filters, 2)
	assert.Equal(t, "a", filters[0].Name)
	assert.Equal(t, `{"x":2}`, filters[1].FilteredValues)
	assert.False(t, filters[1].UpdatedAt.IsZero())
}
