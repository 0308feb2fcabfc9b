package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
	appErrors "github.com/noah-isme/kulate-stoly-api/pkg/errors"
)

func TestMemorySessionStoreRoundTrip(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	dataset := models.NewEvaluationDataset([]models.EvaluationRecord{sampleEvaluation("u-1", 2024, 1)})
	sess := models.NewSession("s-1", "Boss@Example.com", models.RoleBP, dataset, now)
	sess.Accumulate([]models.RowPatch{{
		Key:    models.EvaluationKey{UserID: "u-1", Year: 2024, Evaluation: 1},
		Fields: map[string]interface{}{models.ColVykon: 5},
	}})
	require.NoError(t, store.Save(ctx, sess, time.Hour))

	loaded, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "boss@example.com", loaded.Email)
	assert.True(t, loaded.Unsaved)
	require.Len(t, loaded.Changes.Rows, 1)
	assert.Equal(t, 5, loaded.Changes.Rows[0].Fields[models.ColVykon])
	rec, ok := loaded.Dataset.Get(models.EvaluationKey{UserID: "u-1", Year: 2024, Evaluation: 1})
	require.True(t, ok)
	assert.Equal(t, "Jan Novák", rec.FullName)

	loaded.Email = "mutated@example.com"
	again, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "boss@example.com", again.Email)
}

func TestMemorySessionStoreExpiry(t *testing.T) {
	store := NewMemorySessionStore()
	clock := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &models.Session{ID: "short"}, time.Minute))
	require.NoError(t, store.Save(ctx, &models.Session{ID: "long"}, time.Hour))
	require.NoError(t, store.Save(ctx, &models.Session{ID: "stale"}, time.Second))

	clock = clock.Add(2 * time.Minute)
	_, err := store.Get(ctx, "short")
	assert.ErrorIs(t, err, appErrors.ErrSessionNotFound)
	assert.Equal(t, 1, store.Sweep())

	_, err = store.Get(ctx, "long")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "long"))
	_, err = store.Get(ctx, "long")
	assert.ErrorIs(t, err, appErrors.ErrSessionNotFound)
}
