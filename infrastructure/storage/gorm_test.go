package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/foodgenie/foodgenie/internal/domain"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	store, err := Open("sqlite", ":memory:", zap.NewNop())
	require.NoError(t, err)
	return store
}

func sampleVerdict(id string, createdAt time.Time) domain.Verdict {
	return domain.Verdict{
		ID:          id,
		ProductName: "Salted Crackers",
		SafetyLevel: domain.SafetyCaution,
		Flags: []domain.Flag{
			{NutrientKey: "sodium_mg", Severity: domain.SeverityCaution, Reason: "sodium is close to your per-serving limit"},
		},
		Rationale:        "This product warrants caution given your health profile.",
		GroundingApplied: true,
		Profile: domain.FusedNutritionProfile{
			domain.NutrientSodiumMg: {
				Value:      600,
				Unit:       domain.UnitMilligram,
				Confidence: 0.9,
				Provenance: domain.ProvenanceBoth,
			},
		},
		CreatedAt: createdAt,
	}
}

func TestGormStoreSaveAndHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	verdict := sampleVerdict("v-1", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, store.Save(ctx, "user-1", verdict))

	history, err := store.History(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)

	got := history[0]
	assert.Equal(t, verdict.ID, got.ID)
	assert.Equal(t, verdict.SafetyLevel, got.SafetyLevel)
	assert.Equal(t, verdict.Flags, got.Flags)
	assert.Equal(t, verdict.Rationale, got.Rationale)
	assert.True(t, got.GroundingApplied)
	assert.Equal(t, verdict.Profile, got.Profile)
}

func TestGormStoreHistoryNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	for i := 0; i < 5; i++ {
		v := sampleVerdict(fmt.Sprintf("v-%d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Save(ctx, "user-1", v))
	}

	history, err := store.History(ctx, "user-1", 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "v-4", history[0].ID)
	assert.Equal(t, "v-3", history[1].ID)
	assert.Equal(t, "v-2", history[2].ID)
}

func TestGormStoreHistoryScopedToUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.Save(ctx, "user-1", sampleVerdict("v-a", now)))
	require.NoError(t, store.Save(ctx, "user-2", sampleVerdict("v-b", now)))

	history, err := store.History(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "v-a", history[0].ID)
}

func TestGormStoreHistoryEmpty(t *testing.T) {
	store := newTestStore(t)

	history, err := store.History(context.Background(), "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestGormStoreDefaultLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	for i := 0; i < defaultHistoryLimit+5; i++ {
		v := sampleVerdict(fmt.Sprintf("v-%d", i), base.Add(time.Duration(i)*time.Second))
		require.NoError(t, store.Save(ctx, "user-1", v))
	}

	history, err := store.History(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.Len(t, history, defaultHistoryLimit)
}

func TestGormStoreRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "dsn", zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}
