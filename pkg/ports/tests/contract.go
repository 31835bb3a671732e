package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunPlanStoreContract runs a suite of tests to verify that a PlanStore
// implementation adheres to the interface contract.
func RunPlanStoreContract(t *testing.T, store ports.PlanStore) {
	ctx := context.Background()
	plan := domain.ActionPlan{
		Title:   "Contract Plan",
		Summary: "Two steps",
		Content: "## Steps\n\n- Call [^1]\n- Visit",
	}

	t.Run("Save and Load", func(t *testing.T) {
		before := time.Now().Add(-time.Second)

		stored, err := store.Save(ctx, plan)
		require.NoError(t, err, "Save should not return error")
		assert.NotEmpty(t, stored.ID)
		assert.Equal(t, plan, stored.Plan)
		assert.True(t, stored.CreatedAt.After(before), "CreatedAt should be set")

		loaded, err := store.Load(ctx, stored.ID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, stored.ID, loaded.ID)
		assert.Equal(t, plan, loaded.Plan)
		assert.True(t, stored.CreatedAt.Equal(loaded.CreatedAt), "CreatedAt should round-trip")
	})

	t.Run("Distinct IDs", func(t *testing.T) {
		a, err := store.Save(ctx, plan)
		require.NoError(t, err)
		b, err := store.Save(ctx, plan)
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-plan")
		assert.ErrorIs(t, err, domain.ErrPlanNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		stored, err := store.Save(ctx, plan)
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, stored.ID), "Delete should not return error")

		_, err = store.Load(ctx, stored.ID)
		assert.ErrorIs(t, err, domain.ErrPlanNotFound, "Load after Delete should return ErrPlanNotFound")

		assert.NoError(t, store.Delete(ctx, stored.ID), "Deleting twice should not fail")
	})

	t.Run("List", func(t *testing.T) {
		a, err := store.Save(ctx, plan)
		require.NoError(t, err)
		b, err := store.Save(ctx, plan)
		require.NoError(t, err)
		defer func() {
			_ = store.Delete(ctx, a.ID)
			_ = store.Delete(ctx, b.ID)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, a.ID)
		assert.Contains(t, ids, b.ID)
	})

	t.Run("Concurrent Save", func(t *testing.T) {
		var wg sync.WaitGroup
		ids := make([]string, 8)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				stored, err := store.Save(ctx, plan)
				assert.NoError(t, err)
				ids[i] = stored.ID
			}(i)
		}
		wg.Wait()

		for _, id := range ids {
			_, err := store.Load(ctx, id)
			assert.NoError(t, err)
		}
	})
}
