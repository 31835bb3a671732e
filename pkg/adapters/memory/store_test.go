package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/aretw0/waypoint/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.PlanStore = (*memory.Store)(nil)

func TestMemoryStore_Contract(t *testing.T) {
	tests.RunPlanStoreContract(t, memory.NewStore())
}

func TestMemoryStore_ListOrder(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	var want []string
	for i := 0; i < 3; i++ {
		stored, err := store.Save(ctx, domain.ActionPlan{Title: "T", Summary: "S", Content: "C"})
		require.NoError(t, err)
		want = append(want, stored.ID)
	}

	got, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, want, got)
}
