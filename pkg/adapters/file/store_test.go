package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/waypoint/pkg/adapters/file"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/aretw0/waypoint/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.PlanStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	tests.RunPlanStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_Layout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "plans")
	store := file.New(dir)
	ctx := context.Background()

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids, "missing directory lists as empty")

	stored, err := store.Save(ctx, domain.ActionPlan{Title: "T", Summary: "S", Content: "C"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, stored.ID+".json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"title": "T"`)

	// Stray files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0o644))

	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{stored.ID}, ids)
}

func TestFileStore_RejectsForeignIDs(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(filepath.Dir(dir), "secret.json")
	store := file.New(dir)

	_, err := store.Load(context.Background(), "../secret")
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)
	assert.NoError(t, store.Delete(context.Background(), "../secret"))
	_, statErr := os.Stat(outside)
	assert.True(t, os.IsNotExist(statErr))
}
