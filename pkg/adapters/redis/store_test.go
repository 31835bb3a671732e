package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/waypoint/pkg/adapters/redis"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/aretw0/waypoint/pkg/ports/tests"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.PlanStore = (*redis.Store)(nil)

var testPlan = domain.ActionPlan{Title: "T", Summary: "S", Content: "Line 1\nLine 2"}

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	tests.RunPlanStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_ContractWithTTL(t *testing.T) {
	_, client := newClient(t)
	tests.RunPlanStoreContract(t, redis.NewFromClient(client, redis.WithTTL(time.Hour)))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithTTL(50*time.Millisecond))
	ctx := context.Background()

	stored, err := store.Save(ctx, testPlan)
	require.NoError(t, err)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, stored.ID)

	// Key expiration is driven by miniredis time, index pruning by wall time.
	mr.FastForward(time.Second)
	time.Sleep(100 * time.Millisecond)

	_, err = store.Load(ctx, stored.ID)
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)

	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	stored, err := store.Save(ctx, testPlan)
	require.NoError(t, err)

	assert.True(t, mr.Exists("custom:app:"+stored.ID), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")

	raw, err := mr.Get("custom:app:" + stored.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "`+stored.ID+`",
		"plan": {"title": "T", "summary": "S", "content": "Line 1\nLine 2"},
		"created_at": "`+stored.CreatedAt.Format(time.RFC3339Nano)+`"
	}`, raw)
}

func TestRedisStore_ListOldestFirst(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	first, err := store.Save(ctx, testPlan)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := store.Save(ctx, testPlan)
	require.NoError(t, err)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID}, ids)
}

func TestRedisStore_Ping(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)

	assert.NoError(t, store.Ping(context.Background()))

	mr.Close()
	assert.Error(t, store.Ping(context.Background()))
}
