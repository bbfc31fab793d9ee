package repository

import (
	"context"
	"testing"
	"time"

	svcerror "github.com/benko325/delivery-platform/pkg/error"
	"github.com/benko325/delivery-platform/pkg/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cartIdFn(c models.Cart) string { return c.CustomerId }

func sampleCart(customerId string) models.Cart {
	return models.Cart{
		CartId:       "cart-" + customerId,
		CustomerId:   customerId,
		RestaurantId: "resto-1",
		Items: []models.OrderItem{
			{MenuItemId: "burger", Name: "Burger", PriceCents: 899, Currency: "USD", Quantity: 2},
		},
		Currency:  "USD",
		UpdatedAt: time.Now().UTC(),
	}
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("save then load", func(t *testing.T) {
		repo := NewMemoryRepo(cartIdFn)
		cart := sampleCart("cust-1")

		require.NoError(t, repo.Save(ctx, cart))

		got, err := repo.Load(ctx, "cust-1")
		require.NoError(t, err)
		assert.Equal(t, cart.CartId, got.CartId)
	})

	t.Run("load missing is not found", func(t *testing.T) {
		repo := NewMemoryRepo(cartIdFn)

		_, err := repo.Load(ctx, "nope")

		require.Error(t, err)
		assert.ErrorIs(t, err, svcerror.ErrNotFound)
	})

	t.Run("update requires existing entity", func(t *testing.T) {
		repo := NewMemoryRepo(cartIdFn)

		err := repo.Update(ctx, sampleCart("cust-1"))

		require.Error(t, err)
		assert.ErrorIs(t, err, svcerror.ErrNotFound)
	})

	t.Run("delete removes the entity", func(t *testing.T) {
		repo := NewMemoryRepo(cartIdFn)
		require.NoError(t, repo.Save(ctx, sampleCart("cust-1")))

		require.NoError(t, repo.Delete(ctx, "cust-1"))

		_, err := repo.Load(ctx, "cust-1")
		assert.ErrorIs(t, err, svcerror.ErrNotFound)
	})

	t.Run("list returns everything", func(t *testing.T) {
		repo := NewMemoryRepo(cartIdFn)
		require.NoError(t, repo.Save(ctx, sampleCart("cust-1")))
		require.NoError(t, repo.Save(ctx, sampleCart("cust-2")))

		all, err := repo.List(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func newTestRedis(t *testing.T, ttl time.Duration) (RedisCache[models.Cart], *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	repo, err := NewRedisCache(context.Background(), RedisConfig{Address: mr.Addr()}, ttl, cartIdFn)
	require.NoError(t, err)
	return repo, mr
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()

	t.Run("save then load round-trips the entity", func(t *testing.T) {
		repo, _ := newTestRedis(t, 0)
		cart := sampleCart("cust-1")

		require.NoError(t, repo.Save(ctx, cart))

		got, err := repo.Load(ctx, "cust-1")
		require.NoError(t, err)
		assert.Equal(t, cart.CartId, got.CartId)
		require.Len(t, got.Items, 1)
		assert.Equal(t, int64(2), got.Items[0].Quantity)
	})

	t.Run("load missing maps redis nil to not found", func(t *testing.T) {
		repo, _ := newTestRedis(t, 0)

		_, err := repo.Load(ctx, "nope")

		require.Error(t, err)
		assert.ErrorIs(t, err, svcerror.ErrNotFound)
	})

	t.Run("update requires existing key", func(t *testing.T) {
		repo, _ := newTestRedis(t, 0)

		err := repo.Update(ctx, sampleCart("cust-1"))

		require.Error(t, err)
		assert.ErrorIs(t, err, svcerror.ErrNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		repo, _ := newTestRedis(t, 0)
		require.NoError(t, repo.Save(ctx, sampleCart("cust-1")))

		require.NoError(t, repo.Delete(ctx, "cust-1"))
		require.NoError(t, repo.Delete(ctx, "cust-1"))
	})

	t.Run("entries expire after the ttl", func(t *testing.T) {
		repo, mr := newTestRedis(t, time.Minute)
		require.NoError(t, repo.Save(ctx, sampleCart("cust-1")))

		mr.FastForward(2 * time.Minute)

		_, err := repo.Load(ctx, "cust-1")
		assert.ErrorIs(t, err, svcerror.ErrNotFound)
	})

	t.Run("list is unsupported", func(t *testing.T) {
		repo, _ := newTestRedis(t, 0)

		_, err := repo.List(ctx, nil)

		require.Error(t, err)
		assert.ErrorIs(t, err, svcerror.ErrRepositoryError)
	})
}

func TestRedisCache_SetNX(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	repo, err := NewRedisCache(context.Background(), RedisConfig{Address: mr.Addr()}, time.Hour,
		func(m models.SeenMessage) string { return m.MessageId })
	require.NoError(t, err)

	msg := models.SeenMessage{MessageId: "seen:msg-1", SeenAt: time.Now().UTC()}

	fresh, err := repo.SetNX(ctx, msg)
	require.NoError(t, err)
	assert.True(t, fresh, "first claim wins")

	fresh, err = repo.SetNX(ctx, msg)
	require.NoError(t, err)
	assert.False(t, fresh, "second claim of the same message id must lose")
}
