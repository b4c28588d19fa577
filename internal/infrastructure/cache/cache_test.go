package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summary struct {
	Open  int     `json:"open"`
	Value float64 `json:"value"`
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedisCache(client, "crm:")
	ctx := context.Background()

	var got summary
	found, err := c.Get(ctx, "dash:u1", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "dash:u1", summary{Open: 3, Value: 1500.5}, time.Minute))
	assert.True(t, mr.Exists("crm:dash:u1"))

	found, err = c.Get(ctx, "dash:u1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, summary{Open: 3, Value: 1500.5}, got)

	mr.FastForward(2 * time.Minute)
	found, err = c.Get(ctx, "dash:u1", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "dash:u2", summary{}, time.Minute))
	require.NoError(t, c.Delete(ctx, "dash:u2", "missing"))
	assert.False(t, mr.Exists("crm:dash:u2"))
	require.NoError(t, c.Delete(ctx))
}

func TestRedisCache_CorruptValue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, mr.Set("dash:u1", "{broken"))
	var got summary
	_, err := NewRedisCache(client, "").Get(context.Background(), "dash:u1", &got)
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()

	_, err = Connect(context.Background(), "://bad")
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	var c Noop
	require.NoError(t, c.Set(context.Background(), "k", 1, time.Minute))
	found, err := c.Get(context.Background(), "k", new(int))
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, c.Delete(context.Background(), "k"))
}
