package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisBridge_RelaysBetweenHubs(t *testing.T) {
	mr := miniredis.RunT(t)
	clientA := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer clientA.Close()
	clientB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer clientB.Close()

	hubA := NewHub(NewRedisBridge(clientA, "test:changes"))
	hubB := NewHub(NewRedisBridge(clientB, "test:changes"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	for _, h := range []*Hub{hubA, hubB} {
		go func(h *Hub) {
			_ = h.Run(ctx)
			done <- struct{}{}
		}(h)
	}
	defer func() {
		cancel()
		<-done
		<-done
	}()

	sub, unsubscribe := hubB.Subscribe("alice", nil)
	defer unsubscribe()

	require.Eventually(t, func() bool {
		return hubA.Relaying() && hubB.Relaying()
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, mr.PubSubNumSub("test:changes")["test:changes"])

	require.NoError(t, hubA.Publish(context.Background(), change("alice", "deals", "d1")))

	select {
	case c := <-sub.C():
		assert.Equal(t, "d1", c.RecordID)
		assert.Equal(t, "deals", c.Table)
	case <-time.After(2 * time.Second):
		t.Fatal("change was not relayed")
	}
}

func TestRedisBridge_SkipsMalformedPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hub := NewHub(NewRedisBridge(client, ""))
	sub, unsubscribe := hub.Subscribe("alice", nil)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, hub.Relaying, 2*time.Second, 10*time.Millisecond)

	mr.Publish("crm:changes", "not json")
	require.NoError(t, hub.Publish(context.Background(), change("alice", "tasks", "t1")))

	select {
	case c := <-sub.C():
		assert.Equal(t, "t1", c.RecordID)
	case <-time.After(2 * time.Second):
		t.Fatal("valid change was not delivered")
	}
}

func TestRedisBridge_SubscribeFailureFallsBackToLocalDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	hub := NewHub(NewRedisBridge(client, ""))
	sub, unsubscribe := hub.Subscribe("alice", nil)
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, hub.Run(ctx))
	assert.False(t, hub.Relaying())

	require.NoError(t, hub.Publish(context.Background(), change("alice", "deals", "d1")))
	select {
	case c := <-sub.C():
		assert.Equal(t, "d1", c.RecordID)
	case <-time.After(time.Second):
		t.Fatal("change was not delivered locally")
	}
}
