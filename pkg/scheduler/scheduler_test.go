package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayQueue_PopsInReadyOrder(t *testing.T) {
	dq := NewQueue[string](8)
	defer dq.Close()

	now := time.Now()
	require.NoError(t, dq.Push(Entry[string]{ID: "late", Value: "late", ReadyAt: now.Add(120 * time.Millisecond)}))
	require.NoError(t, dq.Push(Entry[string]{ID: "early", Value: "early", ReadyAt: now.Add(20 * time.Millisecond)}))

	first := <-dq.Out
	second := <-dq.Out

	assert.Equal(t, "early", first.Value)
	assert.Equal(t, "late", second.Value)
	assert.False(t, time.Now().Before(second.ReadyAt), "entries must not pop before they are ready")
}

func TestDelayQueue_RePushReschedules(t *testing.T) {
	dq := NewQueue[string](8)
	defer dq.Close()

	now := time.Now()
	require.NoError(t, dq.Push(Entry[string]{ID: "ticket", Value: "v1", ReadyAt: now.Add(time.Hour)}))
	require.NoError(t, dq.Push(Entry[string]{ID: "ticket", Value: "v2", ReadyAt: now.Add(20 * time.Millisecond)}))

	select {
	case got := <-dq.Out:
		assert.Equal(t, "v2", got.Value)
	case <-time.After(time.Second):
		t.Fatal("rescheduled entry never popped")
	}
}

func TestDelayQueue_Remove(t *testing.T) {
	dq := NewQueue[string](8)

	require.NoError(t, dq.Push(Entry[string]{ID: "ticket", Value: "v1", ReadyAt: time.Now().Add(30 * time.Millisecond)}))
	assert.True(t, dq.Remove("ticket"))
	assert.False(t, dq.Remove("ticket"))

	dq.Close()
	_, open := <-dq.Out
	assert.False(t, open, "queue must drain and close")
}

func TestDelayQueue_PushAfterCloseFails(t *testing.T) {
	dq := NewQueue[string](8)
	dq.Close()

	err := dq.Push(Entry[string]{ID: "ticket", Value: "v1", ReadyAt: time.Now()})

	require.Error(t, err)
}
