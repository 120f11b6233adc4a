package db

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOnFiresAfterPutReturns(t *testing.T) {
	d := newTestDB(t)

	var mu sync.Mutex
	var gotID string
	var gotRec map[string]any
	done := make(chan struct{})

	_, err := d.On("node-1", func(id string, rec map[string]any) {
		mu.Lock()
		gotID, gotRec = id, rec
		mu.Unlock()
		close(done)
	})
	require.NoError(t, err)

	require.NoError(t, d.Put("node-1", map[string]any{"n": float64(1)}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription callback never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "node-1", gotID)
	require.Equal(t, float64(1), gotRec["n"])
}

func TestOnAnyFiresForEveryID(t *testing.T) {
	d := newTestDB(t)

	var mu sync.Mutex
	seen := make(map[string]bool)
	done := make(chan struct{}, 2)

	_, err := d.OnAny(func(id string, rec map[string]any) {
		mu.Lock()
		seen[id] = true
		mu.Unlock()
		done <- struct{}{}
	})
	require.NoError(t, err)

	require.NoError(t, d.Put("a", map[string]any{"n": 1}))
	require.NoError(t, d.Put("b", map[string]any{"n": 2}))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("any-listener never fired for both writes")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.True(t, seen["a"])
	require.True(t, seen["b"])
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	d := newTestDB(t)

	calls := 0
	var mu sync.Mutex
	tok, err := d.On("node-1", func(id string, rec map[string]any) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	require.NoError(t, err)

	d.Unsubscribe(tok)
	require.NoError(t, d.Put("node-1", map[string]any{"n": 1}))

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 0, calls)
}

func TestDeleteEmitsNilPayload(t *testing.T) {
	d := newTestDB(t)
	require.NoError(t, d.Put("node-1", map[string]any{"n": 1}))

	done := make(chan map[string]any, 1)
	_, err := d.On("node-1", func(id string, rec map[string]any) {
		done <- rec
	})
	require.NoError(t, err)

	require.NoError(t, d.Delete("node-1"))

	select {
	case rec := <-done:
		require.Nil(t, rec)
	case <-time.After(2 * time.Second):
		t.Fatal("delete callback never fired")
	}
}
