package lock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyed_SerializesSameKey(t *testing.T) {
	k := NewKeyed()

	var mu sync.Mutex
	active := 0
	maxActive := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			k.Lock("doc-1")
			defer k.Unlock("doc-1")

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
}

func TestKeyed_DistinctKeysRunInParallel(t *testing.T) {
	k := NewKeyed()

	k.Lock("doc-1")
	defer k.Unlock("doc-1")

	done := make(chan struct{})
	go func() {
		k.Lock("doc-2")
		k.Unlock("doc-2")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a distinct key blocked")
	}
}

func TestKeyed_EntriesAreReleased(t *testing.T) {
	k := NewKeyed()

	for i := 0; i < 100; i++ {
		k.Lock("doc-1")
		k.Unlock("doc-1")
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.entries)
}

func TestKeyed_UnlockUnheldPanics(t *testing.T) {
	k := NewKeyed()
	assert.Panics(t, func() { k.Unlock("doc-1") })
}
