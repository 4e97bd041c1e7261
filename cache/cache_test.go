package cache

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dendrascience/archivefs/archive"
)

func insertReleased(t *testing.T, c *Cache, key archive.Token, data []byte) {
	t.Helper()
	ref, ok := c.Insert(key, data)
	require.True(t, ok, "insert %d", key)
	ref.Release()
}

func TestCache_HitAndMiss(t *testing.T) {
	c := New(100)

	_, ok := c.Acquire(1)
	assert.False(t, ok)

	insertReleased(t, c, 1, []byte("hello"))
	ref, ok := c.Acquire(1)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), ref.Bytes())
	ref.Release()

	st := c.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, 1, st.Entries)
	assert.Equal(t, int64(5), st.Bytes)
}

func TestCache_PinLeavesCountersAlone(t *testing.T) {
	c := New(8)
	_, ok := c.Pin(1)
	assert.False(t, ok)

	insertReleased(t, c, 1, []byte("aaaa"))
	ref, ok := c.Pin(1)
	require.True(t, ok)
	assert.Equal(t, []byte("aaaa"), ref.Bytes())

	// A pinned slot cannot make room for a newcomer.
	_, ok = c.Insert(2, []byte("bbbbbbb"))
	assert.False(t, ok)
	ref.Release()
	insertReleased(t, c, 2, []byte("bbbbbbb"))
	assert.False(t, c.Contains(1))

	st := c.Stats()
	assert.Zero(t, st.Hits)
	assert.Zero(t, st.Misses)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(10)
	insertReleased(t, c, 1, []byte("aaaa"))
	insertReleased(t, c, 2, []byte("bbbb"))

	// Touch 1 so that 2 becomes the oldest.
	ref, ok := c.Acquire(1)
	require.True(t, ok)
	ref.Release()

	insertReleased(t, c, 3, []byte("cccc"))

	assert.True(t, c.Contains(1))
	assert.False(t, c.Contains(2))
	assert.True(t, c.Contains(3))
	assert.Equal(t, uint64(1), c.Stats().Evictions)
	assert.LessOrEqual(t, c.Stats().Bytes, int64(10))
}

func TestCache_PinnedEntriesSurviveEviction(t *testing.T) {
	c := New(8)
	pinned, ok := c.Insert(1, []byte("pppp"))
	require.True(t, ok)
	insertReleased(t, c, 2, []byte("qqqq"))

	// Needs 4 bytes: only entry 2 is evictable.
	insertReleased(t, c, 3, []byte("rrrr"))
	assert.True(t, c.Contains(1))
	assert.False(t, c.Contains(2))
	assert.Equal(t, []byte("pppp"), pinned.Bytes())

	// Needs 8 bytes with 4 pinned: rejected, nothing evicted.
	_, ok = c.Insert(4, []byte("ssssssss"))
	assert.False(t, ok)
	assert.True(t, c.Contains(3))
	assert.Equal(t, uint64(1), c.Stats().Rejected)

	pinned.Release()
	insertReleased(t, c, 4, []byte("ssssssss"))
	assert.False(t, c.Contains(1))
	assert.True(t, c.Contains(4))
}

func TestCache_OversizedNeverStored(t *testing.T) {
	c := New(4)
	_, ok := c.Insert(1, []byte("too large"))
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().Entries)

	// Empty bodies always fit, even in a zero budget.
	z := New(0)
	insertReleased(t, z, 1, nil)
	assert.True(t, z.Contains(1))
}

func TestCache_InsertExistingKeepsOriginal(t *testing.T) {
	c := New(100)
	insertReleased(t, c, 1, []byte("first"))
	ref, ok := c.Insert(1, []byte("second"))
	require.True(t, ok)
	defer ref.Release()
	assert.Equal(t, []byte("first"), ref.Bytes())
	assert.Equal(t, int64(5), c.Stats().Bytes)
}

func TestCache_DoubleReleaseIgnored(t *testing.T) {
	c := New(4)
	ref, ok := c.Insert(1, []byte("aaaa"))
	require.True(t, ok)
	other, ok := c.Acquire(1)
	require.True(t, ok)

	ref.Release()
	ref.Release()

	// Still pinned by other.
	_, ok = c.Insert(2, []byte("bbbb"))
	assert.False(t, ok)
	other.Release()
	_, ok = c.Insert(2, []byte("bbbb"))
	assert.True(t, ok)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(64)
	done := make(chan struct{})

	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for w := range 8 {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := range 500 {
					key := archive.Token((w + i) % 16)
					want := bytes.Repeat([]byte{byte(key)}, 8)
					ref, ok := c.Acquire(key)
					if !ok {
						ref, ok = c.Insert(key, want)
						if !ok {
							continue
						}
					}
					if !bytes.Equal(ref.Bytes(), want) {
						t.Errorf("key %d: got %v", key, ref.Bytes())
					}
					ref.Release()
				}
			}(w)
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("concurrent cache access deadlocked")
	}
	assert.LessOrEqual(t, c.Stats().Bytes, int64(64))
}
