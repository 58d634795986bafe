package memcache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetAfterRemoveIsAbsent(t *testing.T) {
	c := New(0)
	defer c.Close()

	c.Insert("k", "v", NoExpiration())
	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", v)

	c.Remove("k")
	_, ok = c.Get("k")
	assert.False(t, ok)

	// Removing an absent key is a no-op
	c.Remove("k")
}

func TestCache_SlidingExpiration(t *testing.T) {
	c := New(0)
	defer c.Close()

	c.Insert("k", "v", Sliding(100*time.Millisecond))

	time.Sleep(150 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok, "expired entry must be absent")

	// The expired key must also be invisible to a pattern pass
	c.Insert("other", "v", NoExpiration())
	require.NoError(t, c.RemoveByPattern(".*"))
	assert.Equal(t, 0, c.Len())
}

func TestCache_SlidingExpirationResetsOnAccess(t *testing.T) {
	c := New(0)
	defer c.Close()

	c.Insert("k", "v", Sliding(120*time.Millisecond))

	// Keep touching the entry inside the window
	for i := 0; i < 3; i++ {
		time.Sleep(60 * time.Millisecond)
		_, ok := c.Get("k")
		require.True(t, ok, "access inside the window must keep the entry alive")
	}

	time.Sleep(200 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_AbsoluteExpiration(t *testing.T) {
	c := New(0)
	defer c.Close()

	c.Insert("k", "v", AbsoluteAt(time.Now().Add(80*time.Millisecond)))

	// Accessing an absolute entry must not extend it
	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(120 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestCache_InsertOverwritesAndRestartsTimer(t *testing.T) {
	c := New(0)
	defer c.Close()

	c.Insert("k", "old", Sliding(50*time.Millisecond))
	c.Insert("k", "new", NoExpiration())

	time.Sleep(80 * time.Millisecond)
	v, ok := c.Get("k")
	require.True(t, ok, "overwrite must replace the old expiration")
	assert.Equal(t, "new", v)
}

func TestCache_RemoveByPattern(t *testing.T) {
	c := New(0)
	defer c.Close()

	c.Insert("files:t1:list", "a", NoExpiration())
	c.Insert("files:t1:tree", "b", NoExpiration())
	c.Insert("files:t2:list", "c", NoExpiration())
	c.Insert("user:t1:u1:profile", "d", NoExpiration())

	require.NoError(t, c.RemoveByPattern("^files:t1:"))

	_, ok := c.Get("files:t1:list")
	assert.False(t, ok)
	_, ok = c.Get("files:t1:tree")
	assert.False(t, ok)
	_, ok = c.Get("files:t2:list")
	assert.True(t, ok)
	_, ok = c.Get("user:t1:u1:profile")
	assert.True(t, ok)
}

func TestCache_RemoveByPatternInvalidPattern(t *testing.T) {
	c := New(0)
	defer c.Close()

	assert.Error(t, c.RemoveByPattern("(unclosed"))
}

func TestCache_JanitorSweepsExpired(t *testing.T) {
	c := New(20 * time.Millisecond)
	defer c.Close()

	c.Insert("k", "v", Sliding(40*time.Millisecond))
	require.Equal(t, 1, c.Len())

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, c.Len())
}

func TestCache_HashGetAllUnknownKeyIsEmptyMap(t *testing.T) {
	c := New(0)
	defer c.Close()

	all := c.HashGetAll("never-set")
	require.NotNil(t, all)
	assert.Empty(t, all)
}

func TestCache_HashSetAndGet(t *testing.T) {
	c := New(0)
	defer c.Close()

	c.HashSet("bucket", "f1", "v1")
	c.HashSet("bucket", "f2", "v2")

	v, ok := c.HashGet("bucket", "f1")
	require.True(t, ok)
	assert.Equal(t, "v1", v)

	all := c.HashGetAll("bucket")
	assert.Len(t, all, 2)

	// The returned map is a copy
	all["f3"] = "intruder"
	assert.Len(t, c.HashGetAll("bucket"), 2)
}

func TestCache_HashSetNilDeletesFieldAndEmptyBucket(t *testing.T) {
	c := New(0)
	defer c.Close()

	c.HashSet("bucket", "only", "v")
	c.HashSet("bucket", "only", nil)

	// No empty bucket persists
	_, ok := c.Get("bucket")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	// Deleting on an absent bucket is a no-op
	c.HashSet("bucket", "only", nil)
}

func TestCache_HashSetConcurrentFieldsNoLostUpdates(t *testing.T) {
	c := New(0)
	defer c.Close()

	const fields = 50
	var wg sync.WaitGroup
	for i := 0; i < fields; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c.HashSet("bucket", fmt.Sprintf("f%d", n), n)
		}(i)
	}
	wg.Wait()

	assert.Len(t, c.HashGetAll("bucket"), fields)
}

func TestCache_ConcurrentMixedOperations(t *testing.T) {
	c := New(10 * time.Millisecond)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", n%5)
			for j := 0; j < 100; j++ {
				c.Insert(key, j, Sliding(30*time.Millisecond))
				c.Get(key)
				c.HashSet("bucket", key, j)
				c.HashGetAll("bucket")
				if j%10 == 0 {
					c.Remove(key)
					_ = c.RemoveByPattern("^k[0-2]$")
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestCache_Stats(t *testing.T) {
	c := New(0)
	defer c.Close()

	c.Insert("key", "12345", NoExpiration())
	entries, bytes := c.Stats()
	assert.Equal(t, 1, entries)
	assert.Equal(t, int64(len("key")+len("12345")), bytes)
}
