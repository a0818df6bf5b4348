// ABOUTME: Tests for the dedupe TTL cache
// ABOUTME: Covers seen/mark semantics, TTL expiry, size-bounded eviction, concurrency

package dedupe

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_SeenMarksNewIDs(t *testing.T) {
	c := New(time.Minute, 100)
	defer c.Close()

	assert.False(t, c.Seen("msg-1"), "first sight should not be a duplicate")
	assert.True(t, c.Seen("msg-1"), "second sight should be a duplicate")
	assert.False(t, c.Seen("msg-2"), "different id is not a duplicate")
}

func TestCache_MarkThenSeen(t *testing.T) {
	c := New(time.Minute, 100)
	defer c.Close()

	c.Mark("msg-1")
	assert.True(t, c.Seen("msg-1"))
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New(20*time.Millisecond, 100)
	defer c.Close()

	c.Mark("msg-1")
	time.Sleep(50 * time.Millisecond)

	assert.False(t, c.Seen("msg-1"), "expired id should not count as seen")
}

func TestCache_EvictsOldestAtCapacity(t *testing.T) {
	c := New(time.Minute, 3)
	defer c.Close()

	c.Mark("a")
	c.Mark("b")
	c.Mark("c")
	c.Mark("d") // evicts a

	assert.False(t, c.Seen("a"), "oldest id should have been evicted")
	assert.True(t, c.Seen("b"))
	assert.True(t, c.Seen("c"))
	assert.True(t, c.Seen("d"))
}

func TestCache_SeenRefreshesOrder(t *testing.T) {
	c := New(time.Minute, 3)
	defer c.Close()

	c.Mark("a")
	c.Mark("b")
	c.Mark("c")
	c.Seen("a") // refresh: a moves to back
	c.Mark("d") // evicts b, not a

	assert.True(t, c.Seen("a"))
	assert.False(t, c.Seen("b"))
}

func TestCache_ConcurrentSeenIsExactlyOnce(t *testing.T) {
	c := New(time.Minute, 1000)
	defer c.Close()

	const goroutines = 50
	var wg sync.WaitGroup
	firstSights := make(chan string, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !c.Seen("contested") {
				firstSights <- "won"
			}
		}()
	}
	wg.Wait()
	close(firstSights)

	var winners int
	for range firstSights {
		winners++
	}
	assert.Equal(t, 1, winners, "exactly one goroutine should see the id as new")
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	c.Close() // must not panic
}

func TestCache_ManyIDsStayBounded(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Close()

	for i := 0; i < 100; i++ {
		c.Mark(fmt.Sprintf("msg-%d", i))
	}

	c.mu.Lock()
	size := len(c.seen)
	c.mu.Unlock()
	assert.LessOrEqual(t, size, 10)
}
