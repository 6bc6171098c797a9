package pglisten

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionRegistry_AddRemove(t *testing.T) {
	r := NewSubscriptionRegistry()

	assert.True(t, r.Add("orders"))
	assert.False(t, r.Add("orders"))
	assert.True(t, r.Has("orders"))
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Remove("orders"))
	assert.False(t, r.Remove("orders"))
	assert.False(t, r.Has("orders"))
	assert.Equal(t, 0, r.Len())
}

func TestSubscriptionRegistry_SnapshotIsSortedCopy(t *testing.T) {
	r := NewSubscriptionRegistry()
	r.Add("users")
	r.Add("orders")
	r.Add("audit")

	snap := r.Snapshot()
	assert.Equal(t, []string{"audit", "orders", "users"}, snap)

	snap[0] = "mutated"
	assert.True(t, r.Has("audit"))
	assert.False(t, r.Has("mutated"))
}

func TestSubscriptionRegistry_Clear(t *testing.T) {
	r := NewSubscriptionRegistry()
	r.Add("a")
	r.Add("b")

	r.Clear()

	assert.Empty(t, r.Snapshot())
	assert.True(t, r.Add("a"))
}

func TestSubscriptionRegistry_ConcurrentAdd(t *testing.T) {
	r := NewSubscriptionRegistry()

	var wg sync.WaitGroup
	added := make([]bool, 50)
	for i := range added {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added[i] = r.Add(fmt.Sprintf("ch%d", i%10))
		}()
	}
	wg.Wait()

	wins := 0
	for _, ok := range added {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 10, wins)
	assert.Equal(t, 10, r.Len())
}
