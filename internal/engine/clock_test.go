package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// steppedWall returns the given unix times in order, repeating the last.
func steppedWall(times ...int64) func() time.Time {
	var mu sync.Mutex
	i := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := times[i]
		if i < len(times)-1 {
			i++
		}
		return time.Unix(t, 0)
	}
}

func TestSystemClock_FollowsWallClock(t *testing.T) {
	c := &SystemClock{wall: steppedWall(100, 101, 105)}

	assert.Equal(t, int64(100), c.Now())
	assert.Equal(t, int64(101), c.Now())
	assert.Equal(t, int64(105), c.Now())
}

func TestSystemClock_NeverGoesBackwards(t *testing.T) {
	c := &SystemClock{wall: steppedWall(200, 150, 199, 201)}

	assert.Equal(t, int64(200), c.Now())
	assert.Equal(t, int64(200), c.Now(), "wall stepped back to 150")
	assert.Equal(t, int64(200), c.Now(), "wall still behind at 199")
	assert.Equal(t, int64(201), c.Now(), "wall caught up")
}

func TestSystemClock_Concurrent(t *testing.T) {
	c := NewSystemClock()
	start := time.Now().Unix()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev := c.Now()
			for j := 0; j < 100; j++ {
				now := c.Now()
				assert.GreaterOrEqual(t, now, prev)
				prev = now
			}
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, c.Now(), start)
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator("op", "first", "second")

	assert.Equal(t, "first", gen.Generate())
	assert.Equal(t, "second", gen.Generate())
	assert.Equal(t, "op-3", gen.Generate())
	assert.Equal(t, "op-4", gen.Generate())
}

func TestFixedGenerator_DefaultPrefix(t *testing.T) {
	gen := NewFixedGenerator("")
	assert.Equal(t, "op-1", gen.Generate())
}

func TestUUIDv7Generator_Sortable(t *testing.T) {
	gen := UUIDv7Generator{}
	a := gen.Generate()
	time.Sleep(2 * time.Millisecond)
	b := gen.Generate()

	assert.Len(t, a, 36)
	assert.Less(t, a, b, "v7 IDs sort by creation time")
}
