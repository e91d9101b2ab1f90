package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheBasicOperations(t *testing.T) {
	c := New(5*time.Minute, 10*time.Minute)

	c.Set(Key("pc", "alerts.json"), []byte("[]"))
	v, ok := c.Get(Key("pc", "alerts.json"))
	assert.True(t, ok)
	assert.Equal(t, []byte("[]"), v)

	_, ok = c.Get(Key("pc", "missing.txt"))
	assert.False(t, ok)

	c.Delete(Key("pc", "alerts.json"))
	_, ok = c.Get(Key("pc", "alerts.json"))
	assert.False(t, ok)

	assert.Equal(t, Stats{ItemCount: 0, Hits: 1, Misses: 2}, c.GetStats())
}

func TestCacheExpiry(t *testing.T) {
	c := New(20*time.Millisecond, time.Hour)
	c.Set("pc/invasions.json", "x")
	assert.Eventually(t, func() bool {
		_, ok := c.Get("pc/invasions.json")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestCacheInvalidateRegion(t *testing.T) {
	c := New(time.Minute, time.Minute)
	for _, region := range []string{"pc", "ps4", "pcx"} {
		c.Set(Key(region, "alerts.json"), region)
		c.Set(Key(region, "invasions.json"), region)
	}

	assert.Equal(t, 2, c.InvalidateRegion("pc"))
	assert.Equal(t, 4, c.ItemCount())
	_, ok := c.Get(Key("pcx", "alerts.json"))
	assert.True(t, ok, "prefix match must stop at the separator")

	assert.Equal(t, 0, c.InvalidateRegion("xbox"))
	c.Clear()
	assert.Zero(t, c.ItemCount())
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New(time.Minute, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			region := []string{"pc", "ps4"}[i%2]
			for j := 0; j < 50; j++ {
				key := Key(region, fmt.Sprintf("a%d", j))
				c.Set(key, j)
				c.Get(key)
				if j%10 == 0 {
					c.InvalidateRegion(region)
				}
			}
		}(i)
	}
	wg.Wait()
	stats := c.GetStats()
	assert.Equal(t, int64(20*50), stats.Hits+stats.Misses)
}
