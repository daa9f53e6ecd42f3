package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

func TestMemoryCache(t *testing.T) {
	convey.Convey("Given a cache with a one hour window", t, func() {
		now := time.Date(2025, 1, 14, 6, 0, 0, 0, time.UTC)
		c := NewMemoryCache(3, time.Hour)
		c.now = func() time.Time { return now }

		convey.Convey("A stored value is returned until it expires", func() {
			c.Set("a", 1)
			v, ok := c.Get("a")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(v, convey.ShouldEqual, 1)

			now = now.Add(59 * time.Minute)
			_, ok = c.Get("a")
			convey.So(ok, convey.ShouldBeTrue)

			now = now.Add(time.Minute)
			_, ok = c.Get("a")
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("Overwriting a key refreshes it", func() {
			c.Set("a", 1)
			now = now.Add(50 * time.Minute)
			c.Set("a", 2)
			now = now.Add(50 * time.Minute)
			v, ok := c.Get("a")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(v, convey.ShouldEqual, 2)
			convey.So(c.Len(), convey.ShouldEqual, 1)
		})

		convey.Convey("The oldest entries are evicted beyond the limit", func() {
			for _, k := range []string{"a", "b", "c", "d"} {
				c.Set(k, k)
			}
			_, ok := c.Get("a")
			convey.So(ok, convey.ShouldBeFalse)
			_, ok = c.Get("d")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(c.Len(), convey.ShouldEqual, 3)
		})

		convey.Convey("Purge drops only expired entries", func() {
			c.Set("old", 1)
			now = now.Add(45 * time.Minute)
			c.Set("new", 2)
			now = now.Add(30 * time.Minute)

			convey.So(c.Purge(), convey.ShouldEqual, 1)
			convey.So(c.Len(), convey.ShouldEqual, 1)
			_, ok := c.Get("new")
			convey.So(ok, convey.ShouldBeTrue)
		})
	})
}

func TestMemoryCacheUnlimited(t *testing.T) {
	c := NewMemoryCache(0, 0)
	for i := 0; i < 100; i++ {
		c.Set(fmt.Sprint(i), i)
	}
	if c.Len() != 100 {
		t.Fatalf("expected 100 entries, got %d", c.Len())
	}
	if n := c.Purge(); n != 0 {
		t.Fatalf("entries without ttl never expire, purged %d", n)
	}
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	c := NewMemoryCache(50, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("%d-%d", i, j%20)
				c.Set(key, j)
				c.Get(key)
				if j%50 == 0 {
					c.Purge()
				}
			}
		}(i)
	}
	wg.Wait()
	if c.Len() > 50 {
		t.Fatalf("limit exceeded: %d entries", c.Len())
	}
}
