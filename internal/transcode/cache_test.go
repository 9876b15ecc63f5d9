package transcode

import (
	"testing"
	"time"
)

func TestResultCacheRoundTrip(t *testing.T) {
	c := NewResultCache(time.Minute, 10)
	key := c.Key("/photos/a.jpg", 1234, time.Unix(1700000000, 0))

	if c.Get(key) != nil {
		t.Error("Expected miss before Put")
	}

	pm := &ProcessedMedia{ID: "pm-1"}
	c.Put(key, pm)
	got := c.Get(key)
	if got == nil || got.ID != "pm-1" {
		t.Errorf("Expected cached result pm-1, got %v", got)
	}
}

func TestResultCacheInvalidate(t *testing.T) {
	c := NewResultCache(time.Minute, 10)
	key := c.Key("/photos/a.jpg", 1234, time.Unix(1700000000, 0))
	c.Put(key, &ProcessedMedia{ID: "pm-1"})

	c.Invalidate(key)
	if c.Get(key) != nil {
		t.Error("Expected miss after Invalidate")
	}
}

func TestResultCacheBound(t *testing.T) {
	c := NewResultCache(time.Minute, 2)
	c.Put("a", &ProcessedMedia{ID: "a"})
	c.Put("b", &ProcessedMedia{ID: "b"})
	c.Put("c", &ProcessedMedia{ID: "c"})

	if c.Get("a") == nil || c.Get("b") == nil {
		t.Error("Entries within the bound should be retained")
	}
	if c.Get("c") != nil {
		t.Error("Entry past the bound should be dropped")
	}
}

func TestResultCacheKeyFingerprint(t *testing.T) {
	c := NewResultCache(time.Minute, 10)
	base := c.Key("/photos/a.jpg", 1234, time.Unix(1700000000, 0))

	if c.Key("/photos/a.jpg", 1235, time.Unix(1700000000, 0)) == base {
		t.Error("Size change must change the key")
	}
	if c.Key("/photos/a.jpg", 1234, time.Unix(1700000001, 0)) == base {
		t.Error("Modification time change must change the key")
	}
	if c.Key("/photos/b.jpg", 1234, time.Unix(1700000000, 0)) == base {
		t.Error("Path change must change the key")
	}
}
