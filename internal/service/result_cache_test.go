package service

import (
	"testing"

	"github.com/warden-hq/warden/internal/domain/policy"
)

func TestResultCacheEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	c := newResultCache(2)
	c.Put(1, policy.Resolution{RuleID: "one"})
	c.Put(2, policy.Resolution{RuleID: "two"})

	// Touch 1 so 2 becomes the eviction candidate.
	if _, ok := c.Get(1); !ok {
		t.Fatal("expected hit for key 1")
	}
	c.Put(3, policy.Resolution{RuleID: "three"})

	if _, ok := c.Get(2); ok {
		t.Error("key 2 should have been evicted")
	}
	if _, ok := c.Get(1); !ok {
		t.Error("key 1 should have survived")
	}
	if _, ok := c.Get(3); !ok {
		t.Error("key 3 should be present")
	}
	if c.Size() != 2 {
		t.Errorf("size = %d, want 2", c.Size())
	}
}

func TestResultCachePutUpdatesExisting(t *testing.T) {
	t.Parallel()

	c := newResultCache(2)
	c.Put(1, policy.Resolution{RuleID: "old"})
	c.Put(1, policy.Resolution{RuleID: "new"})

	got, ok := c.Get(1)
	if !ok || got.RuleID != "new" {
		t.Errorf("expected updated entry, got %+v ok=%v", got, ok)
	}
	if c.Size() != 1 {
		t.Errorf("size = %d, want 1", c.Size())
	}
}

func TestResultCacheClear(t *testing.T) {
	t.Parallel()

	c := newResultCache(4)
	c.Put(1, policy.Resolution{})
	c.Put(2, policy.Resolution{})
	c.Clear()

	if c.Size() != 0 {
		t.Errorf("size after clear = %d", c.Size())
	}
	if _, ok := c.Get(1); ok {
		t.Error("cleared entry still retrievable")
	}

	// The cache must stay usable after a clear.
	c.Put(5, policy.Resolution{RuleID: "five"})
	if _, ok := c.Get(5); !ok {
		t.Error("cache unusable after clear")
	}
}

func TestComputeCacheKeyDistinguishesInputs(t *testing.T) {
	t.Parallel()

	base := policy.RequestContext{Capability: "file_read", Resource: "fs.read", Path: "/a"}

	k1 := computeCacheKey(1, "role-1", []string{"file_read"}, base)
	if k2 := computeCacheKey(1, "role-1", []string{"file_read"}, base); k2 != k1 {
		t.Error("identical inputs must hash identically")
	}
	if k := computeCacheKey(2, "role-1", []string{"file_read"}, base); k == k1 {
		t.Error("snapshot generation must affect the key")
	}
	if k := computeCacheKey(1, "role-2", []string{"file_read"}, base); k == k1 {
		t.Error("role ID must affect the key")
	}
	if k := computeCacheKey(1, "role-1", []string{"file_read", "shell_exec"}, base); k == k1 {
		t.Error("grant set must affect the key")
	}
	other := base
	other.Path = "/b"
	if k := computeCacheKey(1, "role-1", []string{"file_read"}, other); k == k1 {
		t.Error("request path must affect the key")
	}
	withParams := base
	withParams.Params = map[string]any{"dry_run": true}
	if k := computeCacheKey(1, "role-1", []string{"file_read"}, withParams); k == k1 {
		t.Error("params must affect the key")
	}
}

func TestComputeCacheKeyIgnoresGrantOrder(t *testing.T) {
	t.Parallel()

	req := policy.RequestContext{Capability: "file_read", Resource: "fs.read"}

	k1 := computeCacheKey(1, "role-1", []string{"file_read", "shell_exec"}, req)
	k2 := computeCacheKey(1, "role-1", []string{"shell_exec", "file_read"}, req)
	if k1 != k2 {
		t.Error("equal grant sets must hash equally regardless of order")
	}
}
