package hybrid

import (
	"context"
	"testing"
	"time"

	"github.com/chunkvault/chunkvault/internal/cache/disk"
	"github.com/chunkvault/chunkvault/internal/cache/memory"
)

func newMemoryOnly(t *testing.T, limitBytes int64) *Controller {
	t.Helper()
	mem, err := memory.New(limitBytes)
	if err != nil {
		t.Fatalf("memory.New() error = %v", err)
	}
	return New(mem, nil, Config{
		PromotionThreshold:  1,
		DemotionThreshold:   time.Hour,
		MaintenanceInterval: time.Hour,
	})
}

func newWithDisk(t *testing.T, memLimit, diskLimit int64, promotionThreshold float64, demotionThreshold time.Duration) *Controller {
	t.Helper()
	mem, err := memory.New(memLimit)
	if err != nil {
		t.Fatalf("memory.New() error = %v", err)
	}
	d, err := disk.New(t.TempDir(), diskLimit)
	if err != nil {
		t.Fatalf("disk.New() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return New(mem, d, Config{
		PromotionThreshold:  promotionThreshold,
		DemotionThreshold:   demotionThreshold,
		MaintenanceInterval: time.Hour,
	})
}

func TestController_MemoryHit(t *testing.T) {
	ctx := context.Background()
	c := newMemoryOnly(t, 1024)

	if err := c.Set(ctx, "a", []byte("hello")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value, ok := c.Get(ctx, "a")
	if !ok || string(value) != "hello" {
		t.Errorf("Get() = (%q, %v), want (%q, true)", value, ok, "hello")
	}

	stats := c.Stats()
	if stats.Hits != 1 {
		t.Errorf("Stats().Hits = %d, want 1", stats.Hits)
	}
}

func TestController_DiskHitPromotesWhenHot(t *testing.T) {
	ctx := context.Background()
	c := newWithDisk(t, 1024, 0, 0.0, time.Hour)

	// Write through to both tiers, then demote manually so the value
	// lives only on disk, simulating a controller that has been running
	// for a while.
	if err := c.Set(ctx, "a", []byte("hello")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := c.memory.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	// First disk hit: frequency starts at zero (promotion threshold is
	// zero too, so it promotes immediately).
	value, ok := c.Get(ctx, "a")
	if !ok || string(value) != "hello" {
		t.Fatalf("Get() = (%q, %v), want (%q, true)", value, ok, "hello")
	}

	if _, ok := c.memory.Get(ctx, "a"); !ok {
		t.Error("a should have been promoted into memory on a hot disk hit")
	}
}

func TestController_Demotion(t *testing.T) {
	ctx := context.Background()
	c := newWithDisk(t, 1024, 1024, 1000, time.Millisecond)

	if err := c.Set(ctx, "a", []byte("hello")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	c.RunMaintenanceOnce(ctx)

	if _, ok := c.memory.Get(ctx, "a"); ok {
		t.Error("a should have been demoted from memory after idling past the threshold")
	}
	// The disk copy survives demotion.
	if _, ok := c.disk.Get(ctx, "a"); !ok {
		t.Error("a should still be resident on disk after demotion")
	}
}

func TestController_RemoveClearsBothTiers(t *testing.T) {
	ctx := context.Background()
	c := newWithDisk(t, 1024, 1024, 1000, time.Hour)

	_ = c.Set(ctx, "a", []byte("hello"))
	if err := c.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("a should be absent from both tiers after Remove")
	}
}

func TestController_ClearEmptiesBothTiers(t *testing.T) {
	ctx := context.Background()
	c := newWithDisk(t, 1024, 1024, 1000, time.Hour)

	_ = c.Set(ctx, "a", []byte("hello"))
	_ = c.Set(ctx, "b", []byte("world"))
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}
