package admission

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fixedClock даёт управляемое время для Controller и MemoryStore.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestController(limit, quota int, now time.Time) (*Controller, *MemoryStore) {
	store := NewMemoryStore()
	store.now = fixedClock(now)

	c := New(Config{
		Store:      store,
		RateLimit:  limit,
		RateWindow: time.Minute,
		DailyQuota: quota,
	})
	c.now = fixedClock(now)

	return c, store
}

func TestTryAcquire_AllowsUpToLimit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC)
	c, _ := newTestController(3, 100, now)

	for i := 0; i < 3; i++ {
		d, err := c.TryAcquire(context.Background(), "10.0.0.1:user-a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	// Четвёртый запрос в том же окне — отказ
	d, err := c.TryAcquire(context.Background(), "10.0.0.1:user-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed {
		t.Error("request over limit should be denied")
	}
	// До сброса окна — остаток минуты
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Errorf("retry after should be within (0, 1m], got %v", d.RetryAfter)
	}
}

func TestTryAcquire_SeparateKeys(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c, _ := newTestController(1, 100, now)

	if d, _ := c.TryAcquire(context.Background(), "a"); !d.Allowed {
		t.Fatal("key a should be allowed")
	}
	if d, _ := c.TryAcquire(context.Background(), "a"); d.Allowed {
		t.Fatal("key a should be denied")
	}

	// Лимиты не шарятся между ключами
	if d, _ := c.TryAcquire(context.Background(), "b"); !d.Allowed {
		t.Error("key b should have its own window")
	}
}

func TestTryAcquire_WindowReset(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 59, 0, time.UTC)
	c, store := newTestController(1, 100, now)

	if d, _ := c.TryAcquire(context.Background(), "a"); !d.Allowed {
		t.Fatal("first request should be allowed")
	}
	if d, _ := c.TryAcquire(context.Background(), "a"); d.Allowed {
		t.Fatal("second request should be denied")
	}

	// Следующее окно — счётчик новый
	later := now.Add(2 * time.Second)
	c.now = fixedClock(later)
	store.now = fixedClock(later)

	if d, _ := c.TryAcquire(context.Background(), "a"); !d.Allowed {
		t.Error("new window should reset the counter")
	}
}

func TestConsumeDailyQuota_DeniesAtLimit(t *testing.T) {
	now := time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC)
	c, _ := newTestController(1000, 2, now)

	for i := 0; i < 2; i++ {
		d, err := c.ConsumeDailyQuota(context.Background(), "tenant-a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("attempt %d should be within quota", i+1)
		}
	}

	d, _ := c.ConsumeDailyQuota(context.Background(), "tenant-a")
	if d.Allowed {
		t.Error("attempt over quota should be denied")
	}
	// До полуночи UTC остался час
	if d.RetryAfter != time.Hour {
		t.Errorf("retry after should be 1h until midnight, got %v", d.RetryAfter)
	}
}

func TestConsumeDailyQuota_ResetsNextDay(t *testing.T) {
	now := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	c, store := newTestController(1000, 1, now)

	if d, _ := c.ConsumeDailyQuota(context.Background(), "tenant-a"); !d.Allowed {
		t.Fatal("first attempt should be allowed")
	}
	if d, _ := c.ConsumeDailyQuota(context.Background(), "tenant-a"); d.Allowed {
		t.Fatal("quota should be exhausted")
	}

	// Новый календарный день — новый ключ
	nextDay := time.Date(2025, 6, 2, 0, 1, 0, 0, time.UTC)
	c.now = fixedClock(nextDay)
	store.now = fixedClock(nextDay)

	if d, _ := c.ConsumeDailyQuota(context.Background(), "tenant-a"); !d.Allowed {
		t.Error("quota should reset at midnight")
	}
}

func TestMemoryStore_ConcurrentIncr(t *testing.T) {
	store := NewMemoryStore()

	const goroutines = 50
	const perGoroutine = 20

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				if _, err := store.Incr(context.Background(), "k", time.Minute); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	// Ни один инкремент не потерян
	count, err := store.Incr(context.Background(), "k", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != goroutines*perGoroutine+1 {
		t.Errorf("expected %d, got %d", goroutines*perGoroutine+1, count)
	}
}
