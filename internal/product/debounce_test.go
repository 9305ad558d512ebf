package product

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestDebouncer_CoalescesRapidTriggers(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var mu sync.Mutex
	var calls []string
	record := func(ctx context.Context, value string) {
		mu.Lock()
		calls = append(calls, value)
		mu.Unlock()
	}

	ctx := context.Background()
	d.Trigger(ctx, "user-1", "g", record)
	d.Trigger(ctx, "user-1", "ga", record)
	d.Trigger(ctx, "user-1", "gar", record)
	d.Trigger(ctx, "user-1", "gardening gifts", record)

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 {
		t.Fatalf("expected exactly 1 call, got %d: %v", len(calls), calls)
	}
	if calls[0] != "gardening gifts" {
		t.Errorf("expected last value, got %q", calls[0])
	}
}

func TestDebouncer_SeparateKeys(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var mu sync.Mutex
	calls := map[string]string{}

	ctx := context.Background()
	d.Trigger(ctx, "user-1", "flowers", func(ctx context.Context, value string) {
		mu.Lock()
		calls["user-1"] = value
		mu.Unlock()
	})
	d.Trigger(ctx, "user-2", "books", func(ctx context.Context, value string) {
		mu.Lock()
		calls["user-2"] = value
		mu.Unlock()
	})

	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls["user-1"] != "flowers" || calls["user-2"] != "books" {
		t.Errorf("each key should fire independently: %v", calls)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var mu sync.Mutex
	fired := false

	d.Trigger(context.Background(), "user-1", "flowers", func(ctx context.Context, value string) {
		mu.Lock()
		fired = true
		mu.Unlock()
	})
	d.Cancel("user-1")

	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired {
		t.Error("cancelled trigger should not fire")
	}
}

func TestDebouncer_Flush(t *testing.T) {
	d := NewDebouncer(10 * time.Second)

	var mu sync.Mutex
	var got string

	d.Trigger(context.Background(), "user-1", "flowers", func(ctx context.Context, value string) {
		mu.Lock()
		got = value
		mu.Unlock()
	})
	d.Flush(context.Background(), "user-1")

	mu.Lock()
	defer mu.Unlock()
	if got != "flowers" {
		t.Errorf("flush should run immediately with pending value, got %q", got)
	}
}

func TestDebouncer_ContextCancelled(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	fired := false

	d.Trigger(ctx, "user-1", "flowers", func(ctx context.Context, value string) {
		mu.Lock()
		fired = true
		mu.Unlock()
	})
	cancel()

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired {
		t.Error("trigger with cancelled context should not fire")
	}
}
