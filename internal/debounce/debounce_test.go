package debounce_test

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"junket-admin/internal/debounce"
)

func TestTriggerCoalescesBurst(t *testing.T) {
	t.Parallel()

	d := debounce.New(20 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	var mu sync.Mutex
	var last string
	done := make(chan struct{}, 1)

	for _, v := range []string{"1", "15", "150"} {
		v := v
		d.Trigger("record-7", func() {
			calls.Add(1)
			mu.Lock()
			last = v
			mu.Unlock()
			done <- struct{}{}
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debounced call never fired")
	}
	time.Sleep(40 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 call, got %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if last != "150" {
		t.Fatalf("expected last value to win, got %q", last)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	t.Parallel()

	d := debounce.New(time.Hour)
	defer d.Stop()

	var a, b int
	d.Trigger("a", func() { a++ })
	d.Trigger("b", func() { b++ })

	if !d.Flush("a") {
		t.Fatal("expected pending call for a")
	}
	if a != 1 || b != 0 {
		t.Fatalf("a=%d b=%d", a, b)
	}
	if !d.Pending("b") {
		t.Fatal("b should still be pending")
	}
}

func TestCancel(t *testing.T) {
	t.Parallel()

	d := debounce.New(10 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	d.Trigger("k", func() { calls.Add(1) })
	if !d.Cancel("k") {
		t.Fatal("expected cancel to find pending call")
	}
	if d.Cancel("k") {
		t.Fatal("second cancel should find nothing")
	}
	time.Sleep(30 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatal("cancelled call fired")
	}
}

func TestMatchingHelpers(t *testing.T) {
	t.Parallel()

	d := debounce.New(time.Hour)
	defer d.Stop()

	var ran []string
	for _, k := range []string{"101:1", "101:2", "205:1"} {
		k := k
		d.Trigger(k, func() { ran = append(ran, k) })
	}

	if n := d.FlushMatching(func(k string) bool { return strings.HasPrefix(k, "101:") }); n != 2 {
		t.Fatalf("flushed %d", n)
	}
	if len(ran) != 2 {
		t.Fatalf("ran %v", ran)
	}
	if n := d.CancelMatching(func(k string) bool { return strings.HasPrefix(k, "205:") }); n != 1 {
		t.Fatalf("cancelled %d", n)
	}
	if d.Pending("205:1") {
		t.Fatal("205:1 should be gone")
	}
}

func TestStopIgnoresLaterTriggers(t *testing.T) {
	t.Parallel()

	d := debounce.New(time.Millisecond)
	d.Stop()

	var calls atomic.Int32
	d.Trigger("k", func() { calls.Add(1) })
	time.Sleep(10 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatal("trigger after stop fired")
	}
}
