package draft

import (
	"context"
	"testing"
	"time"

	"junket-admin/internal/storage"

	"github.com/rs/zerolog"
)

func TestSnapshotSeesInputAwaitingCommit(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMemory(), nil, time.Millisecond, zerolog.Nop())
	t.Cleanup(s.Close)

	s.SetWinLoss(5, 7, "150")

	// the debounce timer fires while the lock is held, so its commit waits
	s.mu.Lock()
	time.Sleep(20 * time.Millisecond)
	persisted := s.load(ctx, 5)
	staged := s.snapshot(ctx, 5)
	s.mu.Unlock()

	if _, ok := persisted.WinLoss[7]; ok {
		t.Fatal("input should not be persisted while the lock is held")
	}
	if got := staged.WinLoss[7]; got != "150" {
		t.Fatalf("snapshot win/loss = %q, want 150", got)
	}
	if n := s.Flush(5); n != 0 {
		t.Fatalf("expected nothing left to flush, got %d", n)
	}
}
