package draft_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"junket-admin/internal/domain"
	"junket-admin/internal/draft"
	"junket-admin/internal/events"
	"junket-admin/internal/storage"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func newStore(t *testing.T, kv storage.KeyValue, delay time.Duration) (*draft.Store, *events.Bus) {
	t.Helper()
	bus := events.NewBus(zerolog.Nop())
	s := draft.NewStore(kv, bus, delay, zerolog.Nop())
	t.Cleanup(s.Close)
	return s, bus
}

func user(id int64, name string) *domain.UserRef {
	return &domain.UserRef{ID: id, Name: name}
}

func TestLoadAfterPersistReturnsNetEffect(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newStore(t, storage.NewMemory(), time.Hour)

	mustSetUser(t, s, 101, 1, user(42, "A"))
	mustSetUser(t, s, 101, 1, user(43, "B"))
	mustSetUser(t, s, 101, 2, nil)
	s.SetWinLoss(101, 1, "1")
	s.SetWinLoss(101, 1, "15")
	s.SetWinLoss(101, 1, "150")
	s.SetWinLoss(101, 3, "-20")
	s.Flush(101)

	got := s.Load(ctx, 101)
	want := draft.Draft{
		BatchID:      101,
		MatchedUsers: map[int64]*domain.UserRef{1: user(43, "B"), 2: nil},
		WinLoss:      map[int64]string{1: "150", 3: "-20"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("draft mismatch (-want +got):\n%s", diff)
	}
	if n := s.ChangeCount(ctx, 101); n != 4 {
		t.Fatalf("expected change count 4, got %d", n)
	}
}

func TestWinLossIsNotPersistedInsideDebounceWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := storage.NewMemory()
	s, bus := newStore(t, kv, 30*time.Millisecond)

	persisted := make(chan events.Event, 4)
	bus.Subscribe(func(e events.Event) { persisted <- e })

	s.SetWinLoss(7, 9, "12")
	s.SetWinLoss(7, 9, "120")

	if d := s.Load(ctx, 7); len(d.WinLoss) != 0 {
		t.Fatalf("win/loss persisted before the debounce window closed: %v", d.WinLoss)
	}
	if d := s.Snapshot(ctx, 7); d.WinLoss[9] != "120" {
		t.Fatalf("snapshot should expose typed input, got %v", d.WinLoss)
	}

	select {
	case e := <-persisted:
		if e.Kind != events.DraftChanged || e.RecordID != 9 || e.ChangeCount != 1 {
			t.Fatalf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("debounced write never happened")
	}

	if d := s.Load(ctx, 7); d.WinLoss[9] != "120" {
		t.Fatalf("expected coalesced value 120, got %v", d.WinLoss)
	}
	select {
	case e := <-persisted:
		t.Fatalf("expected a single write, got extra event %+v", e)
	case <-time.After(60 * time.Millisecond):
	}
}

// storedKeys lists which draft keys of batchID exist in kv.
func storedKeys(t *testing.T, kv storage.KeyValue, batchID int64) []string {
	t.Helper()
	var out []string
	for _, k := range []string{draft.MatchedUsersKey(batchID), draft.WinLossKey(batchID), draft.ChangeCountKey(batchID)} {
		_, ok, err := kv.Get(context.Background(), k)
		if err != nil {
			t.Fatalf("get %s: %v", k, err)
		}
		if ok {
			out = append(out, k)
		}
	}
	return out
}

func TestZeroChangesRemovesAllKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := storage.NewMemory()
	s, _ := newStore(t, kv, time.Hour)

	mustSetUser(t, s, 5, 1, user(42, "A"))
	s.SetWinLoss(5, 2, "10")
	s.Flush(5)
	if keys := storedKeys(t, kv, 5); len(keys) != 3 {
		t.Fatalf("expected 3 keys, got %v", keys)
	}

	// clearing the only win/loss override leaves the matched-user map alone
	s.SetWinLoss(5, 2, "")
	s.Flush(5)
	keys := storedKeys(t, kv, 5)
	sort.Strings(keys)
	if diff := cmp.Diff([]string{"jkImportLastChanges_5", "jkImportMatchedUsers_5"}, keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}

	if err := s.Clear(ctx, 5); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if keys := storedKeys(t, kv, 5); len(keys) != 0 {
		t.Fatalf("expected no keys after clear, got %v", keys)
	}
}

func TestClearThenLoadIsEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newStore(t, storage.NewMemory(), 20*time.Millisecond)

	mustSetUser(t, s, 9, 1, user(1, "x"))
	s.SetWinLoss(9, 1, "99")

	if err := s.Clear(ctx, 9); err != nil {
		t.Fatalf("clear: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	d := s.Load(ctx, 9)
	if !d.IsEmpty() {
		t.Fatalf("expected empty draft, got %+v", d)
	}
	if s.ChangeCount(ctx, 9) != 0 {
		t.Fatal("expected zero change count")
	}
}

func TestBatchesSharingMonthStayIsolated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newStore(t, storage.NewMemory(), time.Hour)

	// #101 and #205 are both month 202501
	mustSetUser(t, s, 101, 1, user(42, "A"))
	s.SetWinLoss(101, 1, "150")
	s.Flush(101)
	mustSetUser(t, s, 205, 1, user(77, "Z"))

	a := s.Load(ctx, 101)
	b := s.Load(ctx, 205)
	if a.MatchedUsers[1].ID != 42 || a.WinLoss[1] != "150" {
		t.Fatalf("batch 101 changed: %+v", a)
	}
	if b.MatchedUsers[1].ID != 77 || len(b.WinLoss) != 0 {
		t.Fatalf("batch 205 leaked edits: %+v", b)
	}

	if err := s.Clear(ctx, 101); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if b := s.Load(ctx, 205); b.ChangeCount() != 1 {
		t.Fatalf("clearing 101 touched 205: %+v", b)
	}
}

func TestSetMatchedUserSkipsIdenticalValue(t *testing.T) {
	t.Parallel()

	s, bus := newStore(t, storage.NewMemory(), time.Hour)

	var mu sync.Mutex
	var n int
	bus.Subscribe(func(events.Event) {
		mu.Lock()
		n++
		mu.Unlock()
	})

	tests := []struct {
		user        *domain.UserRef
		wantChanged bool
	}{
		{user: user(42, "A"), wantChanged: true},
		{user: user(42, "A renamed"), wantChanged: false},
		{user: nil, wantChanged: true},
		{user: nil, wantChanged: false},
		{user: user(42, "A"), wantChanged: true},
	}
	for i, tt := range tests {
		changed, err := s.SetMatchedUser(context.Background(), 1, 1, tt.user)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if changed != tt.wantChanged {
			t.Fatalf("step %d: changed=%v want %v", i, changed, tt.wantChanged)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if n != 3 {
		t.Fatalf("expected 3 notifications, got %d", n)
	}
}

func TestLoadToleratesCorruptEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := storage.NewMemory()
	_ = kv.Set(ctx, draft.MatchedUsersKey(3), "{not json")
	_ = kv.Set(ctx, draft.WinLossKey(3), `{"1":"10","x":"5","2":250,"3":{}}`)
	_ = kv.Set(ctx, draft.ChangeCountKey(3), "many")

	s, _ := newStore(t, kv, time.Hour)

	d := s.Load(ctx, 3)
	if len(d.MatchedUsers) != 0 {
		t.Fatalf("expected corrupt matched users to degrade to empty, got %v", d.MatchedUsers)
	}
	if diff := cmp.Diff(map[int64]string{1: "10", 2: "250"}, d.WinLoss); diff != "" {
		t.Fatalf("win/loss mismatch (-want +got):\n%s", diff)
	}
	if s.ChangeCount(ctx, 3) != 0 {
		t.Fatal("invalid counter should read as 0")
	}
}

func TestLoadAcceptsLegacyUserIDs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := storage.NewMemory()
	_ = kv.Set(ctx, draft.MatchedUsersKey(4), `{"1":42,"2":"43","3":null,"4":{"id":44,"name":"D"}}`)

	s, _ := newStore(t, kv, time.Hour)

	want := map[int64]*domain.UserRef{
		1: {ID: 42},
		2: {ID: 43},
		3: nil,
		4: {ID: 44, Name: "D"},
	}
	if diff := cmp.Diff(want, s.Load(ctx, 4).MatchedUsers); diff != "" {
		t.Fatalf("matched users mismatch (-want +got):\n%s", diff)
	}
}

type failingKV struct {
	storage.KeyValue
	failReads  bool
	failWrites bool
}

var errStorage = errors.New("disk full")

func (f *failingKV) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failReads {
		return "", false, errStorage
	}
	return f.KeyValue.Get(ctx, key)
}

func (f *failingKV) Set(ctx context.Context, key, value string) error {
	if f.failWrites {
		return errStorage
	}
	return f.KeyValue.Set(ctx, key, value)
}

func TestStorageFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := &failingKV{KeyValue: storage.NewMemory(), failWrites: true}
	s, _ := newStore(t, kv, time.Hour)

	if _, err := s.SetMatchedUser(ctx, 1, 1, user(1, "a")); !errors.Is(err, errStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}

	kv.failWrites = false
	kv.failReads = true
	if d := s.Load(ctx, 1); !d.IsEmpty() {
		t.Fatalf("read failures should degrade to an empty draft, got %+v", d)
	}
}

func TestMergeAppliesDraftOverServerValues(t *testing.T) {
	t.Parallel()

	records := []domain.ImportRecord{
		{ID: 7, WinLoss: decimal.NewFromInt(100)},
		{ID: 8, WinLoss: decimal.NewFromInt(-5), User: user(1, "server")},
		{ID: 9, WinLoss: decimal.RequireFromString("12.5"), User: user(2, "kept")},
	}
	d := draft.Draft{
		MatchedUsers: map[int64]*domain.UserRef{7: user(42, "A"), 8: nil},
		WinLoss:      map[int64]string{7: "150"},
	}

	got := draft.Merge(records, d)

	if got[0].EffectiveWinLoss != "150" || got[0].EffectiveUser.ID != 42 || got[0].EffectiveUser.Name != "A" {
		t.Fatalf("record 7: %+v", got[0])
	}
	if !got[0].UserEdited || !got[0].WinLossEdited {
		t.Fatalf("record 7 should be marked edited: %+v", got[0])
	}
	if got[1].EffectiveUser != nil || !got[1].UserEdited {
		t.Fatalf("record 8 should be explicitly unmatched: %+v", got[1])
	}
	if got[1].EffectiveWinLoss != "-5" {
		t.Fatalf("record 8 win/loss: %q", got[1].EffectiveWinLoss)
	}
	if got[2].EffectiveUser.ID != 2 || got[2].UserEdited || got[2].EffectiveWinLoss != "12.5" {
		t.Fatalf("record 9 should keep server values: %+v", got[2])
	}
}

func TestUpdates(t *testing.T) {
	t.Parallel()

	d := draft.Draft{
		MatchedUsers: map[int64]*domain.UserRef{3: user(42, "A"), 1: nil},
		WinLoss:      map[int64]string{3: " 150 ", 2: "-7.5"},
	}

	updates, err := d.Updates()
	if err != nil {
		t.Fatalf("updates: %v", err)
	}
	if len(updates) != 3 {
		t.Fatalf("expected 3 updates, got %d", len(updates))
	}
	if u := updates[0]; u.RecordID != 1 || !u.SetUser || u.UserID != nil || u.WinLoss != nil {
		t.Fatalf("record 1: %+v", u)
	}
	if u := updates[1]; u.RecordID != 2 || u.SetUser || !u.WinLoss.Equal(decimal.RequireFromString("-7.5")) {
		t.Fatalf("record 2: %+v", u)
	}
	if u := updates[2]; u.RecordID != 3 || *u.UserID != 42 || !u.WinLoss.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("record 3: %+v", u)
	}

	d.WinLoss[4] = "12abc"
	_, err = d.Updates()
	var invalid *draft.InvalidWinLossError
	if !errors.As(err, &invalid) || invalid.RecordID != 4 {
		t.Fatalf("expected invalid win/loss for record 4, got %v", err)
	}
}

func mustSetUser(t *testing.T, s *draft.Store, batchID, recordID int64, u *domain.UserRef) {
	t.Helper()
	if _, err := s.SetMatchedUser(context.Background(), batchID, recordID, u); err != nil {
		t.Fatalf("set matched user: %v", err)
	}
}
