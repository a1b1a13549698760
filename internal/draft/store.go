package draft

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"junket-admin/internal/constants"
	"junket-admin/internal/debounce"
	"junket-admin/internal/domain"
	"junket-admin/internal/events"
	"junket-admin/internal/storage"

	"github.com/rs/zerolog"
)

// Store persists drafts in a storage.KeyValue under the jkImport* keys.
// Win/loss input is debounced per record; matched-user changes are written
// immediately.
type Store struct {
	kv       storage.KeyValue
	bus      *events.Bus
	debounce *debounce.Debouncer
	logger   zerolog.Logger

	mu sync.Mutex
	// win/loss input typed but not yet written, by batch then record
	typing map[int64]map[int64]string
}

func NewStore(kv storage.KeyValue, bus *events.Bus, delay time.Duration, logger zerolog.Logger) *Store {
	return &Store{
		kv:       kv,
		bus:      bus,
		debounce: debounce.New(delay),
		logger:   logger,
		typing:   make(map[int64]map[int64]string),
	}
}

// Load reads the persisted draft for batchID. It never fails: unreadable or
// corrupt entries are logged and treated as no staged edits.
func (s *Store) Load(ctx context.Context, batchID int64) Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, batchID)
}

// Snapshot is Load plus win/loss input still inside the debounce window.
func (s *Store) Snapshot(ctx context.Context, batchID int64) Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(ctx, batchID)
}

// snapshot must be called with s.mu held.
func (s *Store) snapshot(ctx context.Context, batchID int64) Draft {
	d := s.load(ctx, batchID)
	for recordID, raw := range s.typing[batchID] {
		if strings.TrimSpace(raw) == "" {
			delete(d.WinLoss, recordID)
			continue
		}
		d.WinLoss[recordID] = raw
	}
	return d
}

// ChangeCount reads the stored change counter. Missing or invalid counters are 0.
func (s *Store) ChangeCount(ctx context.Context, batchID int64) int {
	v, ok, err := s.kv.Get(ctx, ChangeCountKey(batchID))
	if err != nil {
		s.logger.Warn().Err(err).Int64("batch_id", batchID).Msg("failed to read draft change count")
		return 0
	}
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// SetMatchedUser stages user (nil for unmatched) for a record. It reports
// false without writing when the staged value already has the same user.
func (s *Store) SetMatchedUser(ctx context.Context, batchID, recordID int64, user *domain.UserRef) (bool, error) {
	s.mu.Lock()
	d := s.load(ctx, batchID)
	if existing, ok := d.MatchedUsers[recordID]; ok && sameUser(existing, user) {
		s.mu.Unlock()
		return false, nil
	}

	if user != nil {
		u := *user
		user = &u
	}
	d.MatchedUsers[recordID] = user

	err := s.persist(ctx, d)
	s.mu.Unlock()
	if err != nil {
		return false, err
	}

	s.logger.Debug().
		Int64("batch_id", batchID).
		Int64("record_id", recordID).
		Bool("unmatched", user == nil).
		Msg("matched user staged")
	s.publish(events.DraftChanged, batchID, recordID, d.ChangeCount())
	return true, nil
}

// SetWinLoss records raw as typed input and persists it once the record has
// been quiet for the debounce delay. Empty input drops the override.
func (s *Store) SetWinLoss(batchID, recordID int64, raw string) {
	s.mu.Lock()
	if s.typing[batchID] == nil {
		s.typing[batchID] = make(map[int64]string)
	}
	s.typing[batchID][recordID] = raw
	s.mu.Unlock()

	s.debounce.Trigger(debounceKey(batchID, recordID), func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
		defer cancel()
		if err := s.commitWinLoss(ctx, batchID, recordID); err != nil {
			s.logger.Error().Err(err).
				Int64("batch_id", batchID).
				Int64("record_id", recordID).
				Msg("failed to persist win/loss change")
		}
	})
}

func (s *Store) commitWinLoss(ctx context.Context, batchID, recordID int64) error {
	s.mu.Lock()
	raw, ok := s.typing[batchID][recordID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.typing[batchID], recordID)
	if len(s.typing[batchID]) == 0 {
		delete(s.typing, batchID)
	}

	d := s.load(ctx, batchID)
	current, had := d.WinLoss[recordID]
	if strings.TrimSpace(raw) == "" {
		if !had {
			s.mu.Unlock()
			return nil
		}
		delete(d.WinLoss, recordID)
	} else {
		if had && current == raw {
			s.mu.Unlock()
			return nil
		}
		d.WinLoss[recordID] = raw
	}

	err := s.persist(ctx, d)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(events.DraftChanged, batchID, recordID, d.ChangeCount())
	return nil
}

// Flush writes any debounced win/loss input of batchID right away.
func (s *Store) Flush(batchID int64) int {
	prefix := debouncePrefix(batchID)
	return s.debounce.FlushMatching(func(key string) bool { return strings.HasPrefix(key, prefix) })
}

// Clear drops every staged edit of batchID, pending input included.
func (s *Store) Clear(ctx context.Context, batchID int64) error {
	prefix := debouncePrefix(batchID)
	s.debounce.CancelMatching(func(key string) bool { return strings.HasPrefix(key, prefix) })

	s.mu.Lock()
	delete(s.typing, batchID)
	err := s.kv.Delete(ctx, keys(batchID)...)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to clear draft %d: %w", batchID, err)
	}

	s.logger.Info().Int64("batch_id", batchID).Msg("draft cleared")
	s.publish(events.DraftCleared, batchID, 0, 0)
	return nil
}

// Close writes all pending input and stops the debouncer.
func (s *Store) Close() {
	s.debounce.FlushMatching(func(string) bool { return true })
	s.debounce.Stop()
}

func (s *Store) load(ctx context.Context, batchID int64) Draft {
	d := empty(batchID)

	if raw, ok := s.read(ctx, MatchedUsersKey(batchID)); ok {
		d.MatchedUsers = s.decodeMatchedUsers(batchID, raw)
	}
	if raw, ok := s.read(ctx, WinLossKey(batchID)); ok {
		d.WinLoss = s.decodeWinLoss(batchID, raw)
	}
	return d
}

func (s *Store) read(ctx context.Context, key string) (string, bool) {
	v, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to read draft entry")
		return "", false
	}
	return v, ok
}

// persist must be called with s.mu held.
func (s *Store) persist(ctx context.Context, d Draft) error {
	if d.IsEmpty() {
		if err := s.kv.Delete(ctx, keys(d.BatchID)...); err != nil {
			return fmt.Errorf("failed to remove empty draft %d: %w", d.BatchID, err)
		}
		return nil
	}

	if err := s.writeOrDelete(ctx, MatchedUsersKey(d.BatchID), len(d.MatchedUsers), encodeMatchedUsers(d.MatchedUsers)); err != nil {
		return err
	}
	if err := s.writeOrDelete(ctx, WinLossKey(d.BatchID), len(d.WinLoss), encodeWinLoss(d.WinLoss)); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, ChangeCountKey(d.BatchID), strconv.Itoa(d.ChangeCount())); err != nil {
		return fmt.Errorf("failed to write change count for draft %d: %w", d.BatchID, err)
	}
	return nil
}

func (s *Store) writeOrDelete(ctx context.Context, key string, n int, encode func() ([]byte, error)) error {
	if n == 0 {
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to remove %s: %w", key, err)
		}
		return nil
	}
	b, err := encode()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, string(b)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *Store) publish(kind events.Kind, batchID, recordID int64, count int) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Kind: kind, BatchID: batchID, RecordID: recordID, ChangeCount: count})
}

func encodeMatchedUsers(m map[int64]*domain.UserRef) func() ([]byte, error) {
	return func() ([]byte, error) {
		out := make(map[string]*domain.UserRef, len(m))
		for id, u := range m {
			out[strconv.FormatInt(id, 10)] = u
		}
		return json.Marshal(out)
	}
}

func encodeWinLoss(m map[int64]string) func() ([]byte, error) {
	return func() ([]byte, error) {
		out := make(map[string]string, len(m))
		for id, v := range m {
			out[strconv.FormatInt(id, 10)] = v
		}
		return json.Marshal(out)
	}
}

// decodeMatchedUsers accepts user objects, null, and bare user ids (older
// entries stored only the id).
func (s *Store) decodeMatchedUsers(batchID int64, raw string) map[int64]*domain.UserRef {
	out := make(map[int64]*domain.UserRef)

	var entries map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.logger.Warn().Err(err).Int64("batch_id", batchID).Msg("corrupt matched users draft, ignoring")
		return out
	}

	for key, val := range entries {
		recordID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			s.logger.Warn().Str("record", key).Int64("batch_id", batchID).Msg("skipping draft entry with invalid record id")
			continue
		}
		user, err := decodeUser(val)
		if err != nil {
			s.logger.Warn().Err(err).Int64("record_id", recordID).Int64("batch_id", batchID).Msg("skipping unreadable matched user entry")
			continue
		}
		out[recordID] = user
	}
	return out
}

func decodeUser(val json.RawMessage) (*domain.UserRef, error) {
	val = bytes.TrimSpace(val)
	switch {
	case len(val) == 0, bytes.Equal(val, []byte("null")), bytes.Equal(val, []byte("false")):
		return nil, nil
	case val[0] == '{':
		var u domain.UserRef
		if err := json.Unmarshal(val, &u); err != nil {
			return nil, err
		}
		if u.ID == 0 {
			return nil, nil
		}
		return &u, nil
	case val[0] == '"':
		var str string
		if err := json.Unmarshal(val, &str); err != nil {
			return nil, err
		}
		if str == "" {
			return nil, nil
		}
		id, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return nil, err
		}
		return &domain.UserRef{ID: id}, nil
	default:
		var id int64
		if err := json.Unmarshal(val, &id); err != nil {
			return nil, err
		}
		return &domain.UserRef{ID: id}, nil
	}
}

func (s *Store) decodeWinLoss(batchID int64, raw string) map[int64]string {
	out := make(map[int64]string)

	var entries map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.logger.Warn().Err(err).Int64("batch_id", batchID).Msg("corrupt win/loss draft, ignoring")
		return out
	}

	for key, val := range entries {
		recordID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		var str string
		if err := json.Unmarshal(val, &str); err != nil {
			var num json.Number
			if err := json.Unmarshal(val, &num); err != nil {
				s.logger.Warn().Int64("record_id", recordID).Int64("batch_id", batchID).Msg("skipping unreadable win/loss entry")
				continue
			}
			str = num.String()
		}
		out[recordID] = str
	}
	return out
}

func sameUser(a, b *domain.UserRef) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID
}

func debounceKey(batchID, recordID int64) string {
	return debouncePrefix(batchID) + strconv.FormatInt(recordID, 10)
}

func debouncePrefix(batchID int64) string {
	return strconv.FormatInt(batchID, 10) + ":"
}
