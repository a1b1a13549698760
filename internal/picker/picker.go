// Package picker backs the per-record matched-user selector: debounced
// lookups of eligible users, stale-response suppression and a memo of every
// user seen so far.
package picker

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"junket-admin/internal/constants"
	"junket-admin/internal/debounce"
	"junket-admin/internal/domain"
	"junket-admin/internal/events"

	"github.com/rs/zerolog"
)

// ErrSuperseded is returned for a lookup that finished after a newer lookup
// for the same record was issued. Its result is discarded.
var ErrSuperseded = errors.New("search superseded by a newer query")

type UserLookup interface {
	MKUsers(ctx context.Context, search string, limit int) ([]domain.UserRef, error)
}

type Picker struct {
	lookup   UserLookup
	bus      *events.Bus
	debounce *debounce.Debouncer
	minChars int
	limit    int
	logger   zerolog.Logger

	mu      sync.Mutex
	tokens  map[int64]uint64
	results map[int64][]domain.UserRef
	memo    map[int64]domain.UserRef
}

func New(lookup UserLookup, bus *events.Bus, delay time.Duration, logger zerolog.Logger) *Picker {
	return &Picker{
		lookup:   lookup,
		bus:      bus,
		debounce: debounce.New(delay),
		minChars: constants.SearchMinChars,
		limit:    constants.MKUserSearchSize,
		logger:   logger,
		tokens:   make(map[int64]uint64),
		results:  make(map[int64][]domain.UserRef),
		memo:     make(map[int64]domain.UserRef),
	}
}

// Lookup runs a search for recordID now. Queries shorter than the minimum
// clear the record's results without calling the backend.
func (p *Picker) Lookup(ctx context.Context, recordID int64, query string) ([]domain.UserRef, error) {
	query = strings.TrimSpace(query)
	token := p.issue(recordID)

	if utf8.RuneCountInString(query) < p.minChars {
		p.deliver(recordID, token, nil)
		return nil, nil
	}

	users, err := p.lookup.MKUsers(ctx, query, p.limit)
	if err != nil {
		if !p.isLatest(recordID, token) {
			return nil, ErrSuperseded
		}
		p.logger.Warn().Err(err).Int64("record_id", recordID).Str("query", query).Msg("user lookup failed")
		return nil, err
	}
	if !p.deliver(recordID, token, users) {
		p.logger.Debug().Int64("record_id", recordID).Str("query", query).Msg("discarding stale user lookup")
		return nil, ErrSuperseded
	}
	return users, nil
}

// Search debounces Lookup per record and announces fresh results on the bus.
func (p *Picker) Search(batchID, recordID int64, query string) {
	p.debounce.Trigger(strconv.FormatInt(recordID, 10), func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.ExternalAPITimeout)
		defer cancel()

		if _, err := p.Lookup(ctx, recordID, query); err != nil {
			if !errors.Is(err, ErrSuperseded) {
				p.logger.Error().Err(err).Int64("record_id", recordID).Msg("debounced user search failed")
			}
			return
		}
		if p.bus != nil {
			p.bus.Publish(events.Event{Kind: events.CandidatesUpdated, BatchID: batchID, RecordID: recordID})
		}
	})
}

// Candidates returns the latest results for recordID, with selected kept in
// the list even when the latest search did not return it.
func (p *Picker) Candidates(recordID int64, selected *domain.UserRef) []domain.UserRef {
	p.mu.Lock()
	defer p.mu.Unlock()

	results := p.results[recordID]
	out := make([]domain.UserRef, 0, len(results)+1)
	if selected != nil {
		found := false
		for _, u := range results {
			if u.ID == selected.ID {
				found = true
				break
			}
		}
		if !found {
			sel := *selected
			if known, ok := p.memo[sel.ID]; ok && sel.Name == "" && sel.Email == "" {
				sel = known
			}
			out = append(out, sel)
		}
	}
	return append(out, results...)
}

// Remember adds users to the memo, e.g. the matched users of a fetched page.
func (p *Picker) Remember(users ...domain.UserRef) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range users {
		p.memoize(u)
	}
}

// Known returns the memoized user with id.
func (p *Picker) Known(id int64) (domain.UserRef, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.memo[id]
	return u, ok
}

// Forget drops the per-record search state. The memo is kept.
func (p *Picker) Forget(recordID int64) {
	p.debounce.Cancel(strconv.FormatInt(recordID, 10))

	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens[recordID]++
	delete(p.results, recordID)
}

func (p *Picker) Close() {
	p.debounce.Stop()
}

func (p *Picker) issue(recordID int64) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens[recordID]++
	return p.tokens[recordID]
}

func (p *Picker) isLatest(recordID int64, token uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokens[recordID] == token
}

func (p *Picker) deliver(recordID int64, token uint64, users []domain.UserRef) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tokens[recordID] != token {
		return false
	}
	for _, u := range users {
		p.memoize(u)
	}
	if len(users) == 0 {
		delete(p.results, recordID)
		return true
	}
	p.results[recordID] = append([]domain.UserRef(nil), users...)
	return true
}

// memoize must be called with p.mu held.
func (p *Picker) memoize(u domain.UserRef) {
	if u.ID == 0 {
		return
	}
	if known, ok := p.memo[u.ID]; ok && u.Name == "" && u.Email == "" {
		u = known
	}
	p.memo[u.ID] = u
}
