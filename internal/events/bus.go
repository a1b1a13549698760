// Package events fans out in-process change notifications so every open view
// (history badges, record tables) can refresh without polling.
package events

import (
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type Kind string

const (
	DraftChanged      Kind = "draft.changed"
	DraftCleared      Kind = "draft.cleared"
	CandidatesUpdated Kind = "candidates.updated"
	BatchTransitioned Kind = "batch.transitioned"
	BatchDeleted      Kind = "batch.deleted"
)

type Event struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	BatchID     int64     `json:"batchId,omitempty"`
	RecordID    int64     `json:"recordId,omitempty"`
	ChangeCount int       `json:"changeCount"`
	Status      string    `json:"status,omitempty"`
	At          time.Time `json:"at"`
}

type Bus struct {
	mu     sync.RWMutex
	subs   map[string]func(Event)
	logger zerolog.Logger
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{subs: make(map[string]func(Event)), logger: logger}
}

// Subscribe registers fn and returns a function that removes it.
// fn runs on the publisher's goroutine and must not block.
func (b *Bus) Subscribe(fn func(Event)) func() {
	id := newID()

	b.mu.Lock()
	b.subs[id] = fn
	b.mu.Unlock()

	b.logger.Debug().Str("subscriber", id).Msg("event subscriber added")
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		b.logger.Debug().Str("subscriber", id).Msg("event subscriber removed")
	}
}

func (b *Bus) Publish(e Event) {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}

func newID() string {
	id, err := gonanoid.New()
	if err != nil {
		return time.Now().Format("20060102150405.000000000")
	}
	return id
}
