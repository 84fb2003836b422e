// Package reconcile builds the visible message sequence of one conversation.
// Handles ordering and deduplication across durable history and live delivery.
// Does not publish or persist anything.
package reconcile

import (
	"adoption-chat/domain/chat"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

type entry struct {
	message chat.Message
	arrival uint64
	sortAt  time.Time
	// fallback is set when sortAt is an insertion time rather than CreatedAt.
	fallback bool
}

// Reconciler keeps history and live messages in two id-keyed sets and derives
// one sequence from their union, ordered by CreatedAt then by first arrival.
// The sets are never merged into each other, so the sequence can always be
// recomputed from the inputs.
type Reconciler struct {
	mu        sync.RWMutex
	now       func() time.Time
	history   map[chat.MessageID]entry
	live      map[chat.MessageID]entry
	arrivals  uint64
	current   []chat.Message
	observers map[int]func([]chat.Message)
	nextID    int
	// notifyMu serializes deliveries, observers never see an older sequence after a newer one.
	// An observer must not call Subscribe.
	notifyMu sync.Mutex
}

type Option func(*Reconciler)

// WithClock replaces the clock used for messages without a usable CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func NewReconciler(opts ...Option) *Reconciler {
	r := &Reconciler{
		now:       time.Now,
		history:   make(map[chat.MessageID]entry),
		live:      make(map[chat.MessageID]entry),
		observers: make(map[int]func([]chat.Message)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SeedHistory replaces the history set with messages and notifies observers.
func (r *Reconciler) SeedHistory(messages []chat.Message) {
	r.mu.Lock()
	previous := r.history
	r.history = make(map[chat.MessageID]entry, len(messages))
	for _, m := range messages {
		if e, ok := previous[m.ID]; ok {
			r.history[m.ID] = r.overwrite(e, m)
			continue
		}
		r.insert(r.history, m)
	}
	r.derive()
	r.mu.Unlock()
	r.notify()
}

// Merge applies one live message. Seeing an id again overwrites the stored
// value in place and keeps its original position; added is false in that case.
func (r *Reconciler) Merge(message chat.Message) (added bool) {
	r.mu.Lock()
	_, inHistory := r.history[message.ID]
	existing, inLive := r.live[message.ID]
	switch {
	case inLive:
		r.live[message.ID] = r.overwrite(existing, message)
	default:
		r.insert(r.live, message)
	}
	r.derive()
	r.mu.Unlock()
	r.notify()
	return !inHistory && !inLive
}

// Sequence returns a copy of the current derived sequence.
func (r *Reconciler) Sequence() []chat.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]chat.Message(nil), r.current...)
}

// Live returns the messages received from the live channel, in arrival order.
func (r *Reconciler) Live() []chat.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := lo.Values(r.live)
	sort.Slice(entries, func(i, j int) bool { return entries[i].arrival < entries[j].arrival })
	return lo.Map(entries, func(e entry, _ int) chat.Message { return e.message })
}

func (r *Reconciler) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.current)
}

// Subscribe registers fn to receive every new sequence. fn is called with the
// current sequence right away. The returned function removes the observer.
func (r *Reconciler) Subscribe(fn func([]chat.Message)) (cancel func()) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.observers[id] = fn
	snapshot := append([]chat.Message(nil), r.current...)
	r.mu.Unlock()

	fn(snapshot)
	return func() {
		r.mu.Lock()
		delete(r.observers, id)
		r.mu.Unlock()
	}
}

// Reset discards both sets and all observers.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = make(map[chat.MessageID]entry)
	r.live = make(map[chat.MessageID]entry)
	r.observers = make(map[int]func([]chat.Message))
	r.current = nil
}

func (r *Reconciler) insert(set map[chat.MessageID]entry, m chat.Message) {
	r.arrivals++
	e := entry{message: m, arrival: r.arrivals, sortAt: m.CreatedAt}
	if m.CreatedAt.IsZero() {
		e.sortAt = r.now().UTC()
		e.fallback = true
	}
	set[m.ID] = e
}

func (r *Reconciler) overwrite(e entry, m chat.Message) entry {
	e.message = m
	if e.fallback && !m.CreatedAt.IsZero() {
		e.sortAt = m.CreatedAt
		e.fallback = false
	}
	return e
}

func (r *Reconciler) derive() {
	r.current = derive(r.history, r.live)
}

// notify reads the sequence once the delivery turn is taken, so concurrent
// changes reach each observer in order, possibly coalesced.
func (r *Reconciler) notify() {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	r.mu.RLock()
	snapshot := append([]chat.Message(nil), r.current...)
	observers := lo.Values(r.observers)
	r.mu.RUnlock()
	for _, fn := range observers {
		fn(snapshot)
	}
}

// derive computes values(history ∪ live). For an id present in both sets the
// live value wins and the earliest arrival gives its tie-break position.
func derive(history, live map[chat.MessageID]entry) []chat.Message {
	union := make(map[chat.MessageID]entry, len(history)+len(live))
	for id, e := range history {
		union[id] = e
	}
	for id, e := range live {
		h, ok := union[id]
		if !ok {
			union[id] = e
			continue
		}
		merged := e
		merged.arrival = min(h.arrival, e.arrival)
		if e.fallback && !h.fallback {
			merged.sortAt, merged.fallback = h.sortAt, false
		}
		union[id] = merged
	}

	entries := lo.Values(union)
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].sortAt.Equal(entries[j].sortAt) {
			return entries[i].sortAt.Before(entries[j].sortAt)
		}
		return entries[i].arrival < entries[j].arrival
	})
	return lo.Map(entries, func(e entry, _ int) chat.Message { return e.message })
}

// Derive is the reconciliation as a pure function: history is applied first,
// then live in the given order. Replaying the same inputs gives the same output.
func Derive(history, live []chat.Message, now func() time.Time) []chat.Message {
	r := NewReconciler(WithClock(now))
	for _, m := range history {
		if e, ok := r.history[m.ID]; ok {
			r.history[m.ID] = r.overwrite(e, m)
			continue
		}
		r.insert(r.history, m)
	}
	for _, m := range live {
		if e, ok := r.live[m.ID]; ok {
			r.live[m.ID] = r.overwrite(e, m)
			continue
		}
		r.insert(r.live, m)
	}
	return derive(r.history, r.live)
}
