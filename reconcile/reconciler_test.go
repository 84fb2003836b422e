package reconcile

import (
	"adoption-chat/domain/chat"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func message(id string, at time.Time) chat.Message {
	return chat.Message{
		ID:             chat.MessageID(id),
		ConversationID: "adoption-42",
		SenderID:       "alice",
		Content:        "is Rex still available?",
		CreatedAt:      at,
	}
}

func ids(messages []chat.Message) []chat.MessageID {
	return lo.Map(messages, func(m chat.Message, _ int) chat.MessageID { return m.ID })
}

func TestReconciler_EmptyHistory_LiveMessage(t *testing.T) {
	req := require.New(t)
	r := NewReconciler()
	m1 := message("a", t0)

	// Given history returned nothing
	r.SeedHistory(nil)

	// When m1 is delivered live
	added := r.Merge(m1)

	// Then the sequence is [m1]
	req.True(added)
	req.Equal([]chat.Message{m1}, r.Sequence())
}

func TestReconciler_HistoryRedeliveredLive(t *testing.T) {
	req := require.New(t)
	r := NewReconciler()
	m1 := message("a", t0)

	// Given m1 is in history
	r.SeedHistory([]chat.Message{m1})

	// When the live channel delivers m1 again
	added := r.Merge(m1)

	// Then only one entry with id "a" exists
	req.False(added)
	req.Equal([]chat.MessageID{"a"}, ids(r.Sequence()))
}

func TestReconciler_SortsByCreatedAtNotArrival(t *testing.T) {
	req := require.New(t)
	r := NewReconciler()
	m1 := message("a", t0.Add(time.Second))
	m2 := message("b", t0.Add(2*time.Second))

	// When m2 arrives before m1
	r.Merge(m2)
	r.Merge(m1)

	// Then the sequence is ordered by time
	req.Equal([]chat.MessageID{"a", "b"}, ids(r.Sequence()))
}

func TestReconciler_IdempotentMerge(t *testing.T) {
	req := require.New(t)
	for _, n := range []int{1, 2, 5, 50} {
		r := NewReconciler()
		m := message("same", t0)
		r.SeedHistory([]chat.Message{m})
		for i := 0; i < n; i++ {
			r.Merge(m)
		}
		req.Len(r.Sequence(), 1, "after %d merges", n)
	}
}

func TestReconciler_OrderIndependentOfMergeOrder(t *testing.T) {
	req := require.New(t)
	var messages []chat.Message
	for i := 0; i < 30; i++ {
		messages = append(messages, message(fmt.Sprintf("m%02d", i), t0.Add(time.Duration(i)*time.Minute)))
	}
	expected := ids(messages)

	rnd := rand.New(rand.NewSource(7))
	for round := 0; round < 10; round++ {
		shuffled := append([]chat.Message(nil), messages...)
		rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		r := NewReconciler()
		// Half of the messages come from history, the rest live
		r.SeedHistory(shuffled[:15])
		for _, m := range shuffled[15:] {
			r.Merge(m)
		}
		req.Equal(expected, ids(r.Sequence()))
	}
}

func TestReconciler_TiesKeepArrivalOrder(t *testing.T) {
	req := require.New(t)
	r := NewReconciler()

	// Given two senders produced the same timestamp
	r.Merge(message("from-bob", t0))
	r.Merge(message("from-alice", t0))

	// Then the first arrival stays first, even after a redelivery
	r.Merge(message("from-bob", t0))
	req.Equal([]chat.MessageID{"from-bob", "from-alice"}, ids(r.Sequence()))
}

func TestReconciler_MissingCreatedAtUsesInsertionTime(t *testing.T) {
	req := require.New(t)
	now := t0.Add(time.Hour)
	r := NewReconciler(WithClock(func() time.Time { return now }))

	// Given a message without timestamp arrives between two timestamped ones
	r.Merge(message("early", t0))
	r.Merge(message("broken", time.Time{}))
	r.Merge(message("late", t0.Add(2*time.Hour)))

	// Then it is placed at its insertion time and nothing panics
	req.Equal([]chat.MessageID{"early", "broken", "late"}, ids(r.Sequence()))
}

func TestReconciler_RoundTrip(t *testing.T) {
	req := require.New(t)
	live := message("round-trip", t0)

	// Given a client saw the message live, then reloads history containing it
	r := NewReconciler()
	r.Merge(live)
	persisted := live
	r.SeedHistory([]chat.Message{persisted})

	// Then a single identical entry is visible
	req.Equal([]chat.Message{live}, r.Sequence())
}

func TestReconciler_Subscribe(t *testing.T) {
	req := require.New(t)
	r := NewReconciler()
	var received [][]chat.Message
	cancel := r.Subscribe(func(messages []chat.Message) {
		received = append(received, messages)
	})

	r.SeedHistory([]chat.Message{message("a", t0)})
	r.Merge(message("b", t0.Add(time.Second)))
	cancel()
	r.Merge(message("c", t0.Add(2*time.Second)))

	// Then the observer got the initial, seeded and merged sequences only
	req.Len(received, 3)
	req.Empty(received[0])
	req.Equal([]chat.MessageID{"a", "b"}, ids(received[2]))
}

func TestReconciler_SubscribeWhileMerging(t *testing.T) {
	req := require.New(t)
	r := NewReconciler()
	merged := make(chan struct{})

	// Given messages merged from another goroutine
	go func() {
		defer close(merged)
		for i := 0; i < 500; i++ {
			r.Merge(message(fmt.Sprintf("m%03d", i), t0.Add(time.Duration(i)*time.Second)))
		}
	}()

	// When an observer subscribes in the middle
	var mu sync.Mutex
	var lengths []int
	cancel := r.Subscribe(func(messages []chat.Message) {
		mu.Lock()
		lengths = append(lengths, len(messages))
		mu.Unlock()
	})
	defer cancel()
	<-merged

	// Then it never sees a sequence older than one it already got
	mu.Lock()
	defer mu.Unlock()
	req.NotEmpty(lengths)
	req.IsNonDecreasing(lengths)
	req.Equal(500, lengths[len(lengths)-1])
}

func TestReconciler_Reset(t *testing.T) {
	req := require.New(t)
	r := NewReconciler()
	r.SeedHistory([]chat.Message{message("a", t0)})
	r.Merge(message("b", t0))

	r.Reset()

	req.Empty(r.Sequence())
	req.Empty(r.Live())
}

func TestDerive_ReplayIsDeterministic(t *testing.T) {
	req := require.New(t)
	now := func() time.Time { return t0 }
	history := []chat.Message{message("a", t0), message("b", t0.Add(time.Minute))}
	live := []chat.Message{message("c", t0.Add(-time.Minute)), message("a", t0), message("c", t0.Add(-time.Minute))}

	first := Derive(history, live, now)
	second := Derive(history, live, now)

	req.Equal(first, second)
	req.Equal([]chat.MessageID{"c", "a", "b"}, ids(first))

	r := NewReconciler(WithClock(now))
	r.SeedHistory(history)
	for _, m := range live {
		r.Merge(m)
	}
	req.Equal(first, r.Sequence())
}
