// Package display holds the latest classification for whoever renders it.
//
// The worker swaps in a new immutable Snapshot per frame. Readers either
// load the current one or subscribe and receive every update that they are
// fast enough to take.
package display

import (
	"sync"
	"sync/atomic"

	"github.com/Brownie44l1/lizzycam/internal/decision"
)

// InitialText is shown before the first frame has been classified.
const InitialText = "Analyzing..."

// Snapshot is one published result. Seq increases with every update.
type Snapshot struct {
	Seq    uint64          `json:"seq"`
	Result decision.Result `json:"result"`
}

// Board is the display state. Safe for concurrent use.
type Board struct {
	current atomic.Pointer[Snapshot]
	seq     atomic.Uint64

	mu   sync.Mutex
	subs map[chan Snapshot]struct{}
}

func NewBoard() *Board {
	return &Board{subs: make(map[chan Snapshot]struct{})}
}

// Current returns the latest snapshot, or false before the first update.
func (b *Board) Current() (Snapshot, bool) {
	s := b.current.Load()
	if s == nil {
		return Snapshot{}, false
	}
	return *s, true
}

// Text is what the overlay shows right now.
func (b *Board) Text() string {
	if s, ok := b.Current(); ok {
		return s.Result.Text
	}
	return InitialText
}

// Update publishes res. It never blocks: a subscriber that has not taken
// its previous snapshot gets it replaced by this one.
func (b *Board) Update(res decision.Result) Snapshot {
	// Own the slice so later writes by the caller cannot reach readers.
	res.Probabilities = append([]float32(nil), res.Probabilities...)
	s := &Snapshot{Seq: b.seq.Add(1), Result: res}
	b.current.Store(s)

	b.mu.Lock()
	for ch := range b.subs {
		offer(ch, *s)
	}
	b.mu.Unlock()
	return *s
}

func offer(ch chan Snapshot, s Snapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	// Full: drop the stale snapshot, keep the new one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}

// Subscribe returns a channel of updates, primed with the current snapshot
// if there is one, and a cancel func that closes it.
func (b *Board) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	b.mu.Lock()
	if s := b.current.Load(); s != nil {
		ch <- *s
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			close(ch)
			b.mu.Unlock()
		})
	}
}

// Subscribers is the number of live subscriptions.
func (b *Board) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
