// Package supplier hands camera frames to the classification worker.
//
// Frames are never queued: the mailbox holds at most one unconsumed frame
// and a new one replaces it. The replaced frame is released back to the
// camera source right away.
package supplier

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Brownie44l1/lizzycam/internal/frame"
)

// ErrClosed is returned by Next once the mailbox is closed.
var ErrClosed = errors.New("mailbox closed")

// Stats is a snapshot of mailbox counters.
type Stats struct {
	Published      uint64    `json:"published"`
	Consumed       uint64    `json:"consumed"`
	Dropped        uint64    `json:"dropped"`
	LastConsumedAt time.Time `json:"last_consumed_at"`
}

// Mailbox is a single-slot, keep-only-latest frame buffer with one
// consumer.
type Mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  *frame.RawFrame
	closed bool
	stats  Stats
}

func NewMailbox() *Mailbox {
	m := &Mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Publish stores f, replacing and releasing any frame the worker has not
// picked up yet. It never blocks. After Close the frame is released
// immediately.
func (m *Mailbox) Publish(f *frame.RawFrame) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		f.Close()
		return
	}

	dropped := m.frame
	m.frame = f
	m.stats.Published++
	if dropped != nil {
		m.stats.Dropped++
	}
	m.cond.Signal()
	m.mu.Unlock()

	// Release outside the lock; the source's callback may be slow.
	dropped.Close()
}

// Next blocks until a frame is available, ctx is done, or the mailbox is
// closed. The caller owns the returned frame and must Close it.
func (m *Mailbox) Next(ctx context.Context) (*frame.RawFrame, error) {
	// sync.Cond cannot select on ctx; wake the waiter when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	for m.frame == nil && !m.closed && ctx.Err() == nil {
		m.cond.Wait()
	}
	if m.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := m.frame
	m.frame = nil
	m.stats.Consumed++
	m.stats.LastConsumedAt = time.Now()
	return f, nil
}

// Close wakes the consumer and releases the pending frame. Idempotent.
func (m *Mailbox) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	pending := m.frame
	m.frame = nil
	m.cond.Broadcast()
	m.mu.Unlock()

	pending.Close()
}

func (m *Mailbox) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
