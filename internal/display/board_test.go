package display

import (
	"testing"

	"github.com/Brownie44l1/lizzycam/internal/decision"
)

func TestBoardInitialState(t *testing.T) {
	b := NewBoard()
	if _, ok := b.Current(); ok {
		t.Error("Current() reported a snapshot before any update")
	}
	if b.Text() != InitialText {
		t.Errorf("Text() = %q, want %q", b.Text(), InitialText)
	}
}

func TestBoardUpdateSwapsSnapshot(t *testing.T) {
	b := NewBoard()
	probs := []float32{0.95, 0.05}
	b.Update(decision.Result{Text: "first", Probabilities: probs})
	b.Update(decision.Result{Text: "second"})

	s, ok := b.Current()
	if !ok || s.Result.Text != "second" || s.Seq != 2 {
		t.Errorf("Current() = %+v, %v", s, ok)
	}

	// Mutating the caller's slice must not leak into published snapshots.
	first := b.Update(decision.Result{Text: "third", Probabilities: probs})
	probs[0] = -1
	if first.Result.Probabilities[0] != 0.95 {
		t.Error("snapshot shares the caller's probability slice")
	}
}

func TestBoardSubscribeKeepsLatest(t *testing.T) {
	b := NewBoard()
	b.Update(decision.Result{Text: "before"})

	ch, cancel := b.Subscribe()
	defer cancel()

	if s := <-ch; s.Result.Text != "before" {
		t.Errorf("primed snapshot = %q, want before", s.Result.Text)
	}

	// A slow subscriber only sees the newest of several updates.
	b.Update(decision.Result{Text: "a"})
	b.Update(decision.Result{Text: "b"})
	b.Update(decision.Result{Text: "c"})

	if s := <-ch; s.Result.Text != "c" {
		t.Errorf("got %q, want c", s.Result.Text)
	}
	select {
	case s := <-ch:
		t.Errorf("unexpected extra snapshot %q", s.Result.Text)
	default:
	}
}

func TestBoardCancelSubscription(t *testing.T) {
	b := NewBoard()
	ch, cancel := b.Subscribe()
	if b.Subscribers() != 1 {
		t.Fatalf("Subscribers() = %d, want 1", b.Subscribers())
	}
	cancel()
	cancel()

	if _, open := <-ch; open {
		t.Error("channel still open after cancel")
	}
	if b.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d after cancel", b.Subscribers())
	}
	b.Update(decision.Result{Text: "after cancel"})
}
