package pipeline

import (
	"context"
	"errors"
	"log"
	"sync/atomic"

	"github.com/Brownie44l1/lizzycam/internal/display"
	"github.com/Brownie44l1/lizzycam/internal/frame"
	"github.com/Brownie44l1/lizzycam/internal/supplier"
)

// Source is where the runner takes frames from. *supplier.Mailbox
// implements it.
type Source interface {
	Next(ctx context.Context) (*frame.RawFrame, error)
}

var _ Source = (*supplier.Mailbox)(nil)

// RunnerStats counts what happened to the frames the runner picked up.
type RunnerStats struct {
	Processed         uint64 `json:"processed"`
	DecodeFailures    uint64 `json:"decode_failures"`
	InferenceFailures uint64 `json:"inference_failures"`
}

// Runner is the single classification worker. Frames are handled strictly
// one at a time, so the stages need no locking.
type Runner struct {
	source   Source
	pipeline *Pipeline
	board    *display.Board

	// input is the tensor buffer reused for every frame.
	input []float32

	processed         atomic.Uint64
	decodeFailures    atomic.Uint64
	inferenceFailures atomic.Uint64
}

func NewRunner(source Source, p *Pipeline, board *display.Board) *Runner {
	return &Runner{
		source:   source,
		pipeline: p,
		board:    board,
		input:    make([]float32, p.Builder.Len()),
	}
}

// Run processes frames until ctx is done or the source is closed. Failed
// frames are logged and skipped; the board keeps its previous result.
func (r *Runner) Run(ctx context.Context) error {
	for {
		f, err := r.source.Next(ctx)
		if err != nil {
			if errors.Is(err, supplier.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		r.handle(ctx, f)
	}
}

func (r *Runner) handle(ctx context.Context, f *frame.RawFrame) {
	defer f.Close()

	res, err := r.pipeline.process(ctx, f, r.input)
	if err != nil {
		switch {
		case IsDecodeFailure(err):
			r.decodeFailures.Add(1)
		default:
			r.inferenceFailures.Add(1)
		}
		log.Printf("Skipping frame: %v", err)
		return
	}

	r.processed.Add(1)
	r.board.Update(res)
}

func (r *Runner) Stats() RunnerStats {
	return RunnerStats{
		Processed:         r.processed.Load(),
		DecodeFailures:    r.decodeFailures.Load(),
		InferenceFailures: r.inferenceFailures.Load(),
	}
}
