// Package pipeline runs camera frames through decode, tensor building,
// inference and the decision policy.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/Brownie44l1/lizzycam/internal/decision"
	"github.com/Brownie44l1/lizzycam/internal/frame"
	"github.com/Brownie44l1/lizzycam/internal/model"
	"github.com/Brownie44l1/lizzycam/internal/tensor"
)

// Engine scores one input tensor. *model.Session implements it.
type Engine interface {
	Run(ctx context.Context, input []float32) ([]float32, error)
}

var _ Engine = (*model.Session)(nil)

// Timings records how long each stage of one frame took.
type Timings struct {
	FrameID   string
	Decode    time.Duration
	Tensor    time.Duration
	Inference time.Duration
	Decision  time.Duration
	Total     time.Duration
}

// Pipeline is stateless across frames; one value can serve every frame.
type Pipeline struct {
	Decoder frame.Decoder
	Builder tensor.Builder
	Engine  Engine
	Policy  decision.Policy

	// Timeout bounds each inference call. Zero means no bound.
	Timeout time.Duration
	// Debug logs per-frame stage timings.
	Debug bool
}

// Process classifies one camera frame. It does not close f.
func (p *Pipeline) Process(ctx context.Context, f *frame.RawFrame) (decision.Result, error) {
	return p.process(ctx, f, nil)
}

// process is Process with an optional caller-owned tensor buffer of
// Builder.Len() values; nil allocates a fresh one.
func (p *Pipeline) process(ctx context.Context, f *frame.RawFrame, buf []float32) (decision.Result, error) {
	start := time.Now()
	t := &Timings{}
	if f != nil {
		t.FrameID = f.ID
	}

	decodeStart := time.Now()
	img, err := p.Decoder.Decode(f)
	t.Decode = time.Since(decodeStart)
	if err != nil {
		return decision.Result{}, &ProcessingError{Stage: StageDecode, FrameID: t.FrameID, Cause: err}
	}

	res, err := p.classify(ctx, img, buf, t)
	if err != nil {
		return decision.Result{}, err
	}
	res.FrameID = t.FrameID
	if f != nil && !f.Timestamp.IsZero() {
		res.At = f.Timestamp
	}

	t.Total = time.Since(start)
	p.logTimings(t)
	return res, nil
}

// ClassifyImage runs an already decoded still image through the rest of
// the pipeline.
func (p *Pipeline) ClassifyImage(ctx context.Context, img image.Image) (decision.Result, error) {
	start := time.Now()
	t := &Timings{FrameID: "still"}
	res, err := p.classify(ctx, img, nil, t)
	if err != nil {
		return decision.Result{}, err
	}
	t.Total = time.Since(start)
	p.logTimings(t)
	return res, nil
}

func (p *Pipeline) classify(ctx context.Context, img image.Image, buf []float32, t *Timings) (decision.Result, error) {
	tensorStart := time.Now()
	input := buf
	if input == nil {
		input = p.Builder.Build(img)
	} else if err := p.Builder.BuildInto(img, input); err != nil {
		return decision.Result{}, &ProcessingError{Stage: StageInference, FrameID: t.FrameID, Cause: fmt.Errorf("%w: %w", model.ErrInferenceFailure, err)}
	}
	t.Tensor = time.Since(tensorStart)

	if p.Engine == nil {
		return decision.Result{}, &ProcessingError{Stage: StageInference, FrameID: t.FrameID, Cause: fmt.Errorf("%w: no engine loaded", model.ErrInferenceFailure)}
	}

	runCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	inferStart := time.Now()
	scores, err := p.Engine.Run(runCtx, input)
	t.Inference = time.Since(inferStart)
	if err != nil {
		return decision.Result{}, &ProcessingError{Stage: StageInference, FrameID: t.FrameID, Cause: err}
	}

	decideStart := time.Now()
	res, err := p.Policy.Decide(scores)
	t.Decision = time.Since(decideStart)
	if err != nil {
		return decision.Result{}, &ProcessingError{Stage: StageInference, FrameID: t.FrameID, Cause: err}
	}
	return res, nil
}

func (p *Pipeline) logTimings(t *Timings) {
	if !p.Debug {
		return
	}
	log.Printf("[DEBUG] Frame %s - Processing times:\n"+
		"\tDecode:    %v\n"+
		"\tTensor:    %v\n"+
		"\tInference: %v\n"+
		"\tDecision:  %v\n"+
		"\tTotal:     %v",
		t.FrameID, t.Decode, t.Tensor, t.Inference, t.Decision, t.Total)
}
