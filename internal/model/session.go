// Package model wraps the ONNX Runtime session that scores input tensors.
package model

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync/atomic"

	ort "github.com/yalue/onnxruntime_go"
)

// ErrInferenceFailure covers every way a run can fail: engine not loadable,
// tensor shape mismatch, runtime error, timeout.
var ErrInferenceFailure = errors.New("inference failure")

// ErrShapeMismatch is wrapped together with ErrInferenceFailure when the
// caller's tensor does not match the model input.
var ErrShapeMismatch = errors.New("tensor shape mismatch")

// Options configures NewSession.
type Options struct {
	ModelPath         string
	SharedLibraryPath string
	InputName         string
	OutputName        string
	Metadata          Metadata
	Threads           int
}

// Session is one loaded model with pre-allocated input and output tensors.
// Runs are serialized; the session is meant to be created once and reused
// for every frame, then closed when the stream stops.
type Session struct {
	session      *ort.AdvancedSession
	Metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]

	// sem admits one run at a time. A run that outlives its context keeps
	// holding it until ONNX Runtime returns.
	sem    chan struct{}
	closed atomic.Bool
}

func NewSession(opts Options) (*Session, error) {
	if err := opts.Metadata.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInferenceFailure, err)
	}

	if opts.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(opts.SharedLibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("%w: failed to initialize ONNX environment: %v", ErrInferenceFailure, err)
		}
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: error creating session options: %v", ErrInferenceFailure, err)
	}
	defer options.Destroy()

	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	if err := options.SetIntraOpNumThreads(threads); err != nil {
		log.Printf("Could not set intra-op threads to %d: %v", threads, err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(opts.Metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create input tensor: %v", ErrInferenceFailure, err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(opts.Metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("%w: failed to create output tensor: %v", ErrInferenceFailure, err)
	}

	inputName, outputName := opts.InputName, opts.OutputName
	if inputName == "" {
		inputName = "input"
	}
	if outputName == "" {
		outputName = "output"
	}

	session, err := ort.NewAdvancedSession(opts.ModelPath,
		[]string{inputName}, []string{outputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		options)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("%w: failed to create ONNX session: %v", ErrInferenceFailure, err)
	}

	return &Session{
		session:      session,
		Metadata:     opts.Metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		sem:          make(chan struct{}, 1),
	}, nil
}

type runResult struct {
	scores []float32
	err    error
}

// Run scores one input tensor. The returned slice is a copy owned by the
// caller, and input may be reused once Run returns. ctx bounds how long
// the caller waits.
func (s *Session) Run(ctx context.Context, input []float32) ([]float32, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("%w: session closed", ErrInferenceFailure)
	}
	if want := len(s.inputTensor.GetData()); len(input) != want {
		return nil, fmt.Errorf("%w: %w: got %d values, want %d", ErrInferenceFailure, ErrShapeMismatch, len(input), want)
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for session: %v", ErrInferenceFailure, ctx.Err())
	}
	if s.closed.Load() {
		<-s.sem
		return nil, fmt.Errorf("%w: session closed", ErrInferenceFailure)
	}

	// input is not referenced after this, so the caller may reuse it as
	// soon as Run returns, even on timeout.
	copy(s.inputTensor.GetData(), input)

	done := make(chan runResult, 1)
	go func() {
		defer func() { <-s.sem }()

		if err := s.session.Run(); err != nil {
			done <- runResult{err: err}
			return
		}
		out := s.outputTensor.GetData()
		scores := make([]float32, len(out))
		copy(scores, out)
		done <- runResult{scores: scores}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInferenceFailure, r.err)
		}
		return r.scores, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrInferenceFailure, ctx.Err())
	}
}

// InputLen is the number of float32 values Run expects.
func (s *Session) InputLen() int {
	return ShapeLen(s.Metadata.InputShape)
}

// Close waits for any in-flight run, then releases the session, its tensors
// and the ONNX environment. Safe to call more than once.
func (s *Session) Close() error {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	if s.closed.Swap(true) {
		return nil
	}

	var errs []error
	if s.session != nil {
		errs = append(errs, s.session.Destroy())
	}
	if s.inputTensor != nil {
		errs = append(errs, s.inputTensor.Destroy())
	}
	if s.outputTensor != nil {
		errs = append(errs, s.outputTensor.Destroy())
	}
	errs = append(errs, ort.DestroyEnvironment())
	return errors.Join(errs...)
}
