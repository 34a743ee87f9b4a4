package pipeline

import (
	"errors"
	"fmt"

	"github.com/Brownie44l1/lizzycam/internal/frame"
	"github.com/Brownie44l1/lizzycam/internal/model"
)

// Stage names where a frame failed.
type Stage string

const (
	StageDecode    Stage = "decode"
	StageInference Stage = "inference"
)

// ProcessingError is a per-frame failure. The frame is skipped and the
// display keeps its previous result.
//
// errors.Is reports frame.ErrDecodeFailure for decode-stage errors and
// model.ErrInferenceFailure for inference-stage errors, whatever the cause.
type ProcessingError struct {
	Stage   Stage
	FrameID string
	Cause   error
}

func (e *ProcessingError) Error() string {
	if e.FrameID != "" {
		return fmt.Sprintf("frame %s: %s: %v", e.FrameID, e.Stage, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Cause)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

func (e *ProcessingError) Is(target error) bool {
	switch target {
	case frame.ErrDecodeFailure:
		return e.Stage == StageDecode
	case model.ErrInferenceFailure:
		return e.Stage == StageInference
	}
	return false
}

// IsDecodeFailure reports whether err is a frame that could not be decoded.
func IsDecodeFailure(err error) bool {
	return errors.Is(err, frame.ErrDecodeFailure)
}

// IsInferenceFailure reports whether err came from the engine or from an
// output the policy could not read.
func IsInferenceFailure(err error) bool {
	return errors.Is(err, model.ErrInferenceFailure)
}
