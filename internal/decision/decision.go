// Package decision maps raw classifier scores to a display verdict.
package decision

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	DefaultThreshold  = 0.9
	DefaultClassCount = 2
	DefaultTarget     = "Lizzy"
)

// ErrScoreCount is returned when the engine output does not have one score
// per configured class.
var ErrScoreCount = errors.New("unexpected score count")

// ErrNonFiniteScore is returned when the engine output contains NaN or an
// infinity. No distribution can be formed from such scores.
var ErrNonFiniteScore = errors.New("non-finite score")

// Verdict is the outcome of the confidence-gated policy.
type Verdict string

const (
	VerdictTarget    Verdict = "target"
	VerdictNotTarget Verdict = "not-target"
	VerdictUncertain Verdict = "uncertain"
)

// Result is the per-frame classification. It is never mutated after Decide
// returns it.
type Result struct {
	FrameID       string    `json:"frame_id,omitempty"`
	Verdict       Verdict   `json:"verdict"`
	Confidence    float32   `json:"confidence"`
	Probabilities []float32 `json:"probabilities"`
	Text          string    `json:"text"`
	At            time.Time `json:"at"`
}

// Softmax turns scores into a probability distribution. The max score is
// subtracted before exponentiating so large logits do not overflow.
func Softmax(scores []float32) []float32 {
	if len(scores) == 0 {
		return nil
	}
	m := scores[0]
	for _, s := range scores[1:] {
		if s > m {
			m = s
		}
	}

	exps := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		exps[i] = math.Exp(float64(s - m))
		sum += exps[i]
	}

	out := make([]float32, len(scores))
	for i, e := range exps {
		out[i] = float32(e / sum)
	}
	return out
}

// Policy is the three-way decision: class 0 above Threshold is the target,
// class 1 above Threshold is not, anything else is uncertain.
type Policy struct {
	Threshold  float32
	ClassCount int
	Target     string
}

// DefaultPolicy returns the policy the app ships with.
func DefaultPolicy() Policy {
	return Policy{
		Threshold:  DefaultThreshold,
		ClassCount: DefaultClassCount,
		Target:     DefaultTarget,
	}
}

func (p Policy) Validate() error {
	if p.Threshold <= 0 || p.Threshold >= 1 {
		return fmt.Errorf("confidence threshold must be in (0,1), got %v", p.Threshold)
	}
	if p.ClassCount < 2 {
		return fmt.Errorf("class count must be at least 2, got %d", p.ClassCount)
	}
	return nil
}

// Decide runs softmax over scores and applies the policy. Branches are
// evaluated in order; the first match wins.
func (p Policy) Decide(scores []float32) (Result, error) {
	if len(scores) != p.ClassCount || len(scores) < 2 {
		return Result{}, fmt.Errorf("%w: got %d, want %d", ErrScoreCount, len(scores), p.ClassCount)
	}
	for i, s := range scores {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return Result{}, fmt.Errorf("%w: score %d is %v", ErrNonFiniteScore, i, s)
		}
	}

	probs := Softmax(scores)
	res := Result{Probabilities: probs, At: time.Now()}

	switch {
	case probs[0] > p.Threshold:
		res.Verdict = VerdictTarget
		res.Confidence = probs[0]
		res.Text = fmt.Sprintf("It's %s! Confidence: %d%%", p.target(), percent(probs[0]))
	case probs[1] > p.Threshold:
		res.Verdict = VerdictNotTarget
		res.Confidence = probs[1]
		res.Text = fmt.Sprintf("Not %s. Confidence: %d%%", p.target(), percent(probs[1]))
	default:
		res.Verdict = VerdictUncertain
		res.Confidence = max(probs[0], probs[1])
		res.Text = fmt.Sprintf("Uncertain result. (%s: %d%%, Not %s: %d%%)",
			p.target(), percent(probs[0]), p.target(), percent(probs[1]))
	}
	return res, nil
}

func (p Policy) target() string {
	if p.Target == "" {
		return DefaultTarget
	}
	return p.Target
}

// percent truncates like the original display did.
func percent(v float32) int {
	return int(v * 100)
}
