package decision

import (
	"errors"
	"math"
	"testing"
)

func sum(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x)
	}
	return s
}

func TestSoftmaxIsDistribution(t *testing.T) {
	inputs := [][]float32{
		{0, 0},
		{10, 0},
		{-10, 10},
		{1000, -1000},
		{88.7, 88.8},
		{-50, -49.5},
		{3, 1, 0.2},
	}
	for _, in := range inputs {
		p := Softmax(in)
		if math.Abs(sum(p)-1) > 1e-5 {
			t.Errorf("Softmax(%v) sums to %f", in, sum(p))
		}
		for _, v := range p {
			if v < 0 || v > 1 || math.IsNaN(float64(v)) {
				t.Errorf("Softmax(%v) has entry %f outside [0,1]", in, v)
			}
		}
	}
}

func TestSoftmaxShiftInvariant(t *testing.T) {
	base := []float32{0.6, 0.4}
	want := Softmax(base)
	for _, c := range []float32{-100, -1, 0.5, 42, 500} {
		got := Softmax([]float32{base[0] + c, base[1] + c})
		for i := range want {
			if math.Abs(float64(got[i]-want[i])) > 1e-5 {
				t.Errorf("shift %v: p[%d] = %f, want %f", c, i, got[i], want[i])
			}
		}
	}
}

func TestSoftmaxEmpty(t *testing.T) {
	if got := Softmax(nil); got != nil {
		t.Errorf("Softmax(nil) = %v", got)
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		scores  []float32
		verdict Verdict
		text    string
		p0      float64
	}{
		{"confident target", []float32{10, 0}, VerdictTarget, "It's Lizzy! Confidence: 99%", 1.0},
		{"confident not target", []float32{0, 10}, VerdictNotTarget, "Not Lizzy. Confidence: 99%", 0.0},
		{"leaning target", []float32{0.6, 0.4}, VerdictUncertain, "Uncertain result. (Lizzy: 54%, Not Lizzy: 45%)", 0.55},
		{"coin flip", []float32{0, 0}, VerdictUncertain, "Uncertain result. (Lizzy: 50%, Not Lizzy: 50%)", 0.5},
	}

	p := DefaultPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Decide(tt.scores)
			if err != nil {
				t.Fatalf("Decide: %v", err)
			}
			if res.Verdict != tt.verdict {
				t.Errorf("verdict = %s, want %s", res.Verdict, tt.verdict)
			}
			if res.Text != tt.text {
				t.Errorf("text = %q, want %q", res.Text, tt.text)
			}
			if math.Abs(float64(res.Probabilities[0])-tt.p0) > 0.01 {
				t.Errorf("p[0] = %f, want ~%f", res.Probabilities[0], tt.p0)
			}
		})
	}
}

func TestDecideIsGatedNotArgmax(t *testing.T) {
	// p[0] ~ 0.88: argmax would say target, the gate says uncertain.
	res, err := DefaultPolicy().Decide([]float32{2, 0})
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != VerdictUncertain {
		t.Errorf("verdict = %s, want uncertain", res.Verdict)
	}

	lenient := DefaultPolicy()
	lenient.Threshold = 0.8
	res, _ = lenient.Decide([]float32{2, 0})
	if res.Verdict != VerdictTarget {
		t.Errorf("with threshold 0.8 verdict = %s, want target", res.Verdict)
	}
}

func TestDecideCustomTarget(t *testing.T) {
	p := Policy{Threshold: 0.9, ClassCount: 2, Target: "Mochi"}
	res, _ := p.Decide([]float32{0, 10})
	if res.Text != "Not Mochi. Confidence: 99%" {
		t.Errorf("text = %q", res.Text)
	}
}

func TestDecideScoreCount(t *testing.T) {
	for _, scores := range [][]float32{nil, {1}, {1, 2, 3}} {
		_, err := DefaultPolicy().Decide(scores)
		if !errors.Is(err, ErrScoreCount) {
			t.Errorf("Decide(%v) error = %v, want ErrScoreCount", scores, err)
		}
	}
}

func TestDecideRejectsNonFiniteScores(t *testing.T) {
	inf := float32(math.Inf(1))
	nan := float32(math.NaN())
	for _, scores := range [][]float32{{inf, 0}, {0, -inf}, {nan, 0}, {nan, nan}} {
		res, err := DefaultPolicy().Decide(scores)
		if !errors.Is(err, ErrNonFiniteScore) {
			t.Errorf("Decide(%v) error = %v, want ErrNonFiniteScore", scores, err)
		}
		if res.Text != "" {
			t.Errorf("Decide(%v) produced text %q", scores, res.Text)
		}
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Policy
		wantErr bool
	}{
		{"default", DefaultPolicy(), false},
		{"zero threshold", Policy{Threshold: 0, ClassCount: 2}, true},
		{"threshold one", Policy{Threshold: 1, ClassCount: 2}, true},
		{"one class", Policy{Threshold: 0.9, ClassCount: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.p.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
