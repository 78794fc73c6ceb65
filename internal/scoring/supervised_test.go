package scoring

import (
	"context"
	"math"
	"testing"
)

func TestSupervised_SigmoidAtZeroIsHalf(t *testing.T) {
	a := SupervisedArtifact{Weights: []float64{0, 0}, Intercept: 0, Threshold: 0.5}
	res := NewSupervised(a).Predict(context.Background(), []float64{1, 1})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if math.Abs(res.Value-0.5) > 1e-9 {
		t.Fatalf("value=%v want 0.5", res.Value)
	}
	if !res.Flagged {
		t.Fatalf("0.5 >= threshold 0.5 should flag")
	}
}

func TestSupervised_LargePositiveLogitSaturatesNearOne(t *testing.T) {
	a := SupervisedArtifact{Weights: []float64{10}, Intercept: 0, Threshold: 0.9}
	res := NewSupervised(a).Predict(context.Background(), []float64{10})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value < 0.999 {
		t.Fatalf("value=%v want near 1", res.Value)
	}
}

func TestSupervised_VectorLengthMismatchErrors(t *testing.T) {
	a := SupervisedArtifact{Weights: []float64{1, 2, 3}, Intercept: 0, Threshold: 0.5}
	res := NewSupervised(a).Predict(context.Background(), []float64{1})
	if res.Err == nil {
		t.Fatalf("expected vector-length mismatch error")
	}
}
