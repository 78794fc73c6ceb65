package scoring

import (
	"context"
	"fmt"
	"math"
)

type Supervised struct {
	artifact SupervisedArtifact
}

func NewSupervised(a SupervisedArtifact) *Supervised {
	return &Supervised{artifact: a}
}

func (s *Supervised) Name() string { return "supervised" }

func (s *Supervised) Predict(_ context.Context, vector []float64) Result {
	if len(vector) != len(s.artifact.Weights) {
		return Result{Err: fmt.Errorf("supervised: vector length %d != weights length %d", len(vector), len(s.artifact.Weights))}
	}
	z := s.artifact.Intercept
	for i, w := range s.artifact.Weights {
		z += w * vector[i]
	}
	p := sigmoid(z)
	return Result{
		Value:   p,
		Flagged: p >= s.artifact.Threshold,
	}
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
