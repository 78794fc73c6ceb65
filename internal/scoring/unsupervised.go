package scoring

import (
	"context"
	"fmt"
	"math"
)

// eulerMascheroni is used in the harmonic-number approximation for the
// isolation-forest path-length normalization constant.
const eulerMascheroni = 0.5772156649015329

type Unsupervised struct {
	artifact UnsupervisedArtifact
	cn       float64 // normalization constant c(sample_size)
}

func NewUnsupervised(a UnsupervisedArtifact) *Unsupervised {
	return &Unsupervised{artifact: a, cn: averagePathLengthBST(a.SampleSize)}
}

func (u *Unsupervised) Name() string { return "unsupervised" }

// Predict returns the anomaly score 2^(-E[h(x)]/c(n)) per Liu, Ting & Zhou
// (2008), where higher values mean more anomalous. Flagged is set when the
// score crosses the artifact's configured threshold.
func (u *Unsupervised) Predict(_ context.Context, vector []float64) Result {
	if len(u.artifact.Trees) == 0 {
		return Result{Err: fmt.Errorf("unsupervised: no trees in artifact")}
	}

	var total float64
	for i := range u.artifact.Trees {
		total += pathLength(&u.artifact.Trees[i], vector, 0)
	}
	avgPathLen := total / float64(len(u.artifact.Trees))

	if u.cn <= 0 {
		return Result{Err: fmt.Errorf("unsupervised: invalid sample_size %d", u.artifact.SampleSize)}
	}
	score := math.Pow(2, -avgPathLen/u.cn)

	return Result{
		Value:   score,
		Flagged: score >= u.artifact.Threshold,
	}
}

func pathLength(node *IsolationNode, vector []float64, depth int) float64 {
	if node.Left == nil && node.Right == nil {
		return float64(depth) + averagePathLengthBST(node.Size)
	}
	if node.Feature < 0 || node.Feature >= len(vector) {
		return float64(depth)
	}
	if vector[node.Feature] < node.SplitValue {
		if node.Left == nil {
			return float64(depth)
		}
		return pathLength(node.Left, vector, depth+1)
	}
	if node.Right == nil {
		return float64(depth)
	}
	return pathLength(node.Right, vector, depth+1)
}

// averagePathLengthBST is c(n): the expected path length of an unsuccessful
// search in a binary search tree built from n points, used to normalize raw
// path lengths into a bounded anomaly score.
func averagePathLengthBST(n int) float64 {
	if n <= 1 {
		return 0
	}
	return 2*harmonic(float64(n-1)) - (2 * float64(n-1) / float64(n))
}

func harmonic(i float64) float64 {
	if i <= 0 {
		return 0
	}
	return math.Log(i) + eulerMascheroni
}
