package scoring

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/htpot/collector/internal/features"
)

// SupervisedArtifact is a logistic regression over the feature vector:
// p = sigmoid(intercept + weights·x). Threshold is the model's own decision
// threshold for is_anomaly contribution.
type SupervisedArtifact struct {
	Spec      features.Spec `json:"feature_spec"`
	Weights   []float64     `json:"weights"`
	Intercept float64       `json:"intercept"`
	Threshold float64       `json:"threshold"`
}

// IsolationNode is one node of one isolation tree: either an internal split
// (Feature/SplitValue/Left/Right set) or a leaf (Left==Right==nil).
type IsolationNode struct {
	Feature    int            `json:"feature"`
	SplitValue float64        `json:"split_value"`
	Left       *IsolationNode `json:"left,omitempty"`
	Right      *IsolationNode `json:"right,omitempty"`
	Size       int            `json:"size"` // leaf-only: number of training points that landed here
}

// UnsupervisedArtifact is an isolation-forest style anomaly detector: the
// average path length across Trees, normalized by c(SampleSize) per Liu et
// al., yields an anomaly score in [0,1] where higher is more anomalous.
type UnsupervisedArtifact struct {
	Spec       features.Spec   `json:"feature_spec"`
	Trees      []IsolationNode `json:"trees"`
	SampleSize int             `json:"sample_size"`
	Threshold  float64         `json:"threshold"`
}

// SecondaryArtifact is a multinomial (softmax) logistic regression producing
// a probability distribution over Labels.
type SecondaryArtifact struct {
	Spec      features.Spec `json:"feature_spec"`
	Labels    []string      `json:"labels"`
	Weights   [][]float64   `json:"weights"`   // one row per label
	Intercept []float64     `json:"intercept"` // one per label
}

func loadJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read artifact %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parse artifact %s: %w", path, err)
	}
	return nil
}

func LoadSupervised(path string) (SupervisedArtifact, error) {
	var a SupervisedArtifact
	err := loadJSON(path, &a)
	return a, err
}

func LoadUnsupervised(path string) (UnsupervisedArtifact, error) {
	var a UnsupervisedArtifact
	err := loadJSON(path, &a)
	return a, err
}

func LoadSecondary(path string) (SecondaryArtifact, error) {
	var a SecondaryArtifact
	err := loadJSON(path, &a)
	return a, err
}
