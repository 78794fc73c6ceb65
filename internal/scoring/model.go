// Package scoring implements the model ensemble (C4): three independently
// loaded artifacts combined into a calibrated risk score, band, anomaly
// flag, and predicted class.
package scoring

import "context"

// Result is a single model's contribution to the ensemble.
type Result struct {
	Value     float64 // probability/score in [0,1]
	Flagged   bool    // model-specific decision threshold crossed
	Label     string  // classification label, when applicable
	Err       error
}

// Model is the inference interface every ensemble component implements. The
// artifact backing it is immutable after load and safe for concurrent use.
type Model interface {
	Name() string
	Predict(ctx context.Context, vector []float64) Result
}
