package scoring

import "github.com/htpot/collector/internal/eventschema"

type BandThresholds struct {
	Low    float64
	Medium float64
	High   float64
}

// Band is the deterministic, total function of value defined by the
// configured thresholds: value >= High -> HIGH, >= Medium -> MEDIUM,
// >= Low -> LOW, else MINIMAL.
func Band(value float64, t BandThresholds) eventschema.Band {
	switch {
	case value >= t.High:
		return eventschema.BandHigh
	case value >= t.Medium:
		return eventschema.BandMedium
	case value >= t.Low:
		return eventschema.BandLow
	default:
		return eventschema.BandMinimal
	}
}
