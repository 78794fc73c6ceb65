package scoring

import (
	"testing"

	"github.com/htpot/collector/internal/eventschema"
)

func TestBand_BoundariesAreInclusiveOnTheLowSide(t *testing.T) {
	thr := BandThresholds{Low: 0.2, Medium: 0.4, High: 0.7}

	cases := []struct {
		value float64
		want  eventschema.Band
	}{
		{0.0, eventschema.BandMinimal},
		{0.19999, eventschema.BandMinimal},
		{0.2, eventschema.BandLow},
		{0.39999, eventschema.BandLow},
		{0.4, eventschema.BandMedium},
		{0.69999, eventschema.BandMedium},
		{0.7, eventschema.BandHigh},
		{1.0, eventschema.BandHigh},
	}
	for _, c := range cases {
		if got := Band(c.value, thr); got != c.want {
			t.Errorf("Band(%v)=%v want %v", c.value, got, c.want)
		}
	}
}

func TestBand_IsDeterministic(t *testing.T) {
	thr := BandThresholds{Low: 0.2, Medium: 0.4, High: 0.7}
	for i := 0; i < 100; i++ {
		if Band(0.55, thr) != eventschema.BandMedium {
			t.Fatalf("non-deterministic band result on iteration %d", i)
		}
	}
}
