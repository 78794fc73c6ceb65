package query

import (
	"errors"
	"net/http"
	"strings"

	"github.com/htpot/collector/internal/store"
)

var errMissingSource = errors.New("missing required path parameter: source")

// wantsGeoJSON applies simple content negotiation: a client asking for
// application/geo+json on the map endpoint gets a FeatureCollection instead
// of the plain point list.
func wantsGeoJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/geo+json") || r.URL.Query().Get("format") == "geojson"
}

type feature struct {
	Type       string         `json:"type"`
	Geometry   geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

func toFeatureCollection(points []store.MapPoint) featureCollection {
	fc := featureCollection{Type: "FeatureCollection", Features: make([]feature, 0, len(points))}
	for _, p := range points {
		fc.Features = append(fc.Features, feature{
			Type:     "Feature",
			Geometry: geometry{Type: "Point", Coordinates: []float64{p.Longitude, p.Latitude}},
			Properties: map[string]any{
				"source_address": p.SourceAddress,
				"count":          p.Count,
				"avg_score":      p.AvgScore,
				"country":        p.Country,
				"city":           p.City,
			},
		})
	}
	return fc
}
