// Package features maps an event to the fixed-length numeric vector each
// model consumes, reading column order and encoder tables from an opaque
// artifact produced by the training pipeline.
package features

import "encoding/json"

// Spec is the opaque feature specification shipped alongside a model
// artifact. The implementation treats it as data: it reads column names,
// scaler parameters, and categorical encoder tables without interpreting
// them beyond what Featurize needs.
type Spec struct {
	Columns []string `json:"columns"`

	// Scalers maps a numeric column name to (mean, stddev) for standardization.
	Scalers map[string][2]float64 `json:"scalers"`

	// Encoders maps a categorical column name to a value→code table. A value
	// absent from the table maps to the reserved "unknown" code.
	Encoders map[string]map[string]float64 `json:"encoders"`

	// UnknownCode is the value substituted for categorical values not found
	// in Encoders[column].
	UnknownCode float64 `json:"unknown_code"`

	// IndicatorColumns are columns the extractor sets directly when an event
	// matches a configured indicator (action or target path), independent of
	// the learned encoders.
	IndicatorColumns []string `json:"indicator_columns"`
}

func ParseSpec(raw []byte) (Spec, error) {
	var s Spec
	if err := json.Unmarshal(raw, &s); err != nil {
		return Spec{}, err
	}
	return s, nil
}
