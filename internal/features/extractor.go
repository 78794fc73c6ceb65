package features

import (
	"strings"

	"github.com/htpot/collector/internal/eventschema"
)

// rawCategorical computes the categorical string value of column for the
// given event, used as input to Spec.Encoders. A column that has an encoder
// table but is not recognized here is encoded as Spec.UnknownCode.
func rawCategorical(column string, e eventschema.Event) (string, bool) {
	switch column {
	case "action":
		return e.Action, true
	case "target_service":
		return e.TargetService, true
	case "protocol":
		return strings.ToLower(e.Protocol), true
	case "geo_country":
		return e.Geo.Country, true
	case "user_agent_bucket":
		return userAgentBucket(e.UserAgent), true
	default:
		return "", false
	}
}

// rawNumeric computes the numeric raw value of column for the given event.
// Columns not recognized here default to 0, per the "missing numerics map
// to 0" contract.
func rawNumeric(column string, e eventschema.Event, indicatorMatched bool) float64 {
	switch column {
	case "is_private":
		return boolToFloat(e.Geo.IsPrivate)
	case "has_target_path":
		return boolToFloat(e.TargetPath != "")
	case "target_path_length":
		return float64(len(e.TargetPath))
	case "payload_size":
		return float64(len(e.Payload))
	case "user_agent_length":
		return float64(len(e.UserAgent))
	case "header_count":
		return float64(len(e.Headers))
	case "observed_hour_utc":
		return float64(e.ObservedAt.UTC().Hour())
	case "has_session":
		return boolToFloat(e.SessionID != "")
	default:
		for _, ic := range indicatorColumnNames {
			if column == ic && indicatorMatched {
				return 1
			}
		}
		return 0
	}
}

var indicatorColumnNames = []string{"indicator_match"}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func userAgentBucket(ua string) string {
	ua = strings.ToLower(ua)
	switch {
	case ua == "":
		return "empty"
	case strings.Contains(ua, "curl") || strings.Contains(ua, "wget") || strings.Contains(ua, "python"):
		return "scripted"
	case strings.Contains(ua, "mozilla"):
		return "browser"
	default:
		return "other"
	}
}

// Featurize produces a vector whose length and column order equal
// spec.Columns. indicatorMatched is set by the caller when the event
// matches a configured indicator action or target-path substring, so the
// designated indicator columns reach the model; the extractor does not
// itself decide the final score.
func Featurize(e eventschema.Event, spec Spec, indicatorMatched bool) []float64 {
	out := make([]float64, len(spec.Columns))
	for i, col := range spec.Columns {
		if table, ok := spec.Encoders[col]; ok {
			val, isCat := rawCategorical(col, e)
			if !isCat {
				out[i] = spec.UnknownCode
				continue
			}
			if code, found := table[val]; found {
				out[i] = code
			} else {
				out[i] = spec.UnknownCode
			}
			continue
		}

		v := rawNumeric(col, e, indicatorMatched)
		for _, ic := range spec.IndicatorColumns {
			if col == ic && indicatorMatched {
				v = 1
			}
		}
		if ms, ok := spec.Scalers[col]; ok {
			mean, stddev := ms[0], ms[1]
			if stddev != 0 {
				v = (v - mean) / stddev
			} else {
				v = 0
			}
		}
		out[i] = v
	}
	return out
}
