package scoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/htpot/collector/internal/core/observability"
	"github.com/htpot/collector/internal/eventschema"
	"github.com/htpot/collector/internal/features"
)

type Weights struct {
	Supervised   float64
	Unsupervised float64
	Secondary    float64
}

type Config struct {
	Weights        Weights
	Bands          BandThresholds
	IndicatorPaths []string
	IndicatorActs  []string
	ScoreFloor     float64
}

// Ensemble runs the three models concurrently and combines their outputs
// into a single calibrated score, per spec §4.4.
type Ensemble struct {
	cfg          Config
	supervised   *Supervised
	unsupervised *Unsupervised
	secondary    *Secondary
	supSpec      features.Spec
	unsupSpec    features.Spec
	secSpec      features.Spec
}

func NewEnsemble(cfg Config, sup SupervisedArtifact, unsup UnsupervisedArtifact, sec SecondaryArtifact) *Ensemble {
	return &Ensemble{
		cfg:          cfg,
		supervised:   NewSupervised(sup),
		unsupervised: NewUnsupervised(unsup),
		secondary:    NewSecondary(sec),
		supSpec:      sup.Spec,
		unsupSpec:    unsup.Spec,
		secSpec:      sec.Spec,
	}
}

// IndicatorMatched reports whether the event exhibits a configured
// score-floor indicator: an indicator action, or a target path containing an
// indicator substring.
func (en *Ensemble) IndicatorMatched(e eventschema.Event) bool {
	for _, a := range en.cfg.IndicatorActs {
		if e.Action == a {
			return true
		}
	}
	if e.TargetPath == "" {
		return false
	}
	lower := strings.ToLower(e.TargetPath)
	for _, p := range en.cfg.IndicatorPaths {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// Score runs featurization and inference for all three models concurrently
// and returns the combined score plus whether scoring was degraded by a
// model failure.
func (en *Ensemble) Score(ctx context.Context, e eventschema.Event) (eventschema.Score, bool) {
	start := time.Now()
	indicatorMatched := en.IndicatorMatched(e)

	var supRes, unsupRes, secRes Result
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer func() {
			if p := recover(); p != nil {
				supRes = Result{Err: fmt.Errorf("supervised model panic: %v", p)}
			}
		}()
		v := features.Featurize(e, en.supSpec, indicatorMatched)
		supRes = en.supervised.Predict(gctx, v)
		return nil
	})
	g.Go(func() error {
		defer func() {
			if p := recover(); p != nil {
				unsupRes = Result{Err: fmt.Errorf("unsupervised model panic: %v", p)}
			}
		}()
		v := features.Featurize(e, en.unsupSpec, indicatorMatched)
		unsupRes = en.unsupervised.Predict(gctx, v)
		return nil
	})
	g.Go(func() error {
		defer func() {
			if p := recover(); p != nil {
				secRes = Result{Err: fmt.Errorf("secondary model panic: %v", p)}
			}
		}()
		v := features.Featurize(e, en.secSpec, indicatorMatched)
		secRes = en.secondary.Predict(gctx, v)
		return nil
	})
	_ = g.Wait() // each goroutine captures its own error on Result, never returns one

	degraded := false
	ps, pa, pt := 0.0, 0.0, 0.0

	if supRes.Err != nil {
		degraded = true
		observability.IncModelFailure("supervised")
	} else {
		ps = supRes.Value
	}
	if unsupRes.Err != nil {
		degraded = true
		observability.IncModelFailure("unsupervised")
	} else {
		pa = unsupRes.Value
	}
	if secRes.Err != nil {
		degraded = true
		observability.IncModelFailure("secondary")
	} else {
		pt = secRes.Value
	}

	allFailed := supRes.Err != nil && unsupRes.Err != nil && secRes.Err != nil

	var value float64
	var trafficClass string
	if allFailed {
		value = 0
		trafficClass = ""
	} else {
		value = en.cfg.Weights.Supervised*ps + en.cfg.Weights.Unsupervised*pa + en.cfg.Weights.Secondary*pt
		if indicatorMatched && value < en.cfg.ScoreFloor {
			value = en.cfg.ScoreFloor
			observability.IncScoreFloorApplied()
		}
		if secRes.Err == nil {
			trafficClass = secRes.Label
		}
	}

	band := Band(value, en.cfg.Bands)

	isAnomaly := false
	if !allFailed {
		isAnomaly = unsupRes.Flagged || band == eventschema.BandHigh || supRes.Flagged
	}

	predictedClass := classify(e, indicatorMatched, allFailed, supRes, unsupRes, en.cfg)

	observability.ObserveScoring(time.Since(start).Seconds(), degraded, string(band))

	return eventschema.Score{
		Value:          value,
		Band:           band,
		IsAnomaly:      isAnomaly,
		PredictedClass: string(predictedClass),
		TrafficClass:   trafficClass,
	}, degraded
}

// classify implements the predicted_class taxonomy and priority from §4.4:
// indicator rules outrank model-only labels.
func classify(e eventschema.Event, indicatorMatched, allFailed bool, sup, unsup Result, cfg Config) eventschema.PredictedClass {
	if e.Action == "git_push" || strings.Contains(e.Action, "exploit") || strings.Contains(e.Action, "injection") {
		return eventschema.ClassExploit
	}
	if e.Action == "cred_access" || pathMatchesAny(e.TargetPath, cfg.IndicatorPaths) {
		return eventschema.ClassCredentialAccess
	}
	if indicatorMatched && e.TargetPath != "" {
		return eventschema.ClassDataExfil
	}
	if e.Action == "scan_attempt" || e.Action == "bruteforce" {
		return eventschema.ClassRecon
	}
	if allFailed {
		return eventschema.ClassBenign
	}
	if sup.Err == nil && sup.Flagged {
		return eventschema.ClassKnownMalicious
	}
	if unsup.Err == nil && unsup.Flagged {
		return eventschema.ClassUnknownAnomaly
	}
	return eventschema.ClassBenign
}

func pathMatchesAny(path string, substrings []string) bool {
	if path == "" {
		return false
	}
	lower := strings.ToLower(path)
	for _, s := range substrings {
		if s != "" && strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}
