package signals

import (
	"math"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/store"
)

// Decimals is the precision signals carry between stages, the same as the
// sentinel files the CI steps exchange.
const Decimals = 4

// Round rounds v to Decimals places. NaN and infinities pass through.
func Round(v float64) float64 {
	const scale = 1e4
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return math.Round(v*scale) / scale
}

// Compare derives the gate inputs from a candidate's metrics and the production
// baseline. With no baseline the improvement is the raw candidate accuracy.
// The baseline accuracy is read at signal precision, as it was recorded when
// that model went to production.
func Compare(candidate store.Metrics, baseline *store.Metrics) PerformanceSignal {
	if baseline == nil {
		return PerformanceSignal{
			Improvement:      Round(candidate.Accuracy),
			AbsoluteAccuracy: Round(candidate.Accuracy),
			FirstDeployment:  true,
		}
	}
	return PerformanceSignal{
		Improvement:      Round(candidate.Accuracy - Round(baseline.Accuracy)),
		AbsoluteAccuracy: Round(candidate.Accuracy),
	}
}

// Validate rejects NaN, infinities, accuracy outside [0,1] and improvement outside [-1,1].
func (s PerformanceSignal) Validate() error {
	if err := checkRange("accuracy", s.AbsoluteAccuracy, 0, 1); err != nil {
		return err
	}
	return checkRange("improvement", s.Improvement, -1, 1)
}

func checkRange(name string, v, lo, hi float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < lo || v > hi {
		return &OutOfRangeError{Name: name, Value: v, Min: lo, Max: hi}
	}
	return nil
}
