package quant

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInsufficientStrikes = errors.New("max pain needs at least two strikes")
	ErrUnknownMetric       = errors.New("unknown max pain metric")
)

// Metric selects the per-strike quantity max pain weighs.
type Metric string

const (
	MetricOpenInterest Metric = "open_interest"
	MetricVolume       Metric = "volume"
)

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case MetricOpenInterest, MetricVolume:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
}

func (m Metric) sides(s StrikeAggregate) (call, put float64) {
	if m == MetricVolume {
		return float64(s.CallVolume), float64(s.PutVolume)
	}
	return float64(s.CallOI), float64(s.PutOI)
}

// MaxPain returns the candidate strike with the least distance-, time- and
// delta-weighted pain. dte is the time to expiration in days. Candidates are
// the strikes of aggs, so the result is always one of them.
func MaxPain(aggs Aggregates, metric Metric, dte float64) (float64, error) {
	if metric != MetricOpenInterest && metric != MetricVolume {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	if len(aggs) < 2 {
		return 0, fmt.Errorf("%w: got %d", ErrInsufficientStrikes, len(aggs))
	}

	totalOI := float64(aggs.Totals().TotalOI())
	timeWeight := 1 / (dte + 1)

	best := aggs[0].Strike
	bestPain := math.Inf(1)

	for _, candidate := range aggs {
		target := candidate.Strike

		var total float64
		for _, s := range aggs {
			distance := math.Abs(target - s.Strike)
			weight := (1 / (distance + 1)) * timeWeight * s.DeltaWeight()

			call, put := metric.sides(s)
			total += call * (target - s.Strike) * weight
			total += put * (s.Strike - target) * weight
		}

		pain := total
		if totalOI != 0 {
			pain = total / totalOI
		}

		// Strict comparison keeps the lowest strike on ties.
		if pain < bestPain {
			bestPain = pain
			best = target
		}
	}

	return best, nil
}
