package fitness

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrDimensionMismatch = errors.New("buffer dimension mismatch")
	ErrEmptyBuffer       = errors.New("empty buffer")
	ErrUnknownMetric     = errors.New("unknown fitness metric")
)

// Metric selects how per-sample differences are accumulated.
type Metric string

const (
	MetricSquared  Metric = "squared"
	MetricAbsolute Metric = "absolute"
)

// ParseMetric maps a configuration string to a Metric. The empty string
// selects MetricSquared.
func ParseMetric(name string) (Metric, error) {
	switch Metric(name) {
	case "", MetricSquared:
		return MetricSquared, nil
	case MetricAbsolute:
		return MetricAbsolute, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}
}

// Evaluator scores a candidate pixel buffer against a target buffer.
// It holds no state besides the metric and is safe for concurrent use.
type Evaluator struct {
	Metric Metric
}

// Score returns the mean normalized per-sample difference between target
// and candidate. Lower is better and Score(x, x) is 0.
func (e Evaluator) Score(target, candidate []uint8) (float64, error) {
	if len(target) == 0 || len(candidate) == 0 {
		return 0, ErrEmptyBuffer
	}
	if len(target) != len(candidate) {
		return 0, fmt.Errorf("%w: target=%d candidate=%d", ErrDimensionMismatch, len(target), len(candidate))
	}

	var total float64
	switch e.Metric {
	case "", MetricSquared:
		for i := range target {
			d := (float64(target[i]) - float64(candidate[i])) / 255
			total += d * d
		}
	case MetricAbsolute:
		for i := range target {
			total += math.Abs(float64(target[i])-float64(candidate[i])) / 255
		}
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownMetric, e.Metric)
	}
	return total / float64(len(target)), nil
}

// Similarity converts an error into the score shown to observers, where 1
// is a perfect match.
func Similarity(err float64) float64 {
	if err <= 0 {
		return 1
	}
	return 1 - math.Sqrt(err)
}
