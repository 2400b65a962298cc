package scorer

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/programme-lv/pathogen/internal/executor"
)

const MetricInstructionCount = "instruction_count"

var ErrUnsupportedMetric = errors.New("unsupported resource metric")

// TimeoutPolicy decides how a timed out run, which carries no counter, is scored.
type TimeoutPolicy string

const (
	// TimeoutZero scores a timeout with the zero resource value it carries.
	TimeoutZero TimeoutPolicy = "zero"
	// TimeoutCeiling scores a timeout as the highest raw value seen so far.
	TimeoutCeiling TimeoutPolicy = "ceiling"
)

func ParseTimeoutPolicy(s string) (TimeoutPolicy, error) {
	switch TimeoutPolicy(s) {
	case "", TimeoutZero:
		return TimeoutZero, nil
	case TimeoutCeiling:
		return TimeoutCeiling, nil
	}
	return "", fmt.Errorf("unknown timeout policy %q", s)
}

func ValidateMetric(metric string) error {
	if metric != MetricInstructionCount {
		return fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedMetric, metric, MetricInstructionCount)
	}
	return nil
}

// Scorer normalises raw measurements against every measurement it has
// recorded so far. One Scorer belongs to one campaign; scores it has already
// returned are never revised.
type Scorer struct {
	mu            sync.Mutex
	history       map[string][]float64
	timeoutPolicy TimeoutPolicy
}

func New(policy TimeoutPolicy) *Scorer {
	if policy == "" {
		policy = TimeoutZero
	}
	return &Scorer{
		history:       make(map[string][]float64),
		timeoutPolicy: policy,
	}
}

// Score converts outcome into a score for metric. Runs that neither succeeded
// nor timed out score 0 and leave the history untouched, as do timeouts that
// end up without a value.
func (s *Scorer) Score(outcome executor.Outcome, metric string) (float64, error) {
	if err := ValidateMetric(metric); err != nil {
		return 0, err
	}
	if outcome.Failed() {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hist := s.history[metric]
	raw := float64(outcome.ResourceValue)
	if outcome.TimedOut && s.timeoutPolicy == TimeoutCeiling && len(hist) > 0 {
		raw = max(raw, maxOf(hist))
	}
	// timeouts without a value stay out of the history
	if outcome.TimedOut && raw == 0 {
		return 0, nil
	}

	hist = append(hist, raw)
	s.history[metric] = hist
	if len(hist) < 2 {
		return raw, nil
	}

	lo, hi := minOf(hist), maxOf(hist)
	if hi == lo {
		return 1.0, nil
	}
	return math.Min(1, math.Max(0, (raw-lo)/(hi-lo))), nil
}

// History returns a copy of the raw values recorded for metric.
func (s *Scorer) History(metric string) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.history[metric]...)
}

// MaxRaw is the highest raw value recorded for metric, or 0.
func (s *Scorer) MaxRaw(metric string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history[metric]) == 0 {
		return 0
	}
	return maxOf(s.history[metric])
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Min(m, x)
	}
	return m
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Max(m, x)
	}
	return m
}
