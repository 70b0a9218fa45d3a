package estimator

import (
	"errors"
	"fmt"
	"math"
)

// Imputer strategies understood by NewImputer. Inference does not depend on
// the strategy: the fitted statistics already hold the fill value per column.
var imputerStrategies = map[string]bool{
	"mean":          true,
	"median":        true,
	"most_frequent": true,
	"constant":      true,
}

// Imputer replaces NaN entries with a fitted per-column statistic.
type Imputer struct {
	strategy   string
	statistics []float64
}

// NewImputer builds an imputer from its fitted statistics.
func NewImputer(strategy string, statistics []float64) (*Imputer, error) {
	if !imputerStrategies[strategy] {
		return nil, fmt.Errorf("imputer: unknown strategy %q", strategy)
	}
	if len(statistics) == 0 {
		return nil, errors.New("imputer: no fitted statistics")
	}
	for i, v := range statistics {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("imputer: statistic %d is not finite", i)
		}
	}
	return &Imputer{strategy: strategy, statistics: append([]float64(nil), statistics...)}, nil
}

func (m *Imputer) Name() string     { return "imputer" }
func (m *Imputer) NFeatures() int   { return len(m.statistics) }
func (m *Imputer) Strategy() string { return m.strategy }

func (m *Imputer) Transform(row []float64) ([]float64, error) {
	if err := checkWidth(m.Name(), len(m.statistics), row); err != nil {
		return nil, err
	}
	out := make([]float64, len(row))
	for j, v := range row {
		if math.IsNaN(v) {
			out[j] = m.statistics[j]
			continue
		}
		out[j] = v
	}
	return out, nil
}

// StandardScaler centres each column on its fitted mean and divides by its
// fitted scale. A zero scale is treated as 1, as the training library does for
// constant columns.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// NewStandardScaler builds a scaler from fitted means and scales.
func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) == 0 {
		return nil, errors.New("scaler: no fitted means")
	}
	if len(mean) != len(scale) {
		return nil, fmt.Errorf("scaler: %d means but %d scales", len(mean), len(scale))
	}
	s := &StandardScaler{
		mean:  append([]float64(nil), mean...),
		scale: make([]float64, len(scale)),
	}
	for j, v := range scale {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("scaler: scale %d is %v", j, v)
		}
		if v == 0 {
			v = 1
		}
		s.scale[j] = v
	}
	return s, nil
}

func (s *StandardScaler) Name() string   { return "scaler" }
func (s *StandardScaler) NFeatures() int { return len(s.mean) }

func (s *StandardScaler) Transform(row []float64) ([]float64, error) {
	if err := checkWidth(s.Name(), len(s.mean), row); err != nil {
		return nil, err
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.mean[j]) / s.scale[j]
	}
	return out, nil
}
