// Package estimator runs the inference half of a fitted preprocessing and
// regression pipeline: impute, scale, predict. Fitting happens elsewhere;
// every type here is built from attributes exported by the training job and
// is read-only afterwards.
package estimator

import (
	"errors"
	"fmt"
)

// Transformer maps a row to a row of the same width.
type Transformer interface {
	Name() string
	NFeatures() int
	Transform(row []float64) ([]float64, error)
}

// Regressor maps a row to a scalar.
type Regressor interface {
	Name() string
	NFeatures() int
	Predict(row []float64) (float64, error)
}

// WidthError reports a row whose width differs from what a step was fitted on.
type WidthError struct {
	Step string
	Want int
	Got  int
}

func (e *WidthError) Error() string {
	return fmt.Sprintf("%s expects %d features, got %d", e.Step, e.Want, e.Got)
}

func checkWidth(step string, want int, row []float64) error {
	if len(row) != want {
		return &WidthError{Step: step, Want: want, Got: len(row)}
	}
	return nil
}

// Pipeline chains transformers in front of a regressor.
type Pipeline struct {
	steps []Transformer
	model Regressor
}

// NewPipeline builds a pipeline and checks that every step agrees on width.
func NewPipeline(model Regressor, steps ...Transformer) (*Pipeline, error) {
	if model == nil {
		return nil, errors.New("estimator: pipeline needs a model")
	}
	for _, s := range steps {
		if s.NFeatures() != model.NFeatures() {
			return nil, &WidthError{Step: s.Name(), Want: model.NFeatures(), Got: s.NFeatures()}
		}
	}
	return &Pipeline{steps: steps, model: model}, nil
}

// NFeatures returns the row width the pipeline accepts.
func (p *Pipeline) NFeatures() int { return p.model.NFeatures() }

// Model returns the final regressor.
func (p *Pipeline) Model() Regressor { return p.model }

// Transform runs the preprocessing steps only.
func (p *Pipeline) Transform(row []float64) ([]float64, error) {
	out := row
	for _, s := range p.steps {
		var err error
		out, err = s.Transform(out)
		if err != nil {
			return nil, fmt.Errorf("%s transform: %w", s.Name(), err)
		}
	}
	return out, nil
}

// Predict transforms row and returns the model's prediction. row is not modified.
func (p *Pipeline) Predict(row []float64) (float64, error) {
	x, err := p.Transform(row)
	if err != nil {
		return 0, err
	}
	y, err := p.model.Predict(x)
	if err != nil {
		return 0, fmt.Errorf("%s predict: %w", p.model.Name(), err)
	}
	return y, nil
}
