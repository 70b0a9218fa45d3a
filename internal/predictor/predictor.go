// Package predictor turns a submission into a prediction: align the raw values
// against the bundle's schema, run the fitted pipeline, and format the result.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/impact-predictor-service/internal/artifact"
	"github.com/couchcryptid/impact-predictor-service/internal/domain"
	"github.com/couchcryptid/impact-predictor-service/internal/estimator"
	"github.com/couchcryptid/impact-predictor-service/internal/observability"
)

// Outcome labels for metrics and error classification.
const (
	OutcomeSuccess        = "success"
	OutcomeEncodingError  = "encoding_error"
	OutcomeValueError     = "value_error"
	OutcomeSchemaMismatch = "schema_mismatch"
	OutcomeError          = "error"
)

// Result is a successful prediction.
type Result struct {
	App         string            `json:"app"`
	Value       float64           `json:"prediction"`
	Display     string            `json:"display"`
	Row         domain.AlignedRow `json:"row"`
	PredictedAt time.Time         `json:"predicted_at"`
}

// Diagnostic describes a failed prediction for display: the error, the
// columns the estimator expects, and the shape of the input that was tried.
type Diagnostic struct {
	App             string   `json:"app"`
	Outcome         string   `json:"outcome"`
	Error           string   `json:"error"`
	ExpectedColumns []string `json:"expected_columns"`
	RowShape        [2]int   `json:"row_shape"`
}

// Predictor holds the read-only artifacts for one app. It is safe for
// concurrent use.
type Predictor struct {
	bundle   *artifact.Bundle
	schema   domain.FeatureSchema
	rules    domain.RuleSet
	pipeline *estimator.Pipeline
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// New builds a Predictor from a validated bundle.
func New(b *artifact.Bundle, metrics *observability.Metrics, logger *slog.Logger) (*Predictor, error) {
	schema, err := b.Schema()
	if err != nil {
		return nil, fmt.Errorf("predictor %s: %w", b.Name, err)
	}
	rules, err := b.Rules()
	if err != nil {
		return nil, fmt.Errorf("predictor %s: %w", b.Name, err)
	}
	pipeline, err := b.Pipeline()
	if err != nil {
		return nil, fmt.Errorf("predictor %s: %w", b.Name, err)
	}
	if pipeline.NFeatures() != schema.Len() {
		return nil, &domain.SchemaMismatchError{
			Component: pipeline.Model().Name(),
			Reason:    fmt.Sprintf("fitted on %d features, schema has %d", pipeline.NFeatures(), schema.Len()),
			Expected:  schema.Names(),
		}
	}
	return &Predictor{
		bundle:   b,
		schema:   schema,
		rules:    rules,
		pipeline: pipeline,
		metrics:  metrics,
		logger:   logger.With("app", b.Name),
	}, nil
}

func (p *Predictor) Name() string                 { return p.bundle.Name }
func (p *Predictor) Bundle() *artifact.Bundle     { return p.bundle }
func (p *Predictor) Schema() domain.FeatureSchema { return p.schema }
func (p *Predictor) Rules() domain.RuleSet        { return p.rules }

// Title returns the display title, falling back to the app name.
func (p *Predictor) Title() string {
	if p.bundle.Title != "" {
		return p.bundle.Title
	}
	return p.bundle.Name
}

// Predict aligns raw and runs the pipeline. Unknown category labels and
// non-numeric values fail without producing a row; a row the pipeline
// rejects fails with *domain.SchemaMismatchError.
func (p *Predictor) Predict(ctx context.Context, raw domain.RawInput) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	start := clock.Now()

	if unknown := raw.UnknownKeys(p.schema); len(unknown) > 0 {
		p.logger.Debug("ignoring values for unknown features", "features", unknown)
	}

	row, err := p.rules.Align(raw, domain.DefaultFill)
	if err != nil {
		p.record(start, err)
		p.logger.Warn("feature alignment failed", "error", err)
		return Result{}, err
	}

	y, err := p.pipeline.Predict(row)
	if err != nil {
		var werr *estimator.WidthError
		if errors.As(err, &werr) {
			err = &domain.SchemaMismatchError{
				Component: werr.Step,
				Reason:    werr.Error(),
				Expected:  p.schema.Names(),
				RowShape:  row.Shape(),
			}
		} else {
			err = fmt.Errorf("predict %s: %w", p.bundle.Name, err)
		}
		p.record(start, err)
		p.logger.Error("prediction failed", "error", err, "row_shape", row.Shape())
		return Result{}, err
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		err = fmt.Errorf("predict %s: model returned %v", p.bundle.Name, y)
		p.record(start, err)
		return Result{}, err
	}

	p.record(start, nil)
	return Result{
		App:         p.bundle.Name,
		Value:       y,
		Display:     FormatCount(y),
		Row:         row,
		PredictedAt: clock.Now().UTC(),
	}, nil
}

// Diagnose builds the diagnostic panel for a failed prediction of raw.
func (p *Predictor) Diagnose(raw domain.RawInput, err error) Diagnostic {
	d := Diagnostic{
		App:             p.bundle.Name,
		Outcome:         Outcome(err),
		ExpectedColumns: p.schema.Names(),
		RowShape:        [2]int{1, len(raw)},
	}
	if err != nil {
		d.Error = err.Error()
	}
	var mismatch *domain.SchemaMismatchError
	if errors.As(err, &mismatch) && mismatch.RowShape != [2]int{} {
		d.RowShape = mismatch.RowShape
	}
	return d
}

func (p *Predictor) record(start time.Time, err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.Predictions.WithLabelValues(p.bundle.Name, Outcome(err)).Inc()
	p.metrics.PredictionDuration.WithLabelValues(p.bundle.Name).Observe(clock.Since(start).Seconds())
}

// Outcome classifies a Predict error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, domain.ErrEncoding):
		return OutcomeEncodingError
	case errors.Is(err, domain.ErrInvalidValue):
		return OutcomeValueError
	case errors.Is(err, domain.ErrSchemaMismatch):
		return OutcomeSchemaMismatch
	default:
		return OutcomeError
	}
}

// IsInputError reports whether err was caused by the submitted values rather
// than by the artifacts.
func IsInputError(err error) bool {
	return errors.Is(err, domain.ErrEncoding) || errors.Is(err, domain.ErrInvalidValue)
}
