package predictor

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/impact-predictor-service/internal/artifact"
	"github.com/couchcryptid/impact-predictor-service/internal/domain"
	"github.com/couchcryptid/impact-predictor-service/internal/observability"
)

var fixedNow = time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(t *testing.T) (*Registry, *observability.Metrics) {
	t.Helper()
	SetClock(clockwork.NewFakeClockAt(fixedNow))
	t.Cleanup(func() { SetClock(nil) })

	bundles, err := artifact.Embedded()
	require.NoError(t, err)

	metrics := observability.NewMetricsForTesting()
	reg, err := Build(bundles, "", metrics, discardLogger())
	require.NoError(t, err)
	return reg, metrics
}

func disaster(t *testing.T) (*Predictor, *observability.Metrics) {
	t.Helper()
	reg, metrics := newTestRegistry(t)
	p, ok := reg.Get("disaster-impact")
	require.True(t, ok)
	return p, metrics
}

func TestPredict_DisasterImpact(t *testing.T) {
	p, metrics := disaster(t)

	tests := []struct {
		name    string
		raw     domain.RawInput
		want    float64
		display string
	}{
		{
			name:    "low deaths, drought by default",
			raw:     domain.RawInput{"Country": "Nigeria", "Total_Deaths": 50.0},
			want:    12500,
			display: "12,500",
		},
		{
			name:    "low deaths, storm",
			raw:     domain.RawInput{"Disaster_Type": "Storm", "Total_Deaths": 50.0},
			want:    48250,
			display: "48,250",
		},
		{
			name:    "high deaths, few homeless",
			raw:     domain.RawInput{"Year": 2023, "Disaster_Type": "Flood", "Total_Deaths": 500.0},
			want:    185000,
			display: "185,000",
		},
		{
			name: "high deaths, many homeless",
			raw: domain.RawInput{
				"Year": 2023, "Country": "Mozambique", "Region": "Southern Africa",
				"Disaster_Group": "Natural", "Disaster_Type": "Flood",
				"Total_Deaths": 500.0, "Number_Injured": 1200.0, "Number_Homeless": 40000.0,
			},
			want:    920000,
			display: "920,000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Predict(context.Background(), tt.raw)
			require.NoError(t, err)
			assert.Equal(t, "disaster-impact", res.App)
			assert.Equal(t, tt.want, res.Value)
			assert.Equal(t, tt.display, res.Display)
			assert.Len(t, res.Row, 8)
			assert.Equal(t, fixedNow, res.PredictedAt)
		})
	}

	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.Predictions.WithLabelValues("disaster-impact", OutcomeSuccess)))
}

func TestPredict_RowFollowsSchemaOrder(t *testing.T) {
	p, _ := disaster(t)

	res, err := p.Predict(context.Background(), domain.RawInput{
		"Number_Homeless": 7.0,
		"Country":         "Ghana",
		"Year":            1999,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AlignedRow{1999, 1, 0, 0, 0, 0, 0, 7}, res.Row)
}

func TestPredict_LoanAmount(t *testing.T) {
	reg, _ := newTestRegistry(t)
	p, ok := reg.Get("loan-amount")
	require.True(t, ok)

	base := domain.RawInput{
		"Age": 40, "Annual_Income": 55000.0, "Credit_Score": 650,
		"Employment_Status": "Self-Employed", "Loan_Purpose": "Home",
		"Existing_Debt": 12000.0, "Years_Employed": 8,
	}
	res, err := p.Predict(context.Background(), base)
	require.NoError(t, err)
	assert.InDelta(t, 25000, res.Value, 1e-6)
	assert.Equal(t, "25,000", res.Display)

	base["Annual_Income"] = 80000.0
	res, err = p.Predict(context.Background(), base)
	require.NoError(t, err)
	assert.InDelta(t, 31000, res.Value, 1e-6)
	assert.Equal(t, "31,000", res.Display)
}

func TestPredict_UnknownLabel(t *testing.T) {
	p, metrics := disaster(t)
	raw := domain.RawInput{"Country": "Atlantis", "Total_Deaths": 1.0}

	_, err := p.Predict(context.Background(), raw)
	require.ErrorIs(t, err, domain.ErrEncoding)
	assert.True(t, IsInputError(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Predictions.WithLabelValues("disaster-impact", OutcomeEncodingError)))

	d := p.Diagnose(raw, err)
	assert.Equal(t, OutcomeEncodingError, d.Outcome)
	assert.Contains(t, d.Error, "Atlantis")
	assert.Equal(t, p.Schema().Names(), d.ExpectedColumns)
	assert.Equal(t, [2]int{1, 2}, d.RowShape)
}

func TestPredict_InvalidNumber(t *testing.T) {
	p, _ := disaster(t)

	_, err := p.Predict(context.Background(), domain.RawInput{"Total_Deaths": "lots"})
	require.ErrorIs(t, err, domain.ErrInvalidValue)
	assert.Equal(t, OutcomeValueError, Outcome(err))
}

func TestPredict_CancelledContext(t *testing.T) {
	p, _ := disaster(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Predict(ctx, domain.RawInput{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDiagnose_SchemaMismatchUsesRowShape(t *testing.T) {
	p, _ := disaster(t)
	err := &domain.SchemaMismatchError{Component: "scaler", Reason: "bad", RowShape: [2]int{1, 7}}

	d := p.Diagnose(domain.RawInput{"Year": 2000}, err)
	assert.Equal(t, OutcomeSchemaMismatch, d.Outcome)
	assert.Equal(t, [2]int{1, 7}, d.RowShape)
}

func TestResult_JSON(t *testing.T) {
	p, _ := disaster(t)
	res, err := p.Predict(context.Background(), domain.RawInput{"Total_Deaths": 50.0})
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"app": "disaster-impact",
		"prediction": 12500,
		"display": "12,500",
		"row": [0, 0, 0, 0, 0, 50, 0, 0],
		"predicted_at": "2024-04-27T06:00:00Z"
	}`, string(data))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, Outcome(nil))
	assert.Equal(t, OutcomeSchemaMismatch, Outcome(&domain.SchemaMismatchError{}))
	assert.Equal(t, OutcomeError, Outcome(io.EOF))
	assert.False(t, IsInputError(&domain.SchemaMismatchError{}))
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "0", FormatCount(-0.2))
	assert.Equal(t, "999", FormatCount(999.4))
	assert.Equal(t, "1,000", FormatCount(999.5))
	assert.Equal(t, "1,234,568", FormatCount(1234567.89))
	assert.Equal(t, "-4,200", FormatCount(-4200))
	assert.Equal(t, "n/a", FormatCount(math.NaN()))
}
