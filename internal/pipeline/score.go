package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/impact-predictor-service/internal/domain"
	"github.com/couchcryptid/impact-predictor-service/internal/predictor"
)

// ScoreRequest is one prediction request on the request topic. App may be
// empty to use the default app.
type ScoreRequest struct {
	ID       string          `json:"id"`
	App      string          `json:"app,omitempty"`
	Features domain.RawInput `json:"features"`
}

// ScoreResult is the payload published for a scored request.
type ScoreResult struct {
	ID string `json:"id"`
	predictor.Result
}

// Scorer implements Transformer by running each request through the
// predictor registry.
type Scorer struct {
	registry *predictor.Registry
	logger   *slog.Logger
}

// NewScorer creates a Scorer over the loaded apps.
func NewScorer(registry *predictor.Registry, logger *slog.Logger) *Scorer {
	return &Scorer{registry: registry, logger: logger}
}

func (s *Scorer) Transform(ctx context.Context, raw RawEvent) (OutputEvent, error) {
	req, err := ParseScoreRequest(raw)
	if err != nil {
		return OutputEvent{}, err
	}

	p, ok := s.registry.Get(req.App)
	if !ok {
		return OutputEvent{}, fmt.Errorf("request %s: unknown app %q", req.ID, req.App)
	}

	res, err := p.Predict(ctx, req.Features)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("request %s: %w", req.ID, err)
	}

	s.logger.Debug("scored request", "id", req.ID, "app", res.App, "prediction", res.Value)

	data, err := json.Marshal(ScoreResult{ID: req.ID, Result: res})
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize result %s: %w", req.ID, err)
	}
	return OutputEvent{
		Key:   []byte(req.ID),
		Value: data,
		Headers: []Header{
			{Key: "app", Value: res.App},
			{Key: "predicted_at", Value: res.PredictedAt.Format(time.RFC3339)},
		},
	}, nil
}

// ParseScoreRequest decodes a request message. Numbers in features are kept
// as json.Number. A request without an id takes the message key.
func ParseScoreRequest(raw RawEvent) (ScoreRequest, error) {
	var req ScoreRequest
	dec := json.NewDecoder(bytes.NewReader(raw.Value))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return ScoreRequest{}, fmt.Errorf("decode score request: %w", err)
	}
	if req.ID == "" {
		req.ID = string(raw.Key)
	}
	if req.ID == "" {
		return ScoreRequest{}, errors.New("decode score request: missing id")
	}
	if req.App == "" {
		req.App = raw.Headers["app"]
	}
	return req, nil
}
