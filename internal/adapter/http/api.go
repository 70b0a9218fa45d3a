package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/impact-predictor-service/internal/domain"
	"github.com/couchcryptid/impact-predictor-service/internal/predictor"
)

const maxRequestBytes = 1 << 20

// PredictRequest is the body of POST /api/v1/predict.
type PredictRequest struct {
	App      string          `json:"app,omitempty"`
	Features domain.RawInput `json:"features"`
}

// AppInfo describes a loaded app in GET /api/v1/apps.
type AppInfo struct {
	Name        string       `json:"name"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Target      string       `json:"target,omitempty"`
	ModelName   string       `json:"model_name,omitempty"`
	Default     bool         `json:"default"`
	Features    []FeatureDoc `json:"features"`
}

// FeatureDoc describes one schema column.
type FeatureDoc struct {
	Name   string   `json:"name"`
	Kind   string   `json:"kind"`
	Labels []string `json:"labels,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleAPIPredict(w http.ResponseWriter, r *http.Request) {
	req, err := decodePredictRequest(r.Body)
	if err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	p, ok := s.registry.Get(req.App)
	if !ok {
		sharedobs.WriteJSON(w, http.StatusNotFound, errorBody{Error: fmt.Sprintf("unknown app %q", req.App)})
		return
	}

	res, err := p.Predict(r.Context(), req.Features)
	if err != nil {
		status := http.StatusInternalServerError
		if predictor.IsInputError(err) {
			status = http.StatusUnprocessableEntity
		}
		sharedobs.WriteJSON(w, status, p.Diagnose(req.Features, err))
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, res)
}

func decodePredictRequest(body io.Reader) (PredictRequest, error) {
	var req PredictRequest
	dec := json.NewDecoder(io.LimitReader(body, maxRequestBytes))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return PredictRequest{}, errors.New("request body is empty")
		}
		return PredictRequest{}, fmt.Errorf("decode request: %w", err)
	}
	if dec.More() {
		return PredictRequest{}, errors.New("decode request: trailing data after JSON body")
	}
	return req, nil
}

func (s *Server) handleAPIApps(w http.ResponseWriter, _ *http.Request) {
	def := s.registry.Default().Name()
	all := s.registry.All()
	apps := make([]AppInfo, len(all))
	for i, p := range all {
		apps[i] = describeApp(p, p.Name() == def)
	}
	sharedobs.WriteJSON(w, http.StatusOK, apps)
}

func describeApp(p *predictor.Predictor, isDefault bool) AppInfo {
	b := p.Bundle()
	rules := p.Rules().Rules()
	features := make([]FeatureDoc, len(rules))
	for i, rule := range rules {
		features[i] = FeatureDoc{Name: rule.Name, Kind: rule.Kind.String()}
		if rule.Kind == domain.KindCategorical {
			features[i].Labels = rule.Labels()
		}
	}
	return AppInfo{
		Name:        p.Name(),
		Title:       p.Title(),
		Description: b.Description,
		Target:      b.Target,
		ModelName:   b.ModelName,
		Default:     isDefault,
		Features:    features,
	}
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	data, err := json.Marshal(OpenAPI(s.registry))
	if err != nil {
		s.logger.Error("marshal openapi document failed", "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, bytes.NewReader(data)) //nolint:errcheck // client may have gone away
}
