package predictor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/impact-predictor-service/internal/artifact"
	"github.com/couchcryptid/impact-predictor-service/internal/observability"
)

// Registry holds the predictors loaded at startup, in load order.
type Registry struct {
	order       []*Predictor
	byName      map[string]*Predictor
	defaultName string
}

// Build creates one predictor per bundle. defaultName selects the app used when
// a request names none; empty means the first bundle.
func Build(bundles []*artifact.Bundle, defaultName string, metrics *observability.Metrics, logger *slog.Logger) (*Registry, error) {
	predictors := make([]*Predictor, 0, len(bundles))
	for _, b := range bundles {
		p, err := New(b, metrics, logger)
		if err != nil {
			return nil, err
		}
		predictors = append(predictors, p)
	}
	r, err := NewRegistry(predictors, defaultName)
	if err != nil {
		return nil, err
	}
	if metrics != nil {
		metrics.AppsLoaded.Set(float64(len(predictors)))
	}
	return r, nil
}

// NewRegistry indexes predictors by name.
func NewRegistry(predictors []*Predictor, defaultName string) (*Registry, error) {
	if len(predictors) == 0 {
		return nil, errors.New("registry: no predictors")
	}
	r := &Registry{
		order:  predictors,
		byName: make(map[string]*Predictor, len(predictors)),
	}
	for _, p := range predictors {
		if _, dup := r.byName[p.Name()]; dup {
			return nil, fmt.Errorf("registry: duplicate app %q", p.Name())
		}
		r.byName[p.Name()] = p
	}
	if defaultName == "" {
		defaultName = predictors[0].Name()
	}
	if _, ok := r.byName[defaultName]; !ok {
		return nil, fmt.Errorf("registry: default app %q is not loaded", defaultName)
	}
	r.defaultName = defaultName
	return r, nil
}

// Get returns the named predictor, or the default when name is empty.
func (r *Registry) Get(name string) (*Predictor, bool) {
	if name == "" {
		name = r.defaultName
	}
	p, ok := r.byName[name]
	return p, ok
}

// Default returns the default predictor.
func (r *Registry) Default() *Predictor { return r.byName[r.defaultName] }

// All returns the predictors in load order.
func (r *Registry) All() []*Predictor {
	out := make([]*Predictor, len(r.order))
	copy(out, r.order)
	return out
}

// Names returns app names in load order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	for i, p := range r.order {
		names[i] = p.Name()
	}
	return names
}

// CheckReadiness reports ready once artifacts are loaded, which is always
// true for a constructed registry.
func (r *Registry) CheckReadiness(_ context.Context) error {
	if r == nil || len(r.order) == 0 {
		return errors.New("no prediction apps loaded")
	}
	return nil
}
