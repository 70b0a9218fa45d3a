package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// DefaultFill is the value written for schema columns the input omits.
const DefaultFill = 0.0

// FeatureSchema is the ordered list of feature names an estimator was fitted on.
// The zero value is an empty schema.
type FeatureSchema struct {
	names []string
	index map[string]int
}

// NewFeatureSchema builds a schema from names in training order.
// Names must be non-empty and unique.
func NewFeatureSchema(names ...string) (FeatureSchema, error) {
	if len(names) == 0 {
		return FeatureSchema{}, errors.New("feature schema: no columns")
	}
	s := FeatureSchema{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			return FeatureSchema{}, fmt.Errorf("feature schema: column %d has an empty name", i)
		}
		if prev, ok := s.index[name]; ok {
			return FeatureSchema{}, fmt.Errorf("feature schema: column %q appears at positions %d and %d", name, prev, i)
		}
		s.names[i] = name
		s.index[name] = i
	}
	return s, nil
}

// MustFeatureSchema is like NewFeatureSchema but panics on invalid input.
func MustFeatureSchema(names ...string) FeatureSchema {
	s, err := NewFeatureSchema(names...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of columns.
func (s FeatureSchema) Len() int { return len(s.names) }

// Name returns the column name at position i.
func (s FeatureSchema) Name(i int) string { return s.names[i] }

// Names returns a copy of the column names in schema order.
func (s FeatureSchema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Index reports the position of the named column.
func (s FeatureSchema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Contains reports whether name is a schema column.
func (s FeatureSchema) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

// RawInput maps feature names to submitted values. Values may be any Go
// number, a json.Number, a bool, or a string (a category label or numeric text).
// A nil value is treated as absent.
type RawInput map[string]any

// UnknownKeys returns the input keys that are not schema columns, in no
// particular order.
func (r RawInput) UnknownKeys(schema FeatureSchema) []string {
	var out []string
	for k := range r {
		if !schema.Contains(k) {
			out = append(out, k)
		}
	}
	return out
}

// AlignedRow is a dense feature vector in schema order.
type AlignedRow []float64

// Shape returns the row's dimensions as a single-row table.
func (r AlignedRow) Shape() [2]int { return [2]int{1, len(r)} }

// MarshalJSON encodes NaN and infinite entries as null.
func (r AlignedRow) MarshalJSON() ([]byte, error) {
	vals := make([]*float64, len(r))
	for i, v := range r {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		vals[i] = &r[i]
	}
	return json.Marshal(vals)
}

// EncodingTable maps a feature name to its label-to-code table.
type EncodingTable map[string]map[string]int
