package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrEncoding matches any *EncodingError.
	ErrEncoding = errors.New("unknown category label")
	// ErrSchemaMismatch matches any *SchemaMismatchError.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrInvalidValue matches any *ValueError.
	ErrInvalidValue = errors.New("invalid feature value")
)

// EncodingError reports a categorical value outside the feature's vocabulary.
type EncodingError struct {
	Feature string
	Label   string
	Known   []string // vocabulary labels, ordered by code
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s: label %q is not one of [%s]", e.Feature, e.Label, strings.Join(e.Known, ", "))
}

func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

// ValueError reports a non-categorical value that cannot be read as a number.
type ValueError struct {
	Feature string
	Value   string
	Reason  string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("feature %s: value %q %s", e.Feature, e.Value, e.Reason)
}

func (e *ValueError) Is(target error) bool { return target == ErrInvalidValue }

// SchemaMismatchError reports disagreement between the feature schema and an
// artifact or row that is supposed to follow it.
type SchemaMismatchError struct {
	Component string   // e.g. "scaler", "model", "encodings"
	Reason    string   // human-readable description of the disagreement
	Expected  []string // schema columns
	Actual    []string // columns (or column count) the component reported, when known
	RowShape  [2]int   // shape of the offending row, zero when not row-related
}

func (e *SchemaMismatchError) Error() string {
	if e.Component == "" {
		return "schema mismatch: " + e.Reason
	}
	return fmt.Sprintf("schema mismatch in %s: %s", e.Component, e.Reason)
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// vocabularyLabels returns the labels of a code table ordered by code, then label.
func vocabularyLabels(vocab map[string]int) []string {
	labels := make([]string, 0, len(vocab))
	for label := range vocab {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		ci, cj := vocab[labels[i]], vocab[labels[j]]
		if ci != cj {
			return ci < cj
		}
		return labels[i] < labels[j]
	})
	return labels
}
