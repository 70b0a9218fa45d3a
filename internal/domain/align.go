package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Align builds the row for raw against schema, encoding categorical columns
// with encodings and filling absent columns with def.
func Align(raw RawInput, schema FeatureSchema, encodings EncodingTable, def float64) (AlignedRow, error) {
	rules, err := NewRuleSet(schema, encodings, nil)
	if err != nil {
		return nil, err
	}
	return rules.Align(raw, def)
}

// Align builds the row for raw in schema order. It returns an *EncodingError
// for a categorical value outside its vocabulary and a *ValueError for a
// value that is not a number. No partial row is returned on error.
func (rs RuleSet) Align(raw RawInput, def float64) (AlignedRow, error) {
	row := make(AlignedRow, len(rs.rules))
	for i, rule := range rs.rules {
		v, ok := raw[rule.Name]
		if !ok || v == nil {
			row[i] = def
			continue
		}

		var (
			x   float64
			err error
		)
		switch rule.Kind {
		case KindCategorical:
			x, err = encodeCategory(rule, v)
		case KindPassthrough:
			x, err = passthroughValue(rule.Name, v)
		default:
			x, err = numericValue(rule.Name, v)
		}
		if err != nil {
			return nil, err
		}
		row[i] = x
	}
	return row, nil
}

// encodeCategory looks a label up in the rule's vocabulary. Integral numbers
// are accepted when they are already one of the vocabulary's codes.
func encodeCategory(rule FeatureRule, v any) (float64, error) {
	if s, ok := v.(string); ok {
		label := strings.TrimSpace(s)
		code, ok := rule.Vocabulary[label]
		if !ok {
			return 0, &EncodingError{Feature: rule.Name, Label: s, Known: rule.Labels()}
		}
		return float64(code), nil
	}

	x, ok := asFloat(v)
	if ok && x == math.Trunc(x) {
		for _, code := range rule.Vocabulary {
			if float64(code) == x {
				return x, nil
			}
		}
	}
	return 0, &EncodingError{Feature: rule.Name, Label: fmt.Sprint(v), Known: rule.Labels()}
}

func numericValue(name string, v any) (float64, error) {
	var (
		x  float64
		ok bool
	)
	if s, isString := v.(string); isString {
		x, ok = parseNumber(s)
	} else {
		x, ok = asFloat(v)
	}
	if !ok {
		return 0, &ValueError{Feature: name, Value: fmt.Sprint(v), Reason: "is not a number"}
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, &ValueError{Feature: name, Value: fmt.Sprint(v), Reason: "is not a finite number"}
	}
	return x, nil
}

// passthroughValue hands values to the imputer untouched: empty text becomes
// NaN and booleans become 0 or 1.
func passthroughValue(name string, v any) (float64, error) {
	switch t := v.(type) {
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return math.NaN(), nil
		}
		if x, ok := parseNumber(t); ok {
			return x, nil
		}
	default:
		if x, ok := asFloat(v); ok {
			return x, nil
		}
	}
	return 0, &ValueError{Feature: name, Value: fmt.Sprint(v), Reason: "is not a number"}
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return x, true
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		x, err := t.Float64()
		return x, err == nil
	default:
		return 0, false
	}
}
