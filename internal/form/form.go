// Package form derives the input widgets for a prediction page from an
// artifact bundle and turns a submitted form back into raw feature values.
package form

import (
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/couchcryptid/impact-predictor-service/internal/artifact"
	"github.com/couchcryptid/impact-predictor-service/internal/domain"
)

// HTML inputs used for a field.
const (
	WidgetNumber = "number"
	WidgetSelect = "select"
	WidgetText   = "text"
)

// Option is one choice of a select widget.
type Option struct {
	Label    string `json:"label"`
	Code     int    `json:"code"`
	Selected bool   `json:"selected,omitempty"`
}

// Field is one input on the prediction form, in schema order.
type Field struct {
	Name    string   `json:"name"`
	Label   string   `json:"label"`
	Help    string   `json:"help,omitempty"`
	Widget  string   `json:"widget"`
	Min     string   `json:"min,omitempty"`
	Max     string   `json:"max,omitempty"`
	Step    string   `json:"step,omitempty"`
	Value   string   `json:"value,omitempty"`
	Options []Option `json:"options,omitempty"`
}

// Fields builds one field per schema column. Categorical columns become
// selects with options ordered by code, passthrough columns become free text
// and everything else a number input.
func Fields(b *artifact.Bundle, rules domain.RuleSet) []Field {
	out := make([]Field, 0, rules.Schema().Len())
	for _, rule := range rules.Rules() {
		hint := b.Hint(rule.Name)
		f := Field{
			Name:  rule.Name,
			Label: hint.Label,
			Help:  hint.Help,
			Min:   formatHint(hint.Min),
			Max:   formatHint(hint.Max),
			Step:  formatHint(hint.Step),
			Value: formatHint(hint.Default),
		}
		if f.Label == "" {
			f.Label = strings.ReplaceAll(rule.Name, "_", " ")
		}

		switch rule.Kind {
		case domain.KindCategorical:
			f.Widget = WidgetSelect
			f.Min, f.Max, f.Step = "", "", ""
			labels := rule.Labels()
			f.Options = make([]Option, len(labels))
			for i, label := range labels {
				f.Options[i] = Option{Label: label, Code: rule.Vocabulary[label]}
			}
			if f.Value == "" && len(labels) > 0 {
				f.Value = labels[0]
			}
			markSelected(&f)
		case domain.KindPassthrough:
			f.Widget = WidgetText
		default:
			f.Widget = WidgetNumber
			if f.Step == "" {
				f.Step = "any"
			}
		}
		out = append(out, f)
	}
	return out
}

// Fill returns a copy of fields with their values replaced by the submitted
// ones, so a form can be re-rendered after a post. Submitted text is sanitized.
func Fill(fields []Field, values url.Values) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		if len(f.Options) > 0 {
			f.Options = append([]Option(nil), f.Options...)
		}
		if _, ok := values[f.Name]; ok {
			f.Value = Sanitize(values.Get(f.Name))
		}
		markSelected(&f)
		out[i] = f
	}
	return out
}

// ParseValues converts a submitted form to raw features. Blank inputs are
// left out so the aligner applies its default. Number inputs must parse as
// numbers; select and text inputs are passed on as text.
func ParseValues(fields []Field, values url.Values) (domain.RawInput, error) {
	raw := make(domain.RawInput, len(fields))
	for _, f := range fields {
		v := strings.TrimSpace(values.Get(f.Name))
		if v == "" {
			continue
		}
		if f.Widget != WidgetNumber {
			raw[f.Name] = v
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, &domain.ValueError{Feature: f.Name, Value: Sanitize(v), Reason: "is not a number"}
		}
		raw[f.Name] = x
	}
	return raw, nil
}

var (
	strictOnce   sync.Once
	strictPolicy *bluemonday.Policy
)

// Sanitize strips all markup from s.
func Sanitize(s string) string {
	strictOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(strictPolicy.Sanitize(s))
}

func markSelected(f *Field) {
	for i := range f.Options {
		f.Options[i].Selected = f.Options[i].Label == f.Value
	}
}

func formatHint(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
