package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/impact-predictor-service/internal/domain"
	"github.com/couchcryptid/impact-predictor-service/internal/form"
)

// Collect prompts for each field in order and returns the answers as raw
// features. Blank number and text answers are left out so the aligner fills
// the default. Out-of-range numbers are re-prompted.
func Collect(ctx context.Context, driver PromptDriver, fields []form.Field) (domain.RawInput, error) {
	raw := make(domain.RawInput, len(fields))
	for _, f := range fields {
		var (
			v   any
			err error
		)
		switch f.Widget {
		case form.WidgetSelect:
			v, err = promptSelect(ctx, driver, f)
		case form.WidgetNumber:
			v, err = promptNumber(ctx, driver, f)
		default:
			v, err = promptText(ctx, driver, f)
		}
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w", f.Name, err)
		}
		if v != nil {
			raw[f.Name] = v
		}
	}
	return raw, nil
}

func promptSelect(ctx context.Context, driver PromptDriver, f form.Field) (any, error) {
	options := make([]string, len(f.Options))
	def := 0
	for i, opt := range f.Options {
		options[i] = opt.Label
		if opt.Label == f.Value {
			def = i
		}
	}
	for {
		idx, err := driver.Select(ctx, SelectConfig{
			Message:      f.Label,
			Options:      options,
			DefaultIndex: def,
			Help:         f.Help,
		})
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(options) {
			_ = driver.Info(ctx, fmt.Sprintf("Invalid %s selection", f.Label))
			continue
		}
		return options[idx], nil
	}
}

func promptNumber(ctx context.Context, driver PromptDriver, f form.Field) (any, error) {
	for {
		input, err := driver.Input(ctx, InputConfig{
			Message: f.Label,
			Default: f.Value,
			Help:    f.Help,
		})
		if err != nil {
			return nil, err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			return nil, nil
		}
		x, err := parseInRange(input, f)
		if err != nil {
			_ = driver.Info(ctx, fmt.Sprintf("Invalid %s: %v", f.Label, err))
			continue
		}
		return x, nil
	}
}

func promptText(ctx context.Context, driver PromptDriver, f form.Field) (any, error) {
	input, err := driver.Input(ctx, InputConfig{
		Message: f.Label,
		Default: f.Value,
		Help:    f.Help,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	return input, nil
}

func parseInRange(input string, f form.Field) (float64, error) {
	x, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", input)
	}
	if lo, err := strconv.ParseFloat(f.Min, 64); err == nil && x < lo {
		return 0, fmt.Errorf("must be at least %s", f.Min)
	}
	if hi, err := strconv.ParseFloat(f.Max, 64); err == nil && x > hi {
		return 0, fmt.Errorf("must be at most %s", f.Max)
	}
	return x, nil
}
