package tui

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/impact-predictor-service/internal/domain"
	"github.com/couchcryptid/impact-predictor-service/internal/form"
)

type stubDriver struct {
	inputs       []string
	selectIdx    []int
	infoMessages []string
	inputPos     int
	selectPos    int
	defaults     []string
}

func (s *stubDriver) Input(_ context.Context, cfg InputConfig) (string, error) {
	if s.inputPos >= len(s.inputs) {
		return "", errors.New("no input scripted")
	}
	s.defaults = append(s.defaults, cfg.Default)
	val := s.inputs[s.inputPos]
	s.inputPos++
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, _ SelectConfig) (int, error) {
	if s.selectPos >= len(s.selectIdx) {
		return -1, errors.New("no select scripted")
	}
	val := s.selectIdx[s.selectPos]
	s.selectPos++
	return val, nil
}

func (s *stubDriver) Confirm(_ context.Context, _ ConfirmConfig) (bool, error) {
	return false, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.infoMessages = append(s.infoMessages, msg)
	return nil
}

var testFields = []form.Field{
	{Name: "Year", Label: "Year", Widget: form.WidgetNumber, Min: "1900", Max: "2100", Value: "2023"},
	{Name: "Country", Label: "Country", Widget: form.WidgetSelect, Value: "Ghana", Options: []form.Option{
		{Label: "Ghana", Code: 0}, {Label: "Nigeria", Code: 1},
	}},
	{Name: "Total_Deaths", Label: "Total Deaths", Widget: form.WidgetNumber, Min: "0"},
	{Name: "Notes", Label: "Notes", Widget: form.WidgetText},
}

func TestCollect(t *testing.T) {
	driver := &stubDriver{
		inputs:    []string{"2019", " 50 ", "flooded coast"},
		selectIdx: []int{1},
	}

	raw, err := Collect(context.Background(), driver, testFields)
	require.NoError(t, err)
	assert.Equal(t, domain.RawInput{
		"Year":         2019.0,
		"Country":      "Nigeria",
		"Total_Deaths": 50.0,
		"Notes":        "flooded coast",
	}, raw)
	assert.Equal(t, []string{"2023", "", ""}, driver.defaults)
	assert.Empty(t, driver.infoMessages)
}

func TestCollect_BlankAnswersAreOmitted(t *testing.T) {
	driver := &stubDriver{
		inputs:    []string{"", "", "  "},
		selectIdx: []int{0},
	}

	raw, err := Collect(context.Background(), driver, testFields)
	require.NoError(t, err)
	assert.Equal(t, domain.RawInput{"Country": "Ghana"}, raw)
}

func TestCollect_RepromptsInvalidNumbers(t *testing.T) {
	driver := &stubDriver{
		inputs:    []string{"1800", "many", "2000", "-1", "3", ""},
		selectIdx: []int{7, 0},
	}

	raw, err := Collect(context.Background(), driver, testFields)
	require.NoError(t, err)
	assert.Equal(t, 2000.0, raw["Year"])
	assert.Equal(t, "Ghana", raw["Country"])
	assert.Equal(t, 3.0, raw["Total_Deaths"])
	assert.Equal(t, []string{
		"Invalid Year: must be at least 1900",
		`Invalid Year: "many" is not a number`,
		"Invalid Country selection",
		"Invalid Total Deaths: must be at least 0",
	}, driver.infoMessages)
}

func TestCollect_DriverError(t *testing.T) {
	_, err := Collect(context.Background(), &stubDriver{}, testFields)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt Year")
}

func TestIndexOf(t *testing.T) {
	assert.Equal(t, 1, indexOf([]string{"a", "b"}, "b"))
	assert.Equal(t, -1, indexOf([]string{"a", "b"}, "c"))
}
