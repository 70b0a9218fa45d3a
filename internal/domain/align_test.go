package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSchema = MustFeatureSchema("Year", "Country", "Total_Deaths")

	testEncodings = EncodingTable{
		"Country": {"Ghana": 0, "Nigeria": 1},
	}
)

func TestAlign_EndToEndExample(t *testing.T) {
	raw := RawInput{"Country": "Nigeria", "Total_Deaths": 50.0}

	row, err := Align(raw, testSchema, testEncodings, DefaultFill)
	require.NoError(t, err)

	if diff := cmp.Diff(AlignedRow{0, 1, 50.0}, row); diff != "" {
		t.Errorf("aligned row mismatch (-want +got):\n%s", diff)
	}
}

func TestAlign_LengthMatchesSchema(t *testing.T) {
	schemas := []FeatureSchema{
		MustFeatureSchema("a"),
		MustFeatureSchema("a", "b", "c"),
		MustFeatureSchema("Year", "Country", "Region", "Total_Deaths", "Number_Injured", "Number_Homeless"),
	}
	inputs := []RawInput{
		{},
		{"a": 1.0},
		{"zzz": 4.0, "Year": 2001},
		{"a": 1, "b": 2, "c": 3, "d": 4},
	}

	for _, s := range schemas {
		for _, raw := range inputs {
			row, err := Align(raw, s, nil, DefaultFill)
			require.NoError(t, err)
			assert.Len(t, row, s.Len())
			assert.Equal(t, [2]int{1, s.Len()}, row.Shape())
		}
	}
}

func TestAlign_OutputOrderFollowsSchemaOnly(t *testing.T) {
	pairs := []struct {
		key   string
		value any
	}{
		{"Total_Deaths", 12.0},
		{"Country", "Ghana"},
		{"Year", 2019},
	}
	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 0, 2}, {1, 2, 0}}

	var first AlignedRow
	for _, order := range orders {
		raw := RawInput{}
		for _, i := range order {
			raw[pairs[i].key] = pairs[i].value
		}
		row, err := Align(raw, testSchema, testEncodings, DefaultFill)
		require.NoError(t, err)
		if first == nil {
			first = row
			continue
		}
		if diff := cmp.Diff(first, row); diff != "" {
			t.Errorf("row depends on input order %v (-first +got):\n%s", order, diff)
		}
	}
	assert.Equal(t, AlignedRow{2019, 0, 12}, first)
}

func TestAlign_MissingFeaturesGetDefault(t *testing.T) {
	row, err := Align(RawInput{}, testSchema, testEncodings, DefaultFill)
	require.NoError(t, err)
	assert.Equal(t, AlignedRow{0, 0, 0}, row)

	row, err = Align(RawInput{"Year": 2020, "Country": nil}, testSchema, testEncodings, -1)
	require.NoError(t, err)
	assert.Equal(t, AlignedRow{2020, -1, -1}, row)
}

func TestAlign_EveryLabelRoundTrips(t *testing.T) {
	encodings := EncodingTable{
		"Disaster_Type": {"Drought": 0, "Earthquake": 1, "Epidemic": 2, "Flood": 3, "Storm": 4},
	}
	schema := MustFeatureSchema("Disaster_Type")

	for label, code := range encodings["Disaster_Type"] {
		row, err := Align(RawInput{"Disaster_Type": label}, schema, encodings, DefaultFill)
		require.NoError(t, err, label)
		assert.Equal(t, float64(code), row[0], label)
	}
}

func TestAlign_UnknownLabelFails(t *testing.T) {
	raw := RawInput{"Country": "Atlantis", "Total_Deaths": 3.0}

	row, err := Align(raw, testSchema, testEncodings, DefaultFill)
	require.Error(t, err)
	assert.Nil(t, row)
	assert.True(t, errors.Is(err, ErrEncoding))

	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, "Country", encErr.Feature)
	assert.Equal(t, "Atlantis", encErr.Label)
	assert.Equal(t, []string{"Ghana", "Nigeria"}, encErr.Known)
	assert.Contains(t, err.Error(), `"Atlantis"`)
}

func TestAlign_CategoricalCodes(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    float64
		wantErr bool
	}{
		{name: "label", value: "Nigeria", want: 1},
		{name: "label with spaces", value: " Ghana ", want: 0},
		{name: "valid int code", value: 1, want: 1},
		{name: "valid float code", value: 0.0, want: 0},
		{name: "json number code", value: json.Number("1"), want: 1},
		{name: "code out of range", value: 7, wantErr: true},
		{name: "fractional code", value: 0.5, wantErr: true},
		{name: "numeric text is a label", value: "1", wantErr: true},
		{name: "wrong case", value: "nigeria", wantErr: true},
		{name: "bool", value: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := Align(RawInput{"Country": tt.value}, testSchema, testEncodings, DefaultFill)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrEncoding)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, row[1])
		})
	}
}

func TestAlign_NumericValues(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    float64
		wantErr bool
	}{
		{name: "float", value: 50.5, want: 50.5},
		{name: "int", value: 7, want: 7},
		{name: "int64", value: int64(9), want: 9},
		{name: "float32", value: float32(2.5), want: 2.5},
		{name: "json number", value: json.Number("12.25"), want: 12.25},
		{name: "numeric text", value: " 100 ", want: 100},
		{name: "free text", value: "many", wantErr: true},
		{name: "empty text", value: "", wantErr: true},
		{name: "nan", value: math.NaN(), wantErr: true},
		{name: "inf", value: math.Inf(1), wantErr: true},
		{name: "bool", value: false, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := Align(RawInput{"Total_Deaths": tt.value}, testSchema, testEncodings, DefaultFill)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidValue)
				assert.Nil(t, row)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, row[2])
		})
	}
}

func TestRuleSet_PassthroughValues(t *testing.T) {
	schema := MustFeatureSchema("Year", "Notes")
	rules, err := NewRuleSet(schema, nil, map[string]Kind{"Notes": KindPassthrough})
	require.NoError(t, err)

	row, err := rules.Align(RawInput{"Notes": ""}, DefaultFill)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(row[1]))

	row, err = rules.Align(RawInput{"Notes": true}, DefaultFill)
	require.NoError(t, err)
	assert.Equal(t, 1.0, row[1])

	row, err = rules.Align(RawInput{"Notes": "3.5"}, DefaultFill)
	require.NoError(t, err)
	assert.Equal(t, 3.5, row[1])

	_, err = rules.Align(RawInput{"Notes": "n/a"}, DefaultFill)
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestAlign_IgnoresUnknownKeys(t *testing.T) {
	raw := RawInput{"Year": 2000, "Favourite_Colour": "blue"}

	row, err := Align(raw, testSchema, testEncodings, DefaultFill)
	require.NoError(t, err)
	assert.Equal(t, AlignedRow{2000, 0, 0}, row)
	assert.Equal(t, []string{"Favourite_Colour"}, raw.UnknownKeys(testSchema))
}

func TestAlign_EncodingForUnknownColumn(t *testing.T) {
	encodings := EncodingTable{"Region": {"West": 0}}

	_, err := Align(RawInput{}, testSchema, encodings, DefaultFill)
	require.ErrorIs(t, err, ErrSchemaMismatch)

	var mismatch *SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "encodings", mismatch.Component)
	assert.Equal(t, testSchema.Names(), mismatch.Expected)
	assert.Equal(t, []string{"Region"}, mismatch.Actual)
}
