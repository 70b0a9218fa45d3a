// Package artifact loads the fitted artifacts behind one prediction form: the
// feature schema, category encodings, imputer, scaler and regression model.
//
// A bundle is a single JSON or YAML document holding the attributes the
// training job exported. Bundles are loaded once at startup and treated as
// immutable afterwards.
package artifact

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/impact-predictor-service/internal/domain"
	"github.com/couchcryptid/impact-predictor-service/internal/estimator"
)

//go:embed bundles/*.yaml
var embedded embed.FS

// Bundle is the parsed artifact document for one prediction form.
type Bundle struct {
	Name        string               `json:"name" yaml:"name"`
	Title       string               `json:"title" yaml:"title"`
	Description string               `json:"description" yaml:"description"`
	Target      string               `json:"target" yaml:"target"`
	ModelName   string               `json:"model_name" yaml:"model_name"`
	Dataset     string               `json:"dataset" yaml:"dataset"`
	Columns     []string             `json:"columns" yaml:"columns"`
	Encodings   domain.EncodingTable `json:"encodings" yaml:"encodings"`
	Fields      map[string]FieldHint `json:"fields" yaml:"fields"`
	Imputer     ImputerSpec          `json:"imputer" yaml:"imputer"`
	Scaler      ScalerSpec           `json:"scaler" yaml:"scaler"`
	Model       ModelSpec            `json:"model" yaml:"model"`

	// Source is the file the bundle was read from.
	Source string `json:"-" yaml:"-"`
}

// FieldHint carries optional form settings for one column.
type FieldHint struct {
	Label   string   `json:"label" yaml:"label"`
	Help    string   `json:"help" yaml:"help"`
	Kind    string   `json:"kind" yaml:"kind"` // numeric (default), categorical, passthrough
	Min     *float64 `json:"min" yaml:"min"`
	Max     *float64 `json:"max" yaml:"max"`
	Step    *float64 `json:"step" yaml:"step"`
	Default *float64 `json:"default" yaml:"default"`
}

// ImputerSpec holds a fitted missing-value imputer.
type ImputerSpec struct {
	Strategy   string    `json:"strategy" yaml:"strategy"`
	Statistics []float64 `json:"statistics" yaml:"statistics"`
}

// ScalerSpec holds a fitted standard scaler.
type ScalerSpec struct {
	Mean  []float64 `json:"mean" yaml:"mean"`
	Scale []float64 `json:"scale" yaml:"scale"`
}

// ModelSpec holds a fitted regressor. Kind selects which fields apply.
type ModelSpec struct {
	Kind string `json:"kind" yaml:"kind"` // decision_tree or linear

	ChildrenLeft  []int     `json:"children_left,omitempty" yaml:"children_left"`
	ChildrenRight []int     `json:"children_right,omitempty" yaml:"children_right"`
	Feature       []int     `json:"feature,omitempty" yaml:"feature"`
	Threshold     []float64 `json:"threshold,omitempty" yaml:"threshold"`
	Value         []float64 `json:"value,omitempty" yaml:"value"`

	Coef      []float64 `json:"coef,omitempty" yaml:"coef"`
	Intercept float64   `json:"intercept,omitempty" yaml:"intercept"`
}

// Load reads and validates a bundle file.
func Load(filename string) (*Bundle, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("artifact: read %s: %w", filename, err)
	}
	return Parse(data, filename)
}

// LoadAll loads each file in order. Bundle names must be unique.
func LoadAll(filenames []string) ([]*Bundle, error) {
	bundles := make([]*Bundle, 0, len(filenames))
	for _, f := range filenames {
		b, err := Load(f)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	if err := checkUniqueNames(bundles); err != nil {
		return nil, err
	}
	return bundles, nil
}

// FromPaths loads the listed bundle files, or the embedded bundles when paths
// is empty.
func FromPaths(paths []string) ([]*Bundle, error) {
	if len(paths) == 0 {
		return Embedded()
	}
	return LoadAll(paths)
}

// Embedded loads the bundles compiled into the binary, sorted by file name.
func Embedded() ([]*Bundle, error) {
	entries, err := fs.ReadDir(embedded, "bundles")
	if err != nil {
		return nil, fmt.Errorf("artifact: list embedded bundles: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	bundles := make([]*Bundle, 0, len(names))
	for _, name := range names {
		p := path.Join("bundles", name)
		data, err := embedded.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("artifact: read embedded %s: %w", p, err)
		}
		b, err := Parse(data, "embedded:"+name)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	if err := checkUniqueNames(bundles); err != nil {
		return nil, err
	}
	return bundles, nil
}

// Parse decodes a JSON or YAML bundle and validates it. source names the
// document in error messages.
func Parse(data []byte, source string) (*Bundle, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("artifact: %s is empty", source)
	}

	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		b = Bundle{}
		if yerr := yaml.Unmarshal(data, &b); yerr != nil {
			return nil, fmt.Errorf("artifact: parse %s: invalid JSON or YAML: %w", source, yerr)
		}
	}
	b.Source = source

	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("artifact: %s: %w", source, err)
	}
	return &b, nil
}

func checkUniqueNames(bundles []*Bundle) error {
	seen := make(map[string]string, len(bundles))
	for _, b := range bundles {
		if prev, ok := seen[b.Name]; ok {
			return fmt.Errorf("artifact: bundle name %q used by both %s and %s", b.Name, prev, b.Source)
		}
		seen[b.Name] = b.Source
	}
	return nil
}

// Schema returns the feature schema.
func (b *Bundle) Schema() (domain.FeatureSchema, error) {
	return domain.NewFeatureSchema(b.Columns...)
}

// Rules derives the per-column alignment rules from encodings and field hints.
func (b *Bundle) Rules() (domain.RuleSet, error) {
	schema, err := b.Schema()
	if err != nil {
		return domain.RuleSet{}, err
	}
	kinds := make(map[string]domain.Kind)
	for name, hint := range b.Fields {
		if hint.Kind == "" {
			continue
		}
		k, err := domain.ParseKind(hint.Kind)
		if err != nil {
			return domain.RuleSet{}, fmt.Errorf("field %s: %w", name, err)
		}
		kinds[name] = k
	}
	return domain.NewRuleSet(schema, b.Encodings, kinds)
}

// Pipeline builds the impute, scale, predict chain.
func (b *Bundle) Pipeline() (*estimator.Pipeline, error) {
	model, err := b.regressor()
	if err != nil {
		return nil, err
	}
	imputer, err := estimator.NewImputer(b.Imputer.Strategy, b.Imputer.Statistics)
	if err != nil {
		return nil, err
	}
	scaler, err := estimator.NewStandardScaler(b.Scaler.Mean, b.Scaler.Scale)
	if err != nil {
		return nil, err
	}
	return estimator.NewPipeline(model, imputer, scaler)
}

func (b *Bundle) regressor() (estimator.Regressor, error) {
	switch b.Model.Kind {
	case "decision_tree":
		return estimator.NewDecisionTreeRegressor(len(b.Columns), estimator.TreeNodes{
			ChildrenLeft:  b.Model.ChildrenLeft,
			ChildrenRight: b.Model.ChildrenRight,
			Feature:       b.Model.Feature,
			Threshold:     b.Model.Threshold,
			Value:         b.Model.Value,
		})
	case "linear":
		return estimator.NewLinearRegressor(b.Model.Coef, b.Model.Intercept)
	case "":
		return nil, errors.New("model kind is required")
	default:
		return nil, fmt.Errorf("unknown model kind %q", b.Model.Kind)
	}
}

type componentWidth struct {
	component string
	n         int
}

// Validate checks that every artifact agrees with the column list. Width or
// name disagreements are reported as *domain.SchemaMismatchError.
func (b *Bundle) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return errors.New("bundle name is required")
	}
	if _, err := b.Schema(); err != nil {
		return err
	}
	if _, err := b.Rules(); err != nil {
		return err
	}

	for name := range b.Fields {
		if !slices.Contains(b.Columns, name) {
			return &domain.SchemaMismatchError{
				Component: "fields",
				Reason:    fmt.Sprintf("hint for %q, which is not a schema column", name),
				Expected:  append([]string(nil), b.Columns...),
				Actual:    []string{name},
			}
		}
	}

	widths := []componentWidth{
		{"imputer", len(b.Imputer.Statistics)},
		{"scaler", len(b.Scaler.Mean)},
	}
	if b.Model.Kind == "linear" {
		widths = append(widths, componentWidth{"model", len(b.Model.Coef)})
	}
	for _, w := range widths {
		if w.n != len(b.Columns) {
			return &domain.SchemaMismatchError{
				Component: w.component,
				Reason:    fmt.Sprintf("fitted on %d features, schema has %d", w.n, len(b.Columns)),
				Expected:  append([]string(nil), b.Columns...),
			}
		}
	}

	if _, err := b.Pipeline(); err != nil {
		var werr *estimator.WidthError
		if errors.As(err, &werr) {
			return &domain.SchemaMismatchError{
				Component: werr.Step,
				Reason:    werr.Error(),
				Expected:  append([]string(nil), b.Columns...),
			}
		}
		return err
	}
	return nil
}

// Hint returns the field hint for a column, or the zero hint.
func (b *Bundle) Hint(column string) FieldHint {
	return b.Fields[column]
}
