package domain

import "fmt"

// Kind selects how a column's submitted value becomes a float.
type Kind int

const (
	KindNumeric Kind = iota
	KindCategorical
	KindPassthrough
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindCategorical:
		return "categorical"
	case KindPassthrough:
		return "passthrough"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a kind name to a Kind. The empty string is numeric.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "numeric":
		return KindNumeric, nil
	case "categorical":
		return KindCategorical, nil
	case "passthrough":
		return KindPassthrough, nil
	default:
		return 0, fmt.Errorf("unknown feature kind %q", s)
	}
}

// FeatureRule describes how one schema column is filled.
type FeatureRule struct {
	Name       string
	Kind       Kind
	Vocabulary map[string]int // categorical only
}

// Labels returns the vocabulary labels ordered by code.
func (r FeatureRule) Labels() []string {
	return vocabularyLabels(r.Vocabulary)
}

// RuleSet holds one rule per schema column, in schema order. It is read-only
// once built and safe for concurrent use.
type RuleSet struct {
	schema FeatureSchema
	rules  []FeatureRule
}

// NewRuleSet derives the column rules from a schema and its encoding table.
// Encoded columns are categorical. Every other column is numeric unless kinds
// overrides it. Encodings for columns the schema does not have, negative
// codes, or categorical kinds without a vocabulary return a *SchemaMismatchError.
func NewRuleSet(schema FeatureSchema, encodings EncodingTable, kinds map[string]Kind) (RuleSet, error) {
	for name, vocab := range encodings {
		if !schema.Contains(name) {
			return RuleSet{}, &SchemaMismatchError{
				Component: "encodings",
				Reason:    fmt.Sprintf("encoded feature %q is not a schema column", name),
				Expected:  schema.Names(),
				Actual:    []string{name},
			}
		}
		if len(vocab) == 0 {
			return RuleSet{}, &SchemaMismatchError{
				Component: "encodings",
				Reason:    fmt.Sprintf("feature %q has an empty vocabulary", name),
				Expected:  schema.Names(),
			}
		}
		for label, code := range vocab {
			if code < 0 {
				return RuleSet{}, &SchemaMismatchError{
					Component: "encodings",
					Reason:    fmt.Sprintf("feature %q label %q has negative code %d", name, label, code),
					Expected:  schema.Names(),
				}
			}
		}
	}
	for name := range kinds {
		if !schema.Contains(name) {
			return RuleSet{}, &SchemaMismatchError{
				Component: "fields",
				Reason:    fmt.Sprintf("feature %q is not a schema column", name),
				Expected:  schema.Names(),
				Actual:    []string{name},
			}
		}
	}

	rules := make([]FeatureRule, schema.Len())
	for i := range rules {
		name := schema.Name(i)
		rule := FeatureRule{Name: name, Kind: KindNumeric}
		if vocab, ok := encodings[name]; ok {
			rule.Kind = KindCategorical
			rule.Vocabulary = copyVocabulary(vocab)
		}
		if k, ok := kinds[name]; ok {
			if k == KindCategorical && rule.Vocabulary == nil {
				return RuleSet{}, &SchemaMismatchError{
					Component: "fields",
					Reason:    fmt.Sprintf("feature %q is categorical but has no encoding", name),
					Expected:  schema.Names(),
				}
			}
			if rule.Vocabulary == nil || k == KindCategorical {
				rule.Kind = k
			}
		}
		rules[i] = rule
	}
	return RuleSet{schema: schema, rules: rules}, nil
}

// Schema returns the schema the rules were built for.
func (rs RuleSet) Schema() FeatureSchema { return rs.schema }

// Rules returns the rules in schema order.
func (rs RuleSet) Rules() []FeatureRule {
	out := make([]FeatureRule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// Rule returns the rule for the named column.
func (rs RuleSet) Rule(name string) (FeatureRule, bool) {
	i, ok := rs.schema.Index(name)
	if !ok {
		return FeatureRule{}, false
	}
	return rs.rules[i], true
}

func copyVocabulary(vocab map[string]int) map[string]int {
	out := make(map[string]int, len(vocab))
	for k, v := range vocab {
		out[k] = v
	}
	return out
}
