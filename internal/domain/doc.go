// Package domain turns submitted form values into the feature rows a fitted
// regression estimator expects.
//
// # Feature Schema
//
// Every estimator was fitted on a table with a fixed, ordered set of columns.
// That ordered list is the [FeatureSchema]. It is loaded once from the
// artifact bundle and never changes for the lifetime of the process. Every
// row handed to the imputer, scaler and model must carry exactly these
// columns in exactly this order, or the estimator silently reads the wrong
// feature at each position.
//
// # Encoding Table
//
// Categorical columns were label-encoded at training time:
//
//	Country:       Ghana=0, Kenya=1, Nigeria=2, ...
//	Disaster_Type: Drought=0, Earthquake=1, Epidemic=2, Flood=3, Storm=4
//
// The [EncodingTable] carries these code tables. Forms present the
// human-readable label, and alignment swaps it for the integer code. A label
// that is not in the table is an [EncodingError]. It is never mapped to a
// fallback code.
//
// # Rules
//
// Each schema column gets one [FeatureRule]:
//
//	numeric      finite number, passed through as float64
//	categorical  label (or an already-valid code) looked up in the vocabulary
//	passthrough  any scalar, empty text becomes NaN for the imputer to fill
//
// # Alignment
//
// [Align] and [RuleSet.Align] walk the schema in order. A column the input
// does not mention gets the fill value ([DefaultFill], 0). Input keys that
// are not schema columns are ignored. The output is positioned by schema
// order only, never by the order the input was assembled in.
package domain
