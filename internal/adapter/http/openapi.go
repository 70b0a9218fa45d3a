package http

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/couchcryptid/impact-predictor-service/internal/domain"
	"github.com/couchcryptid/impact-predictor-service/internal/predictor"
)

// OpenAPI describes the JSON API for the loaded apps. Each app contributes one
// request variant whose feature properties come from its rules.
func OpenAPI(registry *predictor.Registry) *openapi3.T {
	var variants []*openapi3.Schema
	for _, p := range registry.All() {
		variants = append(variants, requestSchema(p))
	}

	predictOp := openapi3.NewOperation()
	predictOp.OperationID = "predict"
	predictOp.Summary = "Align submitted features and run the app's model"
	predictOp.RequestBody = &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(openapi3.NewOneOfSchema(variants...)),
	}
	predictOp.Responses = openapi3.NewResponses(
		openapi3.WithStatus(http.StatusOK, jsonResponse("Prediction", resultSchema())),
		openapi3.WithStatus(http.StatusBadRequest, jsonResponse("Malformed request body", errorSchema())),
		openapi3.WithStatus(http.StatusNotFound, jsonResponse("Unknown app", errorSchema())),
		openapi3.WithStatus(http.StatusUnprocessableEntity, jsonResponse("Unknown category label or invalid value", diagnosticSchema())),
		openapi3.WithStatus(http.StatusInternalServerError, jsonResponse("Artifacts disagree with the feature schema", diagnosticSchema())),
	)

	appsOp := openapi3.NewOperation()
	appsOp.OperationID = "listApps"
	appsOp.Summary = "List loaded apps and their feature schemas"
	appsOp.Responses = openapi3.NewResponses(
		openapi3.WithStatus(http.StatusOK, jsonResponse("Loaded apps", openapi3.NewArraySchema().WithItems(appSchema()))),
	)

	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   "Impact Predictor API",
			Version: "1.0.0",
		},
		Paths: openapi3.NewPaths(
			openapi3.WithPath("/api/v1/predict", &openapi3.PathItem{Post: predictOp}),
			openapi3.WithPath("/api/v1/apps", &openapi3.PathItem{Get: appsOp}),
		),
	}
}

func requestSchema(p *predictor.Predictor) *openapi3.Schema {
	features := openapi3.NewObjectSchema()
	for _, rule := range p.Rules().Rules() {
		features.WithProperty(rule.Name, featureSchema(p, rule))
	}

	s := openapi3.NewObjectSchema().
		WithProperty("app", openapi3.NewStringSchema().WithEnum(p.Name())).
		WithProperty("features", features)
	s.Title = p.Title()
	s.Required = []string{"features"}
	return s
}

func featureSchema(p *predictor.Predictor, rule domain.FeatureRule) *openapi3.Schema {
	switch rule.Kind {
	case domain.KindCategorical:
		labels := rule.Labels()
		enum := make([]any, len(labels))
		for i, l := range labels {
			enum[i] = l
		}
		return openapi3.NewStringSchema().WithEnum(enum...)
	case domain.KindPassthrough:
		return openapi3.NewOneOfSchema(openapi3.NewFloat64Schema(), openapi3.NewStringSchema(), openapi3.NewBoolSchema())
	default:
		s := openapi3.NewFloat64Schema()
		hint := p.Bundle().Hint(rule.Name)
		if hint.Min != nil {
			s.WithMin(*hint.Min)
		}
		if hint.Max != nil {
			s.WithMax(*hint.Max)
		}
		if hint.Default != nil {
			s.WithDefault(*hint.Default)
		}
		s.Description = hint.Help
		return s
	}
}

func resultSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("app", openapi3.NewStringSchema()).
		WithProperty("prediction", openapi3.NewFloat64Schema()).
		WithProperty("display", openapi3.NewStringSchema()).
		WithProperty("row", openapi3.NewArraySchema().WithItems(openapi3.NewFloat64Schema().WithNullable())).
		WithProperty("predicted_at", openapi3.NewDateTimeSchema())
}

func diagnosticSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("app", openapi3.NewStringSchema()).
		WithProperty("outcome", openapi3.NewStringSchema().WithEnum(
			predictor.OutcomeEncodingError, predictor.OutcomeValueError,
			predictor.OutcomeSchemaMismatch, predictor.OutcomeError,
		)).
		WithProperty("error", openapi3.NewStringSchema()).
		WithProperty("expected_columns", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())).
		WithProperty("row_shape", openapi3.NewArraySchema().WithItems(openapi3.NewIntegerSchema()).WithMinItems(2).WithMaxItems(2))
}

func errorSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().WithProperty("error", openapi3.NewStringSchema())
}

func appSchema() *openapi3.Schema {
	feature := openapi3.NewObjectSchema().
		WithProperty("name", openapi3.NewStringSchema()).
		WithProperty("kind", openapi3.NewStringSchema().WithEnum("numeric", "categorical", "passthrough")).
		WithProperty("labels", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()))

	return openapi3.NewObjectSchema().
		WithProperty("name", openapi3.NewStringSchema()).
		WithProperty("title", openapi3.NewStringSchema()).
		WithProperty("description", openapi3.NewStringSchema()).
		WithProperty("target", openapi3.NewStringSchema()).
		WithProperty("model_name", openapi3.NewStringSchema()).
		WithProperty("default", openapi3.NewBoolSchema()).
		WithProperty("features", openapi3.NewArraySchema().WithItems(feature))
}

func jsonResponse(description string, schema *openapi3.Schema) *openapi3.ResponseRef {
	return &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription(description).WithJSONSchema(schema)}
}
