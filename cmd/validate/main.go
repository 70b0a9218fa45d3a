// Command validate checks prediction bundles and the mock scoring fixtures
// before they ship: every bundle must parse, agree with its own schema, encode
// every vocabulary label, and produce a finite prediction. When fixture paths
// are given, the recorded results must match a fresh scoring run.
//
// Usage:
//
//	go run ./cmd/validate
//	go run ./cmd/validate \
//	  -artifacts bundles/disaster_impact.yaml,bundles/loan_amount.yaml \
//	  -csv-dir data/mock \
//	  -requests data/mock/prediction_requests.json \
//	  -results data/mock/prediction_results.json
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/impact-predictor-service/internal/artifact"
	"github.com/couchcryptid/impact-predictor-service/internal/domain"
	"github.com/couchcryptid/impact-predictor-service/internal/form"
	"github.com/couchcryptid/impact-predictor-service/internal/pipeline"
	"github.com/couchcryptid/impact-predictor-service/internal/predictor"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type fixturePaths struct {
	csvDir   string
	requests string
	results  string
}

func (f fixturePaths) enabled() bool {
	return f.csvDir != "" || f.requests != "" || f.results != ""
}

func main() {
	artifacts := flag.String("artifacts", "", "comma-separated bundle files (default: embedded bundles)")
	csvDir := flag.String("csv-dir", "", "directory containing <app>.csv source records")
	requests := flag.String("requests", "", "path to the scoring request fixture")
	results := flag.String("results", "", "path to the scoring result fixture")
	flag.Parse()

	fx := fixturePaths{csvDir: *csvDir, requests: *requests, results: *results}
	if fx.enabled() && (fx.csvDir == "" || fx.requests == "" || fx.results == "") {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(os.Stdout, splitPaths(*artifacts), fx))
}

func run(out io.Writer, paths []string, fx fixturePaths) int {
	// Fixed clock matching genmock so recorded timestamps compare equal.
	predictor.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC),
	))
	defer predictor.SetClock(nil)

	fmt.Fprintln(out, "=== Prediction Bundle Validation ===")
	fmt.Fprintln(out)

	bundles, err := artifact.FromPaths(paths)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load artifacts: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	phases := []*phase{validateSchemaConsistency(bundles, logger)}

	registry, err := predictor.Build(bundles, "", nil, logger)
	if err != nil {
		fmt.Fprintf(out, "FATAL: build predictors: %v\n", err)
		return 1
	}
	phases = append(phases,
		validateVocabularies(registry),
		validateSmokePredictions(registry),
	)

	if fx.enabled() {
		phases = append(phases, validateFixtures(registry, logger, fx))
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Apps: %s\n", strings.Join(registry.Names(), ", "))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Phases ──

func validateSchemaConsistency(bundles []*artifact.Bundle, logger *slog.Logger) *phase {
	p := &phase{name: "Schema consistency"}
	for _, b := range bundles {
		pred, err := predictor.New(b, nil, logger)
		if err != nil {
			p.errorf("%s: %v", b.Name, err)
			continue
		}
		fields := form.Fields(b, pred.Rules())
		if len(fields) != pred.Schema().Len() {
			p.errorf("%s: %d form fields for %d columns", b.Name, len(fields), pred.Schema().Len())
		}
		for name := range b.Fields {
			if !pred.Schema().Contains(name) {
				p.errorf("%s: field hint for unknown column %q", b.Name, name)
			}
		}
	}
	return p
}

func validateVocabularies(registry *predictor.Registry) *phase {
	p := &phase{name: "Category encodings round-trip"}
	for _, pred := range registry.All() {
		for _, rule := range pred.Rules().Rules() {
			if rule.Kind != domain.KindCategorical {
				continue
			}
			idx, _ := pred.Schema().Index(rule.Name)
			for _, label := range rule.Labels() {
				row, err := pred.Rules().Align(domain.RawInput{rule.Name: label}, domain.DefaultFill)
				if err != nil {
					p.errorf("%s: %s=%q: %v", pred.Name(), rule.Name, label, err)
					continue
				}
				if want := float64(rule.Vocabulary[label]); row[idx] != want {
					p.errorf("%s: %s=%q encoded as %v, want %v", pred.Name(), rule.Name, label, row[idx], want)
				}
			}
		}
	}
	return p
}

func validateSmokePredictions(registry *predictor.Registry) *phase {
	p := &phase{name: "Smoke predictions"}
	ctx := context.Background()
	for _, pred := range registry.All() {
		if _, err := pred.Predict(ctx, domain.RawInput{}); err != nil {
			p.errorf("%s: all-default input: %v", pred.Name(), err)
		}

		fields := form.Fields(pred.Bundle(), pred.Rules())
		defaults := make(map[string][]string, len(fields))
		for _, f := range fields {
			defaults[f.Name] = []string{f.Value}
		}
		raw, err := form.ParseValues(fields, defaults)
		if err != nil {
			p.errorf("%s: form defaults: %v", pred.Name(), err)
			continue
		}
		res, err := pred.Predict(ctx, raw)
		if err != nil {
			p.errorf("%s: form defaults: %v", pred.Name(), err)
			continue
		}
		if math.IsNaN(res.Value) || math.IsInf(res.Value, 0) {
			p.errorf("%s: form defaults predicted %v", pred.Name(), res.Value)
		}
	}
	return p
}

func validateFixtures(registry *predictor.Registry, logger *slog.Logger, fx fixturePaths) *phase {
	p := &phase{name: "Fixture parity"}

	requests, err := loadJSON[pipeline.ScoreRequest](fx.requests)
	if err != nil {
		p.errorf("load requests: %v", err)
		return p
	}
	results, err := loadJSON[json.RawMessage](fx.results)
	if err != nil {
		p.errorf("load results: %v", err)
		return p
	}

	csvRows := 0
	for _, name := range registry.Names() {
		n, err := countCSVRows(filepath.Join(fx.csvDir, name+".csv"))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			p.errorf("%s.csv: %v", name, err)
			continue
		}
		csvRows += n
	}
	if csvRows != len(requests) {
		p.errorf("request count: CSV=%d JSON=%d", csvRows, len(requests))
	}

	expected := make(map[string]json.RawMessage, len(results))
	for _, r := range results {
		var head struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(r, &head); err != nil {
			p.errorf("result: %v", err)
			continue
		}
		expected[head.ID] = r
	}

	scorer := pipeline.NewScorer(registry, logger)
	scored := 0
	for _, req := range requests {
		payload, err := json.Marshal(req)
		if err != nil {
			p.errorf("%s: marshal: %v", req.ID, err)
			continue
		}
		out, err := scorer.Transform(context.Background(), pipeline.RawEvent{Key: []byte(req.ID), Value: payload})
		want, ok := expected[req.ID]
		switch {
		case err != nil && ok:
			p.errorf("%s: recorded a result but scoring failed: %v", req.ID, err)
		case err != nil:
			// rejected requests are expected to have no result
		case !ok:
			p.errorf("%s: scored but no recorded result", req.ID)
		case !sameJSON(want, out.Value):
			p.errorf("%s: result differs: recorded %s, got %s", req.ID, compact(want), out.Value)
		default:
			scored++
		}
	}
	if scored != len(expected) {
		p.errorf("result count: recorded=%d matched=%d", len(expected), scored)
	}
	return p
}

// ── Helpers ──

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func countCSVRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return len(rows) - 1, nil
}

func sameJSON(a, b []byte) bool {
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return fmt.Sprint(va) == fmt.Sprint(vb)
}

func compact(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	data, _ := json.Marshal(v)
	return string(data)
}

func splitPaths(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
