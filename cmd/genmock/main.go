// Command genmock reads sample records from CSV files and generates the
// scoring fixtures used by the pipeline and HTTP test suites. It scores the
// records with the real predictor so the recorded results match service
// behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -csv-dir data/mock \
//	  -requests-out data/mock/prediction_requests.json \
//	  -results-out data/mock/prediction_results.json
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/impact-predictor-service/internal/artifact"
	"github.com/couchcryptid/impact-predictor-service/internal/domain"
	"github.com/couchcryptid/impact-predictor-service/internal/pipeline"
	"github.com/couchcryptid/impact-predictor-service/internal/predictor"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvDir := flag.String("csv-dir", "", "directory containing <app>.csv sample records")
	requestsOut := flag.String("requests-out", "", "output path for the scoring request fixture")
	resultsOut := flag.String("results-out", "", "output path for the scoring result fixture")
	artifacts := flag.String("artifacts", "", "comma-separated bundle files (default: embedded bundles)")
	flag.Parse()

	if *csvDir == "" || *requestsOut == "" || *resultsOut == "" {
		flag.Usage()
		return errors.New("missing required flags: -csv-dir, -requests-out, -results-out")
	}

	// Set a fixed clock for reproducible PredictedAt timestamps.
	predictor.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC),
	))
	defer predictor.SetClock(nil)

	bundles, err := artifact.FromPaths(splitPaths(*artifacts))
	if err != nil {
		return fmt.Errorf("loading artifacts: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry, err := predictor.Build(bundles, "", nil, logger)
	if err != nil {
		return fmt.Errorf("building predictors: %w", err)
	}

	var requests []pipeline.ScoreRequest //nolint:prealloc // size depends on CSV file contents
	for _, p := range registry.All() {
		path := filepath.Join(*csvDir, p.Name()+".csv")
		reqs, err := processCSV(path, p)
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("%s: no sample file, skipping", p.Name())
			continue
		}
		if err != nil {
			return fmt.Errorf("processing %s: %w", filepath.Base(path), err)
		}
		requests = append(requests, reqs...)
		log.Printf("%s: %d records", p.Name(), len(reqs))
	}

	log.Printf("total: %d records", len(requests))

	results, rejected := score(registry, requests)

	if err := writeJSON(*requestsOut, requests); err != nil {
		return fmt.Errorf("writing request fixture: %w", err)
	}
	log.Printf("wrote request fixture: %s", *requestsOut)

	if err := writeJSON(*resultsOut, results); err != nil {
		return fmt.Errorf("writing result fixture: %w", err)
	}
	log.Printf("wrote result fixture: %s", *resultsOut)

	printStats(requests, results, rejected)
	return nil
}

// processCSV turns each data row into a request. Categorical columns stay
// text so labels reach the encoder; everything else is sent as a number when
// it parses. Blank cells are omitted.
func processCSV(path string, p *predictor.Predictor) ([]pipeline.ScoreRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, errors.New("no data rows")
	}

	header := rows[0]
	colIdx := map[string]int{}
	for i, h := range header {
		colIdx[strings.TrimSpace(h)] = i
	}
	if _, ok := colIdx["id"]; !ok {
		return nil, errors.New(`missing "id" column`)
	}

	reqs := make([]pipeline.ScoreRequest, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if len(row) < len(header) {
			continue
		}
		id := get(row, colIdx, "id")
		if id == "" {
			id = fmt.Sprintf("%s-%04d", p.Name(), n+1)
		}

		features := domain.RawInput{}
		for _, name := range p.Schema().Names() {
			cell := get(row, colIdx, name)
			if cell == "" {
				continue
			}
			rule, _ := p.Rules().Rule(name)
			if rule.Kind == domain.KindCategorical {
				features[name] = cell
				continue
			}
			if x, err := strconv.ParseFloat(cell, 64); err == nil {
				features[name] = x
			} else {
				features[name] = cell
			}
		}
		reqs = append(reqs, pipeline.ScoreRequest{ID: id, App: p.Name(), Features: features})
	}
	return reqs, nil
}

// score runs every request through the pipeline scorer. Rejected requests
// are left out of the results.
func score(registry *predictor.Registry, requests []pipeline.ScoreRequest) ([]json.RawMessage, map[string]int) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	scorer := pipeline.NewScorer(registry, logger)

	results := make([]json.RawMessage, 0, len(requests))
	rejected := map[string]int{}
	for _, req := range requests {
		payload, err := json.Marshal(req)
		if err != nil {
			log.Printf("%s: marshal request: %v", req.ID, err)
			rejected[predictor.OutcomeError]++
			continue
		}
		out, err := scorer.Transform(context.Background(), pipeline.RawEvent{Key: []byte(req.ID), Value: payload})
		if err != nil {
			log.Printf("%s: rejected: %v", req.ID, err)
			rejected[predictor.Outcome(err)]++
			continue
		}
		results = append(results, out.Value)
	}
	return results, rejected
}

func get(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
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

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(requests []pipeline.ScoreRequest, results []json.RawMessage, rejected map[string]int) {
	byApp := map[string]int{}
	for _, r := range requests {
		byApp[r.App]++
	}

	type summary struct {
		count    int
		min, max float64
	}
	scored := map[string]*summary{}
	for _, raw := range results {
		var r pipeline.ScoreResult
		if err := json.Unmarshal(raw, &r); err != nil {
			continue
		}
		s, ok := scored[r.App]
		if !ok {
			s = &summary{min: r.Value, max: r.Value}
			scored[r.App] = s
		}
		s.count++
		s.min = min(s.min, r.Value)
		s.max = max(s.max, r.Value)
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Requests: %d\n", len(requests))
	fmt.Printf("Results: %d\n", len(results))
	fmt.Printf("Rejected: encoding=%d, value=%d, other=%d\n",
		rejected[predictor.OutcomeEncodingError], rejected[predictor.OutcomeValueError],
		rejected[predictor.OutcomeError]+rejected[predictor.OutcomeSchemaMismatch])

	for app, n := range byApp {
		s := scored[app]
		if s == nil {
			fmt.Printf("  %s: %d requests, 0 scored\n", app, n)
			continue
		}
		fmt.Printf("  %s: %d requests, %d scored, prediction %s..%s\n",
			app, n, s.count, predictor.FormatCount(s.min), predictor.FormatCount(s.max))
	}
}
