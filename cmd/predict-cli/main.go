// Command predict-cli runs a prediction app from the terminal: it prompts for
// each feature, then prints the prediction or the failure diagnostics.
//
// Usage:
//
//	go run ./cmd/predict-cli -app disaster-impact
//	go run ./cmd/predict-cli -artifacts bundles/custom.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/couchcryptid/impact-predictor-service/internal/adapter/tui"
	"github.com/couchcryptid/impact-predictor-service/internal/artifact"
	"github.com/couchcryptid/impact-predictor-service/internal/form"
	"github.com/couchcryptid/impact-predictor-service/internal/predictor"
)

func main() {
	app := flag.String("app", "", "app to run (prompted when several are loaded)")
	artifacts := flag.String("artifacts", "", "comma-separated bundle files (default: embedded bundles)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, tui.NewSurveyDriver(os.Stdout), os.Stdout, *app, splitPaths(*artifacts)); err != nil {
		if errors.Is(err, tui.ErrAborted) || errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, driver tui.PromptDriver, out io.Writer, app string, paths []string) error {
	bundles, err := artifact.FromPaths(paths)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry, err := predictor.Build(bundles, "", nil, logger)
	if err != nil {
		return err
	}

	p, err := chooseApp(ctx, driver, registry, app)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n%s\n\n", p.Title(), p.Bundle().Description)

	fields := form.Fields(p.Bundle(), p.Rules())
	for {
		raw, err := tui.Collect(ctx, driver, fields)
		if err != nil {
			return err
		}

		res, err := p.Predict(ctx, raw)
		if err != nil {
			printDiagnostic(out, p.Diagnose(raw, err))
		} else {
			fmt.Fprintf(out, "\n%s: %s\n\n", p.Bundle().Target, res.Display)
		}

		again, err := driver.Confirm(ctx, tui.ConfirmConfig{Message: "Predict again?"})
		if err != nil || !again {
			return err
		}
	}
}

func chooseApp(ctx context.Context, driver tui.PromptDriver, registry *predictor.Registry, name string) (*predictor.Predictor, error) {
	if name != "" {
		p, ok := registry.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown app %q (loaded: %s)", name, strings.Join(registry.Names(), ", "))
		}
		return p, nil
	}

	all := registry.All()
	if len(all) == 1 {
		return all[0], nil
	}
	titles := make([]string, len(all))
	for i, p := range all {
		titles[i] = p.Title()
	}
	idx, err := driver.Select(ctx, tui.SelectConfig{Message: "Choose a predictor", Options: titles})
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(all) {
		return nil, fmt.Errorf("invalid app selection %d", idx)
	}
	return all[idx], nil
}

func printDiagnostic(out io.Writer, d predictor.Diagnostic) {
	fmt.Fprintln(out, "\nPrediction failed.")
	fmt.Fprintf(out, "  %s\n", d.Error)
	fmt.Fprintf(out, "Expected columns: %s\n", strings.Join(d.ExpectedColumns, ", "))
	fmt.Fprintf(out, "Current input shape: (%d, %d)\n\n", d.RowShape[0], d.RowShape[1])
}

func splitPaths(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
