package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/impact-predictor-service/internal/observability"
	"github.com/couchcryptid/impact-predictor-service/internal/pipeline"
)

// --- mocks ---

type mockExtractor struct {
	events []pipeline.RawEvent
	done   atomic.Bool
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, batchSize int) ([]pipeline.RawEvent, error) {
	if m.done.Swap(true) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if len(m.events) > batchSize {
		return m.events[:batchSize], nil
	}
	return m.events, nil
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, raw pipeline.RawEvent) (pipeline.OutputEvent, error) {
	if m.err != nil {
		return pipeline.OutputEvent{}, m.err
	}
	return pipeline.OutputEvent{Key: raw.Key, Value: raw.Value}, nil
}

type mockLoader struct {
	mu       sync.Mutex
	loaded   []pipeline.OutputEvent
	failures int
}

func (m *mockLoader) LoadBatch(_ context.Context, events []pipeline.OutputEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("broker unavailable")
	}
	m.loaded = append(m.loaded, events...)
	return nil
}

func (m *mockLoader) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loaded)
}

func rawEvent(key string) pipeline.RawEvent {
	return pipeline.RawEvent{
		Key:   []byte(key),
		Value: []byte(`{"id":"` + key + `","features":{}}`),
		Topic: "prediction-requests",
	}
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	raw := rawEvent("req-1")

	ext := &mockExtractor{events: []pipeline.RawEvent{raw}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	require.Len(t, ldr.loaded, 1)
	assert.Equal(t, raw.Value, ldr.loaded[0].Value)
	assert.True(t, p.Ready())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MessagesConsumed))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MessagesProduced))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.PipelineRunning))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, ldr, slog.Default(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.False(t, p.Ready())
}

func TestPipeline_Run_TransformErrorSkipsAndCommits(t *testing.T) {
	var commits atomic.Int32
	raw := rawEvent("req-2")
	raw.Commit = func(context.Context) error {
		commits.Add(1)
		return nil
	}

	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(&mockExtractor{events: []pipeline.RawEvent{raw}}, &mockTransformer{err: errors.New("unknown label")}, ldr, slog.Default(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.False(t, p.Ready())
	assert.Equal(t, int32(1), commits.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TransformErrors))
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	var committed atomic.Bool
	raw := rawEvent("req-3")
	raw.Commit = func(_ context.Context) error {
		committed.Store(true)
		return nil
	}

	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{events: []pipeline.RawEvent{raw}}, &mockTransformer{}, ldr, slog.Default(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.True(t, committed.Load())
}

func TestPipeline_Run_LoadFailureDoesNotCommit(t *testing.T) {
	var committed atomic.Bool
	raw := rawEvent("req-4")
	raw.Commit = func(_ context.Context) error {
		committed.Store(true)
		return nil
	}

	ldr := &mockLoader{failures: 1}
	p := pipeline.New(&mockExtractor{events: []pipeline.RawEvent{raw}}, &mockTransformer{}, ldr, slog.Default(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 0, ldr.count())
	assert.False(t, committed.Load())
	assert.False(t, p.Ready())
}
