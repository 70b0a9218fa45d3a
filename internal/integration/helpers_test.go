//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/impact-predictor-service/internal/artifact"
	"github.com/couchcryptid/impact-predictor-service/internal/pipeline"
	"github.com/couchcryptid/impact-predictor-service/internal/predictor"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("impact-predictor-test"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start kafka container")

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// loadRequests reads the scoring request fixture produced by cmd/genmock.
func loadRequests(t *testing.T) []pipeline.ScoreRequest {
	t.Helper()

	data, err := os.ReadFile("../../data/mock/prediction_requests.json")
	require.NoError(t, err)

	var reqs []pipeline.ScoreRequest
	require.NoError(t, json.Unmarshal(data, &reqs))
	require.NotEmpty(t, reqs)
	return reqs
}

// loadResults reads the scoring result fixture keyed by request id.
func loadResults(t *testing.T) map[string]pipeline.ScoreResult {
	t.Helper()

	data, err := os.ReadFile("../../data/mock/prediction_results.json")
	require.NoError(t, err)

	var results []pipeline.ScoreResult
	require.NoError(t, json.Unmarshal(data, &results))

	byID := make(map[string]pipeline.ScoreResult, len(results))
	for _, r := range results {
		byID[r.ID] = r
	}
	return byID
}

func newScorer(t *testing.T) *pipeline.Scorer {
	t.Helper()

	bundles, err := artifact.Embedded()
	require.NoError(t, err)
	registry, err := predictor.Build(bundles, "", nil, discardLogger())
	require.NoError(t, err)
	return pipeline.NewScorer(registry, discardLogger())
}
