//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/glider-data-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/glider-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/glider-data-etl/internal/adapter/ledger"
	"github.com/couchcryptid/glider-data-etl/internal/adapter/rawfile"
	"github.com/couchcryptid/glider-data-etl/internal/config"
	"github.com/couchcryptid/glider-data-etl/internal/domain"
	"github.com/couchcryptid/glider-data-etl/internal/observability"
	"github.com/couchcryptid/glider-data-etl/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testTopic = "glider-observations-test"

// publishedMessage holds a deserialized observation read from the topic.
type publishedMessage struct {
	Observation map[string]any
	Key         string
	Headers     map[string]string
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("glider-etl-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
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

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

// writeRawFiles writes three ten-row payload files numbered 1, 2 and 10.
func writeRawFiles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, seq := range []int{1, 2, 10} {
		var b strings.Builder
		b.WriteString("PLD_REALTIMECLOCK;NAV_LATITUDE;NAV_LONGITUDE;LEGATO_TEMPERATURE;LEGATO_CONDUCTIVITY;LEGATO_PRESSURE;LEGATO_CODA_DO;FLBBCD_CHL_SCALED;\n")
		for i := 0; i < 10; i++ {
			fmt.Fprintf(&b, "01/06/2024 00:%02d:%02d.000;2838.767;1530.0;14.2;43.1;%d.5;201.7;0.4;\n", seq, i, 5+i)
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("sea074.67.pld1.raw.%d", seq)), []byte(b.String()), 0o644))
	}
	return filepath.Join(dir, "*.pld1.raw.*")
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var obs map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &obs), "unmarshal observation")
	return publishedMessage{Observation: obs, Key: string(msg.Key), Headers: headers}
}

// TestPipelinePublishesFinalTable runs every stage over raw files and
// verifies the standard rows arrive on Kafka in merged order and the run is
// recorded in the ledger.
func TestPipelinePublishesFinalTable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		KafkaBrokers:   []string{broker},
		KafkaTopic:     testTopic,
		KafkaBatchSize: 7,
	}
	publisher := kafka.NewPublisher(cfg, logger)
	t.Cleanup(func() { publisher.Close() })

	runs, err := ledger.Open(ctx, filepath.Join(t.TempDir(), "runs.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { runs.Close() })

	files, err := rawfile.Discover([]string{writeRawFiles(t)}, rawfile.Window{})
	require.NoError(t, err)

	p := pipeline.New(
		rawfile.NewIngester(logger, true),
		csvfile.NewStore(t.TempDir(), logger),
		domain.NewCoordinateNormalizer(domain.HemisphereWest),
		domain.NewUnitConverter(nil),
		domain.NewStandardRenamer(),
		pipeline.Options{Prefix: "mission"},
		logger, observability.NewMetricsForTesting(),
		pipeline.WithLedger(runs), pipeline.WithPublisher(publisher),
	)

	run, err := p.Run(ctx, files)
	require.NoError(t, err)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  []string{broker},
		Topic:    testTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	t.Cleanup(func() { consumer.Close() })

	var fileOrder []float64
	for i := 0; i < 30; i++ {
		msg := readPublished(ctx, t, consumer)
		assert.Equal(t, fmt.Sprintf("%s:%d", run.ID, i), msg.Key)
		assert.Equal(t, run.ID, msg.Headers["run_id"])
		for _, name := range []string{"TIME", "LATITUDE", "LONGITUDE", "TEMP", "CNDC", "PRES", "DOXY", "CHLA"} {
			assert.Contains(t, msg.Observation, name, "message %d", i)
		}
		n := msg.Observation["file_number"].(float64)
		if len(fileOrder) == 0 || fileOrder[len(fileOrder)-1] != n {
			fileOrder = append(fileOrder, n)
		}
	}
	assert.Equal(t, []float64{1, 2, 10}, fileOrder)

	stored, err := runs.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunSucceeded, stored.Status)
	assert.Len(t, stored.Stages, 5)
}
