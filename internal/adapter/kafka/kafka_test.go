package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/couchcryptid/glider-data-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	failures int
	calls    int
	batches  [][]kafkago.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.calls++
	if w.failures > 0 {
		w.failures--
		return errors.New("broker unavailable")
	}
	w.batches = append(w.batches, msgs)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func testPublisher(w *fakeWriter, batchSize int) *Publisher {
	p := newPublisher(w, batchSize, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
	}
	return p
}

func finalTable(t *testing.T, rows int) *domain.Table {
	t.Helper()
	tbl := domain.NewTable(rows)
	ts := make([]domain.Value, rows)
	doxy := make([]domain.Value, rows)
	src := make([]domain.Value, rows)
	for i := range rows {
		ts[i] = domain.Time(time.Date(2024, 6, 1, 10, i, 0, 0, time.UTC))
		if i%2 == 0 {
			doxy[i] = domain.Float(195.5 + float64(i))
		}
		src[i] = domain.String("sea074.67.pld1.raw.1")
	}
	require.NoError(t, tbl.AddColumn(&domain.Column{Name: "TIME", Unit: domain.UnitTimestamp, Values: ts}))
	require.NoError(t, tbl.AddColumn(&domain.Column{Name: "DOXY", Unit: domain.UnitMicromolPerKg, Values: doxy}))
	require.NoError(t, tbl.AddColumn(&domain.Column{Name: domain.ColSourceFile, Values: src}))
	return tbl
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC)
	tbl := finalTable(t, 2)

	msg, err := serializeToMessage(tbl, 0, "run-1", now)
	require.NoError(t, err)

	assert.Equal(t, []byte("run-1:0"), msg.Key)
	assert.JSONEq(t, `{"TIME":"2024-06-01T10:00:00Z","DOXY":195.5,"source_file":"sea074.67.pld1.raw.1"}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "run_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[0].Value)
	assert.Equal(t, "published_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)

	msg, err = serializeToMessage(tbl, 1, "run-1", now)
	require.NoError(t, err)
	var obs map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &obs))
	assert.NotContains(t, obs, "DOXY", "missing values are omitted")
}

func TestPublish_Batches(t *testing.T) {
	w := &fakeWriter{}
	n, err := testPublisher(w, 2).Publish(context.Background(), "run-1", finalTable(t, 5))
	require.NoError(t, err)

	assert.Equal(t, 5, n)
	require.Len(t, w.batches, 3)
	assert.Len(t, w.batches[0], 2)
	assert.Len(t, w.batches[2], 1)
	assert.Equal(t, []byte("run-1:4"), w.batches[2][0].Key)
}

func TestPublish_RetriesTransientFailures(t *testing.T) {
	w := &fakeWriter{failures: 2}
	n, err := testPublisher(w, 10).Publish(context.Background(), "run-1", finalTable(t, 3))
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.Equal(t, 3, w.calls)
}

func TestPublish_GivesUp(t *testing.T) {
	w := &fakeWriter{failures: 100}
	n, err := testPublisher(w, 2).Publish(context.Background(), "run-1", finalTable(t, 3))
	require.Error(t, err)

	assert.Equal(t, 0, n)
	assert.Equal(t, 4, w.calls, "one attempt plus three retries")
}

func TestPublish_EmptyTable(t *testing.T) {
	w := &fakeWriter{}
	n, err := testPublisher(w, 2).Publish(context.Background(), "run-1", domain.NewTable(0))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, w.calls)
}
