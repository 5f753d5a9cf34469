package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/couchcryptid/glider-data-etl/internal/config"
	"github.com/couchcryptid/glider-data-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer used by Publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces the rows of a final mission table to a Kafka topic,
// one JSON message per row.
type Publisher struct {
	writer     messageWriter
	batchSize  int
	logger     *slog.Logger
	newBackOff func() backoff.BackOff
}

// NewPublisher creates a Kafka producer for the configured topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.KafkaBatchSize,
	}
	return newPublisher(w, cfg.KafkaBatchSize, logger)
}

func newPublisher(w messageWriter, batchSize int, logger *slog.Logger) *Publisher {
	return &Publisher{
		writer:    w,
		batchSize: max(batchSize, 1),
		logger:    logger,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = 30 * time.Second
			return bo
		},
	}
}

// Publish writes every row of t in batches, retrying a failed batch with
// exponential backoff. It returns the number of rows published.
func (p *Publisher) Publish(ctx context.Context, runID string, t *domain.Table) (int, error) {
	published := 0
	publishedAt := domain.Now()
	for start := 0; start < t.Len(); start += p.batchSize {
		end := min(start+p.batchSize, t.Len())
		msgs := make([]kafkago.Message, 0, end-start)
		for i := start; i < end; i++ {
			msg, err := serializeToMessage(t, i, runID, publishedAt)
			if err != nil {
				return published, err
			}
			msgs = append(msgs, msg)
		}

		op := func() error {
			err := p.writer.WriteMessages(ctx, msgs...)
			if err != nil && ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if err != nil {
				p.logger.Warn("publish batch failed, retrying", "error", err, "rows", len(msgs), "offset", start)
			}
			return err
		}
		if err := backoff.Retry(op, backoff.WithContext(p.newBackOff(), ctx)); err != nil {
			return published, fmt.Errorf("publish rows %d-%d: %w", start, end-1, err)
		}
		published += len(msgs)
	}
	p.logger.Info("table published", "run_id", runID, "rows", published)
	return published, nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals row i of t into a Kafka message. Missing
// values are omitted; timestamps use RFC 3339.
func serializeToMessage(t *domain.Table, i int, runID string, publishedAt time.Time) (kafkago.Message, error) {
	obs := make(map[string]any, t.Width())
	for _, c := range t.Columns() {
		v := c.Values[i]
		switch {
		case v.IsFloat():
			f, _ := v.Float64()
			obs[c.Name] = f
		case v.IsTime():
			ts, _ := v.TimeValue()
			obs[c.Name] = ts.Format(time.RFC3339Nano)
		case v.IsString():
			s, _ := v.Str()
			obs[c.Name] = s
		}
	}
	data, err := json.Marshal(obs)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize row %d: %w", i, err)
	}
	return kafkago.Message{
		Key:   []byte(runID + ":" + strconv.Itoa(i)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "published_at", Value: []byte(publishedAt.Format(time.RFC3339))},
		},
	}, nil
}
