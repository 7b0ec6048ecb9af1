package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/IgorGrieder/shortlink-analytics/internal/events"
	"github.com/IgorGrieder/shortlink-analytics/internal/infrastructure/logger"
	"github.com/IgorGrieder/shortlink-analytics/internal/processing/links"
	postgresStorage "github.com/IgorGrieder/shortlink-analytics/internal/storage/postgres"
)

const maxStoredErrorLen = 1000

type outboxStore interface {
	ClaimPending(ctx context.Context, now time.Time, limit int64, workerID string, lease time.Duration) ([]postgresStorage.OutboxClickEvent, error)
	MarkSent(ctx context.Context, id string, workerID string) error
	MarkRetry(ctx context.Context, id string, workerID string, lastError string, nextAttemptAt time.Time) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// relay moves claimed click outbox rows onto the Kafka topic. A row is marked
// sent only after the broker acknowledged it, so delivery is at least once.
type relay struct {
	store  outboxStore
	writer messageWriter
	cfg    workerConfig
	tracer trace.Tracer
	now    func() time.Time
}

func newRelay(store outboxStore, writer messageWriter, cfg workerConfig) *relay {
	return &relay{
		store:  store,
		writer: writer,
		cfg:    cfg,
		tracer: otel.Tracer("outbox-worker"),
		now:    time.Now,
	}
}

// run polls until ctx is cancelled. A full batch is followed immediately by
// the next claim; an empty one waits for the poll interval.
func (r *relay) run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.pollInterval)
	defer ticker.Stop()

	for {
		sent, err := r.publishBatch(ctx)
		if err != nil {
			logger.Error("failed to process outbox batch", zap.Error(err))
		}
		if sent > 0 && sent == r.cfg.batchSize && ctx.Err() == nil {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// publishBatch returns how many events were published and marked sent.
func (r *relay) publishBatch(ctx context.Context) (int, error) {
	batch, err := r.store.ClaimPending(ctx, r.now().UTC(), int64(r.cfg.batchSize), r.cfg.workerID, r.cfg.claimLease)
	if err != nil {
		return 0, fmt.Errorf("claim outbox events: %w", err)
	}

	sent := 0
	for _, ev := range batch {
		if r.publish(ctx, ev) {
			sent++
		}
	}
	return sent, nil
}

func (r *relay) publish(ctx context.Context, ev postgresStorage.OutboxClickEvent) bool {
	carrier := outboxEventCarrier(ev)
	parent := otel.GetTextMapPropagator().Extract(ctx, carrier)
	ctx, span := r.tracer.Start(parent, "kafka.publish.click_recorded",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", r.cfg.kafkaTopic),
			attribute.String("messaging.operation", "publish"),
			attribute.String("messaging.message.id", ev.ID),
			attribute.String("messaging.kafka.message_key", ev.LinkID),
		),
	)
	defer span.End()
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	value, err := json.Marshal(clickMessage(ev))
	if err == nil {
		writeCtx, cancel := context.WithTimeout(ctx, r.cfg.writeTimeout)
		err = r.writer.WriteMessages(writeCtx, kafka.Message{
			Key:     []byte(ev.LinkID),
			Value:   value,
			Time:    ev.ClickedAt.UTC(),
			Headers: carrierToKafkaHeaders(carrier),
		})
		cancel()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "kafka publish failed")
		r.scheduleRetry(ctx, ev, err)
		return false
	}

	if err := r.store.MarkSent(ctx, ev.ID, r.cfg.workerID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark sent failed")
		logger.Error("failed to mark outbox event as sent", zap.Error(err), zap.String("event_id", ev.ID))
		return false
	}
	return true
}

func (r *relay) scheduleRetry(ctx context.Context, ev postgresStorage.OutboxClickEvent, cause error) {
	delay := backoffDelay(r.cfg.retryBase, r.cfg.retryMax, ev.Attempts+1)
	if err := r.store.MarkRetry(ctx, ev.ID, r.cfg.workerID, truncateErr(cause), r.now().UTC().Add(delay)); err != nil {
		logger.Error("failed to mark outbox retry", zap.Error(err), zap.String("event_id", ev.ID))
	}
	logger.Warn("failed to publish outbox event",
		zap.Error(cause),
		zap.String("event_id", ev.ID),
		zap.String("link_id", ev.LinkID),
		zap.Int("attempts", ev.Attempts+1),
		zap.Duration("retry_in", delay),
	)
}

// clickMessage keys the event by its outbox row id so the consumer can
// deduplicate redeliveries.
func clickMessage(ev postgresStorage.OutboxClickEvent) events.ClickRecorded {
	return events.NewClickRecorded(ev.ID, links.ClickEvent{
		LinkID:    ev.LinkID,
		ClickedAt: ev.ClickedAt,
		IPAddress: ev.IPAddress,
		UserAgent: ev.UserAgent,
		Referer:   ev.Referer,
	})
}

// backoffDelay doubles base once per attempt, capped at max.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	delay := base
	for range attempt {
		if delay >= max/2 {
			return max
		}
		delay *= 2
	}
	return min(delay, max)
}

func truncateErr(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxStoredErrorLen {
		return msg[:maxStoredErrorLen]
	}
	return msg
}

func outboxEventCarrier(ev postgresStorage.OutboxClickEvent) propagation.MapCarrier {
	carrier := propagation.MapCarrier{}
	for key, value := range map[string]string{
		"traceparent": ev.TraceParent,
		"tracestate":  ev.TraceState,
		"baggage":     ev.Baggage,
	} {
		if v := strings.TrimSpace(value); v != "" {
			carrier.Set(key, v)
		}
	}
	return carrier
}

func carrierToKafkaHeaders(carrier propagation.MapCarrier) []kafka.Header {
	headers := make([]kafka.Header, 0, len(carrier))
	for _, key := range carrier.Keys() {
		if value := carrier.Get(key); strings.TrimSpace(value) != "" {
			headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
		}
	}
	return headers
}
