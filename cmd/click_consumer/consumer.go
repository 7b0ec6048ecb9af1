package main

import (
	"context"
	"errors"
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
)

// clickApplier writes a click at most once per event id.
type clickApplier interface {
	Process(ctx context.Context, eventID string, click *links.ClickEvent) (alreadyProcessed bool, applied bool, err error)
}

const maxConsumeBackoff = 30 * time.Second

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// consumer applies click.recorded messages and commits each offset only after
// the click is stored. A failed message is retried in place until it succeeds
// or ctx ends; the reader never moves past it.
type consumer struct {
	reader    messageReader
	processor clickApplier
	cfg       config
	tracer    trace.Tracer
}

func newConsumer(reader messageReader, processor clickApplier, cfg config) *consumer {
	return &consumer{
		reader:    reader,
		processor: processor,
		cfg:       cfg,
		tracer:    otel.Tracer("click-consumer"),
	}
}

func (c *consumer) run(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("failed to fetch kafka message", zap.Error(err))
			sleepCtx(ctx, c.cfg.consumeBackoff)
			continue
		}

		if !c.deliver(ctx, msg) {
			return
		}
	}
}

// deliver retries msg with a doubling backoff. It reports false only when ctx
// ends first.
func (c *consumer) deliver(ctx context.Context, msg kafka.Message) bool {
	backoff := c.cfg.consumeBackoff
	for attempt := 1; ; attempt++ {
		err := c.handle(ctx, msg)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		logger.Error("failed to handle click event, retrying",
			zap.Error(err),
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
		)
		if !sleepCtx(ctx, backoff) {
			return false
		}
		backoff = min(backoff*2, maxConsumeBackoff)
	}
}

func (c *consumer) handle(ctx context.Context, msg kafka.Message) error {
	ctx, span := c.tracer.Start(contextFromKafkaHeaders(ctx, msg.Headers), "kafka.consume.click_recorded",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.String("messaging.operation", "process"),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		),
	)
	defer span.End()

	if err := c.apply(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "process click event failed")
		return err
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit kafka offset failed")
		return err
	}
	return nil
}

// apply returns an error only for failures worth redelivering. Malformed
// payloads are logged and committed.
func (c *consumer) apply(ctx context.Context, msg kafka.Message) error {
	event, err := events.DecodeClickRecorded(msg.Value)
	if err != nil {
		logger.Warn("invalid click event payload, skipping",
			zap.Error(err),
			zap.ByteString("payload", msg.Value),
		)
		return nil
	}

	click, err := event.Click()
	if err != nil {
		logger.Warn("invalid click event timestamp, skipping", zap.Error(err), zap.String("event_id", event.EventID))
		return nil
	}

	opCtx, cancel := context.WithTimeout(ctx, c.cfg.operationTTL)
	defer cancel()

	duplicate, applied, err := c.processor.Process(opCtx, event.EventID, &click)
	if err != nil {
		return err
	}
	switch {
	case duplicate:
		logger.Debug("click event already applied", zap.String("event_id", event.EventID))
	case !applied:
		logger.Info("click event skipped for missing link",
			zap.String("event_id", event.EventID),
			zap.String("link_id", event.LinkID),
		)
	}
	return nil
}

// sleepCtx reports false when ctx ends before d elapses.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func contextFromKafkaHeaders(parent context.Context, headers []kafka.Header) context.Context {
	carrier := propagation.MapCarrier{}
	for _, header := range headers {
		if key := strings.ToLower(strings.TrimSpace(header.Key)); key != "" {
			carrier.Set(key, string(header.Value))
		}
	}
	return otel.GetTextMapPropagator().Extract(parent, carrier)
}
