package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/IgorGrieder/shortlink-analytics/internal/processing/links"
)

type fakeApplier struct {
	seen      map[string]bool
	linkIDs   map[string]bool
	err       error
	clicks    []links.ClickEvent
	callCount int
}

func (f *fakeApplier) Process(_ context.Context, eventID string, click *links.ClickEvent) (bool, bool, error) {
	f.callCount++
	if f.err != nil {
		return false, false, f.err
	}
	if f.seen[eventID] {
		return true, false, nil
	}
	f.seen[eventID] = true
	if !f.linkIDs[click.LinkID] {
		return false, false, nil
	}
	f.clicks = append(f.clicks, *click)
	return false, true, nil
}

func newFakeApplier(linkIDs ...string) *fakeApplier {
	f := &fakeApplier{seen: map[string]bool{}, linkIDs: map[string]bool{}}
	for _, id := range linkIDs {
		f.linkIDs[id] = true
	}
	return f
}

func testConfig() config {
	return config{operationTTL: time.Second, consumeBackoff: time.Millisecond}
}

const validEvent = `{"eventId":"e-1","linkId":"7","occurredAt":"2026-03-01T10:00:00.5Z","ipAddress":"203.0.113.4"}`

func TestApply_AppliesOnce(t *testing.T) {
	applier := newFakeApplier("7")
	msg := kafka.Message{Value: []byte(validEvent)}

	require.NoError(t, newConsumer(nil, applier, testConfig()).apply(context.Background(), msg))
	require.NoError(t, newConsumer(nil, applier, testConfig()).apply(context.Background(), msg))

	require.Len(t, applier.clicks, 1)
	click := applier.clicks[0]
	assert.Equal(t, "7", click.LinkID)
	assert.Equal(t, "203.0.113.4", click.IPAddress)
	assert.True(t, time.Date(2026, 3, 1, 10, 0, 0, 500_000_000, time.UTC).Equal(click.ClickedAt))
}

func TestApply_SkipsWithoutRetry(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantCalls int
	}{
		{"malformed payload", `{"eventId":`, 0},
		{"missing link id", `{"eventId":"e-1","occurredAt":"2026-03-01T10:00:00Z"}`, 0},
		{"unknown link", `{"eventId":"e-2","linkId":"999","occurredAt":"2026-03-01T10:00:00Z"}`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applier := newFakeApplier("7")
			err := newConsumer(nil, applier, testConfig()).apply(context.Background(), kafka.Message{Value: []byte(tt.value)})

			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, applier.callCount)
			assert.Empty(t, applier.clicks)
		})
	}
}

func TestApply_StoreFailureIsRetried(t *testing.T) {
	applier := newFakeApplier("7")
	applier.err = errors.New("connection refused")

	err := newConsumer(nil, applier, testConfig()).apply(context.Background(), kafka.Message{Value: []byte(validEvent)})
	assert.Error(t, err)
}

func TestContextFromKafkaHeaders(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	ctx := contextFromKafkaHeaders(context.Background(), []kafka.Header{
		{Key: "Traceparent", Value: []byte("00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")},
		{Key: " ", Value: []byte("ignored")},
	})

	sc := trace.SpanContextFromContext(ctx)
	require.True(t, sc.IsValid())
	assert.True(t, sc.IsRemote())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", sc.TraceID().String())
}

type fakeReader struct {
	committed []kafka.Message
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.committed = append(f.committed, msgs...)
	return nil
}

func TestHandle_CommitsOnlyAfterApply(t *testing.T) {
	reader := &fakeReader{}
	applier := newFakeApplier("7")
	c := newConsumer(reader, applier, testConfig())

	msg := kafka.Message{Topic: "clicks.recorded", Offset: 7, Value: []byte(validEvent)}
	require.NoError(t, c.handle(context.Background(), msg))
	require.Len(t, reader.committed, 1)
	assert.Equal(t, int64(7), reader.committed[0].Offset)

	applier.err = errors.New("connection reset")
	require.Error(t, c.handle(context.Background(), kafka.Message{Offset: 8, Value: []byte(validEvent)}))
	assert.Len(t, reader.committed, 1)
}

func TestConsumerRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		newConsumer(&fakeReader{}, &fakeApplier{}, testConfig()).run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after cancel")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := config{
		postgresDSN:    "postgres://localhost/shortlinks",
		kafkaBrokers:   []string{"kafka:9092"},
		kafkaTopic:     "clicks.recorded",
		kafkaGroupID:   "click-analytics",
		operationTTL:   time.Second,
		consumeBackoff: time.Millisecond,
	}
	require.NoError(t, cfg.validate())

	cfg.kafkaBrokers = nil
	cfg.operationTTL = 0
	cfg.consumeBackoff = 0
	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
	assert.Contains(t, err.Error(), "KAFKA_CONSUMER_OPERATION_TIMEOUT")
	assert.Contains(t, err.Error(), "KAFKA_CONSUMER_BACKOFF")
}

// queueReader hands out each message once, like a group reader: a fetch after
// a failure returns the next message, not the failed one.
type queueReader struct {
	msgs      []kafka.Message
	next      int
	committed []int64
	onCommit  func(committed []int64)
}

func (q *queueReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if q.next < len(q.msgs) {
		msg := q.msgs[q.next]
		q.next++
		return msg, nil
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (q *queueReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		q.committed = append(q.committed, m.Offset)
	}
	if q.onCommit != nil {
		q.onCommit(q.committed)
	}
	return nil
}

type failingApplier struct {
	*fakeApplier
	failuresLeft int
}

func (f *failingApplier) Process(ctx context.Context, eventID string, click *links.ClickEvent) (bool, bool, error) {
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return false, false, errors.New("connection reset by peer")
	}
	return f.fakeApplier.Process(ctx, eventID, click)
}

func TestConsumerRun_RetriesFailedMessageBeforeFetchingNext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &queueReader{
		msgs: []kafka.Message{
			{Offset: 1, Value: []byte(`{"eventId":"e-1","linkId":"7","occurredAt":"2026-03-01T10:00:00Z"}`)},
			{Offset: 2, Value: []byte(`{"eventId":"e-2","linkId":"7","occurredAt":"2026-03-01T10:00:01Z"}`)},
		},
		onCommit: func(committed []int64) {
			if len(committed) == 2 {
				cancel()
			}
		},
	}
	applier := &failingApplier{fakeApplier: newFakeApplier("7"), failuresLeft: 2}

	done := make(chan struct{})
	go func() {
		newConsumer(reader, applier, testConfig()).run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not finish")
	}

	assert.Equal(t, []int64{1, 2}, reader.committed)
	require.Len(t, applier.clicks, 2)
	assert.True(t, applier.seen["e-1"])
	assert.True(t, applier.seen["e-2"])
}

func TestConsumerDeliver_StopsOnCancelWhileRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &fakeReader{}
	applier := newFakeApplier("7")
	applier.err = errors.New("database is down")

	cfg := testConfig()
	cfg.consumeBackoff = time.Hour
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	delivered := newConsumer(reader, applier, cfg).deliver(ctx, kafka.Message{Offset: 3, Value: []byte(validEvent)})
	assert.False(t, delivered)
	assert.Empty(t, reader.committed)
}
