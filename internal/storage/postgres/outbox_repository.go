package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/IgorGrieder/shortlink-analytics/internal/infrastructure/db"
	"github.com/IgorGrieder/shortlink-analytics/internal/processing/links"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	outboxStatusPending = "pending"

	ClickRecordedEventType = "click.recorded"

	enqueueOutboxSQL = `
INSERT INTO click_outbox (
    id, event_type, link_id, clicked_at, ip_address, user_agent, referer,
    traceparent, tracestate, baggage, status, next_attempt_at, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12, $12)`

	claimOutboxSQL = `
WITH next AS (
    SELECT id
    FROM click_outbox
    WHERE (status = 'pending' AND next_attempt_at <= $1)
       OR (status = 'processing' AND processing_expires_at <= $1)
    ORDER BY next_attempt_at
    LIMIT $4
    FOR UPDATE SKIP LOCKED
)
UPDATE click_outbox o
SET status = 'processing',
    processing_owner = $2,
    processing_expires_at = $3,
    updated_at = $1
FROM next
WHERE o.id = next.id
RETURNING o.id, o.link_id, o.clicked_at, o.ip_address, o.user_agent, o.referer,
          o.traceparent, o.tracestate, o.baggage, o.attempts`

	markOutboxSentSQL = `
UPDATE click_outbox
SET status = 'sent',
    sent_at = $3,
    updated_at = $3,
    processing_owner = NULL,
    processing_expires_at = NULL
WHERE id = $1 AND processing_owner = $2 AND status = 'processing'`

	markOutboxRetrySQL = `
UPDATE click_outbox
SET status = 'pending',
    attempts = attempts + 1,
    last_error = $3,
    next_attempt_at = $4,
    updated_at = $5,
    processing_owner = NULL,
    processing_expires_at = NULL
WHERE id = $1 AND processing_owner = $2 AND status = 'processing'`
)

var ErrOutboxEventNotOwned = errors.New("outbox event not owned by worker")

type ClickOutboxRepository struct {
	db  dbtx
	now func() time.Time
}

type OutboxClickEvent struct {
	ID          string
	LinkID      string
	ClickedAt   time.Time
	IPAddress   string
	UserAgent   string
	Referer     string
	TraceParent string
	TraceState  string
	Baggage     string
	Attempts    int
}

func NewClickOutboxRepository(p *db.Postgres) (*ClickOutboxRepository, error) {
	if p == nil || p.Pool == nil {
		return nil, errors.New("postgres pool is nil")
	}
	return &ClickOutboxRepository{db: p.Pool, now: time.Now}, nil
}

// EnqueueClick stores the click as a pending outbox row together with the
// caller's trace context. The row id becomes the event id downstream.
func (r *ClickOutboxRepository) EnqueueClick(ctx context.Context, click *links.ClickEvent) error {
	linkID, ok := parseID(click.LinkID)
	if !ok {
		return links.ErrNotFound
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	eventID := uuid.New()
	_, err := r.db.Exec(ctx, enqueueOutboxSQL,
		pgtype.UUID{Bytes: eventID, Valid: true},
		ClickRecordedEventType,
		linkID,
		toTimestamptz(click.ClickedAt),
		toNullableText(click.IPAddress),
		toNullableText(click.UserAgent),
		toNullableText(click.Referer),
		toNullableText(carrier.Get("traceparent")),
		toNullableText(carrier.Get("tracestate")),
		toNullableText(carrier.Get("baggage")),
		outboxStatusPending,
		toTimestamptz(r.now()),
	)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return links.ErrNotFound
		}
		return err
	}
	return nil
}

// ClaimPending leases up to limit due rows to workerID. Rows whose lease has
// expired are claimable again.
func (r *ClickOutboxRepository) ClaimPending(
	ctx context.Context,
	now time.Time,
	limit int64,
	workerID string,
	lease time.Duration,
) ([]OutboxClickEvent, error) {
	if limit <= 0 {
		limit = 1
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}
	workerID = strings.TrimSpace(workerID)
	if workerID == "" {
		return nil, errors.New("workerID must not be empty")
	}

	now = now.UTC()
	rows, err := r.db.Query(ctx, claimOutboxSQL,
		toTimestamptz(now),
		workerID,
		toTimestamptz(now.Add(lease)),
		limit,
	)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (OutboxClickEvent, error) {
		var (
			id          pgtype.UUID
			linkID      int64
			clickedAt   pgtype.Timestamptz
			ip, ua, ref pgtype.Text
			tp, ts, bg  pgtype.Text
			attempts    int32
		)
		if err := row.Scan(&id, &linkID, &clickedAt, &ip, &ua, &ref, &tp, &ts, &bg, &attempts); err != nil {
			return OutboxClickEvent{}, err
		}
		eventID, err := uuidStringFromPg(id)
		if err != nil {
			return OutboxClickEvent{}, err
		}
		return OutboxClickEvent{
			ID:          eventID,
			LinkID:      formatID(linkID),
			ClickedAt:   clickedAt.Time.UTC(),
			IPAddress:   nullableTextValue(ip),
			UserAgent:   nullableTextValue(ua),
			Referer:     nullableTextValue(ref),
			TraceParent: nullableTextValue(tp),
			TraceState:  nullableTextValue(ts),
			Baggage:     nullableTextValue(bg),
			Attempts:    int(attempts),
		}, nil
	})
}

func (r *ClickOutboxRepository) MarkSent(ctx context.Context, id string, workerID string) error {
	pgID, err := parsePgUUID(id)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, markOutboxSentSQL, pgID, workerID, toTimestamptz(r.now()))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOutboxEventNotOwned
	}
	return nil
}

func (r *ClickOutboxRepository) MarkRetry(
	ctx context.Context,
	id string,
	workerID string,
	lastError string,
	nextAttemptAt time.Time,
) error {
	pgID, err := parsePgUUID(id)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, markOutboxRetrySQL,
		pgID,
		workerID,
		toNullableText(lastError),
		toTimestamptz(nextAttemptAt),
		toTimestamptz(r.now()),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOutboxEventNotOwned
	}
	return nil
}

func parsePgUUID(raw string) (pgtype.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{
		Bytes: id,
		Valid: true,
	}, nil
}

func uuidStringFromPg(v pgtype.UUID) (string, error) {
	if !v.Valid {
		return "", errors.New("invalid outbox uuid")
	}
	id := uuid.UUID(v.Bytes)
	return id.String(), nil
}
