package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/IgorGrieder/shortlink-analytics/internal/infrastructure/db"
	"github.com/IgorGrieder/shortlink-analytics/internal/processing/links"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	insertProcessedEventSQL = `
INSERT INTO processed_events (event_id, processed_at)
VALUES ($1, $2)
ON CONFLICT (event_id) DO NOTHING`

	linkExistsSQL = `SELECT EXISTS (SELECT 1 FROM links WHERE id = $1)`
)

// ClickEventProcessor applies click.recorded events to click_events at most
// once per event id.
type ClickEventProcessor struct {
	pool *pgxpool.Pool
}

func NewClickEventProcessor(p *db.Postgres) (*ClickEventProcessor, error) {
	if p == nil || p.Pool == nil {
		return nil, errors.New("postgres pool is nil")
	}
	return &ClickEventProcessor{pool: p.Pool}, nil
}

// Process records click inside one transaction with the event id marker.
// alreadyProcessed reports a redelivery; applied is false when the link no
// longer exists, in which case the event is still marked processed.
func (p *ClickEventProcessor) Process(
	ctx context.Context,
	eventID string,
	click *links.ClickEvent,
) (alreadyProcessed bool, applied bool, err error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return false, false, errors.New("eventID must not be empty")
	}
	if click == nil || strings.TrimSpace(click.LinkID) == "" {
		return false, false, errors.New("click linkID must not be empty")
	}
	pgEventID, err := parsePgUUID(eventID)
	if err != nil {
		return false, false, err
	}

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, false, err
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, insertProcessedEventSQL, pgEventID, toTimestamptz(time.Now()))
	if err != nil {
		return false, false, err
	}
	if tag.RowsAffected() == 0 {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			return false, false, err
		}
		tx = nil
		return true, false, nil
	}

	linkID, ok := parseID(click.LinkID)
	exists := false
	if ok {
		if err := tx.QueryRow(ctx, linkExistsSQL, linkID).Scan(&exists); err != nil {
			return false, false, err
		}
	}
	if exists {
		if err := insertClick(ctx, tx, click); err != nil {
			return false, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, false, err
	}
	tx = nil
	return false, exists, nil
}
