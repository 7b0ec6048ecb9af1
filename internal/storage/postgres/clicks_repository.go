package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/IgorGrieder/shortlink-analytics/internal/infrastructure/db"
	"github.com/IgorGrieder/shortlink-analytics/internal/processing/links"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	insertClickSQL = `
INSERT INTO click_events (link_id, clicked_at, ip_address, user_agent, referer)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`

	countClicksSQL = `SELECT count(*) FROM click_events WHERE link_id = $1`

	recentClicksSQL = `
SELECT id, clicked_at, ip_address, user_agent, referer
FROM click_events
WHERE link_id = $1
ORDER BY clicked_at DESC, id DESC
LIMIT $2`

	dailyClicksSQL = `
SELECT to_char(clicked_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, count(*)
FROM click_events
WHERE link_id = $1 AND clicked_at >= $2 AND clicked_at < $3
GROUP BY day
ORDER BY day`
)

type ClicksRepository struct {
	db dbtx
}

func NewClicksRepository(p *db.Postgres) (*ClicksRepository, error) {
	if p == nil || p.Pool == nil {
		return nil, errors.New("postgres pool is nil")
	}
	return &ClicksRepository{db: p.Pool}, nil
}

func (r *ClicksRepository) Record(ctx context.Context, click *links.ClickEvent) error {
	return insertClick(ctx, r.db, click)
}

func insertClick(ctx context.Context, q dbtx, click *links.ClickEvent) error {
	linkID, ok := parseID(click.LinkID)
	if !ok {
		return links.ErrNotFound
	}

	var id int64
	err := q.QueryRow(ctx, insertClickSQL,
		linkID,
		toTimestamptz(click.ClickedAt),
		toNullableText(click.IPAddress),
		toNullableText(click.UserAgent),
		toNullableText(click.Referer),
	).Scan(&id)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return links.ErrNotFound
		}
		return err
	}

	click.ID = formatID(id)
	return nil
}

func (r *ClicksRepository) CountByLink(ctx context.Context, linkID string) (int64, error) {
	id, ok := parseID(linkID)
	if !ok {
		return 0, nil
	}

	var count int64
	if err := r.db.QueryRow(ctx, countClicksSQL, id).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ClicksRepository) RecentByLink(ctx context.Context, linkID string, limit int) ([]links.ClickEvent, error) {
	id, ok := parseID(linkID)
	if !ok || limit <= 0 {
		return []links.ClickEvent{}, nil
	}

	rows, err := r.db.Query(ctx, recentClicksSQL, id, limit)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (links.ClickEvent, error) {
		var (
			clickID   int64
			clickedAt pgtype.Timestamptz
			ip        pgtype.Text
			ua        pgtype.Text
			referer   pgtype.Text
		)
		if err := row.Scan(&clickID, &clickedAt, &ip, &ua, &referer); err != nil {
			return links.ClickEvent{}, err
		}
		return links.ClickEvent{
			ID:        formatID(clickID),
			LinkID:    linkID,
			ClickedAt: clickedAt.Time.UTC(),
			IPAddress: nullableTextValue(ip),
			UserAgent: nullableTextValue(ua),
			Referer:   nullableTextValue(referer),
		}, nil
	})
}

func (r *ClicksRepository) DailyByLink(ctx context.Context, linkID string, from, to time.Time) ([]links.DailyCount, error) {
	id, ok := parseID(linkID)
	if !ok {
		return []links.DailyCount{}, nil
	}

	rows, err := r.db.Query(ctx, dailyClicksSQL, id, toTimestamptz(from), toTimestamptz(to))
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (links.DailyCount, error) {
		var dc links.DailyCount
		err := row.Scan(&dc.Date, &dc.Count)
		return dc, err
	})
}
