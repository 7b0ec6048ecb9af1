package postgres

import (
	"context"
	"errors"

	"github.com/IgorGrieder/shortlink-analytics/internal/infrastructure/db"
	"github.com/IgorGrieder/shortlink-analytics/internal/processing/links"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	insertLinkSQL = `
INSERT INTO links (short_code, original_url, created_at, expires_at, owner_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`

	selectLinkColumns = `SELECT id, short_code, original_url, created_at, expires_at, owner_id FROM links`
)

type LinksRepository struct {
	db dbtx
}

func NewLinksRepository(p *db.Postgres) (*LinksRepository, error) {
	if p == nil || p.Pool == nil {
		return nil, errors.New("postgres pool is nil")
	}
	return &LinksRepository{db: p.Pool}, nil
}

func (r *LinksRepository) Insert(ctx context.Context, link *links.Link) error {
	if link == nil {
		return errors.New("link is nil")
	}

	var id int64
	err := r.db.QueryRow(ctx, insertLinkSQL,
		link.ShortCode,
		link.OriginalURL,
		toTimestamptz(link.CreatedAt),
		toNullableTimestamptz(link.ExpiresAt),
		toNullableText(link.OwnerID),
	).Scan(&id)
	if err == nil {
		link.ID = formatID(id)
		return nil
	}

	if pgErrorCode(err) == pgUniqueViolation {
		return links.ErrDuplicateCode
	}
	return err
}

func (r *LinksRepository) FindByCode(ctx context.Context, code string) (*links.Link, error) {
	return r.findOne(ctx, selectLinkColumns+` WHERE short_code = $1`, code)
}

func (r *LinksRepository) FindByID(ctx context.Context, id string) (*links.Link, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, links.ErrNotFound
	}
	return r.findOne(ctx, selectLinkColumns+` WHERE id = $1`, n)
}

func (r *LinksRepository) findOne(ctx context.Context, query string, arg any) (*links.Link, error) {
	var (
		id        int64
		link      links.Link
		createdAt pgtype.Timestamptz
		expiresAt pgtype.Timestamptz
		ownerID   pgtype.Text
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(&id, &link.ShortCode, &link.OriginalURL, &createdAt, &expiresAt, &ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, links.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	link.ID = formatID(id)
	link.CreatedAt = createdAt.Time.UTC()
	link.OwnerID = nullableTextValue(ownerID)
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		link.ExpiresAt = &t
	}
	return &link, nil
}
