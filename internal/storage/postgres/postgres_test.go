package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IgorGrieder/shortlink-analytics/internal/processing/links"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakeDB struct {
	queryRow func(sql string, args ...any) pgx.Row
	exec     func(sql string, args ...any) (pgconn.CommandTag, error)
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return f.exec(sql, args...)
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return f.queryRow(sql, args...)
}

func errRow(err error) func(string, ...any) pgx.Row {
	return func(string, ...any) pgx.Row {
		return fakeRow{scan: func(...any) error { return err }}
	}
}

func TestLinksRepository_Insert(t *testing.T) {
	t.Run("assigns id", func(t *testing.T) {
		var gotArgs []any
		repo := &LinksRepository{db: &fakeDB{queryRow: func(_ string, args ...any) pgx.Row {
			gotArgs = args
			return fakeRow{scan: func(dest ...any) error {
				*dest[0].(*int64) = 42
				return nil
			}}
		}}}

		link := &links.Link{ShortCode: "abc123", OriginalURL: "https://example.com", CreatedAt: time.Now()}
		require.NoError(t, repo.Insert(context.Background(), link))
		assert.Equal(t, "42", link.ID)
		require.Len(t, gotArgs, 5)
		assert.Equal(t, "abc123", gotArgs[0])
		assert.False(t, toNullableText(link.OwnerID).Valid)
	})

	t.Run("unique violation maps to duplicate code", func(t *testing.T) {
		repo := &LinksRepository{db: &fakeDB{queryRow: errRow(&pgconn.PgError{Code: pgUniqueViolation})}}

		err := repo.Insert(context.Background(), &links.Link{ShortCode: "abc123"})
		assert.ErrorIs(t, err, links.ErrDuplicateCode)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		boom := errors.New("connection reset")
		repo := &LinksRepository{db: &fakeDB{queryRow: errRow(boom)}}

		err := repo.Insert(context.Background(), &links.Link{ShortCode: "abc123"})
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, links.ErrDuplicateCode)
	})
}

func TestLinksRepository_Find(t *testing.T) {
	t.Run("no rows maps to not found", func(t *testing.T) {
		repo := &LinksRepository{db: &fakeDB{queryRow: errRow(pgx.ErrNoRows)}}

		_, err := repo.FindByCode(context.Background(), "nope")
		assert.ErrorIs(t, err, links.ErrNotFound)
	})

	t.Run("non numeric id is not found without a query", func(t *testing.T) {
		repo := &LinksRepository{db: &fakeDB{queryRow: func(string, ...any) pgx.Row {
			t.Fatal("unexpected query")
			return nil
		}}}

		_, err := repo.FindByID(context.Background(), "507f1f77bcf86cd799439011")
		assert.ErrorIs(t, err, links.ErrNotFound)
	})
}

func TestClicksRepository_RecordUnknownLink(t *testing.T) {
	repo := &ClicksRepository{db: &fakeDB{queryRow: errRow(&pgconn.PgError{Code: pgForeignKeyViolation})}}

	err := repo.Record(context.Background(), &links.ClickEvent{LinkID: "7", ClickedAt: time.Now()})
	assert.ErrorIs(t, err, links.ErrNotFound)
}

func TestClicksRepository_RecordKeepsMetadataVerbatim(t *testing.T) {
	var gotArgs []any
	repo := &ClicksRepository{db: &fakeDB{queryRow: func(_ string, args ...any) pgx.Row {
		gotArgs = args
		return fakeRow{scan: func(dest ...any) error {
			*dest[0].(*int64) = 5
			return nil
		}}
	}}}

	click := &links.ClickEvent{
		LinkID:    "7",
		ClickedAt: time.Now(),
		UserAgent: "  curl/8.5.0 ",
		Referer:   " ",
	}
	require.NoError(t, repo.Record(context.Background(), click))
	assert.Equal(t, "5", click.ID)
	require.Len(t, gotArgs, 5)
	assert.False(t, gotArgs[2].(pgtype.Text).Valid)
	assert.Equal(t, pgtype.Text{String: "  curl/8.5.0 ", Valid: true}, gotArgs[3])
	assert.Equal(t, pgtype.Text{String: " ", Valid: true}, gotArgs[4])
}

func TestClickOutboxRepository_EnqueueClick(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	var gotArgs []any
	repo := &ClickOutboxRepository{
		db: &fakeDB{exec: func(_ string, args ...any) (pgconn.CommandTag, error) {
			gotArgs = args
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		}},
		now: func() time.Time { return now },
	}

	err := repo.EnqueueClick(context.Background(), &links.ClickEvent{
		LinkID:    "9",
		ClickedAt: now,
		IPAddress: "203.0.113.9",
		UserAgent: "Mozilla/5.0 ",
	})
	require.NoError(t, err)
	require.Len(t, gotArgs, 12)
	assert.Equal(t, pgtype.Text{String: "203.0.113.9", Valid: true}, gotArgs[4])
	assert.Equal(t, pgtype.Text{String: "Mozilla/5.0 ", Valid: true}, gotArgs[5])
	assert.False(t, gotArgs[6].(pgtype.Text).Valid)
	assert.Equal(t, ClickRecordedEventType, gotArgs[1])
	assert.Equal(t, int64(9), gotArgs[2])
	assert.Equal(t, outboxStatusPending, gotArgs[10])
}

func TestClickOutboxRepository_MarkSentNotOwned(t *testing.T) {
	repo := &ClickOutboxRepository{
		db: &fakeDB{exec: func(string, ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}},
		now: time.Now,
	}

	err := repo.MarkSent(context.Background(), uuid.NewString(), "worker-1")
	assert.ErrorIs(t, err, ErrOutboxEventNotOwned)

	err = repo.MarkSent(context.Background(), "not-a-uuid", "worker-1")
	assert.Error(t, err)
}

func TestParseID(t *testing.T) {
	n, ok := parseID(" 12 ")
	assert.True(t, ok)
	assert.Equal(t, int64(12), n)

	for _, bad := range []string{"", "0", "-3", "abc", "1.5"} {
		_, ok := parseID(bad)
		assert.False(t, ok, bad)
	}
}

func TestUUIDRoundTrip(t *testing.T) {
	id := uuid.NewString()
	pg, err := parsePgUUID(id)
	require.NoError(t, err)

	back, err := uuidStringFromPg(pg)
	require.NoError(t, err)
	assert.Equal(t, id, back)
}
