package links

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound            = errors.New("link not found")
	ErrInvalidURL          = errors.New("invalid url")
	ErrDuplicateCode       = errors.New("short code already taken")
	ErrAllocationExhausted = errors.New("short code allocation exhausted")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrInvalidRange        = errors.New("invalid date range")
	ErrRangeTooLarge       = errors.New("date range too large")
)

// LinkRepository persists links. Insert must return ErrDuplicateCode when the
// short code already exists, and must enforce that atomically.
type LinkRepository interface {
	Insert(ctx context.Context, link *Link) error
	FindByCode(ctx context.Context, code string) (*Link, error)
	FindByID(ctx context.Context, id string) (*Link, error)
}

// ClickRepository is the append-only click log. RecentByLink orders by
// clickedAt descending, newest insert first on ties. DailyByLink counts clicks
// in [from, to) grouped by UTC day.
type ClickRepository interface {
	Record(ctx context.Context, click *ClickEvent) error
	CountByLink(ctx context.Context, linkID string) (int64, error)
	RecentByLink(ctx context.Context, linkID string, limit int) ([]ClickEvent, error)
	DailyByLink(ctx context.Context, linkID string, from, to time.Time) ([]DailyCount, error)
}

// ClickOutboxRepository durably queues a click for asynchronous application.
type ClickOutboxRepository interface {
	EnqueueClick(ctx context.Context, click *ClickEvent) error
}

type CodeGenerator interface {
	Generate(length int) (string, error)
}
