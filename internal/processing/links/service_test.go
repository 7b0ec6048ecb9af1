package links

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// --- Hand-written mocks ---

type mockLinkRepo struct {
	insertFn     func(ctx context.Context, link *Link) error
	findByCodeFn func(ctx context.Context, code string) (*Link, error)
	findByIDFn   func(ctx context.Context, id string) (*Link, error)
}

func (m *mockLinkRepo) Insert(ctx context.Context, link *Link) error {
	return m.insertFn(ctx, link)
}
func (m *mockLinkRepo) FindByCode(ctx context.Context, code string) (*Link, error) {
	if m.findByCodeFn == nil {
		return nil, ErrNotFound
	}
	return m.findByCodeFn(ctx, code)
}
func (m *mockLinkRepo) FindByID(ctx context.Context, id string) (*Link, error) {
	return m.findByIDFn(ctx, id)
}

type mockClickRepo struct {
	recordFn func(ctx context.Context, click *ClickEvent) error
	countFn  func(ctx context.Context, linkID string) (int64, error)
	recentFn func(ctx context.Context, linkID string, limit int) ([]ClickEvent, error)
	dailyFn  func(ctx context.Context, linkID string, from, to time.Time) ([]DailyCount, error)
	recorded []ClickEvent
}

func (m *mockClickRepo) Record(ctx context.Context, click *ClickEvent) error {
	if m.recordFn != nil {
		if err := m.recordFn(ctx, click); err != nil {
			return err
		}
	}
	m.recorded = append(m.recorded, *click)
	return nil
}
func (m *mockClickRepo) CountByLink(ctx context.Context, linkID string) (int64, error) {
	return m.countFn(ctx, linkID)
}
func (m *mockClickRepo) RecentByLink(ctx context.Context, linkID string, limit int) ([]ClickEvent, error) {
	return m.recentFn(ctx, linkID, limit)
}
func (m *mockClickRepo) DailyByLink(ctx context.Context, linkID string, from, to time.Time) ([]DailyCount, error) {
	return m.dailyFn(ctx, linkID, from, to)
}

type mockOutboxRepo struct {
	enqueueFn func(ctx context.Context, click *ClickEvent) error
}

func (m *mockOutboxRepo) EnqueueClick(ctx context.Context, click *ClickEvent) error {
	return m.enqueueFn(ctx, click)
}

type mockGenerator struct {
	codes []string
	idx   int
}

func (m *mockGenerator) Generate(int) (string, error) {
	if m.idx >= len(m.codes) {
		return "", errors.New("no more codes")
	}
	c := m.codes[m.idx]
	m.idx++
	return c, nil
}

var fixedNow = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

func newTestService(lr *mockLinkRepo, cr *mockClickRepo, or ClickOutboxRepository, gen CodeGenerator) *Service {
	svc := NewService(lr, cr, or, gen, 6)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func foundLink(code string) *mockLinkRepo {
	return &mockLinkRepo{
		findByCodeFn: func(_ context.Context, c string) (*Link, error) {
			if c == code {
				return &Link{ID: "1", ShortCode: code, OriginalURL: "https://example.com/a/b"}, nil
			}
			return nil, ErrNotFound
		},
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"valid https", "https://example.com/path", "https://example.com/path", false},
		{"valid http", "http://example.com", "http://example.com", false},
		{"keeps fragment", "https://example.com/page#section", "https://example.com/page#section", false},
		{"empty string", "", "", true},
		{"bad scheme ftp", "ftp://example.com", "", true},
		{"no scheme", "example.com", "", true},
		{"missing host", "https://", "", true},
		{"whitespace trimmed", "  https://example.com  ", "https://example.com", false},
		{"unparseable", "http://[::1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURL) {
					t.Errorf("NormalizeURL(%q) error = %v, want ErrInvalidURL", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDateOnly(t *testing.T) {
	input := time.Date(2025, 6, 15, 14, 30, 45, 123, time.UTC)
	got := dateOnly(input)
	want := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("dateOnly(%v) = %v, want %v", input, got, want)
	}
}

// --- Create ---

func TestCreateShortLink_HappyPath(t *testing.T) {
	lr := &mockLinkRepo{
		insertFn: func(_ context.Context, l *Link) error {
			l.ID = "42"
			return nil
		},
	}
	svc := newTestService(lr, &mockClickRepo{}, nil, &mockGenerator{codes: []string{"abc123"}})

	link, err := svc.CreateShortLink(context.Background(), CreateLinkInput{URL: "https://example.com/a/b"})
	if err != nil {
		t.Fatal(err)
	}
	if link.ShortCode != "abc123" {
		t.Errorf("got code %q, want %q", link.ShortCode, "abc123")
	}
	if link.OriginalURL != "https://example.com/a/b" {
		t.Errorf("got URL %q", link.OriginalURL)
	}
	if !link.CreatedAt.Equal(fixedNow) {
		t.Errorf("got createdAt %v, want %v", link.CreatedAt, fixedNow)
	}
	if link.ID != "42" {
		t.Errorf("got id %q, want store-assigned id", link.ID)
	}
}

func TestCreateShortLink_InvalidURL(t *testing.T) {
	svc := newTestService(&mockLinkRepo{}, &mockClickRepo{}, nil, &mockGenerator{})

	_, err := svc.CreateShortLink(context.Background(), CreateLinkInput{URL: "not-a-url"})
	if !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got: %v", err)
	}
}

func TestCreateShortLink_ExistingCodeSkipped(t *testing.T) {
	inserted := ""
	lr := &mockLinkRepo{
		findByCodeFn: func(_ context.Context, code string) (*Link, error) {
			if code == "taken1" {
				return &Link{ShortCode: code}, nil
			}
			return nil, ErrNotFound
		},
		insertFn: func(_ context.Context, l *Link) error {
			inserted = l.ShortCode
			return nil
		},
	}
	svc := newTestService(lr, &mockClickRepo{}, nil, &mockGenerator{codes: []string{"taken1", "free01"}})

	link, err := svc.CreateShortLink(context.Background(), CreateLinkInput{URL: "https://example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if link.ShortCode != "free01" || inserted != "free01" {
		t.Errorf("got code %q (inserted %q), want free01", link.ShortCode, inserted)
	}
}

func TestCreateShortLink_DuplicateInsertRetries(t *testing.T) {
	attempts := 0
	lr := &mockLinkRepo{
		insertFn: func(_ context.Context, _ *Link) error {
			attempts++
			if attempts <= 2 {
				return ErrDuplicateCode
			}
			return nil
		},
	}
	svc := newTestService(lr, &mockClickRepo{}, nil, &mockGenerator{codes: []string{"s1", "s2", "s3"}})

	link, err := svc.CreateShortLink(context.Background(), CreateLinkInput{URL: "https://example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if link.ShortCode != "s3" {
		t.Errorf("got code %q, want %q", link.ShortCode, "s3")
	}
	if attempts != 3 {
		t.Errorf("expected 3 insert attempts, got %d", attempts)
	}
}

func TestCreateShortLink_AllocationExhausted(t *testing.T) {
	lr := &mockLinkRepo{
		insertFn: func(_ context.Context, _ *Link) error { return ErrDuplicateCode },
	}
	codes := make([]string, DefaultMaxAllocationAttempts)
	for i := range codes {
		codes[i] = "dup"
	}
	gen := &mockGenerator{codes: codes}
	svc := newTestService(lr, &mockClickRepo{}, nil, gen)

	_, err := svc.CreateShortLink(context.Background(), CreateLinkInput{URL: "https://example.com"})
	if !errors.Is(err, ErrAllocationExhausted) {
		t.Fatalf("expected ErrAllocationExhausted, got: %v", err)
	}
	if errors.Is(err, ErrDuplicateCode) {
		t.Fatal("duplicate code must not escape allocation")
	}
	if gen.idx != DefaultMaxAllocationAttempts {
		t.Errorf("expected %d candidates, got %d", DefaultMaxAllocationAttempts, gen.idx)
	}
}

func TestCreateShortLink_ExistenceCheckBoundsAttempts(t *testing.T) {
	lr := &mockLinkRepo{
		findByCodeFn: func(_ context.Context, code string) (*Link, error) {
			return &Link{ShortCode: code}, nil
		},
		insertFn: func(_ context.Context, _ *Link) error {
			t.Fatal("insert must not be reached")
			return nil
		},
	}
	codes := make([]string, 20)
	for i := range codes {
		codes[i] = "same00"
	}
	gen := &mockGenerator{codes: codes}
	svc := NewServiceWithOptions(lr, &mockClickRepo{}, nil, gen, ServiceOptions{MaxAllocationAttempts: 3})

	_, err := svc.CreateShortLink(context.Background(), CreateLinkInput{URL: "https://example.com"})
	if !errors.Is(err, ErrAllocationExhausted) {
		t.Fatalf("expected ErrAllocationExhausted, got: %v", err)
	}
	if gen.idx != 3 {
		t.Errorf("expected 3 candidates, got %d", gen.idx)
	}
}

func TestCreateShortLink_StoreFailurePropagates(t *testing.T) {
	boom := errors.New("connection refused")
	lr := &mockLinkRepo{
		insertFn: func(_ context.Context, _ *Link) error { return boom },
	}
	svc := newTestService(lr, &mockClickRepo{}, nil, &mockGenerator{codes: []string{"abc123"}})

	_, err := svc.CreateShortLink(context.Background(), CreateLinkInput{URL: "https://example.com"})
	if !errors.Is(err, ErrStoreUnavailable) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got: %v", err)
	}
}

// --- Redirect ---

func TestResolveAndRecord_UnknownCode(t *testing.T) {
	cr := &mockClickRepo{}
	svc := newTestService(foundLink("abc123"), cr, nil, &mockGenerator{})

	_, err := svc.ResolveAndRecord(context.Background(), "zzz999", ClickMetadata{IPAddress: "1.2.3.4"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
	if len(cr.recorded) != 0 {
		t.Errorf("expected no click recorded, got %d", len(cr.recorded))
	}
}

func TestResolveAndRecord_EmptyCode(t *testing.T) {
	svc := newTestService(&mockLinkRepo{}, &mockClickRepo{}, nil, &mockGenerator{})

	_, err := svc.ResolveAndRecord(context.Background(), "  ", ClickMetadata{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestResolveAndRecord_RecordsClick(t *testing.T) {
	cr := &mockClickRepo{}
	svc := newTestService(foundLink("abc123"), cr, nil, &mockGenerator{})

	got, err := svc.ResolveAndRecord(context.Background(), "abc123", ClickMetadata{
		IPAddress: "1.2.3.4",
		UserAgent: "curl/8.0",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://example.com/a/b" {
		t.Errorf("got URL %q", got)
	}
	if len(cr.recorded) != 1 {
		t.Fatalf("expected 1 click, got %d", len(cr.recorded))
	}
	click := cr.recorded[0]
	if click.LinkID != "1" || click.IPAddress != "1.2.3.4" || click.UserAgent != "curl/8.0" || click.Referer != "" {
		t.Errorf("unexpected click %+v", click)
	}
	if !click.ClickedAt.Equal(fixedNow) {
		t.Errorf("got clickedAt %v, want %v", click.ClickedAt, fixedNow)
	}
}

func TestResolveAndRecord_MonotonicTimestamps(t *testing.T) {
	cr := &mockClickRepo{}
	svc := newTestService(foundLink("abc123"), cr, nil, &mockGenerator{})

	for i := 0; i < 3; i++ {
		if _, err := svc.ResolveAndRecord(context.Background(), "abc123", ClickMetadata{}); err != nil {
			t.Fatal(err)
		}
	}
	for i := 1; i < len(cr.recorded); i++ {
		if !cr.recorded[i].ClickedAt.After(cr.recorded[i-1].ClickedAt) {
			t.Errorf("click %d at %v is not after click %d at %v",
				i, cr.recorded[i].ClickedAt, i-1, cr.recorded[i-1].ClickedAt)
		}
	}
}

func TestResolveAndRecord_StoreFailureFailsRedirect(t *testing.T) {
	boom := errors.New("timeout")
	cr := &mockClickRepo{
		recordFn: func(_ context.Context, _ *ClickEvent) error { return boom },
	}
	svc := newTestService(foundLink("abc123"), cr, nil, &mockGenerator{})

	got, err := svc.ResolveAndRecord(context.Background(), "abc123", ClickMetadata{})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got: %v", err)
	}
	if got != "" {
		t.Errorf("expected no URL on failure, got %q", got)
	}
}

func TestResolveAndRecord_OutboxMode(t *testing.T) {
	var enqueued []ClickEvent
	or := &mockOutboxRepo{
		enqueueFn: func(_ context.Context, click *ClickEvent) error {
			enqueued = append(enqueued, *click)
			return nil
		},
	}
	cr := &mockClickRepo{}
	svc := newTestService(foundLink("abc123"), cr, or, &mockGenerator{})

	if _, err := svc.ResolveAndRecord(context.Background(), "abc123", ClickMetadata{Referer: "https://ref.example"}); err != nil {
		t.Fatal(err)
	}
	if len(enqueued) != 1 || enqueued[0].Referer != "https://ref.example" {
		t.Fatalf("expected one enqueued click, got %+v", enqueued)
	}
	if len(cr.recorded) != 0 {
		t.Error("outbox mode must not write the click log directly")
	}
}

// --- Stats ---

func TestGetStats_NotFound(t *testing.T) {
	svc := newTestService(foundLink("abc123"), &mockClickRepo{}, nil, &mockGenerator{})

	_, err := svc.GetStats(context.Background(), "doesnotexist")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestGetStats_UsesRecentLimit(t *testing.T) {
	cr := &mockClickRepo{
		countFn: func(_ context.Context, linkID string) (int64, error) { return 25, nil },
		recentFn: func(_ context.Context, _ string, limit int) ([]ClickEvent, error) {
			if limit != RecentClicksLimit {
				t.Errorf("got limit %d, want %d", limit, RecentClicksLimit)
			}
			return nil, nil
		},
	}
	svc := newTestService(foundLink("abc123"), cr, nil, &mockGenerator{})

	stats, err := svc.GetStats(context.Background(), "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if stats.ClickCount != 25 {
		t.Errorf("got count %d, want 25", stats.ClickCount)
	}
	if stats.RecentClicks == nil {
		t.Error("recent clicks should be an empty slice, not nil")
	}
	if stats.ShortCode != "abc123" || stats.OriginalURL != "https://example.com/a/b" {
		t.Errorf("unexpected link metadata %+v", stats)
	}
}

// --- Daily stats ---

func TestGetDailyStats_InvalidRange(t *testing.T) {
	svc := newTestService(foundLink("abc"), &mockClickRepo{}, nil, &mockGenerator{})

	from := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)

	_, err := svc.GetDailyStats(context.Background(), "abc", from, to)
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got: %v", err)
	}
}

func TestGetDailyStats_RangeLimit(t *testing.T) {
	cr := &mockClickRepo{
		dailyFn: func(context.Context, string, time.Time, time.Time) ([]DailyCount, error) {
			return nil, nil
		},
	}
	svc := newTestService(foundLink("abc"), cr, nil, &mockGenerator{})
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := svc.GetDailyStats(context.Background(), "abc", from, from.AddDate(0, 0, MaxDailyRangeDays-1))
	if err != nil {
		t.Fatalf("range of %d days: unexpected error: %v", MaxDailyRangeDays, err)
	}
	if len(got) != MaxDailyRangeDays {
		t.Fatalf("got %d entries, want %d", len(got), MaxDailyRangeDays)
	}

	_, err = svc.GetDailyStats(context.Background(), "abc", from, from.AddDate(0, 0, MaxDailyRangeDays))
	if !errors.Is(err, ErrRangeTooLarge) {
		t.Fatalf("range of %d days: expected ErrRangeTooLarge, got: %v", MaxDailyRangeDays+1, err)
	}

	_, err = svc.GetDailyStats(context.Background(), "abc",
		time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrRangeTooLarge) {
		t.Fatalf("expected ErrRangeTooLarge for a ten-millennia range, got: %v", err)
	}
}

func TestGetDailyStats_GapFilling(t *testing.T) {
	var gotFrom, gotTo time.Time
	cr := &mockClickRepo{
		dailyFn: func(_ context.Context, _ string, from, to time.Time) ([]DailyCount, error) {
			gotFrom, gotTo = from, to
			return []DailyCount{
				{Date: "2025-01-01", Count: 5},
				{Date: "2025-01-03", Count: 3},
			}, nil
		},
	}
	svc := newTestService(foundLink("abc"), cr, nil, &mockGenerator{})

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)

	counts, err := svc.GetDailyStats(context.Background(), "abc", from, to)
	if err != nil {
		t.Fatal(err)
	}

	if !gotFrom.Equal(from) || !gotTo.Equal(to.AddDate(0, 0, 1)) {
		t.Errorf("store queried with [%v, %v)", gotFrom, gotTo)
	}
	if len(counts) != 3 {
		t.Fatalf("expected 3 days, got %d", len(counts))
	}
	if counts[0].Date != "2025-01-01" || counts[0].Count != 5 {
		t.Errorf("day 0: got %+v", counts[0])
	}
	if counts[1].Date != "2025-01-02" || counts[1].Count != 0 {
		t.Errorf("day 1 (gap): got %+v", counts[1])
	}
	if counts[2].Date != "2025-01-03" || counts[2].Count != 3 {
		t.Errorf("day 2: got %+v", counts[2])
	}
}

func TestIsValidCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"aZ09xy", true},
		{"", false},
		{"abc-12", false},
		{"abc 12", false},
		{"ñandu1", false},
		{strings.Repeat("a", MaxCodeLength), true},
		{strings.Repeat("a", MaxCodeLength+1), false},
	}

	for _, tt := range tests {
		if got := IsValidCode(tt.code); got != tt.want {
			t.Errorf("IsValidCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
