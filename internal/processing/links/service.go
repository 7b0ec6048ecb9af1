package links

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("links")

type ServiceOptions struct {
	CodeLength            int
	MaxAllocationAttempts int
}

type Service struct {
	linkRepo  LinkRepository
	clickRepo ClickRepository
	outbox    ClickOutboxRepository
	allocator *Allocator
	clock     clickClock
	now       func() time.Time
}

// NewService wires the use cases. A nil outbox records clicks synchronously
// through clickRepo; otherwise redirects only enqueue them.
func NewService(linkRepo LinkRepository, clickRepo ClickRepository, outbox ClickOutboxRepository, gen CodeGenerator, codeLength int) *Service {
	return NewServiceWithOptions(linkRepo, clickRepo, outbox, gen, ServiceOptions{CodeLength: codeLength})
}

func NewServiceWithOptions(
	linkRepo LinkRepository,
	clickRepo ClickRepository,
	outbox ClickOutboxRepository,
	gen CodeGenerator,
	opts ServiceOptions,
) *Service {
	return &Service{
		linkRepo:  linkRepo,
		clickRepo: clickRepo,
		outbox:    outbox,
		allocator: NewAllocator(linkRepo, gen, opts.CodeLength, opts.MaxAllocationAttempts),
		now:       time.Now,
	}
}

func (s *Service) CreateShortLink(ctx context.Context, in CreateLinkInput) (*Link, error) {
	ctx, span := tracer.Start(ctx, "links.CreateShortLink")
	defer span.End()

	originalURL, err := NormalizeURL(in.URL)
	if err != nil {
		return nil, ErrInvalidURL
	}

	link := &Link{
		OriginalURL: originalURL,
		CreatedAt:   s.now().UTC().Truncate(time.Microsecond),
		ExpiresAt:   in.ExpiresAt,
		OwnerID:     strings.TrimSpace(in.OwnerID),
	}

	if err := s.allocator.Insert(ctx, link); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.String("link.short_code", link.ShortCode))
	linksCreatedTotal.Inc()
	return link, nil
}

// ResolveAndRecord returns the original URL for code after recording the visit.
// The click is written before returning; if that write fails the redirect fails.
func (s *Service) ResolveAndRecord(ctx context.Context, code string, meta ClickMetadata) (string, error) {
	ctx, span := tracer.Start(ctx, "links.ResolveAndRecord", trace.WithAttributes(
		attribute.String("link.short_code", code),
	))
	defer span.End()

	link, err := s.GetLink(ctx, code)
	if err != nil {
		return "", err
	}

	click := &ClickEvent{
		LinkID:    link.ID,
		ClickedAt: s.clock.Next(s.now()),
		IPAddress: strings.TrimSpace(meta.IPAddress),
		UserAgent: meta.UserAgent,
		Referer:   meta.Referer,
	}

	mode := "sync"
	if s.outbox != nil {
		mode = "outbox"
		err = s.outbox.EnqueueClick(ctx, click)
	} else {
		err = s.clickRepo.Record(ctx, click)
	}
	if err != nil {
		span.RecordError(err)
		return "", storeError(err)
	}

	clicksRecordedTotal.WithLabelValues(mode).Inc()
	return link.OriginalURL, nil
}

func (s *Service) GetLink(ctx context.Context, code string) (*Link, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrNotFound
	}

	link, err := s.linkRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeError(err)
	}

	return link, nil
}

func (s *Service) GetStats(ctx context.Context, code string) (*Stats, error) {
	ctx, span := tracer.Start(ctx, "links.GetStats")
	defer span.End()

	link, err := s.GetLink(ctx, code)
	if err != nil {
		return nil, err
	}

	count, err := s.clickRepo.CountByLink(ctx, link.ID)
	if err != nil {
		return nil, storeError(err)
	}

	recent, err := s.clickRepo.RecentByLink(ctx, link.ID, RecentClicksLimit)
	if err != nil {
		return nil, storeError(err)
	}
	if recent == nil {
		recent = []ClickEvent{}
	}

	return &Stats{
		ShortCode:    link.ShortCode,
		OriginalURL:  link.OriginalURL,
		ClickCount:   count,
		RecentClicks: recent,
	}, nil
}

// GetDailyStats returns one entry per UTC day in [from, to], zero-filled.
// The range covers at most MaxDailyRangeDays days.
func (s *Service) GetDailyStats(ctx context.Context, code string, from, to time.Time) ([]DailyCount, error) {
	from = dateOnly(from.UTC())
	to = dateOnly(to.UTC())
	if to.Before(from) {
		return nil, ErrInvalidRange
	}
	if to.After(from.AddDate(0, 0, MaxDailyRangeDays-1)) {
		return nil, ErrRangeTooLarge
	}

	link, err := s.GetLink(ctx, code)
	if err != nil {
		return nil, err
	}

	counts, err := s.clickRepo.DailyByLink(ctx, link.ID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, storeError(err)
	}

	byDate := make(map[string]int64, len(counts))
	for _, c := range counts {
		byDate[c.Date] = c.Count
	}

	out := make([]DailyCount, 0, int(to.Sub(from).Hours()/24)+1)
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		ds := day.Format(time.DateOnly)
		out = append(out, DailyCount{
			Date:  ds,
			Count: byDate[ds],
		})
	}

	return out, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
