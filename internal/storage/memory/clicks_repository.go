package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/IgorGrieder/shortlink-analytics/internal/processing/links"
)

type ClicksRepository struct {
	links *LinksRepository

	mu     sync.RWMutex
	byLink map[string][]storedClick
	nextID int64
}

type storedClick struct {
	seq   int64
	click links.ClickEvent
}

// NewClicksRepository refuses clicks for links unknown to linkRepo, the way a
// foreign key would.
func NewClicksRepository(linkRepo *LinksRepository) *ClicksRepository {
	return &ClicksRepository{
		links:  linkRepo,
		byLink: make(map[string][]storedClick),
	}
}

func (r *ClicksRepository) Record(_ context.Context, click *links.ClickEvent) error {
	if r.links != nil && !r.links.exists(click.LinkID) {
		return links.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	click.ID = strconv.FormatInt(r.nextID, 10)
	click.ClickedAt = click.ClickedAt.UTC()

	r.byLink[click.LinkID] = append(r.byLink[click.LinkID], storedClick{seq: r.nextID, click: *click})
	return nil
}

func (r *ClicksRepository) CountByLink(_ context.Context, linkID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.byLink[linkID])), nil
}

func (r *ClicksRepository) RecentByLink(_ context.Context, linkID string, limit int) ([]links.ClickEvent, error) {
	r.mu.RLock()
	stored := make([]storedClick, len(r.byLink[linkID]))
	copy(stored, r.byLink[linkID])
	r.mu.RUnlock()

	sort.Slice(stored, func(i, j int) bool {
		a, b := stored[i], stored[j]
		if !a.click.ClickedAt.Equal(b.click.ClickedAt) {
			return a.click.ClickedAt.After(b.click.ClickedAt)
		}
		return a.seq > b.seq
	})

	if limit > 0 && len(stored) > limit {
		stored = stored[:limit]
	}

	out := make([]links.ClickEvent, 0, len(stored))
	for _, s := range stored {
		out = append(out, s.click)
	}
	return out, nil
}

func (r *ClicksRepository) DailyByLink(_ context.Context, linkID string, from, to time.Time) ([]links.DailyCount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int64)
	for _, s := range r.byLink[linkID] {
		at := s.click.ClickedAt
		if at.Before(from) || !at.Before(to) {
			continue
		}
		counts[at.UTC().Format(time.DateOnly)]++
	}

	out := make([]links.DailyCount, 0, len(counts))
	for date, count := range counts {
		out = append(out, links.DailyCount{Date: date, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}
