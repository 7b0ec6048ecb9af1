// Package memory keeps links and clicks in process memory. It backs local
// development and tests; nothing survives a restart.
package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/IgorGrieder/shortlink-analytics/internal/processing/links"
)

type LinksRepository struct {
	mu     sync.RWMutex
	byCode map[string]*links.Link
	byID   map[string]*links.Link
	nextID int64
}

func NewLinksRepository() *LinksRepository {
	return &LinksRepository{
		byCode: make(map[string]*links.Link),
		byID:   make(map[string]*links.Link),
	}
}

func (r *LinksRepository) Insert(_ context.Context, link *links.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byCode[link.ShortCode]; exists {
		return links.ErrDuplicateCode
	}

	r.nextID++
	link.ID = strconv.FormatInt(r.nextID, 10)

	stored := *link
	r.byCode[stored.ShortCode] = &stored
	r.byID[stored.ID] = &stored
	return nil
}

func (r *LinksRepository) FindByCode(_ context.Context, code string) (*links.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.byCode[code]
	if !ok {
		return nil, links.ErrNotFound
	}
	out := *link
	return &out, nil
}

func (r *LinksRepository) FindByID(_ context.Context, id string) (*links.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.byID[id]
	if !ok {
		return nil, links.ErrNotFound
	}
	out := *link
	return &out, nil
}

func (r *LinksRepository) exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}
