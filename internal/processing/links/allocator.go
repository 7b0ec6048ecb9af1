package links

import (
	"context"
	"errors"
	"fmt"

	"github.com/IgorGrieder/shortlink-analytics/internal/infrastructure/logger"
	"go.uber.org/zap"
)

const DefaultMaxAllocationAttempts = 10

// Allocator hands out short codes that are free in the link store. The store's
// unique constraint is the authority; the existence check is a fast path.
type Allocator struct {
	repo        LinkRepository
	gen         CodeGenerator
	length      int
	maxAttempts int
}

func NewAllocator(repo LinkRepository, gen CodeGenerator, length, maxAttempts int) *Allocator {
	if length <= 0 {
		length = DefaultCodeLength
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAllocationAttempts
	}
	return &Allocator{
		repo:        repo,
		gen:         gen,
		length:      length,
		maxAttempts: maxAttempts,
	}
}

// AllocateUniqueCode returns a code that was absent from the store when checked.
func (a *Allocator) AllocateUniqueCode(ctx context.Context) (string, error) {
	code, _, err := a.nextFreeCode(ctx, a.maxAttempts)
	return code, err
}

// Insert persists link under a newly allocated code. A lost race against a
// concurrent allocator counts as a collision and is retried with a new code.
func (a *Allocator) Insert(ctx context.Context, link *Link) error {
	remaining := a.maxAttempts
	for remaining > 0 {
		code, used, err := a.nextFreeCode(ctx, remaining)
		if err != nil {
			return err
		}
		remaining -= used

		link.ShortCode = code
		err = a.repo.Insert(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateCode) {
			link.ShortCode = ""
			return storeError(err)
		}

		allocationCollisionsTotal.Inc()
		logger.Debug("short code taken on insert, retrying", zap.String("code", code))
	}

	link.ShortCode = ""
	return a.exhausted()
}

// nextFreeCode spends at most budget candidates and reports how many it used.
func (a *Allocator) nextFreeCode(ctx context.Context, budget int) (string, int, error) {
	for i := 0; i < budget; i++ {
		code, err := a.gen.Generate(a.length)
		if err != nil {
			return "", i + 1, fmt.Errorf("generate short code: %w", err)
		}

		_, err = a.repo.FindByCode(ctx, code)
		if errors.Is(err, ErrNotFound) {
			return code, i + 1, nil
		}
		if err != nil {
			return "", i + 1, storeError(err)
		}

		allocationCollisionsTotal.Inc()
		logger.Debug("short code already in use, retrying", zap.String("code", code))
	}

	return "", budget, a.exhausted()
}

func (a *Allocator) exhausted() error {
	allocationExhaustedTotal.Inc()
	logger.Error("short code allocation exhausted",
		zap.Int("max_attempts", a.maxAttempts),
		zap.Int("code_length", a.length),
	)
	return ErrAllocationExhausted
}

func storeError(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
