package links

import (
	"sync"
	"time"
)

// clickClock hands out strictly increasing timestamps at microsecond
// resolution, which Postgres and the memory store keep exactly. Mongo keeps
// milliseconds, so clicks within one millisecond tie there and the ordering
// falls to the ObjectID tie-break in the recent-clicks query.
type clickClock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *clickClock) Next(now time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !now.After(c.last) {
		now = c.last.Add(time.Microsecond)
	}
	c.last = now
	return now
}
