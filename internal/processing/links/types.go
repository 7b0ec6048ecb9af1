package links

import "time"

// RecentClicksLimit is how many clicks a stats response carries.
const RecentClicksLimit = 10

// MaxDailyRangeDays bounds the number of entries GetDailyStats returns.
const MaxDailyRangeDays = 366

type Link struct {
	ID          string
	ShortCode   string
	OriginalURL string
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	OwnerID     string
}

type ClickEvent struct {
	ID        string
	LinkID    string
	ClickedAt time.Time
	IPAddress string
	UserAgent string
	Referer   string
}

// ClickMetadata is what the web layer knows about a visitor. Every field may be empty.
type ClickMetadata struct {
	IPAddress string
	UserAgent string
	Referer   string
}

type Stats struct {
	ShortCode    string
	OriginalURL  string
	ClickCount   int64
	RecentClicks []ClickEvent
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type CreateLinkInput struct {
	URL       string
	ExpiresAt *time.Time
	OwnerID   string
}
