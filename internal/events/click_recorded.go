package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IgorGrieder/shortlink-analytics/internal/processing/links"
)

// ClickRecorded is published for every redirect click accepted by the API
// when clicks are recorded through the outbox.
type ClickRecorded struct {
	EventID    string `json:"eventId"`
	LinkID     string `json:"linkId"`
	OccurredAt string `json:"occurredAt"`
	IPAddress  string `json:"ipAddress,omitempty"`
	UserAgent  string `json:"userAgent,omitempty"`
	Referer    string `json:"referer,omitempty"`
}

// NewClickRecorded builds the message for an outbox row.
func NewClickRecorded(eventID string, click links.ClickEvent) ClickRecorded {
	return ClickRecorded{
		EventID:    eventID,
		LinkID:     click.LinkID,
		OccurredAt: click.ClickedAt.UTC().Format(time.RFC3339Nano),
		IPAddress:  click.IPAddress,
		UserAgent:  click.UserAgent,
		Referer:    click.Referer,
	}
}

// DecodeClickRecorded parses a message value and checks the required fields.
func DecodeClickRecorded(value []byte) (ClickRecorded, error) {
	var ev ClickRecorded
	if err := json.Unmarshal(value, &ev); err != nil {
		return ClickRecorded{}, fmt.Errorf("decode click event: %w", err)
	}
	ev.EventID = strings.TrimSpace(ev.EventID)
	ev.LinkID = strings.TrimSpace(ev.LinkID)
	if ev.EventID == "" {
		return ClickRecorded{}, errors.New("click event: eventId is required")
	}
	if ev.LinkID == "" {
		return ClickRecorded{}, errors.New("click event: linkId is required")
	}
	if _, err := ev.Time(); err != nil {
		return ClickRecorded{}, err
	}
	return ev, nil
}

// Time returns OccurredAt in UTC.
func (e ClickRecorded) Time() (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(e.OccurredAt))
	if err != nil {
		return time.Time{}, fmt.Errorf("click event: invalid occurredAt: %w", err)
	}
	return t.UTC(), nil
}

// Click converts the message back into the click it describes.
func (e ClickRecorded) Click() (links.ClickEvent, error) {
	at, err := e.Time()
	if err != nil {
		return links.ClickEvent{}, err
	}
	return links.ClickEvent{
		LinkID:    e.LinkID,
		ClickedAt: at,
		IPAddress: e.IPAddress,
		UserAgent: e.UserAgent,
		Referer:   e.Referer,
	}, nil
}
