package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RawEvent is the loosely-typed record handed over by the ingestion
// collaborator. Only Title, StartDate, and SourceName are guaranteed;
// everything else is optional and absence is a typed zero value rather
// than a runtime existence probe.
type RawEvent struct {
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	VenueName    string     `json:"venue_name,omitempty"`
	VenueAddress string     `json:"venue_address,omitempty"`
	Area         string     `json:"area,omitempty"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	MinPrice     *float64   `json:"min_price,omitempty"`
	MaxPrice     *float64   `json:"max_price,omitempty"`
	Currency     string     `json:"currency,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	ImageURLs    []string   `json:"image_urls,omitempty"`
	BookingURL   string     `json:"booking_url,omitempty"`
	SourceName   string     `json:"source_name"`
	SourceID     string     `json:"source_id,omitempty"`
}

// Validate checks the guaranteed fields of a raw ingestion record
func (r *RawEvent) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if r.StartDate.IsZero() {
		return fmt.Errorf("start_date is required")
	}
	if strings.TrimSpace(r.SourceName) == "" {
		return fmt.Errorf("source_name is required")
	}
	return nil
}

// ToEvent normalizes a raw ingestion record into a new active Event.
// Retention fields are left unset; the retention registry stamps them
// once the duplicate resolver approves the record.
func (r *RawEvent) ToEvent(now time.Time) *Event {
	ev := &Event{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(r.Title),
		Description: r.Description,
		Venue: Venue{
			Name:    r.VenueName,
			Address: r.VenueAddress,
			Area:    r.Area,
		},
		StartDate:  r.StartDate,
		EndDate:    r.EndDate,
		Tags:       append([]string(nil), r.Tags...),
		ImageURLs:  append([]string(nil), r.ImageURLs...),
		BookingURL: r.BookingURL,
		SourceName: r.SourceName,
		SourceID:   r.SourceID,
		Status:     StatusActive,
		SourceTracking: []SourceRecord{{
			SourceName: r.SourceName,
			SourceID:   r.SourceID,
			FirstSeen:  now,
		}},
		CreatedAt:   now,
		LastUpdated: now,
	}
	if r.MinPrice != nil {
		maxPrice := *r.MinPrice
		if r.MaxPrice != nil && *r.MaxPrice > maxPrice {
			maxPrice = *r.MaxPrice
		}
		currency := r.Currency
		if currency == "" {
			currency = "AED"
		}
		ev.Pricing = &Pricing{
			BasePrice: *r.MinPrice,
			MaxPrice:  maxPrice,
			Currency:  currency,
		}
	}
	return ev
}
