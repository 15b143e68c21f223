package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dxbevents/lifecycle/internal/types"
)

const eventColumns = `
	id, title, description, venue_name, venue_address, venue_area,
	venue_lat, venue_lng, start_date, end_date, pricing, tags, image_urls,
	booking_url, showtimes, source_name, source_id, status, source_priority,
	retention_days, delete_after, deleted_at, source_tracking, merged_from,
	created_at, last_updated`

// InsertEvent stores a new event. Returns ErrDuplicateKey when the
// normalized (title, venue, start) uniqueness backstop rejects it.
func (s *SQLiteStorage) InsertEvent(ctx context.Context, ev *types.Event) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	pricingJSON, tagsJSON, imagesJSON, showtimesJSON, trackingJSON, mergedJSON, err := marshalEventFields(ev)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO events (
			id, title, title_norm, description, venue_name, venue_norm,
			venue_address, venue_area, venue_lat, venue_lng, start_date,
			end_date, pricing, tags, image_urls, booking_url, showtimes,
			source_name, source_id, status, source_priority, retention_days,
			delete_after, deleted_at, source_tracking, merged_from,
			created_at, last_updated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		ev.ID, ev.Title, Normalize(ev.Title), ev.Description,
		ev.Venue.Name, Normalize(ev.Venue.Name), ev.Venue.Address, ev.Venue.Area,
		nullFloat(ev.Venue.Latitude), nullFloat(ev.Venue.Longitude),
		ev.StartDate, nullTime(ev.EndDate), pricingJSON, tagsJSON, imagesJSON,
		ev.BookingURL, showtimesJSON, ev.SourceName, ev.SourceID,
		string(ev.Status), string(ev.SourcePriority), ev.RetentionDays,
		nullTime(ev.DeleteAfter), nullTime(ev.DeletedAt), trackingJSON, mergedJSON,
		ev.CreatedAt, ev.LastUpdated,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert event %q: %w", ev.Title, err)
	}
	return nil
}

// GetEvent retrieves a single event by id
func (s *SQLiteStorage) GetEvent(ctx context.Context, id string) (*types.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}
	return ev, nil
}

// UpdateEvent rewrites the mutable fields of an existing event.
// Identity and created_at are never touched.
func (s *SQLiteStorage) UpdateEvent(ctx context.Context, ev *types.Event) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	pricingJSON, tagsJSON, imagesJSON, showtimesJSON, trackingJSON, mergedJSON, err := marshalEventFields(ev)
	if err != nil {
		return err
	}

	query := `
		UPDATE events SET
			title = ?, title_norm = ?, description = ?, venue_name = ?,
			venue_norm = ?, venue_address = ?, venue_area = ?, venue_lat = ?,
			venue_lng = ?, start_date = ?, end_date = ?, pricing = ?, tags = ?,
			image_urls = ?, booking_url = ?, showtimes = ?, status = ?,
			source_priority = ?, retention_days = ?, delete_after = ?,
			deleted_at = ?, source_tracking = ?, merged_from = ?, last_updated = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		ev.Title, Normalize(ev.Title), ev.Description,
		ev.Venue.Name, Normalize(ev.Venue.Name), ev.Venue.Address, ev.Venue.Area,
		nullFloat(ev.Venue.Latitude), nullFloat(ev.Venue.Longitude),
		ev.StartDate, nullTime(ev.EndDate), pricingJSON, tagsJSON, imagesJSON,
		ev.BookingURL, showtimesJSON, string(ev.Status), string(ev.SourcePriority),
		ev.RetentionDays, nullTime(ev.DeleteAfter), nullTime(ev.DeletedAt),
		trackingJSON, mergedJSON, ev.LastUpdated, ev.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event %s: %w", ev.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEvent physically removes an event
func (s *SQLiteStorage) DeleteEvent(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListEventsByStatus returns events in the given lifecycle state,
// oldest first, bounded by limit
func (s *SQLiteStorage) ListEventsByStatus(ctx context.Context, status types.Status, limit int) ([]*types.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE status = ? ORDER BY created_at ASC LIMIT ?`,
		string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events by status: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

// ListMissingRetention returns non-deleted events missing any retention
// field, oldest first
func (s *SQLiteStorage) ListMissingRetention(ctx context.Context, limit int) ([]*types.Event, error) {
	query := `
		SELECT ` + eventColumns + ` FROM events
		WHERE status = 'active'
		AND (source_priority = '' OR retention_days = 0
		     OR (delete_after IS NULL AND end_date IS NOT NULL))
		ORDER BY created_at ASC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events missing retention: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

// UpdateRetentionFields stamps the retention policy fields on one event
func (s *SQLiteStorage) UpdateRetentionFields(ctx context.Context, id string, tier types.Tier, retentionDays int, deleteAfter *time.Time, now time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET source_priority = ?, retention_days = ?, delete_after = ?, last_updated = ?
		WHERE id = ?
	`, string(tier), retentionDays, nullTime(deleteAfter), now, id)
	if err != nil {
		return fmt.Errorf("failed to update retention fields for %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// marshalEventFields JSON-encodes the list and struct fields stored as TEXT
func marshalEventFields(ev *types.Event) (pricing, tags, images, showtimes, tracking, merged interface{}, err error) {
	if ev.Pricing != nil {
		data, merr := json.Marshal(ev.Pricing)
		if merr != nil {
			return nil, nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal pricing: %w", merr)
		}
		pricing = string(data)
	}
	tags, err = marshalList(ev.Tags, "tags")
	if err != nil {
		return
	}
	images, err = marshalList(ev.ImageURLs, "image_urls")
	if err != nil {
		return
	}
	showtimes, err = marshalList(ev.Showtimes, "showtimes")
	if err != nil {
		return
	}
	trackingData, err := json.Marshal(orEmptyTracking(ev.SourceTracking))
	if err != nil {
		err = fmt.Errorf("failed to marshal source_tracking: %w", err)
		return
	}
	tracking = string(trackingData)
	merged, err = marshalList(ev.MergedFrom, "merged_from")
	return
}

func marshalList(list []string, field string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", field, err)
	}
	return string(data), nil
}

func orEmptyTracking(tracking []types.SourceRecord) []types.SourceRecord {
	if tracking == nil {
		return []types.SourceRecord{}
	}
	return tracking
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*types.Event, error) {
	var ev types.Event
	var endDate, deleteAfter, deletedAt sql.NullTime
	var lat, lng sql.NullFloat64
	var pricingJSON sql.NullString
	var tagsJSON, imagesJSON, showtimesJSON, trackingJSON, mergedJSON string
	var status, priority string

	err := row.Scan(
		&ev.ID, &ev.Title, &ev.Description, &ev.Venue.Name, &ev.Venue.Address,
		&ev.Venue.Area, &lat, &lng, &ev.StartDate, &endDate, &pricingJSON,
		&tagsJSON, &imagesJSON, &ev.BookingURL, &showtimesJSON,
		&ev.SourceName, &ev.SourceID, &status, &priority, &ev.RetentionDays,
		&deleteAfter, &deletedAt, &trackingJSON, &mergedJSON,
		&ev.CreatedAt, &ev.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	ev.Status = types.Status(status)
	ev.SourcePriority = types.Tier(priority)
	if endDate.Valid {
		t := endDate.Time
		ev.EndDate = &t
	}
	if deleteAfter.Valid {
		t := deleteAfter.Time
		ev.DeleteAfter = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		ev.DeletedAt = &t
	}
	if lat.Valid {
		v := lat.Float64
		ev.Venue.Latitude = &v
	}
	if lng.Valid {
		v := lng.Float64
		ev.Venue.Longitude = &v
	}
	if pricingJSON.Valid && pricingJSON.String != "" {
		var pricing types.Pricing
		if err := json.Unmarshal([]byte(pricingJSON.String), &pricing); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pricing for %s: %w", ev.ID, err)
		}
		ev.Pricing = &pricing
	}
	if err := json.Unmarshal([]byte(tagsJSON), &ev.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags for %s: %w", ev.ID, err)
	}
	if err := json.Unmarshal([]byte(imagesJSON), &ev.ImageURLs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal image_urls for %s: %w", ev.ID, err)
	}
	if err := json.Unmarshal([]byte(showtimesJSON), &ev.Showtimes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal showtimes for %s: %w", ev.ID, err)
	}
	if err := json.Unmarshal([]byte(trackingJSON), &ev.SourceTracking); err != nil {
		return nil, fmt.Errorf("failed to unmarshal source_tracking for %s: %w", ev.ID, err)
	}
	if err := json.Unmarshal([]byte(mergedJSON), &ev.MergedFrom); err != nil {
		return nil, fmt.Errorf("failed to unmarshal merged_from for %s: %w", ev.ID, err)
	}
	return &ev, nil
}

func scanEvents(rows *sql.Rows) ([]*types.Event, error) {
	var events []*types.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
