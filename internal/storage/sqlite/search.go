package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dxbevents/lifecycle/internal/types"
)

// titlePrefixLen bounds the normalized-title prefix used for substring
// candidate matching. Longer prefixes miss retitled duplicates.
const titlePrefixLen = 30

// venuePrefixLen bounds the normalized-venue prefix matched as a
// substring against both venue name and address, so "Dubai Marina
// Walk, Marina" still finds records stored as "Dubai Marina Walk".
const venuePrefixLen = 15

// SearchByTitle returns active events whose normalized title shares a
// prefix with the given title or contains any of the given keywords.
func (s *SQLiteStorage) SearchByTitle(ctx context.Context, title string, keywords []string, limit int) ([]*types.Event, error) {
	norm := Normalize(title)
	if norm == "" {
		return nil, nil
	}
	prefix := norm
	if len(prefix) > titlePrefixLen {
		prefix = prefix[:titlePrefixLen]
	}

	conditions := []string{`title_norm LIKE ? ESCAPE '\'`}
	args := []interface{}{likePattern(prefix)}
	for _, kw := range keywords {
		conditions = append(conditions, `title_norm LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(kw))
	}
	args = append(args, limit)

	query := `
		SELECT ` + eventColumns + ` FROM events
		WHERE status = 'active' AND (` + strings.Join(conditions, " OR ") + `)
		ORDER BY created_at ASC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search events by title: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

// SearchByVenueAndTime returns active events whose venue name or address
// contains a prefix of the given venue, starting within the given window
// of start.
func (s *SQLiteStorage) SearchByVenueAndTime(ctx context.Context, venueName string, start time.Time, window time.Duration, limit int) ([]*types.Event, error) {
	norm := Normalize(venueName)
	if norm == "" {
		return nil, nil
	}
	prefix := norm
	if len(prefix) > venuePrefixLen {
		prefix = prefix[:venuePrefixLen]
	}
	pattern := likePattern(prefix)
	query := `
		SELECT ` + eventColumns + ` FROM events
		WHERE status = 'active'
		AND (venue_norm LIKE ? ESCAPE '\' OR venue_address LIKE ? ESCAPE '\')
		AND start_date >= ? AND start_date <= ?
		ORDER BY created_at ASC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, pattern, pattern, start.Add(-window), start.Add(window), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search events by venue and time: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

// SearchByOrigin returns active events carrying the same upstream
// source identity.
func (s *SQLiteStorage) SearchByOrigin(ctx context.Context, sourceName, sourceID string, limit int) ([]*types.Event, error) {
	if sourceName == "" || sourceID == "" {
		return nil, nil
	}
	query := `
		SELECT ` + eventColumns + ` FROM events
		WHERE status = 'active' AND source_name = ? AND source_id = ?
		ORDER BY created_at ASC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, sourceName, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search events by origin: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

// likePattern escapes LIKE metacharacters and wraps the term in wildcards
func likePattern(term string) string {
	term = strings.ReplaceAll(term, `\`, `\\`)
	term = strings.ReplaceAll(term, "%", `\%`)
	term = strings.ReplaceAll(term, "_", `\_`)
	return "%" + term + "%"
}
