package sqlite

const schema = `
-- Events collection
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL CHECK(length(title) <= 500),
    title_norm TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    venue_name TEXT NOT NULL DEFAULT '',
    venue_norm TEXT NOT NULL DEFAULT '',
    venue_address TEXT NOT NULL DEFAULT '',
    venue_area TEXT NOT NULL DEFAULT '',
    venue_lat REAL,
    venue_lng REAL,
    start_date DATETIME NOT NULL,
    end_date DATETIME,
    pricing TEXT,
    tags TEXT NOT NULL DEFAULT '[]',
    image_urls TEXT NOT NULL DEFAULT '[]',
    booking_url TEXT NOT NULL DEFAULT '',
    showtimes TEXT NOT NULL DEFAULT '[]',
    source_name TEXT NOT NULL,
    source_id TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'active',
    source_priority TEXT NOT NULL DEFAULT '',
    retention_days INTEGER NOT NULL DEFAULT 0,
    delete_after DATETIME,
    deleted_at DATETIME,
    source_tracking TEXT NOT NULL DEFAULT '[]',
    merged_from TEXT NOT NULL DEFAULT '[]',
    created_at DATETIME NOT NULL,
    last_updated DATETIME NOT NULL
);

-- Uniqueness backstop for the check-then-insert race: two concurrent
-- ingestions of the same normalized (title, venue, start) cannot both land.
CREATE UNIQUE INDEX IF NOT EXISTS idx_events_unique_event
    ON events(title_norm, venue_norm, start_date);

CREATE INDEX IF NOT EXISTS idx_events_status ON events(status);
CREATE INDEX IF NOT EXISTS idx_events_start_date ON events(start_date);
CREATE INDEX IF NOT EXISTS idx_events_source ON events(source_name, source_id);
CREATE INDEX IF NOT EXISTS idx_events_priority ON events(source_priority);
CREATE INDEX IF NOT EXISTS idx_events_delete_after ON events(delete_after);
CREATE INDEX IF NOT EXISTS idx_events_deleted_at ON events(deleted_at);

-- Duplicate decision audit log (append-only)
CREATE TABLE IF NOT EXISTS duplicate_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    new_title TEXT NOT NULL,
    new_source_name TEXT NOT NULL,
    new_source_id TEXT NOT NULL DEFAULT '',
    existing_id TEXT NOT NULL,
    existing_title TEXT NOT NULL,
    similarity_score REAL NOT NULL CHECK(similarity_score >= 0.0 AND similarity_score <= 1.0),
    action TEXT NOT NULL,
    detected_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_duplicate_logs_detected_at ON duplicate_logs(detected_at);
CREATE INDEX IF NOT EXISTS idx_duplicate_logs_source ON duplicate_logs(new_source_name);

-- Weekly statistics snapshots, one row per week start
CREATE TABLE IF NOT EXISTS weekly_stats (
    week_start DATETIME PRIMARY KEY,
    total_events INTEGER NOT NULL DEFAULT 0,
    high_events INTEGER NOT NULL DEFAULT 0,
    medium_events INTEGER NOT NULL DEFAULT 0,
    low_events INTEGER NOT NULL DEFAULT 0,
    recorded_at DATETIME NOT NULL
);
`
