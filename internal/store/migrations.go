package store

// migrations are applied in order; each index+1 is the schema version.
var migrations = []string{
	`CREATE TABLE residents (
		id            TEXT PRIMARY KEY,
		full_name     TEXT NOT NULL,
		room_number   TEXT NOT NULL,
		family_phone  TEXT NOT NULL DEFAULT '',
		dietary_notes TEXT NOT NULL DEFAULT '',
		is_active     INTEGER NOT NULL DEFAULT 1,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	);

	CREATE TABLE transport_events (
		id                    TEXT PRIMARY KEY,
		resident_id           TEXT NOT NULL REFERENCES residents(id),
		pickup_time           TEXT NOT NULL,
		event_type            TEXT NOT NULL DEFAULT 'family_pickup',
		purpose               TEXT NOT NULL DEFAULT '',
		notes                 TEXT NOT NULL DEFAULT '',
		family_phone_override TEXT NOT NULL DEFAULT '',
		status                TEXT NOT NULL DEFAULT 'scheduled',
		created_at            TEXT NOT NULL,
		updated_at            TEXT NOT NULL
	);
	CREATE INDEX idx_transport_events_pickup ON transport_events(pickup_time);

	CREATE TABLE notifications_log (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id          TEXT NOT NULL,
		notification_type TEXT NOT NULL,
		recipient         TEXT NOT NULL,
		message           TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL,
		error_message     TEXT NOT NULL DEFAULT '',
		created_at        TEXT NOT NULL
	);
	CREATE INDEX idx_notifications_log_event ON notifications_log(event_id);`,

	`CREATE TABLE push_subscriptions (
		id         TEXT PRIMARY KEY,
		endpoint   TEXT NOT NULL UNIQUE,
		p256dh     TEXT NOT NULL,
		auth       TEXT NOT NULL,
		view_type  TEXT NOT NULL DEFAULT 'floor',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX idx_push_subscriptions_view_type ON push_subscriptions(view_type);`,
}
