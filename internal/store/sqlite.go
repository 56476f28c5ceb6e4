package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeFormat is fixed-width UTC so stored timestamps compare lexically.
const timeFormat = "2006-01-02T15:04:05.000000Z07:00"

const memoryPath = ":memory:"

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, zero CGO).
type SQLiteStore struct {
	db   *sql.DB
	feed *Feed
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
// The database file is created with 0600 permissions and its parent directory with 0700.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != memoryPath {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}

		// Pre-create the file with restrictive permissions if it doesn't exist
		if _, err := os.Stat(path); os.IsNotExist(err) {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
			if err != nil {
				return nil, fmt.Errorf("creating database file: %w", err)
			}
			_ = f.Close()
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, feed: NewFeed()}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		slog.Info("applying migration", "version", i+1)
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM residents").Scan(&one); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}

// Subscribe returns a channel of transport_events mutations.
func (s *SQLiteStore) Subscribe() (<-chan Change, func()) {
	return s.feed.Subscribe()
}

// --- Residents ---

func (s *SQLiteStore) CreateResident(ctx context.Context, r *Resident) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `INSERT INTO residents (id, full_name, room_number, family_phone,
		dietary_notes, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.FullName, r.RoomNumber, r.FamilyPhone, r.DietaryNotes, boolToInt(r.IsActive),
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting resident: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetResident(ctx context.Context, id string) (*Resident, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, full_name, room_number, family_phone, dietary_notes,
		is_active, created_at, updated_at FROM residents WHERE id = ?`, id)
	r, err := scanResident(row)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLiteStore) ListActiveResidents(ctx context.Context) ([]Resident, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, full_name, room_number, family_phone, dietary_notes,
		is_active, created_at, updated_at FROM residents WHERE is_active = 1 ORDER BY room_number ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing residents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var residents []Resident
	for rows.Next() {
		r, err := scanResident(rows)
		if err != nil {
			return nil, err
		}
		residents = append(residents, *r)
	}
	return residents, rows.Err()
}

// --- Transport Events ---

const eventColumns = `e.id, e.resident_id, e.pickup_time, e.event_type, e.purpose, e.notes,
	e.family_phone_override, e.status, e.created_at, e.updated_at,
	r.full_name, r.room_number, r.family_phone`

func (s *SQLiteStore) CreateEvent(ctx context.Context, in NewEvent) (*Event, error) {
	eventType := in.EventType
	if eventType == "" {
		eventType = EventFamilyPickup
	}
	now := time.Now()
	e := &Event{
		ID:                  uuid.NewString(),
		ResidentID:          in.ResidentID,
		PickupTime:          in.PickupTime,
		EventType:           eventType,
		Purpose:             in.Purpose,
		Notes:               in.Notes,
		FamilyPhoneOverride: in.FamilyPhoneOverride,
		Status:              StatusScheduled,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO transport_events (id, resident_id, pickup_time, event_type,
		purpose, notes, family_phone_override, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ResidentID, formatTime(e.PickupTime), string(e.EventType), e.Purpose, e.Notes,
		e.FamilyPhoneOverride, string(e.Status), formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("inserting event: %w", err)
	}

	s.feed.Publish(Change{Op: OpInsert, EventID: e.ID})
	return e, nil
}

func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (*EventWithResident, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+`
		FROM transport_events e JOIN residents r ON r.id = e.resident_id
		WHERE e.id = ?`, id)
	return scanEvent(row)
}

// FetchTodaysEvents returns the non-cancelled events whose pickup falls on
// the calendar day of now, in now's location, ordered by pickup time.
func (s *SQLiteStore) FetchTodaysEvents(ctx context.Context, now time.Time) ([]EventWithResident, error) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)

	rows, err := s.db.QueryContext(ctx, `SELECT `+eventColumns+`
		FROM transport_events e JOIN residents r ON r.id = e.resident_id
		WHERE e.pickup_time >= ? AND e.pickup_time < ? AND e.status != ?
		ORDER BY e.pickup_time ASC`,
		formatTime(start), formatTime(end), string(StatusCancelled))
	if err != nil {
		return nil, fmt.Errorf("fetching today's events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []EventWithResident{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) UpdateEventStatus(ctx context.Context, id string, status Status) (*Event, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE transport_events SET status = ?, updated_at = ? WHERE id = ?",
		string(status), formatTime(time.Now()), id)
	if err != nil {
		return nil, fmt.Errorf("updating event status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("event %q: %w", id, ErrNotFound)
	}

	s.feed.Publish(Change{Op: OpUpdate, EventID: id})

	e, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	return &e.Event, nil
}

func (s *SQLiteStore) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM transport_events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event %q: %w", id, ErrNotFound)
	}

	s.feed.Publish(Change{Op: OpDelete, EventID: id})
	return nil
}

// ResetEvents deletes every transport event. Audit entries are kept.
func (s *SQLiteStore) ResetEvents(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM transport_events")
	if err != nil {
		return 0, fmt.Errorf("resetting events: %w", err)
	}
	n, _ := res.RowsAffected()

	s.feed.Publish(Change{Op: OpReset})
	return n, nil
}

// --- Push Subscriptions ---

// UpsertSubscription stores s, replacing keys and audience of an existing
// subscription with the same endpoint.
func (s *SQLiteStore) UpsertSubscription(ctx context.Context, sub *Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	audience := sub.Audience
	if audience == AudienceAll {
		audience = AudienceFloor
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO push_subscriptions (id, endpoint, p256dh, auth, view_type, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET
			p256dh = excluded.p256dh,
			auth = excluded.auth,
			view_type = excluded.view_type,
			user_agent = excluded.user_agent`,
		sub.ID, sub.Endpoint, sub.P256dh, sub.Auth, string(audience), sub.UserAgent, formatTime(sub.CreatedAt))
	if err != nil {
		return fmt.Errorf("upserting subscription: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM push_subscriptions WHERE endpoint = ?", endpoint); err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}
	return nil
}

// ListSubscriptions returns the subscriptions for audience; AudienceAll
// returns every subscription.
func (s *SQLiteStore) ListSubscriptions(ctx context.Context, audience Audience) ([]Subscription, error) {
	query := "SELECT id, endpoint, p256dh, auth, view_type, user_agent, created_at FROM push_subscriptions"
	var args []interface{}

	if audience != AudienceAll {
		query += " WHERE view_type = ?"
		args = append(args, string(audience))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []Subscription
	for rows.Next() {
		var sub Subscription
		var view, createdAt string
		if err := rows.Scan(&sub.ID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &view, &sub.UserAgent, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		sub.Audience = Audience(view)
		sub.CreatedAt = parseTime(createdAt)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// --- Audit Log ---

func (s *SQLiteStore) AppendNotification(ctx context.Context, e *NotificationEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO notifications_log (event_id, notification_type, recipient,
		message, status, error_message, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, string(e.Channel), e.Recipient, e.Message, string(e.Status), e.Error, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("appending notification: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) ListNotifications(ctx context.Context, f NotificationFilter) ([]NotificationEntry, error) {
	query := `SELECT id, event_id, notification_type, recipient, message, status, error_message, created_at
		FROM notifications_log WHERE 1=1`
	var args []interface{}

	if f.EventID != "" {
		query += " AND event_id = ?"
		args = append(args, f.EventID)
	}

	query += " ORDER BY created_at DESC, id DESC"

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []NotificationEntry
	for rows.Next() {
		var e NotificationEntry
		var channel, status, createdAt string
		if err := rows.Scan(&e.ID, &e.EventID, &channel, &e.Recipient, &e.Message, &status, &e.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		e.Channel = Channel(channel)
		e.Status = Outcome(status)
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func scanResident(row scanner) (*Resident, error) {
	var r Resident
	var active int
	var createdAt, updatedAt string

	err := row.Scan(&r.ID, &r.FullName, &r.RoomNumber, &r.FamilyPhone, &r.DietaryNotes,
		&active, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resident: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning resident: %w", err)
	}

	r.IsActive = active != 0
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

func scanEvent(row scanner) (*EventWithResident, error) {
	var e EventWithResident
	var eventType, status, pickup, createdAt, updatedAt string

	err := row.Scan(&e.ID, &e.ResidentID, &pickup, &eventType, &e.Purpose, &e.Notes,
		&e.FamilyPhoneOverride, &status, &createdAt, &updatedAt,
		&e.ResidentName, &e.RoomNumber, &e.ResidentPhone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning event: %w", err)
	}

	e.EventType = EventType(eventType)
	e.Status = Status(status)
	e.PickupTime = parseTime(pickup)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeFormat, s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
