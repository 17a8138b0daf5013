package repository

import (
	"database/sql"
	"fmt"
	"time"

	"wagate/internal/entities"
)

// queryHardCap bounds contact query responses regardless of the caller's
// requested limit.
const queryHardCap = 500

// ContactRepository persists the contact directory in sqlite. Upserts merge
// into the existing row: empty incoming fields keep the stored value.
type ContactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) (*ContactRepository, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS contacts (
		phone         TEXT PRIMARY KEY,
		display_name  TEXT NOT NULL DEFAULT '',
		notify_name   TEXT NOT NULL DEFAULT '',
		verified_name TEXT NOT NULL DEFAULT '',
		is_known      INTEGER NOT NULL DEFAULT 0,
		original_jid  TEXT NOT NULL DEFAULT '',
		last_seen     INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		return nil, fmt.Errorf("failed to create contacts table: %w", err)
	}
	return &ContactRepository{db: db}, nil
}

// Upsert merges one observation into the directory. Group JIDs are rejected
// as a no-op before any write.
func (r *ContactRepository) Upsert(update entities.ContactUpdate) error {
	phone, ok := entities.NormalizeContactID(update.JID)
	if !ok {
		return nil
	}

	_, err := r.db.Exec(`INSERT INTO contacts
		(phone, display_name, notify_name, verified_name, is_known, original_jid, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET
			display_name  = CASE WHEN excluded.display_name  != '' THEN excluded.display_name  ELSE contacts.display_name  END,
			notify_name   = CASE WHEN excluded.notify_name   != '' THEN excluded.notify_name   ELSE contacts.notify_name   END,
			verified_name = CASE WHEN excluded.verified_name != '' THEN excluded.verified_name ELSE contacts.verified_name END,
			is_known      = MAX(contacts.is_known, excluded.is_known),
			original_jid  = excluded.original_jid,
			last_seen     = excluded.last_seen`,
		phone, update.DisplayName, update.NotifyName, update.VerifiedName,
		boolToInt(update.IsKnown), update.JID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("contact upsert failed: %w", err)
	}
	return nil
}

// Query returns contacts whose phone, display name or notify name contains q
// (case-insensitive). An empty q matches everything. The result is capped at
// queryHardCap regardless of limit.
func (r *ContactRepository) Query(q string, limit int) ([]entities.Contact, error) {
	if limit <= 0 || limit > queryHardCap {
		limit = queryHardCap
	}
	pattern := "%" + q + "%"
	rows, err := r.db.Query(`SELECT phone, display_name, notify_name, verified_name, is_known, original_jid, last_seen
		FROM contacts
		WHERE phone LIKE ? OR lower(display_name) LIKE lower(?) OR lower(notify_name) LIKE lower(?)
		ORDER BY last_seen DESC
		LIMIT ?`, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entities.Contact
	for rows.Next() {
		var c entities.Contact
		var isKnown int
		var lastSeen int64
		if err := rows.Scan(&c.Phone, &c.DisplayName, &c.NotifyName, &c.VerifiedName, &isKnown, &c.OriginalJID, &lastSeen); err != nil {
			return nil, err
		}
		c.IsKnown = isKnown != 0
		c.LastSeen = time.Unix(lastSeen, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ContactRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM contacts").Scan(&n)
	return n, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
