package repository

import (
	"database/sql"
	"fmt"
	"time"

	"wagate/internal/entities"
)

// WebhookRepository persists subscriber endpoints in sqlite so registrations
// survive restart.
type WebhookRepository struct {
	db *sql.DB
}

func NewWebhookRepository(db *sql.DB) (*WebhookRepository, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS webhooks (
		url           TEXT PRIMARY KEY,
		secret        TEXT NOT NULL DEFAULT '',
		registered_at INTEGER NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhooks table: %w", err)
	}
	return &WebhookRepository{db: db}, nil
}

// Save registers or replaces a subscription. Returns true when the URL was
// not registered before.
func (r *WebhookRepository) Save(hook entities.Webhook) (bool, error) {
	var exists int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM webhooks WHERE url = ?", hook.URL).Scan(&exists); err != nil {
		return false, err
	}
	_, err := r.db.Exec(`INSERT INTO webhooks (url, secret, registered_at) VALUES (?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET secret = excluded.secret`,
		hook.URL, hook.Secret, hook.RegisteredAt.Unix())
	if err != nil {
		return false, fmt.Errorf("webhook save failed: %w", err)
	}
	return exists == 0, nil
}

// Delete removes a subscription. Returns true when the URL was registered.
func (r *WebhookRepository) Delete(url string) (bool, error) {
	res, err := r.db.Exec("DELETE FROM webhooks WHERE url = ?", url)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *WebhookRepository) List() ([]entities.Webhook, error) {
	rows, err := r.db.Query("SELECT url, secret, registered_at FROM webhooks ORDER BY registered_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entities.Webhook
	for rows.Next() {
		var hook entities.Webhook
		var at int64
		if err := rows.Scan(&hook.URL, &hook.Secret, &at); err != nil {
			return nil, err
		}
		hook.RegisteredAt = time.Unix(at, 0).UTC()
		out = append(out, hook)
	}
	return out, rows.Err()
}
