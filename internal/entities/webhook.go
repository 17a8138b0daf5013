package entities

import "time"

// Webhook is one registered subscriber endpoint. Unique by URL;
// re-registering a URL replaces its secret.
type Webhook struct {
	URL          string    `json:"url"`
	Secret       string    `json:"-"`
	RegisteredAt time.Time `json:"registeredAt"`
}
