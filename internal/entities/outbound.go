package entities

// Outbound send shapes accepted by the front door and handed to the
// connection layer. Mirrors what the session protocol can express.

type ButtonSpec struct {
	ID   string `json:"id" binding:"required"`
	Text string `json:"text" binding:"required"`
}

type ListRow struct {
	ID          string `json:"id" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

type ListSection struct {
	Title string    `json:"title"`
	Rows  []ListRow `json:"rows" binding:"required"`
}

// TemplateButton is one hydrated template button: quick_reply, url or call.
type TemplateButton struct {
	Type  string `json:"type"`
	Text  string `json:"text" binding:"required"`
	ID    string `json:"id"`
	URL   string `json:"url"`
	Phone string `json:"phone"`
}
