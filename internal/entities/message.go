package entities

import "time"

// MessageType is the closed set of canonical message variants.
type MessageType string

const (
	TypeText                   MessageType = "text"
	TypeImage                  MessageType = "image"
	TypeVideo                  MessageType = "video"
	TypeAudio                  MessageType = "audio"
	TypeDocument               MessageType = "document"
	TypeButtonResponse         MessageType = "button_response"
	TypeListMessage            MessageType = "list_message"
	TypeListResponse           MessageType = "list_response"
	TypeInteractiveResponse    MessageType = "interactive_response"
	TypeTemplateButtonResponse MessageType = "template_button_response"
	TypeReaction               MessageType = "reaction"
	TypeLocation               MessageType = "location"
	TypeUnknown                MessageType = "unknown"
)

// Message is the canonical, wire-format-independent record of one chat event.
// Immutable once appended; Seq is assigned by the log and is the only
// reliable ordering signal (Timestamp is source-reported and may be skewed).
type Message struct {
	Seq        uint64                 `json:"seq"`
	MessageID  string                 `json:"messageId"`
	ChatJID    string                 `json:"jid"`
	Sender     string                 `json:"sender"`
	PushName   string                 `json:"pushName,omitempty"`
	IsGroup    bool                   `json:"isGroup"`
	FromMe     bool                   `json:"fromMe"`
	Type       MessageType            `json:"type"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Timestamp  int64                  `json:"timestamp"`
	ReceivedAt time.Time              `json:"receivedAt"`
}
