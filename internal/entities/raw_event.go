package entities

import (
	"time"

	waProto "go.mau.fi/whatsmeow/proto/waE2E"
)

// RawEvent is one already-decoded protocol event as handed over by the
// connection layer. Content may be nil (receipts, presence echoes) and may
// wrap the real payload in one or more envelope variants.
type RawEvent struct {
	MessageID string
	ChatJID   string
	SenderJID string
	PushName  string
	IsGroup   bool
	FromMe    bool
	Timestamp time.Time
	Content   *waProto.Message
}
