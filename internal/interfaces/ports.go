package interfaces

import (
	"context"

	"wagate/internal/entities"
)

// MessageLog is the durable, ordered, capacity-bounded message store.
type MessageLog interface {
	Append(msg *entities.Message) (uint64, error)
	ReadForward(after uint64, max int) ([]entities.Message, error)
	ReadBackward(max int) ([]entities.Message, error)
	ReadByConversation(jid string, max int) ([]entities.Message, error)
	Info() entities.LogInfo
}

// ContactDirectory is the best-effort participant profile store.
type ContactDirectory interface {
	Upsert(update entities.ContactUpdate) error
	Query(q string, limit int) ([]entities.Contact, error)
	Count() (int, error)
}

// MessageDispatcher pushes one inbound message to all subscribers.
type MessageDispatcher interface {
	Dispatch(msg entities.Message)
}

// Messenger is the injected outbound capability of the connection layer.
type Messenger interface {
	SendText(ctx context.Context, to, text string) error
	SendImage(ctx context.Context, to, url, caption string) error
	SendButtons(ctx context.Context, to, text, footer string, buttons []entities.ButtonSpec) error
	SendList(ctx context.Context, to, text, title, buttonText, footer string, sections []entities.ListSection) error
	SendTemplate(ctx context.Context, to, text, footer string, buttons []entities.TemplateButton) error
	SendReaction(ctx context.Context, to, messageID, emoji string) error
	SendButtonClick(ctx context.Context, to, buttonID, displayText string) error
	SendListClick(ctx context.Context, to, rowID, title string) error
}
