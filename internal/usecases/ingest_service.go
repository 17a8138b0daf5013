package usecases

import (
	"time"

	"github.com/rs/zerolog"

	"wagate/internal/entities"
	"wagate/internal/interfaces"
)

// IngestService turns batches of raw connection-layer events into appended
// canonical messages, contact observations and webhook dispatches.
//
// Failure isolation: a directory write error or a subscriber failure never
// stops a message from being logged; only a log append error is surfaced,
// since losing an append silently would break durability.
type IngestService struct {
	messageLog interfaces.MessageLog
	contacts   interfaces.ContactDirectory
	dispatcher interfaces.MessageDispatcher
	logger     zerolog.Logger
}

func NewIngestService(log interfaces.MessageLog, contacts interfaces.ContactDirectory, dispatcher interfaces.MessageDispatcher, logger zerolog.Logger) *IngestService {
	return &IngestService{
		messageLog: log,
		contacts:   contacts,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Ingest processes one batch of raw events in arrival order. Duplicate
// message IDs are collapsed within the batch only; cross-batch duplicates
// are appended as-is (the log is append-only, consumers dedupe by
// messageId). Self-authored messages are recorded but never dispatched.
func (s *IngestService) Ingest(batch []entities.RawEvent) error {
	seen := make(map[string]bool, len(batch))
	var firstErr error

	for _, raw := range batch {
		if raw.Content == nil {
			continue
		}
		if raw.MessageID != "" {
			if seen[raw.MessageID] {
				s.logger.Debug().Str("message_id", raw.MessageID).Msg("duplicate in batch, skipped")
				continue
			}
			seen[raw.MessageID] = true
		}
		if IsControlOnly(raw.Content) {
			s.logger.Debug().Str("message_id", raw.MessageID).Msg("control-only payload, skipped")
			continue
		}

		if !raw.FromMe && !raw.IsGroup {
			update := entities.ContactUpdate{JID: raw.SenderJID, NotifyName: raw.PushName}
			if err := s.contacts.Upsert(update); err != nil {
				s.logger.Warn().Err(err).Str("jid", raw.SenderJID).Msg("contact upsert failed")
			}
		}

		msg := Normalize(raw)
		msg.FromMe = raw.FromMe
		msg.ReceivedAt = time.Now().UTC()

		if _, err := s.messageLog.Append(&msg); err != nil {
			s.logger.Error().Err(err).Str("message_id", msg.MessageID).Msg("append failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.logger.Info().
			Uint64("seq", msg.Seq).
			Str("type", string(msg.Type)).
			Str("jid", msg.ChatJID).
			Bool("from_me", msg.FromMe).
			Msg("message ingested")

		if !msg.FromMe {
			// Fire and forget; ingestion never waits on subscribers.
			go s.dispatcher.Dispatch(msg)
		}
	}
	return firstErr
}

// IngestContact records one contact-update notification from the
// connection layer. Best effort: errors are logged, never surfaced.
func (s *IngestService) IngestContact(update entities.ContactUpdate) {
	if err := s.contacts.Upsert(update); err != nil {
		s.logger.Warn().Err(err).Str("jid", update.JID).Msg("contact update failed")
	}
}
