package infrastructure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"wagate/internal/entities"
)

// EventSink receives normalized-input batches from the connection layer.
// Implemented by the ingestion pipeline.
type EventSink interface {
	Ingest(batch []entities.RawEvent) error
	IngestContact(update entities.ContactUpdate)
}

// WhatsAppClient wraps the whatsmeow session: login/QR lifecycle, inbound
// event conversion into RawEvents, and the outbound send capability.
type WhatsAppClient struct {
	Client *whatsmeow.Client
	logger zerolog.Logger

	sink EventSink

	qrLock sync.RWMutex
	qrCode string
}

func NewWhatsAppClient(dbPath string, logger zerolog.Logger) (*WhatsAppClient, error) {
	waLogger := waLog.Zerolog(logger.With().Str("component", "whatsmeow").Logger())
	container, err := sqlstore.New(context.Background(), "sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)", waLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	deviceStore, err := container.GetFirstDevice(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	w := &WhatsAppClient{
		Client: whatsmeow.NewClient(deviceStore, waLogger),
		logger: logger,
	}
	w.Client.AddEventHandler(w.handleEvent)
	return w, nil
}

// SetSink wires the ingestion pipeline. Must be called before Connect.
func (w *WhatsAppClient) SetSink(sink EventSink) {
	w.sink = sink
}

func (w *WhatsAppClient) Connect() error {
	if w.Client.Store.ID == nil {
		// No stored session, new login via QR.
		qrChan, _ := w.Client.GetQRChannel(context.Background())
		if err := w.Client.Connect(); err != nil {
			return err
		}
		go w.watchQR(qrChan)
		return nil
	}
	if err := w.Client.Connect(); err != nil {
		return err
	}
	w.logger.Info().Msg("connected with existing session")
	return nil
}

func (w *WhatsAppClient) watchQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		if evt.Event == "code" {
			w.qrLock.Lock()
			w.qrCode = evt.Code
			w.qrLock.Unlock()
			w.logger.Info().Msg("new login QR code available")
		} else {
			w.logger.Info().Str("event", evt.Event).Msg("login event")
		}
	}
}

func (w *WhatsAppClient) GetQR() string {
	w.qrLock.RLock()
	defer w.qrLock.RUnlock()
	return w.qrCode
}

func (w *WhatsAppClient) IsLoggedIn() bool {
	return w.Client.Store.ID != nil
}

func (w *WhatsAppClient) IsConnected() bool {
	return w.Client.IsConnected() && w.Client.Store.ID != nil
}

// Status describes the session for the front door.
func (w *WhatsAppClient) Status() map[string]interface{} {
	status := map[string]interface{}{
		"connected": w.Client.IsConnected(),
		"loggedIn":  w.IsLoggedIn(),
	}
	if id := w.Client.Store.ID; id != nil {
		status["phone"] = id.User
		status["pushName"] = w.Client.Store.PushName
	} else {
		status["qrPending"] = w.GetQR() != ""
	}
	return status
}

// Logout clears the session and starts a fresh QR loop.
func (w *WhatsAppClient) Logout() error {
	w.qrLock.Lock()
	w.qrCode = ""
	w.qrLock.Unlock()

	if err := w.Client.Logout(context.Background()); err != nil {
		return err
	}
	w.Client.Disconnect()

	qrChan, _ := w.Client.GetQRChannel(context.Background())
	if err := w.Client.Connect(); err != nil {
		return fmt.Errorf("failed to reconnect after logout: %w", err)
	}
	go w.watchQR(qrChan)
	return nil
}

func (w *WhatsAppClient) Disconnect() {
	w.Client.Disconnect()
}

// handleEvent converts whatsmeow events into the raw shapes the pipeline
// understands. Messages become single-event batches; profile events become
// contact updates.
func (w *WhatsAppClient) handleEvent(evt interface{}) {
	if w.sink == nil {
		return
	}
	switch v := evt.(type) {
	case *events.Message:
		raw := entities.RawEvent{
			MessageID: v.Info.ID,
			ChatJID:   v.Info.Chat.String(),
			SenderJID: v.Info.Sender.String(),
			PushName:  v.Info.PushName,
			IsGroup:   v.Info.IsGroup,
			FromMe:    v.Info.IsFromMe,
			Timestamp: v.Info.Timestamp,
			Content:   v.Message,
		}
		if err := w.sink.Ingest([]entities.RawEvent{raw}); err != nil {
			w.logger.Error().Err(err).Str("message_id", v.Info.ID).Msg("ingest failed")
		}
	case *events.PushName:
		w.sink.IngestContact(entities.ContactUpdate{
			JID:        v.JID.String(),
			NotifyName: v.NewPushName,
		})
	case *events.BusinessName:
		w.sink.IngestContact(entities.ContactUpdate{
			JID:          v.JID.String(),
			VerifiedName: v.NewBusinessName,
		})
	case *events.Contact:
		w.sink.IngestContact(entities.ContactUpdate{
			JID:         v.JID.String(),
			DisplayName: v.Action.GetFullName(),
			IsKnown:     true,
		})
	case *events.Connected:
		w.logger.Info().Msg("session connected")
		// Announce availability so delivery receipts and push names flow.
		if err := w.Client.SendPresence(context.Background(), types.PresenceAvailable); err != nil {
			w.logger.Warn().Err(err).Msg("failed to send presence")
		}
	case *events.Disconnected:
		w.logger.Warn().Msg("session disconnected")
	case *events.LoggedOut:
		w.logger.Warn().Msg("session logged out")
	}
}

// parseTarget accepts a bare number or a full JID.
func parseTarget(to string) (types.JID, error) {
	for _, c := range to {
		if c == '@' {
			jid, err := types.ParseJID(to)
			if err != nil {
				return types.EmptyJID, fmt.Errorf("invalid JID: %w", err)
			}
			return jid, nil
		}
	}
	if to == "" {
		return types.EmptyJID, fmt.Errorf("empty recipient")
	}
	return types.NewJID(to, types.DefaultUserServer), nil
}

func (w *WhatsAppClient) send(ctx context.Context, to string, msg *waProto.Message) error {
	jid, err := parseTarget(to)
	if err != nil {
		return err
	}
	_, err = w.Client.SendMessage(ctx, jid, msg)
	return err
}

func (w *WhatsAppClient) SendText(ctx context.Context, to, text string) error {
	return w.send(ctx, to, &waProto.Message{Conversation: proto.String(text)})
}

// SendImage fetches the image from a public URL, uploads it to the media
// servers and sends the resulting image message.
func (w *WhatsAppClient) SendImage(ctx context.Context, to, url, caption string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := (&http.Client{Timeout: 30 * time.Second}).Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	uploaded, err := w.Client.Upload(ctx, data, whatsmeow.MediaImage)
	if err != nil {
		return fmt.Errorf("media upload failed: %w", err)
	}
	return w.send(ctx, to, &waProto.Message{
		ImageMessage: &waProto.ImageMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			Mimetype:      proto.String(http.DetectContentType(data)),
			Caption:       proto.String(caption),
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		},
	})
}

func (w *WhatsAppClient) SendButtons(ctx context.Context, to, text, footer string, buttons []entities.ButtonSpec) error {
	btns := make([]*waProto.ButtonsMessage_Button, 0, len(buttons))
	for _, b := range buttons {
		btns = append(btns, &waProto.ButtonsMessage_Button{
			ButtonID:   proto.String(b.ID),
			ButtonText: &waProto.ButtonsMessage_Button_ButtonText{DisplayText: proto.String(b.Text)},
			Type:       waProto.ButtonsMessage_Button_RESPONSE.Enum(),
		})
	}
	return w.send(ctx, to, &waProto.Message{
		ButtonsMessage: &waProto.ButtonsMessage{
			ContentText: proto.String(text),
			FooterText:  proto.String(footer),
			Buttons:     btns,
			HeaderType:  waProto.ButtonsMessage_EMPTY.Enum(),
		},
	})
}

func (w *WhatsAppClient) SendList(ctx context.Context, to, text, title, buttonText, footer string, sections []entities.ListSection) error {
	secs := make([]*waProto.ListMessage_Section, 0, len(sections))
	for _, s := range sections {
		rows := make([]*waProto.ListMessage_Row, 0, len(s.Rows))
		for _, r := range s.Rows {
			rows = append(rows, &waProto.ListMessage_Row{
				RowID:       proto.String(r.ID),
				Title:       proto.String(r.Title),
				Description: proto.String(r.Description),
			})
		}
		secs = append(secs, &waProto.ListMessage_Section{
			Title: proto.String(s.Title),
			Rows:  rows,
		})
	}
	return w.send(ctx, to, &waProto.Message{
		ListMessage: &waProto.ListMessage{
			Title:       proto.String(title),
			Description: proto.String(text),
			ButtonText:  proto.String(buttonText),
			FooterText:  proto.String(footer),
			ListType:    waProto.ListMessage_SINGLE_SELECT.Enum(),
			Sections:    secs,
		},
	})
}

func (w *WhatsAppClient) SendTemplate(ctx context.Context, to, text, footer string, buttons []entities.TemplateButton) error {
	hydrated := make([]*waProto.HydratedTemplateButton, 0, len(buttons))
	for i, b := range buttons {
		btn := &waProto.HydratedTemplateButton{Index: proto.Uint32(uint32(i + 1))}
		switch b.Type {
		case "url":
			btn.HydratedButton = &waProto.HydratedTemplateButton_UrlButton{
				UrlButton: &waProto.HydratedTemplateButton_HydratedURLButton{
					DisplayText: proto.String(b.Text),
					URL:         proto.String(b.URL),
				},
			}
		case "call":
			btn.HydratedButton = &waProto.HydratedTemplateButton_CallButton{
				CallButton: &waProto.HydratedTemplateButton_HydratedCallButton{
					DisplayText: proto.String(b.Text),
					PhoneNumber: proto.String(b.Phone),
				},
			}
		default: // quick_reply
			btn.HydratedButton = &waProto.HydratedTemplateButton_QuickReplyButton{
				QuickReplyButton: &waProto.HydratedTemplateButton_HydratedQuickReplyButton{
					DisplayText: proto.String(b.Text),
					ID:          proto.String(b.ID),
				},
			}
		}
		hydrated = append(hydrated, btn)
	}
	return w.send(ctx, to, &waProto.Message{
		TemplateMessage: &waProto.TemplateMessage{
			HydratedTemplate: &waProto.TemplateMessage_HydratedFourRowTemplate{
				HydratedContentText: proto.String(text),
				HydratedFooterText:  proto.String(footer),
				HydratedButtons:     hydrated,
			},
		},
	})
}

func (w *WhatsAppClient) SendReaction(ctx context.Context, to, messageID, emoji string) error {
	jid, err := parseTarget(to)
	if err != nil {
		return err
	}
	_, err = w.Client.SendMessage(ctx, jid, w.Client.BuildReaction(jid, jid, messageID, emoji))
	return err
}

// SendButtonClick synthesizes a button reply into the conversation, as if
// the button had been pressed on this device.
func (w *WhatsAppClient) SendButtonClick(ctx context.Context, to, buttonID, displayText string) error {
	return w.send(ctx, to, &waProto.Message{
		ButtonsResponseMessage: &waProto.ButtonsResponseMessage{
			SelectedButtonID: proto.String(buttonID),
			Response:         &waProto.ButtonsResponseMessage_SelectedDisplayText{SelectedDisplayText: displayText},
			Type:             waProto.ButtonsResponseMessage_DISPLAY_TEXT.Enum(),
		},
	})
}

// SendListClick synthesizes a list row selection.
func (w *WhatsAppClient) SendListClick(ctx context.Context, to, rowID, title string) error {
	return w.send(ctx, to, &waProto.Message{
		ListResponseMessage: &waProto.ListResponseMessage{
			Title:    proto.String(title),
			ListType: waProto.ListResponseMessage_SINGLE_SELECT.Enum(),
			SingleSelectReply: &waProto.ListResponseMessage_SingleSelectReply{
				SelectedRowID: proto.String(rowID),
			},
		},
	})
}
