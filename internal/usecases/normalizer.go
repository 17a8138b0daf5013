package usecases

import (
	"sort"

	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"google.golang.org/protobuf/reflect/protoreflect"

	"wagate/internal/entities"
)

// maxUnwrapDepth caps envelope unwrapping. Wrappers nest one level in
// practice; anything deeper is treated as unknown.
const maxUnwrapDepth = 8

// Normalize converts one raw protocol event into a canonical Message. It is
// a pure transformation: nil or partially populated payloads degrade to the
// unknown variant, never to a fault. FromMe and ReceivedAt are stamped by
// the ingestion pipeline, Seq by the log.
func Normalize(raw entities.RawEvent) entities.Message {
	msg := entities.Message{
		MessageID: raw.MessageID,
		ChatJID:   raw.ChatJID,
		Sender:    raw.SenderJID,
		PushName:  raw.PushName,
		IsGroup:   raw.IsGroup,
		Timestamp: raw.Timestamp.Unix(),
	}

	content := unwrap(raw.Content)
	msg.Type, msg.Data = classify(content)
	return msg
}

// unwrap peels transparent envelope variants (ephemeral, view-once, document
// with caption, device-sent) until it reaches real content or the depth cap.
func unwrap(m *waProto.Message) *waProto.Message {
	for i := 0; i < maxUnwrapDepth && m != nil; i++ {
		switch {
		case m.GetEphemeralMessage() != nil:
			m = m.GetEphemeralMessage().GetMessage()
		case m.GetViewOnceMessage() != nil:
			m = m.GetViewOnceMessage().GetMessage()
		case m.GetViewOnceMessageV2() != nil:
			m = m.GetViewOnceMessageV2().GetMessage()
		case m.GetViewOnceMessageV2Extension() != nil:
			m = m.GetViewOnceMessageV2Extension().GetMessage()
		case m.GetDocumentWithCaptionMessage() != nil:
			m = m.GetDocumentWithCaptionMessage().GetMessage()
		case m.GetDeviceSentMessage() != nil:
			m = m.GetDeviceSentMessage().GetMessage()
		default:
			return m
		}
	}
	return m
}

// matcher tests one content shape and extracts its variant payload. The
// table is evaluated in order, first match wins; adding a message shape is a
// table entry, not new control flow.
type matcher struct {
	kind    entities.MessageType
	extract func(m *waProto.Message) (map[string]interface{}, bool)
}

var matchers = []matcher{
	{entities.TypeText, func(m *waProto.Message) (map[string]interface{}, bool) {
		if m.GetConversation() != "" {
			return map[string]interface{}{"text": m.GetConversation()}, true
		}
		if ext := m.GetExtendedTextMessage(); ext != nil {
			return map[string]interface{}{"text": ext.GetText()}, true
		}
		return nil, false
	}},
	{entities.TypeImage, func(m *waProto.Message) (map[string]interface{}, bool) {
		img := m.GetImageMessage()
		if img == nil {
			return nil, false
		}
		return map[string]interface{}{"caption": img.GetCaption(), "mimetype": img.GetMimetype()}, true
	}},
	{entities.TypeVideo, func(m *waProto.Message) (map[string]interface{}, bool) {
		vid := m.GetVideoMessage()
		if vid == nil {
			return nil, false
		}
		return map[string]interface{}{"caption": vid.GetCaption(), "mimetype": vid.GetMimetype()}, true
	}},
	{entities.TypeAudio, func(m *waProto.Message) (map[string]interface{}, bool) {
		aud := m.GetAudioMessage()
		if aud == nil {
			return nil, false
		}
		return map[string]interface{}{"seconds": aud.GetSeconds(), "ptt": aud.GetPTT(), "mimetype": aud.GetMimetype()}, true
	}},
	{entities.TypeDocument, func(m *waProto.Message) (map[string]interface{}, bool) {
		doc := m.GetDocumentMessage()
		if doc == nil {
			return nil, false
		}
		return map[string]interface{}{"fileName": doc.GetFileName(), "caption": doc.GetCaption(), "mimetype": doc.GetMimetype()}, true
	}},
	{entities.TypeButtonResponse, func(m *waProto.Message) (map[string]interface{}, bool) {
		btn := m.GetButtonsResponseMessage()
		if btn == nil {
			return nil, false
		}
		return map[string]interface{}{"buttonId": btn.GetSelectedButtonID(), "displayText": btn.GetSelectedDisplayText()}, true
	}},
	{entities.TypeListMessage, func(m *waProto.Message) (map[string]interface{}, bool) {
		list := m.GetListMessage()
		if list == nil {
			return nil, false
		}
		return map[string]interface{}{"title": list.GetTitle(), "description": list.GetDescription(), "buttonText": list.GetButtonText()}, true
	}},
	{entities.TypeListResponse, func(m *waProto.Message) (map[string]interface{}, bool) {
		resp := m.GetListResponseMessage()
		if resp == nil {
			return nil, false
		}
		return map[string]interface{}{"rowId": resp.GetSingleSelectReply().GetSelectedRowID(), "title": resp.GetTitle()}, true
	}},
	{entities.TypeInteractiveResponse, func(m *waProto.Message) (map[string]interface{}, bool) {
		resp := m.GetInteractiveResponseMessage()
		if resp == nil {
			return nil, false
		}
		flow := resp.GetNativeFlowResponseMessage()
		return map[string]interface{}{"name": flow.GetName(), "paramsJson": flow.GetParamsJSON()}, true
	}},
	{entities.TypeTemplateButtonResponse, func(m *waProto.Message) (map[string]interface{}, bool) {
		reply := m.GetTemplateButtonReplyMessage()
		if reply == nil {
			return nil, false
		}
		return map[string]interface{}{"selectedId": reply.GetSelectedID(), "displayText": reply.GetSelectedDisplayText()}, true
	}},
	{entities.TypeReaction, func(m *waProto.Message) (map[string]interface{}, bool) {
		react := m.GetReactionMessage()
		if react == nil {
			return nil, false
		}
		return map[string]interface{}{"emoji": react.GetText(), "messageId": react.GetKey().GetID()}, true
	}},
	{entities.TypeLocation, func(m *waProto.Message) (map[string]interface{}, bool) {
		loc := m.GetLocationMessage()
		if loc == nil {
			return nil, false
		}
		return map[string]interface{}{"lat": loc.GetDegreesLatitude(), "lng": loc.GetDegreesLongitude(), "name": loc.GetName()}, true
	}},
}

func classify(m *waProto.Message) (entities.MessageType, map[string]interface{}) {
	if m == nil {
		return entities.TypeUnknown, map[string]interface{}{"fields": []string{}}
	}
	for _, match := range matchers {
		if data, ok := match.extract(m); ok {
			return match.kind, data
		}
	}
	// Keep the event, record which fields the payload carried so the
	// matcher table can be extended later.
	return entities.TypeUnknown, map[string]interface{}{"fields": fieldNames(m)}
}

// fieldNames lists the populated top-level fields of a payload, sorted.
func fieldNames(m *waProto.Message) []string {
	names := []string{}
	m.ProtoReflect().Range(func(fd protoreflect.FieldDescriptor, _ protoreflect.Value) bool {
		names = append(names, string(fd.Name()))
		return true
	})
	sort.Strings(names)
	return names
}

// controlOnlyFields are payload fields that carry no user-visible content:
// key distribution envelopes, protocol acknowledgements and device metadata.
var controlOnlyFields = map[string]bool{
	"senderKeyDistributionMessage": true,
	"messageContextInfo":           true,
	"protocolMessage":              true,
}

// IsControlOnly reports whether the (unwrapped) payload consists purely of
// control-channel fields and should be skipped by ingestion.
func IsControlOnly(m *waProto.Message) bool {
	if m == nil {
		return false
	}
	content := unwrap(m)
	if content == nil {
		return false
	}
	any := false
	control := true
	content.ProtoReflect().Range(func(fd protoreflect.FieldDescriptor, _ protoreflect.Value) bool {
		any = true
		if !controlOnlyFields[string(fd.Name())] {
			control = false
			return false
		}
		return true
	})
	return any && control
}
