package usecases

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	waCommon "go.mau.fi/whatsmeow/proto/waCommon"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"google.golang.org/protobuf/proto"

	"wagate/internal/entities"
)

func rawEvent(content *waProto.Message) entities.RawEvent {
	return entities.RawEvent{
		MessageID: "MSG1",
		ChatJID:   "972501234567@s.whatsapp.net",
		SenderJID: "972501234567@s.whatsapp.net",
		IsGroup:   false,
		Timestamp: time.Unix(1700000000, 0),
		Content:   content,
	}
}

func TestNormalizeText(t *testing.T) {
	msg := Normalize(rawEvent(&waProto.Message{Conversation: proto.String("hello")}))
	assert.Equal(t, entities.TypeText, msg.Type)
	assert.Equal(t, "hello", msg.Data["text"])
	assert.Equal(t, "MSG1", msg.MessageID)
	assert.EqualValues(t, 1700000000, msg.Timestamp)
}

func TestNormalizeExtendedText(t *testing.T) {
	msg := Normalize(rawEvent(&waProto.Message{
		ExtendedTextMessage: &waProto.ExtendedTextMessage{Text: proto.String("quoted reply")},
	}))
	assert.Equal(t, entities.TypeText, msg.Type)
	assert.Equal(t, "quoted reply", msg.Data["text"])
}

func TestNormalizeImage(t *testing.T) {
	msg := Normalize(rawEvent(&waProto.Message{
		ImageMessage: &waProto.ImageMessage{
			Caption:  proto.String("a photo"),
			Mimetype: proto.String("image/jpeg"),
		},
	}))
	assert.Equal(t, entities.TypeImage, msg.Type)
	assert.Equal(t, "a photo", msg.Data["caption"])
	assert.Equal(t, "image/jpeg", msg.Data["mimetype"])
}

func TestNormalizeButtonResponse(t *testing.T) {
	msg := Normalize(rawEvent(&waProto.Message{
		ButtonsResponseMessage: &waProto.ButtonsResponseMessage{
			SelectedButtonID: proto.String("yes"),
			Response:         &waProto.ButtonsResponseMessage_SelectedDisplayText{SelectedDisplayText: "Yes"},
		},
	}))
	assert.Equal(t, entities.TypeButtonResponse, msg.Type)
	assert.Equal(t, "yes", msg.Data["buttonId"])
	assert.Equal(t, "Yes", msg.Data["displayText"])
}

func TestNormalizeListResponse(t *testing.T) {
	msg := Normalize(rawEvent(&waProto.Message{
		ListResponseMessage: &waProto.ListResponseMessage{
			Title: proto.String("Option A"),
			SingleSelectReply: &waProto.ListResponseMessage_SingleSelectReply{
				SelectedRowID: proto.String("row-a"),
			},
		},
	}))
	assert.Equal(t, entities.TypeListResponse, msg.Type)
	assert.Equal(t, "row-a", msg.Data["rowId"])
	assert.Equal(t, "Option A", msg.Data["title"])
}

func TestNormalizeReaction(t *testing.T) {
	msg := Normalize(rawEvent(&waProto.Message{
		ReactionMessage: &waProto.ReactionMessage{
			Key:  &waCommon.MessageKey{ID: proto.String("TARGET")},
			Text: proto.String("👍"),
		},
	}))
	assert.Equal(t, entities.TypeReaction, msg.Type)
	assert.Equal(t, "👍", msg.Data["emoji"])
	assert.Equal(t, "TARGET", msg.Data["messageId"])
}

func TestNormalizeLocation(t *testing.T) {
	msg := Normalize(rawEvent(&waProto.Message{
		LocationMessage: &waProto.LocationMessage{
			DegreesLatitude:  proto.Float64(32.0853),
			DegreesLongitude: proto.Float64(34.7818),
			Name:             proto.String("Tel Aviv"),
		},
	}))
	assert.Equal(t, entities.TypeLocation, msg.Type)
	assert.Equal(t, 32.0853, msg.Data["lat"])
	assert.Equal(t, 34.7818, msg.Data["lng"])
}

func TestNormalizeUnwrapsEphemeral(t *testing.T) {
	msg := Normalize(rawEvent(&waProto.Message{
		EphemeralMessage: &waProto.FutureProofMessage{
			Message: &waProto.Message{Conversation: proto.String("disappearing")},
		},
	}))
	assert.Equal(t, entities.TypeText, msg.Type)
	assert.Equal(t, "disappearing", msg.Data["text"])
}

func TestNormalizeUnwrapsViewOnceImage(t *testing.T) {
	msg := Normalize(rawEvent(&waProto.Message{
		ViewOnceMessageV2: &waProto.FutureProofMessage{
			Message: &waProto.Message{
				ImageMessage: &waProto.ImageMessage{Caption: proto.String("once")},
			},
		},
	}))
	assert.Equal(t, entities.TypeImage, msg.Type)
	assert.Equal(t, "once", msg.Data["caption"])
}

func TestNormalizeUnwrapDepthCapped(t *testing.T) {
	inner := &waProto.Message{Conversation: proto.String("deep")}
	wrapped := inner
	for i := 0; i < maxUnwrapDepth+1; i++ {
		wrapped = &waProto.Message{
			EphemeralMessage: &waProto.FutureProofMessage{Message: wrapped},
		}
	}
	msg := Normalize(rawEvent(wrapped))
	require.Equal(t, entities.TypeUnknown, msg.Type)
	assert.Equal(t, []string{"ephemeralMessage"}, msg.Data["fields"])
}

func TestNormalizeUnknownReportsFieldNames(t *testing.T) {
	msg := Normalize(rawEvent(&waProto.Message{
		ContactMessage: &waProto.ContactMessage{
			DisplayName: proto.String("Someone"),
			Vcard:       proto.String("BEGIN:VCARD"),
		},
	}))
	require.Equal(t, entities.TypeUnknown, msg.Type)
	assert.Equal(t, []string{"contactMessage"}, msg.Data["fields"])
}

func TestNormalizeNilContent(t *testing.T) {
	msg := Normalize(rawEvent(nil))
	assert.Equal(t, entities.TypeUnknown, msg.Type)
	assert.Equal(t, []string{}, msg.Data["fields"])
}

func TestIsControlOnly(t *testing.T) {
	assert.True(t, IsControlOnly(&waProto.Message{
		SenderKeyDistributionMessage: &waProto.SenderKeyDistributionMessage{},
	}))
	assert.True(t, IsControlOnly(&waProto.Message{
		ProtocolMessage: &waProto.ProtocolMessage{},
	}))
	assert.False(t, IsControlOnly(&waProto.Message{
		Conversation:                 proto.String("hi"),
		SenderKeyDistributionMessage: &waProto.SenderKeyDistributionMessage{},
	}))
	assert.False(t, IsControlOnly(nil))
	assert.False(t, IsControlOnly(&waProto.Message{}))
}
