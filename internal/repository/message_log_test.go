package repository

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wagate/internal/entities"
)

func newTestLog(t *testing.T, maxCount int) *MessageLog {
	t.Helper()
	log, err := NewMessageLog(t.TempDir()+"/log", maxCount, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log
}

func appendN(t *testing.T, log *MessageLog, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := log.Append(&entities.Message{
			MessageID: fmt.Sprintf("M%d", i+1),
			ChatJID:   "111@s.whatsapp.net",
			Sender:    "111@s.whatsapp.net",
			Type:      entities.TypeText,
		})
		require.NoError(t, err)
	}
}

func TestAppendAssignsIncreasingSequences(t *testing.T) {
	log := newTestLog(t, 100)

	for i := 1; i <= 5; i++ {
		msg := &entities.Message{MessageID: fmt.Sprintf("M%d", i)}
		seq, err := log.Append(msg)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), seq)
		assert.Equal(t, seq, msg.Seq)
	}

	info := log.Info()
	assert.Equal(t, 5, info.Length)
	assert.Equal(t, uint64(1), info.FirstSeq)
	assert.Equal(t, uint64(5), info.LastSeq)
}

func TestReadForwardCursor(t *testing.T) {
	log := newTestLog(t, 100)
	appendN(t, log, 10)

	msgs, err := log.ReadForward(0, 4)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, uint64(1), msgs[0].Seq)
	assert.Equal(t, uint64(4), msgs[3].Seq)

	// Resume from the last seen sequence; no overlap, no gap.
	msgs, err = log.ReadForward(msgs[3].Seq, 4)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, uint64(5), msgs[0].Seq)

	// A cursor past the end returns nothing.
	msgs, err = log.ReadForward(10, 4)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestReadBackwardNewestFirst(t *testing.T) {
	log := newTestLog(t, 100)
	appendN(t, log, 6)

	msgs, err := log.ReadBackward(3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, uint64(6), msgs[0].Seq)
	assert.Equal(t, uint64(4), msgs[2].Seq)
}

func TestReadByConversationMatchesChatOrSender(t *testing.T) {
	log := newTestLog(t, 100)
	entries := []entities.Message{
		{MessageID: "A", ChatJID: "111@s.whatsapp.net", Sender: "111@s.whatsapp.net"},
		{MessageID: "B", ChatJID: "222@s.whatsapp.net", Sender: "222@s.whatsapp.net"},
		{MessageID: "C", ChatJID: "123@g.us", Sender: "111@s.whatsapp.net"},
		{MessageID: "D", ChatJID: "333@s.whatsapp.net", Sender: "333@s.whatsapp.net"},
	}
	for i := range entries {
		_, err := log.Append(&entries[i])
		require.NoError(t, err)
	}

	msgs, err := log.ReadByConversation("111@s.whatsapp.net", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	// Newest first: the group message where 111 was the sender, then the chat.
	assert.Equal(t, "C", msgs[0].MessageID)
	assert.Equal(t, "A", msgs[1].MessageID)

	msgs, err = log.ReadByConversation("999@s.whatsapp.net", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestCapacityTrimKeepsNewestAndStaysBounded(t *testing.T) {
	const maxCount = 50
	log := newTestLog(t, maxCount)
	appendN(t, log, maxCount+trimSlack+10)

	info := log.Info()
	assert.LessOrEqual(t, info.Length, maxCount+trimSlack)
	assert.Equal(t, uint64(maxCount+trimSlack+10), info.LastSeq)

	// Trimmed entries are gone; the retained range is contiguous.
	msgs, err := log.ReadForward(0, maxCount+trimSlack+10)
	require.NoError(t, err)
	require.Len(t, msgs, info.Length)
	assert.Equal(t, info.FirstSeq, msgs[0].Seq)
	for i := 1; i < len(msgs); i++ {
		assert.Equal(t, msgs[i-1].Seq+1, msgs[i].Seq)
	}
}

func TestReopenRecoversSequenceCounter(t *testing.T) {
	dir := t.TempDir() + "/log"
	log, err := NewMessageLog(dir, 100, zerolog.Nop())
	require.NoError(t, err)
	appendN(t, log, 7)
	require.NoError(t, log.Close())

	log, err = NewMessageLog(dir, 100, zerolog.Nop())
	require.NoError(t, err)
	defer log.Close()

	info := log.Info()
	assert.Equal(t, 7, info.Length)
	assert.Equal(t, uint64(7), info.LastSeq)

	seq, err := log.Append(&entities.Message{MessageID: "M8"})
	require.NoError(t, err)
	assert.Equal(t, uint64(8), seq)
}

func TestInfoEmptyLog(t *testing.T) {
	log := newTestLog(t, 100)
	info := log.Info()
	assert.Equal(t, 0, info.Length)
	assert.Equal(t, uint64(0), info.FirstSeq)
	assert.Equal(t, uint64(0), info.LastSeq)
}
