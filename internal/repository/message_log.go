package repository

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog"

	"wagate/internal/entities"
)

// Message keys are zero-padded decimal sequence numbers so Pebble's byte
// order is append order: msg:00000000000000000042.
const (
	msgKeyPrefix = "msg:"
	msgKeyEnd    = "msg;" // ';' sorts directly after ':'
)

// trimSlack is the documented capacity slack: the log trims oldest entries
// only once it exceeds maxCount by this much, so retained count never
// exceeds maxCount + trimSlack.
const trimSlack = 32

// MessageLog is an append-only, monotonically ordered, capacity-bounded
// store of canonical messages backed by Pebble. Sequence numbers start at 1
// and are recovered from the newest key on open.
type MessageLog struct {
	db       *pebble.DB
	maxCount int
	logger   zerolog.Logger

	mu       sync.Mutex
	nextSeq  uint64
	firstSeq uint64 // oldest retained seq, 0 when empty
	count    int
}

func NewMessageLog(path string, maxCount int, logger zerolog.Logger) (*MessageLog, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open message log: %w", err)
	}

	l := &MessageLog{
		db:       db,
		maxCount: maxCount,
		logger:   logger,
		nextSeq:  1,
	}
	if err := l.recover(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info().
		Uint64("first_seq", l.firstSeq).
		Uint64("next_seq", l.nextSeq).
		Int("count", l.count).
		Msg("message log opened")
	return l, nil
}

// recover rebuilds the in-memory sequence counters from the stored keys.
// The scan is bounded by the capacity policy (maxCount + trimSlack keys).
func (l *MessageLog) recover() error {
	iter, err := l.newIter()
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := seqFromKey(iter.Key())
		if err != nil {
			return err
		}
		if l.firstSeq == 0 {
			l.firstSeq = seq
		}
		l.nextSeq = seq + 1
		l.count++
	}
	return iter.Error()
}

func (l *MessageLog) Close() error {
	return l.db.Close()
}

// Append stores the message under the next sequence number and trims the
// oldest entries once the retained count exceeds the capacity slack. The
// sequence counter only advances on a successful write, keeping retained
// sequence numbers gap-free.
func (l *MessageLog) Append(msg *entities.Message) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.nextSeq
	msg.Seq = seq
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := l.db.Set(msgKey(seq), data, pebble.Sync); err != nil {
		l.logger.Error().Err(err).Uint64("seq", seq).Msg("log append failed")
		return 0, fmt.Errorf("log append failed: %w", err)
	}
	l.nextSeq++
	l.count++
	if l.firstSeq == 0 {
		l.firstSeq = seq
	}

	if l.count > l.maxCount+trimSlack {
		newFirst := seq + 1 - uint64(l.maxCount)
		if err := l.db.DeleteRange(msgKey(l.firstSeq), msgKey(newFirst), pebble.Sync); err != nil {
			// Retention overshoot is tolerable; durability of the append is not.
			l.logger.Error().Err(err).Msg("log trim failed")
		} else {
			l.count = l.maxCount
			l.firstSeq = newFirst
		}
	}
	return seq, nil
}

// ReadForward returns up to max messages with sequence numbers strictly
// greater than after, oldest first.
func (l *MessageLog) ReadForward(after uint64, max int) ([]entities.Message, error) {
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: msgKey(after + 1),
		UpperBound: []byte(msgKeyEnd),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []entities.Message
	for iter.First(); iter.Valid() && len(out) < max; iter.Next() {
		msg, err := decodeMessage(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, iter.Error()
}

// ReadBackward returns up to max messages, newest first.
func (l *MessageLog) ReadBackward(max int) ([]entities.Message, error) {
	iter, err := l.newIter()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []entities.Message
	for iter.Last(); iter.Valid() && len(out) < max; iter.Prev() {
		msg, err := decodeMessage(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, iter.Error()
}

// ReadByConversation scans backward and returns up to max messages whose
// stored chat or sender JID exactly equals jid, newest first. Matching is on
// the stored identity only.
func (l *MessageLog) ReadByConversation(jid string, max int) ([]entities.Message, error) {
	iter, err := l.newIter()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []entities.Message
	for iter.Last(); iter.Valid() && len(out) < max; iter.Prev() {
		msg, err := decodeMessage(iter.Value())
		if err != nil {
			return nil, err
		}
		if msg.ChatJID == jid || msg.Sender == jid {
			out = append(out, msg)
		}
	}
	return out, iter.Error()
}

// Info reports the retained length and sequence range.
func (l *MessageLog) Info() entities.LogInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	info := entities.LogInfo{Length: l.count}
	if l.count > 0 {
		info.FirstSeq = l.firstSeq
		info.LastSeq = l.nextSeq - 1
	}
	return info
}

func (l *MessageLog) newIter() (*pebble.Iterator, error) {
	return l.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(msgKeyPrefix),
		UpperBound: []byte(msgKeyEnd),
	})
}

func msgKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", msgKeyPrefix, seq))
}

func seqFromKey(key []byte) (uint64, error) {
	s := strings.TrimPrefix(string(key), msgKeyPrefix)
	seq, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed log key %q: %w", key, err)
	}
	return seq, nil
}

func decodeMessage(value []byte) (entities.Message, error) {
	var msg entities.Message
	if err := json.Unmarshal(value, &msg); err != nil {
		return msg, fmt.Errorf("corrupt log entry: %w", err)
	}
	return msg, nil
}
