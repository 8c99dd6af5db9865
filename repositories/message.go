package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chat-gateway/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// MessageRepository is the BadgerDB-backed append-only message store.
// The gateway relays messages in real time and hands them here out of
// band; it never reads history on the delivery path.
type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) *MessageRepository {
	return &MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// StoreMessage persists one relayed message as-is.
// The key is formatted as "msg:{room}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two
//     messages arrive at the same nanosecond.
func (m *MessageRepository) StoreMessage(_ context.Context, room domain.RoomID, message []byte) error {
	key := fmt.Sprintf("msg:%s:%019d:%s", room, time.Now().UnixNano(), uuid.NewString())
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), message)
	})
}

// receiptMark is the on-disk representation of one delivery or read
// acknowledgment.
type receiptMark struct {
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	At        time.Time `json:"at"`
}

// MarkDelivered records a delivery acknowledgment for one message and
// one user. Marks are append-only: re-acknowledging overwrites the same
// key with a fresher timestamp, which is harmless.
func (m *MessageRepository) MarkDelivered(ctx context.Context, messageID string, identity domain.Identity) error {
	return m.mark(ctx, messageID, identity, "delivered")
}

// MarkRead records a read acknowledgment for one message and one user.
func (m *MessageRepository) MarkRead(ctx context.Context, messageID string, identity domain.Identity) error {
	return m.mark(ctx, messageID, identity, "read")
}

func (m *MessageRepository) mark(_ context.Context, messageID string, identity domain.Identity, kind string) error {
	mark := receiptMark{
		MessageID: messageID,
		UserID:    string(identity),
		Kind:      kind,
		At:        time.Now().UTC(),
	}
	data, err := json.Marshal(mark)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("receipt:%s:%s:%s", kind, messageID, identity)
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// GetMessages retrieves stored messages for one room using a reverse
// prefix scan, newest first. Thanks to the padded timestamp in the key,
// messages are naturally sorted by time. The returned cursor resumes the
// scan on the next call; nil means the beginning of history was reached.
func (m *MessageRepository) GetMessages(_ context.Context, room domain.RoomID, cursor *string) ([][]byte, *string, error) {
	var messages [][]byte
	var lastKey string

	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", room)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible key for this room, then walk
			// backwards through history.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			messages = append(messages, value)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if len(messages) == 0 {
		return nil, nil, nil
	}
	return messages, &lastKey, nil
}
