package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestMessageRepository_GetMessages_Newest_First(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewMessageRepository(openTestDB(t), slog.Default(), nil)

	for i := 1; i <= 3; i++ {
		payload := []byte(fmt.Sprintf(`{"content":"msg-%d"}`, i))
		req.NoError(repo.StoreMessage(ctx, "conv-1", payload))
	}
	req.NoError(repo.StoreMessage(ctx, "conv-2", []byte(`{"content":"other room"}`)))

	messages, cursor, err := repo.GetMessages(ctx, "conv-1", nil)

	req.NoError(err)
	req.NotNil(cursor)
	req.Len(messages, 3)
	req.JSONEq(`{"content":"msg-3"}`, string(messages[0]))
	req.JSONEq(`{"content":"msg-1"}`, string(messages[2]))
}

func TestMessageRepository_Cursor_Pagination(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewMessageRepository(openTestDB(t), slog.Default(), lo.ToPtr(2))

	for i := 1; i <= 3; i++ {
		payload := []byte(fmt.Sprintf(`{"content":"msg-%d"}`, i))
		req.NoError(repo.StoreMessage(ctx, "conv-1", payload))
	}

	// First page holds the two newest messages
	firstPage, cursor, err := repo.GetMessages(ctx, "conv-1", nil)
	req.NoError(err)
	req.Len(firstPage, 2)
	req.NotNil(cursor)
	req.JSONEq(`{"content":"msg-3"}`, string(firstPage[0]))

	// Second page resumes past the cursor
	secondPage, _, err := repo.GetMessages(ctx, "conv-1", cursor)
	req.NoError(err)
	req.Len(secondPage, 1)
	req.JSONEq(`{"content":"msg-1"}`, string(secondPage[0]))
}

func TestMessageRepository_Unknown_Room_Is_Empty(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default(), nil)

	messages, cursor, err := repo.GetMessages(context.Background(), "nowhere", nil)

	req.NoError(err)
	req.Empty(messages)
	req.Nil(cursor)
}

func TestMessageRepository_Receipt_Marks(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewMessageRepository(db, slog.Default(), nil)

	req.NoError(repo.MarkDelivered(ctx, "m1", "user-1"))
	req.NoError(repo.MarkRead(ctx, "m1", "user-1"))

	// Both marks landed under their own keys
	readBack := func(key string) receiptMark {
		var mark receiptMark
		err := db.View(func(txn *badger.Txn) error {
			item, err := txn.Get([]byte(key))
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				return json.Unmarshal(val, &mark)
			})
		})
		req.NoError(err)
		return mark
	}
	delivered := readBack("receipt:delivered:m1:user-1")
	req.Equal("delivered", delivered.Kind)
	read := readBack("receipt:read:m1:user-1")
	req.Equal("read", read.Kind)
	req.Equal("m1", read.MessageID)
	req.Equal("user-1", read.UserID)
}
