package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chat-gateway/domain"
	apperrors "chat-gateway/errors"

	"github.com/dgraph-io/badger/v4"
)

// UserRepository is the BadgerDB-backed user store. The gateway reads a
// profile once per handshake and writes presence transitions to it
// best-effort; account creation itself belongs to the account service.
type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

// storedUser is the on-disk representation under "user:<id>".
type storedUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar"`
	IsOnline  bool      `json:"is_online"`
	LastSeen  time.Time `json:"last_seen"`
	CreatedAt time.Time `json:"created_at"`
}

func userKey(identity domain.Identity) []byte {
	return []byte("user:" + string(identity))
}

// GetProfile retrieves the minimal profile cached on a connection at
// handshake time. An unknown identity yields ErrIdentityNotFound.
func (u *UserRepository) GetProfile(_ context.Context, identity domain.Identity) (domain.Profile, error) {
	var stored storedUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(identity))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.Profile{}, fmt.Errorf("%w: %s", apperrors.ErrIdentityNotFound, identity)
		}
		return domain.Profile{}, err
	}
	return domain.Profile{Username: stored.Username, Avatar: stored.Avatar}, nil
}

// SetPresence records the latest presence state and timestamp. The write
// is advisory for connected clients; the live broadcast is the source of
// truth, so a failure here is the caller's to log, not to act on.
func (u *UserRepository) SetPresence(_ context.Context, identity domain.Identity, online bool, lastSeen time.Time) error {
	return u.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(identity))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", apperrors.ErrIdentityNotFound, identity)
			}
			return err
		}

		var stored storedUser
		if err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		}); err != nil {
			return err
		}

		stored.IsOnline = online
		stored.LastSeen = lastSeen
		data, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		return txn.Set(userKey(identity), data)
	})
}

// PutUser seeds or replaces a user record. Used by tooling and tests;
// the REST account service owns this data in production.
func (u *UserRepository) PutUser(_ context.Context, identity domain.Identity, profile domain.Profile) error {
	stored := storedUser{
		ID:        string(identity),
		Username:  profile.Username,
		Avatar:    profile.Avatar,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return u.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(identity), data)
	})
}
