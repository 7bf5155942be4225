package realtime

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"route-recon/internal/localstore"
)

// LocalStore is the durable key/value store the client persists into.
type LocalStore interface {
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Put(ctx context.Context, key string, v interface{}) error
	AppendBackup(ctx context.Context, data interface{}, limit int) error
}

// Session identifies this client and what it is working on.
type Session struct {
	UserID   string
	UserName string
	Module   string
	Route    string
	Date     string
}

// LoadSession restores the persisted user id, creating one on first run.
// A non-empty userName replaces the stored one.
func LoadSession(ctx context.Context, store LocalStore, userName, module string) (Session, error) {
	s := Session{Module: module}

	if _, err := store.Get(ctx, localstore.KeyUserID, &s.UserID); err != nil {
		return s, fmt.Errorf("load user id: %w", err)
	}
	if s.UserID == "" {
		s.UserID = "user_" + uuid.NewString()
		if err := store.Put(ctx, localstore.KeyUserID, s.UserID); err != nil {
			return s, fmt.Errorf("store user id: %w", err)
		}
	}

	var stored string
	if _, err := store.Get(ctx, localstore.KeyUserName, &stored); err != nil {
		return s, fmt.Errorf("load user name: %w", err)
	}
	switch {
	case userName != "" && userName != stored:
		s.UserName = userName
		if err := store.Put(ctx, localstore.KeyUserName, userName); err != nil {
			return s, fmt.Errorf("store user name: %w", err)
		}
	case stored != "":
		s.UserName = stored
	default:
		s.UserName = "Anonymous"
	}
	return s, nil
}
