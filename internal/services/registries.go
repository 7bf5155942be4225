package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"route-recon/internal/models"
)

var ErrValidation = errors.New("validation failed")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// PresenceRegistry stores who has been seen recently.
type PresenceRegistry interface {
	Touch(ctx context.Context, user models.ActiveUser, ttl time.Duration) error
	List(ctx context.Context) ([]models.ActiveUser, error)
}

// LockRegistry enforces at most one holder per item key.
type LockRegistry interface {
	// Acquire returns the holder after the call and whether it is the caller.
	Acquire(ctx context.Context, lock models.ItemLock, ttl time.Duration) (models.ItemLock, bool, error)
	Release(ctx context.Context, itemKey, userID string) (bool, error)
	List(ctx context.Context, route string) ([]models.ItemLock, error)
}

// Notifier receives activity for live dashboards. Implementations must not block.
type Notifier interface {
	Notify(models.Activity)
}

type presenceEntry struct {
	user      models.ActiveUser
	expiresAt time.Time
}

// MemoryPresenceRegistry is the in-process registry used when Redis is down.
type MemoryPresenceRegistry struct {
	mu    sync.Mutex
	users map[string]presenceEntry
	now   func() time.Time
}

func NewMemoryPresenceRegistry() *MemoryPresenceRegistry {
	return &MemoryPresenceRegistry{users: make(map[string]presenceEntry), now: time.Now}
}

func (m *MemoryPresenceRegistry) Touch(ctx context.Context, user models.ActiveUser, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.UserID] = presenceEntry{user: user, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryPresenceRegistry) List(ctx context.Context) ([]models.ActiveUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	users := []models.ActiveUser{}
	for id, e := range m.users {
		if !now.Before(e.expiresAt) {
			delete(m.users, id)
			continue
		}
		users = append(users, e.user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserName < users[j].UserName })
	return users, nil
}

// MemoryLockRegistry is the in-process lock table used when Redis is down.
type MemoryLockRegistry struct {
	mu    sync.Mutex
	locks map[string]models.ItemLock
	now   func() time.Time
}

func NewMemoryLockRegistry() *MemoryLockRegistry {
	return &MemoryLockRegistry{locks: make(map[string]models.ItemLock), now: time.Now}
}

func (m *MemoryLockRegistry) Acquire(ctx context.Context, lock models.ItemLock, ttl time.Duration) (models.ItemLock, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.locks[lock.ItemKey]; ok && m.now().Before(cur.ExpiresAt) && cur.UserID != lock.UserID {
		return cur, false, nil
	}
	if lock.ExpiresAt.IsZero() {
		lock.ExpiresAt = m.now().Add(ttl)
	}
	m.locks[lock.ItemKey] = lock
	return lock, true, nil
}

func (m *MemoryLockRegistry) Release(ctx context.Context, itemKey, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.locks[itemKey]
	if !ok || cur.UserID != userID {
		return false, nil
	}
	delete(m.locks, itemKey)
	return true, nil
}

func (m *MemoryLockRegistry) List(ctx context.Context, route string) ([]models.ItemLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	locks := []models.ItemLock{}
	for key, lk := range m.locks {
		if !now.Before(lk.ExpiresAt) {
			delete(m.locks, key)
			continue
		}
		if route == "" || lk.Route == route {
			locks = append(locks, lk)
		}
	}
	sort.Slice(locks, func(i, j int) bool { return locks[i].ItemKey < locks[j].ItemKey })
	return locks, nil
}
