package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"route-recon/internal/metrics"
	"route-recon/internal/models"
)

type PresenceService struct {
	Registry PresenceRegistry
	Locks    LockRegistry
	TTL      time.Duration
	now      func() time.Time
}

func NewPresenceService(registry PresenceRegistry, locks LockRegistry, ttl time.Duration) *PresenceService {
	return &PresenceService{Registry: registry, Locks: locks, TTL: ttl, now: time.Now}
}

// Heartbeat records the caller as active and returns how many users are active.
func (s *PresenceService) Heartbeat(ctx context.Context, req *models.HeartbeatRequest) (*models.HeartbeatResponse, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, invalid("userId is required")
	}

	user := models.ActiveUser{
		UserID:   req.UserID,
		UserName: req.UserName,
		Route:    req.Route,
		Module:   req.Module,
		LastSeen: s.now().UTC(),
	}
	if err := s.Registry.Touch(ctx, user, s.TTL); err != nil {
		return nil, fmt.Errorf("failed to record heartbeat: %w", err)
	}

	users, err := s.Registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	metrics.ActiveUsers.Set(float64(len(users)))
	return &models.HeartbeatResponse{ActiveUsers: len(users)}, nil
}

// ActiveUsers lists users seen within the presence window together with
// the item locks each of them holds.
func (s *PresenceService) ActiveUsers(ctx context.Context) (*models.ActiveUsersResponse, error) {
	users, err := s.Registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}

	byUser := map[string][]models.ItemLock{}
	if s.Locks != nil {
		locks, err := s.Locks.List(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("failed to list locks: %w", err)
		}
		for _, lk := range locks {
			byUser[lk.UserID] = append(byUser[lk.UserID], lk)
		}
	}
	for i := range users {
		users[i].LockedItems = byUser[users[i].UserID]
	}

	metrics.ActiveUsers.Set(float64(len(users)))
	return &models.ActiveUsersResponse{Users: users, Count: len(users)}, nil
}
