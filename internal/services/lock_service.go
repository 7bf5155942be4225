package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"route-recon/internal/metrics"
	"route-recon/internal/models"
)

type LockService struct {
	Registry LockRegistry
	TTL      time.Duration
	Notifier Notifier
	now      func() time.Time
}

func NewLockService(registry LockRegistry, ttl time.Duration, notifier Notifier) *LockService {
	return &LockService{Registry: registry, TTL: ttl, Notifier: notifier, now: time.Now}
}

func validateLockRequest(req *models.LockRequest) error {
	if strings.TrimSpace(req.Route) == "" {
		return invalid("route is required")
	}
	if strings.TrimSpace(req.ItemCode) == "" {
		return invalid("itemCode is required")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return invalid("userId is required")
	}
	return nil
}

// Acquire grants the item to the caller when it is free, expired or already
// theirs. A denied response carries the current holder.
func (s *LockService) Acquire(ctx context.Context, req *models.LockRequest) (*models.LockResponse, error) {
	if err := validateLockRequest(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	lock := models.ItemLock{
		ItemKey:    models.ItemKey(req.Route, req.ItemCode),
		Route:      req.Route,
		ItemCode:   req.ItemCode,
		UserID:     req.UserID,
		UserName:   req.UserName,
		AcquiredAt: now,
		ExpiresAt:  now.Add(s.TTL),
	}

	holder, granted, err := s.Registry.Acquire(ctx, lock, s.TTL)
	if err != nil {
		metrics.LockAttemptsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !granted {
		metrics.LockAttemptsTotal.WithLabelValues("denied").Inc()
		return &models.LockResponse{
			Success: false,
			HeldBy:  &models.LockHolder{UserID: holder.UserID, UserName: holder.UserName},
		}, nil
	}

	metrics.LockAttemptsTotal.WithLabelValues("granted").Inc()
	s.notify(models.ActivityLocked, req)
	expires := holder.ExpiresAt
	return &models.LockResponse{Success: true, ExpiresAt: &expires}, nil
}

// Release drops the caller's lock. Releasing a lock held by someone else
// or already expired is acknowledged without effect.
func (s *LockService) Release(ctx context.Context, req *models.LockRequest) (*models.LockResponse, error) {
	if err := validateLockRequest(req); err != nil {
		return nil, err
	}

	released, err := s.Registry.Release(ctx, models.ItemKey(req.Route, req.ItemCode), req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to release lock: %w", err)
	}
	if released {
		s.notify(models.ActivityUnlocked, req)
	}
	return &models.LockResponse{Success: true}, nil
}

// ForRoute lists live locks on a route.
func (s *LockService) ForRoute(ctx context.Context, route string) ([]models.ItemLock, error) {
	locks, err := s.Registry.List(ctx, route)
	if err != nil {
		return nil, fmt.Errorf("failed to list locks: %w", err)
	}
	return locks, nil
}

func (s *LockService) notify(kind string, req *models.LockRequest) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Notify(models.Activity{
		Type:     kind,
		Route:    req.Route,
		ItemCode: req.ItemCode,
		UserID:   req.UserID,
		UserName: req.UserName,
		At:       s.now().UTC(),
	})
	log.Printf("[Locks] %s %s by %s", kind, models.ItemKey(req.Route, req.ItemCode), req.UserName)
}
