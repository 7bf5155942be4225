package services

import (
	"context"
	"fmt"

	"route-recon/internal/models"
)

type FeedStore interface {
	// UpdatesSince returns updates of a route/date after since and the
	// latest sequence of the whole feed.
	UpdatesSince(ctx context.Context, route, date string, since int64) ([]models.Update, int64, error)
}

type RealtimeService struct {
	Feed  FeedStore
	Locks *LockService
}

func NewRealtimeService(feed FeedStore, locks *LockService) *RealtimeService {
	return &RealtimeService{Feed: feed, Locks: locks}
}

// GetRealTimeData answers a poll: the updates after the client's cursor,
// the live locks of the route and the new cursor. The cursor never moves
// backwards, even when the feed has nothing new.
func (s *RealtimeService) GetRealTimeData(ctx context.Context, req *models.RealTimeRequest) (*models.RealTimeData, error) {
	if err := validateRouteDate(req.Route, req.Date); err != nil {
		return nil, err
	}

	updates, latest, err := s.Feed.UpdatesSince(ctx, req.Route, req.Date, req.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to read change feed: %w", err)
	}

	locks := []models.ItemLock{}
	if s.Locks != nil {
		if locks, err = s.Locks.ForRoute(ctx, req.Route); err != nil {
			return nil, err
		}
	}

	cursor := req.Timestamp
	if latest > cursor {
		cursor = latest
	}
	return &models.RealTimeData{Updates: updates, LockedItems: locks, ServerTimestamp: cursor}, nil
}
