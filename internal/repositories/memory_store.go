package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"route-recon/internal/models"
)

// MemoryStore keeps records and the change feed in process. It backs the
// server when run with store=memory and the handler tests.
type MemoryStore struct {
	mu        sync.RWMutex
	inventory map[string]map[string]models.InventoryItem
	cash      map[string]models.CashRecord
	feed      []models.Update
	seq       int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		inventory: make(map[string]map[string]models.InventoryItem),
		cash:      make(map[string]models.CashRecord),
	}
}

func dayKey(route, date string) string {
	return route + "|" + date
}

// SaveInventory replaces the stored rows of the day with req.Items.
func (s *MemoryStore) SaveInventory(ctx context.Context, req *models.SaveInventoryRequest) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make(map[string]models.InventoryItem, len(req.Items))
	for _, it := range req.Items {
		rows[it.Code] = it
	}
	s.inventory[dayKey(req.Route, req.Date)] = rows
	return s.appendLocked(models.UpdateRoute, req.Route, req.Date, req.UserID, req.UserName, req.Items)
}

func (s *MemoryStore) GetInventory(ctx context.Context, route, date string) ([]models.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := []models.InventoryItem{}
	for _, it := range s.inventory[dayKey(route, date)] {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Category != items[j].Category {
			return items[i].Category < items[j].Category
		}
		return items[i].Code < items[j].Code
	})
	return items, nil
}

func (s *MemoryStore) SaveCash(ctx context.Context, rec *models.CashRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *rec
	stored.SalesItems = append([]models.SalesItem(nil), rec.SalesItems...)
	now := time.Now()
	stored.UpdatedAt = &now
	s.cash[dayKey(rec.Route, rec.Date)] = stored
	return s.appendLocked(models.UpdateCash, rec.Route, rec.Date, rec.UserID, rec.UserName, rec)
}

func (s *MemoryStore) GetCash(ctx context.Context, route, date string) (*models.CashRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.cash[dayKey(route, date)]
	if !ok {
		return nil, nil
	}
	rec.SalesItems = append([]models.SalesItem(nil), rec.SalesItems...)
	return &rec, nil
}

func (s *MemoryStore) UpdatesSince(ctx context.Context, route, date string, since int64) ([]models.Update, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	updates := []models.Update{}
	for _, u := range s.feed {
		if u.Timestamp > since && u.Route == route && u.Date == date {
			updates = append(updates, u)
		}
	}
	return updates, s.seq, nil
}

func (s *MemoryStore) appendLocked(updateType, route, date, userID, userName string, data interface{}) (int64, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return 0, fmt.Errorf("failed to encode feed payload: %w", err)
	}
	s.seq++
	s.feed = append(s.feed, models.Update{
		Type:      updateType,
		Route:     route,
		Date:      date,
		UserID:    userID,
		UserName:  userName,
		Timestamp: s.seq,
		Data:      payload,
		CreatedAt: time.Now(),
	})
	return s.seq, nil
}
