package services

import (
	"context"
	"fmt"
	"strings"

	"route-recon/internal/calc"
	"route-recon/internal/catalog"
	"route-recon/internal/metrics"
	"route-recon/internal/models"
	"route-recon/internal/timeutil"
)

type InventoryStore interface {
	SaveInventory(ctx context.Context, req *models.SaveInventoryRequest) (int64, error)
	GetInventory(ctx context.Context, route, date string) ([]models.InventoryItem, error)
}

// Archiver keeps an off-site copy of saved records. Archive must not block.
type Archiver interface {
	Archive(module, route, date string, payload interface{})
}

type InventoryService struct {
	Store    InventoryStore
	Catalog  *catalog.Catalog
	Archiver Archiver
	Notifier Notifier
}

func NewInventoryService(store InventoryStore, cat *catalog.Catalog, archiver Archiver, notifier Notifier) *InventoryService {
	return &InventoryService{Store: store, Catalog: cat, Archiver: archiver, Notifier: notifier}
}

func validateRouteDate(route, date string) error {
	if strings.TrimSpace(route) == "" {
		return invalid("route is required")
	}
	if !timeutil.ValidDate(date) {
		return invalid("date must be YYYY-MM-DD, got %q", date)
	}
	return nil
}

// Save stores the counts of a route/date. Differences are recomputed from
// the catalog conversions so a stale client cannot store a wrong figure.
func (s *InventoryService) Save(ctx context.Context, req *models.SaveInventoryRequest) (*models.SaveResult, error) {
	if err := validateRouteDate(req.Route, req.Date); err != nil {
		return nil, err
	}

	for i := range req.Items {
		it := &req.Items[i]
		if it.Code == "" {
			return nil, invalid("item %d has no code", i)
		}
		if s.Catalog == nil {
			continue
		}
		p, ok := s.Catalog.Product(it.Code)
		if !ok {
			return nil, invalid("unknown product code %s", it.Code)
		}
		if it.Name == "" {
			it.Name = p.Name
		}
		if it.Category == "" {
			it.Category = p.Category
		}
		it.Difference = calc.StockDifference(p, it.Physical, it.PhysUnit, it.System, it.SysUnit).Difference
	}

	seq, err := s.Store.SaveInventory(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to save inventory: %w", err)
	}
	metrics.SavesTotal.WithLabelValues("inventory").Inc()

	if s.Archiver != nil {
		s.Archiver.Archive("inventory", req.Route, req.Date, req)
	}
	if s.Notifier != nil {
		s.Notifier.Notify(models.Activity{
			Type: models.ActivitySaved, Module: "inventory",
			Route: req.Route, Date: req.Date,
			UserID: req.UserID, UserName: req.UserName,
			At: timeutil.Now(),
		})
	}

	return &models.SaveResult{Saved: true, ServerTimestamp: seq}, nil
}

func (s *InventoryService) Get(ctx context.Context, q *models.RecordQuery) (*models.InventoryRecord, error) {
	if err := validateRouteDate(q.Route, q.Date); err != nil {
		return nil, err
	}
	items, err := s.Store.GetInventory(ctx, q.Route, q.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}
	return &models.InventoryRecord{Route: q.Route, Date: q.Date, Items: items}, nil
}

// CalculateSales derives the day's sold quantities from the previous and
// current inventory counts of a route.
func (s *InventoryService) CalculateSales(ctx context.Context, req *models.SalesRequest) ([]models.SalesQuantity, error) {
	if err := validateRouteDate(req.Route, req.CurrentDate); err != nil {
		return nil, err
	}
	if req.PreviousDate == "" {
		prev, err := timeutil.PreviousDay(req.CurrentDate)
		if err != nil {
			return nil, invalid("bad currentDate: %v", err)
		}
		req.PreviousDate = prev
	} else if !timeutil.ValidDate(req.PreviousDate) {
		return nil, invalid("previousDate must be YYYY-MM-DD, got %q", req.PreviousDate)
	}

	previous, err := s.Store.GetInventory(ctx, req.Route, req.PreviousDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous inventory: %w", err)
	}
	current, err := s.Store.GetInventory(ctx, req.Route, req.CurrentDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load current inventory: %w", err)
	}

	sales := calc.SalesFromInventory(previous, current, s.converterFor)
	if s.Catalog != nil {
		for i := range sales {
			if p, ok := s.Catalog.Product(sales[i].Code); ok {
				sales[i].Name = p.Name
				sales[i].Category = p.Category
			}
		}
	}
	return sales, nil
}

func (s *InventoryService) converterFor(code string) calc.Converter {
	if s.Catalog == nil {
		return nil
	}
	p, ok := s.Catalog.Product(code)
	if !ok {
		return nil
	}
	return p
}
