package services

import (
	"context"
	"fmt"

	"route-recon/internal/calc"
	"route-recon/internal/metrics"
	"route-recon/internal/models"
	"route-recon/internal/timeutil"
)

type CashStore interface {
	SaveCash(ctx context.Context, rec *models.CashRecord) (int64, error)
	GetCash(ctx context.Context, route, date string) (*models.CashRecord, error)
}

type CashService struct {
	Store    CashStore
	Archiver Archiver
	Notifier Notifier
}

func NewCashService(store CashStore, archiver Archiver, notifier Notifier) *CashService {
	return &CashService{Store: store, Archiver: archiver, Notifier: notifier}
}

// Save recomputes every derived figure before storing the record.
func (s *CashService) Save(ctx context.Context, rec *models.CashRecord) (*models.SaveResult, error) {
	if err := validateRouteDate(rec.Route, rec.Date); err != nil {
		return nil, err
	}
	for _, it := range rec.SalesItems {
		if it.Quantity < 0 || it.Price < 0 {
			return nil, invalid("negative quantity or price for %s", it.Code)
		}
	}

	calc.Reconcile(rec)

	seq, err := s.Store.SaveCash(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to save cash reconciliation: %w", err)
	}
	metrics.SavesTotal.WithLabelValues("sales").Inc()

	if s.Archiver != nil {
		s.Archiver.Archive("sales", rec.Route, rec.Date, rec)
	}
	if s.Notifier != nil {
		s.Notifier.Notify(models.Activity{
			Type: models.ActivitySaved, Module: "sales",
			Route: rec.Route, Date: rec.Date,
			UserID: rec.UserID, UserName: rec.UserName,
			At: timeutil.Now(),
		})
	}

	return &models.SaveResult{Saved: true, ServerTimestamp: seq}, nil
}

// Get returns nil without error when nothing was saved for the day.
func (s *CashService) Get(ctx context.Context, q *models.RecordQuery) (*models.CashRecord, error) {
	if err := validateRouteDate(q.Route, q.Date); err != nil {
		return nil, err
	}
	rec, err := s.Store.GetCash(ctx, q.Route, q.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to load cash reconciliation: %w", err)
	}
	return rec, nil
}
