package repositories

import (
	"context"
	"encoding/json"
	"testing"

	"route-recon/internal/models"
)

func TestMemoryStoreInventoryFeed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	seq1, err := s.SaveInventory(ctx, &models.SaveInventoryRequest{
		Route: "R1", Date: "2024-06-15", UserID: "u1",
		Items: []models.InventoryItem{{Code: "4402", Category: "sunflower", Physical: 5}},
	})
	if err != nil {
		t.Fatal(err)
	}
	seq2, err := s.SaveInventory(ctx, &models.SaveInventoryRequest{
		Route: "R2", Date: "2024-06-15", UserID: "u2",
		Items: []models.InventoryItem{{Code: "4401", Physical: 1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if seq2 <= seq1 {
		t.Fatalf("sequence not increasing: %d then %d", seq1, seq2)
	}

	updates, latest, err := s.UpdatesSince(ctx, "R1", "2024-06-15", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 1 || updates[0].Type != models.UpdateRoute || updates[0].Timestamp != seq1 {
		t.Fatalf("unexpected updates %+v", updates)
	}
	if latest != seq2 {
		t.Fatalf("latest should cover other routes: got %d want %d", latest, seq2)
	}
	var items []models.InventoryItem
	if err := json.Unmarshal(updates[0].Data, &items); err != nil || items[0].Physical != 5 {
		t.Fatalf("payload not decodable: %v %+v", err, items)
	}

	updates, _, _ = s.UpdatesSince(ctx, "R1", "2024-06-15", seq1)
	if len(updates) != 0 {
		t.Fatalf("expected nothing after cursor, got %+v", updates)
	}

	got, _ := s.GetInventory(ctx, "R1", "2024-06-15")
	if len(got) != 1 || got[0].Code != "4402" {
		t.Fatalf("unexpected rows %+v", got)
	}
}

func TestMemoryStoreCashMissing(t *testing.T) {
	s := NewMemoryStore()
	rec, err := s.GetCash(context.Background(), "R1", "2024-06-15")
	if err != nil || rec != nil {
		t.Fatalf("expected nil record, got %+v, %v", rec, err)
	}

	_, err = s.SaveCash(context.Background(), &models.CashRecord{Route: "R1", Date: "2024-06-15", TotalSales: 10})
	if err != nil {
		t.Fatal(err)
	}
	rec, _ = s.GetCash(context.Background(), "R1", "2024-06-15")
	if rec == nil || rec.TotalSales != 10 || rec.UpdatedAt == nil {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestMemoryStoreSaveReplacesTheDay(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.SaveInventory(ctx, &models.SaveInventoryRequest{
		Route: "R1", Date: "2024-06-15",
		Items: []models.InventoryItem{{Code: "4402", Physical: 5}, {Code: "1116", Physical: 2}},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.SaveInventory(ctx, &models.SaveInventoryRequest{
		Route: "R1", Date: "2024-06-15",
		Items: []models.InventoryItem{{Code: "1116", Physical: 2}},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetInventory(ctx, "R1", "2024-06-15")
	if len(got) != 1 || got[0].Code != "1116" {
		t.Fatalf("row zeroed by the last save still stored: %+v", got)
	}
}
