package repositories

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"route-recon/internal/database"
	"route-recon/internal/models"
)

// testPool connects to TEST_DATABASE_URL, migrates and empties the record tables.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := database.NewMigrator(pool, "../../migrations").RunMigrations(ctx); err != nil {
		t.Fatal(err)
	}
	_, err = pool.Exec(ctx, `TRUNCATE inventory_items, cash_reconciliations, change_feed RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatal(err)
	}
	return pool
}

func TestPostgresInventoryRoundTrip(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	inv := NewInventoryRepository(pool)
	feed := NewFeedRepository(pool)

	req := &models.SaveInventoryRequest{
		Route: "R1", Date: "2026-03-02", UserID: "u1", UserName: "Ali",
		Items: []models.InventoryItem{
			{Category: "sunflower", Code: "4402", Name: "Sunflower 1.5L", Physical: 8, PhysUnit: "Bag", System: 10, SysUnit: "Bag", Difference: -2},
		},
	}
	first, err := inv.SaveInventory(ctx, req)
	if err != nil {
		t.Fatal(err)
	}

	req.Items[0].Physical = 10
	req.Items[0].Difference = 0
	second, err := inv.SaveInventory(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if second <= first {
		t.Fatalf("feed sequence did not advance: %d then %d", first, second)
	}

	items, err := inv.GetInventory(ctx, "R1", "2026-03-02")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Physical != 10 || items[0].Difference != 0 {
		t.Fatalf("upsert not applied: %+v", items)
	}

	updates, latest, err := feed.UpdatesSince(ctx, "R1", "2026-03-02", first)
	if err != nil {
		t.Fatal(err)
	}
	if latest != second || len(updates) != 1 || updates[0].Timestamp != second {
		t.Fatalf("expected only seq %d, got latest=%d updates=%+v", second, latest, updates)
	}
	if updates[0].Type != models.UpdateRoute || updates[0].UserID != "u1" {
		t.Fatalf("unexpected update: %+v", updates[0])
	}

	req.Items = []models.InventoryItem{{Category: "oil", Code: "1116", Name: "Oil 1L", Physical: 2, PhysUnit: "Bag"}}
	if _, err := inv.SaveInventory(ctx, req); err != nil {
		t.Fatal(err)
	}
	items, err = inv.GetInventory(ctx, "R1", "2026-03-02")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Code != "1116" {
		t.Fatalf("rows left out of the last save must be gone: %+v", items)
	}

	other, _, err := feed.UpdatesSince(ctx, "R2", "2026-03-02", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Fatalf("other route leaked updates: %+v", other)
	}
}

func TestPostgresCashRoundTrip(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	cash := NewCashRepository(pool)

	missing, err := cash.GetCash(ctx, "R1", "2026-03-02")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing record, got %+v", missing)
	}

	rec := &models.CashRecord{
		Route: "R1", Date: "2026-03-02", UserID: "u1",
		SalesItems:   []models.SalesItem{{Code: "4402", Unit: "Bag", Price: 58, Quantity: 10, Total: 580}},
		TotalSales:   580,
		BankPOS:      30,
		ExpectedCash: 550,
		CashNotes:    models.CashNotes{Total: 500, Denominations: map[string]int{"500": 1}},
		Coins:        40,
		ActualCash:   540,
		Difference:   -10,
	}
	if _, err := cash.SaveCash(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := cash.GetCash(ctx, "R1", "2026-03-02")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.UpdatedAt == nil {
		t.Fatalf("expected stored record with updatedAt, got %+v", got)
	}
	if got.ExpectedCash != 550 || got.Difference != -10 || got.CashNotes.Denominations["500"] != 1 {
		t.Fatalf("cash record mismatch: %+v", got)
	}
}
