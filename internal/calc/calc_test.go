package calc

import (
	"testing"

	"route-recon/internal/models"
)

type units map[string]float64

func (u units) Factor(unit string) float64 {
	if f, ok := u[unit]; ok {
		return f
	}
	return 1
}

var bagBundle = units{"Bag": 1, "Bundle": 5}

func TestStockDifference(t *testing.T) {
	cases := []struct {
		name     string
		physical float64
		physUnit string
		system   float64
		sysUnit  string
		wantDiff float64
		want     StockStatus
	}{
		{"bundles vs bags match", 2, "Bundle", 10, "Bag", 0, StockMatch},
		{"short by one bag", 2, "Bundle", 11, "Bag", -1, StockShortage},
		{"excess", 3, "Bundle", 1, "Bundle", 10, StockExcess},
		{"unknown unit counts as one", 4, "Pieces", 4, "Bag", 0, StockMatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := StockDifference(bagBundle, tc.physical, tc.physUnit, tc.system, tc.sysUnit)
			if got.Difference != tc.wantDiff || got.Status != tc.want {
				t.Fatalf("got %+v, want diff %v status %s", got, tc.wantDiff, tc.want)
			}
		})
	}
}

func TestStockDifferenceNilConverter(t *testing.T) {
	got := StockDifference(nil, 3, "Carton", 5, "Bag")
	if got.Difference != -2 || got.Status != StockShortage {
		t.Fatalf("unexpected %+v", got)
	}
}

func TestCashBalance(t *testing.T) {
	in := CashInputs{
		TotalSales:      1000,
		CreditSales:     200,
		CreditRepayment: 50,
		BankPOS:         100,
		BankTransfer:    0,
		Cheque:          0,
	}

	in.ActualCash = 750
	got := CashBalance(in)
	if got.ExpectedCash != 750 || got.Status != CashBalanced {
		t.Fatalf("expected balanced at 750, got %+v", got)
	}

	in.ActualCash = 740
	got = CashBalance(in)
	if got.Status != CashShortage || got.Magnitude != 10 || got.Difference != -10 {
		t.Fatalf("expected shortage of 10, got %+v", got)
	}

	in.ActualCash = 750.005
	if got = CashBalance(in); got.Status != CashBalanced {
		t.Fatalf("sub-halala difference should balance, got %+v", got)
	}

	in.ActualCash = 760.5
	if got = CashBalance(in); got.Status != CashExcess || got.Magnitude != 10.5 {
		t.Fatalf("expected excess of 10.5, got %+v", got)
	}
}

func TestNotesAndActualCash(t *testing.T) {
	notes := NotesTotal(map[string]int{"500": 1, "100": 2, "5": 3, "7": 100, "20": -1})
	if notes != 715 {
		t.Fatalf("NotesTotal = %v, want 715", notes)
	}
	if got := ActualCash(notes, 2.5); got != 717.5 {
		t.Fatalf("ActualCash = %v, want 717.5", got)
	}
}

func TestReconcile(t *testing.T) {
	rec := &models.CashRecord{
		SalesItems: []models.SalesItem{
			{Code: "4402", Price: 58, Quantity: 3},
			{Code: "1701", Price: 5, Quantity: 10},
		},
		CreditSales: 24,
		CashNotes:   models.CashNotes{Denominations: map[string]int{"100": 2}},
	}
	res := Reconcile(rec)
	if rec.SalesItems[0].Total != 174 || rec.TotalSales != 224 {
		t.Fatalf("totals wrong: %+v", rec)
	}
	if rec.ExpectedCash != 200 || rec.ActualCash != 200 || res.Status != CashBalanced {
		t.Fatalf("expected balanced 200, got %+v / %+v", rec, res)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]models.InventoryItem{
		{Difference: 0}, {Difference: -2}, {Difference: 3}, {Difference: 0},
	})
	want := Summary{Total: 4, Matched: 2, Shortage: 1, Excess: 1}
	if s != want {
		t.Fatalf("got %+v, want %+v", s, want)
	}
}

func TestSalesFromInventory(t *testing.T) {
	previous := []models.InventoryItem{
		{Code: "4402", Physical: 4, PhysUnit: "Bundle"},
		{Code: "4401", Physical: 10, PhysUnit: "Bag"},
	}
	current := []models.InventoryItem{
		{Code: "4402", Category: "sunflower", Physical: 12, PhysUnit: "Bag", Transfer: 1, TransUnit: "Bundle"},
		{Code: "4401", Physical: 12, PhysUnit: "Bag"},
		{Code: "1126", Physical: 0, Transfer: 2, TransUnit: "Sack"},
	}
	got := SalesFromInventory(previous, current, func(string) Converter { return bagBundle })

	if len(got) != 2 {
		t.Fatalf("expected 2 sold products, got %+v", got)
	}
	// 20 opening + 5 received - 12 left
	if got[0].Code != "4402" || got[0].SalesQty != 13 || got[0].Category != "sunflower" {
		t.Fatalf("unexpected 4402 row: %+v", got[0])
	}
	// no opening count: everything received and not left was sold
	if got[1].Code != "1126" || got[1].SalesQty != 2 {
		t.Fatalf("unexpected 1126 row: %+v", got[1])
	}
}

func TestDenominationKeys(t *testing.T) {
	keys := DenominationKeys()
	if len(keys) != 6 || keys[0] != "500" || keys[5] != "5" {
		t.Fatalf("unexpected keys %v", keys)
	}
}
