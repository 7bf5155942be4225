package calc

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"route-recon/internal/models"
)

type CashStatus string

const (
	CashBalanced CashStatus = "balanced"
	CashShortage CashStatus = "shortage"
	CashExcess   CashStatus = "excess"
)

// Denominations are the SAR note values counted at the end of a route.
var Denominations = []int{500, 100, 50, 20, 10, 5}

var balanceTolerance = decimal.RequireFromString("0.01")

type CashInputs struct {
	TotalSales      float64
	CreditSales     float64
	CreditRepayment float64
	BankPOS         float64
	BankTransfer    float64
	Cheque          float64
	ActualCash      float64
}

type CashResult struct {
	ExpectedCash float64    `json:"expectedCash"`
	Difference   float64    `json:"difference"`
	Status       CashStatus `json:"status"`
	// Magnitude is |Difference|, what the cashier is short or over by.
	Magnitude float64 `json:"magnitude"`
}

// CashBalance computes the cash a driver should hand in and how far the
// counted cash is from it.
func CashBalance(in CashInputs) CashResult {
	expected := dec(in.TotalSales).
		Sub(dec(in.CreditSales)).
		Add(dec(in.CreditRepayment)).
		Sub(dec(in.BankPOS)).
		Sub(dec(in.BankTransfer)).
		Sub(dec(in.Cheque))
	diff := dec(in.ActualCash).Sub(expected)

	status := CashBalanced
	if diff.Abs().GreaterThanOrEqual(balanceTolerance) {
		if diff.IsNegative() {
			status = CashShortage
		} else {
			status = CashExcess
		}
	}

	return CashResult{
		ExpectedCash: round2(expected),
		Difference:   round2(diff),
		Status:       status,
		Magnitude:    round2(diff.Abs()),
	}
}

// NotesTotal sums count*value over the known denominations. Unknown keys are ignored.
func NotesTotal(counts map[string]int) float64 {
	total := decimal.Zero
	for _, d := range Denominations {
		n := counts[strconv.Itoa(d)]
		if n <= 0 {
			continue
		}
		total = total.Add(decimal.NewFromInt(int64(d * n)))
	}
	return round2(total)
}

// ActualCash is notes plus coins.
func ActualCash(notes, coins float64) float64 {
	return round2(dec(notes).Add(dec(coins)))
}

func LineTotal(qty, price float64) float64 {
	return round2(dec(qty).Mul(dec(price)))
}

func SalesTotal(items []models.SalesItem) float64 {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(dec(it.Quantity).Mul(dec(it.Price)))
	}
	return round2(total)
}

// Reconcile fills every derived field of a cash record from its inputs.
func Reconcile(rec *models.CashRecord) CashResult {
	for i := range rec.SalesItems {
		rec.SalesItems[i].Total = LineTotal(rec.SalesItems[i].Quantity, rec.SalesItems[i].Price)
	}
	rec.TotalSales = SalesTotal(rec.SalesItems)
	rec.CashNotes.Total = NotesTotal(rec.CashNotes.Denominations)
	rec.ActualCash = ActualCash(rec.CashNotes.Total, rec.Coins)

	res := CashBalance(CashInputs{
		TotalSales:      rec.TotalSales,
		CreditSales:     rec.CreditSales,
		CreditRepayment: rec.CreditRepayment,
		BankPOS:         rec.BankPOS,
		BankTransfer:    rec.BankTransfer,
		Cheque:          rec.Cheque,
		ActualCash:      rec.ActualCash,
	})
	rec.ExpectedCash = res.ExpectedCash
	rec.Difference = res.Difference
	return res
}

// DenominationKeys returns note values as strings, highest first.
func DenominationKeys() []string {
	ds := append([]int(nil), Denominations...)
	sort.Sort(sort.Reverse(sort.IntSlice(ds)))
	keys := make([]string, len(ds))
	for i, d := range ds {
		keys[i] = strconv.Itoa(d)
	}
	return keys
}

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
