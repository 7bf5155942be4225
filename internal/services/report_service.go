package services

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/xuri/excelize/v2"

	"route-recon/internal/calc"
	"route-recon/internal/catalog"
	"route-recon/internal/models"
	"route-recon/internal/timeutil"
)

type ReportService struct {
	Inventory InventoryStore
	Cash      CashStore
	Feed      FeedStore
	Catalog   *catalog.Catalog
}

func NewReportService(inventory InventoryStore, cash CashStore, feed FeedStore, cat *catalog.Catalog) *ReportService {
	return &ReportService{Inventory: inventory, Cash: cash, Feed: feed, Catalog: cat}
}

// DailyReport is everything recorded for one route on one day.
type DailyReport struct {
	Route    string                 `json:"route"`
	Date     string                 `json:"date"`
	Currency string                 `json:"currency"`
	Items    []models.InventoryItem `json:"items"`
	Summary  calc.Summary           `json:"summary"`
	Cash     *models.CashRecord     `json:"cash"`
	Balance  *calc.CashResult       `json:"balance,omitempty"`
	Saves    int                    `json:"saves"`
	Editors  []string               `json:"editors"`
}

// Daily loads inventory, cash and edit history concurrently.
func (s *ReportService) Daily(ctx context.Context, route, date string) (*DailyReport, error) {
	if err := validateRouteDate(route, date); err != nil {
		return nil, err
	}

	var (
		wg      sync.WaitGroup
		items   []models.InventoryItem
		cash    *models.CashRecord
		updates []models.Update
		errs    [3]error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		items, errs[0] = s.Inventory.GetInventory(ctx, route, date)
	}()
	go func() {
		defer wg.Done()
		cash, errs[1] = s.Cash.GetCash(ctx, route, date)
	}()
	go func() {
		defer wg.Done()
		updates, _, errs[2] = s.Feed.UpdatesSince(ctx, route, date, 0)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("failed to build report: %w", err)
		}
	}

	report := &DailyReport{
		Route:   route,
		Date:    date,
		Items:   items,
		Summary: calc.Summarize(items),
		Cash:    cash,
		Saves:   len(updates),
		Editors: []string{},
	}
	if s.Catalog != nil {
		report.Currency = s.Catalog.Currency
	}
	if cash != nil {
		res := calc.CashBalance(calc.CashInputs{
			TotalSales:      cash.TotalSales,
			CreditSales:     cash.CreditSales,
			CreditRepayment: cash.CreditRepayment,
			BankPOS:         cash.BankPOS,
			BankTransfer:    cash.BankTransfer,
			Cheque:          cash.Cheque,
			ActualCash:      cash.ActualCash,
		})
		report.Balance = &res
	}

	seen := map[string]bool{}
	for _, u := range updates {
		name := u.UserName
		if name == "" {
			name = u.UserID
		}
		if name != "" && !seen[name] {
			seen[name] = true
			report.Editors = append(report.Editors, name)
		}
	}
	sort.Strings(report.Editors)

	return report, nil
}

func (s *ReportService) DailyPDF(ctx context.Context, route, date string) ([]byte, error) {
	r, err := s.Daily(ctx, route, date)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, fmt.Sprintf("Route Report - %s", r.Route), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, fmt.Sprintf("Date: %s   Generated: %s", r.Date, timeutil.Now().Format(timeutil.DisplayLayout)), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Inventory", "1", 1, "L", true, 0, "")

	headers := []string{"Code", "Product", "Physical", "Transfer", "System", "Diff"}
	widths := []float64{20, 60, 30, 30, 30, 20}
	pdf.SetFont("Arial", "B", 9)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, it := range r.Items {
		pdf.CellFormat(widths[0], 6, it.Code, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, it.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, qtyWithUnit(it.Physical, it.PhysUnit), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, qtyWithUnit(it.Transfer, it.TransUnit), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, qtyWithUnit(it.System, it.SysUnit), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[5], 6, fmt.Sprintf("%g", it.Difference), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(2)
	pdf.CellFormat(190, 6, fmt.Sprintf("Items: %d   Matched: %d   Shortage: %d   Excess: %d",
		r.Summary.Total, r.Summary.Matched, r.Summary.Shortage, r.Summary.Excess), "", 1, "L", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Cash Reconciliation", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 10)
	if r.Cash == nil {
		pdf.CellFormat(190, 7, "No cash reconciliation saved for this day", "", 1, "L", false, 0, "")
	} else {
		lines := [][2]string{
			{"Total Sales", money(r.Currency, r.Cash.TotalSales)},
			{"Credit Sales", money(r.Currency, r.Cash.CreditSales)},
			{"Credit Repayment", money(r.Currency, r.Cash.CreditRepayment)},
			{"Bank POS", money(r.Currency, r.Cash.BankPOS)},
			{"Bank Transfer", money(r.Currency, r.Cash.BankTransfer)},
			{"Cheque", money(r.Currency, r.Cash.Cheque)},
			{"Expected Cash", money(r.Currency, r.Balance.ExpectedCash)},
			{"Actual Cash", money(r.Currency, r.Cash.ActualCash)},
			{"Difference", fmt.Sprintf("%s (%s)", money(r.Currency, r.Balance.Difference), r.Balance.Status)},
		}
		for _, l := range lines {
			pdf.CellFormat(95, 7, l[0], "LB", 0, "L", false, 0, "")
			pdf.CellFormat(95, 7, l[1], "RB", 1, "R", false, 0, "")
		}
	}
	pdf.Ln(5)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(190, 6, fmt.Sprintf("Saves: %d   Edited by: %v", r.Saves, r.Editors), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *ReportService) DailyXLSX(ctx context.Context, route, date string) ([]byte, error) {
	r, err := s.Daily(ctx, route, date)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	inv := "Inventory"
	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), inv); err != nil {
		return nil, err
	}
	header := []interface{}{"Category", "Code", "Name", "Physical", "Phys Unit", "Transfer", "Trans Unit", "System", "Sys Unit", "Difference", "Reimburse", "Reimb Unit"}
	if err := f.SetSheetRow(inv, "A1", &header); err != nil {
		return nil, err
	}
	for i, it := range r.Items {
		row := []interface{}{it.Category, it.Code, it.Name, it.Physical, it.PhysUnit, it.Transfer, it.TransUnit, it.System, it.SysUnit, it.Difference, it.Reimburse, it.ReimbUnit}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(inv, cell, &row); err != nil {
			return nil, err
		}
	}

	if r.Cash != nil {
		cash := "Cash"
		if _, err := f.NewSheet(cash); err != nil {
			return nil, err
		}
		salesHeader := []interface{}{"Code", "Name", "Unit", "Price", "Quantity", "Total"}
		if err := f.SetSheetRow(cash, "A1", &salesHeader); err != nil {
			return nil, err
		}
		row := 2
		for _, it := range r.Cash.SalesItems {
			vals := []interface{}{it.Code, it.Name, it.Unit, it.Price, it.Quantity, it.Total}
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(cash, cell, &vals); err != nil {
				return nil, err
			}
			row++
		}
		row++
		totals := [][2]interface{}{
			{"Total Sales", r.Cash.TotalSales},
			{"Credit Sales", r.Cash.CreditSales},
			{"Credit Repayment", r.Cash.CreditRepayment},
			{"Bank POS", r.Cash.BankPOS},
			{"Bank Transfer", r.Cash.BankTransfer},
			{"Cheque", r.Cash.Cheque},
			{"Expected Cash", r.Balance.ExpectedCash},
			{"Actual Cash", r.Cash.ActualCash},
			{"Difference", r.Balance.Difference},
			{"Status", string(r.Balance.Status)},
		}
		for _, t := range totals {
			vals := []interface{}{t[0], t[1]}
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(cash, cell, &vals); err != nil {
				return nil, err
			}
			row++
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func qtyWithUnit(qty float64, unit string) string {
	if unit == "" {
		return fmt.Sprintf("%g", qty)
	}
	return fmt.Sprintf("%g %s", qty, unit)
}

func money(currency string, v float64) string {
	if currency == "" {
		return fmt.Sprintf("%.2f", v)
	}
	return fmt.Sprintf("%s %.2f", currency, v)
}
