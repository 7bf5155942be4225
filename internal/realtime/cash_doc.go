package realtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"route-recon/internal/calc"
	"route-recon/internal/catalog"
	"route-recon/internal/models"
)

// CashCode addresses the record-level fields of the cash form, such as
// bank payments and note counts, in Edit.
const CashCode = "cash"

// Record-level cash fields. Note counts use notePrefix plus the note value.
const (
	FieldCreditSales     = "creditSales"
	FieldCreditRepayment = "creditRepayment"
	FieldBankPOS         = "bankPOS"
	FieldBankTransfer    = "bankTransfer"
	FieldCheque          = "cheque"
	FieldCoins           = "coins"

	notePrefix = "note"
)

// CashDoc is the cash reconciliation form of one route and day.
type CashDoc struct {
	rows
	catalog *catalog.Catalog

	amounts map[string]float64
	notes   map[string]int
	dirty   map[string]uint64
}

type cashLocal struct {
	Items   []localItem        `json:"items"`
	Amounts map[string]float64 `json:"amounts"`
	Notes   map[string]int     `json:"notes"`
	Dirty   []string           `json:"dirty,omitempty"`
}

func NewCashDoc(cat *catalog.Catalog) *CashDoc {
	d := &CashDoc{catalog: cat}
	d.Reset()
	return d
}

func (d *CashDoc) Module() string     { return ModuleSales }
func (d *CashDoc) UpdateType() string { return models.UpdateCash }
func (d *CashDoc) LocalKey() string   { return localKeyFor(ModuleSales) }

func (d *CashDoc) Reset() {
	d.rows = newRows(d.catalog, func(p catalog.Product) *LineItem {
		return &LineItem{Category: p.Category, Code: p.Code, Name: p.Name, Price: p.Price}
	})
	d.amounts = make(map[string]float64)
	d.notes = make(map[string]int)
	d.dirty = make(map[string]uint64)
}

func amountField(field string) bool {
	switch field {
	case FieldCreditSales, FieldCreditRepayment, FieldBankPOS, FieldBankTransfer, FieldCheque, FieldCoins:
		return true
	}
	return false
}

// noteValue returns the denomination named by a note field.
func noteValue(field string) (string, bool) {
	if !strings.HasPrefix(field, notePrefix) {
		return "", false
	}
	v := strings.TrimPrefix(field, notePrefix)
	for _, k := range calc.DenominationKeys() {
		if k == v {
			return v, true
		}
	}
	return "", false
}

func (d *CashDoc) Edit(code, field, raw string, seq uint64) error {
	if code != CashCode {
		li, err := d.row(code)
		if err != nil {
			return err
		}
		if field != FieldQuantity {
			return fmt.Errorf("sales rows only have a %s column", FieldQuantity)
		}
		if err := li.set(field, raw); err != nil {
			return err
		}
		li.markDirty(field, seq)
		li.Total = calc.LineTotal(li.Quantity, li.Price)
		return nil
	}

	raw = strings.TrimSpace(raw)
	switch {
	case amountField(field):
		v := 0.0
		if raw != "" {
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fmt.Errorf("%s must be a number: %q", field, raw)
			}
			if f < 0 {
				return fmt.Errorf("%s cannot be negative", field)
			}
			v = f
		}
		d.amounts[field] = v
	default:
		note, ok := noteValue(field)
		if !ok {
			return fmt.Errorf("unknown field %q", field)
		}
		n := 0
		if raw != "" {
			i, err := strconv.Atoi(raw)
			if err != nil || i < 0 {
				return fmt.Errorf("note count must be a whole number: %q", raw)
			}
			n = i
		}
		d.notes[note] = n
	}
	d.dirty[field] = seq
	return nil
}

func (d *CashDoc) Dirty() bool {
	return len(d.dirty) > 0 || d.rows.dirty()
}

func (d *CashDoc) MarkSaved(seq uint64) {
	d.clearDirty(seq)
	for f, s := range d.dirty {
		if s <= seq {
			delete(d.dirty, f)
		}
	}
}

// Record builds the reconciled cash record. Only sold products are listed.
func (d *CashDoc) Record(s Session) *models.CashRecord {
	rec := &models.CashRecord{
		Route:           s.Route,
		Date:            s.Date,
		SalesItems:      []models.SalesItem{},
		CreditSales:     d.amounts[FieldCreditSales],
		CreditRepayment: d.amounts[FieldCreditRepayment],
		BankPOS:         d.amounts[FieldBankPOS],
		BankTransfer:    d.amounts[FieldBankTransfer],
		Cheque:          d.amounts[FieldCheque],
		Coins:           d.amounts[FieldCoins],
		CashNotes:       models.CashNotes{Denominations: make(map[string]int, len(d.notes))},
		UserID:          s.UserID,
		UserName:        s.UserName,
	}
	for k, n := range d.notes {
		if n > 0 {
			rec.CashNotes.Denominations[k] = n
		}
	}
	for _, li := range d.items {
		if li.Quantity <= 0 {
			continue
		}
		unit := ""
		if d.catalog != nil {
			if p, ok := d.catalog.Product(li.Code); ok {
				unit = p.SalesUnit
			}
		}
		rec.SalesItems = append(rec.SalesItems, models.SalesItem{
			Category: li.Category, Code: li.Code, Name: li.Name,
			Unit: unit, Price: li.Price, Quantity: li.Quantity,
		})
	}
	calc.Reconcile(rec)
	return rec
}

func (d *CashDoc) Payload(s Session, now time.Time) interface{} {
	rec := d.Record(s)
	rec.Timestamp = now.UnixMilli()
	return rec
}

func (d *CashDoc) Merge(record interface{}) (bool, error) {
	var rec *models.CashRecord
	switch r := record.(type) {
	case *models.CashRecord:
		rec = r
	case json.RawMessage:
		if err := decodeRecord(r, &rec); err != nil {
			return false, fmt.Errorf("decode cash update: %w", err)
		}
	default:
		return false, fmt.Errorf("unexpected cash record %T", record)
	}
	if rec == nil {
		return false, nil
	}

	// Only sold rows are stored, so a missing row means zero.
	sold := make(map[string]float64, len(rec.SalesItems))
	for _, it := range rec.SalesItems {
		sold[it.Code] = it.Quantity
	}
	changed := false
	for _, li := range d.items {
		if li.mergeField(&LineItem{Quantity: sold[li.Code]}, FieldQuantity) {
			li.Total = calc.LineTotal(li.Quantity, li.Price)
			changed = true
		}
	}

	incoming := map[string]float64{
		FieldCreditSales:     rec.CreditSales,
		FieldCreditRepayment: rec.CreditRepayment,
		FieldBankPOS:         rec.BankPOS,
		FieldBankTransfer:    rec.BankTransfer,
		FieldCheque:          rec.Cheque,
		FieldCoins:           rec.Coins,
	}
	for f, v := range incoming {
		if _, dirty := d.dirty[f]; dirty || d.amounts[f] == v {
			continue
		}
		d.amounts[f] = v
		changed = true
	}
	for _, k := range calc.DenominationKeys() {
		f := notePrefix + k
		if _, dirty := d.dirty[f]; dirty {
			continue
		}
		if n := rec.CashNotes.Denominations[k]; d.notes[k] != n {
			d.notes[k] = n
			changed = true
		}
	}
	return changed, nil
}

func (d *CashDoc) Local() interface{} {
	dirty := make([]string, 0, len(d.dirty))
	for f := range d.dirty {
		dirty = append(dirty, f)
	}
	return cashLocal{Items: d.local(), Amounts: d.amounts, Notes: d.notes, Dirty: dirty}
}

func (d *CashDoc) Restore(raw json.RawMessage) error {
	var l cashLocal
	if err := decodeRecord(raw, &l); err != nil {
		return fmt.Errorf("decode local cash: %w", err)
	}
	d.restore(l.Items, func(dst, src *LineItem) {
		dst.Quantity = src.Quantity
		dst.Total = calc.LineTotal(dst.Quantity, dst.Price)
	})
	for f, v := range l.Amounts {
		if amountField(f) {
			d.amounts[f] = v
		}
	}
	for k, n := range l.Notes {
		d.notes[k] = n
	}
	for _, f := range l.Dirty {
		d.dirty[f] = 0
	}
	return nil
}

// ApplySales replaces every quantity with sales derived from inventory.
// The new quantities count as edits.
func (d *CashDoc) ApplySales(sales []models.SalesQuantity, seq uint64) int {
	for _, li := range d.items {
		li.Quantity, li.Total = 0, 0
		li.markDirty(FieldQuantity, seq)
	}
	n := 0
	for _, sq := range sales {
		li, ok := d.byCode[sq.Code]
		if !ok {
			continue
		}
		li.Quantity = sq.SalesQty
		li.Total = calc.LineTotal(li.Quantity, li.Price)
		n++
	}
	return n
}

func (d *CashDoc) Balance() calc.CashResult {
	return calc.Reconcile(d.Record(Session{}))
}

func (d *CashDoc) Summary() string {
	rec := d.Record(Session{})
	res := calc.Reconcile(rec)
	return fmt.Sprintf("sales %.2f, expected %.2f, actual %.2f, difference %.2f (%s)",
		rec.TotalSales, res.ExpectedCash, rec.ActualCash, res.Difference, res.Status)
}
