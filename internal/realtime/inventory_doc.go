package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"route-recon/internal/calc"
	"route-recon/internal/catalog"
	"route-recon/internal/models"
)

// InventoryDoc is the stock verification form of one route and day.
type InventoryDoc struct {
	rows
	catalog *catalog.Catalog
}

func NewInventoryDoc(cat *catalog.Catalog) *InventoryDoc {
	d := &InventoryDoc{catalog: cat}
	d.Reset()
	return d
}

func (d *InventoryDoc) Module() string     { return ModuleInventory }
func (d *InventoryDoc) UpdateType() string { return models.UpdateRoute }
func (d *InventoryDoc) LocalKey() string   { return localKeyFor(ModuleInventory) }

func (d *InventoryDoc) Reset() {
	d.rows = newRows(d.catalog, func(p catalog.Product) *LineItem {
		unit := p.DefaultUnit()
		return &LineItem{
			Category: p.Category, Code: p.Code, Name: p.Name,
			PhysUnit: unit, TransUnit: unit, SysUnit: unit, ReimbUnit: unit,
		}
	})
}

func (d *InventoryDoc) recompute(li *LineItem) {
	var conv calc.Converter
	if d.catalog != nil {
		if p, ok := d.catalog.Product(li.Code); ok {
			conv = p
		}
	}
	li.Difference = calc.StockDifference(conv, li.Physical, li.PhysUnit, li.System, li.SysUnit).Difference
}

func (d *InventoryDoc) Edit(code, field, raw string, seq uint64) error {
	li, err := d.row(code)
	if err != nil {
		return err
	}
	if field == FieldQuantity {
		return fmt.Errorf("inventory rows have no %s column", field)
	}
	if err := li.set(field, raw); err != nil {
		return err
	}
	li.markDirty(field, seq)
	d.recompute(li)
	return nil
}

func (d *InventoryDoc) Dirty() bool          { return d.dirty() }
func (d *InventoryDoc) MarkSaved(seq uint64) { d.clearDirty(seq) }
func (d *InventoryDoc) Local() interface{}   { return d.local() }

// Items returns the rows that carry a count, the way they are saved.
func (d *InventoryDoc) Items() []models.InventoryItem {
	items := []models.InventoryItem{}
	for _, li := range d.items {
		if li.Physical == 0 && li.System == 0 && li.Transfer == 0 && li.Reimburse == 0 {
			continue
		}
		items = append(items, models.InventoryItem{
			Category: li.Category, Code: li.Code, Name: li.Name,
			Physical: li.Physical, PhysUnit: li.PhysUnit,
			Transfer: li.Transfer, TransUnit: li.TransUnit,
			System: li.System, SysUnit: li.SysUnit,
			Difference: li.Difference,
			Reimburse:  li.Reimburse, ReimbUnit: li.ReimbUnit,
		})
	}
	return items
}

func (d *InventoryDoc) Payload(s Session, now time.Time) interface{} {
	return &models.SaveInventoryRequest{
		Route:     s.Route,
		Date:      s.Date,
		Items:     d.Items(),
		Timestamp: now.UnixMilli(),
		UserID:    s.UserID,
		UserName:  s.UserName,
	}
}

// Merge accepts the item list of a feed update or a loaded record. Both
// carry every saved row of the day, so a clean row missing from the list
// has been zeroed on the server.
func (d *InventoryDoc) Merge(record interface{}) (bool, error) {
	var items []models.InventoryItem
	switch r := record.(type) {
	case []models.InventoryItem:
		items = r
	case *models.InventoryRecord:
		if r == nil {
			return false, nil
		}
		items = r.Items
	case json.RawMessage:
		if isNull(r) {
			return false, nil
		}
		if err := decodeRecord(r, &items); err != nil {
			return false, fmt.Errorf("decode inventory update: %w", err)
		}
	default:
		return false, fmt.Errorf("unexpected inventory record %T", record)
	}

	byCode := make(map[string]models.InventoryItem, len(items))
	for _, it := range items {
		byCode[it.Code] = it
	}

	changed := false
	for _, li := range d.items {
		src := fromInventoryItem(byCode[li.Code])
		rowChanged := false
		for _, f := range inventoryFields {
			if li.mergeField(&src, f) {
				rowChanged = true
			}
		}
		if rowChanged {
			d.recompute(li)
			changed = true
		}
	}
	return changed, nil
}

func (d *InventoryDoc) Restore(raw json.RawMessage) error {
	var items []localItem
	if err := decodeRecord(raw, &items); err != nil {
		return fmt.Errorf("decode local inventory: %w", err)
	}
	d.restore(items, func(dst, src *LineItem) {
		for _, f := range inventoryFields {
			dst.mergeField(src, f)
		}
		d.recompute(dst)
	})
	return nil
}

// LoadPrevious turns the previous day's physical counts into today's
// system counts. The copied fields count as edits.
func (d *InventoryDoc) LoadPrevious(previous []models.InventoryItem, seq uint64) int {
	n := 0
	for _, it := range previous {
		li, ok := d.byCode[it.Code]
		if !ok {
			continue
		}
		li.System = it.Physical
		li.markDirty(FieldSystem, seq)
		if it.PhysUnit != "" {
			li.SysUnit = it.PhysUnit
			li.markDirty(FieldSysUnit, seq)
		}
		d.recompute(li)
		n++
	}
	return n
}

// AutoCalculate recomputes every difference.
func (d *InventoryDoc) AutoCalculate() {
	for _, li := range d.items {
		d.recompute(li)
	}
}

// Clear zeroes every count and forgets unsaved edits.
func (d *InventoryDoc) Clear() {
	for _, li := range d.items {
		li.Physical, li.Transfer, li.System, li.Reimburse = 0, 0, 0, 0
		li.Difference = 0
		li.dirty = nil
	}
}

func (d *InventoryDoc) SummaryCounts() calc.Summary {
	all := make([]models.InventoryItem, 0, len(d.items))
	for _, li := range d.items {
		all = append(all, models.InventoryItem{Code: li.Code, Difference: li.Difference})
	}
	return calc.Summarize(all)
}

func (d *InventoryDoc) Summary() string {
	s := d.SummaryCounts()
	return fmt.Sprintf("items %d, matched %d, shortage %d, excess %d", s.Total, s.Matched, s.Shortage, s.Excess)
}
