package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"route-recon/internal/catalog"
	"route-recon/internal/localstore"
	"route-recon/internal/models"
)

const (
	ModuleInventory = "inventory"
	ModuleSales     = "sales"
)

// Document is the form state of one module. Implementations are not safe
// for concurrent use; State serializes every call.
type Document interface {
	Module() string
	// UpdateType is the change feed type that concerns this document.
	UpdateType() string
	// LocalKey is where the document is persisted between runs.
	LocalKey() string
	// Reset clears the form for a new route or date.
	Reset()
	Edit(code, field, raw string, seq uint64) error
	Dirty() bool
	// Payload builds the save request body.
	Payload(s Session, now time.Time) interface{}
	// MarkSaved clears dirty marks set at or before seq.
	MarkSaved(seq uint64)
	// Merge applies a server record without touching dirty fields and
	// reports whether a value changed.
	Merge(record interface{}) (bool, error)
	Local() interface{}
	Restore(raw json.RawMessage) error
	Summary() string
}

// localItem is a line item as persisted locally, dirty marks included.
type localItem struct {
	LineItem
	Dirty []string `json:"dirty,omitempty"`
}

// rows holds line items in catalog order.
type rows struct {
	items  []*LineItem
	byCode map[string]*LineItem
}

func newRows(cat *catalog.Catalog, build func(p catalog.Product) *LineItem) rows {
	r := rows{byCode: make(map[string]*LineItem)}
	if cat == nil {
		return r
	}
	for _, p := range cat.Products() {
		li := build(p)
		r.items = append(r.items, li)
		r.byCode[p.Code] = li
	}
	return r
}

func (r *rows) row(code string) (*LineItem, error) {
	li, ok := r.byCode[code]
	if !ok {
		return nil, fmt.Errorf("unknown product code %s", code)
	}
	return li, nil
}

func (r *rows) dirty() bool {
	for _, li := range r.items {
		if li.hasDirty() {
			return true
		}
	}
	return false
}

func (r *rows) clearDirty(seq uint64) {
	for _, li := range r.items {
		li.clearDirty(seq)
	}
}

func (r *rows) local() []localItem {
	out := make([]localItem, 0, len(r.items))
	for _, li := range r.items {
		cp := *li
		cp.dirty = nil
		out = append(out, localItem{LineItem: cp, Dirty: li.DirtyFields()})
	}
	return out
}

// restore loads persisted rows. Restored dirty marks carry sequence 0 so
// the next successful save clears them.
func (r *rows) restore(items []localItem, apply func(dst *LineItem, src *LineItem)) {
	for i := range items {
		li, ok := r.byCode[items[i].Code]
		if !ok {
			continue
		}
		apply(li, &items[i].LineItem)
		li.dirty = nil
		for _, f := range items[i].Dirty {
			li.markDirty(f, 0)
		}
	}
}

// Snapshot returns copies of the rows in catalog order.
func (r *rows) Snapshot() []LineItem {
	out := make([]LineItem, len(r.items))
	for i, li := range r.items {
		out[i] = *li
		out[i].dirty = nil
	}
	return out
}

var inventoryFields = []string{
	FieldPhysical, FieldPhysUnit, FieldTransfer, FieldTransUnit,
	FieldSystem, FieldSysUnit, FieldReimburse, FieldReimbUnit,
}

func fromInventoryItem(it models.InventoryItem) LineItem {
	return LineItem{
		Category: it.Category, Code: it.Code, Name: it.Name,
		Physical: it.Physical, PhysUnit: it.PhysUnit,
		Transfer: it.Transfer, TransUnit: it.TransUnit,
		System: it.System, SysUnit: it.SysUnit,
		Reimburse: it.Reimburse, ReimbUnit: it.ReimbUnit,
		Difference: it.Difference,
	}
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func decodeRecord(raw json.RawMessage, dst interface{}) error {
	if isNull(raw) {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func localKeyFor(module string) string {
	if module == ModuleSales {
		return localstore.KeyCash
	}
	return localstore.KeyInventory
}
