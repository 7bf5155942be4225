package realtime

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Editable columns of a line item.
const (
	FieldPhysical  = "physical"
	FieldPhysUnit  = "physUnit"
	FieldTransfer  = "transfer"
	FieldTransUnit = "transUnit"
	FieldSystem    = "system"
	FieldSysUnit   = "sysUnit"
	FieldReimburse = "reimburse"
	FieldReimbUnit = "reimbUnit"
	FieldQuantity  = "quantity"
)

// LineItem is one product row of a form. Each edited field remembers the
// edit sequence that dirtied it, so a save only clears what it carried.
type LineItem struct {
	Category   string  `json:"category"`
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Physical   float64 `json:"physical"`
	PhysUnit   string  `json:"physUnit"`
	Transfer   float64 `json:"transfer"`
	TransUnit  string  `json:"transUnit"`
	System     float64 `json:"system"`
	SysUnit    string  `json:"sysUnit"`
	Reimburse  float64 `json:"reimburse"`
	ReimbUnit  string  `json:"reimbUnit"`
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`
	Difference float64 `json:"difference"`
	Total      float64 `json:"total"`

	dirty map[string]uint64
}

func isUnitField(field string) bool {
	return strings.HasSuffix(field, "Unit")
}

// set writes a raw input value. Blank numeric input counts as zero.
func (li *LineItem) set(field, raw string) error {
	raw = strings.TrimSpace(raw)
	if isUnitField(field) {
		switch field {
		case FieldPhysUnit:
			li.PhysUnit = raw
		case FieldTransUnit:
			li.TransUnit = raw
		case FieldSysUnit:
			li.SysUnit = raw
		case FieldReimbUnit:
			li.ReimbUnit = raw
		default:
			return fmt.Errorf("unknown field %q", field)
		}
		return nil
	}

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
	switch field {
	case FieldPhysical:
		li.Physical = v
	case FieldTransfer:
		li.Transfer = v
	case FieldSystem:
		li.System = v
	case FieldReimburse:
		li.Reimburse = v
	case FieldQuantity:
		li.Quantity = v
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

func (li *LineItem) markDirty(field string, seq uint64) {
	if li.dirty == nil {
		li.dirty = make(map[string]uint64)
	}
	li.dirty[field] = seq
}

func (li *LineItem) IsDirty(field string) bool {
	_, ok := li.dirty[field]
	return ok
}

func (li *LineItem) hasDirty() bool {
	return len(li.dirty) > 0
}

// clearDirty drops dirty marks set at or before seq.
func (li *LineItem) clearDirty(seq uint64) {
	for f, s := range li.dirty {
		if s <= seq {
			delete(li.dirty, f)
		}
	}
}

// DirtyFields lists the dirty fields in name order.
func (li *LineItem) DirtyFields() []string {
	fields := make([]string, 0, len(li.dirty))
	for f := range li.dirty {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// mergeField copies field from src unless it is dirty here. It reports
// whether the value changed.
func (li *LineItem) mergeField(src *LineItem, field string) bool {
	if li.IsDirty(field) {
		return false
	}
	switch field {
	case FieldPhysical:
		return assignFloat(&li.Physical, src.Physical)
	case FieldTransfer:
		return assignFloat(&li.Transfer, src.Transfer)
	case FieldSystem:
		return assignFloat(&li.System, src.System)
	case FieldReimburse:
		return assignFloat(&li.Reimburse, src.Reimburse)
	case FieldQuantity:
		return assignFloat(&li.Quantity, src.Quantity)
	case FieldPhysUnit:
		return assignUnit(&li.PhysUnit, src.PhysUnit)
	case FieldTransUnit:
		return assignUnit(&li.TransUnit, src.TransUnit)
	case FieldSysUnit:
		return assignUnit(&li.SysUnit, src.SysUnit)
	case FieldReimbUnit:
		return assignUnit(&li.ReimbUnit, src.ReimbUnit)
	}
	return false
}

func assignFloat(dst *float64, v float64) bool {
	if *dst == v {
		return false
	}
	*dst = v
	return true
}

// assignUnit keeps the current unit when the server sent none.
func assignUnit(dst *string, v string) bool {
	if v == "" || *dst == v {
		return false
	}
	*dst = v
	return true
}
