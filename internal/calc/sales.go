package calc

import (
	"github.com/shopspring/decimal"

	"route-recon/internal/models"
)

// ConverterFor resolves the unit converter of a product code.
type ConverterFor func(code string) Converter

// SalesFromInventory derives sold quantities for a day from two inventory
// counts: what was on the truck yesterday plus what was transferred in,
// minus what is left today. Results are in base units, which is the unit
// products are priced in. Products with nothing sold are omitted.
func SalesFromInventory(previous, current []models.InventoryItem, convFor ConverterFor) []models.SalesQuantity {
	prevByCode := make(map[string]models.InventoryItem, len(previous))
	for _, it := range previous {
		prevByCode[it.Code] = it
	}

	out := make([]models.SalesQuantity, 0, len(current))
	for _, cur := range current {
		var conv Converter
		if convFor != nil {
			conv = convFor(cur.Code)
		}

		opening := decimal.Zero
		if prev, ok := prevByCode[cur.Code]; ok {
			opening = toBase(conv, prev.Physical, prev.PhysUnit)
		}
		received := toBase(conv, cur.Transfer, cur.TransUnit)
		closing := toBase(conv, cur.Physical, cur.PhysUnit)

		sold := opening.Add(received).Sub(closing)
		if !sold.IsPositive() {
			continue
		}
		out = append(out, models.SalesQuantity{
			Code:     cur.Code,
			Category: cur.Category,
			Name:     cur.Name,
			SalesQty: sold.InexactFloat64(),
		})
	}
	return out
}
