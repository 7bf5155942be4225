package calc

import (
	"github.com/shopspring/decimal"

	"route-recon/internal/models"
)

type StockStatus string

const (
	StockShortage StockStatus = "shortage"
	StockMatch    StockStatus = "match"
	StockExcess   StockStatus = "excess"
)

// Converter maps a unit name to its multiple of the base unit.
type Converter interface {
	Factor(unit string) float64
}

type StockResult struct {
	PhysicalBase float64     `json:"physicalBase"`
	SystemBase   float64     `json:"systemBase"`
	Difference   float64     `json:"difference"`
	Status       StockStatus `json:"status"`
}

// StockDifference compares a physical count with the system count after
// converting both to base units.
func StockDifference(conv Converter, physical float64, physUnit string, system float64, sysUnit string) StockResult {
	phys := toBase(conv, physical, physUnit)
	sys := toBase(conv, system, sysUnit)
	diff := phys.Sub(sys)

	return StockResult{
		PhysicalBase: phys.InexactFloat64(),
		SystemBase:   sys.InexactFloat64(),
		Difference:   diff.InexactFloat64(),
		Status:       classifyStock(diff),
	}
}

func classifyStock(diff decimal.Decimal) StockStatus {
	switch diff.Sign() {
	case -1:
		return StockShortage
	case 1:
		return StockExcess
	}
	return StockMatch
}

func toBase(conv Converter, qty float64, unit string) decimal.Decimal {
	factor := 1.0
	if conv != nil {
		factor = conv.Factor(unit)
	}
	return decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(factor))
}

type Summary struct {
	Total    int `json:"total"`
	Matched  int `json:"matched"`
	Shortage int `json:"shortage"`
	Excess   int `json:"excess"`
}

// Summarize counts rows by the sign of their stored difference.
func Summarize(items []models.InventoryItem) Summary {
	var s Summary
	for _, it := range items {
		s.Total++
		switch {
		case it.Difference == 0:
			s.Matched++
		case it.Difference < 0:
			s.Shortage++
		default:
			s.Excess++
		}
	}
	return s
}
