package catalog

import "testing"

func TestLoadShippedCatalog(t *testing.T) {
	c, err := Load("../../configs/catalog.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if c.Currency != "SAR" {
		t.Fatalf("expected SAR, got %q", c.Currency)
	}

	p, ok := c.Product("4402")
	if !ok {
		t.Fatal("4402 missing")
	}
	if p.Category != "sunflower" {
		t.Fatalf("expected sunflower, got %q", p.Category)
	}
	if got := p.Factor("Bundle"); got != 5 {
		t.Fatalf("Bundle factor = %v, want 5", got)
	}
	if got := c.Factor("1116", "Carton"); got != 12 {
		t.Fatalf("Carton factor = %v, want 12", got)
	}
	if got := c.Factor("1126", "Pieces"); got != 1 {
		t.Fatalf("unknown unit factor = %v, want 1", got)
	}
	if len(c.Products()) != 14 {
		t.Fatalf("expected 14 products, got %d", len(c.Products()))
	}
	if !c.HasRoute("Al-Hasa Wholesale") || c.HasRoute("Riyadh 9") {
		t.Fatal("route membership wrong")
	}
}

func TestNewRejectsDuplicateCodes(t *testing.T) {
	_, err := New("SAR", nil, []Category{
		{Name: "a", Products: []Product{{Code: "1"}}},
		{Name: "b", Products: []Product{{Code: "1"}}},
	})
	if err == nil {
		t.Fatal("expected duplicate code error")
	}
}
