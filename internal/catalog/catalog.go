package catalog

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Product struct {
	Code        string             `mapstructure:"code" json:"code"`
	Name        string             `mapstructure:"name" json:"name"`
	Category    string             `mapstructure:"-" json:"category"`
	Units       []string           `mapstructure:"units" json:"units"`
	Conversions map[string]float64 `mapstructure:"conversions" json:"conversions"`
	SalesUnit   string             `mapstructure:"sales_unit" json:"salesUnit"`
	Price       float64            `mapstructure:"price" json:"price"`
}

// Factor returns how many base units one unit of the given kind holds.
// Unknown units count as 1. Lookup ignores case since viper lowercases map keys.
func (p Product) Factor(unit string) float64 {
	for k, v := range p.Conversions {
		if strings.EqualFold(k, unit) && v > 0 {
			return v
		}
	}
	return 1
}

// DefaultUnit is the first selectable unit, used when a row has none.
func (p Product) DefaultUnit() string {
	if len(p.Units) == 0 {
		return p.SalesUnit
	}
	return p.Units[0]
}

type Category struct {
	Name     string    `mapstructure:"name"`
	Products []Product `mapstructure:"products"`
}

type Catalog struct {
	Currency   string     `mapstructure:"currency"`
	Routes     []string   `mapstructure:"routes"`
	Categories []Category `mapstructure:"categories"`

	byCode map[string]Product
}

// New builds an indexed catalog. Product codes must be unique.
func New(currency string, routes []string, categories []Category) (*Catalog, error) {
	c := &Catalog{Currency: currency, Routes: routes, Categories: categories}
	if err := c.index(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads a catalog yaml file.
func Load(path string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var c Catalog
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() error {
	c.byCode = make(map[string]Product)
	for ci := range c.Categories {
		cat := &c.Categories[ci]
		for pi := range cat.Products {
			p := &cat.Products[pi]
			p.Category = cat.Name
			if p.SalesUnit == "" {
				p.SalesUnit = p.DefaultUnit()
			}
			if _, dup := c.byCode[p.Code]; dup {
				return fmt.Errorf("duplicate product code %s", p.Code)
			}
			c.byCode[p.Code] = *p
		}
	}
	return nil
}

func (c *Catalog) Product(code string) (Product, bool) {
	p, ok := c.byCode[code]
	return p, ok
}

// Products returns every product in catalog order.
func (c *Catalog) Products() []Product {
	out := make([]Product, 0, len(c.byCode))
	for _, cat := range c.Categories {
		out = append(out, cat.Products...)
	}
	return out
}

// Factor is a convenience for Product(code).Factor(unit).
func (c *Catalog) Factor(code, unit string) float64 {
	p, ok := c.byCode[code]
	if !ok {
		return 1
	}
	return p.Factor(unit)
}

func (c *Catalog) HasRoute(route string) bool {
	if len(c.Routes) == 0 {
		return route != ""
	}
	for _, r := range c.Routes {
		if r == route {
			return true
		}
	}
	return false
}
