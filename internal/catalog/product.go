package catalog

import "strings"

// StockStatus mirrors the upstream stock enum.
type StockStatus string

const (
	InStock    StockStatus = "IN_STOCK"
	OutOfStock StockStatus = "OUT_OF_STOCK"
)

// Category is a name/slug membership of a product.
type Category struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Attribute is a named option list, used for tester-slot selection.
type Attribute struct {
	Name    string   `json:"name"`
	Options []string `json:"options"`
}

// Product is an immutable snapshot returned by the catalog.
type Product struct {
	ID           string      `json:"id"`
	DatabaseID   int64       `json:"databaseId"`
	Slug         string      `json:"slug"`
	Name         string      `json:"name"`
	Price        string      `json:"price"`
	RegularPrice string      `json:"regularPrice,omitempty"`
	StockStatus  StockStatus `json:"stockStatus,omitempty"`
	Categories   []Category  `json:"categories,omitempty"`
	Attributes   []Attribute `json:"attributes,omitempty"`
}

// InCategory reports whether the product belongs to the category slug.
func (p Product) InCategory(slug string) bool {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return false
	}
	for _, c := range p.Categories {
		if strings.EqualFold(c.Slug, slug) {
			return true
		}
	}
	return false
}

// InStock reports whether the product can be ordered. An absent status is
// treated as in stock since listing queries do not always select it.
func (p Product) InStock() bool {
	return p.StockStatus != OutOfStock
}

// Index maps products by their numeric identifier, skipping unusable ids.
func Index(products []Product) map[int64]Product {
	out := make(map[int64]Product, len(products))
	for _, p := range products {
		if p.DatabaseID > 0 {
			out[p.DatabaseID] = p
		}
	}
	return out
}
