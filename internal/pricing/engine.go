// Package pricing computes cart totals and applies the gift-set offers.
package pricing

import (
	"html"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/noah-isme/giftset-storefront/internal/catalog"
	"github.com/noah-isme/giftset-storefront/internal/promo"
)

var (
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	numberPattern = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	half          = decimal.NewFromFloat(0.5)
	printer       = message.NewPrinter(language.English)
)

// CurrencyPrefix is prepended by FormatPrice.
const CurrencyPrefix = "Rs "

// ParsePrice extracts the first numeric amount from a display price such as
// "<span>&#8360;&nbsp;2,700</span>". Unparseable input yields zero.
func ParsePrice(raw string) decimal.Decimal {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero
	}
	text := tagPattern.ReplaceAllString(raw, " ")
	text = html.UnescapeString(text)
	text = tagPattern.ReplaceAllString(text, " ")
	token := numberPattern.FindString(text)
	if token == "" {
		return decimal.Zero
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(token, ",", ""))
	if err != nil {
		return decimal.Zero
	}
	return amount
}

// FormatPrice renders amount as "Rs 2,700", keeping two decimals only when
// the amount has a fractional part.
func FormatPrice(amount decimal.Decimal) string {
	if amount.Equal(amount.Truncate(0)) {
		return CurrencyPrefix + printer.Sprintf("%d", amount.IntPart())
	}
	return CurrencyPrefix + printer.Sprintf("%.2f", amount.Round(2).InexactFloat64())
}

// Item is a priced cart line.
type Item struct {
	Product  catalog.Product
	Quantity int
}

// Totals aggregates computed pricing components. Applied reports whether the
// promotion resolved against the items; the discount may still be zero when
// the selected items already cost no more than the offer price.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
	Applied  bool            `json:"applied"`
}

// Calculator applies offer definitions using a category classifier.
type Calculator struct {
	classifier promo.Classifier
}

// NewCalculator constructs a Calculator. A nil classifier falls back to the
// slug classifier without aliases.
func NewCalculator(classifier promo.Classifier) *Calculator {
	if classifier == nil {
		classifier = promo.SlugClassifier{}
	}
	return &Calculator{classifier: classifier}
}

// halfOffItem picks the selection the half-off applies to. A selection that
// is catalogued in the target category wins over one the classifier only
// matches by slug, whatever the selection order.
func (c *Calculator) halfOffItem(selections []int64, products map[int64]catalog.Product, target string) (int64, bool) {
	for _, id := range selections {
		if products[id].InCategory(target) {
			return id, true
		}
	}
	for _, id := range selections {
		if c.classifier.Matches(products[id], target) {
			return id, true
		}
	}
	return 0, false
}

// ComputeTotals calculates totals for items and the optional promotion. It never
// fails: unparseable prices count as zero and a promotion that does not
// resolve against the items is ignored.
func (c *Calculator) ComputeTotals(items []Item, promotion *promo.Descriptor) Totals {
	subtotal := decimal.Zero
	quantities := make(map[int64]int, len(items))
	unitPrices := make(map[int64]decimal.Decimal, len(items))
	products := make(map[int64]catalog.Product, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		price := ParsePrice(it.Product.Price)
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		id := it.Product.DatabaseID
		quantities[id] += it.Quantity
		if _, ok := unitPrices[id]; !ok {
			unitPrices[id] = price
			products[id] = it.Product
		}
	}

	totals := Totals{Subtotal: subtotal, Discount: decimal.Zero, Total: subtotal}
	if promotion == nil || !promotion.ResolvesTo(quantities) {
		return totals
	}
	def, ok := promo.Lookup(promotion.Code)
	if !ok {
		return totals
	}

	discount := decimal.Zero
	switch def.Kind {
	case promo.FixedBundle:
		selected := decimal.Zero
		for _, id := range promotion.Selections {
			selected = selected.Add(unitPrices[id])
		}
		discount = decimal.Max(decimal.Zero, selected.Sub(def.BundlePrice))
	case promo.HalfOff:
		if id, ok := c.halfOffItem(promotion.Selections, products, def.Target); ok {
			discount = unitPrices[id].Mul(half)
		}
	}

	totals.Applied = true
	totals.Discount = discount
	totals.Total = decimal.Max(decimal.Zero, subtotal.Sub(discount))
	return totals
}
