// Package cart holds the per-session cart aggregate and its persistence.
package cart

import (
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/noah-isme/giftset-storefront/internal/catalog"
	"github.com/noah-isme/giftset-storefront/internal/common"
	"github.com/noah-isme/giftset-storefront/internal/pricing"
	"github.com/noah-isme/giftset-storefront/internal/promo"
)

// ErrNotFound indicates the requested line is not in the cart.
var ErrNotFound = errors.New("cart line not found")

// LineItem is a product snapshot with a quantity and optional customization.
type LineItem struct {
	catalog.Product
	Quantity         int      `json:"quantity"`
	Key              string   `json:"key"`
	TesterSelections []string `json:"testerSelections,omitempty"`
}

var selectionEscaper = strings.NewReplacer(`\`, `\\`, "|", `\|`)

// LineKey derives the composite identity of a line. Selections are escaped
// so distinct selection lists never share a key.
func LineKey(productID int64, selections []string) string {
	id := strconv.FormatInt(productID, 10)
	if len(selections) == 0 {
		return id
	}
	escaped := make([]string, len(selections))
	for i, s := range selections {
		escaped[i] = selectionEscaper.Replace(s)
	}
	return id + "::" + strings.Join(escaped, "|")
}

func (li LineItem) clone() LineItem {
	li.TesterSelections = append([]string(nil), li.TesterSelections...)
	li.Categories = append([]catalog.Category(nil), li.Categories...)
	li.Attributes = append([]catalog.Attribute(nil), li.Attributes...)
	return li
}

// State is the persisted shape of a cart.
type State struct {
	Items     []LineItem        `json:"items"`
	Promotion *promo.Descriptor `json:"promotion"`
	IsOpen    bool              `json:"isOpen"`
}

// Aggregate is a shopper's cart. All methods are safe for concurrent use.
type Aggregate struct {
	mu        sync.RWMutex
	items     []LineItem
	promotion *promo.Descriptor
	open      bool
}

// New returns an empty, closed cart.
func New() *Aggregate {
	return &Aggregate{}
}

// Restore rebuilds an aggregate from persisted state. Lines without a key get
// one derived from their product and selections; lines sharing a key merge.
func Restore(state State) *Aggregate {
	a := New()
	index := make(map[string]int, len(state.Items))
	for _, li := range state.Items {
		if li.Quantity < 1 {
			continue
		}
		if strings.TrimSpace(li.Key) == "" {
			li.Key = LineKey(li.DatabaseID, li.TesterSelections)
		}
		if pos, ok := index[li.Key]; ok {
			a.items[pos].Quantity += li.Quantity
			continue
		}
		index[li.Key] = len(a.items)
		a.items = append(a.items, li.clone())
	}
	if state.Promotion != nil {
		d := state.Promotion.Clone()
		a.promotion = &d
	}
	a.open = state.IsOpen
	return a
}

// Snapshot returns the persisted form of the cart.
func (a *Aggregate) Snapshot() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return State{Items: a.itemsLocked(), Promotion: a.promotionLocked(), IsOpen: a.open}
}

// AddItem increments the line matching product and selections or appends a
// new line with quantity one. The cart is opened. The line key is returned.
func (a *Aggregate) AddItem(product catalog.Product, selections ...string) string {
	key := LineKey(product.DatabaseID, selections)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.open = true
	for i := range a.items {
		if a.items[i].Key == key {
			a.items[i].Quantity++
			return key
		}
	}
	a.items = append(a.items, LineItem{
		Product:          product,
		Quantity:         1,
		Key:              key,
		TesterSelections: append([]string(nil), selections...),
	}.clone())
	return key
}

// UpdateQuantity sets the quantity of the line. Non-positive quantities
// remove it.
func (a *Aggregate) UpdateQuantity(key string, qty int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.items {
		if a.items[i].Key != key {
			continue
		}
		if qty <= 0 {
			a.items = append(a.items[:i], a.items[i+1:]...)
			return nil
		}
		a.items[i].Quantity = qty
		return nil
	}
	return ErrNotFound
}

// RemoveItem drops the line if present.
func (a *Aggregate) RemoveItem(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.items {
		if a.items[i].Key == key {
			a.items = append(a.items[:i], a.items[i+1:]...)
			return
		}
	}
}

// Clear empties lines and promotion together.
func (a *Aggregate) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = nil
	a.promotion = nil
}

// SetPromotion attaches d after checking every selection is in the cart.
func (a *Aggregate) SetPromotion(d promo.Descriptor) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !d.ResolvesTo(a.quantitiesLocked()) {
		return common.NewValidationError("promotion", common.ErrSelectionUnavailable)
	}
	if def, ok := promo.Lookup(d.Code); ok && d.Label == "" {
		d.Label = def.Label
	}
	d = d.Clone()
	a.promotion = &d
	a.open = true
	return nil
}

// ClearPromotion detaches the promotion, keeping the lines.
func (a *Aggregate) ClearPromotion() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.promotion = nil
}

// Toggle flips the visibility flag and returns the new value.
func (a *Aggregate) Toggle() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.open = !a.open
	return a.open
}

// SetOpen sets the visibility flag.
func (a *Aggregate) SetOpen(open bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.open = open
}

// IsOpen reports the visibility flag.
func (a *Aggregate) IsOpen() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.open
}

// Items returns a copy of the lines in insertion order.
func (a *Aggregate) Items() []LineItem {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.itemsLocked()
}

// Promotion returns a copy of the attached promotion, or nil.
func (a *Aggregate) Promotion() *promo.Descriptor {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.promotionLocked()
}

// Len returns the number of lines.
func (a *Aggregate) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}

// Quantities sums line quantities per product id.
func (a *Aggregate) Quantities() map[int64]int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.quantitiesLocked()
}

// PricingItems converts the lines for the pricing calculator.
func (a *Aggregate) PricingItems() []pricing.Item {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]pricing.Item, 0, len(a.items))
	for _, li := range a.items {
		out = append(out, pricing.Item{Product: li.Product, Quantity: li.Quantity})
	}
	return out
}

// Totals prices the cart with calc.
func (a *Aggregate) Totals(calc *pricing.Calculator) pricing.Totals {
	return calc.ComputeTotals(a.PricingItems(), a.Promotion())
}

func (a *Aggregate) itemsLocked() []LineItem {
	out := make([]LineItem, 0, len(a.items))
	for _, li := range a.items {
		out = append(out, li.clone())
	}
	return out
}

func (a *Aggregate) promotionLocked() *promo.Descriptor {
	if a.promotion == nil {
		return nil
	}
	d := a.promotion.Clone()
	return &d
}

func (a *Aggregate) quantitiesLocked() map[int64]int {
	out := make(map[int64]int, len(a.items))
	for _, li := range a.items {
		out[li.DatabaseID] += li.Quantity
	}
	return out
}
