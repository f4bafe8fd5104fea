package checkout

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/giftset-storefront/internal/order"
	"github.com/noah-isme/giftset-storefront/internal/pricing"
	"github.com/noah-isme/giftset-storefront/internal/promo"
)

// PromotionMetaKey is the order metadata key carrying the promotion note.
const PromotionMetaKey = "_giftset_promotion"

// NoteStatus records how the promotion was honoured on the order.
type NoteStatus string

const (
	// StatusUnconfigured means no coupon is mapped to the offer.
	StatusUnconfigured NoteStatus = "unconfigured"
	// StatusCouponNotFound means the mapped coupon does not exist upstream.
	StatusCouponNotFound NoteStatus = "coupon_not_found"
	// StatusCouponError means applying the coupon failed for another reason.
	StatusCouponError NoteStatus = "coupon_error"
	// StatusApplied means the coupon was applied to the order.
	StatusApplied NoteStatus = "applied"
	// StatusInapplicable means the promotion no longer matched the cart.
	StatusInapplicable NoteStatus = "inapplicable"
)

// NeedsManualAdjustment reports whether an operator must apply the discount.
func (s NoteStatus) NeedsManualAdjustment() bool {
	return s == StatusUnconfigured || s == StatusCouponNotFound || s == StatusCouponError
}

// PromotionNote is attached to orders that carry a promotion so operators
// can reconcile the discount when no coupon did it upstream.
type PromotionNote struct {
	Offer       promo.Code       `json:"offer"`
	Label       string           `json:"label"`
	TargetPrice *decimal.Decimal `json:"targetPrice,omitempty"`
	Subtotal    decimal.Decimal  `json:"subtotal"`
	Discount    decimal.Decimal  `json:"discount"`
	Total       decimal.Decimal  `json:"total"`
	Selections  []int64          `json:"selections"`
	Coupon      string           `json:"coupon,omitempty"`
	Status      NoteStatus       `json:"status"`
	Error       string           `json:"error,omitempty"`
}

func newPromotionNote(d promo.Descriptor, totals pricing.Totals) PromotionNote {
	note := PromotionNote{
		Offer:      d.Code,
		Label:      d.Label,
		Subtotal:   totals.Subtotal,
		Discount:   totals.Discount,
		Total:      totals.Total,
		Selections: append([]int64(nil), d.Selections...),
	}
	if def, ok := promo.Lookup(d.Code); ok {
		if note.Label == "" {
			note.Label = def.Label
		}
		if def.IsBundle() {
			price := def.BundlePrice
			note.TargetPrice = &price
		}
	}
	return note
}

// withCoupon folds the coupon outcome into the note.
func (n PromotionNote) withCoupon(res order.CouponResult) PromotionNote {
	switch res.Status {
	case order.CouponApplied:
		n.Status = StatusApplied
	case order.CouponNotFound:
		n.Status = StatusCouponNotFound
	case order.CouponError:
		n.Status = StatusCouponError
		n.Error = res.Message
	default:
		if n.Status == "" {
			n.Status = StatusUnconfigured
		}
	}
	return n
}

// Summary is the one-line operator text for the order note.
func (n PromotionNote) Summary() string {
	parts := []string{"[Promotion] " + n.Label}
	if n.Discount.IsPositive() {
		parts = append(parts, "discount "+pricing.FormatPrice(n.Discount))
	}
	parts = append(parts, "total "+pricing.FormatPrice(n.Total), "status "+string(n.Status))
	if n.Status.NeedsManualAdjustment() {
		parts = append(parts, "apply discount manually")
	}
	return strings.Join(parts, " | ")
}

func (n PromotionNote) annotation(shopperNote string) order.Annotation {
	payload, err := json.Marshal(n)
	if err != nil {
		payload = []byte(`{}`)
	}
	lines := make([]string, 0, 3)
	if note := strings.TrimSpace(shopperNote); note != "" {
		lines = append(lines, note)
	}
	lines = append(lines, n.Summary(), string(payload))
	return order.Annotation{
		CustomerNote: strings.Join(lines, "\n\n"),
		MetaData:     []order.MetaData{{Key: PromotionMetaKey, Value: string(payload)}},
	}
}
