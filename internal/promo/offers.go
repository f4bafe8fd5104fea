// Package promo holds the closed table of gift-set offers, the category
// classifier used to match half-off targets, and the promotion descriptor
// attached to a cart.
package promo

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/giftset-storefront/internal/common"
)

// Code identifies one of the supported offers.
type Code string

const (
	Gift3Eco       Code = "gift_3_eco"
	Gift3Pro       Code = "gift_3_pro"
	ProHalfEco     Code = "pro_half_eco"
	ProHalfTesters Code = "pro_half_testers"
)

// Kind selects the discount formula of an offer.
type Kind string

const (
	// FixedBundle sells the selected items together for a fixed price.
	FixedBundle Kind = "fixed_bundle"
	// HalfOff discounts the first selected item matching the target by 50%.
	HalfOff Kind = "half_off"
)

// Pool names the product listing a selection step draws from.
type Pool string

const (
	PoolEco    Pool = "eco"
	PoolPro    Pool = "pro"
	PoolTester Pool = "tester"
)

// TargetTesters is the half-off target for the testers pack.
const TargetTesters = "testers"

// StepDef describes one slot of an offer.
type StepDef struct {
	Key   string `json:"key"`
	Pool  Pool   `json:"pool"`
	Label string `json:"label"`
}

// Definition is the static description of an offer.
type Definition struct {
	Code        Code            `json:"code"`
	Label       string          `json:"label"`
	Kind        Kind            `json:"kind"`
	BundlePrice decimal.Decimal `json:"bundlePrice"`
	Target      string          `json:"target,omitempty"`
	Steps       []StepDef       `json:"steps"`
}

// IsBundle reports whether the offer sells its selections for a fixed price.
func (d Definition) IsBundle() bool { return d.Kind == FixedBundle }

var definitions = []Definition{
	{
		Code:        Gift3Eco,
		Label:       "Gift Set: 3 ECO for Rs 4500",
		Kind:        FixedBundle,
		BundlePrice: decimal.NewFromInt(4500),
		Steps:       poolSteps("eco", PoolEco, "Select ECO perfume %d", 3),
	},
	{
		Code:        Gift3Pro,
		Label:       "Gift Set: 3 PRO for Rs 6500",
		Kind:        FixedBundle,
		BundlePrice: decimal.NewFromInt(6500),
		Steps:       poolSteps("pro", PoolPro, "Select PRO perfume %d", 3),
	},
	{
		Code:   ProHalfEco,
		Label:  "Offer: Buy PRO + 50% off ECO",
		Kind:   HalfOff,
		Target: string(PoolEco),
		Steps: append(
			poolSteps("pro", PoolPro, "Select PRO perfume %d", 1),
			poolSteps("eco", PoolEco, "Select ECO perfume %d", 1)...,
		),
	},
	{
		Code:   ProHalfTesters,
		Label:  "Offer: Buy PRO + 50% off Testers Pack",
		Kind:   HalfOff,
		Target: TargetTesters,
		Steps: append(
			poolSteps("pro", PoolPro, "Select PRO perfume %d", 1),
			poolSteps("tester", PoolTester, "Select tester %d of 5", 5)...,
		),
	},
}

func poolSteps(prefix string, pool Pool, format string, n int) []StepDef {
	steps := make([]StepDef, 0, n)
	for i := 1; i <= n; i++ {
		steps = append(steps, StepDef{
			Key:   fmt.Sprintf("%s%d", prefix, i),
			Pool:  pool,
			Label: fmt.Sprintf(format, i),
		})
	}
	return steps
}

// Lookup returns the definition for code.
func Lookup(code Code) (Definition, bool) {
	for _, def := range definitions {
		if def.Code == code {
			return clone(def), true
		}
	}
	return Definition{}, false
}

// Definitions returns every offer in display order.
func Definitions() []Definition {
	out := make([]Definition, 0, len(definitions))
	for _, def := range definitions {
		out = append(out, clone(def))
	}
	return out
}

// Codes lists the supported offer codes.
func Codes() []Code {
	out := make([]Code, 0, len(definitions))
	for _, def := range definitions {
		out = append(out, def.Code)
	}
	return out
}

// ParseCode normalises raw and checks it against the closed set.
func ParseCode(raw string) (Code, error) {
	code := Code(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := Lookup(code); !ok {
		return "", common.NewValidationError("offer", common.ErrUnknownOffer)
	}
	return code, nil
}

func clone(def Definition) Definition {
	def.Steps = append([]StepDef(nil), def.Steps...)
	return def
}
