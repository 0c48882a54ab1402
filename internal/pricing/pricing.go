// Package pricing derives the order summary shown in the cart and at checkout.
//
// A Summary is never edited in place: after every cart mutation the whole
// summary is recomputed from the current line items and replaces the old one.
package pricing

import (
	"fmt"

	"github.com/dukerupert/bazaar/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	// DefaultFreeDeliveryThreshold is the subtotal a cart must exceed for free delivery.
	DefaultFreeDeliveryThreshold = decimal.NewFromInt(1000)

	// DefaultDeliveryFee is the flat fee charged at or below the threshold.
	DefaultDeliveryFee = decimal.NewFromInt(50)

	// DefaultTaxRate applies to the subtotal only. Delivery is not taxed.
	DefaultTaxRate = decimal.RequireFromString("0.18")
)

// taxPlaces is the precision tax is rounded to (half away from zero).
const taxPlaces = 2

// Rules are the business constants the summary is computed from.
type Rules struct {
	FreeDeliveryThreshold decimal.Decimal
	DeliveryFee           decimal.Decimal
	TaxRate               decimal.Decimal
}

// Summary is the derived price breakdown of a list of line items.
type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Delivery decimal.Decimal `json:"delivery"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// FreeDelivery reports whether the summary qualified for free delivery.
func (s Summary) FreeDelivery() bool {
	return s.Delivery.IsZero()
}

// DefaultRules returns the storefront's standard pricing rules.
func DefaultRules() Rules {
	return Rules{
		FreeDeliveryThreshold: DefaultFreeDeliveryThreshold,
		DeliveryFee:           DefaultDeliveryFee,
		TaxRate:               DefaultTaxRate,
	}
}

// ParseRules builds rules from decimal strings, typically configuration values.
func ParseRules(threshold, fee, rate string) (Rules, error) {
	t, err := decimal.NewFromString(threshold)
	if err != nil {
		return Rules{}, fmt.Errorf("parse free delivery threshold %q: %w", threshold, err)
	}
	f, err := decimal.NewFromString(fee)
	if err != nil {
		return Rules{}, fmt.Errorf("parse delivery fee %q: %w", fee, err)
	}
	r, err := decimal.NewFromString(rate)
	if err != nil {
		return Rules{}, fmt.Errorf("parse tax rate %q: %w", rate, err)
	}

	rules := Rules{FreeDeliveryThreshold: t, DeliveryFee: f, TaxRate: r}
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// Validate rejects rules that could produce a negative or nonsensical total.
func (r Rules) Validate() error {
	switch {
	case r.FreeDeliveryThreshold.IsNegative():
		return fmt.Errorf("free delivery threshold must not be negative")
	case r.DeliveryFee.IsNegative():
		return fmt.Errorf("delivery fee must not be negative")
	case r.TaxRate.IsNegative() || r.TaxRate.GreaterThan(decimal.NewFromInt(1)):
		return fmt.Errorf("tax rate must be between 0 and 1")
	}
	return nil
}

// ComputeSummary prices items with DefaultRules.
func ComputeSummary(items []domain.CartLineItem) Summary {
	return DefaultRules().Compute(items)
}

// Compute prices items. It is pure and deterministic.
//
// Delivery is free only when the subtotal is strictly greater than the
// threshold; a subtotal equal to the threshold still pays the fee. An empty
// list owes nothing at all.
func (r Rules) Compute(items []domain.CartLineItem) Summary {
	if len(items) == 0 {
		return Summary{
			Subtotal: decimal.Zero,
			Delivery: decimal.Zero,
			Tax:      decimal.Zero,
			Total:    decimal.Zero,
		}
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}

	delivery := r.DeliveryFee
	if subtotal.GreaterThan(r.FreeDeliveryThreshold) {
		delivery = decimal.Zero
	}

	tax := subtotal.Mul(r.TaxRate).Round(taxPlaces)

	return Summary{
		Subtotal: subtotal,
		Delivery: delivery,
		Tax:      tax,
		Total:    subtotal.Add(delivery).Add(tax),
	}
}
