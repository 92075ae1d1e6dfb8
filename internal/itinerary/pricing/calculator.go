package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
)

// Options bound the percentage markup. The zero value restricts percentages
// to [0, 1].
type Options struct {
	// AllowPremium lets percentages exceed 100% up to MaxPercentage.
	AllowPremium  bool
	MaxPercentage decimal.Decimal
}

// Calculator turns day plans and a markup policy into a PricingSnapshot.
// It holds no mutable state and is safe for concurrent use.
type Calculator struct {
	maxPercentage decimal.Decimal
}

func NewCalculator(opts Options) *Calculator {
	max := decimal.NewFromInt(1)
	if opts.AllowPremium && opts.MaxPercentage.GreaterThan(max) {
		max = opts.MaxPercentage
	}
	return &Calculator{maxPercentage: max}
}

// MaxPercentage is the highest percentage the calculator accepts.
func (c *Calculator) MaxPercentage() decimal.Decimal { return c.maxPercentage }

// Compute sums every line cost and applies the markup policy.
func (c *Calculator) Compute(days []domain.DayPlan, policy domain.MarkupPolicy, currency string) (domain.PricingSnapshot, error) {
	base := decimal.Zero
	for _, d := range days {
		for j, item := range d.Items {
			if item.Cost.IsNegative() {
				return domain.PricingSnapshot{}, fmt.Errorf("%w: day %d item %d (%s) costs %s",
					domain.ErrInvalidCost, d.Position, j+1, item.Title, item.Cost.String())
			}
			base = base.Add(item.Cost)
		}
	}

	markup, err := c.markup(base, policy)
	if err != nil {
		return domain.PricingSnapshot{}, err
	}

	sell := base.Add(markup)
	ratio := decimal.Zero
	if sell.IsPositive() {
		ratio = markup.Div(sell)
	}

	return domain.PricingSnapshot{
		BaseCost:    base,
		MarkupValue: markup,
		SellPrice:   sell,
		Margin:      markup,
		MarginRatio: ratio,
		Currency:    currency,
	}, nil
}

func (c *Calculator) markup(base decimal.Decimal, policy domain.MarkupPolicy) (decimal.Decimal, error) {
	switch policy.Kind {
	case domain.MarkupFlat:
		if policy.Amount.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: flat amount %s is negative", domain.ErrInvalidPolicy, policy.Amount.String())
		}
		return policy.Amount, nil
	case domain.MarkupPercentage:
		p := policy.Percentage
		if p.IsNegative() || p.GreaterThan(c.maxPercentage) {
			return decimal.Zero, fmt.Errorf("%w: percentage %s outside [0, %s]",
				domain.ErrInvalidPolicy, p.String(), c.maxPercentage.String())
		}
		return base.Mul(p), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidPolicy, policy.Kind)
	}
}

// Quote prices a whole itinerary: the day plans under its markup policy plus
// the separate total of its optional extensions.
func (c *Calculator) Quote(it domain.Itinerary) (domain.PricingSnapshot, error) {
	snap, err := c.Compute(it.Days, it.Markup, it.Currency)
	if err != nil {
		return domain.PricingSnapshot{}, err
	}
	extras := decimal.Zero
	for i, e := range it.Extensions {
		if e.AdditionalCost.IsNegative() {
			return domain.PricingSnapshot{}, fmt.Errorf("%w: extension %d (%s) costs %s",
				domain.ErrInvalidCost, i+1, e.Title, e.AdditionalCost.String())
		}
		extras = extras.Add(e.AdditionalCost)
	}
	snap.ExtensionsTotal = extras
	return snap, nil
}
