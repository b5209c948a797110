// Package pricing computes cart totals and promotional discounts. Compute is
// a pure function of its input: recomputing with identical inputs always
// yields identical totals, which is what makes completed transactions
// auditable after the fact.
package pricing

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/clickmaster4285/POS-Clothing-sub000/internal/domain"
)

type Input struct {
	Items      []domain.CartItem
	Promotions []domain.Promotion
	CouponCode string
	// Categories maps SKU to catalog category, needed for category-scoped
	// promotions. Missing entries simply never match a category scope.
	Categories     map[string]string
	TaxRatePercent float64
	Now            time.Time
}

type Result struct {
	Totals domain.Totals
	// LineDiscounts holds the full discount allocated to each non-voided
	// line (manual plus promotional), keyed by LineID.
	LineDiscounts map[string]int64
	Applied       []domain.PromotionApplication
}

// Compute prices the non-voided lines of a cart against the promotion set
// valid at in.Now. Discounts never drive a line below zero; the only
// permitted clamp on the way out is grand total at zero. Any other negative
// intermediate fails with ErrBusinessRule rather than being corrected.
func Compute(in Input) (Result, error) {
	lines := make([]domain.CartItem, 0, len(in.Items))
	for _, item := range in.Items {
		if item.Voided {
			continue
		}
		lines = append(lines, item)
	}

	var subtotal int64
	remaining := make(map[string]int64, len(lines))
	discounts := make(map[string]int64, len(lines))
	var discountTotal int64

	for _, line := range lines {
		if line.Qty <= 0 {
			return Result{}, fmt.Errorf("%w: line %s has non-positive quantity %d", domain.ErrValidation, line.LineID, line.Qty)
		}
		if line.UnitPriceCents < 0 {
			return Result{}, fmt.Errorf("%w: line %s has negative unit price", domain.ErrBusinessRule, line.LineID)
		}
		lineSubtotal := line.UnitPriceCents * int64(line.Qty)
		if line.ManualDiscountCents < 0 || line.ManualDiscountCents > lineSubtotal {
			return Result{}, fmt.Errorf("%w: manual discount on line %s exceeds line subtotal", domain.ErrBusinessRule, line.LineID)
		}
		subtotal += lineSubtotal
		remaining[line.LineID] = lineSubtotal - line.ManualDiscountCents
		discounts[line.LineID] = line.ManualDiscountCents
		discountTotal += line.ManualDiscountCents
	}

	applied := make([]domain.PromotionApplication, 0, 4)
	exclusiveApplied := false

	apply := func(promo domain.Promotion) error {
		if exclusiveApplied {
			return nil
		}
		if promo.Exclusive && len(applied) > 0 {
			return nil
		}
		eligible := eligibleLines(lines, promo, in.Categories)
		if len(eligible) == 0 {
			return nil
		}
		discount, err := promoDiscount(promo, eligible, remaining, discounts)
		if err != nil {
			return err
		}
		if discount == 0 {
			return nil
		}
		discountTotal += discount
		applied = append(applied, domain.PromotionApplication{
			PromotionID:   promo.ID,
			Name:          promo.Name,
			DiscountCents: discount,
		})
		if promo.Exclusive {
			exclusiveApplied = true
		}
		return nil
	}

	for _, promo := range orderedAutoApply(in.Promotions, in.Now) {
		if err := apply(promo); err != nil {
			return Result{}, err
		}
	}

	if code := strings.TrimSpace(in.CouponCode); code != "" {
		promo, ok := matchCoupon(in.Promotions, code, in.Now)
		if !ok {
			return Result{}, fmt.Errorf("%w: coupon %q does not match an active promotion", domain.ErrBusinessRule, code)
		}
		if err := apply(promo); err != nil {
			return Result{}, err
		}
	}

	if discountTotal > subtotal {
		return Result{}, fmt.Errorf("%w: discount total %d exceeds subtotal %d", domain.ErrBusinessRule, discountTotal, subtotal)
	}

	taxBase := subtotal - discountTotal
	// Tax rounds half up on the discounted base. Changing this breaks
	// receipt parity with the ledger, so it stays fixed.
	taxTotal := roundHalfUp(float64(taxBase) * in.TaxRatePercent / 100)
	grandTotal := subtotal - discountTotal + taxTotal
	if grandTotal < 0 {
		grandTotal = 0
	}

	return Result{
		Totals: domain.Totals{
			SubtotalCents:      subtotal,
			DiscountTotalCents: discountTotal,
			TaxTotalCents:      taxTotal,
			GrandTotalCents:    grandTotal,
		},
		LineDiscounts: discounts,
		Applied:       applied,
	}, nil
}

// orderedAutoApply returns the auto-apply promotions valid at now, highest
// priority first, ties broken by earliest creation for deterministic stacking.
func orderedAutoApply(promos []domain.Promotion, now time.Time) []domain.Promotion {
	candidates := make([]domain.Promotion, 0, len(promos))
	for _, promo := range promos {
		if promo.AutoApply && promo.ValidAt(now) {
			candidates = append(candidates, promo)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	return candidates
}

func matchCoupon(promos []domain.Promotion, code string, now time.Time) (domain.Promotion, bool) {
	for _, promo := range promos {
		if promo.AutoApply || promo.CouponCode == "" {
			continue
		}
		if !strings.EqualFold(promo.CouponCode, code) {
			continue
		}
		if !promo.ValidAt(now) {
			continue
		}
		return promo, true
	}
	return domain.Promotion{}, false
}

// eligibleLines filters non-voided lines by promotion scope and excludes
// manually-discounted lines from further promotional stacking unless the
// line's ItemsApplyFurther flag allows it.
func eligibleLines(lines []domain.CartItem, promo domain.Promotion, categories map[string]string) []domain.CartItem {
	eligible := make([]domain.CartItem, 0, len(lines))
	for _, line := range lines {
		if line.ManualDiscountCents > 0 && !line.ItemsApplyFurther {
			continue
		}
		switch promo.Scope {
		case domain.ScopeAll:
		case domain.ScopeCategory:
			if categories[line.SKU] != promo.ScopeCategory {
				continue
			}
		case domain.ScopeItemList:
			if !slices.Contains(promo.ScopeSKUs, line.SKU) {
				continue
			}
		default:
			continue
		}
		eligible = append(eligible, line)
	}
	return eligible
}

func promoDiscount(promo domain.Promotion, eligible []domain.CartItem, remaining map[string]int64, discounts map[string]int64) (int64, error) {
	switch promo.Type {
	case domain.PromoPercentage:
		return percentageDiscount(promo, eligible, remaining, discounts), nil
	case domain.PromoFixed:
		return fixedDiscount(promo.AmountValue, eligible, remaining, discounts), nil
	case domain.PromoBOGO:
		return bogoDiscount(eligible, remaining, discounts), nil
	case domain.PromoMixMatch:
		return mixMatchDiscount(promo, eligible, remaining, discounts), nil
	default:
		return 0, fmt.Errorf("%w: unknown promotion type %q", domain.ErrValidation, promo.Type)
	}
}

func percentageDiscount(promo domain.Promotion, eligible []domain.CartItem, remaining map[string]int64, discounts map[string]int64) int64 {
	if promo.AmountValue <= 0 {
		return 0
	}
	var total int64
	for _, line := range eligible {
		d := roundHalfUp(float64(remaining[line.LineID]) * float64(promo.AmountValue) / 100)
		if d > remaining[line.LineID] {
			d = remaining[line.LineID]
		}
		if d <= 0 {
			continue
		}
		remaining[line.LineID] -= d
		discounts[line.LineID] += d
		total += d
	}
	return total
}

// fixedDiscount spreads a flat amount across eligible lines in cart order,
// capped at what each line has left. The cap guarantees a fixed discount can
// never drive the eligible subtotal negative.
func fixedDiscount(amount int64, eligible []domain.CartItem, remaining map[string]int64, discounts map[string]int64) int64 {
	if amount <= 0 {
		return 0
	}
	var total int64
	left := amount
	for _, line := range eligible {
		if left == 0 {
			break
		}
		d := min(left, remaining[line.LineID])
		if d <= 0 {
			continue
		}
		remaining[line.LineID] -= d
		discounts[line.LineID] += d
		total += d
		left -= d
	}
	return total
}

type unit struct {
	lineID     string
	priceCents int64
}

// bogoDiscount expands eligible lines into individual units, pairs them from
// the most expensive down, and gives away the cheaper unit of each pair.
func bogoDiscount(eligible []domain.CartItem, remaining map[string]int64, discounts map[string]int64) int64 {
	units := expandUnits(eligible)
	sort.SliceStable(units, func(i, j int) bool { return units[i].priceCents > units[j].priceCents })

	var total int64
	for i := 1; i < len(units); i += 2 {
		cheaper := units[i]
		d := min(cheaper.priceCents, remaining[cheaper.lineID])
		if d <= 0 {
			continue
		}
		remaining[cheaper.lineID] -= d
		discounts[cheaper.lineID] += d
		total += d
	}
	return total
}

// mixMatchDiscount grants AmountValue cents per complete group of
// MixMatchThreshold qualifying units, allocated cheapest units first.
func mixMatchDiscount(promo domain.Promotion, eligible []domain.CartItem, remaining map[string]int64, discounts map[string]int64) int64 {
	if promo.MixMatchThreshold <= 0 || promo.AmountValue <= 0 {
		return 0
	}
	units := expandUnits(eligible)
	groups := len(units) / promo.MixMatchThreshold
	if groups == 0 {
		return 0
	}
	sort.SliceStable(units, func(i, j int) bool { return units[i].priceCents < units[j].priceCents })

	var total int64
	left := int64(groups) * promo.AmountValue
	for _, u := range units {
		if left == 0 {
			break
		}
		d := min(left, remaining[u.lineID])
		if d <= 0 {
			continue
		}
		remaining[u.lineID] -= d
		discounts[u.lineID] += d
		total += d
		left -= d
	}
	return total
}

func expandUnits(lines []domain.CartItem) []unit {
	units := make([]unit, 0, len(lines))
	for _, line := range lines {
		for i := 0; i < line.Qty; i++ {
			units = append(units, unit{lineID: line.LineID, priceCents: line.UnitPriceCents})
		}
	}
	return units
}

func roundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}
