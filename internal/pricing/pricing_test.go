package pricing

import (
	"errors"
	"testing"
	"time"

	"github.com/clickmaster4285/POS-Clothing-sub000/internal/domain"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func validPromo(promo domain.Promotion) domain.Promotion {
	promo.Active = true
	if promo.StartDate.IsZero() {
		promo.StartDate = testNow.Add(-time.Hour)
	}
	if promo.EndDate.IsZero() {
		promo.EndDate = testNow.Add(time.Hour)
	}
	if promo.Scope == "" {
		promo.Scope = domain.ScopeAll
	}
	return promo
}

func tee(lineID string, qty int) domain.CartItem {
	return domain.CartItem{LineID: lineID, SKU: "TSH-001-BLK-S", UnitPriceCents: 2999, Qty: qty}
}

func checkInvariant(t *testing.T, totals domain.Totals) {
	t.Helper()
	if totals.SubtotalCents-totals.DiscountTotalCents+totals.TaxTotalCents != totals.GrandTotalCents {
		t.Fatalf("totals invariant broken: %+v", totals)
	}
}

func TestComputePlainCart(t *testing.T) {
	result, err := Compute(Input{
		Items:          []domain.CartItem{tee("line-1", 2)},
		TaxRatePercent: 10,
		Now:            testNow,
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	want := domain.Totals{SubtotalCents: 5998, DiscountTotalCents: 0, TaxTotalCents: 600, GrandTotalCents: 6598}
	if result.Totals != want {
		t.Fatalf("totals = %+v, want %+v", result.Totals, want)
	}
	checkInvariant(t, result.Totals)
}

func TestComputePercentageAutoApply(t *testing.T) {
	result, err := Compute(Input{
		Items: []domain.CartItem{tee("line-1", 2)},
		Promotions: []domain.Promotion{
			validPromo(domain.Promotion{ID: "p1", Name: "Ten Off", Type: domain.PromoPercentage, AmountValue: 10, AutoApply: true}),
		},
		TaxRatePercent: 10,
		Now:            testNow,
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	want := domain.Totals{SubtotalCents: 5998, DiscountTotalCents: 600, TaxTotalCents: 540, GrandTotalCents: 5938}
	if result.Totals != want {
		t.Fatalf("totals = %+v, want %+v", result.Totals, want)
	}
	if result.LineDiscounts["line-1"] != 600 {
		t.Fatalf("line discount = %d, want 600", result.LineDiscounts["line-1"])
	}
	checkInvariant(t, result.Totals)
}

func TestComputeStackingOrder(t *testing.T) {
	// Higher priority applies first; the second percentage works on what the
	// first left behind.
	result, err := Compute(Input{
		Items: []domain.CartItem{{LineID: "line-1", SKU: "JNS-014-IND-32", UnitPriceCents: 10000, Qty: 1}},
		Promotions: []domain.Promotion{
			validPromo(domain.Promotion{ID: "low", Name: "Low", Type: domain.PromoPercentage, AmountValue: 10, AutoApply: true, Priority: 5, CreatedAt: testNow.Add(-2 * time.Hour)}),
			validPromo(domain.Promotion{ID: "high", Name: "High", Type: domain.PromoPercentage, AmountValue: 50, AutoApply: true, Priority: 10, CreatedAt: testNow.Add(-time.Hour)}),
		},
		TaxRatePercent: 0,
		Now:            testNow,
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	// 50% of 10000 = 5000, then 10% of the remaining 5000 = 500.
	if result.Totals.DiscountTotalCents != 5500 {
		t.Fatalf("discount = %d, want 5500", result.Totals.DiscountTotalCents)
	}
	if len(result.Applied) != 2 || result.Applied[0].PromotionID != "high" {
		t.Fatalf("applied order = %+v, want high first", result.Applied)
	}
}

func TestComputeExclusivePromotionStopsStacking(t *testing.T) {
	result, err := Compute(Input{
		Items: []domain.CartItem{tee("line-1", 2)},
		Promotions: []domain.Promotion{
			validPromo(domain.Promotion{ID: "excl", Name: "Exclusive Half", Type: domain.PromoPercentage, AmountValue: 50, AutoApply: true, Priority: 10, Exclusive: true}),
			validPromo(domain.Promotion{ID: "tail", Name: "Tail", Type: domain.PromoPercentage, AmountValue: 10, AutoApply: true, Priority: 5}),
		},
		TaxRatePercent: 0,
		Now:            testNow,
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(result.Applied) != 1 || result.Applied[0].PromotionID != "excl" {
		t.Fatalf("applied = %+v, want only the exclusive promotion", result.Applied)
	}
}

func TestComputeFixedDiscountCappedAtSubtotal(t *testing.T) {
	result, err := Compute(Input{
		Items: []domain.CartItem{{LineID: "line-1", SKU: "SCK-090-WHT-OS", UnitPriceCents: 899, Qty: 1}},
		Promotions: []domain.Promotion{
			validPromo(domain.Promotion{ID: "big", Name: "Big Fixed", Type: domain.PromoFixed, AmountValue: 5000, AutoApply: true}),
		},
		TaxRatePercent: 10,
		Now:            testNow,
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if result.Totals.DiscountTotalCents != 899 {
		t.Fatalf("discount = %d, want capped at 899", result.Totals.DiscountTotalCents)
	}
	if result.Totals.GrandTotalCents != 0 {
		t.Fatalf("grand = %d, want 0", result.Totals.GrandTotalCents)
	}
	checkInvariant(t, result.Totals)
}

func TestComputeBOGODiscountsCheaperUnit(t *testing.T) {
	result, err := Compute(Input{
		Items: []domain.CartItem{
			{LineID: "line-1", SKU: "JNS-014-IND-32", UnitPriceCents: 7999, Qty: 1},
			{LineID: "line-2", SKU: "TSH-001-BLK-S", UnitPriceCents: 2999, Qty: 2},
		},
		Promotions: []domain.Promotion{
			validPromo(domain.Promotion{ID: "bogo", Name: "BOGO", Type: domain.PromoBOGO, AutoApply: true}),
		},
		TaxRatePercent: 0,
		Now:            testNow,
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	// Units 7999, 2999, 2999: pairs (7999, 2999) and an unpaired 2999, so one
	// tee rides free.
	if result.Totals.DiscountTotalCents != 2999 {
		t.Fatalf("discount = %d, want 2999", result.Totals.DiscountTotalCents)
	}
	if result.LineDiscounts["line-2"] != 2999 {
		t.Fatalf("line-2 discount = %d, want 2999", result.LineDiscounts["line-2"])
	}
}

func TestComputeMixMatchGroups(t *testing.T) {
	result, err := Compute(Input{
		Items: []domain.CartItem{
			{LineID: "line-1", SKU: "SCK-090-WHT-OS", UnitPriceCents: 899, Qty: 3},
			{LineID: "line-2", SKU: "CAP-031-NVY-OS", UnitPriceCents: 1999, Qty: 2},
		},
		Promotions: []domain.Promotion{
			validPromo(domain.Promotion{
				ID: "mix", Name: "3 for 500 off", Type: domain.PromoMixMatch,
				AmountValue: 500, MixMatchThreshold: 3, AutoApply: true,
				Scope: domain.ScopeItemList, ScopeSKUs: []string{"SCK-090-WHT-OS", "CAP-031-NVY-OS"},
			}),
		},
		TaxRatePercent: 0,
		Now:            testNow,
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	// 5 qualifying units form one complete group of 3.
	if result.Totals.DiscountTotalCents != 500 {
		t.Fatalf("discount = %d, want 500", result.Totals.DiscountTotalCents)
	}
}

func TestComputeManualDiscountBlocksStacking(t *testing.T) {
	items := []domain.CartItem{
		{LineID: "line-1", SKU: "TSH-001-BLK-S", UnitPriceCents: 2999, Qty: 1, ManualDiscountCents: 500},
	}
	promos := []domain.Promotion{
		validPromo(domain.Promotion{ID: "p1", Name: "Ten Off", Type: domain.PromoPercentage, AmountValue: 10, AutoApply: true}),
	}

	result, err := Compute(Input{Items: items, Promotions: promos, TaxRatePercent: 0, Now: testNow})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if result.Totals.DiscountTotalCents != 500 {
		t.Fatalf("discount = %d, want only the manual 500", result.Totals.DiscountTotalCents)
	}

	items[0].ItemsApplyFurther = true
	result, err = Compute(Input{Items: items, Promotions: promos, TaxRatePercent: 0, Now: testNow})
	if err != nil {
		t.Fatalf("compute with apply-further: %v", err)
	}
	// 10% of the 2499 remaining after the manual discount.
	if result.Totals.DiscountTotalCents != 750 {
		t.Fatalf("discount = %d, want 750", result.Totals.DiscountTotalCents)
	}
}

func TestComputeExpiredPromotionIgnored(t *testing.T) {
	expired := validPromo(domain.Promotion{ID: "old", Name: "Old", Type: domain.PromoPercentage, AmountValue: 50, AutoApply: true})
	expired.EndDate = testNow.Add(-time.Minute)

	result, err := Compute(Input{
		Items:          []domain.CartItem{tee("line-1", 1)},
		Promotions:     []domain.Promotion{expired},
		TaxRatePercent: 0,
		Now:            testNow,
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if result.Totals.DiscountTotalCents != 0 {
		t.Fatalf("expired promotion applied: %+v", result.Totals)
	}
}

func TestComputeUnknownCouponFails(t *testing.T) {
	_, err := Compute(Input{
		Items:          []domain.CartItem{tee("line-1", 1)},
		CouponCode:     "NOSUCH",
		TaxRatePercent: 0,
		Now:            testNow,
	})
	if !errors.Is(err, domain.ErrBusinessRule) {
		t.Fatalf("expected ErrBusinessRule, got %v", err)
	}
}

func TestComputeCouponMatchIsCaseInsensitive(t *testing.T) {
	result, err := Compute(Input{
		Items: []domain.CartItem{tee("line-1", 1)},
		Promotions: []domain.Promotion{
			validPromo(domain.Promotion{ID: "c1", Name: "Coupon", Type: domain.PromoFixed, AmountValue: 500, CouponCode: "SAVE5"}),
		},
		CouponCode:     "sAvE5",
		TaxRatePercent: 0,
		Now:            testNow,
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if result.Totals.DiscountTotalCents != 500 {
		t.Fatalf("discount = %d, want 500", result.Totals.DiscountTotalCents)
	}
}

func TestComputeRejectsBadLines(t *testing.T) {
	_, err := Compute(Input{
		Items: []domain.CartItem{{LineID: "line-1", SKU: "X", UnitPriceCents: 100, Qty: 0}},
		Now:   testNow,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for zero qty, got %v", err)
	}

	_, err = Compute(Input{
		Items: []domain.CartItem{{LineID: "line-1", SKU: "X", UnitPriceCents: 100, Qty: 1, ManualDiscountCents: 200}},
		Now:   testNow,
	})
	if !errors.Is(err, domain.ErrBusinessRule) {
		t.Fatalf("expected ErrBusinessRule for oversize manual discount, got %v", err)
	}
}

func TestComputeVoidedLinesExcluded(t *testing.T) {
	result, err := Compute(Input{
		Items: []domain.CartItem{
			tee("line-1", 1),
			{LineID: "line-2", SKU: "HOD-022-GRY-L", UnitPriceCents: 5499, Qty: 1, Voided: true},
		},
		TaxRatePercent: 10,
		Now:            testNow,
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if result.Totals.SubtotalCents != 2999 {
		t.Fatalf("subtotal = %d, want 2999 (voided line excluded)", result.Totals.SubtotalCents)
	}
}
