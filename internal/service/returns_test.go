package service

import (
	"errors"
	"testing"

	"github.com/clickmaster4285/POS-Clothing-sub000/internal/domain"
)

func completeSale(t *testing.T, svc *Service) *domain.Transaction {
	t.Helper()
	ctx := adminCtx()
	tx := startActiveCart(t, svc, ctx)
	completed, err := svc.Complete(ctx, tx.ID, domain.PaymentInput{Method: domain.PaymentCard, Approved: true}, tx.Revision)
	if err != nil {
		t.Fatalf("complete sale: %v", err)
	}
	return completed
}

func TestReturnRefundsCapturedPrice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	sale := completeSale(t, svc)
	lineID := sale.Items[0].LineID

	rec, err := svc.CreateReturn(ctx, sale.ID, []domain.ReturnLine{
		{LineID: lineID, SKU: "TSH-001-BLK-S", Qty: 1},
	}, "wrong size")
	if err != nil {
		t.Fatalf("create return: %v", err)
	}
	if rec.RefundAmountCents != 2999 {
		t.Fatalf("refund = %d, want 2999", rec.RefundAmountCents)
	}
	if rec.Status != domain.ReturnStatusPending {
		t.Fatalf("status = %s, want pending", rec.Status)
	}
}

func TestReturnProRatesFrozenLineDiscount(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := adminCtx()

	seedPromotion(t, repo, domain.Promotion{
		Name:        "Ten Percent Storewide",
		Type:        domain.PromoPercentage,
		AmountValue: 10,
		AutoApply:   true,
	})

	sale := completeSale(t, svc)
	lineID := sale.Items[0].LineID
	if sale.Items[0].LineDiscountCents != 600 {
		t.Fatalf("frozen line discount = %d, want 600", sale.Items[0].LineDiscountCents)
	}

	rec, err := svc.CreateReturn(ctx, sale.ID, []domain.ReturnLine{
		{LineID: lineID, SKU: "TSH-001-BLK-S", Qty: 1},
	}, "wrong size")
	if err != nil {
		t.Fatalf("create return: %v", err)
	}
	// One of two units: 2999 gross minus half of the 600 discount.
	if rec.RefundAmountCents != 2699 {
		t.Fatalf("refund = %d, want 2699", rec.RefundAmountCents)
	}
}

func TestOverReturnRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	sale := completeSale(t, svc)
	lineID := sale.Items[0].LineID

	if _, err := svc.CreateReturn(ctx, sale.ID, []domain.ReturnLine{
		{LineID: lineID, SKU: "TSH-001-BLK-S", Qty: 2},
	}, "defective batch"); err != nil {
		t.Fatalf("first return: %v", err)
	}

	_, err := svc.CreateReturn(ctx, sale.ID, []domain.ReturnLine{
		{LineID: lineID, SKU: "TSH-001-BLK-S", Qty: 1},
	}, "one more")
	if !errors.Is(err, domain.ErrBusinessRule) {
		t.Fatalf("expected ErrBusinessRule for over-return, got %v", err)
	}
}

func TestDuplicateLinesInOneRequestCountCumulatively(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	sale := completeSale(t, svc)
	lineID := sale.Items[0].LineID

	// 2 + 2 of a 2-unit line must not slip past the guard.
	_, err := svc.CreateReturn(ctx, sale.ID, []domain.ReturnLine{
		{LineID: lineID, SKU: "TSH-001-BLK-S", Qty: 2},
		{LineID: lineID, SKU: "TSH-001-BLK-S", Qty: 2},
	}, "split across registers")
	if !errors.Is(err, domain.ErrBusinessRule) {
		t.Fatalf("expected ErrBusinessRule for duplicate over-return, got %v", err)
	}

	_, err = svc.CreateExchange(ctx, sale.ID,
		[]domain.ReturnLine{
			{LineID: lineID, SKU: "TSH-001-BLK-S", Qty: 2},
			{LineID: lineID, SKU: "TSH-001-BLK-S", Qty: 1},
		},
		[]domain.ReplacementLine{{SKU: "SCK-090-WHT-OS", Qty: 1}},
		"split swap")
	if !errors.Is(err, domain.ErrBusinessRule) {
		t.Fatalf("expected ErrBusinessRule for duplicate over-exchange, got %v", err)
	}

	// Duplicates that sum to exactly the sold quantity are fine.
	rec, err := svc.CreateReturn(ctx, sale.ID, []domain.ReturnLine{
		{LineID: lineID, SKU: "TSH-001-BLK-S", Qty: 1},
		{LineID: lineID, SKU: "TSH-001-BLK-S", Qty: 1},
	}, "both units, two receipts")
	if err != nil {
		t.Fatalf("exact-quantity duplicate return: %v", err)
	}
	if rec.RefundAmountCents != 5998 {
		t.Fatalf("refund = %d, want 5998", rec.RefundAmountCents)
	}
}

func TestVoidedReturnFreesQuantity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	sale := completeSale(t, svc)
	lineID := sale.Items[0].LineID

	first, err := svc.CreateReturn(ctx, sale.ID, []domain.ReturnLine{
		{LineID: lineID, SKU: "TSH-001-BLK-S", Qty: 2},
	}, "defective batch")
	if err != nil {
		t.Fatalf("first return: %v", err)
	}
	if _, err := svc.VoidReturnExchange(ctx, first.ID, "clerk error"); err != nil {
		t.Fatalf("void return: %v", err)
	}

	if _, err := svc.CreateReturn(ctx, sale.ID, []domain.ReturnLine{
		{LineID: lineID, SKU: "TSH-001-BLK-S", Qty: 1},
	}, "wrong size"); err != nil {
		t.Fatalf("return after void should succeed: %v", err)
	}
}

func TestExchangeNetsOutBalance(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	sale := completeSale(t, svc)
	lineID := sale.Items[0].LineID

	rec, err := svc.CreateExchange(ctx, sale.ID,
		[]domain.ReturnLine{{LineID: lineID, SKU: "TSH-001-BLK-S", Qty: 1}},
		[]domain.ReplacementLine{{SKU: "HOD-022-GRY-L", Qty: 1}},
		"size swap up")
	if err != nil {
		t.Fatalf("create exchange: %v", err)
	}
	// Returned 2999, replacement hoodie costs 5499.
	if rec.AdditionalDueCents != 2500 || rec.RefundAmountCents != 0 {
		t.Fatalf("exchange balance = refund %d / due %d, want 0 / 2500", rec.RefundAmountCents, rec.AdditionalDueCents)
	}
	if rec.ReplacementItems[0].UnitPriceCents != 5499 {
		t.Fatalf("replacement priced at %d, want catalog price 5499", rec.ReplacementItems[0].UnitPriceCents)
	}

	cheaper, err := svc.CreateExchange(ctx, sale.ID,
		[]domain.ReturnLine{{LineID: lineID, SKU: "TSH-001-BLK-S", Qty: 1}},
		[]domain.ReplacementLine{{SKU: "SCK-090-WHT-OS", Qty: 1}},
		"downgrade")
	if err != nil {
		t.Fatalf("second exchange: %v", err)
	}
	// Returned 2999, socks cost 899.
	if cheaper.RefundAmountCents != 2100 || cheaper.AdditionalDueCents != 0 {
		t.Fatalf("exchange balance = refund %d / due %d, want 2100 / 0", cheaper.RefundAmountCents, cheaper.AdditionalDueCents)
	}
}

func TestSettleExchangeCollectsBalanceDue(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	sale := completeSale(t, svc)
	rec, err := svc.CreateExchange(ctx, sale.ID,
		[]domain.ReturnLine{{LineID: sale.Items[0].LineID, SKU: "TSH-001-BLK-S", Qty: 1}},
		[]domain.ReplacementLine{{SKU: "HOD-022-GRY-L", Qty: 1}},
		"size swap up")
	if err != nil {
		t.Fatalf("create exchange: %v", err)
	}
	if rec.AdditionalDueCents != 2500 {
		t.Fatalf("due = %d, want 2500", rec.AdditionalDueCents)
	}

	if _, err := svc.SettleReturnExchange(ctx, rec.ID, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation without payment, got %v", err)
	}
	if _, err := svc.SettleReturnExchange(ctx, rec.ID, &domain.PaymentInput{
		Method: domain.PaymentCash, AmountTenderedCents: 2000,
	}); !errors.Is(err, domain.ErrBusinessRule) {
		t.Fatalf("expected ErrBusinessRule for short tender, got %v", err)
	}

	settled, err := svc.SettleReturnExchange(ctx, rec.ID, &domain.PaymentInput{
		Method: domain.PaymentCash, AmountTenderedCents: 2500,
	})
	if err != nil {
		t.Fatalf("settle with covering payment: %v", err)
	}
	if settled.Status != domain.ReturnStatusCompleted {
		t.Fatalf("status = %s, want completed", settled.Status)
	}
}

func TestSettleAndVoidRules(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	sale := completeSale(t, svc)
	rec, err := svc.CreateReturn(ctx, sale.ID, []domain.ReturnLine{
		{LineID: sale.Items[0].LineID, SKU: "TSH-001-BLK-S", Qty: 1},
	}, "wrong size")
	if err != nil {
		t.Fatalf("create return: %v", err)
	}

	settled, err := svc.SettleReturnExchange(ctx, rec.ID, nil)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settled.Status != domain.ReturnStatusCompleted || settled.SettledAt == nil {
		t.Fatalf("settled = %+v", settled)
	}

	// Settling twice is a no-op.
	if _, err := svc.SettleReturnExchange(ctx, rec.ID, nil); err != nil {
		t.Fatalf("repeat settle: %v", err)
	}

	_, err = svc.VoidReturnExchange(ctx, rec.ID, "too late")
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition voiding settled record, got %v", err)
	}
}

func TestReturnRequiresCompletedTransaction(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	tx := startActiveCart(t, svc, ctx)
	_, err := svc.CreateReturn(ctx, tx.ID, []domain.ReturnLine{
		{LineID: tx.Items[0].LineID, SKU: "TSH-001-BLK-S", Qty: 1},
	}, "not sold yet")
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}
