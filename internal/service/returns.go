package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/clickmaster4285/POS-Clothing-sub000/internal/domain"
)

// CreateReturn opens a pending return against a completed transaction. The
// refund per line is the captured unit price times the returned quantity,
// minus a pro-rated share of the discount frozen on that line at completion.
// Tax already collected stays with the merchant of record and is reconciled
// in bookkeeping, not refunded here.
func (s *Service) CreateReturn(ctx context.Context, originalTxID string, lines []domain.ReturnLine, reason string) (*domain.ReturnExchange, error) {
	original, err := s.loadReturnable(ctx, originalTxID, lines, reason)
	if err != nil {
		return nil, err
	}

	refund, err := refundForLines(original, lines)
	if err != nil {
		return nil, err
	}

	rec := domain.ReturnExchange{
		ID:                    "ret-" + uuid.NewString(),
		OriginalTransactionID: original.ID,
		Kind:                  domain.KindReturn,
		Items:                 lines,
		RefundAmountCents:     refund,
		Reason:                strings.TrimSpace(reason),
		Status:                domain.ReturnStatusPending,
		CreatedAt:             s.now(),
	}

	created, err := s.repo.CreateReturnExchange(ctx, rec)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "return_create", "return_exchange", created.ID,
		fmt.Sprintf("original=%s,refund=%d", original.ID, created.RefundAmountCents))
	return created, nil
}

// CreateExchange returns lines from a completed transaction and issues
// replacements priced at the catalog's current prices. The balance nets out
// to either a refund or an additional amount due, never both.
func (s *Service) CreateExchange(ctx context.Context, originalTxID string, lines []domain.ReturnLine, replacements []domain.ReplacementLine, reason string) (*domain.ReturnExchange, error) {
	if len(replacements) == 0 {
		return nil, fmt.Errorf("%w: exchange needs at least one replacement item", domain.ErrValidation)
	}

	original, err := s.loadReturnable(ctx, originalTxID, lines, reason)
	if err != nil {
		return nil, err
	}

	returnedValue, err := refundForLines(original, lines)
	if err != nil {
		return nil, err
	}

	var replacementValue int64
	priced := make([]domain.ReplacementLine, 0, len(replacements))
	for _, repl := range replacements {
		if repl.Qty < 1 {
			return nil, fmt.Errorf("%w: replacement qty must be positive", domain.ErrValidation)
		}
		sku := strings.ToUpper(strings.TrimSpace(repl.SKU))
		variant, err := s.catalog.GetVariant(ctx, sku)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: unknown replacement sku %s", domain.ErrValidation, sku)
			}
			return nil, err
		}
		if !variant.Active {
			return nil, fmt.Errorf("%w: replacement variant %s is not sellable", domain.ErrBusinessRule, sku)
		}
		priced = append(priced, domain.ReplacementLine{
			SKU:            sku,
			Qty:            repl.Qty,
			UnitPriceCents: variant.UnitPriceCents,
		})
		replacementValue += variant.UnitPriceCents * int64(repl.Qty)
	}

	rec := domain.ReturnExchange{
		ID:                    "exch-" + uuid.NewString(),
		OriginalTransactionID: original.ID,
		Kind:                  domain.KindExchange,
		Items:                 lines,
		ReplacementItems:      priced,
		Reason:                strings.TrimSpace(reason),
		Status:                domain.ReturnStatusPending,
		CreatedAt:             s.now(),
	}
	if returnedValue >= replacementValue {
		rec.RefundAmountCents = returnedValue - replacementValue
	} else {
		rec.AdditionalDueCents = replacementValue - returnedValue
	}

	created, err := s.repo.CreateReturnExchange(ctx, rec)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "exchange_create", "return_exchange", created.ID,
		fmt.Sprintf("original=%s,refund=%d,due=%d", original.ID, created.RefundAmountCents, created.AdditionalDueCents))
	return created, nil
}

// SettleReturnExchange marks a pending record as completed once the refund
// has been paid out or the additional amount collected. An exchange that owes
// the store money requires a payment covering the balance.
func (s *Service) SettleReturnExchange(ctx context.Context, id string, payment *domain.PaymentInput) (*domain.ReturnExchange, error) {
	rec, err := s.repo.GetReturnExchange(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status == domain.ReturnStatusCompleted {
		return rec, nil
	}
	if rec.Status != domain.ReturnStatusPending {
		return nil, fmt.Errorf("%w: cannot settle a %s return/exchange", domain.ErrInvalidStateTransition, rec.Status)
	}

	if rec.AdditionalDueCents > 0 {
		if payment == nil {
			return nil, fmt.Errorf("%w: payment is required to settle %d cents due", domain.ErrValidation, rec.AdditionalDueCents)
		}
		switch payment.Method {
		case domain.PaymentCash:
			if payment.AmountTenderedCents < rec.AdditionalDueCents {
				return nil, fmt.Errorf("%w: tendered %d cents, %d due", domain.ErrBusinessRule, payment.AmountTenderedCents, rec.AdditionalDueCents)
			}
		case domain.PaymentCard:
			if !payment.Approved {
				return nil, fmt.Errorf("%w: card payment was not approved", domain.ErrBusinessRule)
			}
		default:
			return nil, fmt.Errorf("%w: unknown payment method %q", domain.ErrValidation, payment.Method)
		}
	}

	now := s.now()
	rec.Status = domain.ReturnStatusCompleted
	rec.SettledAt = &now

	settled, err := s.repo.UpdateReturnExchange(ctx, *rec)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "return_exchange_settle", "return_exchange", settled.ID, string(settled.Kind))
	return settled, nil
}

// VoidReturnExchange discards a pending record. Settled records are final.
func (s *Service) VoidReturnExchange(ctx context.Context, id string, reason string) (*domain.ReturnExchange, error) {
	rec, err := s.repo.GetReturnExchange(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status == domain.ReturnStatusVoided {
		return rec, nil
	}
	if rec.Status != domain.ReturnStatusPending {
		return nil, fmt.Errorf("%w: cannot void a %s return/exchange", domain.ErrInvalidStateTransition, rec.Status)
	}

	rec.Status = domain.ReturnStatusVoided
	voided, err := s.repo.UpdateReturnExchange(ctx, *rec)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "return_exchange_void", "return_exchange", voided.ID, strings.TrimSpace(reason))
	return voided, nil
}

func (s *Service) GetReturnExchange(ctx context.Context, id string) (*domain.ReturnExchange, error) {
	return s.repo.GetReturnExchange(ctx, id)
}

func (s *Service) ListReturnsByOriginal(ctx context.Context, originalTxID string) ([]domain.ReturnExchange, error) {
	return s.repo.ListReturnsByOriginal(ctx, originalTxID)
}

// loadReturnable validates the original transaction and checks each
// requested line against the quantity still eligible for return after prior
// non-voided return/exchange records are subtracted.
func (s *Service) loadReturnable(ctx context.Context, originalTxID string, lines []domain.ReturnLine, reason string) (*domain.Transaction, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: reason is required", domain.ErrValidation)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one return line is required", domain.ErrValidation)
	}

	original, err := s.repo.GetTransaction(ctx, originalTxID)
	if err != nil {
		return nil, err
	}
	if original.Status != domain.TxStatusCompleted {
		return nil, fmt.Errorf("%w: only completed transactions accept returns", domain.ErrInvalidStateTransition)
	}

	returnable := make(map[string]int, len(original.Items))
	for _, item := range original.Items {
		if item.Voided {
			continue
		}
		returnable[item.LineID] = item.Qty
	}

	prior, err := s.repo.ListReturnsByOriginal(ctx, originalTxID)
	if err != nil {
		return nil, err
	}
	for _, rec := range prior {
		if rec.Status == domain.ReturnStatusVoided {
			continue
		}
		for _, line := range rec.Items {
			returnable[line.LineID] -= line.Qty
		}
	}

	// Each requested line consumes from the remaining quantity as it is
	// checked, so duplicate LineIDs within one request count cumulatively.
	for _, line := range lines {
		if line.Qty < 1 {
			return nil, fmt.Errorf("%w: return qty must be positive", domain.ErrValidation)
		}
		available, ok := returnable[line.LineID]
		if !ok {
			return nil, fmt.Errorf("%w: line %s is not part of the original sale", domain.ErrValidation, line.LineID)
		}
		if line.Qty > available {
			return nil, fmt.Errorf("%w: line %s has only %d unit(s) left to return", domain.ErrBusinessRule, line.LineID, available)
		}
		returnable[line.LineID] = available - line.Qty
	}

	return original, nil
}

func refundForLines(original *domain.Transaction, lines []domain.ReturnLine) (int64, error) {
	byLineID := make(map[string]domain.CartItem, len(original.Items))
	for _, item := range original.Items {
		byLineID[item.LineID] = item
	}

	var refund int64
	for _, line := range lines {
		item, ok := byLineID[line.LineID]
		if !ok {
			return 0, fmt.Errorf("%w: line %s is not part of the original sale", domain.ErrValidation, line.LineID)
		}
		gross := item.UnitPriceCents * int64(line.Qty)
		// Share of the frozen line discount attributable to the returned
		// units, rounded half up.
		var discountShare int64
		if item.Qty > 0 && item.LineDiscountCents > 0 {
			discountShare = int64(math.Floor(float64(item.LineDiscountCents)*float64(line.Qty)/float64(item.Qty) + 0.5))
		}
		refund += gross - discountShare
	}
	if refund < 0 {
		refund = 0
	}
	return refund, nil
}
