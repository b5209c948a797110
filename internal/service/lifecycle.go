package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/clickmaster4285/POS-Clothing-sub000/internal/domain"
	"github.com/clickmaster4285/POS-Clothing-sub000/internal/xid"
)

// CreateTransaction opens a draft for a terminal. A terminal can only work
// one open transaction at a time; held transactions do not count against
// that limit.
func (s *Service) CreateTransaction(ctx context.Context, terminalID string, cashierID string, customerID string) (*domain.Transaction, error) {
	terminalID = strings.TrimSpace(terminalID)
	cashierID = strings.TrimSpace(cashierID)
	if terminalID == "" || cashierID == "" {
		return nil, fmt.Errorf("%w: terminal id and cashier id are required", domain.ErrValidation)
	}

	if session, err := s.repo.GetTerminalSession(ctx, terminalID); err == nil && session.CurrentTransactionID != "" {
		current, err := s.repo.GetTransaction(ctx, session.CurrentTransactionID)
		if err == nil && !current.Status.Terminal() && current.Status != domain.TxStatusHeld {
			return nil, fmt.Errorf("%w: terminal %s already has open transaction %s", domain.ErrBusinessRule, terminalID, current.ID)
		}
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	tx := domain.Transaction{
		ID:         xid.New("txn"),
		TerminalID: terminalID,
		CashierID:  cashierID,
		CustomerID: strings.TrimSpace(customerID),
		Status:     domain.TxStatusDraft,
		Items:      []domain.CartItem{},
		Revision:   1,
		CreatedAt:  s.now(),
	}

	created, err := s.repo.CreateTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}
	s.setTerminalCurrent(ctx, terminalID, cashierID, created.ID)
	return created, nil
}

// Hold parks an active transaction so the terminal can serve the next
// customer. The transaction number is allocated here if the transaction has
// never been numbered; held carts must be findable by number at the counter.
func (s *Service) Hold(ctx context.Context, txID string, expectedRevision int64) (*domain.Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.Revision != expectedRevision {
		return nil, fmt.Errorf("%w: transaction %s is at revision %d, caller saw %d", domain.ErrConflict, txID, tx.Revision, expectedRevision)
	}
	if tx.Status != domain.TxStatusActive {
		return nil, fmt.Errorf("%w: cannot hold a %s transaction", domain.ErrInvalidStateTransition, tx.Status)
	}
	if len(tx.ActiveItems()) == 0 {
		return nil, fmt.Errorf("%w: cannot hold an empty cart", domain.ErrBusinessRule)
	}

	if tx.TransactionNumber == "" {
		number, err := s.repo.NextTransactionNumber(ctx, tx.TerminalID)
		if err != nil {
			return nil, err
		}
		tx.TransactionNumber = number
	}

	now := s.now()
	tx.Status = domain.TxStatusHeld
	tx.HeldAt = &now
	tx.Revision = expectedRevision + 1

	held, err := s.repo.UpdateTransaction(ctx, *tx, expectedRevision)
	if err != nil {
		return nil, err
	}
	s.setTerminalCurrent(ctx, tx.TerminalID, tx.CashierID, "")
	s.logAudit(ctx, "transaction_hold", "transaction", held.ID, fmt.Sprintf("number=%s,items=%d", held.TransactionNumber, len(held.ActiveItems())))
	return held, nil
}

// Retrieve resumes a held transaction on the given terminal. Two terminals
// racing for the same held cart are serialized by the revision CAS; the loser
// sees domain.ErrConflict.
func (s *Service) Retrieve(ctx context.Context, txID string, terminalID string, cashierID string) (*domain.Transaction, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return nil, fmt.Errorf("%w: terminal id is required", domain.ErrValidation)
	}

	tx, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.Status.Terminal() {
		return nil, domain.ErrNotRetrievable
	}
	if tx.Status != domain.TxStatusHeld {
		return nil, fmt.Errorf("%w: cannot retrieve a %s transaction", domain.ErrInvalidStateTransition, tx.Status)
	}

	if session, err := s.repo.GetTerminalSession(ctx, terminalID); err == nil && session.CurrentTransactionID != "" && session.CurrentTransactionID != txID {
		current, err := s.repo.GetTransaction(ctx, session.CurrentTransactionID)
		if err == nil && !current.Status.Terminal() && current.Status != domain.TxStatusHeld {
			return nil, fmt.Errorf("%w: terminal %s already has open transaction %s", domain.ErrBusinessRule, terminalID, current.ID)
		}
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	expectedRevision := tx.Revision
	tx.Status = domain.TxStatusActive
	tx.HeldAt = nil
	tx.TerminalID = terminalID
	if cashierID = strings.TrimSpace(cashierID); cashierID != "" {
		tx.CashierID = cashierID
	}
	tx.Revision = expectedRevision + 1

	// Reprice on resume: promotions valid when the cart was parked may have
	// expired in the meantime.
	if err := s.reprice(ctx, tx); err != nil {
		return nil, err
	}

	resumed, err := s.repo.UpdateTransaction(ctx, *tx, expectedRevision)
	if err != nil {
		return nil, err
	}
	s.setTerminalCurrent(ctx, terminalID, resumed.CashierID, resumed.ID)
	s.logAudit(ctx, "transaction_retrieve", "transaction", resumed.ID, fmt.Sprintf("terminal=%s", terminalID))
	return resumed, nil
}

func (s *Service) ListHeld(ctx context.Context, filter domain.HeldFilter) ([]domain.Transaction, error) {
	return s.repo.ListHeld(ctx, filter)
}

// VoidHeld discards a held transaction. A reason is required even for
// abandoned holds: the audit entry for a discarded hold must say why, same as
// any other void. Voiding an already voided transaction is a no-op so
// double-taps at the counter stay harmless.
func (s *Service) VoidHeld(ctx context.Context, txID string, reason string) (*domain.Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: void reason is required", domain.ErrValidation)
	}

	tx, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.Status == domain.TxStatusVoided {
		return tx, nil
	}
	if tx.Status != domain.TxStatusHeld {
		return nil, fmt.Errorf("%w: cannot void-held a %s transaction", domain.ErrInvalidStateTransition, tx.Status)
	}

	return s.voidAt(ctx, tx, reason)
}

// VoidTransaction voids a draft, active or held transaction. Totals are left
// frozen as they stood at the void; completed transactions can only be
// unwound through a return.
func (s *Service) VoidTransaction(ctx context.Context, txID string, reason string) (*domain.Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: void reason is required", domain.ErrValidation)
	}

	tx, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.Status == domain.TxStatusVoided {
		return tx, nil
	}
	if tx.Status == domain.TxStatusCompleted {
		return nil, fmt.Errorf("%w: completed transactions cannot be voided", domain.ErrInvalidStateTransition)
	}

	return s.voidAt(ctx, tx, reason)
}

func (s *Service) voidAt(ctx context.Context, tx *domain.Transaction, reason string) (*domain.Transaction, error) {
	expectedRevision := tx.Revision
	now := s.now()
	tx.Status = domain.TxStatusVoided
	tx.VoidReason = reason
	tx.VoidedAt = &now
	tx.Revision = expectedRevision + 1

	voided, err := s.repo.UpdateTransaction(ctx, *tx, expectedRevision)
	if err != nil {
		return nil, err
	}
	s.clearTerminalCurrentIf(ctx, voided.TerminalID, voided.ID)
	s.logAudit(ctx, "void_transaction", "transaction", voided.ID, reason)
	return voided, nil
}

// VoidItem voids a single cart line and reprices. Voiding the last remaining
// line cascades into a full transaction void rather than leaving an empty
// shell active.
func (s *Service) VoidItem(ctx context.Context, txID string, lineID string, reason string, expectedRevision int64) (*domain.Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: void reason is required", domain.ErrValidation)
	}

	tx, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.Revision != expectedRevision {
		return nil, fmt.Errorf("%w: transaction %s is at revision %d, caller saw %d", domain.ErrConflict, txID, tx.Revision, expectedRevision)
	}
	if tx.Status != domain.TxStatusActive {
		return nil, fmt.Errorf("%w: cannot void an item on a %s transaction", domain.ErrInvalidStateTransition, tx.Status)
	}

	line := findLine(tx, lineID)
	if line == nil {
		return nil, fmt.Errorf("%w: line %s", domain.ErrNotFound, lineID)
	}
	line.Voided = true
	line.LineDiscountCents = 0

	if len(tx.ActiveItems()) == 0 {
		tx.Revision = expectedRevision
		voided, err := s.voidAt(ctx, tx, "last line voided (cascade): "+reason)
		if err != nil {
			return nil, err
		}
		s.logAudit(ctx, "void_item", "transaction", tx.ID, fmt.Sprintf("line=%s,reason=%s", lineID, reason))
		return voided, nil
	}

	updated, err := s.repriceAndSave(ctx, tx, expectedRevision)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "void_item", "transaction", updated.ID, fmt.Sprintf("line=%s,reason=%s", lineID, reason))
	return updated, nil
}

// Complete settles an active transaction. The cart is repriced one final
// time, payment is validated against the resulting grand total, and the
// transaction number is allocated if holding never assigned one.
func (s *Service) Complete(ctx context.Context, txID string, payment domain.PaymentInput, expectedRevision int64) (*domain.Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.Revision != expectedRevision {
		return nil, fmt.Errorf("%w: transaction %s is at revision %d, caller saw %d", domain.ErrConflict, txID, tx.Revision, expectedRevision)
	}
	if tx.Status != domain.TxStatusActive {
		return nil, fmt.Errorf("%w: cannot complete a %s transaction", domain.ErrInvalidStateTransition, tx.Status)
	}
	if len(tx.ActiveItems()) == 0 {
		return nil, fmt.Errorf("%w: cannot complete an empty cart", domain.ErrBusinessRule)
	}

	if err := s.reprice(ctx, tx); err != nil {
		return nil, err
	}

	settled := domain.Payment{Method: payment.Method, AuthRef: payment.AuthRef}
	switch payment.Method {
	case domain.PaymentCash:
		if payment.AmountTenderedCents < tx.Totals.GrandTotalCents {
			return nil, fmt.Errorf("%w: tendered %d is less than grand total %d", domain.ErrBusinessRule, payment.AmountTenderedCents, tx.Totals.GrandTotalCents)
		}
		settled.AmountTenderedCents = payment.AmountTenderedCents
		settled.ChangeCents = payment.AmountTenderedCents - tx.Totals.GrandTotalCents
	case domain.PaymentCard:
		if !payment.Approved {
			return nil, fmt.Errorf("%w: card authorization declined", domain.ErrBusinessRule)
		}
		settled.AmountTenderedCents = tx.Totals.GrandTotalCents
	default:
		return nil, fmt.Errorf("%w: unknown payment method %q", domain.ErrValidation, payment.Method)
	}

	if tx.TransactionNumber == "" {
		number, err := s.repo.NextTransactionNumber(ctx, tx.TerminalID)
		if err != nil {
			return nil, err
		}
		tx.TransactionNumber = number
	}

	now := s.now()
	tx.Status = domain.TxStatusCompleted
	tx.Payment = &settled
	tx.CompletedAt = &now
	tx.Revision = expectedRevision + 1

	completed, err := s.repo.UpdateTransaction(ctx, *tx, expectedRevision)
	if err != nil {
		return nil, err
	}
	s.clearTerminalCurrentIf(ctx, completed.TerminalID, completed.ID)
	s.logAudit(ctx, "transaction_complete", "transaction", completed.ID,
		fmt.Sprintf("number=%s,method=%s,grand=%d", completed.TransactionNumber, settled.Method, completed.Totals.GrandTotalCents))
	return completed, nil
}

// CompleteHeld resumes a held transaction and settles it in one step.
func (s *Service) CompleteHeld(ctx context.Context, txID string, terminalID string, cashierID string, payment domain.PaymentInput) (*domain.Transaction, error) {
	resumed, err := s.Retrieve(ctx, txID, terminalID, cashierID)
	if err != nil {
		return nil, err
	}
	return s.Complete(ctx, resumed.ID, payment, resumed.Revision)
}

// ForceVoid voids a transaction regardless of concurrent edits, retrying the
// CAS a few times. Used by the stale-hold reaper; completed transactions are
// still off limits.
func (s *Service) ForceVoid(ctx context.Context, txID string, reason string) (*domain.Transaction, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		voided, err := s.VoidTransaction(ctx, txID, reason)
		if err == nil {
			return voided, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// ReapStaleHolds voids held transactions parked longer than maxAge. Errors on
// individual transactions are logged and skipped so one bad record cannot
// stall the sweep.
func (s *Service) ReapStaleHolds(ctx context.Context, maxAge time.Duration) (int, error) {
	held, err := s.repo.ListHeld(ctx, domain.HeldFilter{})
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-maxAge)
	reaped := 0
	for _, tx := range held {
		if tx.HeldAt == nil || tx.HeldAt.After(cutoff) {
			continue
		}
		if _, err := s.ForceVoid(ctx, tx.ID, fmt.Sprintf("stale hold reaped after %s", maxAge)); err != nil {
			log.Printf("[service] WARN: failed to reap stale hold %s: %v", tx.ID, err)
			continue
		}
		reaped++
	}
	return reaped, nil
}

func (s *Service) setTerminalCurrent(ctx context.Context, terminalID string, cashierID string, txID string) {
	err := s.repo.UpsertTerminalSession(ctx, domain.TerminalSession{
		TerminalID:           terminalID,
		CurrentTransactionID: txID,
		CashierID:            cashierID,
		UpdatedAt:            s.now(),
	})
	if err != nil {
		log.Printf("[service] WARN: failed to update terminal session %s: %v", terminalID, err)
	}
}

// clearTerminalCurrentIf drops the terminal's current-transaction pointer
// only when it still points at txID; a newer transaction keeps its slot.
func (s *Service) clearTerminalCurrentIf(ctx context.Context, terminalID string, txID string) {
	session, err := s.repo.GetTerminalSession(ctx, terminalID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Printf("[service] WARN: failed to read terminal session %s: %v", terminalID, err)
		}
		return
	}
	if session.CurrentTransactionID != txID {
		return
	}
	s.setTerminalCurrent(ctx, terminalID, session.CashierID, "")
}
