package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clickmaster4285/POS-Clothing-sub000/internal/domain"
)

func TestUpdateTransactionRevisionMismatch(t *testing.T) {
	store := New()
	ctx := context.Background()

	created, err := store.CreateTransaction(ctx, domain.Transaction{
		TerminalID: "term-1",
		CashierID:  "cashier-1",
		Status:     domain.TxStatusActive,
		Revision:   1,
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	created.Revision = 2
	if _, err := store.UpdateTransaction(ctx, *created, 1); err != nil {
		t.Fatalf("UpdateTransaction at revision 1: %v", err)
	}

	// A second writer still holding revision 1 must lose.
	created.Revision = 3
	_, err = store.UpdateTransaction(ctx, *created, 1)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestNextTransactionNumberPerTerminal(t *testing.T) {
	store := New()
	ctx := context.Background()

	first, err := store.NextTransactionNumber(ctx, "term-1")
	if err != nil {
		t.Fatalf("NextTransactionNumber: %v", err)
	}
	if first != "T-term-1-0001" {
		t.Fatalf("first number = %q, want T-term-1-0001", first)
	}

	second, _ := store.NextTransactionNumber(ctx, "term-1")
	if second != "T-term-1-0002" {
		t.Fatalf("second number = %q, want T-term-1-0002", second)
	}

	other, _ := store.NextTransactionNumber(ctx, "term-2")
	if other != "T-term-2-0001" {
		t.Fatalf("other terminal number = %q, want T-term-2-0001", other)
	}
}

func TestListHeldFiltersAndReflectsCurrentState(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now().UTC()

	heldAt := now.Add(-time.Minute)
	held, err := store.CreateTransaction(ctx, domain.Transaction{
		TerminalID: "term-1",
		CashierID:  "cashier-1",
		Status:     domain.TxStatusHeld,
		HeldAt:     &heldAt,
		Revision:   1,
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if _, err := store.CreateTransaction(ctx, domain.Transaction{
		TerminalID: "term-2",
		CashierID:  "cashier-2",
		Status:     domain.TxStatusActive,
		Revision:   1,
	}); err != nil {
		t.Fatalf("CreateTransaction active: %v", err)
	}

	list, err := store.ListHeld(ctx, domain.HeldFilter{TerminalID: "term-1"})
	if err != nil {
		t.Fatalf("ListHeld: %v", err)
	}
	if len(list) != 1 || list[0].ID != held.ID {
		t.Fatalf("ListHeld = %+v, want single held transaction %s", list, held.ID)
	}

	// Retrieving the transaction removes it from subsequent listings.
	held.Status = domain.TxStatusActive
	held.Revision = 2
	if _, err := store.UpdateTransaction(ctx, *held, 1); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	list, err = store.ListHeld(ctx, domain.HeldFilter{TerminalID: "term-1"})
	if err != nil {
		t.Fatalf("ListHeld after retrieve: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("ListHeld after retrieve = %d entries, want 0", len(list))
	}
}

func TestGetTransactionClonesState(t *testing.T) {
	store := New()
	ctx := context.Background()

	created, err := store.CreateTransaction(ctx, domain.Transaction{
		TerminalID: "term-1",
		Status:     domain.TxStatusActive,
		Items: []domain.CartItem{
			{LineID: "line-1", SKU: "TSH-001-BLK-S", UnitPriceCents: 2999, Qty: 1},
		},
		Revision: 1,
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	created.Items[0].Qty = 99
	reloaded, err := store.GetTransaction(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if reloaded.Items[0].Qty != 1 {
		t.Fatalf("stored qty mutated through returned copy: %d", reloaded.Items[0].Qty)
	}
}

func TestReturnsByOriginal(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateReturnExchange(ctx, domain.ReturnExchange{
		ID:                    "ret-1",
		OriginalTransactionID: "txn-1",
		Kind:                  domain.KindReturn,
		Items:                 []domain.ReturnLine{{LineID: "line-1", SKU: "TSH-001-BLK-S", Qty: 1}},
		RefundAmountCents:     2999,
		Status:                domain.ReturnStatusPending,
	}); err != nil {
		t.Fatalf("CreateReturnExchange: %v", err)
	}
	if _, err := store.CreateReturnExchange(ctx, domain.ReturnExchange{
		ID:                    "ret-2",
		OriginalTransactionID: "txn-other",
		Kind:                  domain.KindReturn,
		Items:                 []domain.ReturnLine{{LineID: "line-1", SKU: "TSH-001-BLK-S", Qty: 1}},
		Status:                domain.ReturnStatusPending,
	}); err != nil {
		t.Fatalf("CreateReturnExchange: %v", err)
	}

	list, err := store.ListReturnsByOriginal(ctx, "txn-1")
	if err != nil {
		t.Fatalf("ListReturnsByOriginal: %v", err)
	}
	if len(list) != 1 || list[0].ID != "ret-1" {
		t.Fatalf("ListReturnsByOriginal = %+v, want only ret-1", list)
	}
}

func TestCatalogLookup(t *testing.T) {
	catalog := SeededCatalog()
	ctx := context.Background()

	v, err := catalog.GetVariant(ctx, "TSH-001-BLK-S")
	if err != nil {
		t.Fatalf("GetVariant: %v", err)
	}
	if v.UnitPriceCents != 2999 || !v.Active {
		t.Fatalf("unexpected variant %+v", v)
	}

	_, err = catalog.GetVariant(ctx, "NOPE-000")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	many, err := catalog.GetVariants(ctx, []string{"TSH-001-BLK-S", "JNS-014-IND-32", "NOPE-000"})
	if err != nil {
		t.Fatalf("GetVariants: %v", err)
	}
	if len(many) != 2 {
		t.Fatalf("GetVariants returned %d entries, want 2", len(many))
	}
}
