package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/clickmaster4285/POS-Clothing-sub000/internal/domain"
	"github.com/clickmaster4285/POS-Clothing-sub000/internal/xid"
)

// Store is an in-memory Repository used for development and tests. All maps
// are guarded by a single RWMutex; values are cloned on the way in and out so
// callers never share memory with the store.
type Store struct {
	mu               sync.RWMutex
	transactionsByID map[string]*domain.Transaction
	idByNumber       map[string]string
	terminalSeq      map[string]int64
	sessionsByTerm   map[string]domain.TerminalSession
	promosByID       map[string]domain.Promotion
	returnsByID      map[string]domain.ReturnExchange
	auditLogs        []domain.AuditLog
}

func New() *Store {
	return &Store{
		transactionsByID: make(map[string]*domain.Transaction),
		idByNumber:       make(map[string]string),
		terminalSeq:      make(map[string]int64),
		sessionsByTerm:   make(map[string]domain.TerminalSession),
		promosByID:       make(map[string]domain.Promotion),
		returnsByID:      make(map[string]domain.ReturnExchange),
		auditLogs:        make([]domain.AuditLog, 0, 128),
	}
}

func (s *Store) CreateTransaction(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = xid.New("txn")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	if tx.TerminalID == "" {
		return nil, fmt.Errorf("%w: terminal id is required", domain.ErrValidation)
	}
	if _, exists := s.transactionsByID[tx.ID]; exists {
		return nil, fmt.Errorf("%w: transaction %s already exists", domain.ErrConflict, tx.ID)
	}

	stored := cloneTransaction(&tx)
	s.transactionsByID[tx.ID] = stored
	if tx.TransactionNumber != "" {
		s.idByNumber[tx.TransactionNumber] = tx.ID
	}
	return cloneTransaction(stored), nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactionsByID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) GetTransactionByNumber(_ context.Context, number string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.idByNumber[number]
	if !ok {
		return nil, domain.ErrNotFound
	}
	tx, ok := s.transactionsByID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx domain.Transaction, expectedRevision int64) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.transactionsByID[tx.ID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if stored.Revision != expectedRevision {
		return nil, fmt.Errorf("%w: revision mismatch, have %d want %d", domain.ErrConflict, stored.Revision, expectedRevision)
	}

	next := cloneTransaction(&tx)
	s.transactionsByID[tx.ID] = next
	if tx.TransactionNumber != "" {
		s.idByNumber[tx.TransactionNumber] = tx.ID
	}
	return cloneTransaction(next), nil
}

func (s *Store) NextTransactionNumber(_ context.Context, terminalID string) (string, error) {
	if terminalID == "" {
		return "", fmt.Errorf("%w: terminal id is required", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.terminalSeq[terminalID]++
	return fmt.Sprintf("T-%s-%04d", terminalID, s.terminalSeq[terminalID]), nil
}

func (s *Store) ListHeld(_ context.Context, filter domain.HeldFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, 16)
	for _, tx := range s.transactionsByID {
		if tx.Status != domain.TxStatusHeld {
			continue
		}
		if filter.TerminalID != "" && tx.TerminalID != filter.TerminalID {
			continue
		}
		if filter.CashierID != "" && tx.CashierID != filter.CashierID {
			continue
		}
		if tx.HeldAt != nil {
			if !filter.From.IsZero() && tx.HeldAt.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && !tx.HeldAt.Before(filter.To) {
				continue
			}
		}
		result = append(result, *cloneTransaction(tx))
	}

	slices.SortFunc(result, func(a, b domain.Transaction) int {
		at, bt := heldAtOrCreated(a), heldAtOrCreated(b)
		if at.Equal(bt) {
			return cmpString(a.ID, b.ID)
		}
		if at.After(bt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) GetTerminalSession(_ context.Context, terminalID string) (*domain.TerminalSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessionsByTerm[terminalID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copySession := session
	return &copySession, nil
}

func (s *Store) UpsertTerminalSession(_ context.Context, session domain.TerminalSession) error {
	if session.TerminalID == "" {
		return fmt.Errorf("%w: terminal id is required", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = time.Now().UTC()
	}
	s.sessionsByTerm[session.TerminalID] = session
	return nil
}

func (s *Store) ListPromotions(_ context.Context) ([]domain.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	promos := make([]domain.Promotion, 0, len(s.promosByID))
	for _, promo := range s.promosByID {
		promos = append(promos, clonePromotion(promo))
	}
	slices.SortFunc(promos, func(a, b domain.Promotion) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return promos, nil
}

func (s *Store) CreatePromotion(_ context.Context, promo domain.Promotion) (*domain.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if promo.ID == "" {
		promo.ID = xid.New("promo")
	}
	if promo.CreatedAt.IsZero() {
		promo.CreatedAt = time.Now().UTC()
	}
	if _, exists := s.promosByID[promo.ID]; exists {
		return nil, fmt.Errorf("%w: promotion %s already exists", domain.ErrConflict, promo.ID)
	}
	s.promosByID[promo.ID] = clonePromotion(promo)
	created := clonePromotion(promo)
	return &created, nil
}

func (s *Store) SetPromotionActive(_ context.Context, promoID string, active bool) (*domain.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	promo, ok := s.promosByID[promoID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	promo.Active = active
	s.promosByID[promoID] = promo
	updated := clonePromotion(promo)
	return &updated, nil
}

func (s *Store) CreateReturnExchange(_ context.Context, rec domain.ReturnExchange) (*domain.ReturnExchange, error) {
	if rec.ID == "" || rec.OriginalTransactionID == "" || len(rec.Items) == 0 {
		return nil, fmt.Errorf("%w: incomplete return/exchange record", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if _, exists := s.returnsByID[rec.ID]; exists {
		return nil, fmt.Errorf("%w: return/exchange %s already exists", domain.ErrConflict, rec.ID)
	}
	s.returnsByID[rec.ID] = cloneReturnExchange(rec)
	created := cloneReturnExchange(rec)
	return &created, nil
}

func (s *Store) GetReturnExchange(_ context.Context, id string) (*domain.ReturnExchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.returnsByID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	found := cloneReturnExchange(rec)
	return &found, nil
}

func (s *Store) UpdateReturnExchange(_ context.Context, rec domain.ReturnExchange) (*domain.ReturnExchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.returnsByID[rec.ID]; !ok {
		return nil, domain.ErrNotFound
	}
	s.returnsByID[rec.ID] = cloneReturnExchange(rec)
	updated := cloneReturnExchange(rec)
	return &updated, nil
}

func (s *Store) ListReturnsByOriginal(_ context.Context, originalTransactionID string) ([]domain.ReturnExchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ReturnExchange, 0, 4)
	for _, rec := range s.returnsByID {
		if rec.OriginalTransactionID != originalTransactionID {
			continue
		}
		result = append(result, cloneReturnExchange(rec))
	}
	slices.SortFunc(result, func(a, b domain.ReturnExchange) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func heldAtOrCreated(tx domain.Transaction) time.Time {
	if tx.HeldAt != nil {
		return *tx.HeldAt
	}
	return tx.CreatedAt
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneTransaction(src *domain.Transaction) *domain.Transaction {
	if src == nil {
		return nil
	}
	dup := *src
	dup.Items = slices.Clone(src.Items)
	dup.AppliedPromotions = slices.Clone(src.AppliedPromotions)
	if src.Payment != nil {
		payment := *src.Payment
		dup.Payment = &payment
	}
	dup.HeldAt = cloneTime(src.HeldAt)
	dup.CompletedAt = cloneTime(src.CompletedAt)
	dup.VoidedAt = cloneTime(src.VoidedAt)
	return &dup
}

func clonePromotion(src domain.Promotion) domain.Promotion {
	dup := src
	dup.ScopeSKUs = slices.Clone(src.ScopeSKUs)
	return dup
}

func cloneReturnExchange(src domain.ReturnExchange) domain.ReturnExchange {
	dup := src
	dup.Items = slices.Clone(src.Items)
	dup.ReplacementItems = slices.Clone(src.ReplacementItems)
	dup.SettledAt = cloneTime(src.SettledAt)
	return dup
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	dup := *t
	return &dup
}
