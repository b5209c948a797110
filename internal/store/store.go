package store

import (
	"context"
	"time"

	"github.com/clickmaster4285/POS-Clothing-sub000/internal/domain"
)

// Repository is the persistence boundary for the transaction engine.
// Implementations return domain.ErrNotFound for unknown identifiers and
// domain.ErrConflict when an optimistic update loses a race.
type Repository interface {
	// CreateTransaction persists a new transaction. The transaction number
	// may be empty; it is allocated lazily via NextTransactionNumber at the
	// first persisting action.
	CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	GetTransactionByNumber(ctx context.Context, number string) (*domain.Transaction, error)
	// UpdateTransaction replaces the stored transaction if and only if the
	// stored revision equals expectedRevision; the stored revision is then
	// bumped to tx.Revision. A mismatch yields domain.ErrConflict.
	UpdateTransaction(ctx context.Context, tx domain.Transaction, expectedRevision int64) (*domain.Transaction, error)
	// NextTransactionNumber allocates the next terminal-scoped sequence value
	// and returns a number of the form T-<terminalID>-<seq>.
	NextTransactionNumber(ctx context.Context, terminalID string) (string, error)
	// ListHeld re-queries on every call; repeated calls observe current
	// state rather than a one-shot stream.
	ListHeld(ctx context.Context, filter domain.HeldFilter) ([]domain.Transaction, error)

	GetTerminalSession(ctx context.Context, terminalID string) (*domain.TerminalSession, error)
	UpsertTerminalSession(ctx context.Context, session domain.TerminalSession) error

	ListPromotions(ctx context.Context) ([]domain.Promotion, error)
	CreatePromotion(ctx context.Context, promo domain.Promotion) (*domain.Promotion, error)
	SetPromotionActive(ctx context.Context, promoID string, active bool) (*domain.Promotion, error)

	CreateReturnExchange(ctx context.Context, rec domain.ReturnExchange) (*domain.ReturnExchange, error)
	GetReturnExchange(ctx context.Context, id string) (*domain.ReturnExchange, error)
	UpdateReturnExchange(ctx context.Context, rec domain.ReturnExchange) (*domain.ReturnExchange, error)
	// ListReturnsByOriginal supports the over-return guard and reverse lookup
	// from a completed sale to its return/exchange records.
	ListReturnsByOriginal(ctx context.Context, originalTransactionID string) ([]domain.ReturnExchange, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}

// Catalog is the catalog collaborator consumed by the engine. An inactive
// variant surfacing during recomputation is a hard business-rule violation
// upstream, so implementations must report Active faithfully.
type Catalog interface {
	GetVariant(ctx context.Context, sku string) (*domain.Variant, error)
	GetVariants(ctx context.Context, skus []string) (map[string]domain.Variant, error)
}
