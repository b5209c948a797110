package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/clickmaster4285/POS-Clothing-sub000/internal/domain"
	"github.com/clickmaster4285/POS-Clothing-sub000/internal/xid"
)

// Store is the Postgres-backed Repository and Catalog. Cart lines, applied
// promotions and payment are stored as JSONB alongside the scalar columns;
// concurrency control is the revision column, compared-and-bumped inside
// UpdateTransaction.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if strings.TrimSpace(tx.TerminalID) == "" {
		return nil, fmt.Errorf("%w: terminal id is required", domain.ErrValidation)
	}
	if tx.ID == "" {
		tx.ID = xid.New("txn")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	itemsJSON, promosJSON, paymentJSON, err := encodeTransactionBlobs(tx)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, transaction_number, terminal_id, cashier_id, customer_id, status,
			items, applied_promotions, coupon_code,
			subtotal_cents, discount_total_cents, tax_total_cents, grand_total_cents,
			payment, void_reason, revision, created_at, held_at, completed_at, voided_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`, tx.ID, nullIfEmpty(tx.TransactionNumber), tx.TerminalID, tx.CashierID, nullIfEmpty(tx.CustomerID), tx.Status,
		itemsJSON, promosJSON, nullIfEmpty(tx.CouponCode),
		tx.Totals.SubtotalCents, tx.Totals.DiscountTotalCents, tx.Totals.TaxTotalCents, tx.Totals.GrandTotalCents,
		paymentJSON, nullIfEmpty(tx.VoidReason), tx.Revision, tx.CreatedAt, nullTime(tx.HeldAt), nullTime(tx.CompletedAt), nullTime(tx.VoidedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: transaction %s already exists", domain.ErrConflict, tx.ID)
		}
		return nil, err
	}

	created := tx
	return &created, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return s.findTransaction(ctx, "id", id)
}

func (s *Store) GetTransactionByNumber(ctx context.Context, number string) (*domain.Transaction, error) {
	return s.findTransaction(ctx, "transaction_number", number)
}

func (s *Store) findTransaction(ctx context.Context, column string, value string) (*domain.Transaction, error) {
	if column != "id" && column != "transaction_number" {
		return nil, fmt.Errorf("unsupported lookup column")
	}

	query := fmt.Sprintf(`
		SELECT id, COALESCE(transaction_number,''), terminal_id, cashier_id, COALESCE(customer_id,''),
			status, items, applied_promotions, COALESCE(coupon_code,''),
			subtotal_cents, discount_total_cents, tax_total_cents, grand_total_cents,
			payment, COALESCE(void_reason,''), revision, created_at, held_at, completed_at, voided_at
		FROM transactions
		WHERE %s = $1
	`, column)

	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return tx, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx domain.Transaction, expectedRevision int64) (*domain.Transaction, error) {
	itemsJSON, promosJSON, paymentJSON, err := encodeTransactionBlobs(tx)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET transaction_number = $2, status = $3, items = $4, applied_promotions = $5,
			coupon_code = $6, subtotal_cents = $7, discount_total_cents = $8,
			tax_total_cents = $9, grand_total_cents = $10, payment = $11,
			void_reason = $12, revision = $13, held_at = $14, completed_at = $15, voided_at = $16,
			customer_id = $17
		WHERE id = $1 AND revision = $18
	`, tx.ID, nullIfEmpty(tx.TransactionNumber), tx.Status, itemsJSON, promosJSON,
		nullIfEmpty(tx.CouponCode), tx.Totals.SubtotalCents, tx.Totals.DiscountTotalCents,
		tx.Totals.TaxTotalCents, tx.Totals.GrandTotalCents, paymentJSON,
		nullIfEmpty(tx.VoidReason), tx.Revision, nullTime(tx.HeldAt), nullTime(tx.CompletedAt), nullTime(tx.VoidedAt),
		nullIfEmpty(tx.CustomerID), expectedRevision)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Distinguish a lost race from a missing row.
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, tx.ID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: transaction %s changed since revision %d", domain.ErrConflict, tx.ID, expectedRevision)
	}

	updated := tx
	return &updated, nil
}

func (s *Store) NextTransactionNumber(ctx context.Context, terminalID string) (string, error) {
	if strings.TrimSpace(terminalID) == "" {
		return "", fmt.Errorf("%w: terminal id is required", domain.ErrValidation)
	}

	var seq int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO terminal_sequences (terminal_id, seq)
		VALUES ($1, 1)
		ON CONFLICT (terminal_id)
		DO UPDATE SET seq = terminal_sequences.seq + 1
		RETURNING seq
	`, terminalID).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("T-%s-%04d", terminalID, seq), nil
}

func (s *Store) ListHeld(ctx context.Context, filter domain.HeldFilter) ([]domain.Transaction, error) {
	query := `
		SELECT id, COALESCE(transaction_number,''), terminal_id, cashier_id, COALESCE(customer_id,''),
			status, items, applied_promotions, COALESCE(coupon_code,''),
			subtotal_cents, discount_total_cents, tax_total_cents, grand_total_cents,
			payment, COALESCE(void_reason,''), revision, created_at, held_at, completed_at, voided_at
		FROM transactions
		WHERE status = $1
			AND ($2 = '' OR terminal_id = $2)
			AND ($3 = '' OR cashier_id = $3)
	`
	args := []any{domain.TxStatusHeld, filter.TerminalID, filter.CashierID}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(` AND held_at >= $%d`, len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(` AND held_at < $%d`, len(args))
	}
	query += ` ORDER BY held_at DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	held := make([]domain.Transaction, 0, 16)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		held = append(held, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return held, nil
}

func (s *Store) GetTerminalSession(ctx context.Context, terminalID string) (*domain.TerminalSession, error) {
	var session domain.TerminalSession
	var current sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT terminal_id, current_transaction_id, COALESCE(cashier_id,''), updated_at
		FROM terminal_sessions
		WHERE terminal_id = $1
	`, terminalID).Scan(&session.TerminalID, &current, &session.CashierID, &session.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if current.Valid {
		session.CurrentTransactionID = current.String
	}
	session.UpdatedAt = session.UpdatedAt.UTC()
	return &session, nil
}

func (s *Store) UpsertTerminalSession(ctx context.Context, session domain.TerminalSession) error {
	if strings.TrimSpace(session.TerminalID) == "" {
		return fmt.Errorf("%w: terminal id is required", domain.ErrValidation)
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO terminal_sessions (terminal_id, current_transaction_id, cashier_id, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (terminal_id)
		DO UPDATE SET current_transaction_id = EXCLUDED.current_transaction_id,
			cashier_id = EXCLUDED.cashier_id, updated_at = EXCLUDED.updated_at
	`, session.TerminalID, nullIfEmpty(session.CurrentTransactionID), session.CashierID, session.UpdatedAt)
	return err
}

func (s *Store) ListPromotions(ctx context.Context) ([]domain.Promotion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, amount_value, auto_apply, COALESCE(coupon_code,''), priority,
			exclusive, scope, COALESCE(scope_category,''), scope_skus, mixmatch_threshold,
			start_date, end_date, active, created_at
		FROM promotions
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	promos := make([]domain.Promotion, 0, 16)
	for rows.Next() {
		var promo domain.Promotion
		var scopeSKUs []byte
		if err := rows.Scan(&promo.ID, &promo.Name, &promo.Type, &promo.AmountValue, &promo.AutoApply,
			&promo.CouponCode, &promo.Priority, &promo.Exclusive, &promo.Scope, &promo.ScopeCategory,
			&scopeSKUs, &promo.MixMatchThreshold, &promo.StartDate, &promo.EndDate, &promo.Active, &promo.CreatedAt); err != nil {
			return nil, err
		}
		if len(scopeSKUs) > 0 {
			if err := json.Unmarshal(scopeSKUs, &promo.ScopeSKUs); err != nil {
				return nil, err
			}
		}
		promo.StartDate = promo.StartDate.UTC()
		promo.EndDate = promo.EndDate.UTC()
		promo.CreatedAt = promo.CreatedAt.UTC()
		promos = append(promos, promo)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return promos, nil
}

func (s *Store) CreatePromotion(ctx context.Context, promo domain.Promotion) (*domain.Promotion, error) {
	if promo.ID == "" {
		promo.ID = xid.New("promo")
	}
	if promo.CreatedAt.IsZero() {
		promo.CreatedAt = time.Now().UTC()
	}
	scopeSKUs, err := json.Marshal(promo.ScopeSKUs)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO promotions (
			id, name, type, amount_value, auto_apply, coupon_code, priority, exclusive,
			scope, scope_category, scope_skus, mixmatch_threshold, start_date, end_date, active, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, promo.ID, promo.Name, promo.Type, promo.AmountValue, promo.AutoApply, nullIfEmpty(promo.CouponCode),
		promo.Priority, promo.Exclusive, promo.Scope, nullIfEmpty(promo.ScopeCategory), scopeSKUs,
		promo.MixMatchThreshold, promo.StartDate, promo.EndDate, promo.Active, promo.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: promotion %s already exists", domain.ErrConflict, promo.ID)
		}
		return nil, err
	}

	created := promo
	return &created, nil
}

func (s *Store) SetPromotionActive(ctx context.Context, promoID string, active bool) (*domain.Promotion, error) {
	var promo domain.Promotion
	var scopeSKUs []byte
	err := s.db.QueryRowContext(ctx, `
		UPDATE promotions
		SET active = $2
		WHERE id = $1
		RETURNING id, name, type, amount_value, auto_apply, COALESCE(coupon_code,''), priority,
			exclusive, scope, COALESCE(scope_category,''), scope_skus, mixmatch_threshold,
			start_date, end_date, active, created_at
	`, promoID, active).Scan(&promo.ID, &promo.Name, &promo.Type, &promo.AmountValue, &promo.AutoApply,
		&promo.CouponCode, &promo.Priority, &promo.Exclusive, &promo.Scope, &promo.ScopeCategory,
		&scopeSKUs, &promo.MixMatchThreshold, &promo.StartDate, &promo.EndDate, &promo.Active, &promo.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(scopeSKUs) > 0 {
		if err := json.Unmarshal(scopeSKUs, &promo.ScopeSKUs); err != nil {
			return nil, err
		}
	}
	promo.CreatedAt = promo.CreatedAt.UTC()
	return &promo, nil
}

func (s *Store) CreateReturnExchange(ctx context.Context, rec domain.ReturnExchange) (*domain.ReturnExchange, error) {
	if rec.ID == "" || strings.TrimSpace(rec.OriginalTransactionID) == "" || len(rec.Items) == 0 {
		return nil, fmt.Errorf("%w: incomplete return/exchange record", domain.ErrValidation)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	itemsJSON, err := json.Marshal(rec.Items)
	if err != nil {
		return nil, err
	}
	replacementsJSON, err := json.Marshal(rec.ReplacementItems)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO return_exchanges (
			id, original_transaction_id, kind, items, replacement_items,
			refund_amount_cents, additional_due_cents, reason, status, created_at, settled_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, rec.ID, rec.OriginalTransactionID, rec.Kind, itemsJSON, replacementsJSON,
		rec.RefundAmountCents, rec.AdditionalDueCents, rec.Reason, rec.Status, rec.CreatedAt, nullTime(rec.SettledAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: return/exchange %s already exists", domain.ErrConflict, rec.ID)
		}
		return nil, err
	}

	created := rec
	return &created, nil
}

func (s *Store) GetReturnExchange(ctx context.Context, id string) (*domain.ReturnExchange, error) {
	rec, err := scanReturnExchange(s.db.QueryRowContext(ctx, `
		SELECT id, original_transaction_id, kind, items, replacement_items,
			refund_amount_cents, additional_due_cents, reason, status, created_at, settled_at
		FROM return_exchanges
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *Store) UpdateReturnExchange(ctx context.Context, rec domain.ReturnExchange) (*domain.ReturnExchange, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE return_exchanges
		SET status = $2, settled_at = $3, refund_amount_cents = $4, additional_due_cents = $5
		WHERE id = $1
	`, rec.ID, rec.Status, nullTime(rec.SettledAt), rec.RefundAmountCents, rec.AdditionalDueCents)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, domain.ErrNotFound
	}

	updated := rec
	return &updated, nil
}

func (s *Store) ListReturnsByOriginal(ctx context.Context, originalTransactionID string) ([]domain.ReturnExchange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, original_transaction_id, kind, items, replacement_items,
			refund_amount_cents, additional_due_cents, reason, status, created_at, settled_at
		FROM return_exchanges
		WHERE original_transaction_id = $1
		ORDER BY created_at ASC, id ASC
	`, originalTransactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.ReturnExchange, 0, 4)
	for rows.Next() {
		rec, err := scanReturnExchange(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorID, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	if to.IsZero() {
		to = time.Now().UTC().Add(time.Hour)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) GetVariant(ctx context.Context, sku string) (*domain.Variant, error) {
	var v domain.Variant
	err := s.db.QueryRowContext(ctx, `
		SELECT product_id, variant_id, sku, name, category, unit_price_cents, active
		FROM variants
		WHERE sku = $1
	`, sku).Scan(&v.ProductID, &v.VariantID, &v.SKU, &v.Name, &v.Category, &v.UnitPriceCents, &v.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: variant %s", domain.ErrNotFound, sku)
		}
		return nil, err
	}
	return &v, nil
}

func (s *Store) GetVariants(ctx context.Context, skus []string) (map[string]domain.Variant, error) {
	result := make(map[string]domain.Variant, len(skus))
	if len(skus) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, variant_id, sku, name, category, unit_price_cents, active
		FROM variants
		WHERE sku = ANY($1)
	`, skus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.ProductID, &v.VariantID, &v.SKU, &v.Name, &v.Category, &v.UnitPriceCents, &v.Active); err != nil {
			return nil, err
		}
		result[v.SKU] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var itemsJSON, promosJSON, paymentJSON []byte
	var heldAt, completedAt, voidedAt sql.NullTime

	err := row.Scan(
		&tx.ID, &tx.TransactionNumber, &tx.TerminalID, &tx.CashierID, &tx.CustomerID,
		&tx.Status, &itemsJSON, &promosJSON, &tx.CouponCode,
		&tx.Totals.SubtotalCents, &tx.Totals.DiscountTotalCents, &tx.Totals.TaxTotalCents, &tx.Totals.GrandTotalCents,
		&paymentJSON, &tx.VoidReason, &tx.Revision, &tx.CreatedAt, &heldAt, &completedAt, &voidedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &tx.Items); err != nil {
			return nil, err
		}
	}
	if len(promosJSON) > 0 {
		if err := json.Unmarshal(promosJSON, &tx.AppliedPromotions); err != nil {
			return nil, err
		}
	}
	if len(paymentJSON) > 0 && string(paymentJSON) != "null" {
		var payment domain.Payment
		if err := json.Unmarshal(paymentJSON, &payment); err != nil {
			return nil, err
		}
		tx.Payment = &payment
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	if heldAt.Valid {
		at := heldAt.Time.UTC()
		tx.HeldAt = &at
	}
	if completedAt.Valid {
		at := completedAt.Time.UTC()
		tx.CompletedAt = &at
	}
	if voidedAt.Valid {
		at := voidedAt.Time.UTC()
		tx.VoidedAt = &at
	}
	return &tx, nil
}

func scanReturnExchange(row rowScanner) (*domain.ReturnExchange, error) {
	var rec domain.ReturnExchange
	var itemsJSON, replacementsJSON []byte
	var settledAt sql.NullTime

	err := row.Scan(&rec.ID, &rec.OriginalTransactionID, &rec.Kind, &itemsJSON, &replacementsJSON,
		&rec.RefundAmountCents, &rec.AdditionalDueCents, &rec.Reason, &rec.Status, &rec.CreatedAt, &settledAt)
	if err != nil {
		return nil, err
	}

	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &rec.Items); err != nil {
			return nil, err
		}
	}
	if len(replacementsJSON) > 0 && string(replacementsJSON) != "null" {
		if err := json.Unmarshal(replacementsJSON, &rec.ReplacementItems); err != nil {
			return nil, err
		}
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	if settledAt.Valid {
		at := settledAt.Time.UTC()
		rec.SettledAt = &at
	}
	return &rec, nil
}

func encodeTransactionBlobs(tx domain.Transaction) ([]byte, []byte, []byte, error) {
	itemsJSON, err := json.Marshal(tx.Items)
	if err != nil {
		return nil, nil, nil, err
	}
	promosJSON, err := json.Marshal(tx.AppliedPromotions)
	if err != nil {
		return nil, nil, nil, err
	}
	var paymentJSON []byte
	if tx.Payment != nil {
		paymentJSON, err = json.Marshal(tx.Payment)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return itemsJSON, promosJSON, paymentJSON, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
