package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/clickmaster4285/POS-Clothing-sub000/internal/cache"
	"github.com/clickmaster4285/POS-Clothing-sub000/internal/domain"
	"github.com/clickmaster4285/POS-Clothing-sub000/internal/pricing"
	"github.com/clickmaster4285/POS-Clothing-sub000/internal/store"
	"github.com/clickmaster4285/POS-Clothing-sub000/internal/xid"
)

const promotionCacheKey = "promotions:all"

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service owns the transaction lifecycle. Every mutating cart operation
// reprices the whole transaction synchronously and bumps the revision through
// the repository's compare-and-swap; callers that lose the race get
// domain.ErrConflict and are expected to re-read and retry.
type Service struct {
	repo           store.Repository
	catalog        store.Catalog
	promoCache     cache.PromotionCache
	taxRatePercent float64
	promoTTL       time.Duration
	now            func() time.Time
}

func New(repo store.Repository, catalog store.Catalog, promoCache cache.PromotionCache, taxRatePercent float64, promoTTL time.Duration) *Service {
	if promoCache == nil {
		promoCache = cache.NoopPromotionCache{}
	}
	if promoTTL < time.Second {
		promoTTL = 30 * time.Second
	}

	return &Service{
		repo:           repo,
		catalog:        catalog,
		promoCache:     promoCache,
		taxRatePercent: taxRatePercent,
		promoTTL:       promoTTL,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

func (s *Service) GetTransactionByNumber(ctx context.Context, number string) (*domain.Transaction, error) {
	return s.repo.GetTransactionByNumber(ctx, strings.TrimSpace(number))
}

// AddItem appends qty units of a SKU to the cart. An existing non-voided line
// for the same SKU without a manual discount absorbs the quantity instead of
// creating a duplicate line.
func (s *Service) AddItem(ctx context.Context, txID string, sku string, qty int, expectedRevision int64) (*domain.Transaction, error) {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return nil, fmt.Errorf("%w: sku is required", domain.ErrValidation)
	}
	if qty < 1 {
		return nil, fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}

	tx, err := s.loadEditable(ctx, txID, expectedRevision)
	if err != nil {
		return nil, err
	}

	variant, err := s.catalog.GetVariant(ctx, sku)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown sku %s", domain.ErrValidation, sku)
		}
		return nil, err
	}
	if !variant.Active {
		return nil, fmt.Errorf("%w: variant %s is not sellable", domain.ErrBusinessRule, sku)
	}

	merged := false
	for i := range tx.Items {
		line := &tx.Items[i]
		if line.Voided || line.SKU != sku || line.ManualDiscountCents > 0 {
			continue
		}
		line.Qty += qty
		merged = true
		break
	}
	if !merged {
		tx.Items = append(tx.Items, domain.CartItem{
			LineID:         xid.New("line"),
			ProductID:      variant.ProductID,
			VariantID:      variant.VariantID,
			SKU:            variant.SKU,
			UnitPriceCents: variant.UnitPriceCents,
			Qty:            qty,
		})
	}
	if tx.Status == domain.TxStatusDraft {
		tx.Status = domain.TxStatusActive
	}

	return s.repriceAndSave(ctx, tx, expectedRevision)
}

func (s *Service) UpdateQuantity(ctx context.Context, txID string, lineID string, qty int, expectedRevision int64) (*domain.Transaction, error) {
	if qty < 1 {
		return nil, fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}

	tx, err := s.loadEditable(ctx, txID, expectedRevision)
	if err != nil {
		return nil, err
	}

	line := findLine(tx, lineID)
	if line == nil {
		return nil, fmt.Errorf("%w: line %s", domain.ErrNotFound, lineID)
	}
	line.Qty = qty

	return s.repriceAndSave(ctx, tx, expectedRevision)
}

// RemoveLine deletes a cart line outright. Contrast VoidItem, which keeps the
// line for the audit trail.
func (s *Service) RemoveLine(ctx context.Context, txID string, lineID string, expectedRevision int64) (*domain.Transaction, error) {
	tx, err := s.loadEditable(ctx, txID, expectedRevision)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range tx.Items {
		if tx.Items[i].LineID == lineID && !tx.Items[i].Voided {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: line %s", domain.ErrNotFound, lineID)
	}
	tx.Items = append(tx.Items[:idx], tx.Items[idx+1:]...)
	if len(tx.ActiveItems()) == 0 {
		tx.Status = domain.TxStatusDraft
	}

	return s.repriceAndSave(ctx, tx, expectedRevision)
}

// SetManualDiscount records a cashier-entered line discount. applyFurther
// opts the line back into promotional stacking; the default keeps manually
// discounted lines out of promotion scope.
func (s *Service) SetManualDiscount(ctx context.Context, txID string, lineID string, amountCents int64, applyFurther bool, expectedRevision int64) (*domain.Transaction, error) {
	if amountCents < 0 {
		return nil, fmt.Errorf("%w: manual discount must not be negative", domain.ErrValidation)
	}

	tx, err := s.loadEditable(ctx, txID, expectedRevision)
	if err != nil {
		return nil, err
	}

	line := findLine(tx, lineID)
	if line == nil {
		return nil, fmt.Errorf("%w: line %s", domain.ErrNotFound, lineID)
	}
	if amountCents > line.UnitPriceCents*int64(line.Qty) {
		return nil, fmt.Errorf("%w: manual discount exceeds line subtotal", domain.ErrBusinessRule)
	}
	line.ManualDiscountCents = amountCents
	line.ItemsApplyFurther = applyFurther

	return s.repriceAndSave(ctx, tx, expectedRevision)
}

func (s *Service) ApplyCoupon(ctx context.Context, txID string, code string, expectedRevision int64) (*domain.Transaction, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: coupon code is required", domain.ErrValidation)
	}

	tx, err := s.loadEditable(ctx, txID, expectedRevision)
	if err != nil {
		return nil, err
	}
	tx.CouponCode = code

	return s.repriceAndSave(ctx, tx, expectedRevision)
}

func (s *Service) ClearCoupon(ctx context.Context, txID string, expectedRevision int64) (*domain.Transaction, error) {
	tx, err := s.loadEditable(ctx, txID, expectedRevision)
	if err != nil {
		return nil, err
	}
	tx.CouponCode = ""

	return s.repriceAndSave(ctx, tx, expectedRevision)
}

// loadEditable fetches the transaction and verifies it can still accept cart
// edits at the revision the caller saw.
func (s *Service) loadEditable(ctx context.Context, txID string, expectedRevision int64) (*domain.Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.Revision != expectedRevision {
		return nil, fmt.Errorf("%w: transaction %s is at revision %d, caller saw %d", domain.ErrConflict, txID, tx.Revision, expectedRevision)
	}
	if tx.Status != domain.TxStatusDraft && tx.Status != domain.TxStatusActive {
		return nil, fmt.Errorf("%w: cannot edit a %s transaction", domain.ErrInvalidStateTransition, tx.Status)
	}
	return tx, nil
}

// repriceAndSave recomputes totals from scratch and persists through the
// revision CAS. Totals are never patched incrementally.
func (s *Service) repriceAndSave(ctx context.Context, tx *domain.Transaction, expectedRevision int64) (*domain.Transaction, error) {
	if err := s.reprice(ctx, tx); err != nil {
		return nil, err
	}
	tx.Revision = expectedRevision + 1
	return s.repo.UpdateTransaction(ctx, *tx, expectedRevision)
}

func (s *Service) reprice(ctx context.Context, tx *domain.Transaction) error {
	active := tx.ActiveItems()
	skus := make([]string, 0, len(active))
	for _, line := range active {
		skus = append(skus, line.SKU)
	}
	variants, err := s.catalog.GetVariants(ctx, skus)
	if err != nil {
		return err
	}
	categories := make(map[string]string, len(variants))
	for sku, v := range variants {
		if !v.Active {
			return fmt.Errorf("%w: variant %s is no longer sellable", domain.ErrBusinessRule, sku)
		}
		categories[sku] = v.Category
	}

	promos, err := s.loadPromotions(ctx)
	if err != nil {
		return err
	}

	result, err := pricing.Compute(pricing.Input{
		Items:          tx.Items,
		Promotions:     promos,
		CouponCode:     tx.CouponCode,
		Categories:     categories,
		TaxRatePercent: s.taxRatePercent,
		Now:            s.now(),
	})
	if err != nil {
		return err
	}

	tx.Totals = result.Totals
	tx.AppliedPromotions = result.Applied
	for i := range tx.Items {
		if tx.Items[i].Voided {
			continue
		}
		tx.Items[i].LineDiscountCents = result.LineDiscounts[tx.Items[i].LineID]
	}
	return nil
}

func (s *Service) loadPromotions(ctx context.Context) ([]domain.Promotion, error) {
	if promos, ok, err := s.promoCache.Get(ctx, promotionCacheKey); err == nil && ok {
		return promos, nil
	} else if err != nil {
		log.Printf("[service] WARN: promotion cache read failed: %v", err)
	}

	promos, err := s.repo.ListPromotions(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.promoCache.Set(ctx, promotionCacheKey, promos, s.promoTTL); err != nil {
		log.Printf("[service] WARN: promotion cache write failed: %v", err)
	}
	return promos, nil
}

func (s *Service) ListPromotions(ctx context.Context) ([]domain.Promotion, error) {
	return s.repo.ListPromotions(ctx)
}

func (s *Service) CreatePromotion(ctx context.Context, promo domain.Promotion) (*domain.Promotion, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return nil, fmt.Errorf("%w: admin role required", domain.ErrBusinessRule)
	}

	promo.Name = strings.TrimSpace(promo.Name)
	if promo.Name == "" {
		return nil, fmt.Errorf("%w: promotion name is required", domain.ErrValidation)
	}
	switch promo.Type {
	case domain.PromoPercentage:
		if promo.AmountValue < 1 || promo.AmountValue > 100 {
			return nil, fmt.Errorf("%w: percentage must be between 1 and 100", domain.ErrValidation)
		}
	case domain.PromoFixed:
		if promo.AmountValue < 1 {
			return nil, fmt.Errorf("%w: fixed amount must be positive", domain.ErrValidation)
		}
	case domain.PromoBOGO:
	case domain.PromoMixMatch:
		if promo.MixMatchThreshold < 2 {
			return nil, fmt.Errorf("%w: mixmatch threshold must be at least 2", domain.ErrValidation)
		}
		if promo.AmountValue < 1 {
			return nil, fmt.Errorf("%w: mixmatch amount must be positive", domain.ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: unknown promotion type %q", domain.ErrValidation, promo.Type)
	}
	if !promo.AutoApply && strings.TrimSpace(promo.CouponCode) == "" {
		return nil, fmt.Errorf("%w: coupon promotions need a coupon code", domain.ErrValidation)
	}
	if promo.Scope == "" {
		promo.Scope = domain.ScopeAll
	}
	if promo.EndDate.Before(promo.StartDate) {
		return nil, fmt.Errorf("%w: promotion window ends before it starts", domain.ErrValidation)
	}
	promo.Active = true
	promo.CreatedAt = s.now()

	saved, err := s.repo.CreatePromotion(ctx, promo)
	if err != nil {
		return nil, err
	}
	if err := s.promoCache.Invalidate(ctx, promotionCacheKey); err != nil {
		log.Printf("[service] WARN: promotion cache invalidate failed: %v", err)
	}
	s.logAudit(ctx, "promotion_create", "promotion", saved.ID, fmt.Sprintf("type=%s,name=%s", saved.Type, saved.Name))
	return saved, nil
}

func (s *Service) SetPromotionActive(ctx context.Context, promoID string, active bool) (*domain.Promotion, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return nil, fmt.Errorf("%w: admin role required", domain.ErrBusinessRule)
	}

	updated, err := s.repo.SetPromotionActive(ctx, promoID, active)
	if err != nil {
		return nil, err
	}
	if err := s.promoCache.Invalidate(ctx, promotionCacheKey); err != nil {
		log.Printf("[service] WARN: promotion cache invalidate failed: %v", err)
	}
	s.logAudit(ctx, "promotion_toggle", "promotion", promoID, fmt.Sprintf("active=%t", active))
	return updated, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, _ := ActorFromContext(ctx)
	entry := domain.AuditLog{
		ID:         xid.New("audit"),
		ActorID:    actor.Username,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  s.now(),
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func findLine(tx *domain.Transaction, lineID string) *domain.CartItem {
	for i := range tx.Items {
		if tx.Items[i].LineID == lineID && !tx.Items[i].Voided {
			return &tx.Items[i]
		}
	}
	return nil
}
