package domain

import "time"

// All monetary amounts are minor currency units (cents) held in int64.
// Float arithmetic never touches stored amounts.

type TransactionStatus string

const (
	TxStatusDraft     TransactionStatus = "draft"
	TxStatusActive    TransactionStatus = "active"
	TxStatusHeld      TransactionStatus = "held"
	TxStatusCompleted TransactionStatus = "completed"
	TxStatusVoided    TransactionStatus = "voided"
)

// Terminal reports whether the status is one no transition may leave.
func (s TransactionStatus) Terminal() bool {
	return s == TxStatusCompleted || s == TxStatusVoided
}

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

type CartItem struct {
	LineID              string `json:"line_id"`
	ProductID           string `json:"product_id"`
	VariantID           string `json:"variant_id"`
	SKU                 string `json:"sku"`
	UnitPriceCents      int64  `json:"unit_price_cents"`
	Qty                 int    `json:"qty"`
	LineDiscountCents   int64  `json:"line_discount_cents"`
	ManualDiscountCents int64  `json:"manual_discount_cents"`
	ItemsApplyFurther   bool   `json:"items_apply_further"`
	Voided              bool   `json:"voided"`
}

type Totals struct {
	SubtotalCents      int64 `json:"subtotal_cents"`
	DiscountTotalCents int64 `json:"discount_total_cents"`
	TaxTotalCents      int64 `json:"tax_total_cents"`
	GrandTotalCents    int64 `json:"grand_total_cents"`
}

type PromotionApplication struct {
	PromotionID   string `json:"promotion_id"`
	Name          string `json:"name"`
	DiscountCents int64  `json:"discount_cents"`
}

type Payment struct {
	Method              PaymentMethod `json:"method"`
	AmountTenderedCents int64         `json:"amount_tendered_cents"`
	ChangeCents         int64         `json:"change_cents"`
	AuthRef             string        `json:"auth_ref,omitempty"`
}

// PaymentInput is the result handed over by the payment collaborator. For
// cash, AmountTenderedCents is what the customer handed over; for card,
// Approved and AuthRef reflect the gateway authorization.
type PaymentInput struct {
	Method              PaymentMethod `json:"method"`
	AmountTenderedCents int64         `json:"amount_tendered_cents"`
	Approved            bool          `json:"approved"`
	AuthRef             string        `json:"auth_ref,omitempty"`
}

type Transaction struct {
	ID                string                 `json:"id"`
	TransactionNumber string                 `json:"transaction_number,omitempty"`
	TerminalID        string                 `json:"terminal_id"`
	CashierID         string                 `json:"cashier_id"`
	CustomerID        string                 `json:"customer_id,omitempty"`
	Status            TransactionStatus      `json:"status"`
	Items             []CartItem             `json:"items"`
	AppliedPromotions []PromotionApplication `json:"applied_promotions,omitempty"`
	CouponCode        string                 `json:"coupon_code,omitempty"`
	Totals            Totals                 `json:"totals"`
	Payment           *Payment               `json:"payment,omitempty"`
	VoidReason        string                 `json:"void_reason,omitempty"`
	Revision          int64                  `json:"revision"`
	CreatedAt         time.Time              `json:"created_at"`
	HeldAt            *time.Time             `json:"held_at,omitempty"`
	CompletedAt       *time.Time             `json:"completed_at,omitempty"`
	VoidedAt          *time.Time             `json:"voided_at,omitempty"`
}

// ActiveItems returns the non-voided cart lines in entry order.
func (t *Transaction) ActiveItems() []CartItem {
	items := make([]CartItem, 0, len(t.Items))
	for _, item := range t.Items {
		if item.Voided {
			continue
		}
		items = append(items, item)
	}
	return items
}

type PromotionType string

const (
	PromoPercentage PromotionType = "percentage"
	PromoFixed      PromotionType = "fixed"
	PromoBOGO       PromotionType = "bogo"
	PromoMixMatch   PromotionType = "mixmatch"
)

type PromotionScope string

const (
	ScopeAll      PromotionScope = "all"
	ScopeCategory PromotionScope = "category"
	ScopeItemList PromotionScope = "item_list"
)

type Promotion struct {
	ID   string        `json:"id"`
	Name string        `json:"name"`
	Type PromotionType `json:"type"`
	// AmountValue is a percentage for percentage promotions, cents for fixed,
	// and cents off per qualifying group for mixmatch. Unused for bogo.
	AmountValue       int64          `json:"amount_value"`
	AutoApply         bool           `json:"auto_apply"`
	CouponCode        string         `json:"coupon_code,omitempty"`
	Priority          int            `json:"priority"`
	Exclusive         bool           `json:"exclusive"`
	Scope             PromotionScope `json:"scope"`
	ScopeCategory     string         `json:"scope_category,omitempty"`
	ScopeSKUs         []string       `json:"scope_skus,omitempty"`
	MixMatchThreshold int            `json:"mixmatch_threshold,omitempty"`
	StartDate         time.Time      `json:"start_date"`
	EndDate           time.Time      `json:"end_date"`
	Active            bool           `json:"active"`
	CreatedAt         time.Time      `json:"created_at"`
}

// ValidAt reports whether the promotion may apply at the given server time.
// The window is inclusive on both ends; client timestamps are never consulted.
func (p Promotion) ValidAt(now time.Time) bool {
	if !p.Active {
		return false
	}
	if now.Before(p.StartDate) || now.After(p.EndDate) {
		return false
	}
	return true
}

type ReturnExchangeKind string

const (
	KindReturn   ReturnExchangeKind = "return"
	KindExchange ReturnExchangeKind = "exchange"
)

type ReturnExchangeStatus string

const (
	ReturnStatusPending   ReturnExchangeStatus = "pending"
	ReturnStatusCompleted ReturnExchangeStatus = "completed"
	ReturnStatusVoided    ReturnExchangeStatus = "voided"
)

type ReturnLine struct {
	LineID string `json:"line_id"`
	SKU    string `json:"sku"`
	Qty    int    `json:"qty"`
}

type ReplacementLine struct {
	SKU            string `json:"sku"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type ReturnExchange struct {
	ID                    string               `json:"id"`
	OriginalTransactionID string               `json:"original_transaction_id"`
	Kind                  ReturnExchangeKind   `json:"kind"`
	Items                 []ReturnLine         `json:"items"`
	ReplacementItems      []ReplacementLine    `json:"replacement_items,omitempty"`
	RefundAmountCents     int64                `json:"refund_amount_cents"`
	AdditionalDueCents    int64                `json:"additional_due_cents"`
	Reason                string               `json:"reason"`
	Status                ReturnExchangeStatus `json:"status"`
	CreatedAt             time.Time            `json:"created_at"`
	SettledAt             *time.Time           `json:"settled_at,omitempty"`
}

// TerminalSession is the explicit "current transaction for this terminal"
// record. Active-transaction ownership lives here, never in process-wide
// mutable state.
type TerminalSession struct {
	TerminalID           string    `json:"terminal_id"`
	CurrentTransactionID string    `json:"current_transaction_id,omitempty"`
	CashierID            string    `json:"cashier_id,omitempty"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Variant is the catalog collaborator's view of a sellable item.
type Variant struct {
	ProductID      string `json:"product_id"`
	VariantID      string `json:"variant_id"`
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Active         bool   `json:"active"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

type Actor struct {
	Username string
	Role     string
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

// HeldFilter narrows ListHeld queries. Zero values match everything.
type HeldFilter struct {
	TerminalID string
	CashierID  string
	From       time.Time
	To         time.Time
}
