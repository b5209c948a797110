package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/clickmaster4285/POS-Clothing-sub000/internal/domain"
	"github.com/clickmaster4285/POS-Clothing-sub000/internal/service"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	pinLimiter    *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		pinLimiter:    newAttemptLimiter(8, time.Minute),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)

	mux.HandleFunc("/api/v1/transactions", a.requireAuth(a.handleTransactions, "cashier", "admin"))
	mux.HandleFunc("/api/v1/transactions/", a.requireAuth(a.handleTransactionActions, "cashier", "admin"))
	mux.HandleFunc("/api/v1/returns", a.requireAuth(a.handleReturns, "cashier", "admin"))
	mux.HandleFunc("/api/v1/returns/", a.requireAuth(a.handleReturnActions, "cashier", "admin"))
	mux.HandleFunc("/api/v1/exchanges", a.requireAuth(a.handleExchanges, "cashier", "admin"))

	mux.HandleFunc("/api/v1/promotions", a.requireAuth(a.handlePromotions, "admin"))
	mux.HandleFunc("/api/v1/promotions/", a.requireAuth(a.handlePromotionActions, "admin"))
	mux.HandleFunc("/api/v1/audit-logs", a.requireAuth(a.handleAuditLogs, "admin"))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type createTransactionRequest struct {
	TerminalID string `json:"terminal_id"`
	CashierID  string `json:"cashier_id"`
	CustomerID string `json:"customer_id"`
}

func (a *API) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createTransactionRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		tx, err := a.service.CreateTransaction(r.Context(), req.TerminalID, req.CashierID, req.CustomerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, tx)
	case http.MethodGet:
		number := strings.TrimSpace(r.URL.Query().Get("number"))
		if number == "" {
			writeError(w, http.StatusBadRequest, errors.New("number query parameter is required"))
			return
		}
		tx, err := a.service.GetTransactionByNumber(r.Context(), number)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	default:
		writeMethodNotAllowed(w)
	}
}

type addItemRequest struct {
	SKU      string `json:"sku"`
	Qty      int    `json:"qty"`
	Revision int64  `json:"revision"`
}

type updateLineRequest struct {
	Qty                 *int   `json:"qty,omitempty"`
	ManualDiscountCents *int64 `json:"manual_discount_cents,omitempty"`
	ApplyFurther        bool   `json:"apply_further,omitempty"`
	Revision            int64  `json:"revision"`
}

type revisionRequest struct {
	Revision int64 `json:"revision"`
}

type couponRequest struct {
	Code     string `json:"code"`
	Revision int64  `json:"revision"`
}

type voidRequest struct {
	Reason   string `json:"reason"`
	Revision int64  `json:"revision"`
}

type retrieveRequest struct {
	TerminalID string `json:"terminal_id"`
	CashierID  string `json:"cashier_id"`
}

type completeRequest struct {
	Payment  domain.PaymentInput `json:"payment"`
	Revision int64               `json:"revision"`
}

// handleTransactionActions routes /api/v1/transactions/{id}[/...]. The held
// listing also lives under this prefix as /api/v1/transactions/held.
func (a *API) handleTransactionActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/transactions/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeError(w, http.StatusNotFound, errors.New("transaction id is required"))
		return
	}

	if segments[0] == "held" {
		a.handleListHeld(w, r)
		return
	}

	txID := segments[0]
	switch {
	case len(segments) == 1:
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		tx, err := a.service.GetTransaction(r.Context(), txID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	case len(segments) == 2 && segments[1] == "items":
		a.handleAddItem(w, r, txID)
	case len(segments) == 3 && segments[1] == "items":
		a.handleLine(w, r, txID, segments[2])
	case len(segments) == 4 && segments[1] == "items" && segments[3] == "void":
		a.handleVoidItem(w, r, txID, segments[2])
	case len(segments) == 2 && segments[1] == "coupon":
		a.handleCoupon(w, r, txID)
	case len(segments) == 2 && segments[1] == "hold":
		a.handleHold(w, r, txID)
	case len(segments) == 2 && segments[1] == "retrieve":
		a.handleRetrieve(w, r, txID)
	case len(segments) == 2 && segments[1] == "void":
		a.handleVoid(w, r, txID)
	case len(segments) == 2 && segments[1] == "complete":
		a.handleComplete(w, r, txID)
	case len(segments) == 2 && segments[1] == "complete-held":
		a.handleCompleteHeld(w, r, txID)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown transaction action"))
	}
}

func (a *API) handleListHeld(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	filter := domain.HeldFilter{
		TerminalID: strings.TrimSpace(r.URL.Query().Get("terminal_id")),
		CashierID:  strings.TrimSpace(r.URL.Query().Get("cashier_id")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid from timestamp"))
			return
		}
		filter.From = from
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid to timestamp"))
			return
		}
		filter.To = to
	}

	held, err := a.service.ListHeld(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"held": held})
}

func (a *API) handleAddItem(w http.ResponseWriter, r *http.Request, txID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tx, err := a.service.AddItem(r.Context(), txID, req.SKU, req.Qty, req.Revision)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (a *API) handleLine(w http.ResponseWriter, r *http.Request, txID string, lineID string) {
	switch r.Method {
	case http.MethodPatch:
		var req updateLineRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if req.Qty == nil && req.ManualDiscountCents == nil {
			writeError(w, http.StatusBadRequest, errors.New("nothing to update"))
			return
		}
		var tx *domain.Transaction
		var err error
		revision := req.Revision
		if req.Qty != nil {
			tx, err = a.service.UpdateQuantity(r.Context(), txID, lineID, *req.Qty, revision)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			revision = tx.Revision
		}
		if req.ManualDiscountCents != nil {
			tx, err = a.service.SetManualDiscount(r.Context(), txID, lineID, *req.ManualDiscountCents, req.ApplyFurther, revision)
			if err != nil {
				writeServiceError(w, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, tx)
	case http.MethodDelete:
		revision, err := revisionFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		tx, err := a.service.RemoveLine(r.Context(), txID, lineID, revision)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleVoidItem(w http.ResponseWriter, r *http.Request, txID string, lineID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req voidRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tx, err := a.service.VoidItem(r.Context(), txID, lineID, req.Reason, req.Revision)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (a *API) handleCoupon(w http.ResponseWriter, r *http.Request, txID string) {
	switch r.Method {
	case http.MethodPost:
		var req couponRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		tx, err := a.service.ApplyCoupon(r.Context(), txID, req.Code, req.Revision)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	case http.MethodDelete:
		revision, err := revisionFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		tx, err := a.service.ClearCoupon(r.Context(), txID, revision)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleHold(w http.ResponseWriter, r *http.Request, txID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req revisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tx, err := a.service.Hold(r.Context(), txID, req.Revision)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (a *API) handleRetrieve(w http.ResponseWriter, r *http.Request, txID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req retrieveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tx, err := a.service.Retrieve(r.Context(), txID, req.TerminalID, req.CashierID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// handleVoid voids a draft, active or held transaction. Cashiers need a
// manager PIN; admins void on their own authority.
func (a *API) handleVoid(w http.ResponseWriter, r *http.Request, txID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	actor, _ := service.ActorFromContext(r.Context())
	if actor.Role != "admin" {
		if !a.pinLimiter.Allow(clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, errors.New("too many PIN attempts"))
			return
		}
		if !a.auth.ValidateManagerPIN(r.Header.Get("X-Manager-PIN")) {
			writeError(w, http.StatusForbidden, errors.New("manager PIN required"))
			return
		}
	}

	var req voidRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tx, err := a.service.VoidTransaction(r.Context(), txID, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (a *API) handleComplete(w http.ResponseWriter, r *http.Request, txID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req completeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tx, err := a.service.Complete(r.Context(), txID, req.Payment, req.Revision)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

type completeHeldRequest struct {
	TerminalID string              `json:"terminal_id"`
	CashierID  string              `json:"cashier_id"`
	Payment    domain.PaymentInput `json:"payment"`
}

// handleCompleteHeld settles a held transaction in one step: resume on the
// requesting terminal, then complete against the freshly repriced totals.
func (a *API) handleCompleteHeld(w http.ResponseWriter, r *http.Request, txID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req completeHeldRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tx, err := a.service.CompleteHeld(r.Context(), txID, req.TerminalID, req.CashierID, req.Payment)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

type createReturnRequest struct {
	OriginalTransactionID string              `json:"original_transaction_id"`
	Items                 []domain.ReturnLine `json:"items"`
	Reason                string              `json:"reason"`
}

type settleRequest struct {
	Payment *domain.PaymentInput `json:"payment,omitempty"`
}

type createExchangeRequest struct {
	OriginalTransactionID string                   `json:"original_transaction_id"`
	Items                 []domain.ReturnLine      `json:"items"`
	ReplacementItems      []domain.ReplacementLine `json:"replacement_items"`
	Reason                string                   `json:"reason"`
}

func (a *API) handleReturns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createReturnRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		rec, err := a.service.CreateReturn(r.Context(), req.OriginalTransactionID, req.Items, req.Reason)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	case http.MethodGet:
		originalID := strings.TrimSpace(r.URL.Query().Get("original_transaction_id"))
		if originalID == "" {
			writeError(w, http.StatusBadRequest, errors.New("original_transaction_id query parameter is required"))
			return
		}
		records, err := a.service.ListReturnsByOriginal(r.Context(), originalID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"returns": records})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleReturnActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/returns/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeError(w, http.StatusNotFound, errors.New("return id is required"))
		return
	}

	recID := segments[0]
	switch {
	case len(segments) == 1:
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		rec, err := a.service.GetReturnExchange(r.Context(), recID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case len(segments) == 2 && segments[1] == "settle":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req settleRequest
		if r.ContentLength > 0 {
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		}
		rec, err := a.service.SettleReturnExchange(r.Context(), recID, req.Payment)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case len(segments) == 2 && segments[1] == "void":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req voidRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		rec, err := a.service.VoidReturnExchange(r.Context(), recID, req.Reason)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown return action"))
	}
}

func (a *API) handleExchanges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req createExchangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := a.service.CreateExchange(r.Context(), req.OriginalTransactionID, req.Items, req.ReplacementItems, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) handlePromotions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		promos, err := a.service.ListPromotions(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"promotions": promos})
	case http.MethodPost:
		var promo domain.Promotion
		if err := decodeJSON(r, &promo); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := a.service.CreatePromotion(r.Context(), promo)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		writeMethodNotAllowed(w)
	}
}

type promotionToggleRequest struct {
	Active bool `json:"active"`
}

func (a *API) handlePromotionActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/promotions/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) != 2 || segments[1] != "active" {
		writeError(w, http.StatusNotFound, errors.New("unknown promotion action"))
		return
	}
	if r.Method != http.MethodPatch {
		writeMethodNotAllowed(w)
		return
	}

	var req promotionToggleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	promo, err := a.service.SetPromotionActive(r.Context(), segments[0], req.Active)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, promo)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	var from, to time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid from timestamp"))
			return
		}
		from = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid to timestamp"))
			return
		}
		to = parsed
	}
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	logs, err := a.service.ListAuditLogs(r.Context(), from, to, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit_logs": logs})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Manager-PIN")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

// writeServiceError maps the domain error taxonomy onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrInvalidStateTransition):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrBusinessRule):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func revisionFromQuery(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("revision"))
	if raw == "" {
		return 0, errors.New("revision query parameter is required")
	}
	revision, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || revision < 1 {
		return 0, errors.New("invalid revision")
	}
	return revision, nil
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx responses carry a generic message so internals never leak to the
	// terminal; 4xx messages are user-facing.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
