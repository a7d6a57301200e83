package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/sellava/storefront-cart-go/internal/cart"
	"github.com/sellava/storefront-cart-go/internal/events"
	"github.com/sellava/storefront-cart-go/internal/pricing"
	"github.com/sellava/storefront-cart-go/internal/scope"
)

const maxBodyBytes = 1 << 20

type CartEventsPublisher interface {
	PublishCartCheckedOut(ctx context.Context, meta events.EventMeta, snap cart.Snapshot, method events.PaymentMethod) error
}

// ScopeResolver maps a request path to the store scope it operates on.
type ScopeResolver func(ctx context.Context, path string) scope.Scope

type Handler struct {
	carts     *cart.Service
	resolve   ScopeResolver
	remember  func(ctx context.Context, s scope.Scope)
	publisher CartEventsPublisher
	timeout   time.Duration
}

type Options struct {
	// Remember, when set, is called with every scope taken from a
	// /public-store/{storeId} path.
	Remember func(ctx context.Context, s scope.Scope)
	Timeout  time.Duration
}

func NewHandler(carts *cart.Service, resolve ScopeResolver, publisher CartEventsPublisher, opts Options) *Handler {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	return &Handler{
		carts:     carts,
		resolve:   resolve,
		remember:  opts.Remember,
		publisher: publisher,
		timeout:   opts.Timeout,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// scopeFor resolves the request's scope under a bounded context.
func (h *Handler) scopeFor(r *http.Request) (context.Context, context.CancelFunc, scope.Scope) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)

	sc := h.resolve(ctx, r.URL.Path)
	if fromPath, ok := scope.FromPath(r.URL.Path); ok && h.remember != nil {
		h.remember(ctx, fromPath)
	}
	hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("scope", string(sc))
	})
	return ctx, cancel, sc
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, sc := h.scopeFor(r)
	defer cancel()

	writeJSON(w, http.StatusOK, h.carts.Cart(ctx, sc))
}

// AddItem answers 200 even when the item is rejected; the response carries
// applied=false and the violations.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	ctx, cancel, sc := h.scopeFor(r)
	defer cancel()

	res, err := h.carts.AddRaw(ctx, sc, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type quantityRequest struct {
	Quantity *float64 `json:"quantity"`
}

func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	var req quantityRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Quantity == nil ||
		math.IsNaN(*req.Quantity) || math.IsInf(*req.Quantity, 0) {
		writeError(w, http.StatusBadRequest, "quantity must be a number")
		return
	}

	ctx, cancel, sc := h.scopeFor(r)
	defer cancel()

	writeJSON(w, http.StatusOK, h.carts.UpdateQuantity(ctx, sc, productID, *req.Quantity))
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	ctx, cancel, sc := h.scopeFor(r)
	defer cancel()

	writeJSON(w, http.StatusOK, h.carts.Remove(ctx, sc, productID))
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, sc := h.scopeFor(r)
	defer cancel()

	writeJSON(w, http.StatusOK, h.carts.Clear(ctx, sc))
}

type couponRequest struct {
	Code string `json:"code"`
}

type couponResponse struct {
	Coupon pricing.CouponResult `json:"coupon"`
	Write  cart.Outcome         `json:"write"`
}

func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel, sc := h.scopeFor(r)
	defer cancel()

	res, out := h.carts.ApplyCoupon(ctx, sc, req.Code)
	writeJSON(w, http.StatusOK, couponResponse{Coupon: res, Write: out})
}

func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, sc := h.scopeFor(r)
	defer cancel()

	writeJSON(w, http.StatusOK, map[string]cart.Outcome{"write": h.carts.RemoveCoupon(ctx, sc)})
}

func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel, sc := h.scopeFor(r)
	defer cancel()

	writeJSON(w, http.StatusOK, h.carts.ValidateCoupon(ctx, sc, req.Code))
}

type checkoutRequest struct {
	PaymentMethod events.PaymentMethod `json:"paymentMethod"`
}

// checkoutResponse carries the published event id. A write other than "ok"
// means the event went out but the cart could not be cleared; clients must not
// retry the checkout.
type checkoutResponse struct {
	Status  string        `json:"status"`
	EventID string        `json:"eventId"`
	Cart    cart.Snapshot `json:"cart"`
	Write   cart.Outcome  `json:"write"`
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil || !req.PaymentMethod.Valid() {
		writeError(w, http.StatusBadRequest, "paymentMethod must be cash or electronic")
		return
	}

	ctx, cancel, sc := h.scopeFor(r)
	defer cancel()

	meta := events.EventMeta{
		CorrelationID: GetCorrelationID(r.Context()),
		CausationID:   GetCausationID(r.Context()),
		EventID:       uuid.NewString(),
	}
	snap, out, err := h.carts.Checkout(ctx, sc, func(ctx context.Context, final cart.Snapshot) error {
		return h.publisher.PublishCartCheckedOut(ctx, meta, final, req.PaymentMethod)
	})
	switch {
	case errors.Is(err, cart.ErrEmptyCart):
		writeError(w, http.StatusConflict, "cart is empty")
		return
	case err != nil:
		hlog.FromRequest(r).Error().Err(err).Msg("checkout failed")
		writeError(w, http.StatusInternalServerError, "failed to publish cart checked out event")
		return
	}

	if out.Failed() {
		hlog.FromRequest(r).Error().
			Str("event_id", meta.EventID).
			Stringer("write", out).
			Msg("cart not cleared after checkout")
	}
	writeJSON(w, http.StatusOK, checkoutResponse{
		Status:  "checkout completed",
		EventID: meta.EventID,
		Cart:    snap,
		Write:   out,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}
