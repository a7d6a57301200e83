package cart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sellava/storefront-cart-go/internal/kv"
	"github.com/sellava/storefront-cart-go/internal/metrics"
	"github.com/sellava/storefront-cart-go/internal/pricing"
	"github.com/sellava/storefront-cart-go/internal/scope"
)

// Result is what a mutation did. Items is the in-memory cart after the call
// and stays authoritative for this call even if Write reports a failure.
type Result struct {
	Items      []Item      `json:"items"`
	Applied    bool        `json:"applied"`
	Violations []Violation `json:"violations,omitempty"`
	Write      Outcome     `json:"write"`
}

type Snapshot struct {
	Scope   scope.Scope     `json:"storeId"`
	Items   []Item          `json:"items"`
	Coupon  string          `json:"coupon,omitempty"`
	Summary pricing.Summary `json:"summary"`
}

// Service is the cart mutation API. Every operation is a full
// read-validate-modify-write of the scope's list, serialized per session and
// scope within this process. Writers in other processes are last-writer-wins.
type Service struct {
	store   *Store
	coupons *pricing.Validator
	logger  zerolog.Logger

	mu    sync.Mutex
	locks map[lockKey]*sync.Mutex
}

type lockKey struct {
	session string
	scope   scope.Scope
}

func NewService(store *Store, coupons *pricing.Validator, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		coupons: coupons,
		logger:  logger,
		locks:   make(map[lockKey]*sync.Mutex),
	}
}

func (s *Service) lock(ctx context.Context, sc scope.Scope) func() {
	key := lockKey{session: kv.NamespaceFrom(ctx), scope: sc}

	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Add appends c with quantity 1, or bumps the quantity of the line that
// already has c's productId. Color and size are not part of the match.
func (s *Service) Add(ctx context.Context, sc scope.Scope, c Candidate) Result {
	return s.add(ctx, sc, c, nil)
}

// AddRaw decodes an untrusted request body and adds it.
func (s *Service) AddRaw(ctx context.Context, sc scope.Scope, body []byte) (Result, error) {
	c, typeErrs, err := DecodeCandidate(body)
	if err != nil {
		return Result{}, err
	}
	return s.add(ctx, sc, c, typeErrs), nil
}

func (s *Service) add(ctx context.Context, sc scope.Scope, c Candidate, violations []Violation) Result {
	violations = append(violations, missingFields(c, violations)...)

	line := Item{
		ProductID:     strings.TrimSpace(c.ProductID),
		Name:          strings.TrimSpace(c.Name),
		Image:         strings.TrimSpace(c.Image),
		Quantity:      1,
		SelectedColor: c.SelectedColor,
		SelectedSize:  c.SelectedSize,
	}
	if c.Price != nil {
		line.Price = *c.Price
	}
	if len(violations) == 0 {
		violations = Validate(line).Violations
	}
	if len(violations) > 0 {
		s.logger.Warn().
			Str("scope", string(sc)).
			Str("product_id", c.ProductID).
			Str("violations", Verdict{Violations: violations}.String()).
			Msg("rejected cart item")
		metrics.Mutations.WithLabelValues("add", "rejected").Inc()
		return Result{Violations: violations}
	}

	defer s.lock(ctx, sc)()

	items, _ := s.store.LoadValidated(ctx, sc)
	found := false
	for i := range items {
		if sameProduct(items[i].ProductID, line.ProductID) {
			items[i].Quantity++
			found = true
			break
		}
	}
	if !found {
		items = append(items, line)
	}

	return s.commit(ctx, sc, "add", items)
}

func missingFields(c Candidate, already []Violation) []Violation {
	seen := make(map[string]bool, len(already))
	for _, v := range already {
		seen[v.Field] = true
	}

	var out []Violation
	check := func(field string, missing bool) {
		if missing && !seen[field] {
			out = append(out, Violation{field, ReasonMissing})
		}
	}
	check("productId", c.ProductID == "")
	check("name", c.Name == "")
	check("price", c.Price == nil)
	check("image", c.Image == "")
	return out
}

// Remove drops every line with productID. An id that is not in the cart
// leaves storage untouched.
func (s *Service) Remove(ctx context.Context, sc scope.Scope, productID string) Result {
	productID = strings.TrimSpace(productID)
	defer s.lock(ctx, sc)()

	items, _ := s.store.LoadValidated(ctx, sc)
	kept := without(items, productID)
	if len(kept) == len(items) {
		return unchanged(items)
	}
	return s.commit(ctx, sc, "remove", kept)
}

// UpdateQuantity sets the quantity of productID's line. Zero or less removes
// the line. Anything else is truncated to a whole number and clamped to at
// least 1, so 0.5 becomes 1 and 2.7 becomes 2.
func (s *Service) UpdateQuantity(ctx context.Context, sc scope.Scope, productID string, quantity float64) Result {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		metrics.Mutations.WithLabelValues("update_quantity", "rejected").Inc()
		return Result{Violations: []Violation{{"quantity", ReasonNotFinite}}}
	}
	if quantity <= 0 {
		return s.Remove(ctx, sc, productID)
	}

	productID = strings.TrimSpace(productID)
	want := max(1, math.Trunc(quantity))
	defer s.lock(ctx, sc)()

	items, _ := s.store.LoadValidated(ctx, sc)
	changed := false
	for i := range items {
		if sameProduct(items[i].ProductID, productID) && items[i].Quantity != want {
			items[i].Quantity = want
			changed = true
		}
	}
	if !changed {
		return unchanged(items)
	}
	return s.commit(ctx, sc, "update_quantity", items)
}

// Clear empties the cart and removes the applied coupon.
func (s *Service) Clear(ctx context.Context, sc scope.Scope) Result {
	defer s.lock(ctx, sc)()

	res := s.commit(ctx, sc, "clear", []Item{})
	if w := s.store.SaveCoupon(ctx, sc, ""); w != OutcomeOK && res.Write == OutcomeOK {
		res.Write = w
	}
	return res
}

func (s *Service) commit(ctx context.Context, sc scope.Scope, op string, items []Item) Result {
	w := s.store.Save(ctx, sc, items)
	metrics.Mutations.WithLabelValues(op, metrics.Result(true)).Inc()
	return Result{Items: items, Applied: true, Write: w}
}

// unchanged reports a mutation that matched nothing. Nothing is written.
func unchanged(items []Item) Result {
	return Result{Items: items, Applied: true, Write: OutcomeOK}
}

// sameProduct compares ids trimmed. Lines written by other clients may carry
// surrounding whitespace.
func sameProduct(stored, productID string) bool {
	return strings.TrimSpace(stored) == productID
}

func without(items []Item, productID string) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if !sameProduct(it.ProductID, productID) {
			out = append(out, it)
		}
	}
	return out
}

// Cart returns the validated items, the applied coupon and their pricing.
func (s *Service) Cart(ctx context.Context, sc scope.Scope) Snapshot {
	defer s.lock(ctx, sc)()

	items, _ := s.store.LoadValidated(ctx, sc)
	code, _ := s.store.LoadCoupon(ctx, sc)
	return Snapshot{
		Scope:   sc,
		Items:   items,
		Coupon:  code,
		Summary: pricing.Summarize(ctx, s.coupons, items, code),
	}
}

// ValidateCoupon checks code against the current subtotal without applying it.
func (s *Service) ValidateCoupon(ctx context.Context, sc scope.Scope, code string) pricing.CouponResult {
	defer s.lock(ctx, sc)()

	items, _ := s.store.LoadValidated(ctx, sc)
	return s.coupons.ValidateCoupon(ctx, code, pricing.Total(items))
}

// ApplyCoupon stores code if it validates. Invalid codes are not stored and
// leave any previously applied coupon in place.
func (s *Service) ApplyCoupon(ctx context.Context, sc scope.Scope, code string) (pricing.CouponResult, Outcome) {
	defer s.lock(ctx, sc)()

	items, _ := s.store.LoadValidated(ctx, sc)
	res := s.coupons.ValidateCoupon(ctx, code, pricing.Total(items))
	if !res.Valid {
		metrics.Mutations.WithLabelValues("apply_coupon", "rejected").Inc()
		return res, OutcomeOK
	}
	metrics.Mutations.WithLabelValues("apply_coupon", metrics.Result(true)).Inc()
	return res, s.store.SaveCoupon(ctx, sc, res.Code)
}

// RemoveCoupon never touches the item list.
func (s *Service) RemoveCoupon(ctx context.Context, sc scope.Scope) Outcome {
	defer s.lock(ctx, sc)()

	metrics.Mutations.WithLabelValues("remove_coupon", metrics.Result(true)).Inc()
	return s.store.SaveCoupon(ctx, sc, "")
}

var ErrEmptyCart = errors.New("cart is empty")

// Handoff receives the final cart at checkout.
type Handoff func(ctx context.Context, snap Snapshot) error

// Checkout passes the priced cart to handoff and clears it once handoff
// succeeds. The cart and coupon are kept when handoff fails. The returned
// Outcome describes the clear.
func (s *Service) Checkout(ctx context.Context, sc scope.Scope, handoff Handoff) (Snapshot, Outcome, error) {
	defer s.lock(ctx, sc)()

	items, _ := s.store.LoadValidated(ctx, sc)
	if len(items) == 0 {
		metrics.Checkouts.WithLabelValues("empty").Inc()
		return Snapshot{Scope: sc, Items: items}, OutcomeOK, ErrEmptyCart
	}

	code, _ := s.store.LoadCoupon(ctx, sc)
	snap := Snapshot{
		Scope:   sc,
		Items:   items,
		Coupon:  code,
		Summary: pricing.Summarize(ctx, s.coupons, items, code),
	}

	if err := handoff(ctx, snap); err != nil {
		metrics.Checkouts.WithLabelValues("failed").Inc()
		return snap, OutcomeOK, fmt.Errorf("checkout handoff: %w", err)
	}
	metrics.Checkouts.WithLabelValues(metrics.Result(true)).Inc()

	out := s.store.Save(ctx, sc, []Item{})
	if w := s.store.SaveCoupon(ctx, sc, ""); out == OutcomeOK {
		out = w
	}
	if out.Failed() {
		s.logger.Error().Str("scope", string(sc)).Msg("cart kept after successful checkout")
	}
	return snap, out, nil
}
