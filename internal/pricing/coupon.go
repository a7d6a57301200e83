package pricing

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sellava/storefront-cart-go/internal/metrics"
)

const InvalidCouponMessage = "Invalid coupon code"

// Rule is a named percentage discount. Percentage is a fraction: 0.2 is 20%.
type Rule struct {
	Code       string
	Percentage float64
}

// Catalog looks coupon rules up by their uppercased code.
type Catalog interface {
	Find(ctx context.Context, code string) (Rule, bool, error)
}

// CatalogFunc adapts a function, e.g. a remote lookup, to Catalog.
type CatalogFunc func(ctx context.Context, code string) (Rule, bool, error)

func (f CatalogFunc) Find(ctx context.Context, code string) (Rule, bool, error) {
	return f(ctx, code)
}

// StaticCatalog is the fixed, compiled-in coupon table.
type StaticCatalog map[string]float64

// DefaultCoupons is the table the storefront ships with.
var DefaultCoupons = StaticCatalog{
	"WELCOME10": 0.10,
	"WELCOME20": 0.20,
	"SAVE15":    0.15,
}

func (c StaticCatalog) Find(ctx context.Context, code string) (Rule, bool, error) {
	p, ok := c[code]
	if !ok {
		return Rule{}, false, nil
	}
	return Rule{Code: code, Percentage: p}, true, nil
}

type CouponResult struct {
	Code       string  `json:"code"`
	Valid      bool    `json:"valid"`
	Percentage float64 `json:"percentage,omitempty"`
	Discount   float64 `json:"discount"`
	Message    string  `json:"message"`
}

// Validator is stateless: it neither applies nor persists coupons.
type Validator struct {
	catalog Catalog
	logger  zerolog.Logger
}

func NewValidator(catalog Catalog, logger zerolog.Logger) *Validator {
	if catalog == nil {
		catalog = DefaultCoupons
	}
	return &Validator{catalog: catalog, logger: logger}
}

func (v *Validator) ValidateCoupon(ctx context.Context, code string, subtotal float64) CouponResult {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	res := CouponResult{Code: normalized, Message: InvalidCouponMessage}

	if normalized == "" {
		metrics.CouponValidations.WithLabelValues("invalid").Inc()
		return res
	}

	rule, ok, err := v.catalog.Find(ctx, normalized)
	if err != nil {
		v.logger.Error().Err(err).Str("coupon", normalized).Msg("coupon lookup failed")
		metrics.CouponValidations.WithLabelValues("error").Inc()
		return res
	}
	if !ok {
		metrics.CouponValidations.WithLabelValues("invalid").Inc()
		return res
	}

	metrics.CouponValidations.WithLabelValues("valid").Inc()
	res.Valid = true
	res.Percentage = rule.Percentage
	res.Discount = subtotal * rule.Percentage
	res.Message = fmt.Sprintf("%s%% Discount", formatPercent(rule.Percentage))
	return res
}

// formatPercent renders 0.2 as "20" and 0.125 as "12.5".
func formatPercent(p float64) string {
	pct := math.Round(p*10000) / 100
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", pct), "0"), ".")
}
