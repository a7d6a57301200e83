package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sellava/storefront-cart-go/internal/kv"
	"github.com/sellava/storefront-cart-go/internal/metrics"
	"github.com/sellava/storefront-cart-go/internal/scope"
)

const (
	cartKeyPrefix   = "sellava_cart_"
	couponKeyPrefix = "sellava_coupon_"
)

func CartKey(s scope.Scope) string   { return cartKeyPrefix + string(s) }
func CouponKey(s scope.Scope) string { return couponKeyPrefix + string(s) }

// Outcome reports what a best-effort storage call actually did. Storage
// failures never surface as errors; callers that care inspect the Outcome.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeMissing
	OutcomeCorrupt
	OutcomeRepaired
	OutcomeReadFailed
	OutcomeWriteFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeMissing:
		return "missing"
	case OutcomeCorrupt:
		return "corrupt"
	case OutcomeRepaired:
		return "repaired"
	case OutcomeReadFailed:
		return "read_failed"
	case OutcomeWriteFailed:
		return "write_failed"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	for c := OutcomeOK; c <= OutcomeWriteFailed; c++ {
		if c.String() == string(text) {
			*o = c
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// Failed is true when storage could not be read or written.
func (o Outcome) Failed() bool {
	return o == OutcomeReadFailed || o == OutcomeWriteFailed
}

// Store is the only code that reads or writes cart and coupon keys.
type Store struct {
	kv     kv.Store
	logger zerolog.Logger
}

func NewStore(store kv.Store, logger zerolog.Logger) *Store {
	return &Store{kv: store, logger: logger}
}

// Load returns the persisted entries undecoded. Missing, unreadable and
// unparseable data all come back as an empty list.
func (s *Store) Load(ctx context.Context, sc scope.Scope) ([]json.RawMessage, Outcome) {
	v, err := s.kv.Get(ctx, CartKey(sc))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return []json.RawMessage{}, OutcomeMissing
		}
		s.logger.Error().Err(err).Str("scope", string(sc)).Msg("read cart")
		metrics.StorageFailures.WithLabelValues("read").Inc()
		return []json.RawMessage{}, OutcomeReadFailed
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(v), &raw); err != nil {
		s.logger.Warn().Err(err).Str("scope", string(sc)).Msg("stored cart is not a JSON array, treating as empty")
		metrics.StorageFailures.WithLabelValues("decode").Inc()
		return []json.RawMessage{}, OutcomeCorrupt
	}
	if raw == nil {
		raw = []json.RawMessage{}
	}
	return raw, OutcomeOK
}

// LoadValidated is Load followed by Repair. When entries were dropped the
// filtered list is written back before returning.
func (s *Store) LoadValidated(ctx context.Context, sc scope.Scope) ([]Item, Outcome) {
	raw, out := s.Load(ctx, sc)
	if out != OutcomeOK {
		return []Item{}, out
	}

	report := Repair(raw)
	if report.Dropped() == 0 {
		return report.Kept, OutcomeOK
	}

	reasons := make([]string, len(report.Rejected))
	for i, r := range report.Rejected {
		reasons[i] = fmt.Sprintf("#%d %s", r.Index, r.Verdict)
	}
	s.logger.Warn().
		Str("scope", string(sc)).
		Int("dropped", report.Dropped()).
		Strs("reasons", reasons).
		Msg("dropped malformed cart items")
	metrics.RepairedItems.Add(float64(report.Dropped()))

	if w := s.Save(ctx, sc, report.Kept); w != OutcomeOK {
		return report.Kept, w
	}
	return report.Kept, OutcomeRepaired
}

// Save overwrites the persisted list for sc.
func (s *Store) Save(ctx context.Context, sc scope.Scope, items []Item) Outcome {
	if items == nil {
		items = []Item{}
	}
	body, err := json.Marshal(items)
	if err != nil {
		s.logger.Error().Err(err).Str("scope", string(sc)).Msg("encode cart")
		metrics.StorageFailures.WithLabelValues("encode").Inc()
		return OutcomeWriteFailed
	}
	if err := s.kv.Set(ctx, CartKey(sc), string(body)); err != nil {
		s.logger.Error().Err(err).Str("scope", string(sc)).Msg("write cart")
		metrics.StorageFailures.WithLabelValues("write").Inc()
		return OutcomeWriteFailed
	}
	return OutcomeOK
}

// LoadCoupon accepts both a JSON string and plain text; blank means none.
func (s *Store) LoadCoupon(ctx context.Context, sc scope.Scope) (string, bool) {
	v, err := s.kv.Get(ctx, CouponKey(sc))
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.logger.Error().Err(err).Str("scope", string(sc)).Msg("read coupon")
			metrics.StorageFailures.WithLabelValues("read").Inc()
		}
		return "", false
	}

	code := v
	var decoded string
	if err := json.Unmarshal([]byte(v), &decoded); err == nil {
		code = decoded
	}
	code = strings.TrimSpace(code)
	return code, code != ""
}

// SaveCoupon stores code for sc; an empty code removes it.
func (s *Store) SaveCoupon(ctx context.Context, sc scope.Scope, code string) Outcome {
	code = strings.TrimSpace(code)

	var err error
	if code == "" {
		err = s.kv.Delete(ctx, CouponKey(sc))
	} else {
		body, _ := json.Marshal(code)
		err = s.kv.Set(ctx, CouponKey(sc), string(body))
	}
	if err != nil {
		s.logger.Error().Err(err).Str("scope", string(sc)).Msg("write coupon")
		metrics.StorageFailures.WithLabelValues("write").Inc()
		return OutcomeWriteFailed
	}
	return OutcomeOK
}
