package cart

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

const (
	ReasonMissing     = "missing"
	ReasonEmpty       = "empty"
	ReasonNotString   = "not a string"
	ReasonNotNumber   = "not a number"
	ReasonNotFinite   = "not finite"
	ReasonNegative    = "negative"
	ReasonNotPositive = "must be positive"
	ReasonNotObject   = "not an object"
)

type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Reason
}

// Verdict is the outcome of validating one line item.
type Verdict struct {
	Violations []Violation `json:"violations,omitempty"`
}

func (v Verdict) Valid() bool {
	return len(v.Violations) == 0
}

func (v Verdict) String() string {
	if v.Valid() {
		return "valid"
	}
	parts := make([]string, len(v.Violations))
	for i, vi := range v.Violations {
		parts[i] = vi.String()
	}
	return strings.Join(parts, ", ")
}

// Validate checks an item against the well-formedness rules. Fractional
// positive quantities are accepted.
func Validate(it Item) Verdict {
	var out []Violation
	if strings.TrimSpace(it.ProductID) == "" {
		out = append(out, Violation{"productId", ReasonEmpty})
	}
	if strings.TrimSpace(it.Name) == "" {
		out = append(out, Violation{"name", ReasonEmpty})
	}
	switch {
	case math.IsNaN(it.Price):
		out = append(out, Violation{"price", ReasonNotNumber})
	case math.IsInf(it.Price, 0):
		out = append(out, Violation{"price", ReasonNotFinite})
	case it.Price < 0:
		out = append(out, Violation{"price", ReasonNegative})
	}
	switch {
	case math.IsNaN(it.Quantity):
		out = append(out, Violation{"quantity", ReasonNotNumber})
	case math.IsInf(it.Quantity, 0):
		out = append(out, Violation{"quantity", ReasonNotFinite})
	case it.Quantity <= 0:
		out = append(out, Violation{"quantity", ReasonNotPositive})
	}
	if strings.TrimSpace(it.Image) == "" {
		out = append(out, Violation{"image", ReasonEmpty})
	}
	return Verdict{Violations: out}
}

func IsValid(it Item) bool {
	return Validate(it).Valid()
}

// Rejection records why the entry at Index was dropped by Repair.
type Rejection struct {
	Index   int
	Verdict Verdict
}

type RepairReport struct {
	Kept     []Item
	Rejected []Rejection
}

func (r RepairReport) Dropped() int {
	return len(r.Rejected)
}

// Repair keeps the well-formed entries of a persisted list, in order. It is
// pure; persisting the result is the Store's job.
func Repair(raw []json.RawMessage) RepairReport {
	report := RepairReport{Kept: make([]Item, 0, len(raw))}
	for i, entry := range raw {
		it, verdict := decodeItem(entry)
		if !verdict.Valid() {
			report.Rejected = append(report.Rejected, Rejection{Index: i, Verdict: verdict})
			continue
		}
		report.Kept = append(report.Kept, it)
	}
	return report
}

// fields is a loosely decoded JSON object. Field types are checked one at a
// time so a single bad field does not hide the others.
type fields map[string]json.RawMessage

func decodeFields(raw json.RawMessage) (fields, bool) {
	var f fields
	if err := json.Unmarshal(raw, &f); err != nil || f == nil {
		return nil, false
	}
	return f, true
}

type strMode int

const (
	strLenient  strMode = iota // wrong type reads as ""
	strTyped                   // wrong type is a violation, absence is not
	strRequired                // absence and wrong type are violations
)

func (f fields) str(name string, mode strMode, bad map[string]Violation) string {
	raw, ok := f[name]
	if !ok {
		if mode == strRequired {
			bad[name] = Violation{name, ReasonMissing}
		}
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || isNull(raw) {
		if mode != strLenient {
			bad[name] = Violation{name, ReasonNotString}
		}
		return ""
	}
	return s
}

func (f fields) num(name string, bad map[string]Violation) (float64, bool) {
	raw, ok := f[name]
	if !ok {
		bad[name] = Violation{name, ReasonMissing}
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil || isNull(raw) {
		bad[name] = Violation{name, ReasonNotNumber}
		return 0, false
	}
	return n, true
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

var itemFieldOrder = []string{"productId", "name", "price", "quantity", "image"}

func decodeItem(raw json.RawMessage) (Item, Verdict) {
	f, ok := decodeFields(raw)
	if !ok {
		return Item{}, Verdict{Violations: []Violation{{"item", ReasonNotObject}}}
	}

	bad := make(map[string]Violation)
	it := Item{
		ProductID:     f.str("productId", strRequired, bad),
		Name:          f.str("name", strRequired, bad),
		Image:         f.str("image", strRequired, bad),
		SelectedColor: f.str("selectedColor", strLenient, bad),
		SelectedSize:  f.str("selectedSize", strLenient, bad),
	}
	it.Price, _ = f.num("price", bad)
	it.Quantity, _ = f.num("quantity", bad)

	return it, merge(bad, Validate(it))
}

// merge lists decode violations first and skips value checks on fields that
// never decoded.
func merge(bad map[string]Violation, v Verdict) Verdict {
	if len(bad) == 0 {
		return v
	}
	var out []Violation
	for _, name := range itemFieldOrder {
		if vi, ok := bad[name]; ok {
			out = append(out, vi)
		}
	}
	for _, vi := range v.Violations {
		if _, ok := bad[vi.Field]; !ok {
			out = append(out, vi)
		}
	}
	return Verdict{Violations: out}
}

// DecodeCandidate reads an Add request body loosely so that a wrongly typed
// field becomes a violation rather than a decode failure.
func DecodeCandidate(raw json.RawMessage) (Candidate, []Violation, error) {
	f, ok := decodeFields(raw)
	if !ok {
		return Candidate{}, nil, fmt.Errorf("candidate is not a JSON object")
	}

	bad := make(map[string]Violation)
	c := Candidate{
		ProductID:     f.str("productId", strTyped, bad),
		Name:          f.str("name", strTyped, bad),
		Image:         f.str("image", strTyped, bad),
		SelectedColor: f.str("selectedColor", strLenient, bad),
		SelectedSize:  f.str("selectedSize", strLenient, bad),
	}
	if _, present := f["price"]; present {
		if p, ok := f.num("price", bad); ok {
			c.Price = &p
		}
	}

	var typeErrs []Violation
	for _, name := range itemFieldOrder {
		if vi, ok := bad[name]; ok {
			typeErrs = append(typeErrs, vi)
		}
	}
	return c, typeErrs, nil
}
