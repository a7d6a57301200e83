// Package cart is the per-store shopping cart: persisted line items, the
// validation that keeps them well-formed, and the mutations on top.
package cart

// Item is one line in a cart. Name, Price and Image are snapshots taken when
// the product was added and are never refreshed from the catalog.
type Item struct {
	ProductID     string  `json:"productId"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Image         string  `json:"image"`
	Quantity      float64 `json:"quantity"`
	SelectedColor string  `json:"selectedColor,omitempty"`
	SelectedSize  string  `json:"selectedSize,omitempty"`
}

func (it Item) UnitPrice() float64 { return it.Price }
func (it Item) Units() float64     { return it.Quantity }

// Candidate is the caller's input to Add. Quantity is not an input; new lines
// always start at 1.
type Candidate struct {
	ProductID     string   `json:"productId"`
	Name          string   `json:"name"`
	Price         *float64 `json:"price"`
	Image         string   `json:"image"`
	SelectedColor string   `json:"selectedColor,omitempty"`
	SelectedSize  string   `json:"selectedSize,omitempty"`
}
