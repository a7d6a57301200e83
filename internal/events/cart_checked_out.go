package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/sellava/storefront-cart-go/internal/cart"
)

const (
	CartCheckedOutEventName    = "CartCheckedOut"
	CartCheckedOutEventVersion = 1
	CartCheckedOutSchema       = "contracts/events/cart/CartCheckedOut.v1.enveloped.schema.json"
	CartServiceProducer        = "storefront-cart"
)

type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "cash"
	PaymentElectronic PaymentMethod = "electronic"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentElectronic
}

// EventEnvelope is the shared v1 envelope. There is no per-partition sequence
// number: the cart keeps no server-side state to derive one from.
type EventEnvelope struct {
	EventName     string    `json:"eventName"`
	EventVersion  int       `json:"eventVersion"`
	EventID       string    `json:"eventId"`
	CorrelationID string    `json:"correlationId,omitempty"`
	CausationID   string    `json:"causationId,omitempty"`
	Producer      string    `json:"producer"`
	PartitionKey  string    `json:"partitionKey"`
	OccurredAt    time.Time `json:"occurredAt"`
	Schema        string    `json:"schema"`
}

type CartCheckedOutEvent struct {
	EventEnvelope
	Payload CartCheckedOutPayload `json:"payload"`
}

type CartCheckedOutPayload struct {
	StoreID       string               `json:"storeId"`
	Items         []CartCheckedOutItem `json:"items"`
	Subtotal      float64              `json:"subtotal"`
	Discount      float64              `json:"discount"`
	TotalAmount   float64              `json:"totalAmount"`
	CouponCode    string               `json:"couponCode,omitempty"`
	PaymentMethod PaymentMethod        `json:"paymentMethod"`
	Timestamp     time.Time            `json:"timestamp"`
}

type CartCheckedOutItem struct {
	ProductID     string  `json:"productId"`
	Name          string  `json:"name"`
	Quantity      float64 `json:"quantity"`
	Price         float64 `json:"price"`
	SelectedColor string  `json:"selectedColor,omitempty"`
	SelectedSize  string  `json:"selectedSize,omitempty"`
}

type EventMeta struct {
	CorrelationID string
	CausationID   string
	EventID       string
	OccurredAt    time.Time
}

// BuildCartCheckedOutEvent partitions by store. The coupon code is only
// carried when it still validated at checkout.
func BuildCartCheckedOutEvent(snap cart.Snapshot, method PaymentMethod, producer string, meta EventMeta) CartCheckedOutEvent {
	eventID := meta.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	occurredAt := meta.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	if producer == "" {
		producer = CartServiceProducer
	}

	payload := CartCheckedOutPayload{
		StoreID:       string(snap.Scope),
		Items:         make([]CartCheckedOutItem, 0, len(snap.Items)),
		Subtotal:      snap.Summary.Subtotal,
		Discount:      snap.Summary.Discount,
		TotalAmount:   snap.Summary.Total,
		PaymentMethod: method,
		Timestamp:     occurredAt,
	}
	if c := snap.Summary.Coupon; c != nil && c.Valid {
		payload.CouponCode = c.Code
	}
	for _, it := range snap.Items {
		payload.Items = append(payload.Items, CartCheckedOutItem{
			ProductID:     it.ProductID,
			Name:          it.Name,
			Quantity:      it.Quantity,
			Price:         it.Price,
			SelectedColor: it.SelectedColor,
			SelectedSize:  it.SelectedSize,
		})
	}

	return CartCheckedOutEvent{
		EventEnvelope: EventEnvelope{
			EventName:     CartCheckedOutEventName,
			EventVersion:  CartCheckedOutEventVersion,
			EventID:       eventID,
			CorrelationID: meta.CorrelationID,
			CausationID:   meta.CausationID,
			Producer:      producer,
			PartitionKey:  string(snap.Scope),
			OccurredAt:    occurredAt,
			Schema:        CartCheckedOutSchema,
		},
		Payload: payload,
	}
}
