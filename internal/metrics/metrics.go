// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront_cart"

var (
	StorageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "storage_failures_total",
		Help:      "Key/value reads, writes and decodes that failed and were swallowed.",
	}, []string{"op"})

	RepairedItems = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "repaired_items_total",
		Help:      "Malformed persisted line items dropped by repair.",
	})

	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mutations_total",
		Help:      "Cart mutations by operation and result.",
	}, []string{"op", "result"})

	CouponValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "coupon_validations_total",
		Help:      "Coupon validations by result.",
	}, []string{"result"})

	Checkouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkouts_total",
		Help:      "Checkout handoffs by result.",
	}, []string{"result"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}

// Result maps a boolean outcome onto the label values used above.
func Result(ok bool) string {
	if ok {
		return "ok"
	}
	return "rejected"
}
