package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/sellava/storefront-cart-go/internal/metrics"
)

// NewRouter serves the cart under /public-store/{storeId}/cart and, for
// requests without a store in the path, under /api/cart. Cart state is kept
// per client session (see CartSession).
func NewRouter(h *Handler, logger zerolog.Logger, allowOrigins []string) http.Handler {
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", HeaderCorrelationID, HeaderCausationID, HeaderCartSession},
		ExposedHeaders: []string{HeaderCorrelationID, HeaderCartSession},
		MaxAge:         300,
	}))
	r.Use(CorrelationID)
	r.Use(accessLog(logger))

	r.Get("/health", h.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/public-store/{storeId}/cart", h.cartRoutes)
	r.Route("/api/cart", h.cartRoutes)

	return r
}

func (h *Handler) cartRoutes(r chi.Router) {
	r.Use(CartSession)

	r.Get("/", h.GetCart)
	r.Delete("/", h.ClearCart)

	r.Post("/items", h.AddItem)
	r.Put("/items/{productId}", h.UpdateQuantity)
	r.Delete("/items/{productId}", h.RemoveItem)

	r.Post("/coupon", h.ApplyCoupon)
	r.Delete("/coupon", h.RemoveCoupon)
	r.Post("/coupon/validate", h.ValidateCoupon)

	r.Post("/checkout", h.Checkout)
}
