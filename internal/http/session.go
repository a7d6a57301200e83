package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/sellava/storefront-cart-go/internal/kv"
)

const (
	HeaderCartSession = "X-Cart-Session"
	CartSessionCookie = "cart_session"

	cartSessionMaxAge = 30 * 24 * 60 * 60
)

// CartSession puts every cart request in its client's storage namespace.
// The id is taken from X-Cart-Session, then the cart_session cookie. A new
// one is issued when neither holds a UUID.
func CartSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, fromCookie := sessionID(r)
		if id == "" {
			id = uuid.NewString()
		}
		if !fromCookie {
			http.SetCookie(w, &http.Cookie{
				Name:     CartSessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   cartSessionMaxAge,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		w.Header().Set(HeaderCartSession, id)

		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("cart_session", id)
		})
		next.ServeHTTP(w, r.WithContext(kv.WithNamespace(r.Context(), id)))
	})
}

func sessionID(r *http.Request) (id string, fromCookie bool) {
	if u, err := uuid.Parse(r.Header.Get(HeaderCartSession)); err == nil {
		return u.String(), false
	}
	if c, err := r.Cookie(CartSessionCookie); err == nil {
		if u, err := uuid.Parse(c.Value); err == nil {
			return u.String(), true
		}
	}
	return "", false
}
