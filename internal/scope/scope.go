// Package scope derives the tenant (store) a cart belongs to.
package scope

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sellava/storefront-cart-go/internal/kv"
)

// Scope identifies a store. It is only ever used as a key namespace.
type Scope string

const (
	Default         Scope = "default"
	CurrentStoreKey       = "current_store_id"

	publicStorePrefix = "/public-store/"
)

// FromPath extracts {id} from paths shaped like /public-store/{id}[/...].
func FromPath(path string) (Scope, bool) {
	if !strings.HasPrefix(path, publicStorePrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(path, publicStorePrefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", false
	}
	return Scope(rest), true
}

type Resolver struct {
	store  kv.Store
	logger zerolog.Logger
}

func NewResolver(store kv.Store, logger zerolog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Resolve never fails: path, then remembered pointer, then Default.
func (r *Resolver) Resolve(ctx context.Context, path string) Scope {
	if s, ok := FromPath(path); ok {
		return s
	}

	v, err := r.store.Get(ctx, CurrentStoreKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			r.logger.Warn().Err(err).Msg("read current store pointer")
		}
		return Default
	}
	if v = strings.TrimSpace(v); v != "" {
		return Scope(v)
	}
	return Default
}

// Remember stores s as the fallback for later path-less resolutions.
func (r *Resolver) Remember(ctx context.Context, s Scope) {
	if s == "" {
		return
	}
	if err := r.store.Set(ctx, CurrentStoreKey, string(s)); err != nil {
		r.logger.Warn().Err(err).Str("scope", string(s)).Msg("write current store pointer")
	}
}
