// Package kv is the key/value substrate carts are persisted in. Values are
// opaque strings; the cart and scope packages own the key layout.
package kv

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// Store is last-writer-wins storage with no versioning.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
