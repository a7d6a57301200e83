package kv

import "context"

type namespaceKey struct{}

// WithNamespace makes every key a NamespacedStore sees through ctx live
// under ns.
func WithNamespace(ctx context.Context, ns string) context.Context {
	return context.WithValue(ctx, namespaceKey{}, ns)
}

func NamespaceFrom(ctx context.Context) string {
	ns, _ := ctx.Value(namespaceKey{}).(string)
	return ns
}

// NamespacedStore gives each client session its own key space on top of a
// shared backend. Calls whose context carries no namespace use the key as is.
type NamespacedStore struct {
	inner Store
}

func Namespaced(inner Store) *NamespacedStore {
	return &NamespacedStore{inner: inner}
}

// NamespacedKey is the backend key for key inside namespace ns.
func NamespacedKey(ns, key string) string {
	if ns == "" {
		return key
	}
	return "session:" + ns + ":" + key
}

func (s *NamespacedStore) Get(ctx context.Context, key string) (string, error) {
	return s.inner.Get(ctx, NamespacedKey(NamespaceFrom(ctx), key))
}

func (s *NamespacedStore) Set(ctx context.Context, key, value string) error {
	return s.inner.Set(ctx, NamespacedKey(NamespaceFrom(ctx), key), value)
}

func (s *NamespacedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, NamespacedKey(NamespaceFrom(ctx), key))
}
