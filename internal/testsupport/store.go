package testsupport

import (
	"testing"

	"crosslink/internal/config"
	"crosslink/internal/linkstore"
)

// MustOpenStore opens a linkstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...linkstore.Option) *linkstore.Store {
	t.Helper()

	store, err := linkstore.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("linkstore.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
