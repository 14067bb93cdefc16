package storetest

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/imgloader/pkg/store"
)

// StoreFactory creates a fresh, empty Store for each test.
type StoreFactory func(t *testing.T) store.Store

// RunConformanceSuite runs the full conformance suite against factory.
// Each subtest gets its own store instance.
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, factory(t)) })
	t.Run("PutGet", func(t *testing.T) { testPutGet(t, factory(t)) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, factory(t)) })
	t.Run("KeysAreVerbatim", func(t *testing.T) { testKeysAreVerbatim(t, factory(t)) })
	t.Run("LargeValue", func(t *testing.T) { testLargeValue(t, factory(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, factory(t)) })
	t.Run("Len", func(t *testing.T) { testLen(t, factory(t)) })
	t.Run("ConcurrentPut", func(t *testing.T) { testConcurrentPut(t, factory(t)) })
	t.Run("Healthcheck", func(t *testing.T) { testHealthcheck(t, factory(t)) })
	t.Run("Closed", func(t *testing.T) { testClosed(t, factory(t)) })
}

const samplePNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR4nGNgYGD4DwABBAEAwS2OUAAAAABJRU5ErkJggg=="

func mustPut(t *testing.T, s store.Store, key, value string) {
	t.Helper()
	if err := s.Put(t.Context(), key, value); err != nil {
		t.Fatalf("Put(%q) failed: %v", key, err)
	}
}

func mustGet(t *testing.T, s store.Store, key string) string {
	t.Helper()
	v, err := s.Get(t.Context(), key)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	return v
}

func testGetMissing(t *testing.T, s store.Store) {
	_, err := s.Get(t.Context(), "https://example.com/missing.png")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func testPutGet(t *testing.T, s store.Store) {
	key := "https://example.com/a.png"
	mustPut(t, s, key, samplePNG)

	if got := mustGet(t, s, key); got != samplePNG {
		t.Errorf("Get(%q) = %q, want %q", key, got, samplePNG)
	}
}

func testOverwrite(t *testing.T, s store.Store) {
	key := "https://example.com/a.png"
	mustPut(t, s, key, "data:image/png;base64,AAAA")
	mustPut(t, s, key, "data:image/png;base64,BBBB")

	if got := mustGet(t, s, key); got != "data:image/png;base64,BBBB" {
		t.Errorf("Get after overwrite = %q", got)
	}
}

func testKeysAreVerbatim(t *testing.T, s store.Store) {
	keys := []string{
		"https://example.com/a.png",
		"https://example.com/a.png?w=100",
		"https://example.com/a.png?w=100#frag",
		"https://EXAMPLE.com/a.png",
		"http://example.com/a.png",
		"https://example.com/%E2%9C%93/a b.png",
	}
	for i, k := range keys {
		mustPut(t, s, k, fmt.Sprintf("data:text/plain;base64,%d", i))
	}
	for i, k := range keys {
		want := fmt.Sprintf("data:text/plain;base64,%d", i)
		if got := mustGet(t, s, k); got != want {
			t.Errorf("Get(%q) = %q, want %q", k, got, want)
		}
	}
}

func testLargeValue(t *testing.T, s store.Store) {
	key := "https://example.com/big.jpg"
	value := "data:image/jpeg;base64," + strings.Repeat("QUJD", 512*1024)
	mustPut(t, s, key, value)

	if got := mustGet(t, s, key); got != value {
		t.Errorf("large value mismatch: got %d bytes, want %d", len(got), len(value))
	}
}

func testDelete(t *testing.T, s store.Store) {
	key := "https://example.com/a.png"
	mustPut(t, s, key, samplePNG)

	if err := s.Delete(t.Context(), key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(t.Context(), key); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(t.Context(), key); err != nil {
		t.Errorf("Delete(missing) = %v, want nil", err)
	}
}

func testLen(t *testing.T, s store.Store) {
	n, err := s.Len(t.Context())
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("Len on empty store = %d", n)
	}

	for i := range 5 {
		mustPut(t, s, fmt.Sprintf("https://example.com/%d.png", i), samplePNG)
	}
	mustPut(t, s, "https://example.com/0.png", samplePNG)

	n, err = s.Len(t.Context())
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 5 {
		t.Errorf("Len = %d, want 5", n)
	}
}

func testConcurrentPut(t *testing.T, s store.Store) {
	g, ctx := errgroup.WithContext(t.Context())
	g.SetLimit(8)
	for i := range 32 {
		g.Go(func() error {
			return s.Put(ctx, fmt.Sprintf("https://example.com/c/%d.png", i), samplePNG)
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent Put failed: %v", err)
	}

	n, err := s.Len(t.Context())
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 32 {
		t.Errorf("Len = %d, want 32", n)
	}
}

func testHealthcheck(t *testing.T, s store.Store) {
	if err := s.Healthcheck(t.Context()); err != nil {
		t.Errorf("Healthcheck = %v", err)
	}
}

func testClosed(t *testing.T, s store.Store) {
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := s.Get(t.Context(), "https://example.com/a.png"); !errors.Is(err, store.ErrStoreClosed) {
		t.Errorf("Get after Close = %v, want ErrStoreClosed", err)
	}
	if err := s.Put(t.Context(), "https://example.com/a.png", samplePNG); !errors.Is(err, store.ErrStoreClosed) {
		t.Errorf("Put after Close = %v, want ErrStoreClosed", err)
	}
	if err := s.Healthcheck(t.Context()); !errors.Is(err, store.ErrStoreClosed) {
		t.Errorf("Healthcheck after Close = %v, want ErrStoreClosed", err)
	}
}
