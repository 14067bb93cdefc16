package memory

import (
	"testing"

	"github.com/marmos91/imgloader/pkg/store"
	"github.com/marmos91/imgloader/pkg/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) store.Store {
		s := New()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
