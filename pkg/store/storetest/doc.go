// Package storetest provides a conformance test suite for durable store implementations.
//
// Every backend (memory, badger, sqlite, postgres, s3, redis) should pass these
// tests. The suite verifies the store.Store behavioral contract so that the
// tiered cache can treat all backends alike.
//
// Usage:
//
//	func TestConformance(t *testing.T) {
//	    storetest.RunConformanceSuite(t, func(t *testing.T) store.Store {
//	        return memory.New()
//	    })
//	}
//
// The factory receives *testing.T so it can call t.TempDir() for stores that
// need filesystem paths (e.g., BadgerDB) and t.Cleanup for teardown.
package storetest
