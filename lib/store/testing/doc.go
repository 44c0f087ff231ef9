// Package testing provides standardised tests and benchmarks for
// implementations of the store.IStore interface.
//
// The package contains:
//   - RunIStoreTests: a test suite validating conformance to the IStore contract,
//     including versions, authorization and serving replication to a local replica
//   - RunIStoreBenchmarks: throughput of common store operations
//
// Example usage:
//
//	factory := func() store.IStore {
//		s, _ := lstore.NewLocalStore(openMemoryDB, time.Second)
//		return s
//	}
//
//	storetesting.RunIStoreTests(t, "memory", factory)
//	storetesting.RunIStoreBenchmarks(b, "memory", factory)
package testing
