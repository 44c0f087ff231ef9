package testing

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/aodb/lib/store"
)

// RunIStoreBenchmarks runs all benchmarks for an IStore implementation
func RunIStoreBenchmarks(b *testing.B, name string, factory StoreFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Put", func(b *testing.B) {
			benchmarkPut(b, factory())
		})

		b.Run("PutExisting", func(b *testing.B) {
			benchmarkPutExisting(b, factory())
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory())
		})

		b.Run("List", func(b *testing.B) {
			benchmarkList(b, factory())
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Put operation
func benchmarkPut(b *testing.B, s store.IStore) {
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("bench/%d-%d", rand.Int63(), counter)
			if err := s.Put(key, []byte("value")); err != nil {
				b.Errorf("put failed: %v", err)
			}
			counter++
		}
	})
}

// Benchmark for Put operation with existing keys
func benchmarkPutExisting(b *testing.B, s store.IStore) {
	numKeys := 1000
	for i := 0; i < numKeys; i++ {
		mustPut(b, s, fmt.Sprintf("bench/%d", i), []byte("initial"))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("bench/%d", counter%numKeys)
			if err := s.Put(key, []byte(fmt.Sprintf("value-%d", counter))); err != nil {
				b.Errorf("put failed: %v", err)
			}
			counter++
		}
	})
}

// Parallel benchmarking for Get operation
func benchmarkGet(b *testing.B, s store.IStore) {
	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		mustPut(b, s, fmt.Sprintf("bench/%d", i), []byte(fmt.Sprintf("value-%d", i)))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			if _, _, err := s.Get(fmt.Sprintf("bench/%d", counter%numKeys)); err != nil {
				b.Errorf("get failed: %v", err)
			}
			counter++
		}
	})
}

// Benchmark for listing a folder
func benchmarkList(b *testing.B, s store.IStore) {
	for i := 0; i < 100; i++ {
		mustPut(b, s, fmt.Sprintf("bench/folder-%d/%d", i%10, i), []byte("value"))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.List(fmt.Sprintf("bench/folder-%d", i%10), true); err != nil {
			b.Fatalf("list failed: %v", err)
		}
	}
}

// Benchmark with a read heavy mix of operations
func benchmarkMixedUsage(b *testing.B, s store.IStore) {
	numKeys := 1000
	for i := 0; i < numKeys; i++ {
		mustPut(b, s, fmt.Sprintf("bench/%d", i), []byte("initial"))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("bench/%d", counter%numKeys)
			var err error
			switch counter % 10 {
			case 0, 1:
				err = s.Put(key, []byte("updated"))
			case 2:
				err = s.Delete(key)
			default:
				_, _, err = s.Get(key)
			}
			if err != nil {
				b.Errorf("operation failed: %v", err)
			}
			counter++
		}
	})
}
