package util

import (
	"math"
	"sync"
	"testing"
)

func TestMapHeapOrder(t *testing.T) {
	mh := NewMapHeap()

	mh.AddItem(1, 100)
	mh.AddItem(2, 200)
	mh.AddItem(3, 50)

	if mh.Len() != 3 {
		t.Fatalf("Heap should have 3 items, but has %d", mh.Len())
	}

	want := []uint64{3, 1, 2}
	for i, wantKey := range want {
		key, _, ok := mh.PopItem()
		if !ok {
			t.Fatalf("PopItem() %d returned no item", i)
		}
		if key != wantKey {
			t.Errorf("PopItem() %d = %d, want %d", i, key, wantKey)
		}
	}

	if _, _, ok := mh.PopItem(); ok {
		t.Error("PopItem() on an empty heap should fail")
	}
}

func TestMapHeapUpdate(t *testing.T) {
	mh := NewMapHeap()

	mh.AddItem(1, 100)
	mh.AddItem(2, 200)

	// updating keeps a single item per key
	mh.AddItem(1, 300)
	if mh.Len() != 2 {
		t.Fatalf("Heap should have 2 items after update, but has %d", mh.Len())
	}

	key, priority, _ := mh.PopItem()
	if key != 2 || priority != 200 {
		t.Errorf("Expected (2,200) after update, got (%d,%d)", key, priority)
	}
	if mh.Contains(2) {
		t.Error("Popped key should no longer be contained")
	}
	if !mh.Contains(1) {
		t.Error("Heap should still contain key 1")
	}
}

func TestMapHeapRandomOrder(t *testing.T) {
	mh := NewMapHeap()

	// deterministic permutation of 0..99
	for i := uint64(0); i < 100; i++ {
		k := (i * 37) % 100
		mh.AddItem(k, k)
	}

	prev := uint64(0)
	for i := 0; i < 100; i++ {
		_, priority, ok := mh.PopItem()
		if !ok {
			t.Fatalf("PopItem() %d returned no item", i)
		}
		if priority < prev {
			t.Fatalf("Heap order violated: %d after %d", priority, prev)
		}
		prev = priority
	}
}

func TestNewStats(t *testing.T) {
	tests := map[string]struct {
		values []float64
		want   Stats
	}{
		"empty": {
			values: nil,
			want:   Stats{},
		},
		"single": {
			values: []float64{4},
			want:   Stats{Min: 4, Max: 4, Mean: 4, Sum: 4, MinMaxRatio: 1},
		},
		"spread": {
			values: []float64{2, 4, 4, 4, 5, 5, 7, 9},
			want:   Stats{StdDeviation: 2, Min: 2, Max: 9, Mean: 5, Sum: 40, MinMaxRatio: 2.0 / 9.0},
		},
		"zeros": {
			values: []float64{0, 0},
			want:   Stats{MinMaxRatio: 1},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := NewStats(tc.values)
			if math.Abs(got.StdDeviation-tc.want.StdDeviation) > 1e-9 ||
				got.Min != tc.want.Min || got.Max != tc.want.Max ||
				got.Mean != tc.want.Mean || got.Sum != tc.want.Sum ||
				math.Abs(got.MinMaxRatio-tc.want.MinMaxRatio) > 1e-9 {
				t.Errorf("NewStats(%v) = %+v, want %+v", tc.values, got, tc.want)
			}
		})
	}
}

func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()

	if h.GetPercentileEstimate(50) != 0 || h.AverageSize() != 0 {
		t.Fatal("Empty histogram should report zero")
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 9; j++ {
				h.AddSample(10)
			}
			h.AddSample(100_000)
		}()
	}
	wg.Wait()

	if got := h.GetCount(); got != 100 {
		t.Errorf("GetCount() = %d, want 100", got)
	}
	if got := h.AverageSize(); got != (90*10+10*100_000)/100 {
		t.Errorf("AverageSize() = %d, want %d", got, (90*10+10*100_000)/100)
	}
	// 90% of the samples are in the first bucket
	if got := h.GetPercentileEstimate(50); got != 8 {
		t.Errorf("GetPercentileEstimate(50) = %d, want 8", got)
	}
	if got := h.GetPercentileEstimate(99); got <= 65536 {
		t.Errorf("GetPercentileEstimate(99) = %d, want the bucket above 64KB", got)
	}
	if got := h.GetPercentileEstimate(101); got != 0 {
		t.Errorf("GetPercentileEstimate(101) = %d, want 0", got)
	}
}

func TestHashStringStable(t *testing.T) {
	if HashString("default", 0) != HashString("default", 0) {
		t.Fatal("HashString is not deterministic")
	}
	if HashString("default", 0) == HashString("locks", 0) {
		t.Error("Different names should map to different ids")
	}
	if HashString("default", 0) == HashString("default", 1) {
		t.Error("The seed should change the hash")
	}
}
