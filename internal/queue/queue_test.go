package queue

import (
	"sync"
	"testing"
)

func TestRing_FIFO(t *testing.T) {
	r := NewRing[int](10)

	for i := 1; i <= 5; i++ {
		if dropped := r.Push(i); dropped {
			t.Errorf("Push(%d) dropped unexpectedly", i)
		}
	}

	if r.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", r.Len())
	}

	got := r.Drain()
	want := []int{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Drain() returned %d items, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Drain()[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	if r.Len() != 0 {
		t.Errorf("Len() after Drain = %d, want 0", r.Len())
	}
}

func TestRing_DropOldest(t *testing.T) {
	r := NewRing[int](3)

	r.Push(1)
	r.Push(2)
	r.Push(3)

	// 4th push evicts the single oldest entry (1), preserving the rest in order.
	if dropped := r.Push(4); !dropped {
		t.Error("Push past capacity should report a drop")
	}

	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}

	got := r.Drain()
	want := []int{2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Drain()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRing_CapacityInvariant(t *testing.T) {
	r := NewRing[int](7)

	for i := 0; i < 100; i++ {
		r.Push(i)
		if r.Len() > r.Cap() {
			t.Fatalf("Len() = %d exceeds Cap() = %d after push %d", r.Len(), r.Cap(), i)
		}
	}

	got := r.Drain()
	if len(got) != 7 {
		t.Fatalf("Drain() returned %d items, want 7", len(got))
	}
	// Last 7 pushed survive, in order.
	for i, v := range got {
		if v != 93+i {
			t.Errorf("Drain()[%d] = %d, want %d", i, v, 93+i)
		}
	}
}

func TestRing_Clear(t *testing.T) {
	r := NewRing[string](4)
	r.Push("a")
	r.Push("b")

	r.Clear()

	if r.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", r.Len())
	}
	if got := r.Drain(); got != nil {
		t.Errorf("Drain() after Clear = %v, want nil", got)
	}
}

func TestRing_Stats(t *testing.T) {
	r := NewRing[int](2)
	r.Push(1)
	r.Push(2)
	r.Push(3) // drops 1

	stats := r.Stats()
	if stats.TotalPushed != 3 {
		t.Errorf("TotalPushed = %d, want 3", stats.TotalPushed)
	}
	if stats.TotalDropped != 1 {
		t.Errorf("TotalDropped = %d, want 1", stats.TotalDropped)
	}
	if stats.Count != 2 {
		t.Errorf("Count = %d, want 2", stats.Count)
	}
	if stats.Capacity != 2 {
		t.Errorf("Capacity = %d, want 2", stats.Capacity)
	}
}

func TestRing_ConcurrentPush(t *testing.T) {
	r := NewRing[int](50)

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				r.Push(base*1000 + i)
			}
		}(g)
	}
	wg.Wait()

	if r.Len() != 50 {
		t.Errorf("Len() = %d, want 50", r.Len())
	}
	stats := r.Stats()
	if stats.TotalPushed != 1000 {
		t.Errorf("TotalPushed = %d, want 1000", stats.TotalPushed)
	}
	if stats.TotalDropped != 950 {
		t.Errorf("TotalDropped = %d, want 950", stats.TotalDropped)
	}
}

func TestRing_MinimumCapacity(t *testing.T) {
	r := NewRing[int](0)
	if r.Cap() != 1 {
		t.Errorf("Cap() = %d, want 1", r.Cap())
	}
	r.Push(1)
	r.Push(2)
	got := r.Drain()
	if len(got) != 1 || got[0] != 2 {
		t.Errorf("Drain() = %v, want [2]", got)
	}
}
