package registry

import (
	"testing"
)

func TestRegistry_DispatchOrder(t *testing.T) {
	r := New[string]()

	var order []int
	r.Register("message", func(string) { order = append(order, 1) })
	r.Register("message", func(string) { order = append(order, 2) })
	r.Register("message", func(string) { order = append(order, 3) })

	n := r.Dispatch("message", "payload")
	if n != 3 {
		t.Fatalf("Dispatch returned %d, want 3", n)
	}

	want := []int{1, 2, 3}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("delivery order[%d] = %d, want %d", i, order[i], want[i])
		}
	}
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := New[string]()

	calls := 0
	fn := func(string) { calls++ }

	sub1 := r.Register("message", fn)
	sub2 := r.Register("message", fn)

	r.Dispatch("message", "x")
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (no implicit de-duplication)", calls)
	}

	// Removing one subscription leaves the other delivering.
	if !r.Unregister(sub1) {
		t.Error("Unregister(sub1) = false, want true")
	}
	calls = 0
	r.Dispatch("message", "x")
	if calls != 1 {
		t.Errorf("calls after one unregister = %d, want 1", calls)
	}

	if !r.Unregister(sub2) {
		t.Error("Unregister(sub2) = false, want true")
	}
	calls = 0
	r.Dispatch("message", "x")
	if calls != 0 {
		t.Errorf("calls after both unregisters = %d, want 0", calls)
	}
}

func TestRegistry_UnregisterUnknown(t *testing.T) {
	r := New[int]()
	sub := r.Register("open", func(int) {})

	if !r.Unregister(sub) {
		t.Error("first Unregister = false, want true")
	}
	if r.Unregister(sub) {
		t.Error("second Unregister = true, want false (no-op)")
	}
	if r.Unregister(Subscription{event: "close", id: 999}) {
		t.Error("Unregister of unknown subscription = true, want false")
	}
}

func TestRegistry_UnregisterPreservesOrder(t *testing.T) {
	r := New[int]()

	var order []string
	r.Register("e", func(int) { order = append(order, "a") })
	mid := r.Register("e", func(int) { order = append(order, "b") })
	r.Register("e", func(int) { order = append(order, "c") })

	r.Unregister(mid)
	r.Dispatch("e", 0)

	if len(order) != 2 || order[0] != "a" || order[1] != "c" {
		t.Errorf("delivery order = %v, want [a c]", order)
	}
}

func TestRegistry_DispatchUnknownEvent(t *testing.T) {
	r := New[int]()
	if n := r.Dispatch("nobody-home", 1); n != 0 {
		t.Errorf("Dispatch on empty event returned %d, want 0", n)
	}
}

func TestRegistry_ReentrantUnregister(t *testing.T) {
	r := New[int]()

	var sub Subscription
	calls := 0
	sub = r.Register("e", func(int) {
		calls++
		r.Unregister(sub)
	})

	r.Dispatch("e", 0)
	r.Dispatch("e", 0)

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (listener removed itself)", calls)
	}
}

func TestRegistry_PanicPropagatesAfterEarlierDeliveries(t *testing.T) {
	r := New[int]()

	var delivered []int
	r.Register("e", func(int) { delivered = append(delivered, 1) })
	r.Register("e", func(int) { panic("listener failure") })
	r.Register("e", func(int) { delivered = append(delivered, 3) })

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		r.Dispatch("e", 0)
	}()

	// The listener before the panicking one already ran; the one after did not.
	if len(delivered) != 1 || delivered[0] != 1 {
		t.Errorf("delivered = %v, want [1]", delivered)
	}
}

func TestRegistry_Count(t *testing.T) {
	r := New[int]()
	if r.Count("e") != 0 {
		t.Errorf("Count = %d, want 0", r.Count("e"))
	}
	r.Register("e", func(int) {})
	r.Register("e", func(int) {})
	if r.Count("e") != 2 {
		t.Errorf("Count = %d, want 2", r.Count("e"))
	}
}
