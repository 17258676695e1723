package store

import (
	"reflect"
	"testing"
)

func TestStoreBasic(t *testing.T) {
	count := New(0)

	if count.Current() != 0 {
		t.Errorf("initial value: got %d, want 0", count.Current())
	}

	count.Set(5)
	if count.Current() != 5 {
		t.Errorf("after Set: got %d, want 5", count.Current())
	}

	count.Update(func(n int) int { return n * 2 })
	if count.Current() != 10 {
		t.Errorf("after Update: got %d, want 10", count.Current())
	}
}

func TestStoreReplayOnSubscribe(t *testing.T) {
	count := New(7)
	var got []int

	unsubscribe := count.Subscribe(func(n int) { got = append(got, n) })
	defer unsubscribe()

	if !reflect.DeepEqual(got, []int{7}) {
		t.Fatalf("replay: got %v, want [7]", got)
	}

	count.Set(8)
	count.Set(8)
	count.Set(9)
	if !reflect.DeepEqual(got, []int{7, 8, 9}) {
		t.Errorf("changes: got %v, want [7 8 9]", got)
	}
}

func TestStoreNotifiesInSubscriptionOrder(t *testing.T) {
	s := New("a")
	var order []string

	s.Subscribe(func(string) { order = append(order, "first") })
	s.Subscribe(func(string) { order = append(order, "second") })
	s.Subscribe(func(string) { order = append(order, "third") })
	order = nil

	s.Set("b")

	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("got %v, want %v", order, want)
	}
}

func TestStoreUnsubscribe(t *testing.T) {
	s := New(0)
	calls := 0
	unsubscribe := s.Subscribe(func(int) { calls++ })

	unsubscribe()
	unsubscribe()
	s.Set(1)

	if calls != 1 {
		t.Errorf("calls: got %d, want 1 (replay only)", calls)
	}
	if s.Subscribers() != 0 {
		t.Errorf("Subscribers: got %d, want 0", s.Subscribers())
	}
}

func TestStoreNestedSetKeepsChangeOrder(t *testing.T) {
	s := New(0)
	var first, second []int

	s.Subscribe(func(n int) {
		first = append(first, n)
		if n == 1 {
			s.Set(2)
		}
	})
	s.Subscribe(func(n int) { second = append(second, n) })

	s.Set(1)

	if !reflect.DeepEqual(first, []int{0, 1, 2}) {
		t.Errorf("first subscriber: got %v, want [0 1 2]", first)
	}
	if !reflect.DeepEqual(second, []int{0, 1, 2}) {
		t.Errorf("second subscriber: got %v, want [0 1 2]", second)
	}
}

func TestStoreWithEquals(t *testing.T) {
	type point struct{ X, Y int }
	s := New(point{1, 1}, WithEquals(func(a, b point) bool { return a.X == b.X }))
	calls := 0
	s.Subscribe(func(point) { calls++ })

	s.Set(point{1, 5})
	if calls != 1 {
		t.Errorf("custom equality should suppress notify, got %d calls", calls)
	}
	s.Set(point{2, 5})
	if calls != 2 {
		t.Errorf("expected notify on X change, got %d calls", calls)
	}
}

func TestStoreStartStop(t *testing.T) {
	starts, stops := 0, 0
	var push func(int)

	s := New(0, WithStart(func(set func(int), _ func(func(int) int)) func() {
		starts++
		push = set
		set(42)
		return func() { stops++ }
	}))

	var got []int
	unsubscribe := s.Subscribe(func(n int) { got = append(got, n) })

	if starts != 1 {
		t.Fatalf("starts: got %d, want 1", starts)
	}
	if !reflect.DeepEqual(got, []int{42}) {
		t.Fatalf("values set during start should replay once: got %v", got)
	}

	second := s.Subscribe(func(int) {})
	if starts != 1 {
		t.Errorf("second subscriber restarted the store")
	}

	push(43)
	if !reflect.DeepEqual(got, []int{42, 43}) {
		t.Errorf("got %v, want [42 43]", got)
	}

	unsubscribe()
	if stops != 0 {
		t.Errorf("stopped with a subscriber left")
	}
	second()
	if stops != 1 {
		t.Errorf("stops: got %d, want 1", stops)
	}
}

func TestStoreCurrentStartsIdleNotifier(t *testing.T) {
	starts, stops := 0, 0
	s := New(0, WithStart(func(set func(int), _ func(func(int) int)) func() {
		starts++
		set(9)
		return func() { stops++ }
	}))

	if got := s.Current(); got != 9 {
		t.Errorf("Current: got %d, want 9", got)
	}
	if starts != 1 || stops != 1 {
		t.Errorf("starts/stops: got %d/%d, want 1/1", starts, stops)
	}
}

func TestDerive(t *testing.T) {
	src := New(2)
	doubled := Derive[int, int](src, func(n int) int { return n * 2 })

	if doubled.Current() != 4 {
		t.Errorf("Current: got %d, want 4", doubled.Current())
	}

	var got []int
	unsubscribe := doubled.Subscribe(func(n int) { got = append(got, n) })
	src.Set(3)
	src.Set(5)
	unsubscribe()
	src.Set(7)

	if !reflect.DeepEqual(got, []int{4, 6, 10}) {
		t.Errorf("got %v, want [4 6 10]", got)
	}
	if src.Subscribers() != 0 {
		t.Errorf("derived store still subscribed to source")
	}
}

func TestDeriveWithCleanup(t *testing.T) {
	src := New("a")
	cleanups := 0

	d := DeriveWith[string, string](src, "", func(v string, set func(string)) func() {
		set(v + v)
		return func() { cleanups++ }
	})

	var got []string
	unsubscribe := d.Subscribe(func(v string) { got = append(got, v) })
	src.Set("b")
	unsubscribe()

	if !reflect.DeepEqual(got, []string{"aa", "bb"}) {
		t.Errorf("got %v, want [aa bb]", got)
	}
	if cleanups != 2 {
		t.Errorf("cleanups: got %d, want 2", cleanups)
	}
}

func TestReadonly(t *testing.T) {
	s := New(1)
	r := Readonly[int](s)
	if _, ok := r.(Writable[int]); ok {
		t.Error("Readonly should not expose Set")
	}
	s.Set(2)
	if r.Current() != 2 {
		t.Errorf("Current: got %d, want 2", r.Current())
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		eq   bool
	}{
		{"ints", Equal(1, 1)},
		{"strings", Equal("a", "a")},
		{"slices", Equal([]int{1, 2}, []int{1, 2})},
		{"maps", Equal(map[string]int{"a": 1}, map[string]int{"a": 1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.eq {
				t.Errorf("expected equal")
			}
		})
	}
	if Equal([]int{1}, []int{2}) {
		t.Error("different slices reported equal")
	}
}

func TestEqualMixedDynamicTypes(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"string and int", "x", 1, false},
		{"int and string", 1, "x", false},
		{"int and float", 5, 5.0, false},
		{"float and slice", 1.5, []int{1}, false},
		{"nil and string", nil, "x", false},
		{"same string", "x", "x", true},
		{"same float", 5.0, 5.0, true},
		{"same map", map[string]any{"a": 1}, map[string]any{"a": 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal[any](tt.a, tt.b); got != tt.want {
				t.Errorf("Equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestStoreOfInterfaceChangesDynamicType(t *testing.T) {
	s := New[any]("x")
	var got []any
	unsubscribe := s.Subscribe(func(v any) { got = append(got, v) })
	defer unsubscribe()

	s.Set(1)
	s.Set(1.5)
	s.Set([]string{"a"})
	s.Set("x")

	want := []any{"x", 1, 1.5, []string{"a"}, "x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if s.Subscribers() != 1 {
		t.Errorf("Subscribers: got %d, want 1", s.Subscribers())
	}
}
