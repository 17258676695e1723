package derive

import (
	"reflect"
	"strconv"
	"testing"

	"github.com/vango-dev/urlstore/pkg/store"
)

func TestComposeReadsAndWritesBack(t *testing.T) {
	src := store.New(21)
	asString := Compose(store.Writable[int](src), Projection[int, string]{
		Read: strconv.Itoa,
		Write: func(s string, current int) int {
			n, err := strconv.Atoi(s)
			if err != nil {
				return current
			}
			return n
		},
	})

	if asString.Current() != "21" {
		t.Errorf("Current: got %q, want 21", asString.Current())
	}

	var seen []string
	unsubscribe := asString.Subscribe(func(s string) { seen = append(seen, s) })
	defer unsubscribe()

	asString.Set("42")
	if src.Current() != 42 {
		t.Errorf("source: got %d, want 42", src.Current())
	}

	src.Set(7)
	if !reflect.DeepEqual(seen, []string{"21", "42", "7"}) {
		t.Errorf("seen: got %v, want [21 42 7]", seen)
	}

	asString.Set("not a number")
	if src.Current() != 7 {
		t.Errorf("rejected write changed source: got %d", src.Current())
	}
}

func TestComposeWriteSeesCurrentSource(t *testing.T) {
	type pair struct{ A, B int }
	src := store.New(pair{})
	a := Field(store.Writable[pair](src),
		func(p pair) int { return p.A },
		func(p pair, v int) pair { p.A = v; return p },
	)
	b := Field(store.Writable[pair](src),
		func(p pair) int { return p.B },
		func(p pair, v int) pair { p.B = v; return p },
	)

	a.Set(1)
	b.Set(2)
	a.Set(3)

	if got := src.Current(); got != (pair{A: 3, B: 2}) {
		t.Errorf("got %+v, want {A:3 B:2}", got)
	}
}

func TestComposeUpdate(t *testing.T) {
	src := store.New(map[string]int{"n": 1})
	n := Key(store.Writable[map[string]int](src), "n")

	n.Update(func(v int) int { return v + 10 })
	if n.Current() != 11 {
		t.Errorf("got %d, want 11", n.Current())
	}
}

func TestKeyLeavesSiblingsUntouched(t *testing.T) {
	before := map[string]string{"q": "shoes", "sort": "price", "page": "2"}
	src := store.New(before)
	sort := Key(store.Writable[map[string]string](src), "sort")

	sort.Set("rating")

	after := src.Current()
	want := map[string]string{"q": "shoes", "sort": "rating", "page": "2"}
	if !reflect.DeepEqual(after, want) {
		t.Errorf("got %v, want %v", after, want)
	}
	if before["sort"] != "price" {
		t.Errorf("back-projection mutated the previous value: %v", before)
	}
}

func TestKeyNilMap(t *testing.T) {
	src := store.New[map[string]int](nil)
	k := Key(store.Writable[map[string]int](src), "x")

	if k.Current() != 0 {
		t.Errorf("missing key: got %d, want 0", k.Current())
	}
	k.Set(3)
	if src.Current()["x"] != 3 {
		t.Errorf("got %v, want x=3", src.Current())
	}
}

func TestKeyDeleteZero(t *testing.T) {
	src := store.New(map[string]int{"a": 1, "b": 2})
	a := Key(store.Writable[map[string]int](src), "a", DeleteZero())

	a.Set(0)

	if _, ok := src.Current()["a"]; ok {
		t.Errorf("zero value should delete the key: %v", src.Current())
	}
	if src.Current()["b"] != 2 {
		t.Errorf("sibling changed: %v", src.Current())
	}
}

func TestKeySubscriptionFollowsSource(t *testing.T) {
	src := store.New(map[string]int{"a": 1})
	a := Key(store.Writable[map[string]int](src), "a")

	var seen []int
	unsubscribe := a.Subscribe(func(v int) { seen = append(seen, v) })
	src.Set(map[string]int{"a": 2})
	src.Set(map[string]int{"a": 2, "b": 9})
	unsubscribe()

	if !reflect.DeepEqual(seen, []int{1, 2}) {
		t.Errorf("got %v, want [1 2]", seen)
	}
}
