package querysync

import (
	"context"
	"errors"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/vango-dev/urlstore/pkg/location"
	"github.com/vango-dev/urlstore/pkg/metrics"
)

// recordingNavigator forwards to a History and records every request.
type recordingNavigator struct {
	history *location.History
	targets []string
	opts    []location.NavigateOptions
	err     error
}

func (n *recordingNavigator) Navigate(ctx context.Context, target *url.URL, opts location.NavigateOptions) error {
	n.targets = append(n.targets, target.String())
	n.opts = append(n.opts, opts)
	if n.err != nil {
		return n.err
	}
	return n.history.Navigate(ctx, target, opts)
}

func newHarness(t *testing.T, raw string) (*location.History, *recordingNavigator) {
	t.Helper()
	h, err := location.ParseHistory(raw)
	if err != nil {
		t.Fatal(err)
	}
	return h, &recordingNavigator{history: h}
}

func TestStoreDecodesLiveLocation(t *testing.T) {
	h, nav := newHarness(t, "https://shop.test/search?page=3")
	page := NewParam(h, nav, "page", Int(1))

	if page.Current() != 3 {
		t.Errorf("Current: got %d, want 3", page.Current())
	}

	var seen []int
	unsubscribe := page.Subscribe(func(v int) { seen = append(seen, v) })
	defer unsubscribe()

	h.Navigate(context.Background(), &url.URL{RawQuery: "page=5"}, location.NavigateOptions{})
	h.Navigate(context.Background(), &url.URL{RawQuery: "page=5&q=x"}, location.NavigateOptions{})
	h.Navigate(context.Background(), &url.URL{RawQuery: "q=x"}, location.NavigateOptions{})

	if !reflect.DeepEqual(seen, []int{3, 5, 1}) {
		t.Errorf("seen: got %v, want [3 5 1]", seen)
	}
}

func TestStoreSetIsIdempotent(t *testing.T) {
	h, nav := newHarness(t, "https://shop.test/search?q=shoes")
	page := NewParam(h, nav, "page", Int(1))

	page.Set(2)
	page.Set(2)

	if len(nav.targets) != 1 {
		t.Fatalf("navigations: got %d (%v), want 1", len(nav.targets), nav.targets)
	}
	if got := h.Current().String(); got != "https://shop.test/search?page=2&q=shoes" {
		t.Errorf("url: got %q", got)
	}
	if page.Current() != 2 {
		t.Errorf("Current: got %d, want 2", page.Current())
	}
}

func TestStoreDefaultEncodesAsAbsent(t *testing.T) {
	h, nav := newHarness(t, "/list?page=4&sort=price")
	page := NewParam(h, nav, "page", Int(1))

	page.Set(1)
	if got := h.Current().String(); got != "/list?sort=price" {
		t.Errorf("url: got %q, want /list?sort=price", got)
	}

	page.Set(1)
	if len(nav.targets) != 1 {
		t.Errorf("navigations: got %d, want 1", len(nav.targets))
	}
}

func TestStoreUnparsableDecodesToDefault(t *testing.T) {
	h, nav := newHarness(t, "/list?page=abc")
	page := NewParam(h, nav, "page", Int(1))

	if page.Current() != 1 {
		t.Errorf("got %d, want default 1", page.Current())
	}
}

func TestStoreBoolFlag(t *testing.T) {
	h, nav := newHarness(t, "/inbox")
	unread := NewParam(h, nav, "unread", Bool())

	unread.Set(true)
	if got := h.Current().String(); got != "/inbox?unread=" {
		t.Errorf("true: got %q, want /inbox?unread=", got)
	}
	if !unread.Current() {
		t.Errorf("Current: got false after Set(true)")
	}

	unread.Set(false)
	if got := h.Current().String(); got != "/inbox" {
		t.Errorf("false: got %q, want /inbox", got)
	}
}

func TestStoreKeepsUnrelatedKeys(t *testing.T) {
	h, nav := newHarness(t, "/p?utm_source=mail&b=2#reviews")
	q := NewParam(h, nav, "q", String(""))

	q.Set("lamp")
	if got := h.Current().String(); got != "/p?b=2&q=lamp&utm_source=mail#reviews" {
		t.Errorf("got %q", got)
	}
}

func TestStoreWithoutSort(t *testing.T) {
	h, nav := newHarness(t, "/p?z=1")
	a := NewParam(h, nav, "a", Identity(), WithoutSort())

	a.Set("x")
	if got := h.Current().String(); got != "/p?z=1&a=x" {
		t.Errorf("got %q, want insertion order", got)
	}

	a.Set("x")
	if len(nav.targets) != 1 {
		t.Errorf("navigations: got %d, want 1", len(nav.targets))
	}
}

func TestStoreNavigateOptionMerge(t *testing.T) {
	h, nav := newHarness(t, "/")
	page := NewParam(h, nav, "page", Int(1),
		WithNavigateOptions(location.NoScroll(false)),
	)

	page.Set(2)
	page.SetWith(3, location.ReplaceState(false), location.InvalidateAll(true))

	want := []location.NavigateOptions{
		{ReplaceState: true, KeepFocus: true},
		{KeepFocus: true, InvalidateAll: true},
	}
	if !reflect.DeepEqual(nav.opts, want) {
		t.Errorf("opts: got %+v, want %+v", nav.opts, want)
	}
	if h.Len() != 2 {
		t.Errorf("history length: got %d, want 2 (one replace, one push)", h.Len())
	}
}

func TestStoreUpdateUsesLiveValue(t *testing.T) {
	h, nav := newHarness(t, "/?page=2")
	page := NewParam(h, nav, "page", Int(1))

	// An external navigation lands between construction and the update.
	h.Navigate(context.Background(), &url.URL{RawQuery: "page=7"}, location.NavigateOptions{})

	page.Update(func(p int) int { return p + 1 })
	if page.Current() != 8 {
		t.Errorf("got %d, want 8", page.Current())
	}
}

func TestStoreNavigationFailureIsReported(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.New(metrics.WithRegistry(reg))

	h, nav := newHarness(t, "/")
	nav.err = location.ErrBlocked

	var gotTarget string
	var gotErr error
	page := NewParam(h, nav, "page", Int(1),
		WithRecorder(rec),
		WithNavigateErrorHandler(func(target string, err error) {
			gotTarget, gotErr = target, err
		}),
	)

	page.Set(2)

	if gotTarget != "/?page=2" || !errors.Is(gotErr, location.ErrBlocked) {
		t.Errorf("handler: got %q, %v", gotTarget, gotErr)
	}
	if page.Current() != 1 {
		t.Errorf("failed navigation changed the value: %d", page.Current())
	}
	expected := `
# HELP urlstore_navigations_total Query store writes by outcome (requested, skipped, failed)
# TYPE urlstore_navigations_total counter
urlstore_navigations_total{outcome="failed",store="page"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "urlstore_navigations_total"); err != nil {
		t.Errorf("metrics: %v", err)
	}
}

func TestStoreStructCodec(t *testing.T) {
	type filters struct {
		Query string `url:"q"`
		Page  int    `url:"page"`
	}
	h, nav := newHarness(t, "/search?ref=home")
	s := New(h, nav, StructCodec[filters]())

	s.Set(filters{Query: "desk", Page: 2})
	if got := h.Current().String(); got != "/search?page=2&q=desk&ref=home" {
		t.Errorf("got %q", got)
	}

	s.Update(func(f filters) filters { f.Page = 0; return f })
	if got := h.Current().String(); got != "/search?q=desk&ref=home" {
		t.Errorf("got %q", got)
	}
}

func TestStoreTarget(t *testing.T) {
	h, nav := newHarness(t, "/?b=1")
	a := NewParam(h, nav, "a", Identity())

	target, changed := a.Target("x")
	if !changed || target.String() != "/?a=x&b=1" {
		t.Errorf("Target: got %q, %v", target, changed)
	}
	if len(nav.targets) != 0 {
		t.Errorf("Target navigated")
	}
}

func TestStoreValueChangesDynamicType(t *testing.T) {
	h, nav := newHarness(t, "/search")
	q := NewParam(h, nav, "q", JSON[any](nil))

	var seen []any
	unsubscribe := q.Subscribe(func(v any) { seen = append(seen, v) })
	defer unsubscribe()

	q.Set("x")
	q.Set(5)
	q.Set("y")

	want := []any{nil, "x", float64(5), "y"}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("seen: got %v, want %v", seen, want)
	}
	if len(nav.targets) != 3 {
		t.Errorf("navigations: got %v", nav.targets)
	}
}
