package host

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/urlstore/internal/errors"
	"github.com/vango-dev/urlstore/pkg/location"
	"github.com/vango-dev/urlstore/pkg/metrics"
	"github.com/vango-dev/urlstore/pkg/querysync"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name string
		data string
		code string
	}{
		{"location", `{"type":"location","url":"/a?b=1"}`, ""},
		{"navigate", `{"type":"navigate","id":"1","url":"/a","options":{"replaceState":true}}`, ""},
		{"ack", `{"type":"ack","id":"1"}`, ""},
		{"malformed", `{"type":`, errors.CodeInvalidMessage},
		{"missing type", `{"url":"/a"}`, errors.CodeInvalidMessage},
		{"navigate without url", `{"type":"navigate","id":"1"}`, errors.CodeInvalidMessage},
		{"ack without id", `{"type":"ack"}`, errors.CodeInvalidMessage},
		{"unknown type", `{"type":"reload","url":"/a"}`, errors.CodeUnknownMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessage([]byte(tt.data))
			if tt.code == "" {
				if err != nil {
					t.Fatalf("ParseMessage: %v", err)
				}
				return
			}
			if !errors.HasCode(err, tt.code) {
				t.Errorf("error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestErrorMessageRoundTrip(t *testing.T) {
	err := errors.FromError(location.ErrBlocked, errors.CodeNavigateFailed)
	msg := errorMessage("req-1", err)
	if msg.Code != errors.CodeNavigateFailed || msg.Error != location.ErrBlocked.Error() {
		t.Fatalf("errorMessage: got %+v", msg)
	}

	back := remoteError(msg)
	if !stderrors.Is(back, location.ErrBlocked) {
		t.Errorf("remoteError lost the sentinel: %v", back)
	}
	if !errors.HasCode(back, errors.CodeNavigateFailed) {
		t.Errorf("remoteError lost the code: %v", back)
	}
}

func newHistory(t *testing.T) *location.History {
	t.Helper()
	h, err := location.ParseHistory("/start", location.WithBlocker(
		func(_ location.Location, to *url.URL, _ location.NavigateOptions) bool {
			return to.Path == "/forbidden"
		}))
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestServerHTTP(t *testing.T) {
	h := newHistory(t)
	reg := prometheus.NewRegistry()
	srv := NewServer(h,
		WithRecorder(metrics.New(metrics.WithRegistry(reg))),
		WithGatherer(reg))
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	t.Run("location", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/location")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var msg Message
		if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
			t.Fatal(err)
		}
		if msg.Type != TypeLocation || msg.URL != "/start" {
			t.Errorf("got %+v", msg)
		}
		if resp.Header.Get(RequestIDHeader) == "" {
			t.Errorf("missing %s header", RequestIDHeader)
		}
	})

	t.Run("navigate", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/navigate", "application/json",
			strings.NewReader(`{"url":"/next?page=2","options":{"replaceState":true}}`))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status: got %d", resp.StatusCode)
		}
		if got := h.Current().String(); got != "/next?page=2" {
			t.Errorf("current: got %q", got)
		}
		if h.Len() != 1 {
			t.Errorf("replaceState should not grow history, len %d", h.Len())
		}
	})

	t.Run("navigate blocked", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/navigate", "application/json",
			strings.NewReader(`{"id":"abc","url":"/forbidden"}`))
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("status: got %d", resp.StatusCode)
		}
		var msg Message
		json.NewDecoder(resp.Body).Decode(&msg)
		if msg.Type != TypeError || msg.ID != "abc" || msg.Code != errors.CodeNavigateFailed {
			t.Errorf("got %+v", msg)
		}
	})

	t.Run("bad body", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/push", "application/json", strings.NewReader(`{}`))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status: got %d", resp.StatusCode)
		}
	})

	t.Run("healthz", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/healthz")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK || string(body) != "ok" {
			t.Errorf("got %d %q", resp.StatusCode, body)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/metrics")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(body), `urlstore_host_messages_total{direction="in",type="navigate"} 2`) {
			t.Errorf("metrics missing navigate count:\n%s", body)
		}
	})
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClientRoundTrip(t *testing.T) {
	h := newHistory(t)
	srv := NewServer(h)
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client, err := NewClient(wsURL(ts), WithBackoff(10*time.Millisecond, 50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	unsubscribe := client.Subscribe(func(location.Location) {})

	waitFor(t, "initial location", func() bool { return client.Current().String() == "/start" })
	if srv.ClientCount() != 1 {
		t.Errorf("ClientCount: got %d", srv.ClientCount())
	}

	ctx := context.Background()
	if err := client.Navigate(ctx, &url.URL{Path: "/next", RawQuery: "q=1"}, location.NavigateOptions{}); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	// The location broadcast precedes the ack on the same connection.
	if got := client.Current().String(); got != "/next?q=1" {
		t.Errorf("client location after ack: got %q", got)
	}
	if got := h.Current().String(); got != "/next?q=1" {
		t.Errorf("host location: got %q", got)
	}

	err = client.Navigate(ctx, &url.URL{Path: "/forbidden"}, location.NavigateOptions{})
	if !stderrors.Is(err, location.ErrBlocked) {
		t.Errorf("blocked navigation: got %v", err)
	}

	if err := client.PushState(&url.URL{Path: "/photos/1"}, map[string]any{"modal": "open"}); err != nil {
		t.Fatalf("PushState: %v", err)
	}
	if got := client.Current().State["modal"]; got != "open" {
		t.Errorf("pushed state: got %v", got)
	}

	unsubscribe()
	waitFor(t, "disconnect", func() bool { return srv.ClientCount() == 0 && !client.Connected() })
}

func TestClientDrivesQueryStore(t *testing.T) {
	h := newHistory(t)
	srv := NewServer(h)
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client, err := NewClient(wsURL(ts))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	page := querysync.NewParam(client, client, "page", querysync.Int(1))
	unsubscribe := page.Subscribe(func(int) {})
	defer unsubscribe()

	waitFor(t, "initial location", func() bool { return client.Current().String() == "/start" })

	page.Set(3)
	if got := h.Current().String(); got != "/start?page=3" {
		t.Errorf("host location: got %q", got)
	}
	if page.Current() != 3 {
		t.Errorf("Current: got %d", page.Current())
	}
}

// silentServer accepts websocket clients, sends them one location and never
// answers a request.
func silentServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		start := location.Location{URL: &url.URL{Path: "/start"}}
		if err := conn.WriteJSON(LocationMessage(start)); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestClientRequestTimeout(t *testing.T) {
	ts := silentServer(t)
	defer ts.Close()

	client, err := NewClient("ws"+strings.TrimPrefix(ts.URL, "http"), WithRequestTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	unsubscribe := client.Subscribe(func(location.Location) {})
	defer unsubscribe()
	waitFor(t, "initial location", func() bool { return client.Current().String() == "/start" })

	t.Run("navigate without deadline", func(t *testing.T) {
		began := time.Now()
		err := client.Navigate(context.Background(), &url.URL{Path: "/next"}, location.NavigateOptions{})
		if !stderrors.Is(err, context.DeadlineExceeded) {
			t.Errorf("got %v, want %v", err, context.DeadlineExceeded)
		}
		if elapsed := time.Since(began); elapsed > 2*time.Second {
			t.Errorf("Navigate took %v", elapsed)
		}
	})

	t.Run("query store set returns", func(t *testing.T) {
		page := querysync.NewParam(client, client, "page", querysync.Int(1))
		done := make(chan struct{})
		go func() {
			page.Set(2)
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Set blocked on an unanswered navigation")
		}
	})
}

func TestClientNotConnected(t *testing.T) {
	client, err := NewClient("ws://127.0.0.1:1/ws")
	if err != nil {
		t.Fatal(err)
	}
	err = client.Navigate(context.Background(), &url.URL{Path: "/a"}, location.NavigateOptions{})
	if !stderrors.Is(err, ErrNotConnected) || !errors.HasCode(err, errors.CodeNotConnected) {
		t.Errorf("got %v", err)
	}
}

func TestNewClientRejectsURL(t *testing.T) {
	for _, raw := range []string{"http://localhost/ws", "::bad"} {
		if _, err := NewClient(raw); !errors.HasCode(err, errors.CodeInvalidURL) {
			t.Errorf("NewClient(%q): got %v", raw, err)
		}
	}
}
