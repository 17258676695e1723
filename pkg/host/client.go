package host

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/urlstore/internal/errors"
	"github.com/vango-dev/urlstore/pkg/location"
	"github.com/vango-dev/urlstore/pkg/metrics"
	"github.com/vango-dev/urlstore/pkg/schedule"
	"github.com/vango-dev/urlstore/pkg/store"
)

// ErrNotConnected is returned for requests made while the client has no
// open connection.
var ErrNotConnected = stderrors.New("host: not connected")

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	logger     *slog.Logger
	recorder   *metrics.Recorder
	sched      schedule.Scheduler
	header     http.Header
	timeout    time.Duration
	minBackoff time.Duration
	maxBackoff time.Duration
}

// WithClientLogger sets the logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClientRecorder records messages on rec.
func WithClientRecorder(rec *metrics.Recorder) ClientOption {
	return func(c *clientConfig) {
		c.recorder = rec
	}
}

// WithScheduler delivers location changes as tasks on sched instead of on
// the connection's reader goroutine.
func WithScheduler(sched schedule.Scheduler) ClientOption {
	return func(c *clientConfig) {
		c.sched = sched
	}
}

// WithHeader sets the headers sent with the websocket handshake.
func WithHeader(h http.Header) ClientOption {
	return func(c *clientConfig) {
		c.header = h
	}
}

// WithRequestTimeout bounds PushState, and Navigate calls whose context has
// no deadline. The default is 5s.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithBackoff sets the reconnect delay bounds. The delay doubles after each
// failed dial.
func WithBackoff(initial, limit time.Duration) ClientOption {
	return func(c *clientConfig) {
		if initial > 0 && limit >= initial {
			c.minBackoff = initial
			c.maxBackoff = limit
		}
	}
}

// Client is a remote Host. It connects while it has subscribers, reconnects
// with backoff when the connection drops, and forwards Navigate and
// PushState to the server.
type Client struct {
	url     string
	dialer  *websocket.Dialer
	cfg     clientConfig
	current *store.Store[location.Location]

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan Message
	refs    int
	cancel  context.CancelFunc

	writeMu sync.Mutex
}

// NewClient creates a client for the websocket endpoint rawURL, for example
// "ws://localhost:7070/ws". It does not connect until subscribed.
func NewClient(rawURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidURL).WithDetailf("%q", rawURL).Wrap(err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, errors.New(errors.CodeInvalidURL).WithDetailf("%q is not a ws:// or wss:// URL", rawURL)
	}

	cfg := clientConfig{
		logger:     slog.Default().With("component", "host-client"),
		timeout:    5 * time.Second,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Client{
		url:     u.String(),
		dialer:  websocket.DefaultDialer,
		cfg:     cfg,
		current: store.New(location.Location{URL: &url.URL{}}),
		pending: make(map[string]chan Message),
	}, nil
}

// Subscribe implements store.Readable. The first subscriber opens the
// connection and the last one to leave closes it.
func (c *Client) Subscribe(fn func(location.Location)) func() {
	c.acquire()
	unsubscribe := c.current.Subscribe(fn)

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			c.release()
		})
	}
}

// Current returns the last location received from the server. Before the
// first one arrives it is the empty location.
func (c *Client) Current() location.Location {
	return c.current.Current()
}

// Watch is a store.StartFunc following the remote location, for use with
// lazy.FromNotifier.
func (c *Client) Watch(set func(location.Location), _ func(func(location.Location) location.Location)) func() {
	return c.Subscribe(set)
}

// Connected reports whether a connection is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Navigate asks the server to navigate to target and waits for its answer.
// Without a deadline on ctx the wait is bounded by the request timeout.
func (c *Client) Navigate(ctx context.Context, target *url.URL, opts location.NavigateOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.timeout)
		defer cancel()
	}
	return c.request(ctx, Message{Type: TypeNavigate, URL: target.String(), Options: &opts})
}

// PushState asks the server to push a history entry carrying state.
func (c *Client) PushState(target *url.URL, state map[string]any) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.timeout)
	defer cancel()
	return c.request(ctx, Message{Type: TypePush, URL: target.String(), State: state})
}

// Close drops every subscription's hold on the connection and closes it.
func (c *Client) Close() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.refs = 0
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (c *Client) acquire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs++
	if c.refs == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		go c.run(ctx)
	}
}

func (c *Client) release() {
	c.mu.Lock()
	if c.refs == 0 {
		c.mu.Unlock()
		return
	}
	c.refs--
	var cancel context.CancelFunc
	if c.refs == 0 {
		cancel = c.cancel
		c.cancel = nil
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// run keeps a connection open until ctx is done.
func (c *Client) run(ctx context.Context) {
	delay := c.cfg.minBackoff
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, c.cfg.header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.cfg.logger.Debug("connect failed", "url", c.url, "retry_in", delay, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, c.cfg.maxBackoff)
			continue
		}

		delay = c.cfg.minBackoff
		c.serve(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		c.cfg.logger.Info("connection lost, reconnecting", "url", c.url)
	}
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.cfg.recorder.HostConnected()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		conn.Close()
		c.disconnect(conn)
		c.cfg.recorder.HostDisconnected()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := ParseMessage(data)
		if err != nil {
			c.cfg.logger.Warn("dropping server frame", "error", err)
			continue
		}
		c.cfg.recorder.HostMessage(string(msg.Type), metrics.DirectionIn)

		switch msg.Type {
		case TypeLocation:
			loc, err := msg.Location()
			if err != nil {
				c.cfg.logger.Warn("dropping location", "error", err)
				continue
			}
			c.deliver(loc)
		case TypeAck, TypeError:
			c.resolve(msg)
		default:
			c.cfg.logger.Warn("unexpected message from server", "type", msg.Type)
		}
	}
}

func (c *Client) deliver(loc location.Location) {
	if c.cfg.sched == nil {
		c.current.Set(loc)
		return
	}
	c.cfg.sched.Post(func() { c.current.Set(loc) })
}

func (c *Client) resolve(msg Message) {
	c.mu.Lock()
	reply, ok := c.pending[msg.ID]
	delete(c.pending, msg.ID)
	c.mu.Unlock()

	if ok {
		reply <- msg
	}
}

// disconnect forgets conn and fails the requests still waiting on it.
func (c *Client) disconnect(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	pending := c.pending
	c.pending = make(map[string]chan Message)
	c.mu.Unlock()

	for id, reply := range pending {
		reply <- Message{Type: TypeError, ID: id, Code: errors.CodeNotConnected, Error: ErrNotConnected.Error()}
	}
}

func (c *Client) request(ctx context.Context, msg Message) error {
	msg.ID = uuid.NewString()
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.New(errors.CodeInvalidMessage).Wrap(err)
	}

	reply := make(chan Message, 1)
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return errors.New(errors.CodeNotConnected).Wrap(ErrNotConnected)
	}
	c.pending[msg.ID] = reply
	c.mu.Unlock()

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(msg.ID)
		return errors.New(errors.CodeNotConnected).Wrap(err)
	}
	c.cfg.recorder.HostMessage(string(msg.Type), metrics.DirectionOut)

	select {
	case m := <-reply:
		if m.Type == TypeError {
			return remoteError(m)
		}
		return nil
	case <-ctx.Done():
		c.forget(msg.ID)
		return ctx.Err()
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
