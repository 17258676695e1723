package host

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/urlstore/internal/errors"
	"github.com/vango-dev/urlstore/pkg/location"
	"github.com/vango-dev/urlstore/pkg/metrics"
	"github.com/vango-dev/urlstore/pkg/store"
)

const tracerName = "github.com/vango-dev/urlstore/pkg/host"

const (
	writeWait = 10 * time.Second

	// RequestIDHeader carries the request id set by the server.
	RequestIDHeader = "X-Request-ID"
)

// Host is the location environment a Server exposes.
type Host interface {
	store.Readable[location.Location]
	location.Navigator
	location.Pusher
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	logger      *slog.Logger
	recorder    *metrics.Recorder
	tracer      trace.Tracer
	gatherer    prometheus.Gatherer
	checkOrigin func(*http.Request) bool
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(c *serverConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder records connections and messages on rec.
func WithRecorder(rec *metrics.Recorder) ServerOption {
	return func(c *serverConfig) {
		c.recorder = rec
	}
}

// WithTracerProvider sets the tracer provider used for request spans.
func WithTracerProvider(tp trace.TracerProvider) ServerOption {
	return func(c *serverConfig) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithGatherer serves g on /metrics. Without it the route is not mounted.
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(c *serverConfig) {
		c.gatherer = g
	}
}

// WithCheckOrigin sets the websocket origin check. The default accepts
// every origin.
func WithCheckOrigin(fn func(*http.Request) bool) ServerOption {
	return func(c *serverConfig) {
		c.checkOrigin = fn
	}
}

// Server exposes a Host over HTTP and websocket. Connected clients receive
// the location on connect and after every change.
type Server struct {
	host     Host
	router   chi.Router
	upgrader websocket.Upgrader
	cfg      serverConfig

	mu          sync.Mutex
	peers       map[*peer]struct{}
	closed      bool
	unsubscribe func()
}

type peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *peer) send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

// NewServer creates a server for h and starts following its location.
func NewServer(h Host, opts ...ServerOption) *Server {
	cfg := serverConfig{
		logger:      slog.Default().With("component", "host"),
		tracer:      otel.Tracer(tracerName),
		checkOrigin: func(*http.Request) bool { return true },
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{
		host:  h,
		cfg:   cfg,
		peers: make(map[*peer]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.checkOrigin,
		},
	}
	s.router = s.routes()
	s.unsubscribe = h.Subscribe(s.broadcast)
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)

	r.Get("/ws", s.handleWebSocket)
	r.Get("/location", s.handleLocation)
	r.Post("/navigate", s.handleNavigate)
	r.Post("/push", s.handlePush)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	if s.cfg.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.cfg.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// requestID tags every request with a fresh id unless the caller sent one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	p := &peer{conn: conn}

	// Registering and sending the first location under the lock keeps it
	// ordered before any broadcast.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.peers[p] = struct{}{}
	err = p.send(LocationMessage(s.host.Current()))
	s.mu.Unlock()

	s.cfg.recorder.HostConnected()
	s.cfg.logger.Debug("client connected", "remote", r.RemoteAddr)
	defer s.drop(p)
	if err != nil {
		return
	}
	s.cfg.recorder.HostMessage(string(TypeLocation), metrics.DirectionOut)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleFrame(r.Context(), p, data)
	}
}

func (s *Server) handleFrame(ctx context.Context, p *peer, data []byte) {
	msg, err := ParseMessage(data)
	if err != nil {
		s.cfg.recorder.HostMessage("invalid", metrics.DirectionIn)
		s.cfg.logger.Warn("dropping client frame", "error", err)
		return
	}
	s.cfg.recorder.HostMessage(string(msg.Type), metrics.DirectionIn)

	reply := s.apply(ctx, msg)
	if err := p.send(reply); err != nil {
		s.cfg.logger.Debug("reply failed", "id", msg.ID, "error", err)
		return
	}
	s.cfg.recorder.HostMessage(string(reply.Type), metrics.DirectionOut)
}

// apply performs a client request and returns the ack or error reply. The
// location broadcast of a successful request goes out before the reply.
func (s *Server) apply(ctx context.Context, msg Message) Message {
	ctx, span := s.cfg.tracer.Start(ctx, "host."+string(msg.Type),
		trace.WithAttributes(
			attribute.String("urlstore.request_id", msg.ID),
			attribute.String("url.full", msg.URL),
		))
	defer span.End()

	var err error
	switch msg.Type {
	case TypeNavigate, TypePush:
		err = s.perform(ctx, msg)
	default:
		err = errors.New(errors.CodeUnknownMessage).WithDetailf("%q is not a client request", msg.Type)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.cfg.logger.Info("request rejected", "type", msg.Type, "url", msg.URL, "error", err)
		return errorMessage(msg.ID, err)
	}
	return ackMessage(msg.ID)
}

func (s *Server) perform(ctx context.Context, msg Message) error {
	u, err := msg.parseURL()
	if err != nil {
		return err
	}
	if msg.Type == TypePush {
		err = s.host.PushState(u, msg.State)
	} else {
		err = s.host.Navigate(ctx, u, msg.navigateOptions())
	}
	if err != nil {
		return errors.FromError(err, errors.CodeNavigateFailed)
	}
	return nil
}

func (s *Server) broadcast(loc location.Location) {
	msg := LocationMessage(loc)

	s.mu.Lock()
	defer s.mu.Unlock()
	for p := range s.peers {
		if err := p.send(msg); err != nil {
			s.cfg.logger.Debug("dropping client", "error", err)
			delete(s.peers, p)
			p.conn.Close()
			s.cfg.recorder.HostDisconnected()
			continue
		}
		s.cfg.recorder.HostMessage(string(TypeLocation), metrics.DirectionOut)
	}
}

func (s *Server) drop(p *peer) {
	s.mu.Lock()
	_, ok := s.peers[p]
	delete(s.peers, p)
	s.mu.Unlock()

	p.conn.Close()
	if ok {
		s.cfg.recorder.HostDisconnected()
	}
}

func (s *Server) handleLocation(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, LocationMessage(s.host.Current()))
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	s.handleRequest(w, r, TypeNavigate)
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	s.handleRequest(w, r, TypePush)
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request, typ MessageType) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorMessage("", errors.New(errors.CodeInvalidMessage).Wrap(err)))
		return
	}
	msg.Type = typ
	if msg.ID == "" {
		msg.ID = w.Header().Get(RequestIDHeader)
	}
	if msg.URL == "" {
		writeJSON(w, http.StatusBadRequest,
			errorMessage(msg.ID, errors.New(errors.CodeInvalidMessage).WithDetail("missing url")))
		return
	}
	s.cfg.recorder.HostMessage(string(typ), metrics.DirectionIn)

	reply := s.apply(r.Context(), msg)
	status := http.StatusOK
	if reply.Type == TypeError {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, reply)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Close stops following the host and disconnects every client.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	peers := s.peers
	s.peers = make(map[*peer]struct{})
	s.mu.Unlock()

	s.unsubscribe()
	for p := range peers {
		p.conn.Close()
		s.cfg.recorder.HostDisconnected()
	}
}
