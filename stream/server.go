// Package stream serves live memory graph events over WebSocket.
//
// Endpoints:
//
//	/events  websocket; every graph event as JSON {"event","node","cycle"}
//	/status  component statuses as JSON
//	/health  component health as JSON
package stream

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/acn-rai/rai-memory/component"
	"github.com/acn-rai/rai-memory/config"
	"github.com/acn-rai/rai-memory/errors"
	"github.com/acn-rai/rai-memory/logger"
	"github.com/acn-rai/rai-memory/memory"
)

// ComponentName is the registered name of the event stream.
const ComponentName = "EventStream"

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

// StatusSource reports component state; *component.Registry implements it.
type StatusSource interface {
	StatusAll() []component.Status
	HealthAll(ctx context.Context) []component.Health
}

// Server broadcasts graph events to websocket clients.
type Server struct {
	component.Base

	cfg      config.StreamConfig
	graph    *memory.Graph
	status   StatusSource
	upgrader websocket.Upgrader
	log      *logger.Logger

	mu          sync.Mutex
	clients     map[*client]struct{}
	unsubscribe func()
	httpSrv     *http.Server
	addr        net.Addr
}

var (
	_ component.Component = (*Server)(nil)
	_ component.Lifecycle = (*Server)(nil)
)

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// New creates a server streaming events from graph. status may be nil.
func New(cfg config.StreamConfig, graph *memory.Graph, status StatusSource) *Server {
	s := &Server{
		Base:    component.NewBase(ComponentName),
		cfg:     cfg,
		graph:   graph,
		status:  status,
		log:     logger.WithComponent(ComponentName),
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start subscribes to the graph, listens on the configured address and
// serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}

	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	s.mu.Lock()
	s.httpSrv = srv
	s.addr = ln.Addr()
	if s.unsubscribe == nil {
		s.unsubscribe = s.graph.Subscribe(s.publish)
	}
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.log.Error("serve failed", logger.ErrorFields("serve", err))
		}
	}()

	s.log.Info("listening", logger.Fields("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop detaches from the graph, shuts the listener down and drops clients.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	srv := s.httpSrv
	s.httpSrv = nil
	clients := s.clients
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	for c := range clients {
		c.close()
	}
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) publish(ctx context.Context, ev memory.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", errors.Internal(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.log.Warn("client too slow, dropping event", logger.Fields(logger.FieldEvent, string(ev.Type)))
		}
	}
	return nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", logger.ErrorFields("upgrade", err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go s.writeLoop(c)
	s.readLoop(c)
}

// readLoop discards client messages and unregisters the client when the
// connection closes.
func (s *Server) readLoop(c *client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		c.close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	statuses := []component.Status{}
	if s.status != nil {
		statuses = s.status.StatusAll()
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := []component.Health{}
	code := http.StatusOK
	if s.status != nil {
		health = s.status.HealthAll(r.Context())
	}
	for _, h := range health {
		if h.Status == component.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, health)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
