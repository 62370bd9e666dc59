// Package web serves a touch control page and streams status over a
// websocket. Touch messages from the page are fed to the gesture recognizer.
package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/guidoenr/spectrascape/internal/analyzer"
	"github.com/guidoenr/spectrascape/internal/gesture"
	"github.com/guidoenr/spectrascape/internal/logger"
)

//go:embed index.html
var indexHTML []byte

const (
	statusInterval = 500 * time.Millisecond
	readTimeout    = 60 * time.Second
	writeTimeout   = 10 * time.Second
	pingInterval   = 54 * time.Second
	maxMessageSize = 64 << 10
)

// Input receives decoded touch and pointer messages.
type Input interface {
	Pointer(x, y, w, h float64)
	Handle(ev gesture.Event)
}

// Status is the JSON body of /api/status and of every websocket broadcast.
type Status struct {
	Type     string         `json:"type"`
	Source   string         `json:"source"`
	Audio    bool           `json:"audio"`
	Bands    analyzer.Bands `json:"bands"`
	Scale    float64        `json:"scale"`
	Rotation float64        `json:"rotation"`
	FPS      float64        `json:"fps"`
	Frame    uint64         `json:"frame"`
}

// StatusProvider reports the current pipeline state.
type StatusProvider interface {
	Status() Status
}

// touchMessage is one message sent by the control page.
type touchMessage struct {
	Type    string            `json:"type"`
	Width   float64           `json:"width"`
	Height  float64           `json:"height"`
	Touches []gesture.Contact `json:"touches"`
}

type Server struct {
	addr     string
	status   StatusProvider
	input    Input
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu        sync.RWMutex
	clients   map[*websocketClient]bool
	broadcast chan []byte
}

type websocketClient struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
	once   sync.Once
}

// NewServer builds a server listening on addr once Run is called.
func NewServer(addr string, status StatusProvider, input Input, l *slog.Logger) *Server {
	return &Server{
		addr:      addr,
		status:    status,
		input:     input,
		logger:    logger.OrDiscard(l).With("component", "web"),
		clients:   make(map[*websocketClient]bool),
		broadcast: make(chan []byte, 256),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully and drops
// every websocket client.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("web listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	loopCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.broadcastLoop(loopCtx)
	}()
	go func() {
		defer wg.Done()
		s.statusUpdateLoop(loopCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		serveErr = srv.Shutdown(shutdownCtx)
		done()
		<-errCh
	case serveErr = <-errCh:
	}

	cancel()
	wg.Wait()
	s.dropClients()

	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}
	return serveErr
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.snapshot()); err != nil {
		s.logger.Warn("encode status", "error", err)
	}
}

func (s *Server) snapshot() Status {
	st := s.status.Status()
	st.Type = "status"
	return st
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", "error", err)
		return
	}

	client := &websocketClient{
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
	}

	s.mu.Lock()
	s.clients[client] = true
	s.mu.Unlock()

	go client.writePump()
	go client.readPump()
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) removeClient(c *websocketClient) {
	s.mu.Lock()
	if s.clients[c] {
		delete(s.clients, c)
		c.closeSend()
	}
	s.mu.Unlock()
}

func (s *Server) dropClients() {
	s.mu.Lock()
	for c := range s.clients {
		delete(s.clients, c)
		c.closeSend()
	}
	s.mu.Unlock()
}

func (s *Server) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-s.broadcast:
			s.mu.Lock()
			for client := range s.clients {
				select {
				case client.send <- message:
				default:
					delete(s.clients, client)
					client.closeSend()
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *Server) statusUpdateLoop(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		data, err := json.Marshal(s.snapshot())
		if err != nil {
			s.logger.Warn("marshal status", "error", err)
			continue
		}
		select {
		case s.broadcast <- data:
		default:
		}
	}
}

// dispatch applies one decoded control message.
func (s *Server) dispatch(msg touchMessage) error {
	if s.input == nil {
		return nil
	}
	if msg.Type == "pointer" {
		if len(msg.Touches) == 0 {
			return errors.New("pointer message without position")
		}
		p := msg.Touches[0]
		s.input.Pointer(p.X, p.Y, msg.Width, msg.Height)
		return nil
	}
	phase, ok := gesture.ParsePhase(msg.Type)
	if !ok {
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	s.input.Handle(gesture.Event{
		Phase:    phase,
		Contacts: msg.Touches,
		Width:    msg.Width,
		Height:   msg.Height,
	})
	return nil
}

func (c *websocketClient) closeSend() {
	c.once.Do(func() { close(c.send) })
}

func (c *websocketClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		var msg touchMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.server.logger.Debug("bad control message", "error", err)
				continue
			}
			return
		}
		if err := c.server.dispatch(msg); err != nil {
			c.server.logger.Debug("control message rejected", "error", err)
		}
	}
}

func (c *websocketClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
