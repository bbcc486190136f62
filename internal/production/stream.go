package production

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/comalice/storex"
	"github.com/comalice/storex/internal/primitives"
)

const writeTimeout = 5 * time.Second

// StateFrame is the JSON message sent to stream clients.
type StateFrame[S any] struct {
	Seq         uint64 `json:"seq"`
	Fingerprint string `json:"fingerprint"`
	State       S      `json:"state"`
}

type streamClient struct {
	mu   sync.Mutex // serializes writes
	conn *websocket.Conn
}

func (c *streamClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// StateStream is an http.Handler upgrading requests to WebSocket and pushing
// every state of the attached store to each client as a StateFrame. A new
// client first receives the latest state.
type StateStream[S any] struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*streamClient]struct{}
	last    []byte
	seq     uint64
	detach  storex.Unsubscribe
}

// NewStateStream creates a StateStream. It sends nothing until it is attached
// to a store or fed states through Next.
func NewStateStream[S any](logger *slog.Logger) *StateStream[S] {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateStream[S]{
		logger:  logger,
		clients: make(map[*streamClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Attach subscribes the stream to src. Call it from the goroutine that owns
// the store.
func (s *StateStream[S]) Attach(src storex.Interop[S]) error {
	obs, err := storex.FromInterop(src)
	if err != nil {
		return err
	}
	sub, err := obs.Subscribe(s)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.detach = sub.Unsubscribe
	s.mu.Unlock()
	return nil
}

// Next broadcasts state to every connected client. Clients that fail to
// receive it are disconnected.
func (s *StateStream[S]) Next(state S) {
	s.mu.Lock()
	s.seq++
	data, err := json.Marshal(StateFrame[S]{
		Seq:         s.seq,
		Fingerprint: primitives.Fingerprint(state),
		State:       state,
	})
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("state frame encoding failed", slog.String("error", err.Error()))
		return
	}
	s.last = data
	clients := make([]*streamClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			s.logger.Debug("stream client dropped", slog.String("error", err.Error()))
			s.remove(c)
		}
	}
}

// ServeHTTP handles the WebSocket upgrade and keeps the connection open
// until the client disconnects.
func (s *StateStream[S]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &streamClient{conn: conn}
	// Hold the write lock until the latest frame is sent so a concurrent
	// broadcast cannot overtake it.
	c.mu.Lock()
	s.mu.Lock()
	s.clients[c] = struct{}{}
	last := s.last
	s.mu.Unlock()
	if last != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, last); err != nil {
			c.mu.Unlock()
			s.remove(c)
			return
		}
	}
	c.mu.Unlock()

	s.logger.Debug("stream client connected", slog.String("remote", r.RemoteAddr))

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.remove(c)
}

func (s *StateStream[S]) remove(c *streamClient) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

// Clients returns the number of connected clients.
func (s *StateStream[S]) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close detaches from the store and closes all client connections.
func (s *StateStream[S]) Close() error {
	s.mu.Lock()
	detach := s.detach
	s.detach = nil
	clients := s.clients
	s.clients = make(map[*streamClient]struct{})
	s.mu.Unlock()

	var err error
	if detach != nil {
		err = detach()
	}
	for c := range clients {
		c.conn.Close()
	}
	return err
}
