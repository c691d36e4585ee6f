// Package control is the daemon's control plane: line-delimited JSON
// request/response over a unix socket, plus event broadcast to every
// connected client.
package control

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
)

// HandlerFunc is the signature for API method handlers.
type HandlerFunc func(params json.RawMessage) (any, error)

// Request is one incoming API call.
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
	ID     string          `json:"id,omitempty"`
}

// Response is the reply to a Request.
type Response struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	ID    string `json:"id,omitempty"`
}

// Event is a pushed notification. Clients distinguish events from
// responses by the presence of a type.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Server accepts connections on the unix socket and dispatches requests to
// registered handlers.
type Server struct {
	socketPath string
	listener   net.Listener
	handlers   map[string]HandlerFunc
	mu         sync.RWMutex
	clients    map[net.Conn]struct{}
	done       chan struct{}
	stopOnce   sync.Once
}

// NewServer creates a control server bound to the given socket path.
func NewServer(socketPath string) *Server {
	return &Server{
		socketPath: socketPath,
		handlers:   make(map[string]HandlerFunc),
		clients:    make(map[net.Conn]struct{}),
		done:       make(chan struct{}),
	}
}

// Handle registers a handler for a method name.
func (s *Server) Handle(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
}

// Start begins listening for connections.
func (s *Server) Start() error {
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	s.listener = listener
	os.Chmod(s.socketPath, 0700)

	go s.acceptLoop()
	return nil
}

// Stop closes the listener, every connection, and removes the socket. Safe
// to call more than once; the forced-shutdown path may re-enter after a
// graceful stop has already run.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		for conn := range s.clients {
			conn.Close()
		}
		s.mu.Unlock()

		if s.listener != nil {
			s.listener.Close()
		}
		os.Remove(s.socketPath)
	})
	return nil
}

// Broadcast pushes an event to every connected client. Best-effort: write
// failures are the connection handler's problem.
func (s *Server) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.RLock()
	defer s.mu.RUnlock()
	for conn := range s.clients {
		conn.Write(data)
	}
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}

		s.mu.Lock()
		s.clients[conn] = struct{}{}
		s.mu.Unlock()

		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			s.reply(conn, Response{Error: "invalid request: " + err.Error()})
			continue
		}

		s.mu.RLock()
		handler, ok := s.handlers[req.Method]
		s.mu.RUnlock()
		if !ok {
			s.reply(conn, Response{ID: req.ID, Error: "unknown method: " + req.Method})
			continue
		}

		data, err := handler(req.Params)
		if err != nil {
			s.reply(conn, Response{ID: req.ID, Error: err.Error()})
			continue
		}
		s.reply(conn, Response{ID: req.ID, Data: data})
	}
}

func (s *Server) reply(conn net.Conn, resp Response) {
	encoded, err := json.Marshal(resp)
	if err != nil {
		return
	}
	conn.Write(append(encoded, '\n'))
}
