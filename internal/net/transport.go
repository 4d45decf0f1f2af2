package net

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ChannelBoard/internal/logging"
)

// GeneratePath is the websocket endpoint of the service.
const GeneratePath = "/generate"

// Client calls a generation service over websocket, one connection per call.
type Client struct {
	URL    string
	Dialer *websocket.Dialer
}

var _ Service = (*Client)(nil)

// NewClient returns a client for the service at addr (host:port).
func NewClient(addr string) *Client {
	return &Client{
		URL:    "ws://" + addr + GeneratePath,
		Dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (c *Client) ScribbleToLine(ctx context.Context, req ScribbleToLineRequest) error {
	return c.run(ctx, OpScribbleToLine,
		map[string]string{KeyScribble: req.Scribble, KeyLineart: req.Lineart},
		map[string]string{KeyLineart: req.Output})
}

func (c *Client) DetailColored(ctx context.Context, req DetailColoredRequest) error {
	return c.run(ctx, OpDetailColored,
		map[string]string{
			KeyFull:           req.Full,
			KeyBaseColorImage: req.BaseColorImage,
			KeyLineart:        req.Lineart,
			KeyBaseColor:      req.BaseColor,
			KeyShadow:         req.Shadow,
			KeyLight:          req.Light,
		},
		map[string]string{KeyShadow: req.ShadowOutput, KeyLight: req.LightOutput})
}

func (c *Client) run(ctx context.Context, op string, inputs, outputs map[string]string) error {
	in := make(map[string][]byte, len(inputs))
	for k, p := range inputs {
		b, err := os.ReadFile(p)
		if err != nil {
			return &ServiceError{Op: op, Err: fmt.Errorf("read input %s: %w", k, err)}
		}
		in[k] = b
	}
	out, err := c.call(ctx, Request{ID: uuid.NewString(), Op: op, Inputs: in})
	if err != nil {
		return &ServiceError{Op: op, Err: err}
	}
	if err := writeOutputs(out, outputs); err != nil {
		return &ServiceError{Op: op, Err: err}
	}
	return nil
}

func (c *Client) call(ctx context.Context, req Request) (map[string][]byte, error) {
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w: %w", c.URL, ErrUnreachable, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	logging.L().Debug("service.request", "op", req.Op, "id", req.ID, "url", c.URL)
	if err := conn.WriteJSON(req); err != nil {
		return nil, ctxErr(ctx, fmt.Errorf("send request: %w", err))
	}
	var resp Response
	if err := conn.ReadJSON(&resp); err != nil {
		return nil, ctxErr(ctx, fmt.Errorf("read response: %w", err))
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("response id %q does not match request %q", resp.ID, req.ID)
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	return resp.Outputs, nil
}

func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// writeOutputs stages every output in a temp file next to its destination
// and renames them into place once all are written.
func writeOutputs(out map[string][]byte, dests map[string]string) error {
	type staged struct{ tmp, dest string }
	var files []staged
	cleanup := func() {
		for _, f := range files {
			os.Remove(f.tmp)
		}
	}
	for k, dest := range dests {
		data, ok := out[k]
		if !ok || len(data) == 0 {
			cleanup()
			return fmt.Errorf("response lacks output %q", k)
		}
		tmp, err := os.CreateTemp(filepath.Dir(dest), ".incoming-*")
		if err != nil {
			cleanup()
			return err
		}
		files = append(files, staged{tmp: tmp.Name(), dest: dest})
		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			cleanup()
			return err
		}
		if err := tmp.Close(); err != nil {
			cleanup()
			return err
		}
	}
	for i, f := range files {
		if err := os.Rename(f.tmp, f.dest); err != nil {
			for _, rest := range files[i:] {
				os.Remove(rest.tmp)
			}
			return err
		}
	}
	return nil
}

// Handler runs one operation.
type Handler interface {
	Handle(ctx context.Context, op string, inputs map[string][]byte) (map[string][]byte, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, op string, inputs map[string][]byte) (map[string][]byte, error)

func (f HandlerFunc) Handle(ctx context.Context, op string, inputs map[string][]byte) (map[string][]byte, error) {
	return f(ctx, op, inputs)
}

// Peer is a connected client.
type Peer struct {
	Conn *websocket.Conn
}

// Server serves Handler over websocket and keeps track of connected peers.
type Server struct {
	handler  Handler
	upgrader websocket.Upgrader
	peers    map[string]*Peer
	mu       sync.RWMutex
}

// NewServer creates a server dispatching requests to h.
func NewServer(h Handler) *Server {
	return &Server{
		handler: h,
		peers:   make(map[string]*Peer),
	}
}

// Peers returns the number of connected clients.
func (s *Server) Peers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

func (s *Server) add(p *Peer) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr := p.Conn.RemoteAddr().String()
	s.peers[addr] = p
	log.Printf("[SERVER] Client connected from %s", addr)
	return addr
}

func (s *Server) remove(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, addr)
}

// ServeHTTP upgrades the connection and answers requests until the client
// disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[SERVER] Upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	addr := s.add(&Peer{Conn: conn})
	defer s.remove(addr)

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.L().Debug("server.read", "peer", addr, "err", err)
			}
			return
		}
		resp := Response{ID: req.ID}
		out, err := s.handler.Handle(r.Context(), req.Op, req.Inputs)
		if err != nil {
			resp.Error = err.Error()
			log.Printf("[SERVER] %s %s failed: %v", req.Op, req.ID, err)
		} else {
			resp.Outputs = out
			log.Printf("[SERVER] %s %s done", req.Op, req.ID)
		}
		if err := conn.WriteJSON(resp); err != nil {
			logging.L().Debug("server.write", "peer", addr, "err", err)
			return
		}
	}
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle(GeneratePath, s)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Printf("[SERVER] Listening on %s%s", addr, GeneratePath)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
