// Package reload serves the output directory and pushes live-reload
// notifications to connected browsers over a websocket.
package reload

import (
	"context"
	_ "embed"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/run"
	"github.com/oklog/ulid/v2"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

//go:embed client.js
var clientScript []byte

const (
	// PortAttempts is how many consecutive ports are tried after the configured one.
	PortAttempts = 10

	writeTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

var _ ports.Reloader = (*Server)(nil)

// Server is the process-wide live-reload server.
// Reload and Inject are no-ops until Start succeeds.
type Server struct {
	logger   ports.Logger
	opener   Opener
	upgrader websocket.Upgrader

	mu      sync.Mutex
	started bool
	root    string
	url     string
	clients map[string]*client
	done    chan struct{}
	err     error
}

type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Option configures a Server.
type Option func(*Server)

// WithOpener replaces the browser launcher.
func WithOpener(opener Opener) Option {
	return func(s *Server) {
		s.opener = opener
	}
}

// NewServer creates a Server that has not started yet.
func NewServer(logger ports.Logger, opts ...Option) *Server {
	s := &Server{
		logger:  logger,
		opener:  OpenBrowser,
		clients: make(map[string]*client),
		done:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			// Clients are pages served by this server on a local port.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start listens, serves root/spec.Root and opens the browser. It returns the
// server URL once listening; serving ends when ctx is cancelled.
func (s *Server) Start(ctx context.Context, root string, spec domain.ServeSpec) (string, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return "", domain.ErrAlreadyServing
	}

	ln, err := listen(spec.Port)
	if err != nil {
		s.mu.Unlock()
		return "", err
	}

	dir := filepath.Join(root, filepath.FromSlash(spec.Root))
	url := "http://localhost:" + strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)

	s.started = true
	s.root = dir
	s.url = url
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc(SocketPath, s.handleSocket)
	mux.HandleFunc(ClientScriptPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		_, _ = w.Write(clientScript)
	})
	mux.Handle("/", fileHandler(dir))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var g run.Group

	// HTTP server.
	{
		g.Add(
			func() error {
				if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
					return zerr.Wrap(err, "reload server failed")
				}
				return nil
			},
			func(_ error) {
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
				s.closeClients()
			},
		)
	}

	// Context cancellation.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				<-ctx.Done()
				return ctx.Err()
			},
			func(_ error) {
				cancel()
			},
		)
	}

	go func() {
		err := g.Run()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	}()

	if spec.Open && spec.Browser != BrowserNone {
		if err := s.opener(spec.Browser, url); err != nil && s.logger != nil {
			s.logger.Warn("could not open browser: " + err.Error())
		}
	}

	return url, nil
}

// Wait blocks until the server has shut down. It returns at once when the
// server never started.
func (s *Server) Wait() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil
	}

	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// URL returns the address the server listens on, empty before Start.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Reload asks every client to reload the page.
func (s *Server) Reload() {
	s.broadcast(Message{Type: TypeReload})
}

// Inject asks every client to refresh the stylesheets at paths.
func (s *Server) Inject(paths []string) {
	s.mu.Lock()
	root := s.root
	s.mu.Unlock()

	urls := make([]string, 0, len(paths))
	for _, p := range paths {
		urls = append(urls, servedPath(root, p))
	}
	s.broadcast(Message{Type: TypeInject, Paths: urls})
}

// servedPath maps an absolute output path to its URL path below root.
func servedPath(root, p string) string {
	if root != "" && filepath.IsAbs(p) {
		if rel, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(rel, "..") {
			p = rel
		}
	}
	return "/" + strings.TrimPrefix(filepath.ToSlash(p), "/")
}

func (s *Server) broadcast(msg Message) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	targets := make(map[string]*client, len(s.clients))
	for id, c := range s.clients {
		targets[id] = c
	}
	s.mu.Unlock()

	for id, c := range targets {
		if err := c.send(msg); err != nil {
			s.drop(id)
		}
	}
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	id := ulid.Make().String()
	c := &client{conn: conn}

	s.mu.Lock()
	s.clients[id] = c
	s.mu.Unlock()

	if err := c.send(Message{Type: TypeHello, ID: id}); err != nil {
		s.drop(id)
		return
	}

	// Clients never send anything; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.drop(id)
			return
		}
	}
}

func (s *Server) drop(id string) {
	s.mu.Lock()
	c, ok := s.clients[id]
	delete(s.clients, id)
	s.mu.Unlock()

	if ok {
		_ = c.conn.Close()
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[string]*client)
	s.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.Close()
	}
}

func (c *client) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

// listen binds port, moving up to PortAttempts ports further when it is taken.
// Port 0 binds an ephemeral port.
func listen(port int) (net.Listener, error) {
	attempts := PortAttempts
	if port == 0 {
		attempts = 0
	}

	var lastErr error
	for p := port; p <= port+attempts; p++ {
		ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(p)))
		if err == nil {
			return ln, nil
		}
		lastErr = err
	}
	return nil, zerr.With(zerr.Wrap(lastErr, "no free port for reload server"), "port", port)
}
