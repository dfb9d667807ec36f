package fastagi

import (
	"context"
	"net"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// defaultAddr mirrors the teacher's Listen default.
const defaultAddr = "localhost:4573"

// Server accepts FastAGI connections and drives each through the
// sequencing state machine of spec.md §4.C/§4.H up to handler
// dispatch. A connection failure in one task never affects others
// (spec.md §5).
type Server struct {
	// Router selects the Handler for each connection's handshake URI.
	// It must not be mutated once the server starts serving.
	Router *Router

	// Logger receives structured per-connection tracing. A nil Logger
	// is treated as a no-op logger.
	Logger *zap.Logger

	mu        sync.Mutex
	listener  net.Listener
	wg        sync.WaitGroup
	shutdown  chan struct{}
	closeOnce sync.Once
}

// NewServer returns a Server dispatching through router.
func NewServer(router *Router) *Server {
	return &Server{
		Router:   router,
		shutdown: make(chan struct{}),
	}
}

func (s *Server) logger() *zap.Logger {
	if s.Logger == nil {
		return nopLogger()
	}
	return s.Logger
}

// ListenAndServe binds addr (defaulting to "localhost:4573" when
// empty, matching the teacher's Listen) and serves FastAGI connections
// until Shutdown is called or a fatal accept error occurs.
func (s *Server) ListenAndServe(addr string) error {
	if addr == "" {
		addr = defaultAddr
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "binding fastagi listener")
	}
	return s.Serve(l)
}

// ListenAndServe is the package-level convenience form: build a Server
// around router and serve addr.
func ListenAndServe(addr string, router *Router) error {
	return NewServer(router).ListenAndServe(addr)
}

// Serve accepts connections from l, dispatching each to its own
// goroutine, until Shutdown is called or Accept returns a fatal error.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	s.logger().Info("fastagi server listening", zap.String("addr", l.Addr().String()))

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return nil
			default:
			}
			return errors.Wrap(err, "accepting connection")
		}

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

// Shutdown stops accepting new connections and waits for in-flight
// ones to finish, or for ctx to be done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.shutdown) })

	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l != nil {
		_ = l.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// serveConn drives one accepted connection through handshake, route
// dispatch, and handler invocation, then closes the socket regardless
// of how the handler returned. A panic inside the handler is recovered
// so it cannot take down the accept loop or any other connection.
func (s *Server) serveConn(netConn net.Conn) {
	defer s.wg.Done()

	logger := s.logger()
	remote := netConn.RemoteAddr().String()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("panic handling fastagi connection",
				zap.Any("panic", rec), zap.String("remote", remote))
		}
	}()

	conn := NewConnection(netConn, logger)

	var handlerErr error
	defer func() {
		closeErr := conn.Close()
		if err := multierr.Append(handlerErr, closeErr); err != nil {
			logger.Debug("fastagi connection closed", zap.Error(err), zap.String("remote", remote))
		}
	}()

	msg, err := conn.ReadMessage()
	if err != nil {
		logger.Warn("fastagi handshake failed", zap.Error(err), zap.String("remote", remote))
		handlerErr = err
		return
	}
	if _, ok := msg.(NetworkStart); !ok {
		logger.Warn("fastagi handshake: expected NetworkStart", zap.String("remote", remote))
		handlerErr = &NotAnAGIMessageError{Line: "(handshake)"}
		return
	}

	msg, err = conn.ReadMessage()
	if err != nil {
		logger.Warn("fastagi variable dump failed", zap.Error(err), zap.String("remote", remote))
		handlerErr = err
		return
	}
	dump, ok := msg.(*VariableDump)
	if !ok {
		logger.Warn("fastagi handshake: expected VariableDump", zap.String("remote", remote))
		handlerErr = &NotAVariableDumpError{Reason: "handshake out of sequence"}
		return
	}

	logger.Debug("fastagi handshake complete",
		zap.String("uri", dump.RequestURI.String()), zap.String("remote", remote))

	handler, params, found := s.Router.lookup(dump.RequestURI.Path)
	if !found {
		logger.Info("fastagi: no route", zap.String("path", dump.RequestURI.Path), zap.String("remote", remote))
		conn.NotifyBestEffort(newCommand("VERBOSE", "no route for "+dump.RequestURI.Path, "1"))
		handlerErr = ErrNoRoute
		return
	}

	req := newRequest(dump, params)

	if err := handler.Handle(context.Background(), conn, req); err != nil {
		logger.Warn("fastagi handler returned error",
			zap.Error(err), zap.String("path", dump.RequestURI.Path), zap.String("remote", remote))
		handlerErr = err
		return
	}
}
