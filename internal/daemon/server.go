package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Aman-CERP/treewatch/internal/watcher"
)

// RequestHandler serves the watch methods.
type RequestHandler interface {
	StartWatch(path string) (StartResult, error)
	StopWatch(path string) error
	ListWatches() []watcher.WatchInfo
	Subscribe(root string) (<-chan watcher.Notification, func())
	Status() StatusResult
}

// Server listens on a Unix socket and handles one request per connection.
// A subscribe request keeps its connection open and streams notifications.
type Server struct {
	socketPath     string
	requestTimeout time.Duration
	listener       net.Listener
	handler        RequestHandler
	logger         *slog.Logger

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a new server that listens on the given socket path.
func NewServer(socketPath string, handler RequestHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath:     socketPath,
		requestTimeout: 30 * time.Second,
		handler:        handler,
		logger:         logger.With(slog.String("component", "server")),
	}
}

// Listen binds the socket, replacing a stale socket file.
func (s *Server) Listen() error {
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	s.listener = listener
	return nil
}

// Serve accepts connections until ctx is cancelled, then waits for open
// connections to finish. It binds the socket first if Listen was not called.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	listener := s.listener
	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	s.logger.Info("server listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept error", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	return ctx.Err()
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(s.requestTimeout)); err != nil {
		s.logger.Warn("failed to set connection deadline", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		_ = encoder.Encode(NewErrorResponse(req.ID, ErrCodeInvalidRequest, "invalid request"))
		return
	}

	if req.Method == MethodSubscribe {
		s.serveSubscription(ctx, conn, encoder, req)
		return
	}
	_ = encoder.Encode(s.handleRequest(req))
}

func (s *Server) handleRequest(req Request) Response {
	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})

	case MethodStatus:
		return NewSuccessResponse(req.ID, s.handler.Status())

	case MethodWatchStart:
		var p WatchParams
		if err := s.watchParams(req, &p); err != nil {
			return errorResponse(req.ID, err)
		}
		res, err := s.handler.StartWatch(p.Path)
		if err != nil {
			return errorResponse(req.ID, err)
		}
		return NewSuccessResponse(req.ID, res)

	case MethodWatchStop:
		var p WatchParams
		if err := s.watchParams(req, &p); err != nil {
			return errorResponse(req.ID, err)
		}
		if err := s.handler.StopWatch(p.Path); err != nil {
			return errorResponse(req.ID, err)
		}
		return NewSuccessResponse(req.ID, StopResult{Stopped: true})

	case MethodWatchList:
		watches := s.handler.ListWatches()
		if watches == nil {
			watches = []watcher.WatchInfo{}
		}
		return NewSuccessResponse(req.ID, watches)

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (s *Server) watchParams(req Request, p *WatchParams) error {
	if err := decodeParams(req, p); err != nil {
		return err
	}
	return p.Validate()
}

// serveSubscription acks the request, then writes one notification per line
// until the client goes away, the bus closes the channel, or ctx ends.
func (s *Server) serveSubscription(ctx context.Context, conn net.Conn, encoder *json.Encoder, req Request) {
	var p SubscribeParams
	if err := decodeParams(req, &p); err != nil {
		_ = encoder.Encode(errorResponse(req.ID, err))
		return
	}

	ch, cancel := s.handler.Subscribe(p.Root)
	defer cancel()

	if err := encoder.Encode(NewSuccessResponse(req.ID, SubscribeAck{Subscribed: true, Root: p.Root})); err != nil {
		return
	}
	_ = conn.SetDeadline(time.Time{})

	// The client never writes after the request, so a read returning means
	// it hung up.
	gone := make(chan struct{})
	go func() {
		_, _ = conn.Read(make([]byte, 1))
		close(gone)
	}()

	s.logger.Debug("subscriber attached", slog.String("root", p.Root))
	defer s.logger.Debug("subscriber detached", slog.String("root", p.Root))

	for {
		select {
		case <-ctx.Done():
			return
		case <-gone:
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(s.requestTimeout))
			if err := encoder.Encode(n); err != nil {
				return
			}
		}
	}
}

// Close stops accepting connections.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
