package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	errs "github.com/Aman-CERP/treewatch/internal/errors"
	"github.com/Aman-CERP/treewatch/internal/watcher"
)

// Client talks to the daemon over its Unix socket.
type Client struct {
	socketPath string
	timeout    time.Duration
	requestID  atomic.Uint64
}

// NewClient creates a new daemon client.
func NewClient(cfg Config) *Client {
	return &Client{
		socketPath: cfg.SocketPath,
		timeout:    cfg.Timeout,
	}
}

// Connect dials the daemon. A refused or missing socket is reported as a
// retryable DaemonUnavailable error.
func (c *Client) Connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, errs.New(errs.ErrCodeDaemonUnavailable, "failed to connect to daemon", err).
			WithDetail("socket", c.socketPath).
			WithSuggestion("Start it with: treewatch daemon start")
	}
	return conn, nil
}

// IsRunning checks if the daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// WaitReady polls until the daemon answers a ping or ctx ends.
func (c *Client) WaitReady(ctx context.Context) error {
	return errs.Retry(ctx, errs.DefaultRetryConfig(), func() error {
		return c.Ping(ctx)
	})
}

// Ping checks if the daemon is responsive.
func (c *Client) Ping(ctx context.Context) error {
	var res PingResult
	return c.call(ctx, MethodPing, nil, &res)
}

// Status retrieves daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var status StatusResult
	if err := c.call(ctx, MethodStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// StartWatch asks the daemon to watch path.
func (c *Client) StartWatch(ctx context.Context, path string) (*StartResult, error) {
	var res StartResult
	if err := c.call(ctx, MethodWatchStart, WatchParams{Path: path}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// StopWatch asks the daemon to stop watching path.
func (c *Client) StopWatch(ctx context.Context, path string) error {
	var res StopResult
	return c.call(ctx, MethodWatchStop, WatchParams{Path: path}, &res)
}

// ListWatches returns the daemon's live watches.
func (c *Client) ListWatches(ctx context.Context) ([]watcher.WatchInfo, error) {
	var res []watcher.WatchInfo
	if err := c.call(ctx, MethodWatchList, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Subscribe streams notifications for root (all roots when empty) to fn
// until ctx ends, fn returns an error, or the daemon closes the stream.
// A nil return means ctx ended or the daemon shut down.
func (c *Client) Subscribe(ctx context.Context, root string, fn func(watcher.Notification) error) error {
	conn, err := c.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := conn.SetDeadline(c.deadline(ctx)); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}
	if err := c.send(conn, MethodSubscribe, SubscribeParams{Root: root}); err != nil {
		return err
	}

	decoder := json.NewDecoder(conn)

	var ack SubscribeAck
	if err := c.receive(decoder, &ack); err != nil {
		return err
	}
	_ = conn.SetDeadline(time.Time{})

	for {
		var n watcher.Notification
		if err := decoder.Decode(&n); err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("subscription stream: %w", err)
		}
		if err := fn(n); err != nil {
			return err
		}
	}
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	conn, err := c.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SetDeadline(c.deadline(ctx)); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}
	if err := c.send(conn, method, params); err != nil {
		return err
	}
	return c.receive(json.NewDecoder(conn), result)
}

func (c *Client) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return deadline
}

func (c *Client) send(conn net.Conn, method string, params any) error {
	req := Request{JSONRPC: "2.0", Method: method, ID: c.nextID()}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to encode params: %w", err)
		}
		req.Params = data
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return nil
}

func (c *Client) receive(decoder *json.Decoder, result any) error {
	var resp Response
	if err := decoder.Decode(&resp); err != nil {
		var ne net.Error
		if errs.As(err, &ne) && ne.Timeout() {
			return errs.New(errs.ErrCodeDaemonTimeout, "daemon did not respond in time", err)
		}
		return fmt.Errorf("failed to receive response: %w", err)
	}
	if resp.Error != nil {
		return resp.Error.Err()
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

func (c *Client) nextID() string {
	return fmt.Sprintf("req-%d", c.requestID.Add(1))
}
