package daemon

import (
	"encoding/json"
	"fmt"

	errs "github.com/Aman-CERP/treewatch/internal/errors"
	"github.com/Aman-CERP/treewatch/internal/notify"
	"github.com/Aman-CERP/treewatch/internal/telemetry"
	"github.com/Aman-CERP/treewatch/internal/watcher"
)

// JSON-RPC 2.0 method names.
const (
	MethodPing       = "ping"
	MethodStatus     = "status"
	MethodWatchStart = "watch.start"
	MethodWatchStop  = "watch.stop"
	MethodWatchList  = "watch.list"
	MethodSubscribe  = "subscribe"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// ErrCodeWatchError marks errors from the watch registry. Their structured
// code travels in Error.Data.
const ErrCodeWatchError = -32001

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      string          `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      string          `json:"id"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData carries a structured treewatch error across the socket.
type ErrorData struct {
	Code       string            `json:"code"`
	Suggestion string            `json:"suggestion,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// Err rebuilds the error on the client side. Watch errors come back as
// *errors.Error with their original code.
func (e *Error) Err() error {
	if e.Data != nil && e.Data.Code != "" {
		out := errs.New(e.Data.Code, e.Message, nil)
		out.Suggestion = e.Data.Suggestion
		out.Details = e.Data.Details
		return out
	}
	return fmt.Errorf("daemon error %d: %s", e.Code, e.Message)
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return NewErrorResponse(id, ErrCodeInternalError, "failed to encode result")
	}
	return Response{JSONRPC: "2.0", Result: data, ID: id}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	}
}

// errorResponse maps err to a response, preserving structured codes.
func errorResponse(id string, err error) Response {
	var e *errs.Error
	if !errs.As(err, &e) {
		return NewErrorResponse(id, ErrCodeInternalError, err.Error())
	}
	code := ErrCodeWatchError
	if e.Code == errs.ErrCodeInvalidInput || e.Code == errs.ErrCodeInvalidPath {
		code = ErrCodeInvalidParams
	}
	return Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: e.Message,
			Data:    &ErrorData{Code: e.Code, Suggestion: e.Suggestion, Details: e.Details},
		},
		ID: id,
	}
}

// WatchParams are the parameters for watch.start and watch.stop.
type WatchParams struct {
	Path string `json:"path"`
}

// Validate checks that required fields are present.
func (p WatchParams) Validate() error {
	if p.Path == "" {
		return errs.ValidationError("path is required", nil)
	}
	return nil
}

// SubscribeParams are the parameters for subscribe. An empty Root receives
// notifications for every watch.
type SubscribeParams struct {
	Root string `json:"root,omitempty"`
}

// StartResult is the response to watch.start.
type StartResult struct {
	ID   watcher.WatchID `json:"id"`
	Root string          `json:"root"`
}

// StopResult is the response to watch.stop.
type StopResult struct {
	Stopped bool `json:"stopped"`
}

// SubscribeAck is the first line of a subscribe stream.
type SubscribeAck struct {
	Subscribed bool   `json:"subscribed"`
	Root       string `json:"root,omitempty"`
}

// StatusResult contains daemon status information.
type StatusResult struct {
	Running bool               `json:"running"`
	PID     int                `json:"pid"`
	Uptime  string             `json:"uptime"`
	Watches int                `json:"watches"`
	Bus     notify.Stats       `json:"bus"`
	Metrics telemetry.Snapshot `json:"metrics"`
	Journal string             `json:"journal,omitempty"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}

func decodeParams(req Request, v any) error {
	if len(req.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params, v); err != nil {
		return errs.ValidationError("invalid params: "+err.Error(), err)
	}
	return nil
}
