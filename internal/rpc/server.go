// Package rpc exposes the daemon over newline-delimited JSON-RPC 2.0 on a
// bidirectional byte stream (stdin/stdout in production). Diagnostics go
// to the zap side channel, never to the protocol stream.
package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/matheus3301/imsg/internal/bus"
	"go.uber.org/zap"
)

// Handler handles one JSON-RPC method call.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// JSON-RPC error codes used on this stream.
const (
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

// maxLineBytes bounds one request line.
const maxLineBytes = 1 << 20

// invalidParams marks a handler failure caused by malformed params, mapping
// it to the invalid-params code instead of the generic server error.
type invalidParams struct {
	err error
}

func (e invalidParams) Error() string { return e.err.Error() }
func (e invalidParams) Unwrap() error { return e.err }

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// Server reads requests line by line, dispatches them against a method
// table, and pushes bus events as unsolicited notifications. One response
// per id-carrying request; id-less lines are dropped.
type Server struct {
	handlers map[string]Handler
	bus      *bus.Bus
	logger   *zap.Logger

	writeMu sync.Mutex
	out     *bufio.Writer
}

// NewServer creates an RPC server with an empty method table.
func NewServer(b *bus.Bus, logger *zap.Logger) *Server {
	return &Server{
		handlers: make(map[string]Handler),
		bus:      b,
		logger:   logger,
	}
}

// Register adds a handler for a method.
func (s *Server) Register(method string, h Handler) {
	s.handlers[method] = h
}

// Serve processes the stream until it closes or ctx is cancelled. The
// notification pump stops before Serve returns, so nothing is emitted
// after shutdown begins.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)

	s.out = bufio.NewWriter(w)
	stopPump := s.startPump(ctx)
	// Cancellation must reach the pump before we wait on it.
	defer stopPump()
	defer cancel()

	reader := bufio.NewReaderSize(r, 64*1024)
	for {
		line, tooLong, err := readLine(reader)
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		if tooLong {
			// Protocol fault: oversized framing is dropped, not fatal.
			s.logger.Warn("oversized request line dropped")
			continue
		}
		if len(line) == 0 {
			continue
		}
		go s.handleLine(ctx, line)
	}
}

// readLine reads one newline-terminated line, reporting tooLong when the
// line exceeds maxLineBytes. The oversized remainder is consumed up to the
// next newline so the stream stays framed.
func readLine(r *bufio.Reader) ([]byte, bool, error) {
	var line []byte
	var tooLong bool
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			line = append(line, chunk...)
			if len(line) > maxLineBytes {
				tooLong = true
				line = nil
			}
		}
		switch err {
		case nil:
			line = bytes.TrimSuffix(line, []byte{'\n'})
			return line, tooLong, nil
		case bufio.ErrBufferFull:
			continue
		case io.EOF:
			if len(line) > 0 || tooLong {
				return line, tooLong, nil
			}
			return nil, false, io.EOF
		default:
			return nil, false, err
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte) {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		// Protocol fault: no id to respond to, log and drop.
		s.logger.Warn("malformed request line", zap.Error(err))
		return
	}
	if len(req.ID) == 0 || string(req.ID) == "null" {
		s.logger.Warn("request without id dropped", zap.String("method", req.Method))
		return
	}

	h, ok := s.handlers[req.Method]
	if !ok {
		s.writeResponse(response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &rpcError{Code: codeMethodNotFound, Message: "method not found: " + req.Method},
		})
		return
	}

	result, err := h(ctx, req.Params)
	if err != nil {
		code := codeServerError
		var pe invalidParams
		if errors.As(err, &pe) {
			code = codeInvalidParams
		}
		s.writeResponse(response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &rpcError{Code: code, Message: err.Error()},
		})
		return
	}
	s.writeResponse(response{JSONRPC: "2.0", ID: req.ID, Result: result})
}

// startPump forwards poll events to the stream as notifications. Returns
// a stop function that unsubscribes and waits for the pump to exit.
func (s *Server) startPump(ctx context.Context) func() {
	ch, unsub := s.bus.Subscribe("poll.", 256)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case evt := <-ch:
				switch evt.Kind {
				case bus.KindPollMessage:
					s.writeNotification("message", evt.Payload)
				case bus.KindPollError:
					s.writeNotification("error", map[string]any{
						"message": evt.Payload,
					})
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		unsub()
		<-done
	}
}

func (s *Server) writeResponse(resp response) {
	s.writeLine(resp)
}

func (s *Server) writeNotification(method string, params any) {
	s.writeLine(notification{JSONRPC: "2.0", Method: method, Params: params})
}

// writeLine serializes one protocol message and a trailing newline under
// the write lock, so responses and notifications never interleave.
func (s *Server) writeLine(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("marshal protocol message", zap.Error(err))
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(data); err != nil {
		s.logger.Warn("write protocol message", zap.Error(err))
		return
	}
	if err := s.out.WriteByte('\n'); err != nil {
		return
	}
	if err := s.out.Flush(); err != nil {
		s.logger.Warn("flush protocol stream", zap.Error(err))
	}
}
