package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/imsg/internal/bus"
	"go.uber.org/zap"
)

// harness wires a server to in-memory pipes and exposes a line-oriented
// client view of the stream.
type harness struct {
	t      *testing.T
	b      *bus.Bus
	srv    *Server
	in     io.WriteCloser
	lines  *bufio.Scanner
	served chan error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := bus.New()
	srv := NewServer(b, zap.NewNop())

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	h := &harness{
		t:      t,
		b:      b,
		srv:    srv,
		in:     inW,
		lines:  bufio.NewScanner(outR),
		served: make(chan error, 1),
	}
	go func() { h.served <- srv.Serve(context.Background(), inR, outW) }()
	t.Cleanup(func() { _ = inW.Close() })
	return h
}

func (h *harness) send(line string) {
	h.t.Helper()
	if _, err := io.WriteString(h.in, line+"\n"); err != nil {
		h.t.Fatal(err)
	}
}

func (h *harness) readLine() map[string]any {
	h.t.Helper()
	lineCh := make(chan string, 1)
	go func() {
		if h.lines.Scan() {
			lineCh <- h.lines.Text()
		}
	}()
	select {
	case line := <-lineCh:
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			h.t.Fatalf("bad protocol line %q: %v", line, err)
		}
		return m
	case <-time.After(2 * time.Second):
		h.t.Fatal("timeout reading protocol line")
		return nil
	}
}

func TestRequestResponse(t *testing.T) {
	h := newHarness(t)
	h.srv.Register("echo", func(_ context.Context, params json.RawMessage) (any, error) {
		var p map[string]any
		_ = json.Unmarshal(params, &p)
		return p, nil
	})

	h.send(`{"jsonrpc":"2.0","id":1,"method":"echo","params":{"x":"y"}}`)

	resp := h.readLine()
	if resp["id"] != float64(1) {
		t.Errorf("id = %v", resp["id"])
	}
	result, ok := resp["result"].(map[string]any)
	if !ok || result["x"] != "y" {
		t.Errorf("result = %v", resp["result"])
	}
	if _, present := resp["error"]; present {
		t.Errorf("unexpected error member: %v", resp["error"])
	}
}

func TestHandlerErrorResponse(t *testing.T) {
	h := newHarness(t)
	h.srv.Register("boom", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("it broke")
	})

	h.send(`{"jsonrpc":"2.0","id":"a","method":"boom"}`)

	resp := h.readLine()
	errObj, ok := resp["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error member: %v", resp)
	}
	if errObj["code"] != float64(codeServerError) || errObj["message"] != "it broke" {
		t.Errorf("error = %v", errObj)
	}
}

func TestInvalidParamsErrorCode(t *testing.T) {
	h := newHarness(t)
	h.srv.Register("strict", func(_ context.Context, params json.RawMessage) (any, error) {
		var p struct {
			N int `json:"n"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, invalidParams{err}
		}
		return p.N, nil
	})

	h.send(`{"jsonrpc":"2.0","id":4,"method":"strict","params":{"n":"not a number"}}`)

	resp := h.readLine()
	errObj, ok := resp["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error member: %v", resp)
	}
	if errObj["code"] != float64(codeInvalidParams) {
		t.Errorf("code = %v, want %d", errObj["code"], codeInvalidParams)
	}
}

func TestOversizedLineDroppedStreamContinues(t *testing.T) {
	h := newHarness(t)
	h.srv.Register("echo", func(_ context.Context, params json.RawMessage) (any, error) {
		var p map[string]any
		_ = json.Unmarshal(params, &p)
		return p, nil
	})

	h.send(strings.Repeat("x", maxLineBytes+1))
	h.send(`{"jsonrpc":"2.0","id":5,"method":"echo","params":{"ok":true}}`)

	resp := h.readLine()
	if resp["id"] != float64(5) {
		t.Errorf("id = %v, want 5", resp["id"])
	}
	result, ok := resp["result"].(map[string]any)
	if !ok || result["ok"] != true {
		t.Errorf("result = %v", resp["result"])
	}
}

func TestMethodNotFound(t *testing.T) {
	h := newHarness(t)

	h.send(`{"jsonrpc":"2.0","id":7,"method":"nope"}`)

	resp := h.readLine()
	errObj, ok := resp["error"].(map[string]any)
	if !ok || errObj["code"] != float64(codeMethodNotFound) {
		t.Errorf("response = %v, want method-not-found error", resp)
	}
}

func TestIdLessRequestDropped(t *testing.T) {
	h := newHarness(t)
	calls := 0
	h.srv.Register("ping", func(context.Context, json.RawMessage) (any, error) {
		calls++
		return "pong", nil
	})

	h.send(`{"jsonrpc":"2.0","method":"ping"}`)
	h.send(`{"jsonrpc":"2.0","id":null,"method":"ping"}`)
	h.send(`{"jsonrpc":"2.0","id":2,"method":"ping"}`)

	resp := h.readLine()
	if resp["id"] != float64(2) {
		t.Errorf("first response id = %v, want 2 (id-less dropped silently)", resp["id"])
	}
}

func TestMalformedLineDropped(t *testing.T) {
	h := newHarness(t)
	h.srv.Register("ping", func(context.Context, json.RawMessage) (any, error) {
		return "pong", nil
	})

	h.send(`{this is not json`)
	h.send(`{"jsonrpc":"2.0","id":3,"method":"ping"}`)

	resp := h.readLine()
	if resp["id"] != float64(3) {
		t.Errorf("response id = %v, want 3", resp["id"])
	}
}

func TestMessageNotification(t *testing.T) {
	h := newHarness(t)
	time.Sleep(20 * time.Millisecond) // let the pump subscribe

	h.b.Emit(bus.KindPollMessage, map[string]any{"id": "42", "text": "hi"})

	n := h.readLine()
	if n["method"] != "message" {
		t.Errorf("method = %v, want message", n["method"])
	}
	if _, present := n["id"]; present {
		t.Error("notification carries an id")
	}
	params, ok := n["params"].(map[string]any)
	if !ok || params["text"] != "hi" {
		t.Errorf("params = %v", n["params"])
	}
}

func TestErrorNotification(t *testing.T) {
	h := newHarness(t)
	time.Sleep(20 * time.Millisecond)

	h.b.Emit(bus.KindPollError, "poll query failed: locked")

	n := h.readLine()
	if n["method"] != "error" {
		t.Errorf("method = %v, want error", n["method"])
	}
	params, _ := n["params"].(map[string]any)
	if params["message"] != "poll query failed: locked" {
		t.Errorf("params = %v", n["params"])
	}
}

func TestServeReturnsOnStreamClose(t *testing.T) {
	h := newHarness(t)
	_ = h.in.Close()

	select {
	case err := <-h.served:
		if err != nil {
			t.Errorf("Serve() = %v, want nil on clean close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after stream close")
	}
}
