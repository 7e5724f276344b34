package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/felixgeelhaar/mcp-wire/protocol"
)

func TestRouter_Register(t *testing.T) {
	t.Run("routes to registered handler", func(t *testing.T) {
		r := NewRouter()
		r.Register("ping", func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			return protocol.NewResponse(req.ID, map[string]any{}), nil
		})
		r.Freeze()

		req := &protocol.Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "ping"}
		resp, err := r.HandleRequest(context.Background(), req)
		if err != nil {
			t.Fatalf("HandleRequest() error = %v", err)
		}
		if resp == nil {
			t.Fatal("expected response")
		}
	})

	t.Run("panics on duplicate method", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic on duplicate registration")
			}
		}()

		r := NewRouter()
		h := func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			return nil, nil
		}
		r.Register("ping", h)
		r.Register("ping", h)
	})

	t.Run("panics on register after freeze", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic on post-freeze registration")
			}
		}()

		r := NewRouter()
		r.Freeze()
		r.Register("late", func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			return nil, nil
		})
	})
}

func TestRouter_UnknownMethod(t *testing.T) {
	r := NewRouter()
	r.Register("known", func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
		return protocol.NewResponse(req.ID, "ok"), nil
	})
	r.Freeze()

	req := &protocol.Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "nope"}
	_, err := r.HandleRequest(context.Background(), req)

	var mcpErr *protocol.Error
	if !errors.As(err, &mcpErr) {
		t.Fatalf("expected *protocol.Error, got %v", err)
	}
	if mcpErr.Code != protocol.CodeMethodNotFound {
		t.Errorf("Code = %d, want %d", mcpErr.Code, protocol.CodeMethodNotFound)
	}
	if mcpErr.Message != "method not found: nope" {
		t.Errorf("Message = %q, want it to name the method", mcpErr.Message)
	}
}

func TestRouter_Methods(t *testing.T) {
	r := NewRouter()
	h := func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
		return nil, nil
	}
	r.Register("tools/list", h)
	r.Register("initialize", h)
	r.Register("ping", h)

	got := r.Methods()
	want := []string{"initialize", "ping", "tools/list"}

	if len(got) != len(want) {
		t.Fatalf("Methods() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Methods()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
