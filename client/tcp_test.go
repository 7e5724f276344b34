package client_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/mcp-wire/client"
	"github.com/felixgeelhaar/mcp-wire/protocol"
)

// startEchoServer accepts connections and answers every request that
// carries an id with its method name as the result. Notifications are
// recorded but never answered.
func startEchoServer(t *testing.T) (string, *sync.Map, func()) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	var notified sync.Map
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer conn.Close()
				scanner := bufio.NewScanner(conn)
				for scanner.Scan() {
					var req protocol.Request
					if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
						continue
					}
					if req.IsNotification() {
						notified.Store(req.Method, true)
						continue
					}
					resp := protocol.NewResponse(req.ID, req.Method)
					data, _ := json.Marshal(resp)
					conn.Write(append(data, '\n'))
				}
			}()
		}
	}()

	stop := func() {
		ln.Close()
		wg.Wait()
	}

	return ln.Addr().String(), &notified, stop
}

func TestDialTCP(t *testing.T) {
	t.Run("fails for unreachable address", func(t *testing.T) {
		if _, err := client.DialTCP("127.0.0.1:1"); err == nil {
			t.Fatal("expected dial error")
		}
	})

	t.Run("round-trips a request", func(t *testing.T) {
		addr, _, stop := startEchoServer(t)
		defer stop()

		tr, err := client.DialTCP(addr)
		if err != nil {
			t.Fatalf("DialTCP() error = %v", err)
		}
		defer tr.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		req := &protocol.Request{
			JSONRPC: "2.0",
			ID:      json.RawMessage(`1`),
			Method:  "hello",
		}

		resp, err := tr.Send(ctx, req)
		if err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		if resp.Result != "hello" {
			t.Errorf("Result = %v, want %q", resp.Result, "hello")
		}
	})

	t.Run("correlates concurrent requests", func(t *testing.T) {
		addr, _, stop := startEchoServer(t)
		defer stop()

		tr, err := client.DialTCP(addr)
		if err != nil {
			t.Fatalf("DialTCP() error = %v", err)
		}
		defer tr.Close()

		var wg sync.WaitGroup
		for i := 1; i <= 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()

				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				id, _ := json.Marshal(i)
				method := "method-" + strings.Repeat("x", i)
				resp, err := tr.Send(ctx, &protocol.Request{
					JSONRPC: "2.0",
					ID:      id,
					Method:  method,
				})
				if err != nil {
					t.Errorf("Send(%d) error = %v", i, err)
					return
				}
				if resp.Result != method {
					t.Errorf("Send(%d) result = %v, want %q", i, resp.Result, method)
				}
			}(i)
		}
		wg.Wait()
	})

	t.Run("sends notifications without waiting", func(t *testing.T) {
		addr, notified, stop := startEchoServer(t)
		defer stop()

		tr, err := client.DialTCP(addr)
		if err != nil {
			t.Fatalf("DialTCP() error = %v", err)
		}
		defer tr.Close()

		if err := tr.Notify(context.Background(), &protocol.Request{
			JSONRPC: "2.0",
			Method:  "initialized",
		}); err != nil {
			t.Fatalf("Notify() error = %v", err)
		}

		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if _, ok := notified.Load("initialized"); ok {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		t.Error("server never saw the notification")
	})

	t.Run("send after close fails", func(t *testing.T) {
		addr, _, stop := startEchoServer(t)
		defer stop()

		tr, err := client.DialTCP(addr)
		if err != nil {
			t.Fatalf("DialTCP() error = %v", err)
		}
		if err := tr.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}

		_, err = tr.Send(context.Background(), &protocol.Request{
			JSONRPC: "2.0",
			ID:      json.RawMessage(`1`),
			Method:  "late",
		})
		if err == nil {
			t.Error("expected error sending on closed transport")
		}
	})
}

func TestClientOverTCP(t *testing.T) {
	addr, _, stop := startEchoServer(t)
	defer stop()

	tr, err := client.DialTCP(addr)
	if err != nil {
		t.Fatalf("DialTCP() error = %v", err)
	}
	defer tr.Close()

	c := client.New(tr, client.WithTimeout(5*time.Second))

	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
