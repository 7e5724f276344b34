// Command mcp-tcp-server runs a small MCP server on a TCP port, answering
// newline-delimited JSON-RPC 2.0 requests. It exposes two tools: echo and
// time.
//
// Usage:
//
//	mcp-tcp-server [port]
//
// The port defaults to 8080. The process exits with status 1 when the
// listener cannot be bound and 0 on graceful shutdown (SIGINT/SIGTERM).
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	mcp "github.com/felixgeelhaar/mcp-wire"
	"github.com/felixgeelhaar/mcp-wire/transport"
)

// EchoInput is the input for the echo tool.
type EchoInput struct {
	Text string `json:"text" jsonschema:"required,description=Text to echo back"`
}

// TimeInput is the (empty) input for the time tool.
type TimeInput struct{}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()

	port := 8080
	if len(os.Args) > 1 {
		p, err := strconv.Atoi(os.Args[1])
		if err != nil || p < 1 || p > 65535 {
			fmt.Fprintf(os.Stderr, "invalid port: %s\n", os.Args[1])
			os.Exit(1)
		}
		port = p
	}

	addr := fmt.Sprintf(":%d", port)

	// Bind before serving so a bad port fails fast with exit code 1.
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error().Err(err).Str("addr", addr).Msg("failed to bind listener")
		os.Exit(1)
	}

	srv := mcp.NewServer(mcp.ServerInfo{
		Name:    "mcp-tcp-server",
		Version: "1.0.0",
		Capabilities: mcp.Capabilities{
			Tools:     true,
			Resources: true,
		},
	})

	srv.Tool("echo").
		Description("Echo the input text back").
		Handler(func(ctx context.Context, input EchoInput) (string, error) {
			return "Echo: " + input.Text, nil
		})

	srv.Tool("time").
		Description("Get the current server time").
		Handler(func(ctx context.Context, input TimeInput) (string, error) {
			return time.Now().Format(time.ANSIC), nil
		})

	srv.Resource("time://{zone}").
		Name("zone time").
		Description("Current time in the named IANA zone").
		MimeType("text/plain").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			loc, err := time.LoadLocation(params["zone"])
			if err != nil {
				return nil, fmt.Errorf("unknown zone %q", params["zone"])
			}
			return &mcp.ResourceContent{
				URI:      uri,
				MimeType: "text/plain",
				Text:     time.Now().In(loc).Format(time.ANSIC),
			}, nil
		})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("addr", ln.Addr().String()).Msg("listening")

	tcpOpts := []mcp.TCPOption{
		transport.WithTCPListener(ln),
		transport.WithTCPConnObserver(func(id string, remote net.Addr) {
			log.Debug().Str("conn_id", id).Stringer("remote", remote).Msg("connection accepted")
		}),
	}
	serveOpts := []mcp.ServeOption{
		mcp.WithMiddleware(mcp.DefaultMiddleware(zeroLogger{log})...),
	}

	if err := mcp.ServeTCPWithMiddleware(ctx, srv, addr, tcpOpts, serveOpts...); err != nil {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}

	log.Info().Msg("shutdown complete")
}

// zeroLogger adapts zerolog to the mcp middleware Logger interface.
type zeroLogger struct {
	log zerolog.Logger
}

func (l zeroLogger) Info(msg string, fields ...mcp.LogField)  { emit(l.log.Info(), msg, fields) }
func (l zeroLogger) Error(msg string, fields ...mcp.LogField) { emit(l.log.Error(), msg, fields) }
func (l zeroLogger) Debug(msg string, fields ...mcp.LogField) { emit(l.log.Debug(), msg, fields) }
func (l zeroLogger) Warn(msg string, fields ...mcp.LogField)  { emit(l.log.Warn(), msg, fields) }

func emit(e *zerolog.Event, msg string, fields []mcp.LogField) {
	for _, f := range fields {
		e = e.Interface(f.Key, f.Value)
	}
	e.Msg(msg)
}
