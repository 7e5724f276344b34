// Command mcp-tcp-client exercises an MCP server over TCP: it performs the
// initialize handshake, pings, lists tools and resources, and calls the
// echo and time tools.
//
// Usage:
//
//	mcp-tcp-client [-host HOST] [-port PORT]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/felixgeelhaar/mcp-wire/client"
)

func main() {
	host := flag.String("host", "localhost", "server host")
	port := flag.Int("port", 8080, "server port")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()

	addr := fmt.Sprintf("%s:%d", *host, *port)

	t, err := client.DialTCP(addr)
	if err != nil {
		log.Error().Err(err).Str("addr", addr).Msg("connect failed")
		os.Exit(1)
	}

	c := client.New(t,
		client.WithClientInfo("mcp-tcp-client", "1.0.0"),
		client.WithTimeout(10*time.Second),
	)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	info, err := c.Initialize(ctx)
	if err != nil {
		log.Error().Err(err).Msg("initialize failed")
		os.Exit(1)
	}
	fmt.Printf("connected to %s %s (protocol %s)\n", info.Name, info.Version, info.ProtocolVersion)

	if err := c.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("ping failed")
		os.Exit(1)
	}
	fmt.Println("ping ok")

	tools, err := c.ListTools(ctx)
	if err != nil {
		log.Error().Err(err).Msg("tools/list failed")
		os.Exit(1)
	}
	fmt.Printf("%d tools:\n", len(tools))
	for _, tool := range tools {
		fmt.Printf("  %s - %s\n", tool.Name, tool.Description)
	}

	if result, err := c.CallTool(ctx, "echo", map[string]any{"text": "hello"}); err == nil {
		fmt.Printf("echo: %s\n", result.Text())
	}
	if result, err := c.CallTool(ctx, "time", nil); err == nil {
		fmt.Printf("time: %s\n", result.Text())
	}

	resources, err := c.ListResources(ctx)
	if err != nil {
		log.Error().Err(err).Msg("resources/list failed")
		os.Exit(1)
	}
	fmt.Printf("%d resources\n", len(resources))

	if content, err := c.ReadResource(ctx, "time://UTC"); err == nil {
		fmt.Printf("utc time: %s\n", content.Text)
	}
}
