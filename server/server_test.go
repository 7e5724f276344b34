package server

import (
	"testing"
)

func TestNewServer(t *testing.T) {
	t.Run("creates server with info", func(t *testing.T) {
		srv := New(Info{
			Name:    "test-server",
			Version: "1.0.0",
		})

		if srv == nil {
			t.Fatal("expected server to be created")
		}

		info := srv.Info()
		if info.Name != "test-server" {
			t.Errorf("Name = %q, want %q", info.Name, "test-server")
		}
		if info.Version != "1.0.0" {
			t.Errorf("Version = %q, want %q", info.Version, "1.0.0")
		}
	})

	t.Run("creates server with capabilities", func(t *testing.T) {
		srv := New(Info{
			Name:    "test-server",
			Version: "1.0.0",
			Capabilities: Capabilities{
				Tools:     true,
				Resources: true,
			},
		})

		caps := srv.Info().Capabilities
		if !caps.Tools {
			t.Error("expected Tools capability to be true")
		}
		if !caps.Resources {
			t.Error("expected Resources capability to be true")
		}
	})

	t.Run("applies functional options", func(t *testing.T) {
		called := false
		opt := func(s *Server) {
			called = true
		}

		New(Info{Name: "test", Version: "1.0.0"}, opt)

		if !called {
			t.Error("expected option to be called")
		}
	})
}

func TestServer_Tool(t *testing.T) {
	t.Run("returns tool builder", func(t *testing.T) {
		srv := New(Info{Name: "test", Version: "1.0.0"})

		builder := srv.Tool("search")

		if builder == nil {
			t.Fatal("expected builder to be created")
		}
	})

	t.Run("registers tool with server", func(t *testing.T) {
		srv := New(Info{Name: "test", Version: "1.0.0"})

		type SearchInput struct {
			Query string `json:"query"`
		}

		srv.Tool("search").
			Description("Search for items").
			Handler(func(input SearchInput) (string, error) {
				return "result", nil
			})

		tools := srv.Tools()
		if len(tools) != 1 {
			t.Fatalf("expected 1 tool, got %d", len(tools))
		}

		if tools[0].Name != "search" {
			t.Errorf("tool name = %q, want %q", tools[0].Name, "search")
		}
		if tools[0].Description != "Search for items" {
			t.Errorf("tool description = %q, want %q", tools[0].Description, "Search for items")
		}
	})

	t.Run("looks up registered tools by name", func(t *testing.T) {
		srv := New(Info{Name: "test", Version: "1.0.0"})

		srv.Tool("echo").
			Description("Echo input").
			Handler(func(input struct {
				Text string `json:"text"`
			}) (string, error) {
				return "Echo: " + input.Text, nil
			})

		tool, ok := srv.GetTool("echo")
		if !ok {
			t.Fatal("expected tool to be found")
		}
		if tool.Name() != "echo" {
			t.Errorf("Name() = %q, want %q", tool.Name(), "echo")
		}

		if _, ok := srv.GetTool("missing"); ok {
			t.Error("expected missing tool lookup to fail")
		}
	})
}

func TestServer_Manifest(t *testing.T) {
	srv := New(Info{
		Name:    "manifest-test",
		Version: "2.0.0",
		Capabilities: Capabilities{
			Tools: true,
		},
	})

	manifest := srv.Manifest()

	if manifest.Name != "manifest-test" {
		t.Errorf("Name = %q, want %q", manifest.Name, "manifest-test")
	}
	if manifest.Version != "2.0.0" {
		t.Errorf("Version = %q, want %q", manifest.Version, "2.0.0")
	}
	if manifest.ProtocolVersion == "" {
		t.Error("expected ProtocolVersion to be set")
	}
	if !manifest.Capabilities.Tools {
		t.Error("expected Tools capability to be true")
	}
}
