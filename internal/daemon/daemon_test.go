package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/fx"

	"github.com/parleychat/parley/internal/config"
)

func TestModuleGraph(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	cfgPath := filepath.Join(tmp, "config.toml")
	cfg := &config.Config{
		ServerURL: "http://127.0.0.1:9990",
		ViewerID:  "viewer-1",
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		t.Fatal(err)
	}

	err := fx.ValidateApp(Module(Params{SessionName: "test", ConfigPath: cfgPath}))
	if err != nil {
		t.Fatalf("dependency graph invalid: %v", err)
	}
}

func TestProvideConfigRejectsIncomplete(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.toml")
	if err := os.WriteFile(cfgPath, []byte("page_size = 10\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := provideConfig(Params{SessionName: "test", ConfigPath: cfgPath}); err == nil {
		t.Fatal("expected validation error for config without server_url")
	}
}

func TestChannelURLDerivation(t *testing.T) {
	cases := []struct {
		server, channel, want string
	}{
		{"https://chat.example.com", "", "wss://chat.example.com/realtime"},
		{"http://localhost:8080/", "", "ws://localhost:8080/realtime"},
		{"https://chat.example.com", "wss://rt.example.com/ws", "wss://rt.example.com/ws"},
	}
	for _, tc := range cases {
		got := channelURL(&config.Config{ServerURL: tc.server, ChannelURL: tc.channel})
		if got != tc.want {
			t.Errorf("channelURL(%q, %q) = %q, want %q", tc.server, tc.channel, got, tc.want)
		}
	}
}
