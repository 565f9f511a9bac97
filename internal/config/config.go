package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied by Load when the file leaves a field unset.
const (
	DefaultPageSize      = 20
	DefaultTypingIdleMs  = 2000
	DefaultDebounceMs    = 400
	DefaultReconnectMax  = 30000
	DefaultReconnectBase = 1000
)

// Config is the per-user ~/.parley/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`

	// ServerURL is the base URL of the request/response chat API.
	ServerURL string `toml:"server_url"`
	// ChannelURL is the websocket endpoint of the event channel.
	// Empty means derive from ServerURL ("/realtime").
	ChannelURL string `toml:"channel_url"`
	// Token is the bearer credential presented to both transports.
	Token string `toml:"token"`
	// ViewerID is the identity of the logged-in participant.
	ViewerID string `toml:"viewer_id"`

	PageSize        int `toml:"page_size"`
	TypingIdleMs    int `toml:"typing_idle_ms"`
	TypingDebounce  int `toml:"typing_debounce_ms"`
	ReconnectBaseMs int `toml:"reconnect_base_ms"`
	ReconnectMaxMs  int `toml:"reconnect_max_ms"`
}

// TypingIdle returns the idle window after which a stop-typing signal fires.
func (c *Config) TypingIdle() time.Duration {
	return time.Duration(c.TypingIdleMs) * time.Millisecond
}

// Debounce returns the keystroke collapse window for typing publishes.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.TypingDebounce) * time.Millisecond
}

// ReconnectBase returns the first event-channel reconnect delay.
func (c *Config) ReconnectBase() time.Duration {
	return time.Duration(c.ReconnectBaseMs) * time.Millisecond
}

// ReconnectMax returns the event-channel backoff cap.
func (c *Config) ReconnectMax() time.Duration {
	return time.Duration(c.ReconnectMaxMs) * time.Millisecond
}

// Load reads config from path and fills in defaults for unset fields.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Validate checks the fields the daemon cannot run without.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("config: server_url is required")
	}
	if c.ViewerID == "" {
		return fmt.Errorf("config: viewer_id is required")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.TypingIdleMs <= 0 {
		c.TypingIdleMs = DefaultTypingIdleMs
	}
	if c.TypingDebounce <= 0 {
		c.TypingDebounce = DefaultDebounceMs
	}
	if c.ReconnectBaseMs <= 0 {
		c.ReconnectBaseMs = DefaultReconnectBase
	}
	if c.ReconnectMaxMs <= 0 {
		c.ReconnectMaxMs = DefaultReconnectMax
	}
}

// Save writes config to path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
