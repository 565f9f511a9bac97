package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := &Config{
		DefaultSession: "work",
		ServerURL:      "https://chat.example.com",
		ViewerID:       "u-7",
		Token:          "secret",
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.ServerURL != "https://chat.example.com" {
		t.Errorf("ServerURL = %q", loaded.ServerURL)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := Save(path, &Config{ServerURL: "https://x", ViewerID: "u"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PageSize != DefaultPageSize {
		t.Errorf("PageSize = %d, want %d", cfg.PageSize, DefaultPageSize)
	}
	if cfg.TypingIdleMs != DefaultTypingIdleMs {
		t.Errorf("TypingIdleMs = %d, want %d", cfg.TypingIdleMs, DefaultTypingIdleMs)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load("/nonexistent/config.toml"); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"complete", Config{ServerURL: "https://x", ViewerID: "u"}, false},
		{"missing server", Config{ViewerID: "u"}, true},
		{"missing viewer", Config{ServerURL: "https://x"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tc.wantErr)
			}
		})
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := Save(path, &Config{DefaultSession: "main"}); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
