package session

import (
	"strings"
	"testing"
)

func TestPathsAreSessionScoped(t *testing.T) {
	a := CacheDBPath("alpha")
	b := CacheDBPath("beta")
	if a == b {
		t.Error("cache paths for different sessions must differ")
	}
	if !strings.Contains(a, "sessions/alpha") {
		t.Errorf("CacheDBPath = %q, want it under sessions/alpha", a)
	}
	if !strings.HasSuffix(LogPath("alpha"), "parleyd.log") {
		t.Errorf("LogPath = %q, want parleyd.log suffix", LogPath("alpha"))
	}
}
