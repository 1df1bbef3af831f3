package httptransport

import (
	"net/http"
	"testing"
	"time"
)

func TestNewServerAppliesDefaultTimeouts(t *testing.T) {
	server := NewServer(ServerConfig{Address: ":8080"}, http.NewServeMux())

	if server.Addr != ":8080" {
		t.Errorf("addr = %q", server.Addr)
	}
	if server.ReadTimeout != defaultReadTimeout {
		t.Errorf("read timeout = %s, want %s", server.ReadTimeout, defaultReadTimeout)
	}
	if server.WriteTimeout != defaultWriteTimeout {
		t.Errorf("write timeout = %s, want %s", server.WriteTimeout, defaultWriteTimeout)
	}
	if server.IdleTimeout != defaultIdleTimeout {
		t.Errorf("idle timeout = %s, want %s", server.IdleTimeout, defaultIdleTimeout)
	}
}

func TestNewServerKeepsExplicitTimeouts(t *testing.T) {
	server := NewServer(ServerConfig{
		Address:      ":0",
		ReadTimeout:  time.Second,
		WriteTimeout: 2 * time.Second,
		IdleTimeout:  3 * time.Second,
	}, http.NewServeMux())

	if server.ReadTimeout != time.Second || server.WriteTimeout != 2*time.Second || server.IdleTimeout != 3*time.Second {
		t.Errorf("explicit timeouts overridden: %s/%s/%s", server.ReadTimeout, server.WriteTimeout, server.IdleTimeout)
	}
}
