package clients

import (
	"testing"
	"time"
)

func TestDefaultTransportIsShared(t *testing.T) {
	first := DefaultTransport()
	second := DefaultTransport()
	if first != second {
		t.Fatal("expected every call to return the same transport")
	}
	if first.MaxConnsPerHost != 100 {
		t.Errorf("MaxConnsPerHost = %d, want 100", first.MaxConnsPerHost)
	}
	if first.MaxIdleConnsPerHost != 10 {
		t.Errorf("MaxIdleConnsPerHost = %d, want 10", first.MaxIdleConnsPerHost)
	}
}

func TestNewHTTPClientUsesSharedTransport(t *testing.T) {
	client := NewHTTPClient(15 * time.Second)
	if client.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", client.Timeout)
	}
	if client.Transport != DefaultTransport() {
		t.Error("client is not on the shared transport")
	}
}
