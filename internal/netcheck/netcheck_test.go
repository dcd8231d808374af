package netcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAlwaysOnline(t *testing.T) {
	status, err := AlwaysOnline{}.Check(context.Background())
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !status.Connected {
		t.Error("AlwaysOnline reported offline")
	}
}

func TestHTTPChecker_Online(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := NewHTTPChecker(server.URL, time.Second)
	status, err := c.Check(context.Background())
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !status.Connected {
		t.Error("expected connected for 204 response")
	}
}

func TestHTTPChecker_Offline(t *testing.T) {
	// Point at a server that is already gone.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewHTTPChecker(url, 500*time.Millisecond)
	status, err := c.Check(context.Background())
	if err != nil {
		t.Fatalf("Check returned error: %v (transport failure should report offline)", err)
	}
	if status.Connected {
		t.Error("expected offline for unreachable probe")
	}
}

func TestHTTPChecker_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewHTTPChecker(server.URL, time.Second)
	status, err := c.Check(context.Background())
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if status.Connected {
		t.Error("expected offline for 502 response")
	}
}

func TestFromProbeURL(t *testing.T) {
	if _, ok := FromProbeURL("", time.Second).(AlwaysOnline); !ok {
		t.Error("empty probe URL should yield AlwaysOnline")
	}
	if _, ok := FromProbeURL("http://probe.example.com/gen204", time.Second).(*HTTPChecker); !ok {
		t.Error("probe URL should yield HTTPChecker")
	}
}
