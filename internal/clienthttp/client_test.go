package clienthttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sheerbytes/peerlink/pkg/protocol"
)

func TestBaseURLFromFeed(t *testing.T) {
	cases := map[string]string{
		"ws://localhost:8090/events":   "http://localhost:8090",
		"wss://node.lan/events?x=1":    "https://node.lan",
		"ws://10.0.0.2:8090":           "http://10.0.0.2:8090",
		"http://10.0.0.2:8090/events/": "http://10.0.0.2:8090",
	}
	for in, want := range cases {
		got, err := BaseURLFromFeed(in)
		if err != nil {
			t.Fatalf("BaseURLFromFeed(%q) error = %v", in, err)
		}
		if got != want {
			t.Errorf("BaseURLFromFeed(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := BaseURLFromFeed("ftp://host/events"); err == nil {
		t.Error("expected error for ftp scheme")
	}
}

func TestFetchConnections_Success(t *testing.T) {
	opened := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path != "/connections" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]protocol.ConnectionInfo{{ID: 2, IP: "10.0.0.2", Port: 4545, OpenedAt: opened}})
	}))
	defer server.Close()

	list, err := FetchConnections(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchConnections() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != 2 || list[0].Port != 4545 || !list[0].OpenedAt.Equal(opened) {
		t.Errorf("unexpected list %+v", list)
	}
}

func TestFetchConnections_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid request"}`))
	}))
	defer server.Close()

	_, err := FetchConnections(context.Background(), server.URL)
	if err == nil {
		t.Fatal("FetchConnections() expected error, got nil")
	}
	if !strings.HasPrefix(err.Error(), "server returned 400") {
		t.Errorf("error = %v, want error starting with server returned 400", err)
	}
}

func TestFetchConnections_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`invalid json`))
	}))
	defer server.Close()

	_, err := FetchConnections(context.Background(), server.URL)
	if err == nil || !strings.HasPrefix(err.Error(), "parse response") {
		t.Fatalf("FetchConnections() error = %v, want parse response error", err)
	}
}

func TestCheckHealth(t *testing.T) {
	var unhealthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"ok": !unhealthy.Load()})
	}))
	defer server.Close()

	if err := CheckHealth(context.Background(), server.URL); err != nil {
		t.Fatalf("CheckHealth() error = %v", err)
	}
	unhealthy.Store(true)
	if err := CheckHealth(context.Background(), server.URL); err == nil {
		t.Fatal("CheckHealth() expected error for unhealthy node")
	}
}

func TestFetchConnections_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, err := FetchConnections(ctx, server.URL); err == nil {
		t.Fatal("FetchConnections() expected error, got nil")
	}
}
