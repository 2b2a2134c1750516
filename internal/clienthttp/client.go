package clienthttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sheerbytes/peerlink/pkg/protocol"
)

var client = &http.Client{
	Timeout: 5 * time.Second,
}

// BaseURLFromFeed turns an event feed URL (ws://host:port/events) into the
// HTTP base URL of the same server.
func BaseURLFromFeed(feedURL string) (string, error) {
	u, err := url.Parse(feedURL)
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported feed url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/events")
	u.RawQuery = ""
	return strings.TrimSuffix(u.String(), "/"), nil
}

// FetchConnections calls GET /connections on a node's event feed server.
// Uses a 5 second timeout for the HTTP request.
func FetchConnections(ctx context.Context, baseURL string) ([]protocol.ConnectionInfo, error) {
	body, err := get(ctx, baseURL+"/connections")
	if err != nil {
		return nil, err
	}
	var list []protocol.ConnectionInfo
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return list, nil
}

// CheckHealth calls GET /health and fails unless the node reports ok.
func CheckHealth(ctx context.Context, baseURL string) error {
	body, err := get(ctx, baseURL+"/health")
	if err != nil {
		return err
	}
	var health struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if !health.OK {
		return fmt.Errorf("node reports unhealthy")
	}
	return nil
}

func get(ctx context.Context, rawURL string) ([]byte, error) {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
