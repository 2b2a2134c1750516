package config

import (
	"errors"
	"flag"
	"io"
	"testing"
	"time"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func clearNodeEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PEERLINK_PORT", "PEERLINK_LOG_LEVEL", "PEERLINK_DOWNLOAD_DIR",
		"PEERLINK_EVENTS_ADDR", "PEERLINK_HISTORY_DB", "PEERLINK_MAX_CONNS",
		"PEERLINK_FEED_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestParseNodeConfig_Defaults(t *testing.T) {
	clearNodeEnv(t)

	cfg, err := parseNodeConfigWithFlagSet(newFlagSet(), []string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("expected Port to be %d, got %d", DefaultPort, cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected LogLevel to be info, got %s", cfg.LogLevel)
	}
	if cfg.DownloadDir != DefaultDownloadDir {
		t.Errorf("expected DownloadDir to be %s, got %s", DefaultDownloadDir, cfg.DownloadDir)
	}
	if cfg.EventsAddr != "" || cfg.HistoryPath != "" || cfg.MaxConnections != 0 {
		t.Errorf("expected optional features off, got %+v", cfg)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("expected PollInterval to be 500ms, got %s", cfg.PollInterval)
	}
}

func TestParseNodeConfig_Flags(t *testing.T) {
	clearNodeEnv(t)

	cfg, err := parseNodeConfigWithFlagSet(newFlagSet(), []string{
		"-port", "9000", "-log-level", "debug", "-download-dir", "/tmp/in",
		"-events-addr", ":8090", "-history-db", "h.db", "-max-conns", "4", "-poll", "250ms",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 9000 || cfg.LogLevel != "debug" || cfg.DownloadDir != "/tmp/in" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.EventsAddr != ":8090" || cfg.HistoryPath != "h.db" || cfg.MaxConnections != 4 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("expected PollInterval to be 250ms, got %s", cfg.PollInterval)
	}
}

func TestParseNodeConfig_EnvFallback(t *testing.T) {
	clearNodeEnv(t)
	t.Setenv("PEERLINK_PORT", "7070")
	t.Setenv("PEERLINK_LOG_LEVEL", "warn")
	t.Setenv("PEERLINK_MAX_CONNS", "2")

	cfg, err := parseNodeConfigWithFlagSet(newFlagSet(), []string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 7070 {
		t.Errorf("expected Port to be 7070, got %d", cfg.Port)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected LogLevel to be warn, got %s", cfg.LogLevel)
	}
	if cfg.MaxConnections != 2 {
		t.Errorf("expected MaxConnections to be 2, got %d", cfg.MaxConnections)
	}
}

func TestParseNodeConfig_FlagsOverrideEnv(t *testing.T) {
	clearNodeEnv(t)
	t.Setenv("PEERLINK_PORT", "7070")
	t.Setenv("PEERLINK_LOG_LEVEL", "warn")

	cfg, err := parseNodeConfigWithFlagSet(newFlagSet(), []string{"-port", "9090", "-log-level", "error"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Flags should override env
	if cfg.Port != 9090 {
		t.Errorf("expected Port to be 9090 (from flag), got %d", cfg.Port)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("expected LogLevel to be error (from flag), got %s", cfg.LogLevel)
	}
}

func TestParseNodeConfig_PositionalPort(t *testing.T) {
	clearNodeEnv(t)
	t.Setenv("PEERLINK_PORT", "7070")

	cfg, err := parseNodeConfigWithFlagSet(newFlagSet(), []string{"-log-level", "debug", "5050"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 5050 {
		t.Errorf("expected Port to be 5050 (positional), got %d", cfg.Port)
	}
}

func TestParseNodeConfig_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"positional not a number", nil, []string{"abc"}},
		{"positional out of range", nil, []string{"70000"}},
		{"flag out of range", nil, []string{"-port", "0"}},
		{"too many positionals", nil, []string{"1000", "2000"}},
		{"negative max conns", nil, []string{"-max-conns", "-1"}},
		{"poll too long", nil, []string{"-poll", "5s"}},
		{"unknown flag", nil, []string{"-bogus"}},
		{"bad env port", map[string]string{"PEERLINK_PORT": "x"}, nil},
		{"bad env max conns", map[string]string{"PEERLINK_MAX_CONNS": "many"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearNodeEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := parseNodeConfigWithFlagSet(newFlagSet(), tc.args); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestParseWatchConfig(t *testing.T) {
	clearNodeEnv(t)

	cfg, err := parseWatchConfigWithFlagSet(newFlagSet(), []string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FeedURL != DefaultFeedURL {
		t.Errorf("expected default feed url, got %s", cfg.FeedURL)
	}

	t.Setenv("PEERLINK_FEED_URL", "ws://10.0.0.5:9000/events")
	cfg, err = parseWatchConfigWithFlagSet(newFlagSet(), []string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FeedURL != "ws://10.0.0.5:9000/events" {
		t.Errorf("expected env feed url, got %s", cfg.FeedURL)
	}

	cfg, err = parseWatchConfigWithFlagSet(newFlagSet(), []string{"ws://host:1/events"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FeedURL != "ws://host:1/events" {
		t.Errorf("expected positional feed url, got %s", cfg.FeedURL)
	}

	if _, err := parseWatchConfigWithFlagSet(newFlagSet(), []string{"-feed-url", "http://host/events"}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for http url, got %v", err)
	}
}
