package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPort         = 4545
	DefaultDownloadDir  = "downloads"
	DefaultFeedURL      = "ws://localhost:8090/events"
	defaultPollInterval = 500 * time.Millisecond
)

// ErrInvalidConfig wraps every configuration error.
var ErrInvalidConfig = errors.New("invalid configuration")

// NodeConfig holds configuration for the peer binary.
type NodeConfig struct {
	Port           int
	LogLevel       string
	DownloadDir    string
	EventsAddr     string // empty disables the event feed
	HistoryPath    string // empty disables the transfer journal
	MaxConnections int    // inbound cap, 0 means unlimited
	PollInterval   time.Duration
}

// WatchConfig holds configuration for the event feed viewer.
type WatchConfig struct {
	FeedURL  string
	LogLevel string
}

// ParseNodeConfig parses node configuration from flags and environment variables.
// Flags take precedence over environment variables; a single positional
// argument is taken as the port.
// Defaults: port=4545, logLevel="info", downloadDir="downloads"
func ParseNodeConfig() (NodeConfig, error) {
	return parseNodeConfigWithFlagSet(flag.CommandLine, os.Args[1:])
}

// parseNodeConfigWithFlagSet is an internal helper for testing with isolated flag sets.
func parseNodeConfigWithFlagSet(fs *flag.FlagSet, args []string) (NodeConfig, error) {
	cfg := NodeConfig{
		Port:         DefaultPort,
		LogLevel:     "info",
		DownloadDir:  DefaultDownloadDir,
		PollInterval: defaultPollInterval,
	}

	// Read from environment first
	if v := os.Getenv("PEERLINK_PORT"); v != "" {
		port, err := parsePort(v)
		if err != nil {
			return NodeConfig{}, fmt.Errorf("PEERLINK_PORT: %w", err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("PEERLINK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PEERLINK_DOWNLOAD_DIR"); v != "" {
		cfg.DownloadDir = v
	}
	if v := os.Getenv("PEERLINK_EVENTS_ADDR"); v != "" {
		cfg.EventsAddr = v
	}
	if v := os.Getenv("PEERLINK_HISTORY_DB"); v != "" {
		cfg.HistoryPath = v
	}
	if v := os.Getenv("PEERLINK_MAX_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return NodeConfig{}, fmt.Errorf("%w: PEERLINK_MAX_CONNS %q", ErrInvalidConfig, v)
		}
		cfg.MaxConnections = n
	}

	// Flags override environment
	fs.IntVar(&cfg.Port, "port", cfg.Port, "TCP port to listen on")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.DownloadDir, "download-dir", cfg.DownloadDir, "directory for received files")
	fs.StringVar(&cfg.EventsAddr, "events-addr", cfg.EventsAddr, "serve the event feed on this address (e.g. :8090)")
	fs.StringVar(&cfg.HistoryPath, "history-db", cfg.HistoryPath, "sqlite file for the transfer journal")
	fs.IntVar(&cfg.MaxConnections, "max-conns", cfg.MaxConnections, "max concurrent inbound connections (0 = unlimited)")
	fs.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "receive poll interval (max 1s)")
	if err := fs.Parse(args); err != nil {
		return NodeConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	switch rest := fs.Args(); len(rest) {
	case 0:
	case 1:
		port, err := parsePort(rest[0])
		if err != nil {
			return NodeConfig{}, err
		}
		cfg.Port = port
	default:
		return NodeConfig{}, fmt.Errorf("%w: unexpected arguments %s", ErrInvalidConfig, strings.Join(rest[1:], " "))
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return NodeConfig{}, fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, cfg.Port)
	}
	if cfg.MaxConnections < 0 {
		return NodeConfig{}, fmt.Errorf("%w: max-conns %d", ErrInvalidConfig, cfg.MaxConnections)
	}
	if cfg.PollInterval <= 0 || cfg.PollInterval > time.Second {
		return NodeConfig{}, fmt.Errorf("%w: poll interval %s not in (0, 1s]", ErrInvalidConfig, cfg.PollInterval)
	}
	return cfg, nil
}

// ParseWatchConfig parses viewer configuration from flags and environment variables.
// Flags take precedence over environment variables.
// Defaults: feedURL="ws://localhost:8090/events", logLevel="info"
func ParseWatchConfig() (WatchConfig, error) {
	return parseWatchConfigWithFlagSet(flag.CommandLine, os.Args[1:])
}

// parseWatchConfigWithFlagSet is an internal helper for testing with isolated flag sets.
func parseWatchConfigWithFlagSet(fs *flag.FlagSet, args []string) (WatchConfig, error) {
	cfg := WatchConfig{
		FeedURL:  DefaultFeedURL,
		LogLevel: "info",
	}

	if v := os.Getenv("PEERLINK_FEED_URL"); v != "" {
		cfg.FeedURL = v
	}
	if v := os.Getenv("PEERLINK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	fs.StringVar(&cfg.FeedURL, "feed-url", cfg.FeedURL, "event feed websocket URL")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return WatchConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if rest := fs.Args(); len(rest) == 1 {
		cfg.FeedURL = rest[0]
	} else if len(rest) > 1 {
		return WatchConfig{}, fmt.Errorf("%w: unexpected arguments %s", ErrInvalidConfig, strings.Join(rest[1:], " "))
	}
	if !strings.HasPrefix(cfg.FeedURL, "ws://") && !strings.HasPrefix(cfg.FeedURL, "wss://") {
		return WatchConfig{}, fmt.Errorf("%w: feed url %q must be ws:// or wss://", ErrInvalidConfig, cfg.FeedURL)
	}
	return cfg, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("%w: port %q", ErrInvalidConfig, s)
	}
	return port, nil
}
