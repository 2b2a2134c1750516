package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sheerbytes/peerlink/internal/clienthttp"
	"github.com/sheerbytes/peerlink/internal/config"
	"github.com/sheerbytes/peerlink/internal/logging"
	"github.com/sheerbytes/peerlink/internal/termio"
	"github.com/sheerbytes/peerlink/internal/wsclient"
	"github.com/sheerbytes/peerlink/pkg/protocol"
)

func main() {
	code := run()
	termio.Flush()
	os.Exit(code)
}

func run() int {
	termio.Init()
	cfg, err := config.ParseWatchConfig()
	if err != nil {
		fmt.Fprintf(termio.Stderr(), "%v\n", err)
		fmt.Fprintln(termio.Stderr(), "usage: peerwatch [-feed-url ws://host:port/events] [-log-level level]")
		return 2
	}
	logger := logging.NewWithWriter("peerwatch", cfg.LogLevel, termio.Stderr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, err := wsclient.Dial(dialCtx, cfg.FeedURL, logger)
	cancel()
	if err != nil {
		fmt.Fprintf(termio.Stderr(), "failed to connect to %s: %v\n", cfg.FeedURL, err)
		return 1
	}
	defer conn.Close()
	fmt.Fprintf(termio.Stdout(), "watching %s\n", cfg.FeedURL)
	printConnections(ctx, cfg.FeedURL, logger)

	err = conn.ReadLoop(ctx, func(env protocol.Envelope) {
		fmt.Fprintln(termio.Stdout(), formatEnvelope(env))
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Info("event feed closed", "error", err)
	}
	return 0
}

// printConnections shows the node's live connections before streaming.
func printConnections(ctx context.Context, feedURL string, logger *slog.Logger) {
	base, err := clienthttp.BaseURLFromFeed(feedURL)
	if err != nil {
		logger.Debug("no connection snapshot", "error", err)
		return
	}
	list, err := clienthttp.FetchConnections(ctx, base)
	if err != nil {
		logger.Warn("failed to fetch connections", "error", err)
		return
	}
	if len(list) == 0 {
		fmt.Fprintln(termio.Stdout(), "no active connections")
		return
	}
	for _, c := range list {
		fmt.Fprintf(termio.Stdout(), "connection %d %s:%d since %s\n", c.ID, c.IP, c.Port, c.OpenedAt.Local().Format("15:04:05"))
	}
}

func formatEnvelope(env protocol.Envelope) string {
	at := env.At.Local().Format("15:04:05")
	prefix := fmt.Sprintf("%s %-17s conn=%d", at, env.Type, env.ConnID)

	switch env.Type {
	case protocol.TypeChatMessage, protocol.TypeChatSent:
		var m protocol.ChatMessage
		if err := env.Decode(&m); err == nil {
			return fmt.Sprintf("%s %s:%d %q", prefix, m.Peer.IP, m.Peer.Port, m.Text)
		}
	case protocol.TypeConnectionOpened, protocol.TypeConnectionClosed:
		var s protocol.ConnectionState
		if err := env.Decode(&s); err == nil {
			if s.Reason != "" {
				return fmt.Sprintf("%s %s:%d (%s)", prefix, s.Peer.IP, s.Peer.Port, s.Reason)
			}
			return fmt.Sprintf("%s %s:%d", prefix, s.Peer.IP, s.Peer.Port)
		}
	default:
		var f protocol.FileOutcome
		if err := env.Decode(&f); err == nil {
			line := fmt.Sprintf("%s %s:%d %s %d bytes verified=%t", prefix, f.Peer.IP, f.Peer.Port, f.Name, f.Size, f.Verified)
			if f.Reason != "" {
				line += " (" + f.Reason + ")"
			}
			return line
		}
	}
	return fmt.Sprintf("%s %s", prefix, string(env.Payload))
}
