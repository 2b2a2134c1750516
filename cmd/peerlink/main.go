package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"

	"github.com/sheerbytes/peerlink/internal/cli/shell"
	"github.com/sheerbytes/peerlink/internal/config"
	"github.com/sheerbytes/peerlink/internal/console"
	"github.com/sheerbytes/peerlink/internal/eventfeed"
	"github.com/sheerbytes/peerlink/internal/events"
	"github.com/sheerbytes/peerlink/internal/history"
	"github.com/sheerbytes/peerlink/internal/logging"
	"github.com/sheerbytes/peerlink/internal/netinfo"
	"github.com/sheerbytes/peerlink/internal/node"
	"github.com/sheerbytes/peerlink/internal/termio"
)

const version = "v0.1.0"

func main() {
	code := run()
	termio.Flush()
	os.Exit(code)
}

func run() int {
	termio.Init()
	args := os.Args[1:]
	if hasHelpFlag(args) {
		printUsage()
		return 0
	}
	if hasVersionFlag(args) {
		fmt.Fprintln(termio.Stdout(), version)
		return 0
	}

	cfg, err := config.ParseNodeConfig()
	if err != nil {
		fmt.Fprintf(termio.Stderr(), "%v\n", err)
		printUsage()
		return 2
	}
	logger := logging.NewWithWriter("peerlink", cfg.LogLevel, termio.Stderr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := events.NewHub(logger)
	printer := console.NewPrinter(termio.Stdout())
	hub.Subscribe("console", printer.Print)

	var journal *history.Journal
	if cfg.HistoryPath != "" {
		journal, err = history.Open(cfg.HistoryPath)
		if err != nil {
			fmt.Fprintf(termio.Stderr(), "Failed to open transfer history %s: %v\n", cfg.HistoryPath, err)
			return 1
		}
		hub.Subscribe("history", journal.Observe)
	}

	n := node.New(node.Options{
		Port:           cfg.Port,
		DownloadDir:    cfg.DownloadDir,
		MaxConnections: cfg.MaxConnections,
		PollInterval:   cfg.PollInterval,
		Events:         hub,
		Logger:         logger,
	})
	if err := n.Start(ctx); err != nil {
		fmt.Fprintf(termio.Stderr(), "Failed to start server on port %d: %v\n", cfg.Port, err)
		fmt.Fprintln(termio.Stderr(), "Failed to start server. Exiting.")
		hub.Close()
		if journal != nil {
			_ = journal.Close()
		}
		return 1
	}

	feedDone := make(chan struct{})
	if cfg.EventsAddr != "" {
		feed := eventfeed.New(hub, n, logger)
		go func() {
			defer close(feedDone)
			if err := feed.ListenAndServe(ctx, cfg.EventsAddr); err != nil {
				logger.Error("event feed stopped", "error", err)
			}
		}()
	} else {
		close(feedDone)
	}

	out := termio.Stdout()
	fmt.Fprintf(out, "P2P Chat Application started on port %d\n", n.Port())
	if isatty.IsTerminal(os.Stdin.Fd()) {
		fmt.Fprintln(out, "Type 'help' for available commands")
	}

	var sj shell.Journal
	if journal != nil {
		sj = journal
	}
	sh := shell.New(shell.Config{
		Node:    n,
		Journal: sj,
		Out:     out,
		LocalIP: netinfo.LocalIP,
	})
	if err := sh.Run(ctx, os.Stdin); err != nil {
		logger.Error("reading commands failed", "error", err)
	}
	if ctx.Err() != nil {
		fmt.Fprintln(out, "\nReceived interrupt signal. Exiting...")
	}

	stop()
	if err := n.Close(); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}
	<-feedDone
	hub.Close()
	if journal != nil {
		_ = journal.Close()
	}
	fmt.Fprintln(out, "Goodbye :P")
	return 0
}

func printUsage() {
	fmt.Fprintln(termio.Stderr(), "usage: peerlink [flags] [port]")
	fmt.Fprintln(termio.Stderr(), "flags:")
	fmt.Fprintln(termio.Stderr(), "  -port <n>            TCP port to listen on (default 4545, env PEERLINK_PORT)")
	fmt.Fprintln(termio.Stderr(), "  -download-dir <dir>  where received files are stored (env PEERLINK_DOWNLOAD_DIR)")
	fmt.Fprintln(termio.Stderr(), "  -events-addr <addr>  serve the event feed, e.g. :8090 (env PEERLINK_EVENTS_ADDR)")
	fmt.Fprintln(termio.Stderr(), "  -history-db <file>   record transfers in a sqlite journal (env PEERLINK_HISTORY_DB)")
	fmt.Fprintln(termio.Stderr(), "  -max-conns <n>       cap concurrent inbound connections (env PEERLINK_MAX_CONNS)")
	fmt.Fprintln(termio.Stderr(), "  -log-level <level>   debug, info, warn or error (env PEERLINK_LOG_LEVEL)")
	fmt.Fprintln(termio.Stderr(), "quick examples:")
	fmt.Fprintln(termio.Stderr(), "  peerlink 4545")
	fmt.Fprintln(termio.Stderr(), "  peerlink -port 5000 -events-addr :8090 -history-db data/history.db")
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func hasVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}
