// Package shell is the interactive command loop of the peerlink binary.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/sheerbytes/peerlink/internal/console"
	"github.com/sheerbytes/peerlink/internal/history"
	"github.com/sheerbytes/peerlink/internal/node"
	"github.com/sheerbytes/peerlink/internal/registry"
)

const helpText = `
Available commands:
  help                         - Show this help message
  myip                         - Display the IP address of this machine
  myport                       - Display the port this process is listening on
  connect <destination> <port> - Establish a TCP connection to the specified IP and port
  list                         - Display all active connections (ID, IP, port)
  terminate <connection_id>    - Close the connection with the specified ID
  send <connection_id> <msg>   - Send a message (up to 100 chars) to the specified connection
  sendfile <connection_id> <path> - Send a file; quote paths containing spaces
  history [n]                  - Show the last n file transfers (default 20)
  exit                         - Close all connections and terminate the program
`

// Node is the part of a node the shell drives.
type Node interface {
	Port() int
	Connect(ctx context.Context, ip, port string) (int, error)
	Connections() []registry.Info
	Terminate(idArg string) error
	Send(idArg, text string) error
	SendFile(idArg, path string) (node.SendResult, error)
}

// Journal lists recent transfers. A nil Journal disables the history command.
type Journal interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// Config wires a Shell.
type Config struct {
	Node    Node
	Journal Journal
	Out     io.Writer
	LocalIP func() string
	Now     func() time.Time
}

// Shell parses and runs one command per line.
type Shell struct {
	node    Node
	journal Journal
	out     io.Writer
	localIP func() string
	now     func() time.Time
}

func New(cfg Config) *Shell {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	localIP := cfg.LocalIP
	if localIP == nil {
		localIP = func() string { return "127.0.0.1" }
	}
	return &Shell{
		node:    cfg.Node,
		journal: cfg.Journal,
		out:     cfg.Out,
		localIP: localIP,
		now:     now,
	}
}

// Help returns the command summary.
func Help() string {
	return helpText
}

// Run executes lines from in until exit, end of input or ctx cancellation.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSuffix(scanner.Text(), "\r"):
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			if s.Exec(ctx, line) {
				return nil
			}
		}
	}
}

// Exec runs one command line and reports whether the shell should exit.
func (s *Shell) Exec(ctx context.Context, line string) (quit bool) {
	if strings.TrimSpace(line) == "" {
		return false
	}
	cmd, rest := cut(line)

	switch strings.ToLower(cmd) {
	case "help":
		fmt.Fprint(s.out, helpText)
	case "myip":
		fmt.Fprintln(s.out, s.localIP())
	case "myport":
		fmt.Fprintln(s.out, s.node.Port())
	case "connect":
		args, ok := s.args(rest, 2, "connect <destination> <port>")
		if !ok {
			return false
		}
		if _, err := s.node.Connect(ctx, args[0], args[1]); err != nil {
			s.fail(err)
		}
	case "list":
		if err := console.WriteConnections(s.out, s.node.Connections(), s.now()); err != nil {
			s.fail(err)
		}
	case "terminate":
		args, ok := s.args(rest, 1, "terminate <connection_id>")
		if !ok {
			return false
		}
		if err := s.node.Terminate(args[0]); err != nil {
			s.fail(err)
		}
	case "send":
		id, msg := cut(rest)
		if id == "" || strings.TrimSpace(msg) == "" {
			s.usage("send <connection_id> <message>")
			return false
		}
		if err := s.node.Send(id, msg); err != nil {
			s.fail(err)
		}
	case "sendfile":
		args, ok := s.args(rest, 2, "sendfile <connection_id> <path>")
		if !ok {
			return false
		}
		if _, err := s.node.SendFile(args[0], args[1]); err != nil {
			s.fail(err)
		}
	case "history":
		s.history(ctx, rest)
	case "exit", "quit":
		fmt.Fprintln(s.out, "Exiting...")
		return true
	default:
		fmt.Fprintf(s.out, "Unknown command: %s\n", cmd)
		fmt.Fprint(s.out, helpText)
	}
	return false
}

func (s *Shell) history(ctx context.Context, rest string) {
	if s.journal == nil {
		fmt.Fprintln(s.out, "History is disabled; start with -history-db to enable it")
		return
	}
	limit := history.DefaultLimit
	if rest = strings.TrimSpace(rest); rest != "" {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 {
			s.usage("history [n]")
			return
		}
		limit = n
	}
	entries, err := s.journal.Recent(ctx, limit)
	if err != nil {
		s.fail(err)
		return
	}
	if err := console.WriteHistory(s.out, entries, s.now()); err != nil {
		s.fail(err)
	}
}

// args splits rest with shell quoting and checks the argument count.
func (s *Shell) args(rest string, want int, usage string) ([]string, bool) {
	args, err := shellquote.Split(rest)
	if err != nil || len(args) != want {
		s.usage(usage)
		return nil, false
	}
	return args, true
}

func (s *Shell) usage(u string) {
	fmt.Fprintf(s.out, "Usage: %s\n", u)
}

func (s *Shell) fail(err error) {
	switch {
	case errors.Is(err, node.ErrInvalidID):
		fmt.Fprintln(s.out, "Error: connection id must be an integer.")
	default:
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}

// cut splits off the first whitespace-delimited word. tail is everything
// after the single separator that follows it, kept as typed.
func cut(s string) (head, tail string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+1:]
}
