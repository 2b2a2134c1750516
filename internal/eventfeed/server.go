// Package eventfeed serves node events to local observers over HTTP and
// WebSocket.
package eventfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sheerbytes/peerlink/internal/events"
	"github.com/sheerbytes/peerlink/internal/logging"
	"github.com/sheerbytes/peerlink/internal/registry"
	"github.com/sheerbytes/peerlink/pkg/protocol"
)

const (
	pingInterval    = 30 * time.Second
	idleTimeout     = 75 * time.Second
	writeTimeout    = 10 * time.Second
	maxMessageBytes = 4096
	shutdownTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // observers are local tools
	},
}

// Lister reports the live connections.
type Lister interface {
	Connections() []registry.Info
}

// Server exposes /health, /connections and the /events websocket.
type Server struct {
	hub    *events.Hub
	conns  Lister
	logger *slog.Logger
	mux    *http.ServeMux
}

// New builds a feed server over hub and conns.
func New(hub *events.Hub, conns Lister, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{hub: hub, conns: conns, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/connections", s.handleConnections)
	s.mux.HandleFunc("/events", s.handleEvents)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// ListenAndServe binds addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("event feed listen on %s: %w", addr, err)
	}
	s.logger.Info("event feed listening", "addr", ln.Addr().String())
	return s.Serve(ctx, ln)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	infos := s.conns.Connections()
	list := make([]protocol.ConnectionInfo, 0, len(infos))
	for _, info := range infos {
		list = append(list, protocol.ConnectionInfo{
			ID:       info.ID,
			IP:       info.IP,
			Port:     info.Port,
			OpenedAt: info.OpenedAt,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxMessageBytes)
	conn.SetReadDeadline(time.Now().Add(idleTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(idleTimeout))
		return nil
	})

	var writeMu sync.Mutex
	send := func(env protocol.Envelope) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(env)
	}

	remote := r.RemoteAddr
	unsubscribe := s.hub.Subscribe("feed "+remote, func(ev events.Event) error {
		env, err := EnvelopeFromEvent(ev)
		if err != nil {
			s.logger.Warn("failed to build envelope", "kind", ev.Kind, "error", err)
			return nil
		}
		return send(env)
	})
	s.logger.Info("feed observer connected", "remote", remote)

	stopPing := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopPing:
				return
			case <-ticker.C:
				writeMu.Lock()
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
				writeMu.Unlock()
			}
		}
	}()

	// Observers never send anything meaningful; reading only detects close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("feed observer read error", "remote", remote, "error", err)
			}
			break
		}
	}

	close(stopPing)
	_ = conn.Close()
	unsubscribe()
	s.logger.Info("feed observer disconnected", "remote", remote)
}
