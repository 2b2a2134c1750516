package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"syscall"
)

// Connect dials a peer and registers the connection. ip may be an IPv4 or
// IPv6 literal or a host name; a name is resolved first so the self and
// duplicate checks see the same addresses the record will hold. Each
// candidate ip:port is reserved in the registry until the dial finishes, so
// concurrent connects to one peer cannot both succeed.
func (n *Node) Connect(ctx context.Context, ip, portArg string) (int, error) {
	port, err := ParsePort(portArg)
	if err != nil {
		return 0, err
	}
	host := strings.TrimSpace(ip)
	if host == "" || strings.ContainsAny(host, " \t/") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, ip)
	}
	if n.ctx.Err() != nil {
		return 0, ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, n.opts.DialTimeout)
	defer cancel()

	ips, err := n.resolve(ctx, host)
	if err != nil {
		return 0, classifyDialError(net.JoinHostPort(host, strconv.Itoa(port)), err)
	}
	for _, addr := range ips {
		if port == n.Port() && n.opts.IsLocal(addr) {
			return 0, fmt.Errorf("%w: %s:%d", ErrSelfConnect, host, port)
		}
	}
	for _, addr := range ips {
		release, existing, ok := n.reg.Reserve(addr, port)
		if !ok {
			if existing.ID > 0 {
				return 0, fmt.Errorf("%w: %s:%d is connection %d", ErrDuplicateConnection, host, port, existing.ID)
			}
			return 0, fmt.Errorf("%w: %s:%d is already being dialed", ErrDuplicateConnection, host, port)
		}
		defer release()
	}

	var d net.Dialer
	var conn net.Conn
	var dialErr error
	for _, addr := range ips {
		target := net.JoinHostPort(addr, strconv.Itoa(port))
		conn, dialErr = d.DialContext(ctx, "tcp", target)
		if dialErr == nil {
			break
		}
		dialErr = classifyDialError(target, dialErr)
		if ctx.Err() != nil {
			break
		}
	}
	if conn == nil {
		return 0, dialErr
	}

	n.tune(conn)
	peerIP, peerPort := splitRemote(conn.RemoteAddr())
	id := n.register(conn, peerIP, peerPort)
	n.logger.Info("connection established", "conn_id", id, "peer", net.JoinHostPort(peerIP, strconv.Itoa(peerPort)), "host", host)
	return id, nil
}

// resolve returns the distinct addresses of host, IPv4 first. A literal
// resolves to itself in canonical form.
func (n *Node) resolve(ctx context.Context, host string) ([]string, error) {
	if parsed := net.ParseIP(host); parsed != nil {
		return []string{parsed.String()}, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	var v4, v6 []string
	seen := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		s := a.IP.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		if a.IP.To4() != nil {
			v4 = append(v4, s)
		} else {
			v6 = append(v6, s)
		}
	}
	ips := append(v4, v6...)
	if len(ips) == 0 {
		return nil, &net.DNSError{Err: "no addresses", Name: host, IsNotFound: true}
	}
	return ips, nil
}

func classifyDialError(addr string, err error) error {
	var netErr net.Error
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("connect to %s: %w", addr, err)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("%w: %s", ErrConnectRefused, addr)
	case errors.As(err, &dnsErr) && dnsErr.IsNotFound:
		return fmt.Errorf("%w: %s: %v", ErrInvalidAddress, addr, err)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %s", ErrConnectTimeout, addr)
	default:
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
}
