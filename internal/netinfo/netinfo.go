package netinfo

import (
	"net"
	"strings"
	"time"
)

// LocalIP returns the address this host would use for outbound traffic.
// No packet is sent: dialing UDP only selects a route. Falls back to the
// first non-loopback IPv4 interface address, then to 127.0.0.1.
func LocalIP() string {
	conn, err := net.DialTimeout("udp", "8.8.8.8:80", time.Second)
	if err == nil {
		defer conn.Close()
		if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok && addr.IP != nil && !addr.IP.IsUnspecified() {
			return addr.IP.String()
		}
	}
	for _, ip := range interfaceIPs() {
		if ip.IsLoopback() {
			continue
		}
		if ip4 := ip.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "127.0.0.1"
}

// IsLocal reports whether host names this machine: loopback, unspecified,
// "localhost" or any address assigned to a local interface.
func IsLocal(host string) bool {
	host = strings.TrimSpace(host)
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsUnspecified() {
		return true
	}
	for _, local := range interfaceIPs() {
		if local.Equal(ip) {
			return true
		}
	}
	return false
}

func interfaceIPs() []net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP == nil {
			continue
		}
		ips = append(ips, ipnet.IP)
	}
	return ips
}
