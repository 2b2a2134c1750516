package netinfo

import (
	"net"
	"testing"
)

func TestIsLocal(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"127.0.0.1", true},
		{"127.0.1.1", true},
		{"::1", true},
		{"0.0.0.0", true},
		{"localhost", true},
		{"LOCALHOST", true},
		{"192.0.2.55", false},
		{"not-an-ip", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsLocal(tt.host); got != tt.want {
			t.Errorf("IsLocal(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestLocalIPIsLocal(t *testing.T) {
	ip := LocalIP()
	if net.ParseIP(ip) == nil {
		t.Fatalf("LocalIP() = %q, not an IP", ip)
	}
	if !IsLocal(ip) {
		t.Errorf("IsLocal(LocalIP()=%s) = false", ip)
	}
}
