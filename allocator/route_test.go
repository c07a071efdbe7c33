package allocator

import (
	"net"
	"testing"
)

func TestResolveLocalAddr(t *testing.T) {
	ip, err := ResolveLocalAddr(net.IPv4(127, 0, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if !ip.IsLoopback() {
		t.Errorf("got %s, want loopback", ip)
	}
	ifaceAddrs, err := net.InterfaceAddrs()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, a := range ifaceAddrs {
		if ipNet, ok := a.(*net.IPNet); ok && ipNet.IP.Equal(ip) {
			found = true
		}
	}
	if !found {
		t.Errorf("%s does not belong to a local interface", ip)
	}
}

func TestResolveLocalAddr_V6(t *testing.T) {
	ip, err := ResolveLocalAddr(net.ParseIP("::1"))
	if err != nil {
		t.Skip("IPv6 unavailable:", err)
	}
	if !ip.IsLoopback() {
		t.Errorf("got %s, want loopback", ip)
	}
}
