package allocator

import (
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/pkg/errors"
)

func TestSystemBinder_Bind(t *testing.T) {
	ip := net.IPv4(127, 0, 0, 1)
	first, err := net.ListenUDP("udp4", &net.UDPAddr{IP: ip})
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	port := first.LocalAddr().(*net.UDPAddr).Port

	b := SystemBinder{}
	if _, bindErr := b.Bind(ip, port); errors.Cause(bindErr) != ErrPortBusy {
		t.Errorf("got %v, want ErrPortBusy", bindErr)
	}

	conn, err := b.Bind(ip, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	local := conn.LocalAddr().(*net.UDPAddr)
	if !local.IP.Equal(ip) {
		t.Errorf("bound to %s, want %s", local.IP, ip)
	}
}

func TestIsAddrInUse(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		v    bool
	}{
		{name: "errno", err: syscall.EADDRINUSE, v: true},
		{name: "acces", err: syscall.EACCES, v: true},
		{name: "syscallError", err: os.NewSyscallError("bind", syscall.EADDRINUSE), v: true},
		{
			name: "opError",
			err: &net.OpError{
				Op:  "listen",
				Err: os.NewSyscallError("bind", syscall.EADDRINUSE),
			},
			v: true,
		},
		{name: "other", err: syscall.ECONNREFUSED},
		{name: "plain", err: errors.New("bind failed")},
		{name: "nil"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if v := isAddrInUse(tc.err); v != tc.v {
				t.Errorf("isAddrInUse(%v) = %v, want %v", tc.err, v, tc.v)
			}
		})
	}
}
