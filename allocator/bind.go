package allocator

import (
	"net"
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// Binder binds UDP sockets on local ip:port.
//
// Implementations must report a port conflict with an error whose cause is
// ErrPortBusy, so allocators can treat it as ordinary control flow and
// retry. Any other error aborts the allocation.
type Binder interface {
	Bind(ip net.IP, port int) (net.PacketConn, error)
}

var (
	// ErrPortBusy means the requested port is already bound.
	ErrPortBusy = errors.New("port is busy")
	// ErrExhausted means bind attempts are exhausted without success.
	ErrExhausted = errors.New("port range exhausted")
	// ErrNoPort means the computed start port is unusable.
	ErrNoPort = errors.New("no port available")
)

// DefaultBufferSize is the socket buffer size requested by SystemBinder,
// large enough to survive media bursts without kernel-level drops.
const DefaultBufferSize = 100 * 1024 * 1024

// SystemBinder binds UDP sockets directly on system.
type SystemBinder struct {
	BufferSize int // overrides DefaultBufferSize if positive
}

// Bind binds a new UDP socket to ip:port. The address family is inferred
// from ip.
func (b SystemBinder) Bind(ip net.IP, port int) (net.PacketConn, error) {
	network := "udp4"
	if ip.To4() == nil {
		network = "udp6"
	}
	conn, err := net.ListenUDP(network, &net.UDPAddr{IP: ip, Port: port})
	if err != nil {
		if isAddrInUse(err) {
			return nil, errors.Wrapf(ErrPortBusy, "%s:%d", ip, port)
		}
		return nil, err
	}
	size := b.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	// The kernel caps oversized values instead of failing, so errors
	// here are not fatal for the allocation.
	_ = conn.SetReadBuffer(size)
	_ = conn.SetWriteBuffer(size)
	return conn, nil
}

func isAddrInUse(err error) bool {
	switch err := err.(type) {
	case syscall.Errno:
		switch err {
		case syscall.EADDRINUSE, syscall.EACCES:
			return true
		}
	case *os.SyscallError:
		return isAddrInUse(err.Err)
	case *net.OpError:
		return isAddrInUse(err.Err)
	}
	return false
}
