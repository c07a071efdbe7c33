package allocator

import (
	"net"

	"github.com/pkg/errors"
)

// ResolveLocalAddr returns the local address the OS routing table selects
// to reach dst. It associates a UDP socket with (dst, port 0) without
// sending any data and reads back the chosen source address.
//
// There is no retry: a failure here means the OS has no route and nothing
// can be recovered at this level.
func ResolveLocalAddr(dst net.IP) (net.IP, error) {
	network := "udp4"
	if dst.To4() == nil {
		network = "udp6"
	}
	conn, err := net.DialUDP(network, nil, &net.UDPAddr{IP: dst, Port: 0})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve route to %s", dst)
	}
	local := conn.LocalAddr().(*net.UDPAddr)
	if closeErr := conn.Close(); closeErr != nil {
		return nil, closeErr
	}
	return local.IP, nil
}
