package allocator

import (
	"crypto/rand"
	"io"
	"math/big"
	"net"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// PortSet is a set of ports the random allocator must not choose. It is
// owned by the caller and only read during the allocation call.
type PortSet map[int]struct{}

// NewPortSet returns a PortSet with provided ports.
func NewPortSet(ports ...int) PortSet {
	s := make(PortSet, len(ports))
	for _, p := range ports {
		s[p] = struct{}{}
	}
	return s
}

// Has reports whether port is in the set. A nil set has no ports.
func (s PortSet) Has(port int) bool {
	_, ok := s[port]
	return ok
}

// NewRandomAllocator initializes and returns new *RandomAllocator.
func NewRandomAllocator(o Options) *RandomAllocator {
	o.setDefaults()
	a := &RandomAllocator{
		log:      o.Log,
		binder:   o.Binder,
		rand:     o.Rand,
		attempts: o.RandomAttempts,
		metrics:  noopMetrics{},
	}
	if o.Registry != nil {
		m := newPromMetrics(prometheus.Labels{"allocator": "random"})
		o.Registry.MustRegister(m)
		a.metrics = m
	}
	return a
}

// RandomAllocator binds a single UDP socket to a port drawn from a range.
//
// Ports are drawn from a cryptographically strong source so the sequence
// of chosen ports is not predictable. There is no internal locking: the
// OS bind is relied on for atomicity, and a lost bind race is just a
// conflict that triggers the next draw.
type RandomAllocator struct {
	log      *zap.Logger
	binder   Binder
	rand     io.Reader
	metrics  metrics
	attempts int
}

// Allocate binds a UDP socket for ip to a random port in [minPort, maxPort)
// that is not in excluded.
//
// Bind conflicts are retried silently with a new draw, up to
// DefaultRandomAttempts binds. Drawing an excluded port does not consume
// an attempt; an exclusion set covering the whole range fails immediately
// instead of starving the loop.
func (a *RandomAllocator) Allocate(ip net.IP, minPort, maxPort int, excluded PortSet) (net.PacketConn, Addr, error) {
	if minPort >= maxPort {
		return nil, Addr{}, errors.Errorf("invalid port range [%d,%d)", minPort, maxPort)
	}
	free := maxPort - minPort
	for p := range excluded {
		if p >= minPort && p < maxPort {
			free--
		}
	}
	if free <= 0 {
		a.metrics.incExhausted()
		return nil, Addr{}, errors.Wrapf(ErrExhausted,
			"all ports for %s in [%d,%d) are excluded", ip, minPort, maxPort,
		)
	}
	span := big.NewInt(int64(maxPort - minPort))
	for attempt := 0; attempt < a.attempts; {
		n, err := rand.Int(a.rand, span)
		if err != nil {
			return nil, Addr{}, errors.Wrap(err, "failed to read random source")
		}
		port := minPort + int(n.Int64())
		if excluded.Has(port) {
			continue
		}
		attempt++
		conn, bindErr := a.binder.Bind(ip, port)
		if bindErr == nil {
			a.metrics.incBound()
			a.log.Debug("bound",
				zap.Int("port", port),
				zap.Int("attempt", attempt),
			)
			return conn, Addr{IP: ip, Port: port}, nil
		}
		if errors.Cause(bindErr) != ErrPortBusy {
			return nil, Addr{}, bindErr
		}
		// Conflicts are expected here, not worth a warning.
		a.metrics.incBusy()
	}
	a.metrics.incExhausted()
	return nil, Addr{}, errors.Wrapf(ErrExhausted,
		"no free port for %s in [%d,%d)", ip, minPort, maxPort,
	)
}
