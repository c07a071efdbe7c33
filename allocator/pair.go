package allocator

import (
	"net"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Pair is an allocated media socket with optional control socket on the
// next port. Ownership passes to the caller on successful allocation.
type Pair struct {
	Media       net.PacketConn
	Control     net.PacketConn // nil if allocated without control
	MediaAddr   Addr
	ControlAddr Addr
}

// Close closes both sockets.
func (p *Pair) Close() error {
	err := p.Media.Close()
	if p.Control != nil {
		if closeErr := p.Control.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}

// NewPairAllocator initializes and returns new *PairAllocator.
func NewPairAllocator(o Options) *PairAllocator {
	o.setDefaults()
	a := &PairAllocator{
		log:     o.Log,
		binder:  o.Binder,
		retries: o.PairRetries,
		metrics: noopMetrics{},
	}
	if o.Registry != nil {
		m := newPromMetrics(prometheus.Labels{"allocator": "pair"})
		o.Registry.MustRegister(m)
		a.metrics = m
	}
	return a
}

// PairAllocator allocates media socket pairs on adjacent ports: media on
// an even port, control on the next odd one, per the RTP/RTCP convention.
//
// All allocations of one instance are serialized. Selecting a port pair
// and binding it is not atomic, so two concurrent callers starting from
// the same range would otherwise pick the same pair and race on bind.
// Share a single instance per process to keep the guarantee process-wide.
type PairAllocator struct {
	log     *zap.Logger
	binder  Binder
	metrics metrics
	retries int
	mux     sync.Mutex // held across the whole decide-and-bind sequence
}

// Allocate binds a media socket for ip starting from startPort and, if
// withControl is set, a control socket on the following port.
//
// ip must be a concrete local address, not a wildcard. An odd startPort is
// rounded up to even. On a bind conflict both ports are moved up by two
// and the pair is retried as a unit, up to DefaultPairRetries times; the
// [startPort, endPort] window seeds the search and is reported on failure,
// but retries may step past endPort.
func (a *PairAllocator) Allocate(ip net.IP, startPort, endPort int, withControl bool) (*Pair, error) {
	a.mux.Lock()
	defer a.mux.Unlock()
	port := startPort
	if port%2 != 0 {
		port++
	}
	if port <= 0 {
		return nil, errors.Wrapf(ErrNoPort, "bad start port %d for %s", startPort, ip)
	}
	for attempt := 0; attempt <= a.retries; attempt++ {
		p, bindErr := a.bindPair(ip, port, withControl)
		if bindErr == nil {
			a.metrics.incBound()
			a.log.Info("pair bound",
				zap.Stringer("media", p.MediaAddr),
				zap.Bool("control", withControl),
				zap.Int("attempt", attempt),
			)
			return p, nil
		}
		if errors.Cause(bindErr) != ErrPortBusy {
			return nil, bindErr
		}
		a.metrics.incBusy()
		a.log.Warn("bind conflict",
			zap.Stringer("ip", ip),
			zap.Int("port", port),
			zap.Error(bindErr),
		)
		port += 2
	}
	a.metrics.incExhausted()
	return nil, errors.Wrapf(ErrExhausted,
		"no free pair for %s in [%d,%d]", ip, startPort, endPort,
	)
}

// bindPair binds media and control sockets as a unit: if the control bind
// fails, the media socket is closed and the whole attempt is reported as
// failed.
func (a *PairAllocator) bindPair(ip net.IP, port int, withControl bool) (*Pair, error) {
	media, err := a.binder.Bind(ip, port)
	if err != nil {
		return nil, err
	}
	p := &Pair{
		Media:     media,
		MediaAddr: Addr{IP: ip, Port: port},
	}
	if !withControl {
		return p, nil
	}
	control, err := a.binder.Bind(ip, port+1)
	if err != nil {
		if closeErr := media.Close(); closeErr != nil {
			a.log.Warn("failed to close media socket", zap.Error(closeErr))
		}
		return nil, err
	}
	p.Control = control
	p.ControlAddr = Addr{IP: ip, Port: port + 1}
	return p, nil
}
