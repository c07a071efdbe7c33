// Package allocator implements local UDP port allocation for real-time
// media transport.
//
// PairAllocator binds RTP/RTCP socket pairs on adjacent ports,
// RandomAllocator binds a single socket on a random port from a range.
// Both go through a Binder, so the actual bind backend can be replaced
// in tests.
package allocator

import (
	"crypto/rand"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	// DefaultPairRetries is how many times pair allocation is retried
	// with an incremented port after a bind conflict.
	DefaultPairRetries = 5
	// DefaultRandomAttempts bounds bind attempts of RandomAllocator.
	DefaultRandomAttempts = 50
)

// Options are used to initialize allocators. The zero value is valid:
// no-op logging, system bind backend, crypto/rand randomness and default
// retry limits.
type Options struct {
	Log      *zap.Logger
	Binder   Binder
	Rand     io.Reader             // random source for RandomAllocator
	Registry prometheus.Registerer // enables metrics if set

	PairRetries    int // overrides DefaultPairRetries if positive
	RandomAttempts int // overrides DefaultRandomAttempts if positive
}

func (o *Options) setDefaults() {
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	if o.Binder == nil {
		o.Binder = SystemBinder{}
	}
	if o.Rand == nil {
		o.Rand = rand.Reader
	}
	if o.PairRetries <= 0 {
		o.PairRetries = DefaultPairRetries
	}
	if o.RandomAttempts <= 0 {
		o.RandomAttempts = DefaultRandomAttempts
	}
}
