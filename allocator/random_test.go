package allocator

import (
	"net"
	"testing"

	"github.com/pkg/errors"
)

// zeroReader always yields zero bytes, so every draw lands on minPort.
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

type errReader struct{}

func (errReader) Read(p []byte) (int, error) {
	return 0, errors.New("entropy unavailable")
}

func TestRandomAllocator_Allocate(t *testing.T) {
	b := newFakeBinder()
	a := NewRandomAllocator(Options{Binder: b})
	conn, addr, err := a.Allocate(net.IPv4(127, 0, 0, 1), 5000, 5010, nil)
	if err != nil {
		t.Fatal(err)
	}
	if addr.Port < 5000 || addr.Port >= 5010 {
		t.Errorf("port %d out of [5000,5010)", addr.Port)
	}
	if err := conn.Close(); err != nil {
		t.Error(err)
	}
}

func TestRandomAllocator_ExclusionRespected(t *testing.T) {
	b := newFakeBinder()
	a := NewRandomAllocator(Options{Binder: b})
	excluded := NewPortSet(5000, 5001, 5003)
	for i := 0; i < 10; i++ {
		conn, addr, err := a.Allocate(net.IPv4(127, 0, 0, 1), 5000, 5004, excluded)
		if err != nil {
			t.Fatal(err)
		}
		if addr.Port != 5002 {
			t.Errorf("trial %d: got excluded port %d", i, addr.Port)
		}
		if err := conn.Close(); err != nil {
			t.Error(err)
		}
	}
}

func TestRandomAllocator_AllExcluded(t *testing.T) {
	b := newFakeBinder()
	a := NewRandomAllocator(Options{Binder: b})
	_, _, err := a.Allocate(net.IPv4(127, 0, 0, 1), 5000, 5002, NewPortSet(5000, 5001))
	if errors.Cause(err) != ErrExhausted {
		t.Fatalf("got %v, want ErrExhausted", err)
	}
	if b.callCount() != 0 {
		t.Errorf("got %d bind calls, want 0", b.callCount())
	}
}

func TestRandomAllocator_AttemptsBounded(t *testing.T) {
	b := newFakeBinder(6000)
	a := NewRandomAllocator(Options{Binder: b, Rand: zeroReader{}})
	_, _, err := a.Allocate(net.IPv4(127, 0, 0, 1), 6000, 6010, nil)
	if errors.Cause(err) != ErrExhausted {
		t.Fatalf("got %v, want ErrExhausted", err)
	}
	if b.callCount() != DefaultRandomAttempts {
		t.Errorf("got %d bind calls, want %d", b.callCount(), DefaultRandomAttempts)
	}
}

func TestRandomAllocator_ExcludedDrawsAreFree(t *testing.T) {
	// Two-port range: one excluded, one always busy. Every bind call must
	// target the busy port and the full attempt budget must be spent on
	// it, proving that excluded draws do not consume attempts.
	b := newFakeBinder(6001)
	a := NewRandomAllocator(Options{Binder: b})
	_, _, err := a.Allocate(net.IPv4(127, 0, 0, 1), 6000, 6002, NewPortSet(6000))
	if errors.Cause(err) != ErrExhausted {
		t.Fatalf("got %v, want ErrExhausted", err)
	}
	if b.callCount() != DefaultRandomAttempts {
		t.Errorf("got %d bind calls, want %d", b.callCount(), DefaultRandomAttempts)
	}
	for i, port := range b.calls {
		if port != 6001 {
			t.Fatalf("call %d went to excluded port %d", i, port)
		}
	}
}

func TestRandomAllocator_BadRange(t *testing.T) {
	a := NewRandomAllocator(Options{Binder: newFakeBinder()})
	if _, _, err := a.Allocate(net.IPv4(127, 0, 0, 1), 6010, 6000, nil); err == nil {
		t.Error("should error on inverted range")
	}
	if _, _, err := a.Allocate(net.IPv4(127, 0, 0, 1), 6000, 6000, nil); err == nil {
		t.Error("should error on empty range")
	}
}

func TestRandomAllocator_FatalError(t *testing.T) {
	b := newFakeBinder()
	b.err = errors.New("sockets exhausted")
	a := NewRandomAllocator(Options{Binder: b, Rand: zeroReader{}})
	_, _, err := a.Allocate(net.IPv4(127, 0, 0, 1), 6000, 6010, nil)
	if err == nil || errors.Cause(err) == ErrPortBusy || errors.Cause(err) == ErrExhausted {
		t.Fatalf("got %v, want propagated fatal error", err)
	}
	if b.callCount() != 1 {
		t.Errorf("got %d bind calls, want 1", b.callCount())
	}
}

func TestRandomAllocator_RandError(t *testing.T) {
	a := NewRandomAllocator(Options{Binder: newFakeBinder(), Rand: errReader{}})
	if _, _, err := a.Allocate(net.IPv4(127, 0, 0, 1), 6000, 6010, nil); err == nil {
		t.Error("should propagate random source error")
	}
}

func TestRandomAllocator_System(t *testing.T) {
	a := NewRandomAllocator(Options{})
	ip := net.IPv4(127, 0, 0, 1)
	conn, addr, err := a.Allocate(ip, 37000, 37100, NewPortSet(37050))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	local := conn.LocalAddr().(*net.UDPAddr)
	if local.Port != addr.Port {
		t.Errorf("reported port %d, bound port %d", addr.Port, local.Port)
	}
	if !local.IP.Equal(ip) {
		t.Errorf("bound to %s, want %s", local.IP, ip)
	}
	if addr.Port == 37050 {
		t.Error("allocated excluded port")
	}
}
