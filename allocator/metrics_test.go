package allocator

import (
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatherCounter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		var total float64
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestPromMetrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	b := newFakeBinder(2000)
	a := NewPairAllocator(Options{Binder: b, Registry: reg})
	p, err := a.Allocate(net.IPv4(127, 0, 0, 1), 2000, 2100, false)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if v := gatherCounter(t, reg, "mediaport_bound_count"); v != 1 {
		t.Errorf("bound count %v, want 1", v)
	}
	if v := gatherCounter(t, reg, "mediaport_bind_conflicts_count"); v != 1 {
		t.Errorf("conflict count %v, want 1", v)
	}
	if v := gatherCounter(t, reg, "mediaport_exhausted_count"); v != 0 {
		t.Errorf("exhausted count %v, want 0", v)
	}

	// Pair and random collectors must be registrable side by side.
	NewRandomAllocator(Options{Binder: b, Registry: reg})
}
