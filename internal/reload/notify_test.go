package reload

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNotifier_Notify(t *testing.T) {
	n := NewNotifier(zap.NewNop())
	go n.Notify()
	select {
	case <-n.C:
		// Got it.
	case <-time.After(time.Second):
		t.Error("notification not delivered")
	}
}
