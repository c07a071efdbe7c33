// Package manage implements management of mediaportd.
package manage

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Notifier wraps notify method.
type Notifier interface {
	Notify()
}

// StatusFunc returns a snapshot of current allocations.
type StatusFunc func() string

// Manager handles http management endpoints.
type Manager struct {
	notifier Notifier
	status   StatusFunc
	l        *zap.Logger
}

// ServeHTTP implements http.Handler.
func (m Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/reload":
		m.l.Info("got reload request")
		w.WriteHeader(http.StatusOK)
		m.notifier.Notify()
		if _, err := fmt.Fprintln(w, "config will be reloaded soon"); err != nil {
			m.l.Warn("failed to write", zap.Error(err))
		}
	case "/status":
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprintln(w, m.status()); err != nil {
			m.l.Warn("failed to write", zap.Error(err))
		}
	default:
		w.WriteHeader(http.StatusNotFound)
		if _, err := fmt.Fprintln(w, "management endpoint not found"); err != nil {
			m.l.Warn("failed to write", zap.Error(err))
		}
	}
}

// NewManager initializes and returns Manager.
func NewManager(l *zap.Logger, n Notifier, status StatusFunc) Manager {
	return Manager{
		l:        l,
		notifier: n,
		status:   status,
	}
}
