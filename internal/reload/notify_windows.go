//go:build windows

package reload

// No SIGUSR2 on windows, reload is available via management API only.
func (n *Notifier) subscribe() {}
