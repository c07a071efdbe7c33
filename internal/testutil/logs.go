// Package testutil contains helpers for assertions on observed logs.
package testutil

import (
	"testing"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// EnsureNoErrors calls the t.Error if there are any ErrorLevel entries in logs.
func EnsureNoErrors(t *testing.T, logs *observer.ObservedLogs) {
	t.Helper()
	for _, e := range logs.TakeAll() {
		if e.Level == zapcore.ErrorLevel {
			t.Error(e.Message)
		}
	}
}

// Messages returns all observed log messages in order.
func Messages(logs *observer.ObservedLogs) []string {
	var s []string
	for _, e := range logs.All() {
		s = append(s, e.Message)
	}
	return s
}
