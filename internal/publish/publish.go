package publish

import (
	"context"

	"github.com/nerrad567/ssc-monitor/internal/state"
)

// Logger defines the logging interface used by publishers.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// StateReader is the read side of the state store used by publishers.
// Satisfied by *state.Store.
type StateReader interface {
	Device(key string) (state.DeviceState, error)
	Keys() []string
}

// Ensure publishers can be registered as store listeners.
var (
	_ state.Listener = (*MQTTPublisher)(nil)
	_ state.Listener = (*MetricsWriter)(nil)
)

// contextDone reports whether ctx has been cancelled.
func contextDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
