// Package observability carries structured events out of the execution loop
// and the service layer. Level values follow OpenTelemetry SeverityNumber
// ranges so events map onto OTel log records without translation.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Level is event severity in OTel SeverityNumber units.
type Level int

const (
	LevelVerbose Level = 5  // OTel DEBUG (5-8)
	LevelInfo    Level = 9  // OTel INFO (9-12)
	LevelWarning Level = 13 // OTel WARN (13-16)
	LevelError   Level = 17 // OTel ERROR (17-20)
)

// String returns the OTel severity text for the level.
func (l Level) String() string {
	switch {
	case l <= 4:
		return "TRACE"
	case l <= 8:
		return "DEBUG"
	case l <= 12:
		return "INFO"
	case l <= 16:
		return "WARN"
	case l <= 20:
		return "ERROR"
	default:
		return "FATAL"
	}
}

// SlogLevel maps the level onto slog.
func (l Level) SlogLevel() slog.Level {
	switch {
	case l <= 8:
		return slog.LevelDebug
	case l <= 12:
		return slog.LevelInfo
	case l <= 16:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// EventType names an event, namespaced by the emitting package
// ("kernel.run.start", "service.execute.complete").
type EventType string

// Event is one observation. Type maps to the OTel EventName, Source to the
// instrumentation scope and Data to attributes.
type Event struct {
	Type      EventType      `json:"type"`
	Level     Level          `json:"level"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Data      map[string]any `json:"data,omitempty"`
}

// Observer receives events. Implementations must be safe for concurrent use
// and must not block the caller for long.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}
