package kernel

import "github.com/tailored-agentic-units/shellpilot/observability"

// Kernel event types emitted during a run.
const (
	EventRunStart          observability.EventType = "kernel.run.start"
	EventRunComplete       observability.EventType = "kernel.run.complete"
	EventIterationStart    observability.EventType = "kernel.iteration.start"
	EventDirective         observability.EventType = "kernel.directive"
	EventCommandStart      observability.EventType = "kernel.command.start"
	EventCommandComplete   observability.EventType = "kernel.command.complete"
	EventProtocolViolation observability.EventType = "kernel.protocol.violation"
	EventExceeded          observability.EventType = "kernel.exceeded"
	EventSessionClose      observability.EventType = "kernel.session.close"
	EventError             observability.EventType = "kernel.error"
)
