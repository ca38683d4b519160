package service

import "github.com/tailored-agentic-units/shellpilot/observability"

// Service event types.
const (
	EventExecuteStart    observability.EventType = "service.execute.start"
	EventExecuteComplete observability.EventType = "service.execute.complete"
	EventChat            observability.EventType = "service.chat"
	EventHistorySeeded   observability.EventType = "service.history.seeded"
	EventCancel          observability.EventType = "service.cancel"
	EventError           observability.EventType = "service.error"
)
