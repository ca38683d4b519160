package api

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/tailored-agentic-units/shellpilot/device"
	"github.com/tailored-agentic-units/shellpilot/history"
	"github.com/tailored-agentic-units/shellpilot/kernel"
	"github.com/tailored-agentic-units/shellpilot/remote"
	"github.com/tailored-agentic-units/shellpilot/service"
)

// Code maps a service error to its Connect status code.
func Code(err error) connect.Code {
	var (
		connErr     *remote.ConnectionError
		producerErr *kernel.ProducerError
		execErr     *remote.ExecError
		existing    *connect.Error
	)

	switch {
	case errors.As(err, &existing):
		return existing.Code()
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	case errors.As(err, &connErr):
		return connect.CodeUnavailable
	case errors.As(err, &producerErr):
		return connect.CodeUnavailable
	case errors.Is(err, service.ErrChatFailed):
		return connect.CodeUnavailable
	case errors.As(err, &execErr):
		return connect.CodeInternal
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	case errors.Is(err, device.ErrNotFound):
		return connect.CodeNotFound
	case errors.Is(err, device.ErrEmptyID),
		errors.Is(err, history.ErrEmptyConversationID),
		errors.Is(err, service.ErrEmptyTask),
		errors.Is(err, service.ErrEmptyMessage):
		return connect.CodeInvalidArgument
	default:
		return connect.CodeInternal
	}
}

func toConnectError(err error) *connect.Error {
	var existing *connect.Error
	if errors.As(err, &existing) {
		return existing
	}
	return connect.NewError(Code(err), err)
}
