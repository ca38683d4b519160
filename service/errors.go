package service

import "errors"

// Sentinel errors for boundary requests.
var (
	ErrEmptyTask         = errors.New("task is empty")
	ErrEmptyMessage      = errors.New("user message is empty")
	ErrMissingDependency = errors.New("service dependency is nil")
	ErrChatFailed        = errors.New("chat producer failed")
)
