package agent

import "errors"

var (
	ErrEmptyProducerName = errors.New("producer name is empty")
	ErrProducerExists    = errors.New("producer already registered")
	ErrProducerNotFound  = errors.New("producer not found")
	ErrUnknownProvider   = errors.New("unknown provider")
	ErrEmptyReply        = errors.New("producer returned no choices")
)
