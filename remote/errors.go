package remote

import (
	"errors"
	"fmt"
)

// Sentinel errors for remote sessions.
var (
	ErrClosed               = errors.New("remote session closed")
	ErrNoCredential         = errors.New("target has no credential")
	ErrHostKeyMismatch      = errors.New("host key mismatch")
	ErrUnknownHost          = errors.New("host key not trusted")
	ErrUnknownHostKeyPolicy = errors.New("unknown host key policy")
)

// ConnectionError reports a failure to establish a remote session.
type ConnectionError struct {
	Addr string
	User string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s@%s: %v", e.User, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ExecError reports a transport failure while running a command. A command
// that runs and exits non-zero is not an ExecError.
type ExecError struct {
	Command string
	Op      string
	Err     error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Command, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
