package remote

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// ExecResult captures a one-shot command. A non-zero ExitStatus is an
// ordinary result. ExitStatus is -1 when the server reported none, which
// includes commands stopped at their timeout.
type ExecResult struct {
	Stdout     string
	Stderr     string
	ExitStatus int
	TimedOut   bool
}

// Combined returns stdout followed by stderr.
func (r ExecResult) Combined() string {
	return r.Stdout + r.Stderr
}

// Client is an authenticated SSH connection to one target. Exec runs each
// command on a fresh channel; Interactive shares one persistent shell.
type Client struct {
	conn *ssh.Client
	term TermConfig

	mu     sync.Mutex
	shell  *shell
	closed bool
}

// Dial makes a single connection attempt bounded by cfg.ConnectTimeout and
// ctx. Every failure is a *ConnectionError.
func Dial(ctx context.Context, target Target, cfg Config) (*Client, error) {
	hostKey, err := NewHostKeyCallback(cfg.HostKeyPolicy, cfg.KnownHostsPath)
	if err != nil {
		return nil, &ConnectionError{Addr: target.Addr(), User: target.Username, Err: err}
	}
	return dial(ctx, target, cfg, hostKey)
}

func dial(ctx context.Context, target Target, cfg Config, hostKey ssh.HostKeyCallback) (*Client, error) {
	addr := target.Addr()
	fail := func(err error) error {
		return &ConnectionError{Addr: addr, User: target.Username, Err: err}
	}

	if err := target.Validate(); err != nil {
		return nil, fail(err)
	}
	auth, err := target.authMethods()
	if err != nil {
		return nil, fail(err)
	}

	timeout := cfg.ConnectTimeout.Std()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var d net.Dialer
	netConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fail(err)
	}

	// The handshake has no context of its own; closing the socket unblocks it.
	stop := context.AfterFunc(ctx, func() { netConn.Close() })

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, &ssh.ClientConfig{
		User:            target.Username,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	})
	if !stop() {
		if err == nil {
			sshConn.Close()
		}
		return nil, fail(ctx.Err())
	}
	if err != nil {
		netConn.Close()
		return nil, fail(err)
	}

	term := cfg.Term
	def := DefaultConfig().Term
	if term.Type == "" {
		term.Type = def.Type
	}
	if term.Width <= 0 {
		term.Width = def.Width
	}
	if term.Height <= 0 {
		term.Height = def.Height
	}

	return &Client{conn: ssh.NewClient(sshConn, chans, reqs), term: term}, nil
}

// Exec runs command on a new channel and waits for it to exit. When timeout
// elapses the command is killed and the partial output is returned with
// TimedOut set. Transport failures and cancellation return an *ExecError.
func (c *Client) Exec(ctx context.Context, command string, timeout time.Duration) (ExecResult, error) {
	if c.isClosed() {
		return ExecResult{}, &ExecError{Command: command, Op: "exec", Err: ErrClosed}
	}

	sess, err := c.conn.NewSession()
	if err != nil {
		return ExecResult{}, &ExecError{Command: command, Op: "open channel", Err: err}
	}
	defer sess.Close()

	var stdout, stderr syncBuffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	if err := sess.Start(command); err != nil {
		return ExecResult{}, &ExecError{Command: command, Op: "start", Err: err}
	}

	done := make(chan error, 1)
	go func() { done <- sess.Wait() }()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case err := <-done:
		result := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
		var (
			exitErr    *ssh.ExitError
			missingErr *ssh.ExitMissingError
		)
		switch {
		case err == nil:
		case errors.As(err, &exitErr):
			result.ExitStatus = exitErr.ExitStatus()
		case errors.As(err, &missingErr):
			result.ExitStatus = -1
		default:
			return result, &ExecError{Command: command, Op: "wait", Err: err}
		}
		return result, nil

	case <-expired:
		_ = sess.Signal(ssh.SIGKILL)
		sess.Close()
		waitBriefly(done)
		return ExecResult{
			Stdout:     stdout.String(),
			Stderr:     stderr.String(),
			ExitStatus: -1,
			TimedOut:   true,
		}, nil

	case <-ctx.Done():
		sess.Close()
		waitBriefly(done)
		return ExecResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitStatus: -1},
			&ExecError{Command: command, Op: "exec", Err: ctx.Err()}
	}
}

// Close shuts the interactive shell, if one was opened, and the connection.
// Calls after the first return nil.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sh := c.shell
	c.shell = nil
	c.mu.Unlock()

	if sh != nil {
		sh.close()
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func waitBriefly(done <-chan error) {
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

// syncBuffer lets channel copy goroutines write while the caller reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// take returns and discards everything written so far.
func (b *syncBuffer) take() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.buf.String()
	b.buf.Reset()
	return s
}
