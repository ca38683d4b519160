package remote

import (
	"context"
	"io"
	"time"

	"golang.org/x/crypto/ssh"
)

type shell struct {
	sess   *ssh.Session
	stdin  io.WriteCloser
	output *syncBuffer
	exited chan struct{}
}

func (s *shell) alive() bool {
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

func (s *shell) close() {
	s.stdin.Close()
	s.sess.Close()
}

// Interactive writes command to the persistent shell and returns whatever
// the shell prints until it goes idle. The shell is opened on first use and
// reopened if it has exited. Idle output is only an approximation of the
// command having finished, so anything the shell printed after the previous
// drain stopped is returned ahead of this command's output.
func (c *Client) Interactive(ctx context.Context, command string, idle IdleConfig) (string, error) {
	sh, err := c.acquireShell()
	if err != nil {
		return "", &ExecError{Command: command, Op: "open shell", Err: err}
	}

	leftover := sh.output.take()

	if _, err := io.WriteString(sh.stdin, command+"\n"); err != nil {
		return leftover, &ExecError{Command: command, Op: "write", Err: err}
	}

	out, err := drain(ctx, sh.output.take, sh.exited, idle)
	out = leftover + out
	if err != nil {
		return out, &ExecError{Command: command, Op: "interactive", Err: err}
	}
	return out, nil
}

func (c *Client) acquireShell() (*shell, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.shell != nil && c.shell.alive() {
		return c.shell, nil
	}
	if c.shell != nil {
		c.shell.close()
		c.shell = nil
	}

	sess, err := c.conn.NewSession()
	if err != nil {
		return nil, err
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty(c.term.Type, c.term.Height, c.term.Width, modes); err != nil {
		sess.Close()
		return nil, err
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, err
	}
	output := &syncBuffer{}
	sess.Stdout = output
	sess.Stderr = output

	if err := sess.Shell(); err != nil {
		sess.Close()
		return nil, err
	}

	sh := &shell{sess: sess, stdin: stdin, output: output, exited: make(chan struct{})}
	go func() {
		_ = sess.Wait()
		close(sh.exited)
	}()

	c.shell = sh
	return sh, nil
}

// drain collects output after an initial settle, then polls until a poll
// finds nothing new, the source exits, or MaxWait elapses. An empty settle
// read does not end the drain; the first poll still runs.
func drain(ctx context.Context, take func() string, exited <-chan struct{}, idle IdleConfig) (string, error) {
	cfg := DefaultIdleConfig()
	cfg.Merge(&idle)

	var deadline <-chan time.Time
	if limit := cfg.MaxWait.Std(); limit > 0 {
		timer := time.NewTimer(limit)
		defer timer.Stop()
		deadline = timer.C
	}

	var collected string
	wait := cfg.Settle.Std()
	first := true

	for {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return collected + take(), ctx.Err()
		case <-deadline:
			timer.Stop()
			return collected + take(), nil
		case <-exited:
			timer.Stop()
			return collected + take(), nil
		case <-timer.C:
		}

		chunk := take()
		if chunk == "" && !first {
			return collected, nil
		}
		collected += chunk
		first = false
		wait = cfg.Poll.Std()
	}
}
