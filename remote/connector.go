package remote

import (
	"context"
	"time"

	"golang.org/x/crypto/ssh"
)

// Session is an open remote session as seen by the execution loop.
type Session interface {
	Exec(ctx context.Context, command string, timeout time.Duration) (ExecResult, error)
	Interactive(ctx context.Context, command string, idle IdleConfig) (string, error)
	Close() error
}

// Connector opens sessions to targets.
type Connector interface {
	Connect(ctx context.Context, target Target) (Session, error)
}

// SSHConnector dials targets over SSH. It builds the host key verifier once
// so TOFU keys remembered in memory survive across connections.
type SSHConnector struct {
	cfg     Config
	hostKey ssh.HostKeyCallback
}

// NewSSHConnector creates a connector from cfg merged over the defaults.
func NewSSHConnector(cfg Config) (*SSHConnector, error) {
	merged := DefaultConfig()
	merged.Merge(&cfg)

	hostKey, err := NewHostKeyCallback(merged.HostKeyPolicy, merged.KnownHostsPath)
	if err != nil {
		return nil, err
	}
	return &SSHConnector{cfg: merged, hostKey: hostKey}, nil
}

// Connect dials target. Failures are *ConnectionError.
func (c *SSHConnector) Connect(ctx context.Context, target Target) (Session, error) {
	client, err := dial(ctx, target, c.cfg, c.hostKey)
	if err != nil {
		return nil, err
	}
	return client, nil
}
