package remote

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// NewHostKeyCallback builds the host key verifier for policy. With an empty
// knownHostsPath, TOFU keys are remembered in memory and strict has nothing
// to trust, so every host is rejected.
func NewHostKeyCallback(policy HostKeyPolicy, knownHostsPath string) (ssh.HostKeyCallback, error) {
	switch policy {
	case HostKeyInsecure:
		return ssh.InsecureIgnoreHostKey(), nil

	case HostKeyTOFU, "":
		if knownHostsPath == "" {
			return (&memoryHostKeys{keys: make(map[string]ssh.PublicKey)}).check, nil
		}
		f, err := openKnownHosts(knownHostsPath, true)
		if err != nil {
			return nil, err
		}
		return f.check, nil

	case HostKeyStrict:
		if knownHostsPath == "" {
			return func(hostname string, _ net.Addr, _ ssh.PublicKey) error {
				return fmt.Errorf("%w: %s (no known_hosts configured)", ErrUnknownHost, hostname)
			}, nil
		}
		f, err := openKnownHosts(knownHostsPath, false)
		if err != nil {
			return nil, err
		}
		return f.check, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownHostKeyPolicy, policy)
}

type memoryHostKeys struct {
	mu   sync.Mutex
	keys map[string]ssh.PublicKey
}

func (m *memoryHostKeys) check(hostname string, _ net.Addr, key ssh.PublicKey) error {
	host := knownhosts.Normalize(hostname)

	m.mu.Lock()
	defer m.mu.Unlock()

	known, ok := m.keys[host]
	if !ok {
		m.keys[host] = key
		return nil
	}
	if !bytes.Equal(known.Marshal(), key.Marshal()) {
		return fmt.Errorf("%w: %s presented %s", ErrHostKeyMismatch, host, ssh.FingerprintSHA256(key))
	}
	return nil
}

type knownHostsFile struct {
	mu       sync.Mutex
	path     string
	remember bool
}

func openKnownHosts(path string, remember bool) (*knownHostsFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create known_hosts directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open known_hosts: %w", err)
	}
	f.Close()
	return &knownHostsFile{path: path, remember: remember}, nil
}

// check re-reads the file on every call so keys remembered by earlier
// connections are honoured.
func (k *knownHostsFile) check(hostname string, remote net.Addr, key ssh.PublicKey) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	verify, err := knownhosts.New(k.path)
	if err != nil {
		return fmt.Errorf("load known_hosts: %w", err)
	}

	err = verify(hostname, remote, key)
	if err == nil {
		return nil
	}

	var keyErr *knownhosts.KeyError
	if !errors.As(err, &keyErr) {
		return err
	}
	if len(keyErr.Want) > 0 {
		return fmt.Errorf("%w: %s presented %s", ErrHostKeyMismatch, hostname, ssh.FingerprintSHA256(key))
	}
	if !k.remember {
		return fmt.Errorf("%w: %s", ErrUnknownHost, hostname)
	}

	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	f, err := os.OpenFile(k.path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("remember host key: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("remember host key: %w", err)
	}
	return nil
}
