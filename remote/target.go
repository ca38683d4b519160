package remote

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/crypto/ssh"
)

const defaultPort = 22

// Target identifies a remote host and the credential used to log in.
// Password and PrivateKey may both be set; the key is offered first.
type Target struct {
	Host       string `json:"host" yaml:"host"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
	Username   string `json:"username" yaml:"username"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
	PrivateKey string `json:"private_key,omitempty" yaml:"private_key,omitempty"` // PEM encoded
	Passphrase string `json:"passphrase,omitempty" yaml:"passphrase,omitempty"`
}

// Addr returns the host:port dial address.
func (t Target) Addr() string {
	port := t.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// Validate checks that the target can be dialed.
func (t Target) Validate() error {
	if t.Host == "" {
		return fmt.Errorf("target host is empty")
	}
	if t.Username == "" {
		return fmt.Errorf("target username is empty")
	}
	if t.Port < 0 || t.Port > 65535 {
		return fmt.Errorf("target port %d out of range", t.Port)
	}
	if t.Password == "" && t.PrivateKey == "" {
		return ErrNoCredential
	}
	return nil
}

func (t Target) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if t.PrivateKey != "" {
		var (
			signer ssh.Signer
			err    error
		)
		if t.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(t.PrivateKey), []byte(t.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey([]byte(t.PrivateKey))
		}
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if t.Password != "" {
		password := t.Password
		methods = append(methods,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}

	if len(methods) == 0 {
		return nil, ErrNoCredential
	}
	return methods, nil
}
