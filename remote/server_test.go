package remote_test

import (
	"bufio"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/tailored-agentic-units/shellpilot/remote"
)

const (
	testUser     = "pi"
	testPassword = "raspberry"
)

// testServer is an in-process SSH server with a handful of fake commands
// and a line-oriented fake shell that tracks its working directory.
type testServer struct {
	addr      string
	hostKey   ssh.PublicKey
	clientKey string
	shells    atomic.Int32
	listener  net.Listener
	wg        sync.WaitGroup
}

func newSigner(t *testing.T) (ssh.Signer, ed25519.PrivateKey) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("NewSignerFromKey failed: %v", err)
	}
	return signer, priv
}

func startServer(t *testing.T) *testServer {
	t.Helper()

	hostSigner, _ := newSigner(t)
	clientSigner, clientPriv := newSigner(t)

	block, err := ssh.MarshalPrivateKey(clientPriv, "")
	if err != nil {
		t.Fatalf("MarshalPrivateKey failed: %v", err)
	}

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if meta.User() == testUser && string(password) == testPassword {
				return nil, nil
			}
			return nil, fmt.Errorf("access denied")
		},
		PublicKeyCallback: func(meta ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if meta.User() == testUser && string(key.Marshal()) == string(clientSigner.PublicKey().Marshal()) {
				return nil, nil
			}
			return nil, fmt.Errorf("unknown key")
		},
	}
	cfg.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	srv := &testServer{
		addr:      ln.Addr().String(),
		hostKey:   hostSigner.PublicKey(),
		clientKey: string(pem.EncodeToMemory(block)),
		listener:  ln,
	}

	srv.wg.Add(1)
	go func() {
		defer srv.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.serveConn(conn, cfg)
		}
	}()

	t.Cleanup(func() {
		ln.Close()
		srv.wg.Wait()
	})
	return srv
}

func (s *testServer) target() remote.Target {
	host, port, _ := net.SplitHostPort(s.addr)
	p, _ := strconv.Atoi(port)
	return remote.Target{Host: host, Port: p, Username: testUser, Password: testPassword}
}

func (s *testServer) serveConn(conn net.Conn, cfg *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		conn.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	for nc := range chans {
		if nc.ChannelType() != "session" {
			nc.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, requests, err := nc.Accept()
		if err != nil {
			continue
		}
		go s.serveSession(ch, requests)
	}
}

func (s *testServer) serveSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	// done closes when the client signals the command or the channel goes away.
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }
	defer stop()

	for req := range requests {
		switch req.Type {
		case "pty-req", "env":
			req.Reply(true, nil)
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)
			go runCommand(ch, payload.Command, done)
		case "shell":
			req.Reply(true, nil)
			s.shells.Add(1)
			go runShell(ch)
		case "signal":
			if req.WantReply {
				req.Reply(true, nil)
			}
			stop()
		default:
			req.Reply(false, nil)
		}
	}
}

func exit(ch ssh.Channel, status uint32) {
	ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
	ch.Close()
}

func runCommand(ch ssh.Channel, command string, done <-chan struct{}) {
	switch {
	case strings.HasPrefix(command, "echo "):
		io.WriteString(ch, strings.TrimPrefix(command, "echo ")+"\n")
		exit(ch, 0)
	case command == "whoami":
		io.WriteString(ch, testUser+"\n")
		exit(ch, 0)
	case command == "fail":
		io.WriteString(ch, "partial\n")
		io.WriteString(ch.Stderr(), "boom\n")
		exit(ch, 2)
	case command == "noexit":
		io.WriteString(ch, "gone\n")
		ch.Close()
	case command == "hang":
		io.WriteString(ch, "partial\n")
		select {
		case <-done:
		case <-time.After(time.Minute):
		}
		ch.Close()
	default:
		io.WriteString(ch.Stderr(), command+": command not found\n")
		exit(ch, 127)
	}
}

func runShell(ch ssh.Channel) {
	cwd := "/home/pi"
	io.WriteString(ch, "$ ")

	reader := bufio.NewReader(ch)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			ch.Close()
			return
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "pwd":
			io.WriteString(ch, cwd+"\r\n")
		case strings.HasPrefix(line, "cd "):
			cwd = strings.TrimPrefix(line, "cd ")
		case line == "exit":
			io.WriteString(ch, "logout\r\n")
			exit(ch, 0)
			return
		case line == "slow":
			for i := range 3 {
				fmt.Fprintf(ch, "tick %d\r\n", i)
				time.Sleep(30 * time.Millisecond)
			}
		default:
			fmt.Fprintf(ch, "ran: %s\r\n", line)
		}
		io.WriteString(ch, "$ ")
	}
}
