// Package sshtest provides a minimal in-process SSH server for transport
// tests. It accepts any credentials and answers each exec request with a
// scripted response, so client-side session handling can be exercised
// without a real fleet.
package sshtest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/binary"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

// Response is the scripted outcome of one exec request.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Delay    time.Duration
}

// Handler maps an exec command line to its response.
type Handler func(cmd string) Response

// Start launches the server on listenAddr; 127.0.0.1:0 binds an ephemeral
// port, reported back in addr. stop closes the listener and waits for the
// accept loop to drain.
func Start(listenAddr string, handler Handler) (addr string, stop func(), err error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return "", nil, err
	}

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		_ = ln.Close()
		return "", nil, err
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		_ = ln.Close()
		return "", nil, err
	}
	cfg := &ssh.ServerConfig{NoClientAuth: true}
	cfg.AddHostKey(signer)

	stopCh := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			_ = ln.(*net.TCPListener).SetDeadline(time.Now().Add(500 * time.Millisecond))
			conn, err := ln.Accept()
			select {
			case <-stopCh:
				if conn != nil {
					_ = conn.Close()
				}
				return
			default:
			}
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				continue
			}
			go handleConn(conn, cfg, handler)
		}
	}()

	stop = func() {
		close(stopCh)
		_ = ln.Close()
		<-done
	}
	return ln.Addr().String(), stop, nil
}

func handleConn(raw net.Conn, cfg *ssh.ServerConfig, handler Handler) {
	sc, chans, reqs, err := ssh.NewServerConn(raw, cfg)
	if err != nil {
		_ = raw.Close()
		return
	}
	_ = sc
	go ssh.DiscardRequests(reqs)
	for ch := range chans {
		if ch.ChannelType() != "session" {
			_ = ch.Reject(ssh.UnknownChannelType, "")
			continue
		}
		c, requests, err := ch.Accept()
		if err != nil {
			continue
		}
		go handleSession(c, requests, handler)
	}
}

// handleSession answers exactly one exec request, then closes the channel.
func handleSession(ch ssh.Channel, in <-chan *ssh.Request, handler Handler) {
	defer func() { _ = ch.Close() }()
	for req := range in {
		if req.Type != "exec" {
			_ = req.Reply(false, nil)
			continue
		}
		cmd := parseExecPayload(req.Payload)
		_ = req.Reply(true, nil)
		resp := handler(cmd)
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		if resp.Stdout != "" {
			_, _ = ch.Write([]byte(resp.Stdout))
		}
		if resp.Stderr != "" {
			_, _ = ch.Stderr().Write([]byte(resp.Stderr))
		}
		_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(exitStatusMsg{Status: uint32(resp.ExitCode)}))
		return
	}
}

// exitStatusMsg is the RFC 4254 exit-status request payload.
type exitStatusMsg struct {
	Status uint32
}

// parseExecPayload extracts the command string from the exec request
// payload: a big-endian uint32 length followed by that many bytes.
func parseExecPayload(payload []byte) string {
	if len(payload) < 4 {
		return ""
	}
	n := binary.BigEndian.Uint32(payload)
	if uint32(len(payload)-4) < n {
		return string(payload[4:])
	}
	return string(payload[4 : 4+n])
}
