package bridge

import (
	"bufio"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
)

const (
	handshakeMagic = "JCB1\x00"
	nonceSize      = 32
	authContext    = "jctool-bridge-auth-v1"

	respOK     = "OK\x00"
	respDenied = "NO\x00"
)

var (
	ErrUnauthorized   = errors.New("bridge: invalid password")
	ErrBadHandshake   = errors.New("bridge: malformed handshake")
	ErrServerIdentity = errors.New("bridge: server failed to prove key")
)

func handshakeMAC(key []byte, parts ...[]byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(authContext))
	for _, p := range parts {
		mac.Write(p)
	}
	return mac.Sum(nil)
}

func newNonce() ([]byte, error) {
	n := make([]byte, nonceSize)
	if _, err := rand.Read(n); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return n, nil
}

// clientHandshake proves knowledge of key to the server and checks the
// server's proof in return.
//
//	C->S: magic, client nonce, HMAC(client nonce)
//	S->C: "OK\0", server nonce, HMAC(server nonce, client nonce)
func clientHandshake(r *bufio.Reader, w io.Writer, key []byte) (clientNonce, serverNonce []byte, err error) {
	clientNonce, err = newNonce()
	if err != nil {
		return nil, nil, err
	}

	msg := append([]byte(handshakeMagic), clientNonce...)
	msg = append(msg, handshakeMAC(key, clientNonce)...)
	if _, err := w.Write(msg); err != nil {
		return nil, nil, fmt.Errorf("write handshake: %w", err)
	}

	status := make([]byte, len(respOK))
	if _, err := io.ReadFull(r, status); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, nil, ErrUnauthorized
		}
		return nil, nil, fmt.Errorf("read handshake response: %w", err)
	}
	switch string(status) {
	case respOK:
	case respDenied:
		return nil, nil, ErrUnauthorized
	default:
		return nil, nil, fmt.Errorf("%w: response %q", ErrBadHandshake, status)
	}

	body := make([]byte, nonceSize+sha256.Size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, fmt.Errorf("read server nonce: %w", err)
	}
	serverNonce = body[:nonceSize]
	if !hmac.Equal(body[nonceSize:], handshakeMAC(key, serverNonce, clientNonce)) {
		return nil, nil, ErrServerIdentity
	}
	return clientNonce, serverNonce, nil
}

// serverHandshake verifies the client's proof. On a bad password it answers
// respDenied and returns ErrUnauthorized.
func serverHandshake(r *bufio.Reader, w io.Writer, key []byte) (clientNonce, serverNonce []byte, err error) {
	msg := make([]byte, len(handshakeMagic)+nonceSize+sha256.Size)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBadHandshake, err)
	}
	if string(msg[:len(handshakeMagic)]) != handshakeMagic {
		return nil, nil, fmt.Errorf("%w: bad magic", ErrBadHandshake)
	}
	clientNonce = msg[len(handshakeMagic) : len(handshakeMagic)+nonceSize]
	if !hmac.Equal(msg[len(handshakeMagic)+nonceSize:], handshakeMAC(key, clientNonce)) {
		_, _ = w.Write([]byte(respDenied))
		return nil, nil, ErrUnauthorized
	}

	serverNonce, err = newNonce()
	if err != nil {
		return nil, nil, err
	}
	resp := append([]byte(respOK), serverNonce...)
	resp = append(resp, handshakeMAC(key, serverNonce, clientNonce)...)
	if _, err := w.Write(resp); err != nil {
		return nil, nil, fmt.Errorf("write handshake response: %w", err)
	}
	return clientNonce, serverNonce, nil
}
