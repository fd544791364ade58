// Package bridge forwards controller reports over an authenticated,
// encrypted TCP connection. Server exposes any joycon.Transport; Client is a
// joycon.Transport backed by a remote Server.
package bridge

import (
	"crypto/pbkdf2"
	"crypto/rand"
	"crypto/sha256"
	"errors"
)

const (
	GeneratedKeyLength = 16
	base62             = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	pbkdf2Iterations   = 100000
	pbkdf2Salt         = "jctool-bridge-key-v1"
	sessionContext     = "jctool-bridge-session-v1"
)

var ErrEmptyPassword = errors.New("bridge password cannot be empty")

// GenerateKey returns a random base62 password of GeneratedKeyLength chars.
func GenerateKey() (string, error) {
	raw := make([]byte, GeneratedKeyLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	for i, b := range raw {
		raw[i] = base62[int(b)%len(base62)]
	}
	return string(raw), nil
}

// DeriveKey stretches password into a 32 byte key with PBKDF2-SHA256.
func DeriveKey(password string) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	return pbkdf2.Key(sha256.New, password, []byte(pbkdf2Salt), pbkdf2Iterations, 32)
}

// deriveSessionKey mixes both handshake nonces into a per-connection key.
func deriveSessionKey(key, serverNonce, clientNonce []byte) []byte {
	h := sha256.New()
	h.Write(key)
	h.Write(serverNonce)
	h.Write(clientNonce)
	h.Write([]byte(sessionContext))
	return h.Sum(nil)
}
