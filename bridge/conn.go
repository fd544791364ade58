package bridge

import (
	"bufio"
	"bytes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// maxFrameSize bounds one sealed frame; reports are far smaller.
const maxFrameSize = 64 * 1024

var ErrReplayedFrame = errors.New("bridge: frame nonce out of order")

// Nonce prefixes keep both directions of a connection in disjoint nonce spaces.
const (
	dirClient byte = 0x01
	dirServer byte = 0x02
)

// sealedConn encrypts every Write as one frame:
//
//	[len u32 BE][nonce 12][ciphertext+tag]
//
// The nonce is the sender direction byte followed by a 64-bit counter.
type sealedConn struct {
	net.Conn
	r    io.Reader
	aead cipher.AEAD

	sendDir, recvDir byte

	wmu     sync.Mutex
	sendCtr uint64

	rmu     sync.Mutex
	recvCtr uint64
	pending bytes.Buffer
}

// seal wraps conn. r must be the reader that consumed the handshake so that
// buffered bytes are not lost.
func seal(conn net.Conn, r *bufio.Reader, sessionKey []byte, client bool) (net.Conn, error) {
	aead, err := chacha20poly1305.New(sessionKey)
	if err != nil {
		return nil, err
	}
	c := &sealedConn{Conn: conn, r: r, aead: aead, sendDir: dirServer, recvDir: dirClient}
	if client {
		c.sendDir, c.recvDir = dirClient, dirServer
	}
	return c, nil
}

func (c *sealedConn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	nonce := make([]byte, chacha20poly1305.NonceSize)
	nonce[0] = c.sendDir
	binary.BigEndian.PutUint64(nonce[4:], c.sendCtr)
	c.sendCtr++

	frame := make([]byte, 4, 4+len(nonce)+len(p)+c.aead.Overhead())
	frame = append(frame, nonce...)
	frame = c.aead.Seal(frame, nonce, p, nil)
	binary.BigEndian.PutUint32(frame[:4], uint32(len(frame)-4))

	if _, err := c.Conn.Write(frame); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *sealedConn) Read(p []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	if c.pending.Len() == 0 {
		if err := c.readFrame(); err != nil {
			return 0, err
		}
	}
	return c.pending.Read(p)
}

func (c *sealedConn) readFrame() error {
	var hdr [4]byte
	if _, err := io.ReadFull(c.r, hdr[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n < chacha20poly1305.NonceSize || n > maxFrameSize {
		return fmt.Errorf("bridge: invalid frame length %d", n)
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(c.r, frame); err != nil {
		return io.ErrUnexpectedEOF
	}

	nonce := frame[:chacha20poly1305.NonceSize]
	ctr := binary.BigEndian.Uint64(nonce[4:])
	if nonce[0] != c.recvDir || ctr != c.recvCtr {
		return ErrReplayedFrame
	}
	pt, err := c.aead.Open(nil, nonce, frame[chacha20poly1305.NonceSize:], nil)
	if err != nil {
		return err
	}
	c.recvCtr++
	c.pending.Write(pt)
	return nil
}
