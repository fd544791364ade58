package bridge

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Messages inside the sealed stream:
//
//	hello    S->C  [max report size u16]
//	request  C->S  [len u16][report]
//	response S->C  [status u8][len u16][report or error text]
const (
	statusOK    byte = 0x00
	statusError byte = 0x01

	maxMessage = 0xFFFF
)

// RemoteError is an error returned by the transport behind a Server.
type RemoteError struct {
	Msg string
}

func (e *RemoteError) Error() string { return "bridge: remote: " + e.Msg }

func writeHello(w io.Writer, maxReportSize int) error {
	_, err := w.Write(binary.BigEndian.AppendUint16(nil, uint16(maxReportSize)))
	return err
}

func readHello(r io.Reader) (int, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("read hello: %w", err)
	}
	return int(binary.BigEndian.Uint16(b[:])), nil
}

func writeRequest(w io.Writer, report []byte) error {
	if len(report) > maxMessage {
		return fmt.Errorf("bridge: report too large (%d bytes)", len(report))
	}
	msg := binary.BigEndian.AppendUint16(make([]byte, 0, 2+len(report)), uint16(len(report)))
	_, err := w.Write(append(msg, report...))
	return err
}

func readRequest(r io.Reader) ([]byte, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, err
	}
	report := make([]byte, binary.BigEndian.Uint16(b[:]))
	if _, err := io.ReadFull(r, report); err != nil {
		return nil, io.ErrUnexpectedEOF
	}
	return report, nil
}

func writeResponse(w io.Writer, report []byte, rerr error) error {
	status, body := statusOK, report
	if rerr != nil {
		status, body = statusError, []byte(rerr.Error())
	}
	if len(body) > maxMessage {
		body = body[:maxMessage]
	}
	msg := make([]byte, 0, 3+len(body))
	msg = append(msg, status)
	msg = binary.BigEndian.AppendUint16(msg, uint16(len(body)))
	_, err := w.Write(append(msg, body...))
	return err
}

func readResponse(r io.Reader) ([]byte, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	body := make([]byte, binary.BigEndian.Uint16(hdr[1:]))
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read response: %w", io.ErrUnexpectedEOF)
	}
	switch hdr[0] {
	case statusOK:
		return body, nil
	case statusError:
		return nil, &RemoteError{Msg: string(body)}
	}
	return nil, errors.New("bridge: invalid response status")
}
