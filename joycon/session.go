// Package joycon drives one controller over a report Transport: it owns the
// packet sequence, frames subcommands and rumble, and checks replies.
package joycon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Alia5/jctool/internal/log"
	"github.com/Alia5/jctool/protocol"
	"github.com/Alia5/jctool/rumble"
)

var (
	ErrUnexpectedReply = errors.New("unexpected reply")
	ErrNack            = errors.New("subcommand not acknowledged")
)

// Transport exchanges one output report for the controller's response report.
// Device discovery, retries and timeouts are the implementation's concern.
type Transport interface {
	Exchange(ctx context.Context, report []byte) ([]byte, error)
	MaxReportSize() int
}

// Session serializes commands to one controller. It is safe for concurrent
// use.
type Session struct {
	mu        sync.Mutex
	transport Transport
	framer    *protocol.Framer
	rumbleL   [4]byte
	rumbleR   [4]byte
	logger    *slog.Logger
	raw       log.RawLogger
}

// NewSession creates a Session over t. A nil logger discards log output and
// a nil raw logger disables report dumps.
func NewSession(t Transport, logger *slog.Logger, raw log.RawLogger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if raw == nil {
		raw = log.NewRaw(nil)
	}
	return &Session{
		transport: t,
		framer:    protocol.NewFramer(t.MaxReportSize()),
		rumbleL:   rumble.IdleCode,
		rumbleR:   rumble.IdleCode,
		logger:    logger,
		raw:       raw,
	}
}

// Subcommand sends sc and returns the matching reply. The reply must echo the
// subcommand id (ErrUnexpectedReply) and carry an ACK (ErrNack).
func (s *Session) Subcommand(ctx context.Context, sc protocol.Subcommand) (protocol.Reply, error) {
	payload, err := protocol.EncodeSubcommand(sc)
	if err != nil {
		return protocol.Reply{}, err
	}
	return s.send(ctx, payload)
}

// SubcommandRaw sends payload (tag byte and body) without validating it
// against the known variants. Replies are checked like Subcommand; on a NACK
// the reply is returned together with ErrNack.
func (s *Session) SubcommandRaw(ctx context.Context, payload []byte) (protocol.Reply, error) {
	if len(payload) == 0 {
		return protocol.Reply{}, fmt.Errorf("%w: empty payload", protocol.ErrUnknownSubcommand)
	}
	return s.send(ctx, payload)
}

func (s *Session) send(ctx context.Context, payload []byte) (protocol.Reply, error) {
	id := protocol.SubcommandID(payload[0])

	s.mu.Lock()
	defer s.mu.Unlock()

	pkt, err := s.framer.Frame(protocol.CmdRumbleSubcommand, s.rumbleL, s.rumbleR, payload)
	if err != nil {
		return protocol.Reply{}, fmt.Errorf("subcommand %s: %w", id, err)
	}
	s.logger.Debug("sending subcommand", "id", id, "seq", pkt[protocol.OffsetSequence])

	resp, err := s.exchange(ctx, pkt)
	if err != nil {
		return protocol.Reply{}, fmt.Errorf("subcommand %s: %w", id, err)
	}

	reply, err := protocol.ParseReply(resp)
	if err != nil {
		return protocol.Reply{}, fmt.Errorf("subcommand %s: %w", id, errors.Join(ErrUnexpectedReply, err))
	}
	if reply.ID != id {
		return reply, fmt.Errorf("%w: sent %s, reply for %s", ErrUnexpectedReply, id, reply.ID)
	}
	if !reply.Ack() {
		return reply, fmt.Errorf("%w: %s (ack 0x%02X)", ErrNack, id, reply.AckByte)
	}
	return reply, nil
}

// Rumble sends a rumble-only packet and keeps the codes for subsequent
// subcommand packets. The controller's response is decoded as an input
// report.
func (s *Session) Rumble(ctx context.Context, left, right rumble.Sample) (InputReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rumbleL, s.rumbleR = rumble.Encode(left, right)
	pkt, err := s.framer.Frame(protocol.CmdRumbleOnly, s.rumbleL, s.rumbleR, nil)
	if err != nil {
		return InputReport{}, err
	}
	s.logger.Log(ctx, log.LevelTrace, "rumble", "left", fmt.Sprintf("% x", s.rumbleL), "right", fmt.Sprintf("% x", s.rumbleR))

	resp, err := s.exchange(ctx, pkt)
	if err != nil {
		return InputReport{}, fmt.Errorf("rumble: %w", err)
	}
	if len(resp) == 0 {
		return InputReport{}, nil
	}
	return ParseInputReport(resp)
}

func (s *Session) exchange(ctx context.Context, pkt []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.raw.Log(log.HostToDevice, pkt)
	resp, err := s.transport.Exchange(ctx, pkt)
	if err != nil {
		return nil, err
	}
	s.raw.Log(log.DeviceToHost, resp)
	return resp, nil
}
