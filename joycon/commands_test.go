package joycon_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/Alia5/jctool/emulator"
	"github.com/Alia5/jctool/joycon"
	"github.com/Alia5/jctool/protocol"
	"github.com/Alia5/jctool/rumble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatteryVoltage(t *testing.T) {
	s, _ := newEmulated(t, emulator.WithBatteryVoltage(0x0618))
	b, err := s.BatteryVoltage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0618), b.Raw)
	assert.Equal(t, 3900.0, b.MilliVolts())
	assert.Equal(t, 66, b.Percent())
}

func TestBatteryPercentBounds(t *testing.T) {
	cases := []struct {
		raw  uint16
		want int
	}{
		{0, 0},
		{1320, 0}, // 3.3 V
		{1500, 50},
		{1680, 100}, // 4.2 V
		{0xFFFF, 100},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, joycon.Battery{Raw: tc.raw}.Percent(), "raw %d", tc.raw)
	}
}

func TestBatteryVoltageShortReply(t *testing.T) {
	tr := &scripted{replies: [][]byte{protocol.BuildReply(0, 0xD0, protocol.SubcmdGetRegulatedVoltage, []byte{0x18})}}
	_, err := joycon.NewSession(tr, nil, nil).BatteryVoltage(context.Background())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestTemperature(t *testing.T) {
	s, emu := newEmulated(t, emulator.WithTemperature(-80))
	c, err := s.Temperature(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20.0, c)

	args, ok := emu.LastArgs(protocol.SubcmdEnableIMU)
	require.True(t, ok)
	assert.Equal(t, uint8(0), args[0], "imu disabled again")
}

func TestTemperatureNeedsIMU(t *testing.T) {
	s, _ := newEmulated(t)
	_, err := s.Subcommand(context.Background(), protocol.GenericArgs{Cmd: protocol.SubcmdReadIMURegister, Arg1: 0x20, Arg2: 2})
	assert.ErrorIs(t, err, joycon.ErrNack)
}

func TestSubcommandRaw(t *testing.T) {
	s, emu := newEmulated(t)
	ctx := context.Background()

	reply, err := s.SubcommandRaw(ctx, []byte{byte(protocol.SubcmdSetPlayerLights), 0x0F})
	require.NoError(t, err)
	assert.Equal(t, protocol.SubcmdSetPlayerLights, reply.ID)
	args, _ := emu.LastArgs(protocol.SubcmdSetPlayerLights)
	assert.Equal(t, uint8(0x0F), args[0])

	reply, err = s.SubcommandRaw(ctx, []byte{0x7E, 0x01})
	assert.ErrorIs(t, err, joycon.ErrNack)
	assert.Equal(t, protocol.SubcommandID(0x7E), reply.ID)

	_, err = s.SubcommandRaw(ctx, nil)
	assert.ErrorIs(t, err, protocol.ErrUnknownSubcommand)

	_, err = s.SubcommandRaw(ctx, make([]byte, protocol.DefaultMaxReportSize))
	assert.ErrorIs(t, err, protocol.ErrPayloadTooLarge)
}

func TestPlayRumble(t *testing.T) {
	emu, err := emulator.New(nil)
	require.NoError(t, err)
	tr := &tap{Transport: emu}
	s := joycon.NewSession(tr, nil, nil)

	steps := []rumble.Step{
		rumble.Tone(320, 0.5, time.Millisecond),
		rumble.Tone(160, 0.5, time.Millisecond),
	}
	require.NoError(t, s.PlayRumble(context.Background(), steps))

	require.Len(t, tr.sent, 3)
	for i, st := range steps {
		l, r := rumble.Encode(st.Left, st.Right)
		assert.Equal(t, byte(protocol.CmdRumbleOnly), tr.sent[i][protocol.OffsetCmd])
		assert.Equal(t, l[:], tr.sent[i][protocol.OffsetRumbleLeft:protocol.OffsetRumbleRight])
		assert.Equal(t, r[:], tr.sent[i][protocol.OffsetRumbleRight:protocol.OffsetPayload])
	}
	l, r := emu.Rumble()
	assert.Equal(t, rumble.IdleCode, l)
	assert.Equal(t, rumble.IdleCode, r)
}

func TestPlayRumbleCancelStopsMotors(t *testing.T) {
	s, emu := newEmulated(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := s.PlayRumble(ctx, []rumble.Step{rumble.Tone(320, 1, time.Hour)})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	l, r := emu.Rumble()
	assert.Equal(t, rumble.IdleCode, l)
	assert.Equal(t, rumble.IdleCode, r)
}
