package protocol_test

import (
	"io"
	"testing"

	"github.com/Alia5/jctool/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSPIAccess(t *testing.T) {
	b, err := protocol.EncodeSubcommand(protocol.NewSPIRead(0x6050, 0x0D))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x10, 0x50, 0x60, 0x00, 0x00, 0x0D}, b)

	b, err = protocol.EncodeSubcommand(protocol.NewSPIWrite(0x8010, []byte{0xB2, 0xA1}))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x11, 0x10, 0x80, 0x00, 0x00, 0x02, 0xB2, 0xA1}, b)
}

func TestEncodeSPIAccessInvalidLength(t *testing.T) {
	cases := []protocol.Subcommand{
		protocol.NewSPIRead(0, 0),
		protocol.NewSPIRead(0, protocol.MaxSPIChunk+1),
		protocol.SPIAccess{Op: protocol.SubcmdSPIWrite, Offset: 0, Length: 4, Data: []byte{1, 2}},
	}
	for _, sc := range cases {
		_, err := protocol.EncodeSubcommand(sc)
		assert.ErrorIs(t, err, protocol.ErrInvalidChunkSize)
	}
}

func TestEncodeGenericArgs(t *testing.T) {
	b, err := protocol.EncodeSubcommand(protocol.GenericArgs{Cmd: protocol.SubcmdSetInputMode, Arg1: 0x30})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x30, 0x00}, b)

	_, err = protocol.EncodeSubcommand(protocol.GenericArgs{Cmd: protocol.SubcmdSPIRead})
	assert.ErrorIs(t, err, protocol.ErrUnknownSubcommand)
}

func TestEncodeMCURegisterWriteZeroFills(t *testing.T) {
	sc := protocol.NewMCURegisterWrite(
		protocol.Register{Address: 0x2E00, Value: 0x50},
		protocol.Register{Address: 0x3001, Value: 0x12},
		protocol.Register{Address: 0x3101, Value: 0x34},
	)
	b, err := protocol.EncodeSubcommand(sc)
	require.NoError(t, err)
	require.Len(t, b, 1+protocol.MCUBodySize)

	assert.Equal(t, []byte{0x21, 0x23, 0x04, 0x03}, b[:4])
	assert.Equal(t, []byte{
		0x00, 0x2E, 0x50,
		0x01, 0x30, 0x12,
		0x01, 0x31, 0x34,
	}, b[4:13])
	assert.Equal(t, make([]byte, 6*3), b[13:31], "unused register slots must be zero")
	assert.Equal(t, protocol.MCUChecksum(b[2:38]), b[38])
}

func TestEncodeMCURegisterWriteTooMany(t *testing.T) {
	sc := protocol.NewMCURegisterWrite(make([]protocol.Register, 10)...)
	_, err := protocol.EncodeSubcommand(sc)
	assert.ErrorIs(t, err, protocol.ErrTooManyRegisterPairs)
}

func TestEncodeMCUIRMode(t *testing.T) {
	b, err := protocol.EncodeSubcommand(protocol.NewMCUIRMode(protocol.IRModeImageTransfer, 0xFF, 0x0500, 0x1800))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x21, 0x23, 0x01, 0x07, 0xFF, 0x00, 0x05, 0x00, 0x18}, b[:9])
}

func TestSubcommandRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		sc   protocol.Subcommand
	}{
		{"spi read", protocol.NewSPIRead(0x603D, 0x12)},
		{"spi write", protocol.NewSPIWrite(0x8010, []byte{0xB2, 0xA1, 0x01})},
		{"generic", protocol.GenericArgs{Cmd: protocol.SubcmdSetPlayerLights, Arg1: 0x01}},
		{"mcu mode", protocol.NewMCUMode(protocol.MCUModeIR)},
		{"mcu registers", protocol.NewMCURegisterWrite(protocol.Register{Address: 0x0700, Value: 0x01})},
		{"mcu ir mode", protocol.NewMCUIRMode(protocol.IRModeMoment, 0x03, 0x0500, 0x1800)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := protocol.EncodeSubcommand(tc.sc)
			require.NoError(t, err)
			got, err := protocol.DecodeSubcommand(b)
			require.NoError(t, err)
			assert.Equal(t, tc.sc, got)
		})
	}
}

func TestEncodeRejectsForeignMCUPairs(t *testing.T) {
	cases := []struct {
		name string
		sc   protocol.Subcommand
	}{
		{"registers under set mode", protocol.MCURegisterWrite{MCUCmd: protocol.MCUCmdSetMode, MCUSubcmd: protocol.MCUSubcmdWriteRegisters}},
		{"registers with ir subcmd", protocol.MCURegisterWrite{MCUCmd: protocol.MCUCmdConfigure, MCUSubcmd: protocol.MCUSubcmdSetIRMode}},
		{"mode under configure", protocol.MCUMode{MCUCmd: protocol.MCUCmdConfigure, MCUSubcmd: protocol.MCUSubcmdSetIRMode, Mode: 7}},
		{"mode unknown cmd", protocol.MCUMode{MCUCmd: 0x99}},
		{"ir mode under set mode", protocol.MCUIRMode{MCUCmd: protocol.MCUCmdSetMode, MCUSubcmd: protocol.MCUSubcmdSetIRMode}},
		{"ir mode with register subcmd", protocol.MCUIRMode{MCUCmd: protocol.MCUCmdConfigure, MCUSubcmd: protocol.MCUSubcmdWriteRegisters}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := protocol.EncodeSubcommand(tc.sc)
			assert.ErrorIs(t, err, protocol.ErrUnknownSubcommand)
			assert.Nil(t, b)
		})
	}
}

func TestMCUModeKeepsSubcommandByte(t *testing.T) {
	sc := protocol.MCUMode{MCUCmd: protocol.MCUCmdSetMode, MCUSubcmd: 0x02, Mode: protocol.MCUModeNFC}
	b, err := protocol.EncodeSubcommand(sc)
	require.NoError(t, err)
	got, err := protocol.DecodeSubcommand(b)
	require.NoError(t, err)
	assert.Equal(t, sc, got)
}

func TestDecodeIgnoresReportPadding(t *testing.T) {
	b := make([]byte, 39)
	copy(b, []byte{0x10, 0x00, 0x60, 0x00, 0x00, 0x10})
	sc, err := protocol.DecodeSubcommand(b)
	require.NoError(t, err)
	assert.Equal(t, protocol.NewSPIRead(0x6000, 0x10), sc)
}

func TestDecodeUnknownSubcommand(t *testing.T) {
	sc, err := protocol.DecodeSubcommand([]byte{0x7E, 0x00, 0x00})
	assert.ErrorIs(t, err, protocol.ErrUnknownSubcommand)
	assert.Nil(t, sc)

	body := make([]byte, 1+protocol.MCUBodySize)
	body[0] = 0x21
	body[1] = 0x23
	body[2] = 0x09
	body[38] = protocol.MCUChecksum(body[2:38])
	sc, err = protocol.DecodeSubcommand(body)
	assert.ErrorIs(t, err, protocol.ErrUnknownSubcommand)
	assert.Nil(t, sc)
}

func TestDecodeErrors(t *testing.T) {
	_, err := protocol.DecodeSubcommand(nil)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = protocol.DecodeSubcommand([]byte{0x10, 0x00, 0x60})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = protocol.DecodeSubcommand([]byte{0x10, 0x00, 0x60, 0x00, 0x00, 0x1E})
	assert.ErrorIs(t, err, protocol.ErrInvalidChunkSize)

	b, err := protocol.EncodeSubcommand(protocol.NewMCUMode(protocol.MCUModeStandby))
	require.NoError(t, err)
	b[len(b)-1] ^= 0xFF
	_, err = protocol.DecodeSubcommand(b)
	assert.ErrorIs(t, err, protocol.ErrMCUChecksum)

	b, err = protocol.EncodeSubcommand(protocol.NewMCURegisterWrite())
	require.NoError(t, err)
	b[3] = 10
	b[38] = protocol.MCUChecksum(b[2:38])
	_, err = protocol.DecodeSubcommand(b)
	assert.ErrorIs(t, err, protocol.ErrTooManyRegisterPairs)
}

func TestMCUChecksum(t *testing.T) {
	assert.Equal(t, uint8(0xF4), protocol.MCUChecksum([]byte("123456789")))
	assert.Equal(t, uint8(0x00), protocol.MCUChecksum(make([]byte, 36)))
}

func TestParseReply(t *testing.T) {
	report := protocol.BuildReply(0x42, 0x90, protocol.SubcmdSPIRead, []byte{0x00, 0x60, 0x00, 0x00, 0x02, 0xAA, 0xBB})
	r, err := protocol.ParseReply(report)
	require.NoError(t, err)
	assert.True(t, r.Ack())
	assert.Equal(t, uint8(0x42), r.Timer)
	assert.Equal(t, protocol.SubcmdSPIRead, r.ID)
	assert.Equal(t, []byte{0x00, 0x60, 0x00, 0x00, 0x02, 0xAA, 0xBB}, r.Data)

	_, err = protocol.ParseReply([]byte{0x30, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	assert.ErrorIs(t, err, protocol.ErrUnexpectedReport)

	_, err = protocol.ParseReply([]byte{0x21, 0x00})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
