package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Subcommand is one variant of the payload carried by a CmdRumbleSubcommand
// packet. Exactly one variant is encoded per packet.
type Subcommand interface {
	// ID returns the tag byte written before the variant body.
	ID() SubcommandID
	// appendBody appends the variant bytes that follow the tag.
	appendBody(b []byte) ([]byte, error)
}

// SPIAccess reads or writes a region of SPI flash.
// Op is SubcmdSPIRead or SubcmdSPIWrite; Data is only used for writes and
// must hold exactly Length bytes.
type SPIAccess struct {
	Op     SubcommandID
	Offset uint32
	Length uint8
	Data   []byte
}

// GenericArgs covers the simple subcommands that take up to two argument bytes.
type GenericArgs struct {
	Cmd  SubcommandID
	Arg1 uint8
	Arg2 uint8
}

// MCUMode switches the auxiliary MCU into a mode (standby, NFC, IR...).
type MCUMode struct {
	MCUCmd    uint8
	MCUSubcmd uint8
	Mode      uint8
}

// Register is one MCU register address/value pair.
type Register struct {
	Address uint16
	Value   uint8
}

// MCURegisterWrite writes up to MaxRegisterPairs MCU registers.
type MCURegisterWrite struct {
	MCUCmd    uint8
	MCUSubcmd uint8
	Registers []Register
}

// MCUIRMode configures the IR camera report mode.
type MCUIRMode struct {
	MCUCmd        uint8
	MCUSubcmd     uint8
	IRMode        uint8
	FragmentCount uint8
	MCUMajor      uint16
	MCUMinor      uint16
}

func NewSPIRead(offset uint32, length uint8) SPIAccess {
	return SPIAccess{Op: SubcmdSPIRead, Offset: offset, Length: length}
}

func NewSPIWrite(offset uint32, data []byte) SPIAccess {
	return SPIAccess{Op: SubcmdSPIWrite, Offset: offset, Length: uint8(len(data)), Data: data}
}

func NewMCUMode(mode uint8) MCUMode {
	return MCUMode{MCUCmd: MCUCmdSetMode, MCUSubcmd: MCUSubcmdSetMode, Mode: mode}
}

func NewMCURegisterWrite(regs ...Register) MCURegisterWrite {
	return MCURegisterWrite{MCUCmd: MCUCmdConfigure, MCUSubcmd: MCUSubcmdWriteRegisters, Registers: regs}
}

func NewMCUIRMode(irMode, fragments uint8, major, minor uint16) MCUIRMode {
	return MCUIRMode{
		MCUCmd:        MCUCmdConfigure,
		MCUSubcmd:     MCUSubcmdSetIRMode,
		IRMode:        irMode,
		FragmentCount: fragments,
		MCUMajor:      major,
		MCUMinor:      minor,
	}
}

func (s SPIAccess) ID() SubcommandID { return s.Op }
func (g GenericArgs) ID() SubcommandID { return g.Cmd }
func (MCUMode) ID() SubcommandID { return SubcmdMCUConfig }
func (MCURegisterWrite) ID() SubcommandID { return SubcmdMCUConfig }
func (MCUIRMode) ID() SubcommandID { return SubcmdMCUConfig }

func (s SPIAccess) appendBody(b []byte) ([]byte, error) {
	if s.Op != SubcmdSPIRead && s.Op != SubcmdSPIWrite {
		return nil, fmt.Errorf("%w: 0x%02X is not an SPI operation", ErrUnknownSubcommand, uint8(s.Op))
	}
	if s.Length < 1 || s.Length > MaxSPIChunk {
		return nil, fmt.Errorf("%w: length %d outside [1, %d]", ErrInvalidChunkSize, s.Length, MaxSPIChunk)
	}
	b = binary.LittleEndian.AppendUint32(b, s.Offset)
	b = append(b, s.Length)
	if s.Op == SubcmdSPIWrite {
		if len(s.Data) != int(s.Length) {
			return nil, fmt.Errorf("%w: length %d but %d data bytes", ErrInvalidChunkSize, s.Length, len(s.Data))
		}
		b = append(b, s.Data...)
	}
	return b, nil
}

func (g GenericArgs) appendBody(b []byte) ([]byte, error) {
	if !genericArgIDs[g.Cmd] {
		return nil, fmt.Errorf("%w: 0x%02X does not take generic arguments", ErrUnknownSubcommand, uint8(g.Cmd))
	}
	return append(b, g.Arg1, g.Arg2), nil
}

func (m MCUMode) appendBody(b []byte) ([]byte, error) {
	if m.MCUCmd != MCUCmdSetMode {
		return nil, mcuPairError("mode", m.MCUCmd, m.MCUSubcmd)
	}
	return appendMCU(b, m.MCUCmd, []byte{m.MCUSubcmd, m.Mode}), nil
}

func (m MCURegisterWrite) appendBody(b []byte) ([]byte, error) {
	if m.MCUCmd != MCUCmdConfigure || m.MCUSubcmd != MCUSubcmdWriteRegisters {
		return nil, mcuPairError("register write", m.MCUCmd, m.MCUSubcmd)
	}
	if len(m.Registers) > MaxRegisterPairs {
		return nil, fmt.Errorf("%w: %d pairs, max %d", ErrTooManyRegisterPairs, len(m.Registers), MaxRegisterPairs)
	}
	args := make([]byte, 2, 2+MaxRegisterPairs*3)
	args[0] = m.MCUSubcmd
	args[1] = uint8(len(m.Registers))
	for i := 0; i < MaxRegisterPairs; i++ {
		var r Register
		if i < len(m.Registers) {
			r = m.Registers[i]
		}
		args = binary.LittleEndian.AppendUint16(args, r.Address)
		args = append(args, r.Value)
	}
	return appendMCU(b, m.MCUCmd, args), nil
}

func (m MCUIRMode) appendBody(b []byte) ([]byte, error) {
	if m.MCUCmd != MCUCmdConfigure || m.MCUSubcmd != MCUSubcmdSetIRMode {
		return nil, mcuPairError("ir mode", m.MCUCmd, m.MCUSubcmd)
	}
	args := []byte{m.MCUSubcmd, m.IRMode, m.FragmentCount}
	args = binary.LittleEndian.AppendUint16(args, m.MCUMajor)
	args = binary.LittleEndian.AppendUint16(args, m.MCUMinor)
	return appendMCU(b, m.MCUCmd, args), nil
}

// mcuPairError rejects mcu_cmd/mcu_subcmd pairs that would decode as a
// different variant.
func mcuPairError(variant string, mcuCmd, mcuSubcmd uint8) error {
	return fmt.Errorf("%w: mcu command 0x%02X/0x%02X is not a %s", ErrUnknownSubcommand, mcuCmd, mcuSubcmd, variant)
}

// appendMCU writes mcu_cmd, the zero padded argument area and its CRC.
func appendMCU(b []byte, mcuCmd uint8, args []byte) []byte {
	area := make([]byte, mcuArgsSize)
	copy(area, args)
	b = append(b, mcuCmd)
	b = append(b, area...)
	return append(b, MCUChecksum(area))
}

// EncodeSubcommand encodes sc as its tag byte followed by the variant body.
func EncodeSubcommand(sc Subcommand) ([]byte, error) {
	if sc == nil {
		return nil, fmt.Errorf("%w: nil subcommand", ErrUnknownSubcommand)
	}
	b, err := sc.appendBody([]byte{byte(sc.ID())})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", sc.ID(), err)
	}
	return b, nil
}

// DecodeSubcommand parses a tagged subcommand payload. Trailing bytes beyond
// the variant (report padding) are ignored.
func DecodeSubcommand(data []byte) (Subcommand, error) {
	if len(data) < 1 {
		return nil, io.ErrUnexpectedEOF
	}
	id := SubcommandID(data[0])
	body := data[1:]

	switch {
	case id == SubcmdSPIRead || id == SubcmdSPIWrite:
		return decodeSPI(id, body)
	case id == SubcmdMCUConfig:
		return decodeMCU(body)
	case genericArgIDs[id]:
		if len(body) < 2 {
			return nil, io.ErrUnexpectedEOF
		}
		return GenericArgs{Cmd: id, Arg1: body[0], Arg2: body[1]}, nil
	}
	return nil, fmt.Errorf("%w: tag 0x%02X", ErrUnknownSubcommand, uint8(id))
}

func decodeSPI(id SubcommandID, body []byte) (Subcommand, error) {
	if len(body) < spiHeaderSize {
		return nil, io.ErrUnexpectedEOF
	}
	s := SPIAccess{
		Op:     id,
		Offset: binary.LittleEndian.Uint32(body[0:4]),
		Length: body[4],
	}
	if s.Length < 1 || s.Length > MaxSPIChunk {
		return nil, fmt.Errorf("%w: length %d outside [1, %d]", ErrInvalidChunkSize, s.Length, MaxSPIChunk)
	}
	if id == SubcmdSPIWrite {
		end := spiHeaderSize + int(s.Length)
		if len(body) < end {
			return nil, io.ErrUnexpectedEOF
		}
		s.Data = append([]byte(nil), body[spiHeaderSize:end]...)
	}
	return s, nil
}

func decodeMCU(body []byte) (Subcommand, error) {
	if len(body) < MCUBodySize {
		return nil, io.ErrUnexpectedEOF
	}
	mcuCmd := body[0]
	args := body[1 : 1+mcuArgsSize]
	if crc := body[1+mcuArgsSize]; crc != MCUChecksum(args) {
		return nil, fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrMCUChecksum, crc, MCUChecksum(args))
	}
	mcuSubcmd := args[0]

	switch {
	case mcuCmd == MCUCmdSetMode:
		return MCUMode{MCUCmd: mcuCmd, MCUSubcmd: mcuSubcmd, Mode: args[1]}, nil

	case mcuCmd == MCUCmdConfigure && mcuSubcmd == MCUSubcmdWriteRegisters:
		count := int(args[1])
		if count > MaxRegisterPairs {
			return nil, fmt.Errorf("%w: %d pairs, max %d", ErrTooManyRegisterPairs, count, MaxRegisterPairs)
		}
		regs := make([]Register, count)
		for i := range regs {
			p := args[2+i*3:]
			regs[i] = Register{Address: binary.LittleEndian.Uint16(p[0:2]), Value: p[2]}
		}
		return MCURegisterWrite{MCUCmd: mcuCmd, MCUSubcmd: mcuSubcmd, Registers: regs}, nil

	case mcuCmd == MCUCmdConfigure && mcuSubcmd == MCUSubcmdSetIRMode:
		return MCUIRMode{
			MCUCmd:        mcuCmd,
			MCUSubcmd:     mcuSubcmd,
			IRMode:        args[1],
			FragmentCount: args[2],
			MCUMajor:      binary.LittleEndian.Uint16(args[3:5]),
			MCUMinor:      binary.LittleEndian.Uint16(args[5:7]),
		}, nil
	}
	return nil, fmt.Errorf("%w: mcu command 0x%02X/0x%02X", ErrUnknownSubcommand, mcuCmd, mcuSubcmd)
}
