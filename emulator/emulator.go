// Package emulator is an in-memory controller that answers command packets
// from a flash image. It implements joycon.Transport.
package emulator

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Alia5/jctool/protocol"
	"github.com/Alia5/jctool/rumble"
	"github.com/Alia5/jctool/stick"
)

// FlashSize is the size of the emulated SPI flash.
const FlashSize = 0x80000

var ErrImageSize = errors.New("flash image size mismatch")

// Ack bytes used in subcommand replies.
const (
	ackOK         = 0x80
	ackNack       = 0x00
	ackDeviceInfo = 0x82
	ackSPIRead    = 0x90
	ackMCU        = 0xA0
	ackIMURead    = 0xC0
	ackVoltage    = 0xD0
)

// SPI write status bytes.
const (
	writeOK        = 0x00
	writeProtected = 0x01
)

type writeRange struct{ start, end uint32 }

// Controller emulates one controller.
type Controller struct {
	mu sync.Mutex

	flash      []byte
	reportSize int
	devType    uint8
	mac        [6]byte
	firmware   [2]uint8
	logger     *slog.Logger

	shortRead int
	protected []writeRange

	timer     uint8
	leftStick [3]byte
	rightStk  [3]byte
	rumbleL   [4]byte
	rumbleR   [4]byte
	mcuMode   uint8
	irMode    uint8
	registers map[uint16]uint8
	generic   map[protocol.SubcommandID][2]uint8

	voltage uint16
	imu     [0x80]uint8
}

// Option configures a Controller.
type Option func(*Controller)

// WithReportSize sets the report size returned by MaxReportSize and used to
// pad responses.
func WithReportSize(n int) Option {
	return func(c *Controller) {
		if n >= protocol.ReplyOffsetData {
			c.reportSize = n
		}
	}
}

// WithDevice sets the controller type and MAC address returned by device info.
func WithDevice(devType uint8, mac [6]byte) Option {
	return func(c *Controller) {
		c.devType = devType
		c.mac = mac
	}
}

// WithShortReads caps the number of bytes returned per SPI read reply.
func WithShortReads(n int) Option {
	return func(c *Controller) { c.shortRead = n }
}

// WithWriteProtect rejects SPI writes that touch [start, end).
func WithWriteProtect(start, end uint32) Option {
	return func(c *Controller) {
		c.protected = append(c.protected, writeRange{start, end})
	}
}

// WithBatteryVoltage sets the regulated voltage reading in 2.5 mV units.
func WithBatteryVoltage(raw uint16) Option {
	return func(c *Controller) { c.voltage = raw }
}

// WithTemperature sets the IMU temperature register (16 LSB per degree,
// 0 = 25 °C).
func WithTemperature(raw int16) Option {
	return func(c *Controller) {
		binary.LittleEndian.PutUint16(c.imu[imuRegTemperature:], uint16(raw))
	}
}

// IMU register holding the temperature.
const imuRegTemperature = 0x20

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Controller backed by a copy of image. A nil image starts
// with erased (0xFF) flash.
func New(image []byte, opts ...Option) (*Controller, error) {
	flash := make([]byte, FlashSize)
	switch len(image) {
	case 0:
		for i := range flash {
			flash[i] = 0xFF
		}
	case FlashSize:
		copy(flash, image)
	default:
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrImageSize, len(image), FlashSize)
	}

	centered, _ := stick.Encode(0x800, 0x800)
	c := &Controller{
		flash:      flash,
		reportSize: protocol.DefaultMaxReportSize,
		devType:    0x03,
		mac:        [6]byte{0x98, 0xB6, 0xE9, 0x00, 0x00, 0x01},
		firmware:   [2]uint8{0x04, 0x21},
		logger:     slog.New(slog.DiscardHandler),
		leftStick:  centered,
		rightStk:   centered,
		rumbleL:    rumble.IdleCode,
		rumbleR:    rumble.IdleCode,
		mcuMode:    protocol.MCUModeStandby,
		registers:  map[uint16]uint8{},
		generic:    map[protocol.SubcommandID][2]uint8{},
		voltage:    0x0618,
	}
	binary.LittleEndian.PutUint16(c.imu[imuRegTemperature:], 0x00A0)
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Controller) MaxReportSize() int { return c.reportSize }

// Exchange answers one command packet.
func (c *Controller) Exchange(ctx context.Context, report []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(report) < protocol.HeaderSize {
		return nil, fmt.Errorf("emulator: short packet (%d bytes)", len(report))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.timer++
	copy(c.rumbleL[:], report[protocol.OffsetRumbleLeft:protocol.OffsetRumbleRight])
	copy(c.rumbleR[:], report[protocol.OffsetRumbleRight:protocol.OffsetPayload])

	switch report[protocol.OffsetCmd] {
	case protocol.CmdRumbleSubcommand:
		return c.subcommand(report[protocol.OffsetPayload:]), nil
	case protocol.CmdRumbleOnly:
		return c.inputReport(protocol.ReportStandardFull), nil
	case protocol.CmdMCURequest:
		return c.inputReport(protocol.ReportNFCIR), nil
	}
	return nil, fmt.Errorf("emulator: unsupported command 0x%02X", report[protocol.OffsetCmd])
}

func (c *Controller) subcommand(payload []byte) []byte {
	sc, err := protocol.DecodeSubcommand(payload)
	if err != nil {
		c.logger.Debug("emulator rejected subcommand", "error", err)
		var id protocol.SubcommandID
		if len(payload) > 0 {
			id = protocol.SubcommandID(payload[0])
		}
		return c.reply(ackNack, id, nil)
	}

	switch v := sc.(type) {
	case protocol.SPIAccess:
		return c.spi(v)
	case protocol.GenericArgs:
		c.generic[v.Cmd] = [2]uint8{v.Arg1, v.Arg2}
		switch v.Cmd {
		case protocol.SubcmdDeviceInfo:
			return c.reply(ackDeviceInfo, v.Cmd, c.deviceInfo())
		case protocol.SubcmdGetRegulatedVoltage:
			return c.reply(ackVoltage, v.Cmd, binary.LittleEndian.AppendUint16(nil, c.voltage))
		case protocol.SubcmdReadIMURegister:
			return c.readIMU(v.Arg1, v.Arg2)
		}
		return c.reply(ackOK, v.Cmd, nil)
	case protocol.MCUMode:
		c.mcuMode = v.Mode
		return c.reply(ackMCU, v.ID(), c.mcuStatus())
	case protocol.MCUIRMode:
		c.irMode = v.IRMode
		return c.reply(ackMCU, v.ID(), c.mcuStatus())
	case protocol.MCURegisterWrite:
		for _, r := range v.Registers {
			c.registers[r.Address] = r.Value
		}
		return c.reply(ackMCU, v.ID(), c.mcuStatus())
	}
	return c.reply(ackNack, sc.ID(), nil)
}

func (c *Controller) spi(v protocol.SPIAccess) []byte {
	end := uint64(v.Offset) + uint64(v.Length)
	if end > FlashSize {
		return c.reply(ackNack, v.Op, nil)
	}

	if v.Op == protocol.SubcmdSPIWrite {
		if c.isProtected(v.Offset, uint32(end)) {
			return c.reply(ackOK, v.Op, []byte{writeProtected})
		}
		copy(c.flash[v.Offset:end], v.Data)
		return c.reply(ackOK, v.Op, []byte{writeOK})
	}

	n := int(v.Length)
	if c.shortRead > 0 && n > c.shortRead {
		n = c.shortRead
	}
	data := binary.LittleEndian.AppendUint32(nil, v.Offset)
	data = append(data, uint8(n))
	data = append(data, c.flash[v.Offset:v.Offset+uint32(n)]...)
	return c.reply(ackSPIRead, v.Op, data)
}

// readIMU answers with address, count and the register values. The IMU must
// be enabled.
func (c *Controller) readIMU(addr, count uint8) []byte {
	id := protocol.SubcmdReadIMURegister
	if c.generic[protocol.SubcmdEnableIMU][0] == 0 || count == 0 || int(addr)+int(count) > len(c.imu) {
		return c.reply(ackNack, id, nil)
	}
	data := append([]byte{addr, count}, c.imu[addr:addr+count]...)
	return c.reply(ackIMURead, id, data)
}

func (c *Controller) isProtected(start, end uint32) bool {
	for _, r := range c.protected {
		if start < r.end && end > r.start {
			return true
		}
	}
	return false
}

func (c *Controller) deviceInfo() []byte {
	b := []byte{c.firmware[0], c.firmware[1], c.devType, 0x02}
	b = append(b, c.mac[:]...)
	colorsInSPI := uint8(0)
	if c.flash[0x6050] != 0xFF {
		colorsInSPI = 1
	}
	return append(b, 0x01, colorsInSPI)
}

// mcuStatus is the MCU state block returned after MCU configuration.
func (c *Controller) mcuStatus() []byte {
	return []byte{0x01, 0x00, 0xFF, 0x00, 0x08, 0x00, 0x1B, c.mcuMode}
}

func (c *Controller) reply(ack uint8, id protocol.SubcommandID, data []byte) []byte {
	b := protocol.BuildReply(c.timer, ack, id, data)
	c.fillHeader(b)
	return c.pad(b)
}

func (c *Controller) inputReport(id uint8) []byte {
	b := make([]byte, c.reportSize)
	b[0] = id
	b[protocol.ReplyOffsetTimer] = c.timer
	b[protocol.ReplyOffsetBattery] = 0x8E
	b[protocol.ReplyOffsetVibrator] = 0x80
	c.fillHeader(b)
	return b
}

func (c *Controller) fillHeader(b []byte) {
	copy(b[protocol.ReplyOffsetLeftStick:], c.leftStick[:])
	copy(b[protocol.ReplyOffsetRightStick:], c.rightStk[:])
}

func (c *Controller) pad(b []byte) []byte {
	if len(b) >= c.reportSize {
		return b
	}
	out := make([]byte, c.reportSize)
	copy(out, b)
	return out
}

// SetSticks sets the raw stick readings reported from now on.
func (c *Controller) SetSticks(lx, ly, rx, ry uint16) error {
	l, err := stick.Encode(lx, ly)
	if err != nil {
		return err
	}
	r, err := stick.Encode(rx, ry)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.leftStick, c.rightStk = l, r
	c.mu.Unlock()
	return nil
}

// Flash returns a copy of the flash image.
func (c *Controller) Flash() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.flash...)
}

// Rumble returns the last rumble codes received.
func (c *Controller) Rumble() (left, right [4]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rumbleL, c.rumbleR
}

// Register returns the last value written to an MCU register.
func (c *Controller) Register(addr uint16) (uint8, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.registers[addr]
	return v, ok
}

// MCUMode returns the current MCU mode and IR mode.
func (c *Controller) MCUMode() (mode, irMode uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mcuMode, c.irMode
}

// LastArgs returns the arguments of the last generic subcommand with id.
func (c *Controller) LastArgs(id protocol.SubcommandID) ([2]uint8, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.generic[id]
	return v, ok
}
