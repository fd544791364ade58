package joycon

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/Alia5/jctool/ircam"
	"github.com/Alia5/jctool/protocol"
	"github.com/Alia5/jctool/rumble"
)

// Input report modes for SetInputMode.
const (
	InputModeNFCIR     = 0x31
	InputModeStandard  = 0x30
	InputModeSimpleHID = 0x3F
)

// ControllerType as reported by device info.
type ControllerType uint8

const (
	TypeLeftJoyCon  ControllerType = 0x01
	TypeRightJoyCon ControllerType = 0x02
	TypePro         ControllerType = 0x03
)

func (t ControllerType) String() string {
	switch t {
	case TypeLeftJoyCon:
		return "Joy-Con (L)"
	case TypeRightJoyCon:
		return "Joy-Con (R)"
	case TypePro:
		return "Pro Controller"
	}
	return fmt.Sprintf("unknown (0x%02X)", uint8(t))
}

// DeviceInfo is the reply body of the device info subcommand.
type DeviceInfo struct {
	FirmwareMajor uint8
	FirmwareMinor uint8
	Type          ControllerType
	MAC           net.HardwareAddr
	// ColorsInSPI is set when the flash color block should be used.
	ColorsInSPI bool
}

const deviceInfoSize = 12

// ParseDeviceInfo decodes the reply data of SubcmdDeviceInfo.
func ParseDeviceInfo(data []byte) (DeviceInfo, error) {
	if len(data) < deviceInfoSize {
		return DeviceInfo{}, io.ErrUnexpectedEOF
	}
	return DeviceInfo{
		FirmwareMajor: data[0],
		FirmwareMinor: data[1],
		Type:          ControllerType(data[2]),
		MAC:           net.HardwareAddr(append([]byte(nil), data[4:10]...)),
		ColorsInSPI:   data[11] == 0x01,
	}, nil
}

func (s *Session) DeviceInfo(ctx context.Context) (DeviceInfo, error) {
	reply, err := s.Subcommand(ctx, protocol.GenericArgs{Cmd: protocol.SubcmdDeviceInfo})
	if err != nil {
		return DeviceInfo{}, err
	}
	return ParseDeviceInfo(reply.Data)
}

func (s *Session) SetInputMode(ctx context.Context, mode uint8) error {
	_, err := s.Subcommand(ctx, protocol.GenericArgs{Cmd: protocol.SubcmdSetInputMode, Arg1: mode})
	return err
}

// SetPlayerLights sets the four player LEDs: low nibble on, high nibble flashing.
func (s *Session) SetPlayerLights(ctx context.Context, pattern uint8) error {
	_, err := s.Subcommand(ctx, protocol.GenericArgs{Cmd: protocol.SubcmdSetPlayerLights, Arg1: pattern})
	return err
}

func (s *Session) EnableVibration(ctx context.Context, on bool) error {
	_, err := s.Subcommand(ctx, protocol.GenericArgs{Cmd: protocol.SubcmdEnableVibration, Arg1: boolByte(on)})
	return err
}

func (s *Session) EnableIMU(ctx context.Context, on bool) error {
	_, err := s.Subcommand(ctx, protocol.GenericArgs{Cmd: protocol.SubcmdEnableIMU, Arg1: boolByte(on)})
	return err
}

// Battery is the regulated battery voltage reading.
type Battery struct {
	// Raw is in units of 2.5 mV.
	Raw uint16
}

// Battery voltage range mapped to 0..100 percent.
const (
	batteryEmptyMilliVolts = 3300
	batteryFullMilliVolts  = 4200
)

func (b Battery) MilliVolts() float64 { return float64(b.Raw) * 2.5 }

// Percent is a linear estimate between 3.3 V and 4.2 V.
func (b Battery) Percent() int {
	mv := b.MilliVolts()
	switch {
	case mv <= batteryEmptyMilliVolts:
		return 0
	case mv >= batteryFullMilliVolts:
		return 100
	}
	return int((mv - batteryEmptyMilliVolts) * 100 / (batteryFullMilliVolts - batteryEmptyMilliVolts))
}

func (s *Session) BatteryVoltage(ctx context.Context) (Battery, error) {
	reply, err := s.Subcommand(ctx, protocol.GenericArgs{Cmd: protocol.SubcmdGetRegulatedVoltage})
	if err != nil {
		return Battery{}, err
	}
	if len(reply.Data) < 2 {
		return Battery{}, fmt.Errorf("battery voltage: %w", io.ErrUnexpectedEOF)
	}
	return Battery{Raw: binary.LittleEndian.Uint16(reply.Data[0:2])}, nil
}

// IMU register holding the sensor temperature (16 LSB per degree, 0 = 25 °C).
const imuRegTemperature = 0x20

// Temperature reads the IMU temperature in degrees Celsius. The IMU is
// enabled for the read and disabled again afterwards.
func (s *Session) Temperature(ctx context.Context) (float64, error) {
	if err := s.EnableIMU(ctx, true); err != nil {
		return 0, err
	}
	reply, err := s.Subcommand(ctx, protocol.GenericArgs{Cmd: protocol.SubcmdReadIMURegister, Arg1: imuRegTemperature, Arg2: 2})
	if off := s.EnableIMU(ctx, false); err == nil {
		err = off
	}
	if err != nil {
		return 0, err
	}
	// Reply data: address, count, register values.
	if len(reply.Data) < 4 {
		return 0, fmt.Errorf("temperature: %w", io.ErrUnexpectedEOF)
	}
	if reply.Data[0] != imuRegTemperature {
		return 0, fmt.Errorf("%w: register 0x%02X, want 0x%02X", ErrUnexpectedReply, reply.Data[0], imuRegTemperature)
	}
	raw := int16(binary.LittleEndian.Uint16(reply.Data[2:4]))
	return 25 + float64(raw)/16, nil
}

// PlayRumble sends each step and holds it for its duration. The motors are
// returned to neutral when playback ends, fails or ctx is cancelled.
func (s *Session) PlayRumble(ctx context.Context, steps []rumble.Step) (err error) {
	defer func() {
		_, stopErr := s.Rumble(context.WithoutCancel(ctx), rumble.Neutral, rumble.Neutral)
		err = errors.Join(err, stopErr)
	}()
	for i, st := range steps {
		if _, err := s.Rumble(ctx, st.Left, st.Right); err != nil {
			return fmt.Errorf("rumble step %d: %w", i, err)
		}
		if err := sleep(ctx, st.Duration); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SetMCUState resumes (true) or suspends (false) the auxiliary MCU.
func (s *Session) SetMCUState(ctx context.Context, on bool) error {
	_, err := s.Subcommand(ctx, protocol.GenericArgs{Cmd: protocol.SubcmdMCUState, Arg1: boolByte(on)})
	return err
}

// ConfigureIR switches the MCU to IR mode and applies cfg. The MCU must
// already be resumed with SetMCUState.
func (s *Session) ConfigureIR(ctx context.Context, irMode, fragments uint8, cfg ircam.Config) error {
	batches, err := cfg.RegisterWrites()
	if err != nil {
		return err
	}
	steps := []protocol.Subcommand{
		protocol.NewMCUMode(protocol.MCUModeIR),
		protocol.NewMCUIRMode(irMode, fragments, mcuVersionMajor, mcuVersionMinor),
		batches[0],
		batches[1],
	}
	for _, sc := range steps {
		if _, err := s.Subcommand(ctx, sc); err != nil {
			return fmt.Errorf("configure ir: %w", err)
		}
	}
	s.logger.Info("ir camera configured", "mode", irMode, "fragments", fragments, "resolution", cfg.Resolution)
	return nil
}

// Minimum MCU firmware that supports the IR modes used here.
const (
	mcuVersionMajor = 0x0500
	mcuVersionMinor = 0x1800
)

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
