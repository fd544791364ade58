package protocol

// Output report IDs (the CommandPacket cmd byte).
const (
	CmdRumbleSubcommand = 0x01
	CmdMCUUpdate        = 0x03
	CmdRumbleOnly       = 0x10
	CmdMCURequest       = 0x11
)

// Input report IDs.
const (
	ReportSubcommandReply = 0x21
	ReportMCUUpdate       = 0x23
	ReportStandardFull    = 0x30
	ReportNFCIR           = 0x31
	ReportSimpleHID       = 0x3F
)

const (
	// DefaultMaxReportSize is the output report size used over Bluetooth and USB.
	DefaultMaxReportSize = 49

	// HeaderSize covers cmd, sequence and both rumble fields.
	HeaderSize = 10

	SequenceMask = 0x0F
)

const (
	OffsetCmd         = 0
	OffsetSequence    = 1
	OffsetRumbleLeft  = 2
	OffsetRumbleRight = 6
	OffsetPayload     = 10
)

// SubcommandID is the tag byte of a subcommand payload.
type SubcommandID uint8

const (
	SubcmdManualPairing       SubcommandID = 0x01
	SubcmdDeviceInfo          SubcommandID = 0x02
	SubcmdSetInputMode        SubcommandID = 0x03
	SubcmdTriggerElapsed      SubcommandID = 0x04
	SubcmdSetHCIState         SubcommandID = 0x06
	SubcmdShipmentLowPower    SubcommandID = 0x08
	SubcmdSPIRead             SubcommandID = 0x10
	SubcmdSPIWrite            SubcommandID = 0x11
	SubcmdMCUConfig           SubcommandID = 0x21
	SubcmdMCUState            SubcommandID = 0x22
	SubcmdSetPlayerLights     SubcommandID = 0x30
	SubcmdSetHomeLight        SubcommandID = 0x38
	SubcmdEnableIMU           SubcommandID = 0x40
	SubcmdReadIMURegister     SubcommandID = 0x43
	SubcmdEnableVibration     SubcommandID = 0x48
	SubcmdGetRegulatedVoltage SubcommandID = 0x50
)

var subcommandNames = map[SubcommandID]string{
	SubcmdManualPairing:       "ManualPairing",
	SubcmdDeviceInfo:          "DeviceInfo",
	SubcmdSetInputMode:        "SetInputMode",
	SubcmdTriggerElapsed:      "TriggerElapsed",
	SubcmdSetHCIState:         "SetHCIState",
	SubcmdShipmentLowPower:    "ShipmentLowPower",
	SubcmdSPIRead:             "SPIRead",
	SubcmdSPIWrite:            "SPIWrite",
	SubcmdMCUConfig:           "MCUConfig",
	SubcmdMCUState:            "MCUState",
	SubcmdSetPlayerLights:     "SetPlayerLights",
	SubcmdSetHomeLight:        "SetHomeLight",
	SubcmdEnableIMU:           "EnableIMU",
	SubcmdReadIMURegister:     "ReadIMURegister",
	SubcmdEnableVibration:     "EnableVibration",
	SubcmdGetRegulatedVoltage: "GetRegulatedVoltage",
}

func (s SubcommandID) String() string {
	if n, ok := subcommandNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// genericArgIDs are the tags decoded as GenericArgs.
var genericArgIDs = map[SubcommandID]bool{
	SubcmdManualPairing:       true,
	SubcmdDeviceInfo:          true,
	SubcmdSetInputMode:        true,
	SubcmdTriggerElapsed:      true,
	SubcmdSetHCIState:         true,
	SubcmdShipmentLowPower:    true,
	SubcmdMCUState:            true,
	SubcmdSetPlayerLights:     true,
	SubcmdSetHomeLight:        true,
	SubcmdEnableIMU:           true,
	SubcmdReadIMURegister:     true,
	SubcmdEnableVibration:     true,
	SubcmdGetRegulatedVoltage: true,
}

// MCU command / subcommand bytes nested in SubcmdMCUConfig.
const (
	MCUCmdSetMode   = 0x21
	MCUCmdConfigure = 0x23

	MCUSubcmdSetMode        = 0x00
	MCUSubcmdSetIRMode      = 0x01
	MCUSubcmdWriteRegisters = 0x04
)

// MCU modes for MCUMode.Mode.
const (
	MCUModeStandby = 0x01
	MCUModeNFC     = 0x04
	MCUModeIR      = 0x05
	MCUModeInit    = 0x06
)

// IR modes for MCUIRMode.IRMode.
const (
	IRModeNone                   = 0x02
	IRModeMoment                 = 0x03
	IRModeDPD                    = 0x04
	IRModeClustering             = 0x06
	IRModeImageTransfer          = 0x07
	IRModeHandAnalysisSilhouette = 0x08
	IRModeHandAnalysisImage      = 0x09
	IRModeHandAnalysisBoth       = 0x0A
)

const (
	// MaxSPIChunk is the largest SPI payload one subcommand reply can carry.
	MaxSPIChunk = 0x1D

	// MaxRegisterPairs is the number of register slots in one MCU register write.
	MaxRegisterPairs = 9

	spiHeaderSize = 5

	// mcuArgsSize is the CRC-protected argument area of an MCU subcommand.
	mcuArgsSize = 36
	// MCUBodySize is mcu_cmd + argument area + CRC.
	MCUBodySize = 1 + mcuArgsSize + 1
)

// Offsets into a 0x21 subcommand reply report.
const (
	ReplyOffsetTimer        = 1
	ReplyOffsetBattery      = 2
	ReplyOffsetButtons      = 3
	ReplyOffsetLeftStick    = 6
	ReplyOffsetRightStick   = 9
	ReplyOffsetVibrator     = 12
	ReplyOffsetAck          = 13
	ReplyOffsetSubcommandID = 14
	ReplyOffsetData         = 15

	AckMask = 0x80
)
