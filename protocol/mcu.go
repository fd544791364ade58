package protocol

import "github.com/sigurn/crc8"

// The MCU validates its argument area with CRC-8 (poly 0x07, init 0x00).
var mcuCRCTable = crc8.MakeTable(crc8.CRC8)

// MCUChecksum computes the CRC-8 the MCU expects after its 36-byte argument area.
func MCUChecksum(args []byte) uint8 {
	return crc8.Checksum(args, mcuCRCTable)
}
