package protocol

import "fmt"

// CRC16 computes the Modbus CRC-16 (reflected polynomial 0xA001, initial 0xFFFF).
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// Checksum returns the wire form of the CRC of s: uppercase hex, at least two
// digits and never zero-padded beyond that. Characters are taken one byte each.
func Checksum(s string) string {
	return fmt.Sprintf("%02X", CRC16(latin1(s)))
}

func latin1(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		out = append(out, byte(r))
	}
	return out
}
