package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/sigurn/crc16"
)

// crcTable is CRC16-CCITT (poly 0x1021) seeded with 0x1021, MSB first, no
// final xor. This matches the firmware's crc_hqx(data, 0x1021).
var crcTable = crc16.MakeTable(crc16.Params{
	Poly:   0x1021,
	Init:   0x1021,
	RefIn:  false,
	RefOut: false,
	XorOut: 0x0000,
	Name:   "CRC-16/SWITCHER",
})

// CRC returns the protocol CRC16 of data.
func CRC(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}

// Sign computes the two checksums of a packet body. Order matters: the
// second checksum covers the byte-swapped first checksum followed by key.
func Sign(body, key []byte) (checksum1, checksum2 uint16) {
	checksum1 = CRC(body)

	keyed := make([]byte, 2+len(key))
	binary.LittleEndian.PutUint16(keyed[0:2], checksum1)
	copy(keyed[2:], key)
	checksum2 = CRC(keyed)

	return checksum1, checksum2
}

// AppendSignature returns body with both checksums appended little-endian.
func AppendSignature(body, key []byte) []byte {
	c1, c2 := Sign(body, key)
	out := make([]byte, len(body), len(body)+4)
	copy(out, body)
	out = binary.LittleEndian.AppendUint16(out, c1)
	out = binary.LittleEndian.AppendUint16(out, c2)
	return out
}

// Verify checks the two trailing checksums of a signed packet.
func Verify(packet, key []byte) error {
	if len(packet) < 4 {
		return fmt.Errorf("packet too short to carry a signature: %d bytes", len(packet))
	}
	body := packet[:len(packet)-4]
	got1 := binary.LittleEndian.Uint16(packet[len(packet)-4:])
	got2 := binary.LittleEndian.Uint16(packet[len(packet)-2:])

	want1, want2 := Sign(body, key)
	if got1 != want1 {
		return fmt.Errorf("checksum1 mismatch: got 0x%04x, want 0x%04x", got1, want1)
	}
	if got2 != want2 {
		return fmt.Errorf("checksum2 mismatch: got 0x%04x, want 0x%04x", got2, want2)
	}
	return nil
}
