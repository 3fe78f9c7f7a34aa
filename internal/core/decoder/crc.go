package decoder

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"firestige.xyz/grbr/internal/core"
)

// Checksum computes CRC-32/ISO-HDLC (reflected 0xEDB88320, init and final
// xor 0xFFFFFFFF) over b.
func Checksum(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

// VerifyCRC checks the big-endian trailer of a complete packet against the
// checksum of every octet before it.
func VerifyCRC(raw []byte) error {
	if len(raw) < core.CRCSize {
		return fmt.Errorf("crc trailer: %w", core.ErrPacketTooShort)
	}
	at := len(raw) - core.CRCSize
	want := binary.BigEndian.Uint32(raw[at:])
	got := Checksum(raw[:at])
	if got != want {
		return fmt.Errorf("%w: computed %08x, trailer %08x", core.ErrCRC, got, want)
	}
	return nil
}
