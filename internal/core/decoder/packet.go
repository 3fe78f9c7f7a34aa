package decoder

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"

	"firestige.xyz/grbr/internal/core"
)

// ParsePrimaryHeader decodes the 6-byte primary header.
//
//	bits 0-2   version
//	bit  3     type
//	bit  4     secondary header flag
//	bits 5-15  apid
//	bits 16-17 sequence flags
//	bits 18-31 sequence count
//	bits 32-47 data length
func ParsePrimaryHeader(b []byte) (core.PrimaryHeader, error) {
	if len(b) < core.PrimaryHeaderSize {
		return core.PrimaryHeader{}, fmt.Errorf("primary header: %w", core.ErrPacketTooShort)
	}
	w0 := binary.BigEndian.Uint16(b[0:2])
	w1 := binary.BigEndian.Uint16(b[2:4])
	return core.PrimaryHeader{
		Version:       uint8(w0 >> 13),
		Type:          uint8(w0>>12) & 0x1,
		HasSecondary:  (w0>>11)&0x1 == 1,
		APID:          w0 & 0x7ff,
		SequenceFlags: core.SequenceFlags(w1 >> 14),
		SequenceCount: w1 & 0x3fff,
		DataLength:    binary.BigEndian.Uint16(b[4:6]),
	}, nil
}

// AppendPrimaryHeader encodes h onto dst.
func AppendPrimaryHeader(dst []byte, h core.PrimaryHeader) []byte {
	w0 := uint16(h.Version&0x7)<<13 | uint16(h.Type&0x1)<<12 | h.APID&0x7ff
	if h.HasSecondary {
		w0 |= 1 << 11
	}
	w1 := uint16(h.SequenceFlags&0x3)<<14 | h.SequenceCount&0x3fff
	dst = binary.BigEndian.AppendUint16(dst, w0)
	dst = binary.BigEndian.AppendUint16(dst, w1)
	return binary.BigEndian.AppendUint16(dst, h.DataLength)
}

// ParseSecondaryHeader decodes the 8-byte secondary header. The last word
// packs grb version (5), payload variant (5), assembler id (2) and system
// environment (4), most significant first.
func ParseSecondaryHeader(b []byte) (core.SecondaryHeader, error) {
	if len(b) < core.SecondaryHeaderSize {
		return core.SecondaryHeader{}, fmt.Errorf("secondary header: %w", core.ErrPacketTooShort)
	}
	w := binary.BigEndian.Uint16(b[6:8])
	return core.SecondaryHeader{
		DaysSinceEpoch:    binary.BigEndian.Uint16(b[0:2]),
		MillisecondsOfDay: binary.BigEndian.Uint32(b[2:6]),
		GRBVersion:        uint8(w>>11) & 0x1f,
		PayloadVariant:    uint8(w>>6) & 0x1f,
		AssemblerID:       uint8(w>>4) & 0x3,
		SystemEnvironment: uint8(w) & 0xf,
	}, nil
}

// AppendSecondaryHeader encodes h onto dst.
func AppendSecondaryHeader(dst []byte, h core.SecondaryHeader) []byte {
	w := uint16(h.GRBVersion&0x1f)<<11 |
		uint16(h.PayloadVariant&0x1f)<<6 |
		uint16(h.AssemblerID&0x3)<<4 |
		uint16(h.SystemEnvironment&0xf)
	dst = binary.BigEndian.AppendUint16(dst, h.DaysSinceEpoch)
	dst = binary.BigEndian.AppendUint32(dst, h.MillisecondsOfDay)
	return binary.BigEndian.AppendUint16(dst, w)
}

// ParseImageHeader decodes the 34-byte image payload header.
func ParseImageHeader(b []byte) (core.PayloadHeader, error) {
	if len(b) < core.ImageHeaderSize {
		return core.PayloadHeader{}, fmt.Errorf("image header: %w", core.ErrPacketTooShort)
	}
	return core.PayloadHeader{
		Kind:                 core.PayloadImage,
		CompressionAlgorithm: b[0],
		SecondsSinceEpoch:    binary.BigEndian.Uint32(b[1:5]),
		MicrosecondsOfSecond: binary.BigEndian.Uint32(b[5:9]),
		DataSequenceCount:    uint32(binary.BigEndian.Uint16(b[9:11])),
		RowOffset:            binary.BigEndian.Uint16(b[11:13]),
		RowOffsetLow:         b[13],
		ULX:                  binary.BigEndian.Uint32(b[14:18]),
		ULY:                  binary.BigEndian.Uint32(b[18:22]),
		Height:               binary.BigEndian.Uint32(b[22:26]),
		Width:                binary.BigEndian.Uint32(b[26:30]),
		DQFOffset:            binary.BigEndian.Uint32(b[30:34]),
	}, nil
}

// ParseGenericHeader decodes the 21-byte generic payload header.
func ParseGenericHeader(b []byte) (core.PayloadHeader, error) {
	if len(b) < core.GenericHeaderSize {
		return core.PayloadHeader{}, fmt.Errorf("generic header: %w", core.ErrPacketTooShort)
	}
	return core.PayloadHeader{
		Kind:                 core.PayloadGeneric,
		CompressionAlgorithm: b[0],
		SecondsSinceEpoch:    binary.BigEndian.Uint32(b[1:5]),
		MicrosecondsOfSecond: binary.BigEndian.Uint32(b[5:9]),
		Reserved:             binary.BigEndian.Uint64(b[9:17]),
		DataSequenceCount:    binary.BigEndian.Uint32(b[17:21]),
	}, nil
}

// AppendPayloadHeader encodes p onto dst using the layout named by p.Kind.
func AppendPayloadHeader(dst []byte, p core.PayloadHeader) []byte {
	dst = append(dst, p.CompressionAlgorithm)
	dst = binary.BigEndian.AppendUint32(dst, p.SecondsSinceEpoch)
	dst = binary.BigEndian.AppendUint32(dst, p.MicrosecondsOfSecond)
	switch p.Kind {
	case core.PayloadImage:
		dst = binary.BigEndian.AppendUint16(dst, uint16(p.DataSequenceCount))
		dst = binary.BigEndian.AppendUint16(dst, p.RowOffset)
		dst = append(dst, p.RowOffsetLow)
		dst = binary.BigEndian.AppendUint32(dst, p.ULX)
		dst = binary.BigEndian.AppendUint32(dst, p.ULY)
		dst = binary.BigEndian.AppendUint32(dst, p.Height)
		dst = binary.BigEndian.AppendUint32(dst, p.Width)
		dst = binary.BigEndian.AppendUint32(dst, p.DQFOffset)
	case core.PayloadGeneric:
		dst = binary.BigEndian.AppendUint64(dst, p.Reserved)
		dst = binary.BigEndian.AppendUint32(dst, p.DataSequenceCount)
	}
	return dst
}

// payloadKind maps a secondary header payload variant to a header layout.
// Zero means the variant carries no payload header.
func payloadKind(variant uint8) core.PayloadKind {
	switch variant {
	case core.VariantImage, core.VariantImageB:
		return core.PayloadImage
	case core.VariantGeneric:
		return core.PayloadGeneric
	default:
		return 0
	}
}

// ParsePacket decodes one complete packet held in raw. Body excludes the
// CRC trailer.
func ParsePacket(raw []byte) (*core.Packet, error) {
	var sp SpacePacket
	if err := sp.DecodeFromBytes(raw, gopacket.NilDecodeFeedback); err != nil {
		return nil, err
	}
	return sp.Packet(), nil
}
