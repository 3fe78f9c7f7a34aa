// Package core defines core data structures with zero external dependencies.
package core

import "fmt"

// Fixed header sizes in octets.
const (
	PrimaryHeaderSize   = 6
	SecondaryHeaderSize = 8
	ImageHeaderSize     = 34
	GenericHeaderSize   = 21
	CRCSize             = 4

	// PacketOverhead is added to DataLength to get the total packet length.
	PacketOverhead = 7

	// SequenceModulus bounds the 14-bit sequence counter.
	SequenceModulus = 16384
)

// SequenceFlags is the 2-bit segmentation field of the primary header.
type SequenceFlags uint8

const (
	SeqContinuation SequenceFlags = 0b00
	SeqFirst        SequenceFlags = 0b01
	SeqLast         SequenceFlags = 0b10
	SeqUnsegmented  SequenceFlags = 0b11
)

func (f SequenceFlags) String() string {
	switch f {
	case SeqContinuation:
		return "continuation"
	case SeqFirst:
		return "first"
	case SeqLast:
		return "last"
	case SeqUnsegmented:
		return "unsegmented"
	default:
		return fmt.Sprintf("flags(%d)", uint8(f))
	}
}

// StartsBundle reports whether a packet with these flags may open a bundle.
func (f SequenceFlags) StartsBundle() bool {
	return f == SeqFirst || f == SeqUnsegmented
}

// Payload variants carried in the secondary header.
const (
	VariantGeneric = 0
	VariantImage   = 2
	VariantImageB  = 3
)

// RawPacket is an immutable span [Offset, Offset+Length) inside a source.
type RawPacket struct {
	Offset int64
	Length int
}

// End returns the offset one past the last octet of the span.
func (r RawPacket) End() int64 {
	return r.Offset + int64(r.Length)
}

// PrimaryHeader is the 6-byte CCSDS primary header.
type PrimaryHeader struct {
	Version       uint8         // 3 bits
	Type          uint8         // 1 bit, 0 = telemetry
	HasSecondary  bool          // 1 bit
	APID          uint16        // 11 bits
	SequenceFlags SequenceFlags // 2 bits
	SequenceCount uint16        // 14 bits, mod 16384
	DataLength    uint16        // octets minus 7
}

// PacketLength returns the total packet length in octets.
func (h PrimaryHeader) PacketLength() int {
	return int(h.DataLength) + PacketOverhead
}

// SecondaryHeader is the 8-byte GRB secondary header.
type SecondaryHeader struct {
	DaysSinceEpoch    uint16
	MillisecondsOfDay uint32
	GRBVersion        uint8 // 5 bits
	PayloadVariant    uint8 // 5 bits
	AssemblerID       uint8 // 2 bits
	SystemEnvironment uint8 // 4 bits
}

// PayloadKind discriminates the payload header layouts.
type PayloadKind uint8

const (
	PayloadImage PayloadKind = iota + 1
	PayloadGeneric
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadImage:
		return "image"
	case PayloadGeneric:
		return "generic"
	default:
		return "none"
	}
}

// PayloadHeader holds either the image or the generic payload header.
// Fields that do not exist in a layout stay zero.
type PayloadHeader struct {
	Kind                 PayloadKind
	CompressionAlgorithm uint8
	SecondsSinceEpoch    uint32
	MicrosecondsOfSecond uint32
	DataSequenceCount    uint32 // 16 bits for image, 32 bits for generic

	// Image only
	RowOffset    uint16 // high 16 bits of the 24-bit row offset
	RowOffsetLow uint8  // low 8 bits of the 24-bit row offset
	ULX          uint32
	ULY          uint32
	Height       uint32
	Width        uint32
	DQFOffset    uint32

	// Generic only
	Reserved uint64
}

// RowOffset24 returns the reassembled 24-bit row offset.
func (p *PayloadHeader) RowOffset24() uint32 {
	return uint32(p.RowOffset)<<8 | uint32(p.RowOffsetLow)
}

// Packet is one decoded CCSDS packet.
type Packet struct {
	Span      RawPacket
	Primary   PrimaryHeader
	Secondary *SecondaryHeader // nil unless HasSecondary
	Payload   *PayloadHeader   // nil unless first/unsegmented with a known variant
	Body      []byte           // octets after the headers, excluding the CRC trailer
	Raw       []byte           // the whole packet
}
