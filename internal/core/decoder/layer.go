package decoder

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/grbr/internal/core"
)

// LayerTypeSpacePacket is the gopacket layer type of a GRB space packet.
var LayerTypeSpacePacket = gopacket.RegisterLayerType(1900, gopacket.LayerTypeMetadata{
	Name:    "CCSDSSpacePacket",
	Decoder: gopacket.DecodeFunc(decodeSpacePacket),
})

// SpacePacket is a CCSDS space packet as a gopacket layer. Contents holds
// the headers, Payload the body without the CRC trailer.
type SpacePacket struct {
	layers.BaseLayer

	Primary       core.PrimaryHeader
	Secondary     *core.SecondaryHeader
	PayloadHeader *core.PayloadHeader
	CRC           uint32

	raw []byte
}

func (s *SpacePacket) LayerType() gopacket.LayerType { return LayerTypeSpacePacket }

func (s *SpacePacket) CanDecode() gopacket.LayerClass { return LayerTypeSpacePacket }

func (s *SpacePacket) NextLayerType() gopacket.LayerType { return gopacket.LayerTypePayload }

// DecodeFromBytes decodes one packet. data must hold at least the length
// declared by the primary header; anything beyond it is ignored.
func (s *SpacePacket) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	h1, err := ParsePrimaryHeader(data)
	if err != nil {
		df.SetTruncated()
		return err
	}
	size := h1.PacketLength()
	if len(data) < size {
		df.SetTruncated()
		return fmt.Errorf("%w: packet declares %d octets, have %d", core.ErrShortRead, size, len(data))
	}
	data = data[:size]

	s.Primary = h1
	s.Secondary = nil
	s.PayloadHeader = nil
	s.raw = data

	off := core.PrimaryHeaderSize
	if h1.HasSecondary {
		h2, err := ParseSecondaryHeader(data[off:])
		if err != nil {
			return err
		}
		s.Secondary = &h2
		off += core.SecondaryHeaderSize
	}

	// Only the opening packet of a bundle carries a payload header.
	if h1.SequenceFlags.StartsBundle() && s.Secondary != nil {
		switch payloadKind(s.Secondary.PayloadVariant) {
		case core.PayloadImage:
			hp, err := ParseImageHeader(data[off:])
			if err != nil {
				return err
			}
			s.PayloadHeader = &hp
			off += core.ImageHeaderSize
		case core.PayloadGeneric:
			hp, err := ParseGenericHeader(data[off:])
			if err != nil {
				return err
			}
			s.PayloadHeader = &hp
			off += core.GenericHeaderSize
		default:
			slog.Warn("unrecognized payload variant",
				"apid", fmt.Sprintf("%#x", h1.APID),
				"variant", s.Secondary.PayloadVariant)
		}
	}

	crcAt := size - core.CRCSize
	if crcAt < off {
		return fmt.Errorf("%w: %d octets of headers in a %d octet packet", core.ErrPacketTooShort, off, size)
	}
	s.CRC = binary.BigEndian.Uint32(data[crcAt:])
	s.Contents = data[:off]
	s.Payload = data[off:crcAt]
	return nil
}

// Packet converts the layer to the core representation.
func (s *SpacePacket) Packet() *core.Packet {
	return &core.Packet{
		Span:      core.RawPacket{Length: len(s.raw)},
		Primary:   s.Primary,
		Secondary: s.Secondary,
		Payload:   s.PayloadHeader,
		Body:      s.BaseLayer.Payload,
		Raw:       s.raw,
	}
}

// SerializeTo prepends the headers and appends the CRC trailer. FixLengths
// recomputes DataLength; ComputeChecksums recomputes the CRC.
func (s *SpacePacket) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	hdr := make([]byte, 0, core.PrimaryHeaderSize+core.SecondaryHeaderSize+core.ImageHeaderSize)
	if s.Secondary != nil {
		hdr = AppendSecondaryHeader(hdr, *s.Secondary)
	}
	if s.PayloadHeader != nil {
		hdr = AppendPayloadHeader(hdr, *s.PayloadHeader)
	}

	bodyLen := len(b.Bytes())
	if opts.FixLengths {
		total := core.PrimaryHeaderSize + len(hdr) + bodyLen + core.CRCSize
		if total-core.PacketOverhead > 0xffff {
			return fmt.Errorf("space packet length %d out of range", total)
		}
		s.Primary.DataLength = uint16(total - core.PacketOverhead)
		s.Primary.HasSecondary = s.Secondary != nil
	}
	full := AppendPrimaryHeader(make([]byte, 0, core.PrimaryHeaderSize+len(hdr)), s.Primary)
	full = append(full, hdr...)

	front, err := b.PrependBytes(len(full))
	if err != nil {
		return err
	}
	copy(front, full)

	if opts.ComputeChecksums {
		s.CRC = Checksum(b.Bytes())
	}
	trailer, err := b.AppendBytes(core.CRCSize)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(trailer, s.CRC)
	return nil
}

func decodeSpacePacket(data []byte, p gopacket.PacketBuilder) error {
	sp := &SpacePacket{}
	if err := sp.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(sp)
	return p.NextDecoder(gopacket.LayerTypePayload)
}
