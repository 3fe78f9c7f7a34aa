// Package core defines core types.
package core

// Bundle is one reassembled logical payload.
// Headers come from the first packet only.
type Bundle struct {
	Primary   PrimaryHeader
	Secondary *SecondaryHeader
	Payload   *PayloadHeader

	Data    []byte      // concatenated packet bodies
	Offset  int64       // offset of the first packet
	Length  int64       // octets consumed, sum of packet lengths
	Packets []RawPacket // constituent spans in stream order

	// Soft findings collected while reading
	SequenceGaps     int
	CRCFailures      int
	ValidationErrors int
}

// APID returns the application process identifier of the bundle.
func (b *Bundle) APID() uint16 {
	return b.Primary.APID
}

// Next returns the offset immediately after the bundle.
func (b *Bundle) Next() int64 {
	return b.Offset + b.Length
}

// Segmented reports whether the bundle spans more than one packet.
func (b *Bundle) Segmented() bool {
	return len(b.Packets) > 1
}
