package decoder

import (
	"testing"

	"github.com/google/gopacket"

	"firestige.xyz/grbr/internal/core"
)

// buildPacket serializes one space packet with a secondary header, correct
// lengths and a correct CRC. hp is only attached when non-nil.
func buildPacket(t testing.TB, apid uint16, flags core.SequenceFlags, count uint16, hp *core.PayloadHeader, body []byte) []byte {
	t.Helper()
	variant := uint8(core.VariantImage)
	if hp != nil && hp.Kind == core.PayloadGeneric {
		variant = core.VariantGeneric
	}
	sp := &SpacePacket{
		Primary: core.PrimaryHeader{
			APID:          apid,
			SequenceFlags: flags,
			SequenceCount: count,
		},
		Secondary: &core.SecondaryHeader{
			DaysSinceEpoch:    9000,
			MillisecondsOfDay: 43200000,
			PayloadVariant:    variant,
		},
		PayloadHeader: hp,
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, sp, gopacket.Payload(body)); err != nil {
		t.Fatalf("serialize packet: %v", err)
	}
	return append([]byte(nil), buf.Bytes()...)
}

func imageHeader() *core.PayloadHeader {
	return &core.PayloadHeader{
		Kind:                 core.PayloadImage,
		SecondsSinceEpoch:    537000000,
		MicrosecondsOfSecond: 250000,
		RowOffset:            0x0001,
		RowOffsetLow:         0x02,
		ULX:                  10,
		ULY:                  20,
		Height:               2,
		Width:                3,
		DQFOffset:            6,
	}
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
