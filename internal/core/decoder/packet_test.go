package decoder

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/gopacket"

	"firestige.xyz/grbr/internal/core"
)

func TestParsePrimaryHeader_KnownBytes(t *testing.T) {
	// version 0, type 0, secondary 1, apid 0x108, first, count 0, length 9
	b := []byte{0x09, 0x08, 0x40, 0x00, 0x00, 0x09}
	h, err := ParsePrimaryHeader(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := core.PrimaryHeader{
		HasSecondary:  true,
		APID:          0x108,
		SequenceFlags: core.SeqFirst,
		DataLength:    9,
	}
	if diff := cmp.Diff(want, h); diff != "" {
		t.Fatalf("header mismatch (-want +got):\n%s", diff)
	}
	if got := AppendPrimaryHeader(nil, h); !bytes.Equal(got, b) {
		t.Fatalf("encode: expected % x, got % x", b, got)
	}
}

func TestParsePrimaryHeader_AllBitsSet(t *testing.T) {
	h, err := ParsePrimaryHeader([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Version != 7 || h.Type != 1 || !h.HasSecondary || h.APID != 0x7ff ||
		h.SequenceFlags != core.SeqUnsegmented || h.SequenceCount != 0x3fff || h.DataLength != 0xffff {
		t.Fatalf("unexpected header %+v", h)
	}
}

func TestParseSecondaryHeader_PackedWord(t *testing.T) {
	h := core.SecondaryHeader{
		DaysSinceEpoch:    0x1234,
		MillisecondsOfDay: 0x01020304,
		GRBVersion:        0x15,
		PayloadVariant:    0x0a,
		AssemblerID:       2,
		SystemEnvironment: 0x9,
	}
	b := AppendSecondaryHeader(nil, h)
	if len(b) != core.SecondaryHeaderSize {
		t.Fatalf("expected %d octets, got %d", core.SecondaryHeaderSize, len(b))
	}
	// 10101 01010 10 1001
	if b[6] != 0xaa || b[7] != 0xa9 {
		t.Fatalf("unexpected packed word % x", b[6:8])
	}
	got, err := ParseSecondaryHeader(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(h, got); diff != "" {
		t.Fatalf("secondary header mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePacket_ImageFirst(t *testing.T) {
	body := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	raw := buildPacket(t, 0x108, core.SeqFirst, 5, imageHeader(), body)

	pkt, err := ParsePacket(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pkt.Secondary == nil || pkt.Payload == nil {
		t.Fatal("expected secondary and payload headers")
	}
	if diff := cmp.Diff(imageHeader(), pkt.Payload); diff != "" {
		t.Fatalf("payload header mismatch (-want +got):\n%s", diff)
	}
	if !bytes.Equal(pkt.Body, body) {
		t.Fatalf("expected body % x, got % x", body, pkt.Body)
	}
	wantLen := core.PrimaryHeaderSize + core.SecondaryHeaderSize + core.ImageHeaderSize + len(body) + core.CRCSize
	if len(raw) != wantLen || pkt.Primary.PacketLength() != wantLen {
		t.Fatalf("expected length %d, raw %d, header %d", wantLen, len(raw), pkt.Primary.PacketLength())
	}
}

func TestParsePacket_GenericHeader(t *testing.T) {
	hp := &core.PayloadHeader{
		Kind:                 core.PayloadGeneric,
		CompressionAlgorithm: 2,
		SecondsSinceEpoch:    1,
		Reserved:             0xdeadbeef,
		DataSequenceCount:    0x01020304,
	}
	raw := buildPacket(t, 0x301, core.SeqUnsegmented, 0, hp, []byte("glm"))
	pkt, err := ParsePacket(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(hp, pkt.Payload); diff != "" {
		t.Fatalf("payload header mismatch (-want +got):\n%s", diff)
	}
	if string(pkt.Body) != "glm" {
		t.Fatalf("unexpected body %q", pkt.Body)
	}
}

func TestParsePacket_ContinuationHasNoPayloadHeader(t *testing.T) {
	raw := buildPacket(t, 0x108, core.SeqContinuation, 1, nil, []byte("middle"))
	pkt, err := ParsePacket(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pkt.Payload != nil {
		t.Fatalf("continuation packet should not carry a payload header")
	}
	if string(pkt.Body) != "middle" {
		t.Fatalf("unexpected body %q", pkt.Body)
	}
}

func TestParsePacket_UnrecognizedVariant(t *testing.T) {
	sp := &SpacePacket{
		Primary:   core.PrimaryHeader{APID: 0x108, SequenceFlags: core.SeqUnsegmented},
		Secondary: &core.SecondaryHeader{PayloadVariant: 1},
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, sp, gopacket.Payload("x")); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	pkt, err := ParsePacket(buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pkt.Payload != nil {
		t.Fatal("variant 1 must not produce a payload header")
	}
}

func TestParsePacket_Truncated(t *testing.T) {
	raw := buildPacket(t, 0x108, core.SeqUnsegmented, 0, imageHeader(), []byte("abc"))
	if _, err := ParsePacket(raw[:len(raw)-1]); !errors.Is(err, core.ErrShortRead) {
		t.Fatalf("expected ErrShortRead, got %v", err)
	}
	if _, err := ParsePacket(raw[:3]); !errors.Is(err, core.ErrPacketTooShort) {
		t.Fatalf("expected ErrPacketTooShort, got %v", err)
	}
}

func TestSpacePacket_GopacketDecode(t *testing.T) {
	body := []byte("payload bytes")
	raw := buildPacket(t, 0x480, core.SeqUnsegmented, 3, imageHeader(), body)

	p := gopacket.NewPacket(raw, LayerTypeSpacePacket, gopacket.Default)
	if el := p.ErrorLayer(); el != nil {
		t.Fatalf("decode error: %v", el.Error())
	}
	layer, ok := p.Layer(LayerTypeSpacePacket).(*SpacePacket)
	if !ok {
		t.Fatal("space packet layer not found")
	}
	if layer.Primary.APID != 0x480 || layer.Primary.SequenceCount != 3 {
		t.Fatalf("unexpected primary header %+v", layer.Primary)
	}
	app := p.ApplicationLayer()
	if app == nil || !bytes.Equal(app.Payload(), body) {
		t.Fatalf("expected application payload %q", body)
	}
}
