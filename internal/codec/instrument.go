package codec

import (
	"context"
	"fmt"

	"firestige.xyz/grbr/internal/apid"
	"firestige.xyz/grbr/internal/artifact"
)

// Slice is one decoded data bundle ready for an instrument codec.
type Slice struct {
	APID       uint16
	Instrument apid.Instrument
	Data       []byte
	DQF        []byte // image data only
	Placement  *artifact.Placement
}

// InstrumentCodec writes decoded slices into an artifact.
type InstrumentCodec interface {
	Apply(ctx context.Context, a artifact.Artifact, s Slice) error
}

// RawCodec writes slices unchanged. Image slices become a Rad record and
// a DQF record at the slice placement, and are tracked; everything else
// becomes a single data record.
type RawCodec struct{}

func (RawCodec) Apply(ctx context.Context, a artifact.Artifact, s Slice) error {
	if s.Placement == nil {
		return a.WriteSlice(ctx, artifact.Record{Variable: "data", Data: s.Data})
	}

	rad := s.Data
	if s.Instrument == apid.ABI {
		rad = maskSamples(rad, apid.BandOf(s.APID).Mask())
	}
	if err := a.WriteSlice(ctx, artifact.Record{Variable: "Rad", Placement: s.Placement, Data: rad}); err != nil {
		return fmt.Errorf("write Rad: %w", err)
	}
	if err := a.WriteSlice(ctx, artifact.Record{Variable: "DQF", Placement: s.Placement, Data: s.DQF}); err != nil {
		return fmt.Errorf("write DQF: %w", err)
	}
	brX, brY := s.Placement.BottomRight()
	return a.Track(s.Placement.ULX, s.Placement.ULY, brX, brY)
}

// maskSamples clears the bits above the band depth of big-endian 16-bit
// samples. A trailing odd octet is copied as is.
func maskSamples(b []byte, mask uint16) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	for i := 0; i+1 < len(out); i += 2 {
		v := (uint16(out[i])<<8 | uint16(out[i+1])) & mask
		out[i], out[i+1] = byte(v>>8), byte(v)
	}
	return out
}

// Codecs selects an instrument codec by instrument, falling back to a
// default.
type Codecs struct {
	byInstrument map[apid.Instrument]InstrumentCodec
	fallback     InstrumentCodec
}

// NewCodecs creates a selector whose fallback is RawCodec.
func NewCodecs() *Codecs {
	return &Codecs{
		byInstrument: make(map[apid.Instrument]InstrumentCodec),
		fallback:     RawCodec{},
	}
}

// Register sets the codec for inst.
func (c *Codecs) Register(inst apid.Instrument, ic InstrumentCodec) {
	c.byInstrument[inst] = ic
}

// For returns the codec for inst.
func (c *Codecs) For(inst apid.Instrument) InstrumentCodec {
	if ic, ok := c.byInstrument[inst]; ok {
		return ic
	}
	return c.fallback
}
