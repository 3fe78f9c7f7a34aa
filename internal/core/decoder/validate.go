package decoder

import (
	"fmt"
	"slices"

	"firestige.xyz/grbr/internal/core"
)

// Finding is one header field that failed validation.
type Finding struct {
	Header string
	Field  string
	Value  uint64
}

func (f Finding) String() string {
	return fmt.Sprintf("%s.%s=%d", f.Header, f.Field, f.Value)
}

// rule checks one field either against an accepted set or, when oneOf is
// nil, against value > above.
type rule[H any] struct {
	field string
	value func(*H) uint64
	oneOf []uint64
	above uint64
}

func (r rule[H]) ok(h *H) (uint64, bool) {
	v := r.value(h)
	if r.oneOf != nil {
		return v, slices.Contains(r.oneOf, v)
	}
	return v, v > r.above
}

var primaryRules = []rule[core.PrimaryHeader]{
	{field: "version", value: func(h *core.PrimaryHeader) uint64 { return uint64(h.Version) }, oneOf: []uint64{0}},
	{field: "type", value: func(h *core.PrimaryHeader) uint64 { return uint64(h.Type) }, oneOf: []uint64{0}},
	{field: "secondary_header_flag", value: func(h *core.PrimaryHeader) uint64 {
		if h.HasSecondary {
			return 1
		}
		return 0
	}, oneOf: []uint64{0, 1}},
	{field: "sequence_flags", value: func(h *core.PrimaryHeader) uint64 { return uint64(h.SequenceFlags) }, oneOf: []uint64{0, 1, 2, 3}},
	{field: "data_length", value: func(h *core.PrimaryHeader) uint64 { return uint64(h.DataLength) }},
}

var secondaryRules = []rule[core.SecondaryHeader]{
	{field: "grb_version", value: func(h *core.SecondaryHeader) uint64 { return uint64(h.GRBVersion) }, oneOf: []uint64{0}},
	{field: "payload_variant", value: func(h *core.SecondaryHeader) uint64 { return uint64(h.PayloadVariant) }, oneOf: []uint64{0, 2, 3}},
	{field: "assembler_id", value: func(h *core.SecondaryHeader) uint64 { return uint64(h.AssemblerID) }, oneOf: []uint64{0, 1, 2, 3}},
	{field: "system_environment", value: func(h *core.SecondaryHeader) uint64 { return uint64(h.SystemEnvironment) }, oneOf: []uint64{0, 1, 2}},
	{field: "days_since_epoch", value: func(h *core.SecondaryHeader) uint64 { return uint64(h.DaysSinceEpoch) }},
	{field: "milliseconds_of_day", value: func(h *core.SecondaryHeader) uint64 { return uint64(h.MillisecondsOfDay) }},
}

// Timestamps are unsigned, so only the compression code can be out of range.
var payloadRules = []rule[core.PayloadHeader]{
	{field: "compression_algorithm", value: func(h *core.PayloadHeader) uint64 { return uint64(h.CompressionAlgorithm) }, oneOf: []uint64{0, 1, 2}},
}

func check[H any](header string, h *H, rules []rule[H], out []Finding) []Finding {
	for _, r := range rules {
		if v, ok := r.ok(h); !ok {
			out = append(out, Finding{Header: header, Field: r.field, Value: v})
		}
	}
	return out
}

// Validate checks every header present in pkt and returns the failures.
// An empty result means the packet is valid.
func Validate(pkt *core.Packet) []Finding {
	var out []Finding
	out = check("primary", &pkt.Primary, primaryRules, out)
	if pkt.Secondary != nil {
		out = check("secondary", pkt.Secondary, secondaryRules, out)
	}
	if pkt.Payload != nil {
		out = check("payload", pkt.Payload, payloadRules, out)
	}
	return out
}
