// Package apid holds the GRB application process identifier tables:
// which instrument owns an APID, whether it carries metadata or data, and
// the broadcast product name.
package apid

import (
	"fmt"
	"sort"
)

// Instrument identifies the instrument an APID belongs to.
type Instrument uint8

const (
	Unknown Instrument = iota
	ABI
	GLM
	MAG
	SEISS
	EXIS
	SUVI
	INFO
)

func (i Instrument) String() string {
	switch i {
	case ABI:
		return "ABI"
	case GLM:
		return "GLM"
	case MAG:
		return "MAG"
	case SEISS:
		return "SEISS"
	case EXIS:
		return "EXIS"
	case SUVI:
		return "SUVI"
	case INFO:
		return "INFO"
	default:
		return "unknown"
	}
}

// Class says what a bundle on an APID contributes to its product.
type Class uint8

const (
	ClassUnknown Class = iota
	ClassMetadata
	ClassData
)

func (c Class) String() string {
	switch c {
	case ClassMetadata:
		return "metadata"
	case ClassData:
		return "data"
	default:
		return "unknown"
	}
}

type span struct{ lo, hi uint16 }

func (s span) has(a uint16) bool { return a >= s.lo && a <= s.hi }

func inAny(a uint16, spans []span) bool {
	for _, s := range spans {
		if s.has(a) {
			return true
		}
	}
	return false
}

var instruments = []struct {
	span
	inst Instrument
}{
	{span{0x080, 0x19f}, ABI},
	{span{0x300, 0x303}, GLM},
	{span{0x380, 0x383}, EXIS},
	{span{0x400, 0x431}, SEISS},
	{span{0x480, 0x48b}, SUVI},
	{span{0x500, 0x501}, MAG},
	{span{0x580, 0x580}, INFO},
}

// Every ABI block of 32 APIDs holds 16 metadata bands then 16 data bands.
var metadataSpans = []span{
	{0x080, 0x08f}, {0x0a0, 0x0af}, {0x0c0, 0x0cf}, {0x0e0, 0x0ef},
	{0x100, 0x10f}, {0x120, 0x12f}, {0x140, 0x14f}, {0x160, 0x16f},
	{0x180, 0x18f},
	{0x300, 0x300},
	{0x380, 0x380}, {0x382, 0x382},
	{0x400, 0x400}, {0x410, 0x410}, {0x420, 0x420}, {0x430, 0x430},
	{0x480, 0x485},
	{0x500, 0x500},
}

var dataSpans = []span{
	{0x090, 0x09f}, {0x0b0, 0x0bf}, {0x0d0, 0x0df}, {0x0f0, 0x0ff},
	{0x110, 0x11f}, {0x130, 0x13f}, {0x150, 0x15f}, {0x170, 0x17f},
	{0x190, 0x19f},
	{0x301, 0x303},
	{0x381, 0x381}, {0x383, 0x383},
	{0x401, 0x401}, {0x411, 0x411}, {0x421, 0x421}, {0x431, 0x431},
	{0x486, 0x48b},
	{0x501, 0x501},
	{0x580, 0x580},
}

// InstrumentOf returns the instrument owning a, or Unknown.
func InstrumentOf(a uint16) Instrument {
	for _, e := range instruments {
		if e.has(a) {
			return e.inst
		}
	}
	return Unknown
}

// IsMetadata reports whether bundles on a carry product metadata.
func IsMetadata(a uint16) bool { return inAny(a, metadataSpans) }

// IsData reports whether bundles on a carry product data.
func IsData(a uint16) bool { return inAny(a, dataSpans) }

// Classify returns the class of a. Metadata wins when both apply.
func Classify(a uint16) Class {
	switch {
	case IsMetadata(a):
		return ClassMetadata
	case IsData(a):
		return ClassData
	default:
		return ClassUnknown
	}
}

// Name returns the broadcast product name of a.
func Name(a uint16) (string, bool) {
	n, ok := names[a]
	return n, ok
}

// Entry is one row of the APID table.
type Entry struct {
	APID       uint16
	Name       string
	Instrument Instrument
	Class      Class
}

func (e Entry) String() string {
	return fmt.Sprintf("%#05x %4d %-5s %-8s %s", e.APID, e.APID, e.Instrument, e.Class, e.Name)
}

// Lookup returns the table row for a. Unnamed APIDs still carry their
// instrument and class.
func Lookup(a uint16) (Entry, bool) {
	n, ok := names[a]
	return Entry{APID: a, Name: n, Instrument: InstrumentOf(a), Class: Classify(a)}, ok
}

// Table returns every named APID in ascending order.
func Table() []Entry {
	out := make([]Entry, 0, len(names))
	for a := range names {
		e, _ := Lookup(a)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].APID < out[j].APID })
	return out
}
